package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/chatroom/internal/attachment"
	"github.com/chatroom/internal/logger"
	"github.com/chatroom/internal/metrics"
	"github.com/chatroom/internal/middleware"
	"github.com/chatroom/internal/service"
	"github.com/go-chi/chi/v5"
)

const multipartMemory = 8 << 20

type MessageHandler struct {
	messages       *service.MessageService
	files          *attachment.Store
	maxAttachments int
	maxUploadSize  int64
}

func NewMessageHandler(messages *service.MessageService, files *attachment.Store, maxAttachments int, maxUploadSize int64) *MessageHandler {
	return &MessageHandler{messages: messages, files: files, maxAttachments: maxAttachments, maxUploadSize: maxUploadSize}
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"max=10000"`
}

func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messages.List(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// SendMessage принимает JSON {content} или multipart: content + до maxAttachments файлов attachments.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chatID := chi.URLParam(r, "chatId")

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var req SendMessageRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := h.messages.Send(r.Context(), userID, chatID, req.Content, nil)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize*int64(h.maxAttachments)+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.Debugf("multipart cleanup: %v", err)
		}
	}()

	headers := r.MultipartForm.File["attachments"]
	if len(headers) > h.maxAttachments {
		writeError(w, http.StatusBadRequest, "too many attachments")
		return
	}
	refs := make([]string, 0, len(headers))
	for _, fh := range headers {
		if h.maxUploadSize > 0 && fh.Size > h.maxUploadSize {
			h.files.RemoveAll(refs)
			metrics.UploadsTotal.WithLabelValues("too_large").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.files.RemoveAll(refs)
			writeError(w, http.StatusBadRequest, "failed to read attachment")
			return
		}
		ref, err := h.files.Save(r.Context(), fh.Filename, f)
		f.Close()
		if err != nil {
			h.files.RemoveAll(refs)
			h.writeUploadError(w, r, fh.Filename, err)
			return
		}
		metrics.UploadsTotal.WithLabelValues("ok").Inc()
		refs = append(refs, ref)
	}

	msg, err := h.messages.Send(r.Context(), userID, chatID, r.FormValue("content"), refs)
	if err != nil {
		h.files.RemoveAll(refs)
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) writeUploadError(w http.ResponseWriter, r *http.Request, filename string, err error) {
	switch {
	case errors.Is(err, attachment.ErrNotAllowed):
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, "file type not allowed: "+filename)
	case errors.Is(err, attachment.ErrMismatch):
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, "file content does not match its extension: "+filename)
	case errors.Is(err, attachment.ErrTooLarge):
		metrics.UploadsTotal.WithLabelValues("too_large").Inc()
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
	default:
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		logger.Errorf("%s %s: save %s: %v", r.Method, r.URL.Path, filename, err)
		writeError(w, http.StatusInternalServerError, "failed to save attachment")
	}
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.messages.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId"), chi.URLParam(r, "messageId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

package handler

import (
	"net/http"

	"github.com/chatroom/internal/middleware"
	"github.com/chatroom/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChatHandler struct {
	chats *service.ChatService
}

func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type CreateGroupChatRequest struct {
	Name         string   `json:"name" validate:"required,max=100"`
	Participants []string `json:"participants" validate:"dive,required"`
}

type RenameGroupChatRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	views, err := h.chats.ListChats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	view, err := h.chats.GetChat(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CreateOrGetDirectChat отвечает 201 для нового чата и 200 для существующего.
func (h *ChatHandler) CreateOrGetDirectChat(w http.ResponseWriter, r *http.Request) {
	view, created, err := h.chats.GetOrCreateDirectChat(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "receiverId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, view)
}

func (h *ChatHandler) CreateGroupChat(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.chats.CreateGroupChat(r.Context(), middleware.GetUserID(r.Context()), req.Name, req.Participants)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *ChatHandler) GetGroupChat(w http.ResponseWriter, r *http.Request) {
	view, err := h.chats.GetGroupChat(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ChatHandler) RenameGroupChat(w http.ResponseWriter, r *http.Request) {
	var req RenameGroupChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.chats.RenameGroupChat(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId"), req.Name)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ChatHandler) DeleteGroupChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.DeleteGroupChat(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (h *ChatHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	view, err := h.chats.AddParticipant(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId"), chi.URLParam(r, "participantId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ChatHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	view, err := h.chats.RemoveParticipant(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId"), chi.URLParam(r, "participantId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ChatHandler) LeaveGroupChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.LeaveGroupChat(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (h *ChatHandler) DeleteDirectChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.DeleteDirectChat(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

// DeleteChat удаляет чат любого вида: личный может удалить участник, группу только админ.
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.DeleteChat(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.MarkRead(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "chatId")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

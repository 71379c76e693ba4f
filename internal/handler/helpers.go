package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/chatroom/internal/apperror"
	"github.com/chatroom/internal/logger"
	"github.com/go-playground/validator/v10"
)

const maxJSONBody = 1 << 20

var validate = validator.New()

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

var okResponse = statusResponse{Status: "ok"}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeAppError переводит ошибку сервиса в HTTP-ответ. Внутренние детали только в лог.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperror.KindOf(err) == apperror.KindInternal:
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	case apperror.IsForbidden(err):
		logger.Debugf("%s %s: forbidden: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, apperror.Status(err), apperror.Message(err))
}

// decodeJSON читает тело в v и проверяет теги validate.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid body"
	}
	return verrs[0].Field() + " is invalid"
}

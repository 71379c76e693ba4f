package handler

import (
	"net/http"
	"path/filepath"

	"github.com/chatroom/internal/attachment"
	"github.com/go-chi/chi/v5"
)

type FileHandler struct {
	files *attachment.Store
}

func NewFileHandler(files *attachment.Store) *FileHandler {
	return &FileHandler{files: files}
}

// Serve: GET /uploads/{filename}
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	h.files.Serve(w, filepath.Base(chi.URLParam(r, "filename")))
}

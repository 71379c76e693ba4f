package handler

import (
	"net/http"

	"github.com/chatroom/internal/config"
)

// ConfigHandler отдаёт публичные параметры конфигурации для клиента.
type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

type ClientConfig struct {
	MaxAttachments  int   `json:"max_attachments"`
	MaxUploadSizeMB int64 `json:"max_upload_size_mb"`
	TypingIdleMs    int64 `json:"typing_idle_ms"`
}

// GetClientConfig возвращает лимиты вложений и таймаут typing (без авторизации).
func (h *ConfigHandler) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ClientConfig{
		MaxAttachments:  h.cfg.MaxAttachments,
		MaxUploadSizeMB: h.cfg.MaxUploadSize >> 20,
		TypingIdleMs:    h.cfg.TypingIdle.Milliseconds(),
	})
}

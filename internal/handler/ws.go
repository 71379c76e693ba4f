package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/chatroom/internal/auth"
	"github.com/chatroom/internal/logger"
	"github.com/chatroom/internal/middleware"
	"github.com/chatroom/internal/ws"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	hub            *ws.Hub
	verifier       auth.Verifier
	allowedOrigins []string
	opts           ws.ClientOptions
	upgrader       websocket.Upgrader
}

// NewWSHandler создаёт обработчик WebSocket. allowedOrigins как в CORS (пусто или "*": любые).
func NewWSHandler(hub *ws.Hub, verifier auth.Verifier, allowedOrigins []string, opts ws.ClientOptions) *WSHandler {
	h := &WSHandler{hub: hub, verifier: verifier, allowedOrigins: allowedOrigins, opts: opts}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// ServeWS проверяет токен до upgrade: без него клиент получает обычный 401.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r, true)
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrRevoked) {
			logger.Errorf("ws verify token=%s: %v", middleware.MaskToken(token), err)
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("ws upgrade: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := ws.NewClient(h.hub, conn, claims.UserID, h.opts)
	client.Start(ctx, cancel)
	h.hub.Register(client)
}

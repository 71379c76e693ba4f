package handler

import (
	"net/http"
	"strings"

	"github.com/chatroom/internal/attachment"
	"github.com/chatroom/internal/auth"
	"github.com/chatroom/internal/config"
	"github.com/chatroom/internal/middleware"
	"github.com/chatroom/internal/service"
	"github.com/chatroom/internal/ws"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Config   *config.Config
	Chats    *service.ChatService
	Messages *service.MessageService
	Users    *service.UserService
	Files    *attachment.Store
	Hub      *ws.Hub
	Verifier auth.Verifier
}

// NewRouter собирает все HTTP-маршруты сервиса.
func NewRouter(d RouterDeps) http.Handler {
	cfg := d.Config
	chatH := NewChatHandler(d.Chats)
	msgH := NewMessageHandler(d.Messages, d.Files, cfg.MaxAttachments, cfg.MaxUploadSize)
	userH := NewUserHandler(d.Users, cfg.Production)
	fileH := NewFileHandler(d.Files)
	configH := NewConfigHandler(cfg)
	wsH := NewWSHandler(d.Hub, d.Verifier, cfg.CORSAllowedOrigins, ws.ClientOptions{
		SendBuffer:     cfg.WSSendBufferSize,
		WriteWait:      cfg.WSWriteTimeout,
		PongWait:       cfg.WSPongTimeout,
		MaxMessageSize: cfg.WSMaxMessageSize,
	})
	rateLimit := middleware.RateLimitAPI(cfg.RateLimitPerMinute)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	if !cfg.Production {
		r.Use(chimw.Logger)
	}
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket, иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	compress := chimw.Compress(5)
	r.Use(func(next http.Handler) http.Handler {
		compressed := compress(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			compressed.ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, http.StatusOK, okResponse) })
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/uploads/{filename}", fileH.Serve)
	r.Get("/ws", wsH.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", configH.GetClientConfig)
		r.With(rateLimit).Post("/users", userH.Register)
		r.With(rateLimit).Post("/users/login", userH.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(d.Verifier))
			r.Use(rateLimit)

			r.Post("/users/logout", userH.Logout)
			r.Get("/users", userH.Search)
			r.Get("/users/me", userH.Me)

			r.Get("/chats", chatH.ListChats)
			r.Post("/chats/c/{receiverId}", chatH.CreateOrGetDirectChat)
			r.Post("/chats/group", chatH.CreateGroupChat)
			r.Get("/chats/group/{chatId}", chatH.GetGroupChat)
			r.Patch("/chats/group/{chatId}", chatH.RenameGroupChat)
			r.Delete("/chats/group/{chatId}", chatH.DeleteGroupChat)
			r.Post("/chats/group/{chatId}/{participantId}", chatH.AddParticipant)
			r.Delete("/chats/group/{chatId}/{participantId}", chatH.RemoveParticipant)
			r.Delete("/chats/leave/group/{chatId}", chatH.LeaveGroupChat)
			r.Delete("/chats/remove/{chatId}", chatH.DeleteDirectChat)
			r.Get("/chats/{chatId}", chatH.GetChat)
			r.Delete("/chats/{chatId}", chatH.DeleteChat)
			r.Post("/chats/{chatId}/read", chatH.MarkRead)

			r.Get("/messages/{chatId}", msgH.GetMessages)
			r.Post("/messages/{chatId}", msgH.SendMessage)
			r.Delete("/messages/{chatId}/{messageId}", msgH.DeleteMessage)
		})
	})
	return r
}

package handler

import (
	"net/http"
	"time"

	"github.com/chatroom/internal/middleware"
	"github.com/chatroom/internal/service"
)

type UserHandler struct {
	users        *service.UserService
	secureCookie bool
}

// NewUserHandler: secureCookie ставит флаг Secure на cookie jwt (в production).
func NewUserHandler(users *service.UserService, secureCookie bool) *UserHandler {
	return &UserHandler{users: users, secureCookie: secureCookie}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.users.Register(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	h.setCookie(w, sess.Token, sess.ExpiresAt)
	writeJSON(w, http.StatusCreated, sess)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.users.Login(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	h.setCookie(w, sess.Token, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, sess)
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Logout(r.Context(), middleware.GetClaims(r.Context())); err != nil {
		writeAppError(w, r, err)
		return
	}
	h.setCookie(w, "", time.Unix(0, 0))
	writeJSON(w, http.StatusOK, okResponse)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Search: GET /api/users?search=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Search(r.Context(), middleware.GetUserID(r.Context()), r.URL.Query().Get("search"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	c := &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}

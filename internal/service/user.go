package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chatroom/internal/apperror"
	"github.com/chatroom/internal/auth"
	"github.com/chatroom/internal/logger"
	"github.com/chatroom/internal/model"
	"github.com/chatroom/internal/storage"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const searchLimit = 4

var validate = validator.New()

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
}

// Session is what a successful register or login hands back.
type Session struct {
	User      model.UserPublic `json:"user"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
}

type UserService struct {
	users   storage.UserStore
	tokens  *auth.Manager
	limiter storage.TokenStore
	timeout time.Duration
}

// NewUserService: limiter may be nil, then login attempts are not counted.
func NewUserService(users storage.UserStore, tokens *auth.Manager, limiter storage.TokenStore, timeout time.Duration) *UserService {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &UserService{users: users, tokens: tokens, limiter: limiter, timeout: timeout}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (sess *Session, err error) {
	defer logger.DeferLogDuration("user.Register", time.Now())()
	defer observe("user.Register", time.Now(), &err)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return nil, apperror.BadRequest(validationMessage(err))
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal("user.Register", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u := &model.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperror.Conflict("username is already taken")
		}
		return nil, apperror.Internal("user.Register", err)
	}
	logger.Infof("user registered: %s", u.ID)
	return s.issue(u)
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (sess *Session, err error) {
	defer logger.DeferLogDuration("user.Login", time.Now())()
	defer observe("user.Login", time.Now(), &err)
	in.Username = strings.TrimSpace(in.Username)
	if err := validate.Struct(in); err != nil {
		return nil, apperror.BadRequest(validationMessage(err))
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.limiter != nil {
		ok, err := s.limiter.AllowLoginAttempt(ctx, strings.ToLower(in.Username))
		if err != nil {
			// limiter unavailable: do not block login
			logger.Errorf("user.Login: limiter: %v", err)
		} else if !ok {
			return nil, apperror.RateLimited("too many login attempts, try again later")
		}
	}

	u, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.Unauthenticated("invalid credentials")
		}
		return nil, apperror.Internal("user.Login", err)
	}
	ok, err := auth.ComparePassword(in.Password, u.PasswordHash)
	if err != nil {
		return nil, apperror.Internal("user.Login", err)
	}
	if !ok {
		return nil, apperror.Unauthenticated("invalid credentials")
	}
	return s.issue(u)
}

// Logout revokes the token for the rest of its lifetime.
func (s *UserService) Logout(ctx context.Context, claims *auth.Claims) (err error) {
	defer observe("user.Logout", time.Now(), &err)
	if claims == nil {
		return apperror.Unauthenticated("not authenticated")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return apperror.Internal("user.Logout", err)
	}
	return nil
}

func (s *UserService) Me(ctx context.Context, userID string) (u *model.UserPublic, err error) {
	defer observe("user.Me", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr("user.Me", err, msgUserNotFound)
	}
	return lo.ToPtr(user.ToPublic()), nil
}

// Search matches username or email, case-insensitive, excluding the requester.
func (s *UserService) Search(ctx context.Context, requesterID, query string) (out []model.UserPublic, err error) {
	defer logger.DeferLogDuration("user.Search", time.Now())()
	defer observe("user.Search", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	users, err := s.users.Search(ctx, strings.TrimSpace(query), requesterID, searchLimit)
	if err != nil {
		return nil, apperror.Internal("user.Search", err)
	}
	return lo.Map(users, func(u model.User, _ int) model.UserPublic { return u.ToPublic() }), nil
}

func (s *UserService) issue(u *model.User) (*Session, error) {
	token, claims, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, apperror.Internal("user.issue", err)
	}
	return &Session{User: u.ToPublic(), Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	return strings.ToLower(fe.Field()) + " is invalid (" + fe.Tag() + ")"
}

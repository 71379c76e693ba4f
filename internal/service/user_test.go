package service

import (
	"context"
	"testing"
	"time"

	"github.com/chatroom/internal/apperror"
	"github.com/chatroom/internal/auth"
	"github.com/chatroom/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) (*UserService, *auth.Manager) {
	t.Helper()
	tokens := memory.NewTokens()
	manager := auth.NewManager("test-secret", time.Hour, "chatroom", tokens)
	return NewUserService(memory.New().Users(), manager, tokens, time.Second), manager
}

func TestUserService_RegisterLoginLogout(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, manager := newUserService(t)

	sess, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: " Alice@Example.com ", Password: "correct-horse"})
	req.NoError(err)
	req.Equal("alice", sess.User.Username)
	req.Equal("alice@example.com", sess.User.Email)
	req.NotEmpty(sess.Token)

	_, err = svc.Register(ctx, RegisterInput{Username: "ALICE", Email: "a2@example.com", Password: "correct-horse"})
	req.Equal(apperror.KindConflict, apperror.KindOf(err))

	_, err = svc.Login(ctx, LoginInput{Username: "alice", Password: "wrong-horse"})
	req.Equal(apperror.KindUnauthenticated, apperror.KindOf(err))

	_, err = svc.Login(ctx, LoginInput{Username: "nobody", Password: "correct-horse"})
	req.Equal(apperror.KindUnauthenticated, apperror.KindOf(err))

	sess, err = svc.Login(ctx, LoginInput{Username: "alice", Password: "correct-horse"})
	req.NoError(err)
	claims, err := manager.Verify(ctx, sess.Token)
	req.NoError(err)
	req.Equal(sess.User.ID, claims.UserID)

	// When the session logs out
	req.NoError(svc.Logout(ctx, claims))

	// Then the token stops working
	_, err = manager.Verify(ctx, sess.Token)
	req.ErrorIs(err, auth.ErrRevoked)
}

func TestUserService_RegisterValidation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newUserService(t)

	cases := []RegisterInput{
		{Username: "", Email: "a@example.com", Password: "correct-horse"},
		{Username: "al", Email: "a@example.com", Password: "correct-horse"},
		{Username: "alice", Email: "not-an-email", Password: "correct-horse"},
		{Username: "alice", Email: "a@example.com", Password: "short"},
		{Username: "al ice", Email: "a@example.com", Password: "correct-horse"},
	}
	for _, in := range cases {
		_, err := svc.Register(ctx, in)
		req.Equal(apperror.KindBadRequest, apperror.KindOf(err), "input %+v", in)
	}
}

func TestUserService_LoginIsRateLimited(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newUserService(t)
	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@example.com", Password: "correct-horse"})
	req.NoError(err)

	var last error
	for range 11 {
		_, last = svc.Login(ctx, LoginInput{Username: "alice", Password: "wrong-horse"})
	}
	req.Equal(apperror.KindRateLimited, apperror.KindOf(last))
}

func TestUserService_SearchExcludesCallerAndLimits(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newUserService(t)

	var me string
	for _, name := range []string{"sam", "sam1", "sam2", "sam3", "sam4", "sam5", "tom"} {
		sess, err := svc.Register(ctx, RegisterInput{Username: name, Email: name + "@example.com", Password: "correct-horse"})
		req.NoError(err)
		if name == "sam" {
			me = sess.User.ID
		}
	}

	found, err := svc.Search(ctx, me, "SAM")
	req.NoError(err)
	req.Len(found, 4)
	for _, u := range found {
		req.NotEqual(me, u.ID)
	}

	found, err = svc.Search(ctx, me, "nobody")
	req.NoError(err)
	req.NotNil(found)
	req.Empty(found)

	u, err := svc.Me(ctx, me)
	req.NoError(err)
	req.Equal("sam", u.Username)
}

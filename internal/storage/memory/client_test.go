package memory

import (
	"context"
	"testing"
	"time"

	"github.com/chatroom/internal/model"
	"github.com/chatroom/internal/storage"
	"github.com/stretchr/testify/require"
)

func newChat(id string, participants ...string) *model.Chat {
	now := time.Now()
	return &model.Chat{
		ID:           id,
		Name:         "room " + id,
		IsGroupChat:  true,
		Admin:        participants[0],
		Participants: participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestChats_DirectKeyIsUnique(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := New()

	first := &model.Chat{ID: "c1", Participants: []string{"a", "b"}, DirectKey: model.DirectKey("a", "b")}
	second := &model.Chat{ID: "c2", Participants: []string{"b", "a"}, DirectKey: model.DirectKey("b", "a")}

	req.NoError(store.Chats().Create(ctx, first))
	req.ErrorIs(store.Chats().Create(ctx, second), storage.ErrDuplicate)

	found, err := store.Chats().FindDirect(ctx, "b", "a")
	req.NoError(err)
	req.Equal("c1", found.ID)
}

func TestChats_ReturnedValuesAreCopies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := New()
	req.NoError(store.Chats().Create(ctx, newChat("c1", "a", "b", "c")))

	got, err := store.Chats().GetByID(ctx, "c1")
	req.NoError(err)
	got.Participants[0] = "mallory"

	again, err := store.Chats().GetByID(ctx, "c1")
	req.NoError(err)
	req.Equal([]string{"a", "b", "c"}, again.Participants)
}

func TestChats_ParticipantMutations(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := New()
	req.NoError(store.Chats().Create(ctx, newChat("c1", "a", "b", "c")))

	// When a member is added twice
	_, err := store.Chats().AddParticipant(ctx, "c1", "d", time.Now())
	req.NoError(err)
	_, err = store.Chats().AddParticipant(ctx, "c1", "d", time.Now())
	req.ErrorIs(err, storage.ErrDuplicate)

	// When the admin is removed along with a promotion
	ch, err := store.Chats().RemoveParticipant(ctx, "c1", "a", "b", time.Now())
	req.NoError(err)
	req.Equal("b", ch.Admin)
	req.Equal([]string{"b", "c", "d"}, ch.Participants)

	// Then removing a non-member is reported as not found
	_, err = store.Chats().RemoveParticipant(ctx, "c1", "a", "b", time.Now())
	req.ErrorIs(err, storage.ErrNotFound)
}

func TestChats_ListForUserOrdersByRecency(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := New()
	req.NoError(store.Chats().Create(ctx, newChat("old", "a", "b", "c")))
	req.NoError(store.Chats().Create(ctx, newChat("new", "a", "b", "c")))
	req.NoError(store.Chats().Create(ctx, newChat("other", "x", "y", "z")))

	_, err := store.Chats().Rename(ctx, "old", "bumped", time.Now().Add(time.Minute))
	req.NoError(err)

	chats, err := store.Chats().ListForUser(ctx, "a")
	req.NoError(err)
	req.Len(chats, 2)
	req.Equal("old", chats[0].ID)
	req.Equal("new", chats[1].ID)
}

func TestChats_ReplaceLastMessageOnlyWhenUnchanged(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := New()
	req.NoError(store.Chats().Create(ctx, newChat("c1", "a", "b", "c")))

	m1, m2 := "m1", "m2"
	_, err := store.Chats().SetLastMessage(ctx, "c1", &m2, time.Now())
	req.NoError(err)

	ch, err := store.Chats().ReplaceLastMessage(ctx, "c1", "m1", nil, time.Now())
	req.NoError(err)
	req.Equal(&m2, ch.LastMessageID)

	ch, err = store.Chats().ReplaceLastMessage(ctx, "c1", "m2", &m1, time.Now())
	req.NoError(err)
	req.Equal(&m1, ch.LastMessageID)
}

func TestChats_DeleteDropsReadMarkers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := New()
	req.NoError(store.Chats().Create(ctx, newChat("c1", "a", "b", "c")))
	req.NoError(store.Chats().SetLastRead(ctx, "c1", "a", time.Now()))

	req.NoError(store.Chats().Delete(ctx, "c1"))
	req.ErrorIs(store.Chats().Delete(ctx, "c1"), storage.ErrNotFound)

	at, err := store.Chats().LastRead(ctx, "c1", "a")
	req.NoError(err)
	req.True(at.IsZero())
}

func TestMessages_OrderedByCreationWithStableTies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := New()
	at := time.Now()

	for _, id := range []string{"m1", "m2", "m3"} {
		req.NoError(store.Messages().Create(ctx, &model.Message{ID: id, ChatID: "c1", SenderID: "a", Content: id, CreatedAt: at}))
	}
	req.NoError(store.Messages().Create(ctx, &model.Message{ID: "m0", ChatID: "c1", SenderID: "b", Content: "early", CreatedAt: at.Add(-time.Second)}))

	list, err := store.Messages().ListByChat(ctx, "c1")
	req.NoError(err)
	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	req.Equal([]string{"m0", "m1", "m2", "m3"}, ids)

	latest, err := store.Messages().Latest(ctx, "c1")
	req.NoError(err)
	req.Equal("m3", latest.ID)
}

func TestMessages_DeleteByChatReturnsAttachments(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := New()

	req.NoError(store.Messages().Create(ctx, &model.Message{ID: "m1", ChatID: "c1", SenderID: "a", Attachments: []string{"/uploads/x.png"}, CreatedAt: time.Now()}))
	req.NoError(store.Messages().Create(ctx, &model.Message{ID: "m2", ChatID: "c1", SenderID: "a", Content: "hi", CreatedAt: time.Now()}))

	refs, err := store.Messages().DeleteByChat(ctx, "c1")
	req.NoError(err)
	req.Equal([]string{"/uploads/x.png"}, refs)

	_, err = store.Messages().Latest(ctx, "c1")
	req.ErrorIs(err, storage.ErrNotFound)
}

func TestMessages_CountSince(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := New()
	base := time.Now()

	req.NoError(store.Messages().Create(ctx, &model.Message{ID: "m1", ChatID: "c1", SenderID: "a", Content: "1", CreatedAt: base}))
	req.NoError(store.Messages().Create(ctx, &model.Message{ID: "m2", ChatID: "c1", SenderID: "b", Content: "2", CreatedAt: base.Add(time.Second)}))
	req.NoError(store.Messages().Create(ctx, &model.Message{ID: "m3", ChatID: "c1", SenderID: "b", Content: "3", CreatedAt: base.Add(2 * time.Second)}))

	n, err := store.Messages().CountSince(ctx, "c1", "a", base)
	req.NoError(err)
	req.Equal(2, n)
}

func TestUsers_SearchExcludesCallerAndLimits(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := New()
	for _, name := range []string{"alice", "alina", "albert", "alfred", "alvin", "bob"} {
		req.NoError(store.Users().Create(ctx, &model.User{ID: name, Username: name, Email: name + "@example.com"}))
	}
	req.ErrorIs(store.Users().Create(ctx, &model.User{ID: "dup", Username: "ALICE"}), storage.ErrDuplicate)

	found, err := store.Users().Search(ctx, "al", "alice", 4)
	req.NoError(err)
	req.Len(found, 4)
	for _, u := range found {
		req.NotEqual("alice", u.ID)
	}
}

func TestTokens_RevokeAndLoginLimit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tokens := NewTokens()

	req.NoError(tokens.Revoke(ctx, "jti", time.Minute))
	revoked, err := tokens.IsRevoked(ctx, "jti")
	req.NoError(err)
	req.True(revoked)

	for i := 0; i < loginMaxAttempts; i++ {
		ok, err := tokens.AllowLoginAttempt(ctx, "alice")
		req.NoError(err)
		req.True(ok)
	}
	ok, err := tokens.AllowLoginAttempt(ctx, "alice")
	req.NoError(err)
	req.False(ok)
}

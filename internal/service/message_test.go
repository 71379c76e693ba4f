package service

import (
	"context"
	"testing"
	"time"

	"github.com/chatroom/internal/apperror"
	"github.com/chatroom/internal/model"
	"github.com/chatroom/internal/storage"
	"github.com/chatroom/internal/storage/memory"
	"github.com/chatroom/internal/ws"
	"github.com/stretchr/testify/require"
)

func TestMessageService_SendValidation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	a, b, d := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "dave")
	direct, _, err := env.chats.GetOrCreateDirectChat(ctx, a, b)
	req.NoError(err)

	_, err = env.messages.Send(ctx, a, direct.Chat.ID, "   ", nil)
	req.Equal(apperror.KindBadRequest, apperror.KindOf(err))

	_, err = env.messages.Send(ctx, d, direct.Chat.ID, "hello", nil)
	req.Equal(apperror.KindNotFound, apperror.KindOf(err))

	_, err = env.messages.Send(ctx, a, "missing", "hello", nil)
	req.Equal(apperror.KindNotFound, apperror.KindOf(err))

	// attachments alone are enough
	msg, err := env.messages.Send(ctx, a, direct.Chat.ID, "", []string{"/uploads/a.png.gz"})
	req.NoError(err)
	req.Equal([]string{"/uploads/a.png.gz"}, msg.Attachments)
}

func TestMessageService_SendReachesJoinedOthersOnly(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	a, b, c, d := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol"), env.user(t, "dave")
	chat := env.group(t, a, b, c)
	connA := env.connect(a, chat.Chat.ID)
	connB := env.connect(b, chat.Chat.ID)
	connC := env.connect(c)
	// D subscribed to the room without being a participant
	connD := env.connect(d, chat.Chat.ID)
	for _, conn := range []*recordingConn{connA, connB, connC, connD} {
		conn.reset()
	}

	_, err := env.messages.Send(ctx, a, chat.Chat.ID, "hi", nil)
	req.NoError(err)

	req.Empty(connA.types())
	req.Equal([]ws.EventType{ws.EventMessageReceived}, connB.types())
	req.Empty(connC.types())
	req.Empty(connD.types())
}

func TestMessageService_ListOldestFirstWithSenders(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	a, b, d := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "dave")
	direct, _, err := env.chats.GetOrCreateDirectChat(ctx, a, b)
	req.NoError(err)

	for _, text := range []string{"one", "two", "three"} {
		_, err := env.messages.Send(ctx, a, direct.Chat.ID, text, nil)
		req.NoError(err)
	}
	_, err = env.messages.Send(ctx, b, direct.Chat.ID, "four", nil)
	req.NoError(err)

	msgs, err := env.messages.List(ctx, b, direct.Chat.ID)
	req.NoError(err)
	req.Len(msgs, 4)
	req.Equal([]string{"one", "two", "three", "four"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content, msgs[3].Content})
	req.Equal("alice", msgs[0].Sender.Username)
	req.Equal("bob", msgs[3].Sender.Username)

	_, err = env.messages.List(ctx, d, direct.Chat.ID)
	req.Equal(apperror.KindNotFound, apperror.KindOf(err))
}

func TestMessageService_DeleteRecomputesLastMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	a, b := env.user(t, "alice"), env.user(t, "bob")
	direct, _, err := env.chats.GetOrCreateDirectChat(ctx, a, b)
	req.NoError(err)
	connB := env.connect(b, direct.Chat.ID)

	first, err := env.messages.Send(ctx, a, direct.Chat.ID, "first", nil)
	req.NoError(err)
	second, err := env.messages.Send(ctx, a, direct.Chat.ID, "second", []string{"/uploads/s.txt.gz"})
	req.NoError(err)

	// B cannot delete A's message
	_, err = env.messages.Delete(ctx, b, direct.Chat.ID, second.ID)
	req.Equal(apperror.KindNotFound, apperror.KindOf(err))

	// When the latest message goes
	_, err = env.messages.Delete(ctx, a, direct.Chat.ID, second.ID)
	req.NoError(err)

	// Then the previous one becomes the last message
	chat, err := env.store.Chats().GetByID(ctx, direct.Chat.ID)
	req.NoError(err)
	req.NotNil(chat.LastMessageID)
	req.Equal(first.ID, *chat.LastMessageID)
	req.Equal([]string{"/uploads/s.txt.gz"}, env.files.all())
	ev, ok := connB.last(ws.EventMessageDeleted)
	req.True(ok)
	req.Equal(second.ID, ev.Payload.(*model.Message).ID)

	// and with nothing left there is no last message
	_, err = env.messages.Delete(ctx, a, direct.Chat.ID, first.ID)
	req.NoError(err)
	chat, err = env.store.Chats().GetByID(ctx, direct.Chat.ID)
	req.NoError(err)
	req.Nil(chat.LastMessageID)
}

func TestMessageService_DeleteOlderMessageKeepsLastMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	a, b := env.user(t, "alice"), env.user(t, "bob")
	direct, _, err := env.chats.GetOrCreateDirectChat(ctx, a, b)
	req.NoError(err)

	first, err := env.messages.Send(ctx, a, direct.Chat.ID, "first", nil)
	req.NoError(err)
	second, err := env.messages.Send(ctx, b, direct.Chat.ID, "second", nil)
	req.NoError(err)

	_, err = env.messages.Delete(ctx, a, direct.Chat.ID, first.ID)
	req.NoError(err)

	chat, err := env.store.Chats().GetByID(ctx, direct.Chat.ID)
	req.NoError(err)
	req.Equal(second.ID, *chat.LastMessageID)
}

func TestMessageService_DeleteChecksChat(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	a, b, c := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol")
	ab, _, err := env.chats.GetOrCreateDirectChat(ctx, a, b)
	req.NoError(err)
	ac, _, err := env.chats.GetOrCreateDirectChat(ctx, a, c)
	req.NoError(err)
	msg, err := env.messages.Send(ctx, a, ab.Chat.ID, "hello", nil)
	req.NoError(err)

	// the message exists, but not in this chat
	_, err = env.messages.Delete(ctx, a, ac.Chat.ID, msg.ID)
	req.Equal(apperror.KindNotFound, apperror.KindOf(err))

	_, err = env.messages.Delete(ctx, a, ab.Chat.ID, "missing")
	req.Equal(apperror.KindNotFound, apperror.KindOf(err))
}

func TestScenario_GroupMessageReachesJoinedMemberOnly(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	a, b, c := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol")

	// Given A creates "Team" with B and C
	team, err := env.chats.CreateGroupChat(ctx, a, "Team", []string{b, c})
	req.NoError(err)

	// And B connects and joins the room while C stays connected but not joined
	connB := env.connect(b, team.Chat.ID)
	connC := env.connect(c)

	// When A says hi
	sent, err := env.messages.Send(ctx, a, team.Chat.ID, "hi", nil)
	req.NoError(err)

	// Then B receives it with A as sender
	ev, ok := connB.last(ws.EventMessageReceived)
	req.True(ok)
	got := ev.Payload.(*model.Message)
	req.Equal("hi", got.Content)
	req.Equal(a, got.SenderID)
	req.Equal("alice", got.Sender.Username)

	// And C gets nothing live but sees the message on the next list fetch
	req.Empty(connC.types())
	views, err := env.chats.ListChats(ctx, c)
	req.NoError(err)
	req.Len(views, 1)
	req.NotNil(views[0].LastMessage)
	req.Equal(sent.ID, views[0].LastMessage.ID)
	req.Equal(sent.ID, *views[0].Chat.LastMessageID)
	req.WithinDuration(time.Now(), views[0].Chat.UpdatedAt, time.Minute)
}

// vanishingStore deletes the chat right before its last message is moved,
// as a concurrent chat deletion would.
type vanishingStore struct{ *memory.Client }

func (s vanishingStore) Chats() storage.ChatStore { return vanishingChats{s.Client.Chats()} }

type vanishingChats struct{ storage.ChatStore }

func (c vanishingChats) SetLastMessage(ctx context.Context, id string, messageID *string, at time.Time) (*model.Chat, error) {
	if err := c.ChatStore.Delete(ctx, id); err != nil {
		return nil, err
	}
	return c.ChatStore.SetLastMessage(ctx, id, messageID, at)
}

func TestMessageService_SendDropsMessageWhenChatVanishes(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	a, b := env.user(t, "alice"), env.user(t, "bob")
	direct, _, err := env.chats.GetOrCreateDirectChat(ctx, a, b)
	req.NoError(err)
	connB := env.connect(b, direct.Chat.ID)
	connB.reset()

	registry, rooms := ws.NewRegistry(), ws.NewRooms()
	messages := NewMessageService(vanishingStore{env.store}, ws.NewDispatcher(registry, rooms), env.files, time.Second)

	// When the chat disappears between the message write and the chat update
	msg, err := messages.Send(ctx, a, direct.Chat.ID, "hi", []string{"/uploads/a.png.gz"})

	// Then the caller sees NotFound and no message row is left behind
	req.Nil(msg)
	req.Equal(apperror.KindNotFound, apperror.KindOf(err))
	left, err := env.store.Messages().ListByChat(ctx, direct.Chat.ID)
	req.NoError(err)
	req.Empty(left)
	req.Empty(connB.types())
}

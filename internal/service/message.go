package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chatroom/internal/apperror"
	"github.com/chatroom/internal/logger"
	"github.com/chatroom/internal/model"
	"github.com/chatroom/internal/storage"
	"github.com/chatroom/internal/ws"
	"github.com/google/uuid"
)

const msgMessageNotFound = "message not found"

type MessageService struct {
	core
}

func NewMessageService(store storage.Store, notifier Notifier, files AttachmentRemover, timeout time.Duration) *MessageService {
	return &MessageService{core: newCore(store, notifier, files, timeout)}
}

// Send persists the message, moves the chat's last message pointer and
// notifies the other participants subscribed to the room.
// attachments are refs already saved by the caller.
func (s *MessageService) Send(ctx context.Context, requesterID, chatID, content string, attachments []string) (msg *model.Message, err error) {
	defer logger.DeferLogDuration("message.Send", time.Now())()
	defer observe("message.Send", time.Now(), &err)
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, apperror.BadRequest("message content or attachments required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	chat, err := s.store.Chats().GetByID(ctx, chatID)
	if err != nil {
		return nil, notFoundOr("message.Send", err, msgChatNotFound)
	}
	if !chat.HasParticipant(requesterID) {
		return nil, apperror.Forbidden(msgChatNotFound)
	}

	now := s.now()
	msg = &model.Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		SenderID:    requesterID,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}
	if err := s.store.Messages().Create(ctx, msg); err != nil {
		return nil, apperror.Internal("message.Send", err)
	}
	chat, err = s.store.Chats().SetLastMessage(ctx, chatID, &msg.ID, now)
	if err != nil {
		// chat deleted between the check and the write; the message must not outlive the failure
		if delErr := s.store.Messages().Delete(ctx, msg.ID); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			logger.Errorf("message.Send %s: drop orphan: %v", msg.ID, delErr)
		}
		return nil, notFoundOr("message.Send", err, msgChatNotFound)
	}
	if err := s.attachSender(ctx, msg); err != nil {
		return nil, apperror.Internal("message.Send", err)
	}

	s.notifier.ToRoom(chatID, ws.OutgoingMessage{Type: ws.EventMessageReceived, Payload: msg}, ws.AmongUsers(chat.Others(requesterID)))
	return msg, nil
}

// List returns the chat history oldest first.
func (s *MessageService) List(ctx context.Context, requesterID, chatID string) (msgs []model.Message, err error) {
	defer logger.DeferLogDuration("message.List", time.Now())()
	defer observe("message.List", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	chat, err := s.store.Chats().GetByID(ctx, chatID)
	if err != nil {
		return nil, notFoundOr("message.List", err, msgChatNotFound)
	}
	if !chat.HasParticipant(requesterID) {
		return nil, apperror.Forbidden(msgChatNotFound)
	}
	msgs, err = s.store.Messages().ListByChat(ctx, chatID)
	if err != nil {
		return nil, apperror.Internal("message.List", err)
	}
	if err := s.attachSenders(ctx, msgs); err != nil {
		return nil, apperror.Internal("message.List", err)
	}
	return msgs, nil
}

// Delete removes the requester's own message; the chat falls back to the
// previous message when the deleted one was its last.
func (s *MessageService) Delete(ctx context.Context, requesterID, chatID, messageID string) (msg *model.Message, err error) {
	defer logger.DeferLogDuration("message.Delete", time.Now())()
	defer observe("message.Delete", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	chat, err := s.store.Chats().GetByID(ctx, chatID)
	if err != nil {
		return nil, notFoundOr("message.Delete", err, msgChatNotFound)
	}
	if !chat.HasParticipant(requesterID) {
		return nil, apperror.Forbidden(msgChatNotFound)
	}
	msg, err = s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, notFoundOr("message.Delete", err, msgMessageNotFound)
	}
	if msg.ChatID != chatID || msg.SenderID != requesterID {
		return nil, apperror.Forbidden(msgMessageNotFound)
	}
	if err := s.store.Messages().Delete(ctx, messageID); err != nil {
		return nil, notFoundOr("message.Delete", err, msgMessageNotFound)
	}

	if chat.LastMessageID != nil && *chat.LastMessageID == messageID {
		var next *string
		latest, err := s.store.Messages().Latest(ctx, chatID)
		switch {
		case err == nil:
			next = &latest.ID
		case !errors.Is(err, storage.ErrNotFound):
			logger.Errorf("message.Delete %s: latest: %v", chatID, err)
		}
		if _, err := s.store.Chats().ReplaceLastMessage(ctx, chatID, messageID, next, s.now()); err != nil {
			logger.Errorf("message.Delete %s: last message: %v", chatID, err)
		}
	}
	s.removeFiles(msg.Attachments)

	if err := s.attachSender(ctx, msg); err != nil {
		logger.Errorf("message.Delete %s: sender: %v", messageID, err)
	}
	s.notifier.ToRoom(chatID, ws.OutgoingMessage{Type: ws.EventMessageDeleted, Payload: msg}, ws.AmongUsers(chat.Others(requesterID)))
	return msg, nil
}

func (s *MessageService) attachSender(ctx context.Context, msg *model.Message) error {
	one := []model.Message{*msg}
	if err := s.attachSenders(ctx, one); err != nil {
		return err
	}
	msg.Sender = one[0].Sender
	return nil
}

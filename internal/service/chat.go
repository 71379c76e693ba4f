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
	"github.com/samber/lo"
)

const minGroupMembers = 3

const (
	msgChatNotFound  = "chat not found"
	msgGroupNotFound = "group chat does not exist"
	msgUserNotFound  = "user not found"
)

type ChatService struct {
	core
}

func NewChatService(store storage.Store, notifier Notifier, files AttachmentRemover, timeout time.Duration) *ChatService {
	return &ChatService{core: newCore(store, notifier, files, timeout)}
}

// GetOrCreateDirectChat returns the one-on-one chat of the pair; created reports whether it is new.
func (s *ChatService) GetOrCreateDirectChat(ctx context.Context, requesterID, otherID string) (view *model.ChatView, created bool, err error) {
	defer logger.DeferLogDuration("chat.GetOrCreateDirectChat", time.Now())()
	defer observe("chat.GetOrCreateDirectChat", time.Now(), &err)
	if otherID == requesterID {
		return nil, false, apperror.InvalidOperation("cannot create a chat with yourself")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.Users().GetByID(ctx, otherID); err != nil {
		return nil, false, notFoundOr("chat.GetOrCreateDirectChat", err, msgUserNotFound)
	}
	existing, err := s.store.Chats().FindDirect(ctx, requesterID, otherID)
	switch {
	case err == nil:
		view, err = s.chatView(ctx, existing, requesterID)
		if err != nil {
			return nil, false, apperror.Internal("chat.GetOrCreateDirectChat", err)
		}
		return view, false, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, false, apperror.Internal("chat.GetOrCreateDirectChat", err)
	}

	now := s.now()
	chat := &model.Chat{
		ID:           uuid.NewString(),
		Name:         "One on one chat",
		Admin:        requesterID,
		Participants: []string{requesterID, otherID},
		DirectKey:    model.DirectKey(requesterID, otherID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Chats().Create(ctx, chat); err != nil {
		if !errors.Is(err, storage.ErrDuplicate) {
			return nil, false, apperror.Internal("chat.GetOrCreateDirectChat", err)
		}
		// lost the race: another request created the pair's chat
		existing, err := s.store.Chats().FindDirect(ctx, requesterID, otherID)
		if err != nil {
			return nil, false, apperror.Internal("chat.GetOrCreateDirectChat", err)
		}
		view, err = s.chatView(ctx, existing, requesterID)
		if err != nil {
			return nil, false, apperror.Internal("chat.GetOrCreateDirectChat", err)
		}
		return view, false, nil
	}

	view, err = s.chatView(ctx, chat, "")
	if err != nil {
		return nil, false, apperror.Internal("chat.GetOrCreateDirectChat", err)
	}
	s.notifier.ToUsers(chat.Participants, ws.OutgoingMessage{Type: ws.EventNewChat, Payload: view})
	return view, true, nil
}

func (s *ChatService) CreateGroupChat(ctx context.Context, requesterID, name string, participantIDs []string) (view *model.ChatView, err error) {
	defer logger.DeferLogDuration("chat.CreateGroupChat", time.Now())()
	defer observe("chat.CreateGroupChat", time.Now(), &err)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.BadRequest("group name is required")
	}
	members := lo.Uniq(append([]string{requesterID}, lo.Compact(participantIDs)...))
	if len(members) < minGroupMembers {
		return nil, apperror.InvalidArgument("a group chat needs at least 3 members")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	users, err := s.store.Users().GetByIDs(ctx, members)
	if err != nil {
		return nil, apperror.Internal("chat.CreateGroupChat", err)
	}
	if len(users) != len(members) {
		return nil, apperror.NotFound(msgUserNotFound)
	}

	now := s.now()
	chat := &model.Chat{
		ID:           uuid.NewString(),
		Name:         name,
		IsGroupChat:  true,
		Admin:        requesterID,
		Participants: members,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Chats().Create(ctx, chat); err != nil {
		return nil, apperror.Internal("chat.CreateGroupChat", err)
	}
	view, err = s.chatView(ctx, chat, "")
	if err != nil {
		return nil, apperror.Internal("chat.CreateGroupChat", err)
	}
	s.notifier.ToUsers(chat.Participants, ws.OutgoingMessage{Type: ws.EventNewChat, Payload: view})
	return view, nil
}

// GetChat returns any chat the requester participates in.
func (s *ChatService) GetChat(ctx context.Context, requesterID, chatID string) (view *model.ChatView, err error) {
	defer observe("chat.GetChat", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	chat, err := s.memberChat(ctx, requesterID, chatID, msgChatNotFound)
	if err != nil {
		return nil, err
	}
	view, err = s.chatView(ctx, chat, requesterID)
	if err != nil {
		return nil, apperror.Internal("chat.GetChat", err)
	}
	return view, nil
}

// GetGroupChat is GetChat restricted to group chats.
func (s *ChatService) GetGroupChat(ctx context.Context, requesterID, chatID string) (view *model.ChatView, err error) {
	defer observe("chat.GetGroupChat", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	chat, err := s.memberChat(ctx, requesterID, chatID, msgGroupNotFound)
	if err != nil {
		return nil, err
	}
	if !chat.IsGroupChat {
		return nil, apperror.NotFound(msgGroupNotFound)
	}
	view, err = s.chatView(ctx, chat, requesterID)
	if err != nil {
		return nil, apperror.Internal("chat.GetGroupChat", err)
	}
	return view, nil
}

func (s *ChatService) ListChats(ctx context.Context, requesterID string) (views []model.ChatView, err error) {
	defer logger.DeferLogDuration("chat.ListChats", time.Now())()
	defer observe("chat.ListChats", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	chats, err := s.store.Chats().ListForUser(ctx, requesterID)
	if err != nil {
		return nil, apperror.Internal("chat.ListChats", err)
	}
	views, err = s.chatViews(ctx, chats, requesterID)
	if err != nil {
		return nil, apperror.Internal("chat.ListChats", err)
	}
	return views, nil
}

func (s *ChatService) RenameGroupChat(ctx context.Context, requesterID, chatID, name string) (view *model.ChatView, err error) {
	defer logger.DeferLogDuration("chat.RenameGroupChat", time.Now())()
	defer observe("chat.RenameGroupChat", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.adminGroup(ctx, requesterID, chatID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.BadRequest("group name is required")
	}
	chat, err := s.store.Chats().Rename(ctx, chatID, name, s.now())
	if err != nil {
		return nil, notFoundOr("chat.RenameGroupChat", err, msgGroupNotFound)
	}
	view, err = s.chatView(ctx, chat, "")
	if err != nil {
		return nil, apperror.Internal("chat.RenameGroupChat", err)
	}
	s.notifier.ToUsers(chat.Participants, ws.OutgoingMessage{Type: ws.EventUpdateGroupName, Payload: view})
	return view, nil
}

func (s *ChatService) AddParticipant(ctx context.Context, requesterID, chatID, userID string) (view *model.ChatView, err error) {
	defer logger.DeferLogDuration("chat.AddParticipant", time.Now())()
	defer observe("chat.AddParticipant", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	chat, err := s.adminGroup(ctx, requesterID, chatID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		return nil, notFoundOr("chat.AddParticipant", err, msgUserNotFound)
	}
	if chat.HasParticipant(userID) {
		return nil, apperror.Conflict("user is already in the group")
	}
	chat, err = s.store.Chats().AddParticipant(ctx, chatID, userID, s.now())
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return nil, apperror.Conflict("user is already in the group")
	case err != nil:
		return nil, notFoundOr("chat.AddParticipant", err, msgGroupNotFound)
	}
	view, err = s.chatView(ctx, chat, "")
	if err != nil {
		return nil, apperror.Internal("chat.AddParticipant", err)
	}
	s.notifier.ToUser(userID, ws.OutgoingMessage{Type: ws.EventNewChat, Payload: view})
	s.notifier.ToUsers(chat.Participants, ws.OutgoingMessage{
		Type:    ws.EventParticipantAdded,
		Payload: ws.ParticipantPayload{ChatID: chat.ID, UserID: userID, ActorID: requesterID, Chat: view},
	})
	return view, nil
}

func (s *ChatService) RemoveParticipant(ctx context.Context, requesterID, chatID, userID string) (view *model.ChatView, err error) {
	defer logger.DeferLogDuration("chat.RemoveParticipant", time.Now())()
	defer observe("chat.RemoveParticipant", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	chat, err := s.adminGroup(ctx, requesterID, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, apperror.InvalidArgument("user is not in the group")
	}
	if userID == requesterID {
		return nil, apperror.InvalidArgument("admin cannot remove themselves, leave the group instead")
	}
	chat, err = s.store.Chats().RemoveParticipant(ctx, chatID, userID, chat.Admin, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.InvalidArgument("user is not in the group")
		}
		return nil, apperror.Internal("chat.RemoveParticipant", err)
	}
	view, err = s.chatView(ctx, chat, "")
	if err != nil {
		return nil, apperror.Internal("chat.RemoveParticipant", err)
	}
	s.notifier.Evict(chat.ID, userID)
	s.notifier.ToUser(userID, ws.OutgoingMessage{Type: ws.EventLeaveChat, Payload: ws.RoomPayload{ChatID: chat.ID}})
	s.notifier.ToUsers(chat.Participants, ws.OutgoingMessage{
		Type:    ws.EventParticipantLeft,
		Payload: ws.ParticipantPayload{ChatID: chat.ID, UserID: userID, ActorID: requesterID, Chat: view},
	})
	return view, nil
}

// LeaveGroupChat removes the requester. An admin hands the group to the earliest
// remaining participant; the last member leaving deletes the chat.
func (s *ChatService) LeaveGroupChat(ctx context.Context, requesterID, chatID string) (err error) {
	defer logger.DeferLogDuration("chat.LeaveGroupChat", time.Now())()
	defer observe("chat.LeaveGroupChat", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	chat, err := s.memberChat(ctx, requesterID, chatID, msgGroupNotFound)
	if err != nil {
		return err
	}
	if !chat.IsGroupChat {
		return apperror.NotFound(msgGroupNotFound)
	}

	remaining := chat.Others(requesterID)
	if len(remaining) == 0 {
		if err := s.deleteCascade(ctx, chat); err != nil {
			return err
		}
		s.notifier.ToUser(requesterID, ws.OutgoingMessage{Type: ws.EventLeaveChat, Payload: ws.RoomPayload{ChatID: chat.ID}})
		return nil
	}

	admin := chat.Admin
	if admin == requesterID {
		admin = remaining[0]
	}
	updated, err := s.store.Chats().RemoveParticipant(ctx, chatID, requesterID, admin, s.now())
	if err != nil {
		return notFoundOr("chat.LeaveGroupChat", err, msgGroupNotFound)
	}
	if admin != chat.Admin {
		logger.Infof("chat %s: admin %s left, %s promoted", chat.ID, requesterID, admin)
	}
	view, err := s.chatView(ctx, updated, "")
	if err != nil {
		return apperror.Internal("chat.LeaveGroupChat", err)
	}
	s.notifier.Evict(chat.ID, requesterID)
	s.notifier.ToUser(requesterID, ws.OutgoingMessage{Type: ws.EventLeaveChat, Payload: ws.RoomPayload{ChatID: chat.ID}})
	s.notifier.ToUsers(updated.Participants, ws.OutgoingMessage{
		Type:    ws.EventParticipantLeft,
		Payload: ws.ParticipantPayload{ChatID: chat.ID, UserID: requesterID, ActorID: requesterID, IsLeave: true, Chat: view},
	})
	return nil
}

// DeleteChat: any participant may delete a direct chat, only the admin a group.
func (s *ChatService) DeleteChat(ctx context.Context, requesterID, chatID string) (err error) {
	defer logger.DeferLogDuration("chat.DeleteChat", time.Now())()
	defer observe("chat.DeleteChat", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	chat, err := s.memberChat(ctx, requesterID, chatID, msgChatNotFound)
	if err != nil {
		return err
	}
	if chat.IsGroupChat && chat.Admin != requesterID {
		return apperror.Forbidden(msgGroupNotFound)
	}
	return s.deleteAndNotify(ctx, chat)
}

// DeleteGroupChat only accepts group chats.
func (s *ChatService) DeleteGroupChat(ctx context.Context, requesterID, chatID string) (err error) {
	defer observe("chat.DeleteGroupChat", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	chat, err := s.adminGroup(ctx, requesterID, chatID)
	if err != nil {
		return err
	}
	return s.deleteAndNotify(ctx, chat)
}

// DeleteDirectChat only accepts one-on-one chats.
func (s *ChatService) DeleteDirectChat(ctx context.Context, requesterID, chatID string) (err error) {
	defer observe("chat.DeleteDirectChat", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	chat, err := s.memberChat(ctx, requesterID, chatID, msgChatNotFound)
	if err != nil {
		return err
	}
	if chat.IsGroupChat {
		return apperror.NotFound(msgChatNotFound)
	}
	return s.deleteAndNotify(ctx, chat)
}

func (s *ChatService) MarkRead(ctx context.Context, requesterID, chatID string) (err error) {
	defer observe("chat.MarkRead", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.memberChat(ctx, requesterID, chatID, msgChatNotFound); err != nil {
		return err
	}
	if err := s.store.Chats().SetLastRead(ctx, chatID, requesterID, s.now()); err != nil {
		return notFoundOr("chat.MarkRead", err, msgChatNotFound)
	}
	return nil
}

func (s *ChatService) deleteAndNotify(ctx context.Context, chat *model.Chat) error {
	if err := s.deleteCascade(ctx, chat); err != nil {
		return err
	}
	s.notifier.ToUsers(chat.Participants, ws.OutgoingMessage{Type: ws.EventLeaveChat, Payload: ws.RoomPayload{ChatID: chat.ID}})
	return nil
}

// deleteCascade drops the chat row first, then its messages and their files.
// Read markers go with the chat row.
func (s *ChatService) deleteCascade(ctx context.Context, chat *model.Chat) error {
	if err := s.store.Chats().Delete(ctx, chat.ID); err != nil {
		return notFoundOr("chat.deleteCascade", err, msgChatNotFound)
	}
	refs, err := s.store.Messages().DeleteByChat(ctx, chat.ID)
	if err != nil {
		// the chat row is gone, leftover messages are unreachable
		logger.Errorf("chat.deleteCascade %s: messages: %v", chat.ID, err)
	}
	s.removeFiles(refs)
	s.notifier.CloseRoom(chat.ID)
	return nil
}

// memberChat loads a chat the requester belongs to; anything else reads as NotFound.
func (s *ChatService) memberChat(ctx context.Context, requesterID, chatID, msg string) (*model.Chat, error) {
	chat, err := s.store.Chats().GetByID(ctx, chatID)
	if err != nil {
		return nil, notFoundOr("chat.memberChat", err, msg)
	}
	if !chat.HasParticipant(requesterID) {
		return nil, apperror.Forbidden(msg)
	}
	return chat, nil
}

func (s *ChatService) adminGroup(ctx context.Context, requesterID, chatID string) (*model.Chat, error) {
	chat, err := s.store.Chats().GetByID(ctx, chatID)
	if err != nil {
		return nil, notFoundOr("chat.adminGroup", err, msgGroupNotFound)
	}
	if !chat.IsGroupChat || chat.Admin != requesterID {
		return nil, apperror.Forbidden(msgGroupNotFound)
	}
	return chat, nil
}

// Package service implements chat, message and user operations.
// Every operation writes to the store first and publishes events after.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/chatroom/internal/apperror"
	"github.com/chatroom/internal/metrics"
	"github.com/chatroom/internal/storage"
	"github.com/chatroom/internal/ws"
)

const defaultStoreTimeout = 5 * time.Second

// Notifier is the part of the realtime layer services publish through.
type Notifier interface {
	ToUser(userID string, ev ws.OutgoingMessage) int
	ToUsers(userIDs []string, ev ws.OutgoingMessage) int
	ToRoom(chatID string, ev ws.OutgoingMessage, filter ws.Filter) int
	Evict(chatID string, userIDs ...string)
	CloseRoom(chatID string)
}

// AttachmentRemover drops stored files; failures are the remover's to log.
type AttachmentRemover interface {
	RemoveAll(refs []string)
}

type core struct {
	store    storage.Store
	notifier Notifier
	files    AttachmentRemover
	timeout  time.Duration
	now      func() time.Time
}

func newCore(store storage.Store, notifier Notifier, files AttachmentRemover, timeout time.Duration) core {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return core{store: store, notifier: notifier, files: files, timeout: timeout, now: func() time.Time { return time.Now().UTC() }}
}

func (c *core) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *core) removeFiles(refs []string) {
	if c.files != nil && len(refs) > 0 {
		c.files.RemoveAll(refs)
	}
}

// observe: defer observe("chat.Create", time.Now(), &err)
func observe(op string, start time.Time, err *error) {
	metrics.ObserveOperation(op, start)
	if *err != nil {
		metrics.OperationErrors.WithLabelValues(op, apperror.KindOf(*err).String()).Inc()
	}
}

// notFoundOr maps storage.ErrNotFound to a client NotFound, anything else to Internal.
func notFoundOr(op string, err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperror.NotFound(msg)
	}
	return apperror.Internal(op, err)
}

// Package memory is an in-process store for tests and store_driver=memory.
package memory

import (
	"sync"
	"time"

	"github.com/chatroom/internal/model"
	"github.com/chatroom/internal/storage"
)

type readKey struct {
	chatID string
	userID string
}

type storedMessage struct {
	msg *model.Message
	seq uint64
}

// Client keeps every collection behind one lock so that multi-collection
// reads observe a consistent snapshot.
type Client struct {
	mu        sync.RWMutex
	users     map[string]*model.User
	usernames map[string]string
	chats     map[string]*model.Chat
	direct    map[string]string
	messages  map[string]*storedMessage
	byChat    map[string][]string
	reads     map[readKey]time.Time
	seq       uint64
}

var _ storage.Store = (*Client)(nil)

func New() *Client {
	return &Client{
		users:     make(map[string]*model.User),
		usernames: make(map[string]string),
		chats:     make(map[string]*model.Chat),
		direct:    make(map[string]string),
		messages:  make(map[string]*storedMessage),
		byChat:    make(map[string][]string),
		reads:     make(map[readKey]time.Time),
	}
}

func (c *Client) Users() storage.UserStore       { return userStore{c} }
func (c *Client) Chats() storage.ChatStore       { return chatStore{c} }
func (c *Client) Messages() storage.MessageStore { return messageStore{c} }

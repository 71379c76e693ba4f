package model

import (
	"slices"
	"time"
)

type Chat struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	IsGroupChat   bool      `json:"is_group_chat"`
	Admin         string    `json:"admin"`
	Participants  []string  `json:"participants"`
	LastMessageID *string   `json:"last_message_id,omitempty"`
	DirectKey     string    `json:"-"` // empty for groups
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *Chat) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// Others returns the participants except userID, preserving order.
func (c *Chat) Others(userID string) []string {
	out := make([]string, 0, len(c.Participants))
	for _, id := range c.Participants {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns a copy that shares no slices with c.
func (c *Chat) Clone() *Chat {
	cp := *c
	cp.Participants = slices.Clone(c.Participants)
	if c.LastMessageID != nil {
		id := *c.LastMessageID
		cp.LastMessageID = &id
	}
	return &cp
}

// DirectKey is the order-independent identity of a one-on-one chat.
func DirectKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

type ChatView struct {
	Chat        Chat         `json:"chat"`
	LastMessage *Message     `json:"last_message,omitempty"`
	Members     []UserPublic `json:"members"`
	UnreadCount int          `json:"unread_count"`
}

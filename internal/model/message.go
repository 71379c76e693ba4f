package model

import (
	"slices"
	"time"
)

type Message struct {
	ID          string      `json:"id"`
	ChatID      string      `json:"chat_id"`
	SenderID    string      `json:"sender_id"`
	Content     string      `json:"content"`
	Attachments []string    `json:"attachments"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Sender      *UserPublic `json:"sender,omitempty"`
}

func (m *Message) Clone() *Message {
	cp := *m
	cp.Attachments = slices.Clone(m.Attachments)
	if cp.Attachments == nil {
		cp.Attachments = []string{}
	}
	if m.Sender != nil {
		s := *m.Sender
		cp.Sender = &s
	}
	return &cp
}

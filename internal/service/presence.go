package service

import (
	"context"
	"fmt"

	"github.com/chatroom/internal/storage"
	"github.com/samber/lo"
)

// PeerDirectory answers "who shares a chat with this user" for presence events.
type PeerDirectory struct {
	chats storage.ChatStore
}

func NewPeerDirectory(chats storage.ChatStore) *PeerDirectory {
	return &PeerDirectory{chats: chats}
}

func (p *PeerDirectory) ChatPeers(ctx context.Context, userID string) ([]string, error) {
	chats, err := p.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("peerDirectory.ChatPeers: %w", err)
	}
	var peers []string
	for _, ch := range chats {
		peers = append(peers, ch.Others(userID)...)
	}
	return lo.Uniq(peers), nil
}

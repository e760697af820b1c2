package orch

import (
	"context"
	"time"

	"github.com/dkeye/polyglot/internal/app/chat"
	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
)

// Publish sends text from the connection into its current room. The sender
// name and language come from the connection's identity, never the client.
func (o *Orchestrator) Publish(ctx context.Context, id core.ConnID, roomID domain.RoomID, text string, sentAt time.Time) (chat.Receipt, error) {
	p, ok := o.Registry.Participant(id)
	if !ok {
		return chat.Receipt{}, ErrUnknownConn
	}
	if cur, ok := o.Rooms.RoomOf(id); !ok || cur != roomID {
		return chat.Receipt{}, ErrNotInRoom
	}
	rcpt, err := o.Chat.Publish(ctx, roomID, p, text, sentAt)
	for _, slow := range rcpt.Delivery.Dropped {
		o.applyPolicy(slow, roomID)
	}
	return rcpt, err
}

// History returns the room log as seen by viewer; an empty viewer gets
// every language variant.
func (o *Orchestrator) History(ctx context.Context, roomID domain.RoomID, viewer domain.UserID) ([]domain.Message, error) {
	return o.Chat.History(ctx, roomID, viewer)
}

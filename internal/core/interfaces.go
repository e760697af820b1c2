package core

import (
	"context"
	"errors"

	"github.com/dkeye/polyglot/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrUserNotFound = errors.New("user not found")
	ErrNotMember    = errors.New("not a member of the room")
)

// Directory is the account/room service. It is authoritative for room
// membership and language preferences; the real-time layer only caches
// which connections are subscribed where.
type Directory interface {
	// RoomMembers returns members in membership order, offline ones included.
	RoomMembers(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error)
	Participant(ctx context.Context, userID domain.UserID) (domain.Participant, error)
	SetLanguage(ctx context.Context, userID domain.UserID, language string) error
	// Authorize returns nil when userID may subscribe to roomID.
	Authorize(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
}

// Translator turns text from one language code into another.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// MessageLog is the append-only durable store of message records.
type MessageLog interface {
	Append(ctx context.Context, msg domain.Message) error
	// ListByRoom returns records oldest first.
	ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error)
}

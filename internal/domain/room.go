package domain

import (
	"errors"
	"time"
)

const (
	GeneralRoomName = "General Room"
	MaxRoomNameLen  = 64

	// MinPrivateMembers is the smallest private room that can be created.
	MinPrivateMembers = 2
)

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
	ErrTooFewMembers   = errors.New("private room needs at least two members")
)

type RoomID string

type Room struct {
	ID        RoomID    `json:"id"`
	Name      string    `json:"name"`
	Private   bool      `json:"isPrivate"`
	Members   []UserID  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

func ValidateRoomName(name string) error {
	if name == "" {
		return ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return ErrRoomNameTooLong
	}
	return nil
}

// Package protocol defines the real-time event protocol between clients and the server.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Event types from client to server
const (
	TypeJoinRoom    = "join-room"
	TypeLeaveRoom   = "leave-room"
	TypeSetLanguage = "set-language"
	TypeWhoAmI      = "whoami"
	TypePing        = "ping"
)

// Event types relayed in both directions
const (
	TypeRoomMessage  = "room-message"
	TypeVideoOffer   = "video-offer"
	TypeVideoAnswer  = "video-answer"
	TypeICECandidate = "ice-candidate"
	TypeCallEnded    = "call-ended"
)

// Event types from server to client
const (
	TypeSession      = "session"
	TypeRoomJoined   = "room-joined"
	TypeRoomLeft     = "room-left"
	TypeCallIncoming = "call-incoming"
	TypeCallBusy     = "call-busy"
	TypePong         = "pong"
	TypeError        = "error"
)

// Error codes
const (
	ErrorBadPayload      = "bad_payload"
	ErrorUnknownType     = "unknown_type"
	ErrorNotAuthorized   = "not_authorized"
	ErrorRoomNotFound    = "room_not_found"
	ErrorNotInRoom       = "not_in_room"
	ErrorNotSaved        = "message_not_saved"
	ErrorRateLimited     = "rate_limited"
	ErrorInvalidLanguage = "invalid_language"
	ErrorInternal        = "internal_error"
)

// Envelope is used for parsing incoming events before type dispatch.
type Envelope struct {
	Type string `json:"type"`
}

type JoinRoom struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId" validate:"required,max=64"`
}

type RoomJoined struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Live   int    `json:"live"`
}

type RoomLeft struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
}

// RoomMessage is both the client submission and the broadcast. SentAt is
// unix milliseconds; Sender is ignored on input.
type RoomMessage struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId" validate:"required,max=64"`
	Message string `json:"message" validate:"required,max=4000"`
	Sender  string `json:"sender"`
	SentAt  int64  `json:"sentAt" validate:"gte=0"`
}

// Offer, answer and candidate payloads are opaque to the server and are
// relayed byte-for-byte.
type VideoOffer struct {
	Type  string          `json:"type"`
	Offer json.RawMessage `json:"offer" validate:"required"`
	To    string          `json:"to" validate:"required,max=36"`
	From  string          `json:"from"`
}

type VideoAnswer struct {
	Type   string          `json:"type"`
	Answer json.RawMessage `json:"answer" validate:"required"`
	To     string          `json:"to" validate:"required,max=36"`
	From   string          `json:"from"`
}

type ICECandidate struct {
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate" validate:"required"`
	To        string          `json:"to" validate:"required,max=36"`
	From      string          `json:"from"`
}

type CallEnded struct {
	Type string `json:"type"`
	To   string `json:"to" validate:"required,max=36"`
	From string `json:"from"`
}

type CallIncoming struct {
	Type string `json:"type"`
	From string `json:"from"`
}

type CallBusy struct {
	Type string `json:"type"`
	To   string `json:"to"`
}

type SetLanguage struct {
	Type     string `json:"type"`
	Language string `json:"language" validate:"required,max=8"`
}

// Session is sent right after connect and on whoami.
type Session struct {
	Type       string             `json:"type"`
	UserID     string             `json:"userId"`
	Name       string             `json:"name"`
	Language   string             `json:"language"`
	Room       string             `json:"room,omitempty"`
	ICEServers []webrtc.ICEServer `json:"iceServers,omitempty"`
}

type Pong struct {
	Type string `json:"type"`
}

type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewRoomMessage(m domain.Message) RoomMessage {
	return RoomMessage{
		Type:    TypeRoomMessage,
		RoomID:  string(m.RoomID),
		Message: m.Text,
		Sender:  m.Sender,
		SentAt:  m.SentAt.UnixMilli(),
	}
}

func NewCallEnded(from, to domain.UserID) CallEnded {
	return CallEnded{Type: TypeCallEnded, From: string(from), To: string(to)}
}

func NewError(code string) Error {
	return Error{Type: TypeError, Error: code}
}

// SentAtTime converts the wire timestamp; zero means "not set".
func SentAtTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Encode marshals an event into a frame.
func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}

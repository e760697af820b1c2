package domain

import "time"

// MessageID groups the verbatim record and its translated variants.
type MessageID string

// Message is one persisted record. A published message yields one verbatim
// record (Audience empty) plus one record per member reading another language.
type Message struct {
	ID        string    `json:"id"`
	MessageID MessageID `json:"messageId"`
	RoomID    RoomID    `json:"roomId"`
	SenderID  UserID    `json:"senderId"`
	Sender    string    `json:"sender"`
	Text      string    `json:"message"`
	Language  string    `json:"language"`
	Audience  UserID    `json:"audience,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

func (m Message) Verbatim() bool { return m.Audience == "" }

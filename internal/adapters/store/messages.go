package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/polyglot/internal/domain"
	"gorm.io/gorm"
)

// messageRow is one persisted record. Seq keeps insertion order for
// records sharing a timestamp.
type messageRow struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	ID        string    `gorm:"size:36;uniqueIndex;not null"`
	MessageID string    `gorm:"size:36;index;not null"`
	RoomID    string    `gorm:"size:64;index:idx_messages_room_sent,priority:1;not null"`
	SenderID  string    `gorm:"size:36;not null"`
	Sender    string    `gorm:"size:80;not null"`
	Text      string    `gorm:"not null"`
	Language  string    `gorm:"size:8;not null"`
	Audience  string    `gorm:"size:36;index"`
	SentAt    time.Time `gorm:"index:idx_messages_room_sent,priority:2;not null"`
}

func (messageRow) TableName() string {
	return "messages"
}

func toMessageRow(m domain.Message) messageRow {
	return messageRow{
		ID:        m.ID,
		MessageID: string(m.MessageID),
		RoomID:    string(m.RoomID),
		SenderID:  string(m.SenderID),
		Sender:    m.Sender,
		Text:      m.Text,
		Language:  m.Language,
		Audience:  string(m.Audience),
		SentAt:    m.SentAt.UTC(),
	}
}

func (r messageRow) domain() domain.Message {
	return domain.Message{
		ID:        r.ID,
		MessageID: domain.MessageID(r.MessageID),
		RoomID:    domain.RoomID(r.RoomID),
		SenderID:  domain.UserID(r.SenderID),
		Sender:    r.Sender,
		Text:      r.Text,
		Language:  r.Language,
		Audience:  domain.UserID(r.Audience),
		SentAt:    r.SentAt.UTC(),
	}
}

// MessageLog is the append-only message store.
type MessageLog struct {
	db *gorm.DB
}

func NewMessageLog(db *gorm.DB) *MessageLog {
	return &MessageLog{db: db}
}

func (l *MessageLog) Append(ctx context.Context, m domain.Message) error {
	row := toMessageRow(m)
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListByRoom returns every record of the room, oldest first.
func (l *MessageLog) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	var rows []messageRow
	err := l.db.WithContext(ctx).
		Where("room_id = ?", string(roomID)).
		Order("sent_at ASC").Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	out := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.domain())
	}
	return out, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	FirstName string `gorm:"size:36;not null"`
	LastName  string `gorm:"size:36;not null"`
	Language  string `gorm:"size:8;not null;default:en"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) domain() domain.User {
	return domain.User{
		ID:        domain.UserID(r.ID),
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Language:  r.Language,
	}
}

type roomRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:64;not null"`
	Private   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (roomRow) TableName() string { return "rooms" }

// memberRow links a user to a room. ID gives membership order.
type memberRow struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	RoomID string `gorm:"size:36;not null;uniqueIndex:idx_room_members_pair,priority:1"`
	UserID string `gorm:"size:36;not null;uniqueIndex:idx_room_members_pair,priority:2"`
}

func (memberRow) TableName() string { return "room_members" }

// Directory is the account and room service: users, their language
// preference, rooms and who belongs to them.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) CreateUser(ctx context.Context, u *domain.User) error {
	row := userRow{ID: string(u.ID), FirstName: u.FirstName, LastName: u.LastName, Language: u.Language}
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	log.Info().Str("module", "adapters.store").Str("user", row.ID).Msg("user created")
	return nil
}

func (d *Directory) User(ctx context.Context, uid domain.UserID) (domain.User, error) {
	var row userRow
	if err := d.db.WithContext(ctx).First(&row, "id = ?", string(uid)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, core.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	return row.domain(), nil
}

func (d *Directory) Participant(ctx context.Context, uid domain.UserID) (domain.Participant, error) {
	u, err := d.User(ctx, uid)
	if err != nil {
		return domain.Participant{}, err
	}
	return domain.NewParticipant(&u), nil
}

func (d *Directory) SetLanguage(ctx context.Context, uid domain.UserID, language string) error {
	res := d.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", string(uid)).Update("language", language)
	if err := res.Error; err != nil {
		return fmt.Errorf("failed to update language: %w", err)
	}
	if res.RowsAffected == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

// RoomMembers returns the room's members in the order they joined.
func (d *Directory) RoomMembers(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	var rows []userRow
	err := d.db.WithContext(ctx).
		Model(&userRow{}).
		Joins("JOIN room_members ON room_members.user_id = users.id").
		Where("room_members.room_id = ?", string(roomID)).
		Order("room_members.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list room members: %w", err)
	}
	out := make([]domain.Participant, 0, len(rows))
	for _, row := range rows {
		u := row.domain()
		out = append(out, domain.NewParticipant(&u))
	}
	return out, nil
}

// Authorize lets a member into a private room and anyone into an open
// room. Open rooms enroll the user so later messages reach them in their
// language.
func (d *Directory) Authorize(ctx context.Context, roomID domain.RoomID, uid domain.UserID) error {
	room, err := d.room(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Private {
		var n int64
		err := d.db.WithContext(ctx).Model(&memberRow{}).
			Where("room_id = ? AND user_id = ?", room.ID, string(uid)).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if n == 0 {
			return core.ErrNotMember
		}
		return nil
	}
	return d.enroll(d.db.WithContext(ctx), room.ID, uid)
}

func (d *Directory) enroll(tx *gorm.DB, roomID string, uid domain.UserID) error {
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&memberRow{RoomID: roomID, UserID: string(uid)}).Error
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (d *Directory) room(ctx context.Context, roomID domain.RoomID) (roomRow, error) {
	var row roomRow
	if err := d.db.WithContext(ctx).First(&row, "id = ?", string(roomID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return roomRow{}, core.ErrRoomNotFound
		}
		return roomRow{}, fmt.Errorf("failed to find room: %w", err)
	}
	return row, nil
}

// Room returns the room with its member ids.
func (d *Directory) Room(ctx context.Context, roomID domain.RoomID) (domain.Room, error) {
	row, err := d.room(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	return d.withMembers(d.db.WithContext(ctx), row)
}

func (d *Directory) withMembers(tx *gorm.DB, row roomRow) (domain.Room, error) {
	var ids []string
	err := tx.Model(&memberRow{}).Where("room_id = ?", row.ID).Order("id ASC").Pluck("user_id", &ids).Error
	if err != nil {
		return domain.Room{}, fmt.Errorf("failed to list members: %w", err)
	}
	room := domain.Room{ID: domain.RoomID(row.ID), Name: row.Name, Private: row.Private, CreatedAt: row.CreatedAt, Members: make([]domain.UserID, 0, len(ids))}
	for _, id := range ids {
		room.Members = append(room.Members, domain.UserID(id))
	}
	return room, nil
}

// CreateRoom adds a room. Private rooms need at least two distinct members,
// all of them known users.
func (d *Directory) CreateRoom(ctx context.Context, name string, private bool, members []domain.UserID) (domain.Room, error) {
	if err := domain.ValidateRoomName(name); err != nil {
		return domain.Room{}, err
	}
	members = dedupe(members)
	if private && len(members) < domain.MinPrivateMembers {
		return domain.Room{}, domain.ErrTooFewMembers
	}

	row := roomRow{ID: uuid.NewString(), Name: name, Private: private}
	var room domain.Room
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(members) > 0 {
			var n int64
			if err := tx.Model(&userRow{}).Where("id IN ?", toStrings(members)).Count(&n).Error; err != nil {
				return fmt.Errorf("failed to check members: %w", err)
			}
			if int(n) != len(members) {
				return core.ErrUserNotFound
			}
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		for _, uid := range members {
			if err := d.enroll(tx, row.ID, uid); err != nil {
				return err
			}
		}
		var err error
		room, err = d.withMembers(tx, row)
		return err
	})
	if err != nil {
		return domain.Room{}, err
	}
	log.Info().Str("module", "adapters.store").Str("room", row.ID).Bool("private", private).Int("members", len(members)).Msg("room created")
	return room, nil
}

// EnsureGeneralRoom returns the open lobby room, creating it on first start.
func (d *Directory) EnsureGeneralRoom(ctx context.Context) (domain.Room, error) {
	var row roomRow
	err := d.db.WithContext(ctx).Where("name = ? AND private = ?", domain.GeneralRoomName, false).Order("created_at ASC").First(&row).Error
	switch {
	case err == nil:
		return d.withMembers(d.db.WithContext(ctx), row)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return d.CreateRoom(ctx, domain.GeneralRoomName, false, nil)
	default:
		return domain.Room{}, fmt.Errorf("failed to find general room: %w", err)
	}
}

// RoomsFor lists the open rooms plus the private rooms uid belongs to.
func (d *Directory) RoomsFor(ctx context.Context, uid domain.UserID) ([]domain.Room, error) {
	var rows []roomRow
	err := d.db.WithContext(ctx).
		Where("private = ? OR id IN (?)", false,
			d.db.Model(&memberRow{}).Select("room_id").Where("user_id = ?", string(uid))).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	tx := d.db.WithContext(ctx)
	out := make([]domain.Room, 0, len(rows))
	for _, row := range rows {
		room, err := d.withMembers(tx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, nil
}

func dedupe(ids []domain.UserID) []domain.UserID {
	seen := make(map[domain.UserID]bool, len(ids))
	out := make([]domain.UserID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func toStrings(ids []domain.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

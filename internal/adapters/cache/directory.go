// Package cache puts a Redis read-through layer in front of the directory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Directory caches member lists and participants. Any Redis failure is
// logged and the wrapped directory answers instead.
type Directory struct {
	inner  core.Directory
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewDirectory(inner core.Directory, client *redis.Client, prefix string, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Directory{inner: inner, client: client, prefix: prefix, ttl: ttl}
}

// NewClient parses a redis:// URL and checks the server answers.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (d *Directory) membersKey(roomID domain.RoomID) string {
	return d.prefix + "members:" + string(roomID)
}

func (d *Directory) userKey(uid domain.UserID) string {
	return d.prefix + "user:" + string(uid)
}

func (d *Directory) RoomMembers(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	if members, ok := d.cachedMembers(ctx, roomID); ok {
		return members, nil
	}
	members, err := d.inner.RoomMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	d.storeMembers(ctx, roomID, members)
	return members, nil
}

// cachedMembers needs the id list and every participant to be present.
func (d *Directory) cachedMembers(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, bool) {
	raw, err := d.client.Get(ctx, d.membersKey(roomID)).Bytes()
	if err != nil {
		d.logErr(err, "get members")
		return nil, false
	}
	var ids []domain.UserID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false
	}
	if len(ids) == 0 {
		return []domain.Participant{}, true
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = d.userKey(id)
	}
	vals, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		d.logErr(err, "mget participants")
		return nil, false
	}
	out := make([]domain.Participant, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		var p domain.Participant
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, false
		}
		out = append(out, p)
	}
	return out, true
}

func (d *Directory) storeMembers(ctx context.Context, roomID domain.RoomID, members []domain.Participant) {
	ids := make([]domain.UserID, len(members))
	pipe := d.client.TxPipeline()
	for i, p := range members {
		ids[i] = p.ID
		if b, err := json.Marshal(p); err == nil {
			pipe.Set(ctx, d.userKey(p.ID), b, d.ttl)
		}
	}
	if b, err := json.Marshal(ids); err == nil {
		pipe.Set(ctx, d.membersKey(roomID), b, d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		d.logErr(err, "store members")
	}
}

func (d *Directory) Participant(ctx context.Context, uid domain.UserID) (domain.Participant, error) {
	raw, err := d.client.Get(ctx, d.userKey(uid)).Bytes()
	if err == nil {
		var p domain.Participant
		if json.Unmarshal(raw, &p) == nil {
			return p, nil
		}
	} else {
		d.logErr(err, "get participant")
	}

	p, err := d.inner.Participant(ctx, uid)
	if err != nil {
		return domain.Participant{}, err
	}
	if b, err := json.Marshal(p); err == nil {
		if err := d.client.Set(ctx, d.userKey(uid), b, d.ttl).Err(); err != nil {
			d.logErr(err, "set participant")
		}
	}
	return p, nil
}

func (d *Directory) SetLanguage(ctx context.Context, uid domain.UserID, language string) error {
	if err := d.inner.SetLanguage(ctx, uid, language); err != nil {
		return err
	}
	d.forget(ctx, d.userKey(uid))
	return nil
}

// Authorize may enroll the user, so the room's member list is dropped.
func (d *Directory) Authorize(ctx context.Context, roomID domain.RoomID, uid domain.UserID) error {
	if err := d.inner.Authorize(ctx, roomID, uid); err != nil {
		return err
	}
	d.forget(ctx, d.membersKey(roomID))
	return nil
}

func (d *Directory) forget(ctx context.Context, key string) {
	if err := d.client.Del(ctx, key).Err(); err != nil {
		d.logErr(err, "invalidate")
	}
}

func (d *Directory) logErr(err error, op string) {
	if errors.Is(err, redis.Nil) {
		return
	}
	log.Warn().Err(err).Str("module", "adapters.cache").Str("op", op).Msg("redis unavailable, using directory")
}

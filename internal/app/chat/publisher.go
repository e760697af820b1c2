// Package chat is the room message fan-out engine: live broadcast, durable
// verbatim record, and per-member translated records.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/dkeye/polyglot/internal/metrics"
	"github.com/dkeye/polyglot/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotSaved wraps a message log failure for the verbatim record.
	ErrNotSaved = errors.New("message not saved")
	// ErrClosed is returned by Publish once Close has been called.
	ErrClosed = errors.New("publisher closed")
)

// Broadcaster delivers a frame to the live subscribers of a room.
type Broadcaster interface {
	Broadcast(roomID domain.RoomID, except domain.UserID, f core.Frame) core.PublishResult
}

type Options struct {
	// TranslateTimeout bounds each translation request.
	TranslateTimeout time.Duration
	// LookupTimeout bounds the room member lookup.
	LookupTimeout time.Duration
	// Concurrency caps parallel translations per message.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.TranslateTimeout <= 0 {
		o.TranslateTimeout = 5 * time.Second
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = 5 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

// Receipt is what Publish reports back: the verbatim record and how the
// live broadcast went.
type Receipt struct {
	Message  domain.Message
	Delivery core.PublishResult
}

type Publisher struct {
	rooms      Broadcaster
	directory  core.Directory
	translator core.Translator
	messages   core.MessageLog
	metrics    metrics.Collector
	opts       Options

	// mu guards closed; wg.Add only happens under mu while not closed.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewPublisher(rooms Broadcaster, dir core.Directory, tr core.Translator, ml core.MessageLog, m metrics.Collector, opts Options) *Publisher {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Publisher{
		rooms:      rooms,
		directory:  dir,
		translator: tr,
		messages:   ml,
		metrics:    m,
		opts:       opts.withDefaults(),
		now:        time.Now,
	}
}

// Publish broadcasts text to the room's live subscribers (sender excluded),
// then writes the verbatim record. It returns once that record is durable;
// translated records are written in the background afterwards. After Close
// nothing is broadcast or stored.
func (p *Publisher) Publish(ctx context.Context, roomID domain.RoomID, sender domain.Participant, text string, sentAt time.Time) (Receipt, error) {
	if !p.acquire() {
		return Receipt{}, fmt.Errorf("%w: %w", ErrNotSaved, ErrClosed)
	}
	defer p.wg.Done()

	if sentAt.IsZero() {
		sentAt = p.now()
	}
	msg := domain.Message{
		ID:        uuid.NewString(),
		MessageID: domain.MessageID(uuid.NewString()),
		RoomID:    roomID,
		SenderID:  sender.ID,
		Sender:    sender.DisplayName(),
		Text:      text,
		Language:  sender.Lang(),
		SentAt:    sentAt.UTC(),
	}
	logger := log.With().Str("module", "app.chat").Str("room", string(roomID)).Str("message", string(msg.MessageID)).Logger()

	rcpt := Receipt{Message: msg}
	if f, err := protocol.Encode(protocol.NewRoomMessage(msg)); err != nil {
		logger.Error().Err(err).Msg("encode broadcast")
	} else {
		rcpt.Delivery = p.rooms.Broadcast(roomID, sender.ID, f)
		p.metrics.MessageBroadcast(rcpt.Delivery.SendTo, len(rcpt.Delivery.Dropped))
	}

	if err := p.messages.Append(ctx, msg); err != nil {
		p.metrics.RecordFailed(metrics.RecordVerbatim)
		logger.Error().Err(err).Msg("persist verbatim record")
		return rcpt, fmt.Errorf("%w: %w", ErrNotSaved, err)
	}
	p.metrics.RecordPersisted(metrics.RecordVerbatim)

	// The publish itself still holds the group, so this Add cannot race Close.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.storeVariants(context.WithoutCancel(ctx), msg, &logger)
	}()
	return rcpt, nil
}

// storeVariants writes one record per member whose language differs from
// the source. Each distinct language is translated once.
func (p *Publisher) storeVariants(ctx context.Context, msg domain.Message, logger *zerolog.Logger) {
	lookupCtx, cancel := context.WithTimeout(ctx, p.opts.LookupTimeout)
	members, err := p.directory.RoomMembers(lookupCtx, msg.RoomID)
	cancel()
	if err != nil {
		logger.Warn().Err(err).Msg("member lookup failed, skipping translations")
		return
	}

	byLang := make(map[string][]domain.UserID)
	seen := make(map[domain.UserID]bool, len(members))
	for _, m := range members {
		if m.ID == msg.SenderID || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		if lang := m.Lang(); lang != msg.Language {
			byLang[lang] = append(byLang[lang], m.ID)
		}
	}
	if len(byLang) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for lang, audience := range byLang {
		g.Go(func() error {
			text, textLang := p.translate(ctx, msg, lang, logger)
			for _, uid := range audience {
				rec := msg
				rec.ID = uuid.NewString()
				rec.Text = text
				rec.Language = textLang
				rec.Audience = uid
				if err := p.messages.Append(ctx, rec); err != nil {
					p.metrics.RecordFailed(metrics.RecordTranslated)
					logger.Error().Err(err).Str("audience", string(uid)).Msg("persist translated record")
					continue
				}
				p.metrics.RecordPersisted(metrics.RecordTranslated)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// translate never fails: on error or timeout it returns the source text.
// The call runs in its own goroutine so a translator that ignores ctx
// cannot hold the record back past the timeout.
func (p *Publisher) translate(ctx context.Context, msg domain.Message, target string, logger *zerolog.Logger) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.TranslateTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := p.translator.Translate(ctx, msg.Text, msg.Language, target)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			p.metrics.Translation(metrics.TranslationOK)
			return r.text, target
		}
		logger.Warn().Err(r.err).Str("target", target).Msg("translation failed, keeping source text")
	case <-ctx.Done():
		logger.Warn().Err(ctx.Err()).Str("target", target).Msg("translation timed out, keeping source text")
	}
	p.metrics.Translation(metrics.TranslationFallback)
	return msg.Text, msg.Language
}

func (p *Publisher) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	return true
}

// Wait blocks until in-flight publishes and background translated writes
// have finished.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

// Close stops accepting publishes and drains the in-flight ones, so the
// message log can be closed afterwards.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

// History returns the room's records oldest first. With an empty viewer
// every language variant is returned; otherwise each message appears once,
// as the viewer's own variant when one exists.
func (p *Publisher) History(ctx context.Context, roomID domain.RoomID, viewer domain.UserID) ([]domain.Message, error) {
	records, err := p.messages.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room messages: %w", err)
	}
	if viewer == "" {
		return records, nil
	}

	mine := make(map[domain.MessageID]domain.Message)
	for _, rec := range records {
		if rec.Audience == viewer {
			mine[rec.MessageID] = rec
		}
	}
	out := make([]domain.Message, 0, len(records))
	for _, rec := range records {
		if !rec.Verbatim() {
			continue
		}
		if v, ok := mine[rec.MessageID]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

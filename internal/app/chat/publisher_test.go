package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/dkeye/polyglot/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRooms struct {
	mu     sync.Mutex
	frames []core.Frame
	except []domain.UserID
}

func (r *recordingRooms) Broadcast(_ domain.RoomID, except domain.UserID, f core.Frame) core.PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	r.except = append(r.except, except)
	return core.PublishResult{SendTo: 1}
}

type memLog struct {
	mu      sync.Mutex
	records []domain.Message
	fail    error
}

func (l *memLog) Append(_ context.Context, m domain.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	l.records = append(l.records, m)
	return nil
}

func (l *memLog) ListByRoom(_ context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Message
	for _, m := range l.records {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (l *memLog) audience() map[domain.UserID]domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[domain.UserID]domain.Message)
	for _, m := range l.records {
		if !m.Verbatim() {
			out[m.Audience] = m
		}
	}
	return out
}

type fakeDirectory struct {
	members []domain.Participant
	err     error
}

func (d *fakeDirectory) RoomMembers(context.Context, domain.RoomID) ([]domain.Participant, error) {
	return d.members, d.err
}

func (d *fakeDirectory) Participant(_ context.Context, uid domain.UserID) (domain.Participant, error) {
	for _, m := range d.members {
		if m.ID == uid {
			return m, nil
		}
	}
	return domain.Participant{}, errors.New("not found")
}

func (d *fakeDirectory) SetLanguage(context.Context, domain.UserID, string) error { return nil }

func (d *fakeDirectory) Authorize(context.Context, domain.RoomID, domain.UserID) error { return nil }

type translatorFunc func(ctx context.Context, text, source, target string) (string, error)

func (f translatorFunc) Translate(ctx context.Context, text, source, target string) (string, error) {
	return f(ctx, text, source, target)
}

type countingTranslator struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingTranslator) Translate(_ context.Context, text, _, target string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[target]++
	return "[" + target + "] " + text, nil
}

var (
	ann = domain.Participant{ID: "ann", Name: "Ann Lee", Language: "en"}
	bob = domain.Participant{ID: "bob", Name: "Bob Ray", Language: "fr"}
	cat = domain.Participant{ID: "cat", Name: "Cat Sun", Language: "fr"}
	dan = domain.Participant{ID: "dan", Name: "Dan Ito", Language: "en"}
)

func TestPublishBroadcastsAndTranslates(t *testing.T) {
	rooms := &recordingRooms{}
	ml := &memLog{}
	tr := translatorFunc(func(_ context.Context, text, source, target string) (string, error) {
		assert.Equal(t, "en", source)
		assert.Equal(t, "fr", target)
		return "bonjour", nil
	})
	p := NewPublisher(rooms, &fakeDirectory{members: []domain.Participant{ann, bob}}, tr, ml, nil, Options{})

	sentAt := time.UnixMilli(1_700_000_000_000)
	rcpt, err := p.Publish(context.Background(), "R1", ann, "hello", sentAt)
	require.NoError(t, err)
	p.Wait()

	require.Len(t, rooms.frames, 1)
	assert.Equal(t, domain.UserID("ann"), rooms.except[0])
	var ev protocol.RoomMessage
	require.NoError(t, json.Unmarshal(rooms.frames[0], &ev))
	assert.Equal(t, "hello", ev.Message)
	assert.Equal(t, "Ann Lee", ev.Sender)
	assert.Equal(t, sentAt.UnixMilli(), ev.SentAt)

	assert.True(t, rcpt.Message.Verbatim())
	assert.Equal(t, "en", rcpt.Message.Language)

	records, err := ml.ListByRoom(context.Background(), "R1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "hello", records[0].Text)
	assert.True(t, records[0].Verbatim())
	assert.Equal(t, "bonjour", records[1].Text)
	assert.Equal(t, "fr", records[1].Language)
	assert.Equal(t, domain.UserID("bob"), records[1].Audience)
	assert.Equal(t, rcpt.Message.MessageID, records[1].MessageID)
	assert.Equal(t, records[0].SentAt, records[1].SentAt)
}

func TestPublishOneVariantPerMember(t *testing.T) {
	ml := &memLog{}
	tr := &countingTranslator{}
	members := []domain.Participant{ann, bob, cat, dan, bob}
	p := NewPublisher(&recordingRooms{}, &fakeDirectory{members: members}, tr, ml, nil, Options{})

	_, err := p.Publish(context.Background(), "R1", ann, "hello", time.Time{})
	require.NoError(t, err)
	p.Wait()

	variants := ml.audience()
	var got []string
	for uid := range variants {
		got = append(got, string(uid))
	}
	sort.Strings(got)
	assert.Equal(t, []string{"bob", "cat"}, got)
	assert.Equal(t, "[fr] hello", variants["cat"].Text)
	assert.Equal(t, 1, tr.calls["fr"])
	assert.Len(t, ml.records, 3)
}

func TestPublishTranslatorFailureKeepsSourceText(t *testing.T) {
	ml := &memLog{}
	tr := translatorFunc(func(context.Context, string, string, string) (string, error) {
		return "", errors.New("down")
	})
	p := NewPublisher(&recordingRooms{}, &fakeDirectory{members: []domain.Participant{ann, bob}}, tr, ml, nil, Options{})

	_, err := p.Publish(context.Background(), "R1", ann, "hello", time.Time{})
	require.NoError(t, err)
	p.Wait()

	rec, ok := ml.audience()["bob"]
	require.True(t, ok)
	assert.Equal(t, "hello", rec.Text)
	assert.Equal(t, "en", rec.Language)
}

func TestPublishTranslatorTimeout(t *testing.T) {
	ml := &memLog{}
	release := make(chan struct{})
	defer close(release)
	tr := translatorFunc(func(context.Context, string, string, string) (string, error) {
		<-release
		return "trop tard", nil
	})
	p := NewPublisher(&recordingRooms{}, &fakeDirectory{members: []domain.Participant{ann, bob}}, tr, ml, nil,
		Options{TranslateTimeout: 20 * time.Millisecond})

	_, err := p.Publish(context.Background(), "R1", ann, "hello", time.Time{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("translated record blocked on a hung translator")
	}
	assert.Equal(t, "hello", ml.audience()["bob"].Text)
}

func TestPublishPersistenceFailure(t *testing.T) {
	rooms := &recordingRooms{}
	ml := &memLog{fail: errors.New("disk gone")}
	p := NewPublisher(rooms, &fakeDirectory{members: []domain.Participant{ann, bob}}, &countingTranslator{}, ml, nil, Options{})

	_, err := p.Publish(context.Background(), "R1", ann, "hello", time.Time{})
	require.ErrorIs(t, err, ErrNotSaved)
	p.Wait()

	assert.Len(t, rooms.frames, 1, "live broadcast happens before persistence")
}

func TestPublishDirectoryFailureSkipsTranslation(t *testing.T) {
	ml := &memLog{}
	tr := &countingTranslator{}
	p := NewPublisher(&recordingRooms{}, &fakeDirectory{err: errors.New("unreachable")}, tr, ml, nil, Options{})

	_, err := p.Publish(context.Background(), "R1", ann, "hello", time.Time{})
	require.NoError(t, err)
	p.Wait()

	assert.Len(t, ml.records, 1)
	assert.Empty(t, tr.calls)
}

func TestHistoryViewer(t *testing.T) {
	ml := &memLog{}
	p := NewPublisher(&recordingRooms{}, &fakeDirectory{members: []domain.Participant{ann, bob}}, &countingTranslator{}, ml, nil, Options{})

	ctx := context.Background()
	_, err := p.Publish(ctx, "R1", ann, "one", time.UnixMilli(1000))
	require.NoError(t, err)
	p.Wait()
	_, err = p.Publish(ctx, "R1", bob, "deux", time.UnixMilli(2000))
	require.NoError(t, err)
	p.Wait()

	all, err := p.History(ctx, "R1", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	forBob, err := p.History(ctx, "R1", "bob")
	require.NoError(t, err)
	require.Len(t, forBob, 2)
	assert.Equal(t, "[fr] one", forBob[0].Text)
	assert.Equal(t, "deux", forBob[1].Text)

	forAnn, err := p.History(ctx, "R1", "ann")
	require.NoError(t, err)
	require.Len(t, forAnn, 2)
	assert.Equal(t, "one", forAnn[0].Text)
	assert.Equal(t, "[en] deux", forAnn[1].Text)
}

func TestCloseDrainsTranslatedWrites(t *testing.T) {
	ml := &memLog{}
	release := make(chan struct{})
	tr := translatorFunc(func(_ context.Context, text, _, target string) (string, error) {
		<-release
		return target + ":" + text, nil
	})
	rooms := &recordingRooms{}
	p := NewPublisher(rooms, &fakeDirectory{members: []domain.Participant{ann, bob}}, tr, ml, nil, Options{})

	_, err := p.Publish(context.Background(), "R1", ann, "hello", time.Time{})
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned before the translated record was written")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not drain")
	}
	assert.Equal(t, "fr:hello", ml.audience()["bob"].Text)

	_, err = p.Publish(context.Background(), "R1", ann, "late", time.Time{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, ErrNotSaved)
	assert.Len(t, rooms.frames, 1)
}

func TestCloseWhilePublishing(t *testing.T) {
	ml := &memLog{}
	p := NewPublisher(&recordingRooms{}, &fakeDirectory{members: []domain.Participant{ann, bob}}, &countingTranslator{}, ml, nil, Options{})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := p.Publish(context.Background(), "R1", ann, "hi", time.Time{})
				if errors.Is(err, ErrClosed) {
					return
				}
				assert.NoError(t, err)
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}()
	}
	p.Close()
	wg.Wait()

	// Every accepted publish has its verbatim and translated record once Close returns.
	ml.mu.Lock()
	defer ml.mu.Unlock()
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, ml.records, 2*sent)
}

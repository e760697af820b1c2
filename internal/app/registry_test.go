package app

import (
	"testing"

	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolvesEveryDevice(t *testing.T) {
	r := NewRegistry()
	ann := domain.Participant{ID: "ann", Name: "Ann Lee"}
	id1 := r.Register(&fakeConn{}, ann, nil)
	id2 := r.Register(&fakeConn{}, ann, nil)
	require.NotEqual(t, id1, id2)

	conns := r.Resolve("ann")
	assert.Len(t, conns, 2)
	assert.True(t, r.Online("ann"))
	assert.Empty(t, r.Resolve("bob"))
	assert.Equal(t, 2, r.Count())
}

func TestRegistryUnregisterOnce(t *testing.T) {
	r := NewRegistry()
	id := r.Register(&fakeConn{}, domain.Participant{ID: "ann"}, nil)

	p, ok := r.Unregister(id)
	require.True(t, ok)
	assert.Equal(t, domain.UserID("ann"), p.ID)

	_, ok = r.Unregister(id)
	assert.False(t, ok)
	assert.False(t, r.Online("ann"))
	assert.Zero(t, r.Count())
}

func TestRegistryUpdateLanguageAllDevices(t *testing.T) {
	r := NewRegistry()
	id1 := r.Register(&fakeConn{}, domain.Participant{ID: "ann", Language: "en"}, nil)
	id2 := r.Register(&fakeConn{}, domain.Participant{ID: "ann", Language: "en"}, nil)

	r.UpdateLanguage("ann", "fr")

	for _, id := range []core.ConnID{id1, id2} {
		p, ok := r.Participant(id)
		require.True(t, ok)
		assert.Equal(t, "fr", p.Language)
	}
}

func TestRegistryCancelCallsCancelFunc(t *testing.T) {
	r := NewRegistry()
	called := false
	id := r.Register(&fakeConn{}, domain.Participant{ID: "ann"}, func() { called = true })

	assert.True(t, r.Cancel(id))
	assert.True(t, called)
	assert.False(t, r.Cancel("missing"))
}

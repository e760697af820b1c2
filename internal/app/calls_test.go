package app

import (
	"testing"

	"github.com/dkeye/polyglot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallLifecycle(t *testing.T) {
	cb := NewCallBook()

	c, created, err := cb.Offer("ann", "a1", "bob")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.CallOffered, c.State)
	assert.Equal(t, 1, cb.Count())

	c, ok := cb.Answer("bob", "b1", "ann")
	require.True(t, ok)
	assert.Equal(t, domain.CallActive, c.State)
	assert.Equal(t, "b1", string(c.CalleeConn))

	got, ok := cb.Between("bob", "ann")
	require.True(t, ok)
	assert.Equal(t, c.ID, got.ID)

	ended, ok := cb.End("bob", "ann")
	require.True(t, ok)
	assert.Equal(t, domain.CallEnded, ended.State)

	_, ok = cb.End("ann", "bob")
	assert.False(t, ok)
	assert.Zero(t, cb.Count())
}

func TestOfferBusy(t *testing.T) {
	cb := NewCallBook()
	_, _, err := cb.Offer("ann", "a1", "bob")
	require.NoError(t, err)

	_, _, err = cb.Offer("cat", "c1", "bob")
	assert.ErrorIs(t, err, ErrBusy)
	_, _, err = cb.Offer("ann", "a1", "cat")
	assert.ErrorIs(t, err, ErrBusy)

	_, _, err = cb.Offer("ann", "a1", "ann")
	assert.ErrorIs(t, err, ErrSelfCall)
}

func TestOfferRenegotiationKeepsCall(t *testing.T) {
	cb := NewCallBook()
	first, _, err := cb.Offer("ann", "a1", "bob")
	require.NoError(t, err)
	cb.Answer("bob", "b1", "ann")

	again, created, err := cb.Offer("bob", "b1", "ann")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, domain.CallActive, again.State)
}

func TestAnswerOnlyFromCallee(t *testing.T) {
	cb := NewCallBook()
	_, _, err := cb.Offer("ann", "a1", "bob")
	require.NoError(t, err)

	_, ok := cb.Answer("ann", "a1", "bob")
	assert.False(t, ok)

	c, ok := cb.Between("ann", "bob")
	require.True(t, ok)
	assert.Equal(t, domain.CallOffered, c.State)
	assert.Empty(t, c.CalleeConn)
}

func TestAnswerWithoutCall(t *testing.T) {
	cb := NewCallBook()
	_, ok := cb.Answer("bob", "b1", "ann")
	assert.False(t, ok)
}

func TestDropConnection(t *testing.T) {
	online := map[domain.UserID]bool{"ann": true, "bob": true}
	isOnline := func(uid domain.UserID) bool { return online[uid] }

	t.Run("caller connection ends call", func(t *testing.T) {
		cb := NewCallBook()
		_, _, err := cb.Offer("ann", "a1", "bob")
		require.NoError(t, err)

		c, ok := cb.DropConnection("a1", "ann", isOnline)
		require.True(t, ok)
		assert.Equal(t, domain.UserID("bob"), c.Peer("ann"))
	})

	t.Run("unrelated device keeps call", func(t *testing.T) {
		cb := NewCallBook()
		_, _, err := cb.Offer("ann", "a1", "bob")
		require.NoError(t, err)

		_, ok := cb.DropConnection("a2", "ann", isOnline)
		assert.False(t, ok)
		assert.Equal(t, 1, cb.Count())
	})

	t.Run("ringing callee going offline ends call", func(t *testing.T) {
		cb := NewCallBook()
		_, _, err := cb.Offer("ann", "a1", "bob")
		require.NoError(t, err)

		offline := func(uid domain.UserID) bool { return uid != "bob" }
		c, ok := cb.DropConnection("b1", "bob", offline)
		require.True(t, ok)
		assert.Equal(t, domain.UserID("ann"), c.Peer("bob"))
	})
}

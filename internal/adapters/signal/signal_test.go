package signal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dkeye/polyglot/internal/app"
	"github.com/dkeye/polyglot/internal/app/chat"
	"github.com/dkeye/polyglot/internal/app/orch"
	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/dkeye/polyglot/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func TestRoomRateLimiterPerIdentity(t *testing.T) {
	rl := NewRoomRateLimiter(0.001, 2)
	assert.True(t, rl.Allow("ann"))
	assert.True(t, rl.Allow("ann"))
	assert.False(t, rl.Allow("ann"))
	assert.True(t, rl.Allow("bob"))
}

func TestRoomRateLimiterDisabled(t *testing.T) {
	rl := NewRoomRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("ann"))
	}
	var nilLimiter *RoomRateLimiter
	assert.True(t, nilLimiter.Allow("ann"))
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.ErrRoomNotFound, protocol.ErrorRoomNotFound},
		{core.ErrNotMember, protocol.ErrorNotAuthorized},
		{orch.ErrNotInRoom, protocol.ErrorNotInRoom},
		{fmt.Errorf("%w: %w", chat.ErrNotSaved, errors.New("disk")), protocol.ErrorNotSaved},
		{domain.ErrLanguageInvalid, protocol.ErrorInvalidLanguage},
		{app.ErrSelfCall, protocol.ErrorBadPayload},
		{errors.New("boom"), protocol.ErrorInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorCode(tt.err), tt.err.Error())
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, int64(32768), o.ReadLimit)
	assert.Equal(t, 32, o.SendBuffer)
	assert.Greater(t, o.pongWait(), o.PingPeriod)
}

package app

import (
	"fmt"

	"github.com/dkeye/polyglot/internal/core"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a connection whose send queue is full.
type Policy interface {
	OnBackPressure(conn core.ConnID, roomID string) BackpressureAction
}

// SimplePolicy disconnects slow consumers; they recover missed messages
// from history after reconnecting.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.ConnID, string) BackpressureAction {
	return KickMember
}

// DropPolicy keeps slow consumers connected; frames that did not fit are lost.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.ConnID, string) BackpressureAction {
	return DropFrame
}

// NewPolicy maps the slow_consumer setting to a policy.
func NewPolicy(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return DropPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown slow consumer policy %q", name)
	}
}

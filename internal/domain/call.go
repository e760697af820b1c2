package domain

// CallState is the lifecycle of a call between two participants.
type CallState string

const (
	CallIdle    CallState = "idle"
	CallOffered CallState = "offered"
	CallActive  CallState = "active"
	CallEnded   CallState = "ended"
)

func (s CallState) Live() bool {
	return s == CallOffered || s == CallActive
}

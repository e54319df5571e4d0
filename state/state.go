// state/state.go
package state

import (
	"sync/atomic"
)

// Status 对决生命周期状态，只能单向推进
type Status int32

const (
	StatusWaiting Status = iota
	StatusActive
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Machine is a monotonic status flag: waiting -> active -> finished, no way
// back. Advance is a compare-and-swap so the caller holding it across
// concurrent joins gets "transitioned exactly once" for free.
type Machine struct {
	current atomic.Int32
}

func NewMachine() *Machine {
	return &Machine{}
}

// Current returns the status at the time of the call.
func (m *Machine) Current() Status {
	return Status(m.current.Load())
}

// Advance moves from exactly `from` to `to` and reports whether this call
// performed the transition. Backward or repeated transitions fail.
func (m *Machine) Advance(from, to Status) bool {
	if to <= from {
		return false
	}
	return m.current.CompareAndSwap(int32(from), int32(to))
}

// Finish forces the terminal state from whatever the current status is.
// Returns false if the machine was already finished.
func (m *Machine) Finish() bool {
	for {
		cur := m.current.Load()
		if Status(cur) == StatusFinished {
			return false
		}
		if m.current.CompareAndSwap(cur, int32(StatusFinished)) {
			return true
		}
	}
}

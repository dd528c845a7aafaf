// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exchange

// Status is the state of one exchange.
type Status int

const (
	Idle Status = iota
	BuildingRequest
	Streaming
	Finalizing
	Completed
	Failed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case BuildingRequest:
		return "building-request"
	case Streaming:
		return "streaming"
	case Finalizing:
		return "finalizing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow s.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed
}

// Observer is told about every status change.
type Observer interface {
	OnTransition(from, to Status)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(from, to Status)

// OnTransition implements Observer.
func (f ObserverFunc) OnTransition(from, to Status) {
	f(from, to)
}

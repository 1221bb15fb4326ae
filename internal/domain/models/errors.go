package models

import "errors"

// Outcome kinds of the per-asset pipeline. Only DispatchFailure affects
// dedup state; none of them abort a cycle.
var (
	ErrDataUnavailable      = errors.New("data unavailable")
	ErrInsufficientHistory  = errors.New("insufficient history")
	ErrConfirmationRejected = errors.New("confirmation rejected")
	ErrDispatchFailure      = errors.New("dispatch failure")
	ErrDuplicate            = errors.New("duplicate signal")
)

const (
	KindOK                   = "ok"
	KindNoSignal             = "no_signal"
	KindDataUnavailable      = "data_unavailable"
	KindInsufficientHistory  = "insufficient_history"
	KindConfirmationRejected = "confirmation_rejected"
	KindDispatchFailure      = "dispatch_failure"
	KindDuplicate            = "duplicate"
	KindSkipped              = "skipped"
	KindInternal             = "internal"
)

// Kind classifies err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrDataUnavailable):
		return KindDataUnavailable
	case errors.Is(err, ErrInsufficientHistory):
		return KindInsufficientHistory
	case errors.Is(err, ErrConfirmationRejected):
		return KindConfirmationRejected
	case errors.Is(err, ErrDispatchFailure):
		return KindDispatchFailure
	case errors.Is(err, ErrDuplicate):
		return KindDuplicate
	default:
		return KindInternal
	}
}

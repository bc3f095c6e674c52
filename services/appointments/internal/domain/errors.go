package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by operations that require the caller to have
	// checked existence first (password reads and verification).
	ErrNotFound = errors.New("appointment not found")
	// ErrNotProtected is returned when verifying a password on an
	// appointment that has none.
	ErrNotProtected = errors.New("appointment is not password protected")
	// ErrPaused rejects vote changes while the appointment is paused.
	ErrPaused = errors.New("appointment is paused")

	ErrLimitExceeded = errors.New("limit exceeded")
)

type Limit string

const (
	LimitMaxParticipants   Limit = "max_participants"
	LimitMaxSuggestedDates Limit = "max_suggested_dates"
	LimitMinSuggestedDates Limit = "min_suggested_dates"
)

type LimitError struct {
	Limit Limit
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s", ErrLimitExceeded, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

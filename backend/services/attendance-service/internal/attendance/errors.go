package attendance

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned for transitions not allowed from the current state.
	ErrInvalidState = errors.New("invalid attendance state")
	// ErrTooFar is matched by *TooFarError.
	ErrTooFar = errors.New("too far from site")
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("attendance session closed")
)

// TooFarError rejects a clock-in outside the site radius.
type TooFarError struct {
	DistanceMeters int64
	RadiusMeters   float64
}

func (e *TooFarError) Error() string {
	return fmt.Sprintf("too far from site: %dm away, allowed %.0fm", e.DistanceMeters, e.RadiusMeters)
}

// Is makes errors.Is(err, ErrTooFar) match.
func (e *TooFarError) Is(target error) bool {
	return target == ErrTooFar
}

package irrigation

import "errors"

var (
	// ErrValidation marks a missing, empty or malformed request payload.
	ErrValidation = errors.New("validation error")
	// ErrInvalidAction marks an unknown control action.
	ErrInvalidAction = errors.New("invalid action")
	// ErrRainConflict is returned when a start is requested while it rains.
	ErrRainConflict = errors.New("cannot start irrigation during rain")
)

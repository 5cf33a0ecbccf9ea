package mines

import (
	"errors"
	"fmt"
)

var ErrInvalidConfiguration = errors.New("invalid configuration")

type ConfigError struct {
	Params GameParams
	reason string
}

// [ConfigError] implements [error]
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidConfiguration, e.reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OutOfBoundsError is the panic value for coordinates outside the board.
type OutOfBoundsError struct {
	X, Y          int
	Width, Height int
}

// [OutOfBoundsError] implements [error]
func (e OutOfBoundsError) Error() string {
	return fmt.Sprintf(
		"cell %d:%d is out of bounds of %dx%d board", e.X, e.Y, e.Width, e.Height,
	)
}

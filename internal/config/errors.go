package config

import (
	"errors"
	"strings"
)

// ErrMissing matches any *MissingError.
var ErrMissing = errors.New("missing required configuration")

// MissingError lists required environment variables that are unset.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return ErrMissing.Error() + ": " + strings.Join(e.Vars, ", ")
}

func (e *MissingError) Is(target error) bool { return target == ErrMissing }

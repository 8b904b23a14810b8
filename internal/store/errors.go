package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrInsufficientStake is returned when a debit would leave a negative
	// balance. It is also a conflict.
	ErrInsufficientStake = fmt.Errorf("insufficient stake: %w", ErrConflict)
)

package repository

import (
	"errors"

	"github.com/okian/lineup/internal/domain/dedupe"
)

// Sentinel kinds for roster store errors.
var (
	ErrNotFound = errors.New("roster not found")
	// ErrDuplicate is the controller's duplicate sentinel so inserts racing on
	// the same key stay no-ops.
	ErrDuplicate = dedupe.ErrDuplicate
	ErrConnect   = errors.New("roster store unavailable")
)

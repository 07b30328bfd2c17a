// Package repository persists confirmed rosters.
package repository

import (
	"context"

	"github.com/okian/lineup/internal/domain/model"
)

// Store provides read/write access to confirmed rosters.
type Store interface {
	// Exists reports whether a roster with key is stored.
	Exists(ctx context.Context, key model.DetectionKey) (bool, error)
	// Insert stores r. Returns ErrDuplicate if its key is already stored.
	Insert(ctx context.Context, r model.Roster) error

	// Find returns the newest roster for team.
	// Returns ErrNotFound if the team is unknown.
	Find(ctx context.Context, team string) (model.Roster, error)

	// Teams returns the distinct team names in ascending order.
	Teams(ctx context.Context) ([]string, error)

	// Count returns the number of stored rosters.
	Count(ctx context.Context) (int, error)

	Close(ctx context.Context) error
}

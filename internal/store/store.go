// Package store persists the merchant roster and hands out dataset
// snapshots. The query core treats a snapshot as immutable for the duration
// of a pipeline run; callers should fetch one snapshot per turn.
package store

import (
	"context"

	"github.com/meilan-group/mallops-cli/internal/model"
)

// Store is the dataset provider contract.
type Store interface {
	// GetAllMerchants returns the full, already-materialized roster.
	GetAllMerchants(ctx context.Context) ([]model.Merchant, error)
	GetMerchant(ctx context.Context, id string) (*model.Merchant, error)
	UpsertMerchant(ctx context.Context, m model.Merchant) error

	// Subscribe registers a change-notification hook, invoked after every
	// successful upsert. Hooks must be fast and must not call back into
	// the store.
	Subscribe(fn func())

	Migrate(ctx context.Context) error
	Close() error
}

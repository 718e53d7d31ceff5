package store

import (
	"context"

	"ms-registration/internal/models"
)

// Store is the partitioned key-value contract the registration core runs on.
// Writes are last-writer-wins and there is no optimistic concurrency token.
type Store interface {
	// Get returns (nil, nil) when no item exists for the key.
	Get(ctx context.Context, partition, sort string) (*models.Item, error)
	Put(ctx context.Context, item models.Item) error
	// Update replaces the stored attributes of an item, creating it if missing.
	Update(ctx context.Context, item models.Item) error
	// Scan returns every item of the partition, records and counters alike.
	Scan(ctx context.Context, partition string) ([]models.Item, error)
}

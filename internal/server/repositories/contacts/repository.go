// Package contacts persists Contact entities partitioned by their owning
// profile. Every implementation honours the same optimistic concurrency
// contract: a stored contact carries a version, Update succeeds only against
// the version it was read at, and the entity's version advances on success.
package contacts

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/contacttrace/internal/server/models"
)

type Repository interface {
	// Add stores a new contact. A contact with the same id yields common.ErrorConflict.
	Add(ctx context.Context, c *models.Contact) error
	// Get returns common.ErrorNotFound when nothing is stored under id in the partition.
	Get(ctx context.Context, id uuid.UUID, partitionKey string) (*models.Contact, error)
	// Update yields common.ErrorNotFound when the contact was never stored and
	// common.ErrorConflict when its stored version moved since it was read.
	Update(ctx context.Context, c *models.Contact) error
	// ListByPartition returns the partition's contacts ordered by timestamp.
	ListByPartition(ctx context.Context, partitionKey string) ([]*models.Contact, error)
}

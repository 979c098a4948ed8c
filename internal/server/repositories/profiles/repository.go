// Package profiles persists Profile entities under the same optimistic
// concurrency contract as contacts.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/contacttrace/internal/server/models"
)

type Repository interface {
	// NextID allocates a fresh, never reused internal profile id.
	NextID(ctx context.Context) (uint32, error)
	Add(ctx context.Context, p *models.Profile) error
	Get(ctx context.Context, id uint32, partitionKey string) (*models.Profile, error)
	Update(ctx context.Context, p *models.Profile) error
}

package contacts

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/server/models"
)

type memoryKey struct {
	partition string
	id        uuid.UUID
}

// MemoryRepository keeps contacts in process memory. Stored values are
// records, so callers never share entity pointers with the store.
type MemoryRepository struct {
	mu   sync.RWMutex
	data map[memoryKey]models.ContactRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[memoryKey]models.ContactRecord)}
}

func (r *MemoryRepository) Add(ctx context.Context, c *models.Contact) error {
	if err := ctx.Err(); err != nil {
		return common.Unavailable("contacts: insert", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey{partition: c.PartitionKey(), id: c.ID()}
	if _, ok := r.data[key]; ok {
		return fmt.Errorf("contacts: %s: %w", c.ID(), common.ErrorConflict)
	}
	rec := c.Record()
	rec.Version = 1
	r.data[key] = rec
	c.SetVersion(1)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID, partitionKey string) (*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Unavailable("contacts: get", err)
	}
	r.mu.RLock()
	rec, ok := r.data[memoryKey{partition: partitionKey, id: id}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("contacts: %s: %w", id, common.ErrorNotFound)
	}
	return models.ContactFromRecord(rec)
}

func (r *MemoryRepository) Update(ctx context.Context, c *models.Contact) error {
	if err := ctx.Err(); err != nil {
		return common.Unavailable("contacts: update", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey{partition: c.PartitionKey(), id: c.ID()}
	stored, ok := r.data[key]
	if !ok {
		return fmt.Errorf("contacts: %s: %w", c.ID(), common.ErrorNotFound)
	}
	if stored.Version != c.Version() {
		return fmt.Errorf("contacts: %s at version %d, stored %d: %w", c.ID(), c.Version(), stored.Version, common.ErrorConflict)
	}
	rec := c.Record()
	rec.Version = stored.Version + 1
	r.data[key] = rec
	c.SetVersion(rec.Version)
	return nil
}

func (r *MemoryRepository) ListByPartition(ctx context.Context, partitionKey string) ([]*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Unavailable("contacts: list", err)
	}
	r.mu.RLock()
	recs := make([]models.ContactRecord, 0)
	for key, rec := range r.data {
		if key.partition == partitionKey {
			recs = append(recs, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Timestamp != recs[j].Timestamp {
			return recs[i].Timestamp < recs[j].Timestamp
		}
		return recs[i].ID < recs[j].ID
	})

	out := make([]*models.Contact, 0, len(recs))
	for _, rec := range recs {
		c, err := models.ContactFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Snapshot is an opaque copy of a MemoryRepository's contents.
type Snapshot struct {
	data map[memoryKey]models.ContactRecord
}

// Snapshot copies the stored records. Restore puts them back wholesale; the
// pair lets a caller undo a failed batch of writes.
func (r *MemoryRepository) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[memoryKey]models.ContactRecord, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return Snapshot{data: out}
}

func (r *MemoryRepository) Restore(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = s.data
}

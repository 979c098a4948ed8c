package profiles

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/server/models"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	lastID uint32
	data   map[uint32]models.ProfileRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[uint32]models.ProfileRecord)}
}

func (r *MemoryRepository) NextID(ctx context.Context) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, common.Unavailable("profiles: next id", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	return r.lastID, nil
}

func (r *MemoryRepository) Add(ctx context.Context, p *models.Profile) error {
	if err := ctx.Err(); err != nil {
		return common.Unavailable("profiles: insert", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[p.ID()]; ok {
		return fmt.Errorf("profiles: %d: %w", p.ID(), common.ErrorConflict)
	}
	rec := p.Record()
	rec.Version = 1
	r.data[p.ID()] = rec
	p.SetVersion(1)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uint32, partitionKey string) (*models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Unavailable("profiles: get", err)
	}
	r.mu.RLock()
	rec, ok := r.data[id]
	r.mu.RUnlock()
	if !ok || rec.PartitionKey != partitionKey {
		return nil, fmt.Errorf("profiles: %d: %w", id, common.ErrorNotFound)
	}
	return models.ProfileFromRecord(rec)
}

func (r *MemoryRepository) Update(ctx context.Context, p *models.Profile) error {
	if err := ctx.Err(); err != nil {
		return common.Unavailable("profiles: update", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.data[p.ID()]
	if !ok {
		return fmt.Errorf("profiles: %d: %w", p.ID(), common.ErrorNotFound)
	}
	if stored.Version != p.Version() {
		return fmt.Errorf("profiles: %d at version %d, stored %d: %w", p.ID(), p.Version(), stored.Version, common.ErrorConflict)
	}
	rec := p.Record()
	rec.Version = stored.Version + 1
	r.data[p.ID()] = rec
	p.SetVersion(rec.Version)
	return nil
}

// Snapshot is an opaque copy of a MemoryRepository's contents.
type Snapshot struct {
	data map[uint32]models.ProfileRecord
}

func (r *MemoryRepository) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint32]models.ProfileRecord, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return Snapshot{data: out}
}

// Restore puts back the records of s. Allocated ids are never handed out
// twice, so the id counter is not rewound.
func (r *MemoryRepository) Restore(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = s.data
}

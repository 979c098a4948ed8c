package contacts

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/server/models"
)

func TestMemory_AddGetRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	c := sampleContact(t)

	require.NoError(t, repo.Add(ctx, c))
	assert.Equal(t, int64(1), c.Version())

	got, err := repo.Get(ctx, c.ID(), c.PartitionKey())
	require.NoError(t, err)
	assert.Equal(t, c.Record(), got.Record())

	_, err = repo.Get(ctx, c.ID(), "8")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	err = repo.Add(ctx, c)
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestMemory_UpdateOfUnknownIsNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	err := repo.Update(context.Background(), sampleContact(t))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_ConcurrentUpdatesHaveOneWinner(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	c := sampleContact(t)
	require.NoError(t, repo.Add(ctx, c))

	const writers = 8
	copies := make([]*models.Contact, writers)
	for i := range copies {
		got, err := repo.Get(ctx, c.ID(), c.PartitionKey())
		require.NoError(t, err)
		copies[i] = got
	}

	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for _, cp := range copies {
		wg.Add(1)
		go func(cp *models.Contact) {
			defer wg.Done()
			<-start
			cp.ClearLocation()
			switch err := repo.Update(ctx, cp); {
			case err == nil:
				wins.Add(1)
			case common.KindOf(err) == common.KindConflict:
				conflicts.Add(1)
			}
		}(cp)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(writers-1), conflicts.Load())

	stored, err := repo.Get(ctx, c.ID(), c.PartitionKey())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version())
	assert.False(t, stored.Location().Present())
}

func TestMemory_ListByPartition(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	late := models.NewLocationReport(7, "dev", 200, models.NoLocation())
	early := models.NewLocationReport(7, "dev", 100, models.NewLocation(1, 2, 3))
	other := models.NewLocationReport(8, "dev", 50, models.NoLocation())
	for _, c := range []*models.Contact{late, early, other} {
		require.NoError(t, repo.Add(ctx, c))
	}

	list, err := repo.ListByPartition(ctx, models.PartitionKey(7))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, early.ID(), list[0].ID())
	assert.Equal(t, late.ID(), list[1].ID())
}

func TestMemory_SnapshotRestore(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	kept := sampleContact(t)
	require.NoError(t, repo.Add(ctx, kept))

	snap := repo.Snapshot()
	dropped := sampleContact(t)
	require.NoError(t, repo.Add(ctx, dropped))
	repo.Restore(snap)

	_, err := repo.Get(ctx, kept.ID(), kept.PartitionKey())
	require.NoError(t, err)
	_, err = repo.Get(ctx, dropped.ID(), dropped.PartitionKey())
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_CanceledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Get(ctx, uuid.New(), "1")
	assert.Equal(t, common.KindCanceled, common.KindOf(err))
}

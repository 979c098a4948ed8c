package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/server/export"
	"github.com/dmitrijs2005/contacttrace/internal/server/models"
	"github.com/dmitrijs2005/contacttrace/internal/server/notifications"
	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/repomanager"
)

var fixedNow = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

// countingContacts counts Add calls. It fails the first failAdds calls, and
// the call numbered failAt, with failErr; writeFirst lets those writes land
// before failing.
type countingContacts struct {
	contacts.Repository
	adds       atomic.Int32
	failAdds   int32
	failAt     int32
	failErr    error
	writeFirst bool
}

func (c *countingContacts) Add(ctx context.Context, ct *models.Contact) error {
	return c.add(ctx, c.Repository, ct)
}

func (c *countingContacts) add(ctx context.Context, repo contacts.Repository, ct *models.Contact) error {
	n := c.adds.Add(1)
	if n <= c.failAdds || n == c.failAt {
		if c.writeFirst {
			_ = repo.Add(ctx, ct)
		}
		return c.failErr
	}
	return repo.Add(ctx, ct)
}

// countedTx counts Adds made through the repositories of a running transaction.
type countedTx struct {
	repomanager.Repositories
	counter *countingContacts
}

func (t countedTx) Contacts() contacts.Repository {
	return countedContacts{Repository: t.Repositories.Contacts(), counter: t.counter}
}

type countedContacts struct {
	contacts.Repository
	counter *countingContacts
}

func (c countedContacts) Add(ctx context.Context, ct *models.Contact) error {
	return c.counter.add(ctx, c.Repository, ct)
}

type testStore struct {
	*repomanager.MemoryStore
	contacts *countingContacts
}

func newTestStore() *testStore {
	mem := repomanager.NewMemoryStore()
	return &testStore{MemoryStore: mem, contacts: &countingContacts{Repository: mem.Contacts()}}
}

func (s *testStore) Contacts() contacts.Repository { return s.contacts }

func (s *testStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) error {
	return s.MemoryStore.WithinTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		return fn(ctx, countedTx{Repositories: repos, counter: s.contacts})
	})
}

type fakeIDs struct {
	err error
}

func (f fakeIDs) Generate(id uint32) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("p-%d", id), nil
}

func (f fakeIDs) GenerateFromUUID(id uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "c-" + id.String()[:8], nil
}

type sentPush struct {
	token string
	n     notifications.Notification
}

type fakePush struct {
	mu   sync.Mutex
	sent []sentPush
	err  error
}

func (f *fakePush) Send(_ context.Context, token string, n notifications.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentPush{token: token, n: n})
	return f.err
}

type fakeTokens struct {
	err error
}

func (f fakeTokens) Issue(profileID uint32) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("token-%d", profileID), nil
}

type pushCounter struct {
	n atomic.Int32
}

func (p *pushCounter) IncrementPushFailures() { p.n.Add(1) }

func fastBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))
}

type testEnv struct {
	store   *testStore
	push    *fakePush
	objects *export.MemoryStore
	fails   *pushCounter
	deps    Deps
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   newTestStore(),
		push:    &fakePush{},
		objects: export.NewMemoryStore(time.Hour),
		fails:   &pushCounter{},
	}
	env.deps = Deps{
		Store:        env.store,
		IDs:          fakeIDs{},
		Push:         env.push,
		Tokens:       fakeTokens{},
		Objects:      env.objects,
		PushFailures: env.fails,
		Now:          func() time.Time { return fixedNow },
		Backoff:      fastBackoff,
	}
	return env
}

var errDBDown = common.Unavailable("insert", errors.New("db down"))

package repomanager

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/contacttrace/internal/server/models"
	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/profiles"
)

// MemoryStore keeps everything in process memory. A transaction holds txMu
// exclusively and is undone from a snapshot when fn fails. Repositories
// handed out by Contacts and Profiles share txMu, so no write lands while a
// transaction that may be rolled back is running.
type MemoryStore struct {
	txMu     sync.RWMutex
	contacts *contacts.MemoryRepository
	profiles *profiles.MemoryRepository
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts: contacts.NewMemoryRepository(),
		profiles: profiles.NewMemoryRepository(),
	}
}

func (s *MemoryStore) Contacts() contacts.Repository {
	return &lockedContacts{mu: &s.txMu, repo: s.contacts}
}

func (s *MemoryStore) Profiles() profiles.Repository {
	return &lockedProfiles{mu: &s.txMu, repo: s.profiles}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	contactsSnap := s.contacts.Snapshot()
	profilesSnap := s.profiles.Snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.contacts.Restore(contactsSnap)
			s.profiles.Restore(profilesSnap)
			panic(p)
		}
		if err != nil {
			s.contacts.Restore(contactsSnap)
			s.profiles.Restore(profilesSnap)
		}
	}()
	return fn(ctx, txRepositories{contacts: s.contacts, profiles: s.profiles})
}

func (s *MemoryStore) Close() error { return nil }

// txRepositories are used by fn while WithinTx already holds txMu.
type txRepositories struct {
	contacts *contacts.MemoryRepository
	profiles *profiles.MemoryRepository
}

func (r txRepositories) Contacts() contacts.Repository { return r.contacts }
func (r txRepositories) Profiles() profiles.Repository { return r.profiles }

type lockedContacts struct {
	mu   *sync.RWMutex
	repo *contacts.MemoryRepository
}

func (l *lockedContacts) Add(ctx context.Context, c *models.Contact) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.repo.Add(ctx, c)
}

func (l *lockedContacts) Get(ctx context.Context, id uuid.UUID, partitionKey string) (*models.Contact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.repo.Get(ctx, id, partitionKey)
}

func (l *lockedContacts) Update(ctx context.Context, c *models.Contact) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.repo.Update(ctx, c)
}

func (l *lockedContacts) ListByPartition(ctx context.Context, partitionKey string) ([]*models.Contact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.repo.ListByPartition(ctx, partitionKey)
}

type lockedProfiles struct {
	mu   *sync.RWMutex
	repo *profiles.MemoryRepository
}

func (l *lockedProfiles) NextID(ctx context.Context) (uint32, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.repo.NextID(ctx)
}

func (l *lockedProfiles) Add(ctx context.Context, p *models.Profile) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.repo.Add(ctx, p)
}

func (l *lockedProfiles) Get(ctx context.Context, id uint32, partitionKey string) (*models.Profile, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.repo.Get(ctx, id, partitionKey)
}

func (l *lockedProfiles) Update(ctx context.Context, p *models.Profile) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.repo.Update(ctx, p)
}

// Package repomanager assembles the repositories into a Store and owns the
// transaction boundary used by multi-write command handlers.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/profiles"
)

// Repositories is the set of repositories visible inside and outside a transaction.
type Repositories interface {
	Contacts() contacts.Repository
	Profiles() profiles.Repository
}

// Store is the long-lived repository client shared by all handlers.
type Store interface {
	Repositories
	// WithinTx runs fn against repositories bound to a single transaction.
	// Writes made through them are kept only if fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Close() error
}

// Package handlers implements one handler per command and assembles the
// dispatcher that routes commands to them.
package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/contacttrace/internal/logging"
	"github.com/dmitrijs2005/contacttrace/internal/server/notifications"
	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/repomanager"
)

// IDObfuscator turns internal ids into the opaque ids shown to clients.
type IDObfuscator interface {
	Generate(id uint32) (string, error)
	GenerateFromUUID(id uuid.UUID) (string, error)
}

// PushSender delivers a push message to one device.
type PushSender interface {
	Send(ctx context.Context, pushToken string, n notifications.Notification) error
}

// TokenIssuer signs the MFA token sent to a newly registered device.
type TokenIssuer interface {
	Issue(profileID uint32) (string, error)
}

// ObjectStore holds exported documents.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	PresignGet(ctx context.Context, key string) (string, time.Time, error)
}

// PushFailureRecorder counts push deliveries that failed.
type PushFailureRecorder interface {
	IncrementPushFailures()
}

// Deps are the collaborators shared by every handler. Store, IDs, Push,
// Tokens and Objects are required; the rest have defaults.
type Deps struct {
	Store   repomanager.Store
	IDs     IDObfuscator
	Push    PushSender
	Tokens  TokenIssuer
	Objects ObjectStore

	Logger       logging.Logger
	PushFailures PushFailureRecorder
	Now          func() time.Time
	// Backoff returns a fresh policy for each retried operation.
	Backoff func() retry.Backoff
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Backoff == nil {
		d.Backoff = DefaultBackoff
	}
	return d
}

// notify sends n without failing the caller. Errors are logged and counted.
func (d Deps) notify(ctx context.Context, pushToken string, n notifications.Notification) {
	if err := d.Push.Send(ctx, pushToken, n); err != nil {
		d.Logger.Warn(ctx, "push notification failed", "error", err)
		if d.PushFailures != nil {
			d.PushFailures.IncrementPushFailures()
		}
	}
}

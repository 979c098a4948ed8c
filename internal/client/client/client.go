package client

import (
	"context"

	"github.com/dmitrijs2005/contacttrace/internal/server/commands"
)

// Client submits commands to a contact tracing server.
type Client interface {
	Close() error
	SetAccessToken(token string)
	CreateProfile(ctx context.Context, cmd commands.CreateProfileCommand) (commands.CreateProfileResult, error)
	UpdatePushToken(ctx context.Context, cmd commands.UpdatePushTokenCommand) (commands.UpdatePushTokenResult, error)
	ReportLocation(ctx context.Context, cmd commands.ReportLocationCommand) (commands.ReportLocationResult, error)
	AddContacts(ctx context.Context, cmd commands.AddContactsCommand) (commands.AddContactsResult, error)
	ClearContactLocation(ctx context.Context, cmd commands.ClearContactLocationCommand) (commands.ClearContactLocationResult, error)
	ExportContacts(ctx context.Context, cmd commands.ExportContactsCommand) (commands.ExportContactsResult, error)
}

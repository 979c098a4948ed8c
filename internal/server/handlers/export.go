package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/contacttrace/internal/server/commands"
	"github.com/dmitrijs2005/contacttrace/internal/server/export"
	"github.com/dmitrijs2005/contacttrace/internal/server/models"
)

const exportContentType = "application/json"

// exportDocument is the JSON layout of an export object.
type exportDocument struct {
	ProfileID   uint32                 `json:"profileId"`
	GeneratedAt time.Time              `json:"generatedAt"`
	Contacts    []models.ContactRecord `json:"contacts"`
}

type ExportContactsHandler struct {
	deps Deps
}

func NewExportContactsHandler(deps Deps) *ExportContactsHandler {
	return &ExportContactsHandler{deps: deps.withDefaults()}
}

func (h *ExportContactsHandler) Handle(ctx context.Context, cmd commands.ExportContactsCommand) (commands.ExportContactsResult, error) {
	partition := models.PartitionKey(cmd.ProfileID)

	var list []*models.Contact
	err := withRetry(ctx, h.deps.Backoff(), transient, func(ctx context.Context) error {
		var err error
		list, err = h.deps.Store.Contacts().ListByPartition(ctx, partition)
		return err
	})
	if err != nil {
		return commands.ExportContactsResult{}, err
	}

	now := h.deps.Now().UTC()
	doc := exportDocument{ProfileID: cmd.ProfileID, GeneratedAt: now, Contacts: make([]models.ContactRecord, 0, len(list))}
	for _, c := range list {
		doc.Contacts = append(doc.Contacts, c.Record())
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return commands.ExportContactsResult{}, fmt.Errorf("export: encode: %w", err)
	}

	key := export.ObjectKey(partition, now)
	err = withRetry(ctx, h.deps.Backoff(), transient, func(ctx context.Context) error {
		return h.deps.Objects.Put(ctx, key, exportContentType, body)
	})
	if err != nil {
		return commands.ExportContactsResult{}, err
	}

	url, expires, err := h.deps.Objects.PresignGet(ctx, key)
	if err != nil {
		return commands.ExportContactsResult{}, err
	}
	return commands.ExportContactsResult{
		ObjectKey:   key,
		DownloadURL: url,
		Count:       len(doc.Contacts),
		ExpiresAt:   expires,
	}, nil
}

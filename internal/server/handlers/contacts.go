package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/server/commands"
	"github.com/dmitrijs2005/contacttrace/internal/server/models"
	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/repomanager"
)

type ReportLocationHandler struct {
	deps Deps
}

func NewReportLocationHandler(deps Deps) *ReportLocationHandler {
	return &ReportLocationHandler{deps: deps.withDefaults()}
}

// Handle stores a location report stamped with the current time and returns
// its opaque id.
func (h *ReportLocationHandler) Handle(ctx context.Context, cmd commands.ReportLocationCommand) (commands.ReportLocationResult, error) {
	loc := models.NewLocation(cmd.Latitude, cmd.Longitude, float64(cmd.Accuracy))
	c := models.NewLocationReport(cmd.ProfileID, cmd.DeviceID, h.deps.Now().Unix(), loc)

	if err := h.add(ctx, c); err != nil {
		return commands.ReportLocationResult{}, err
	}

	external, err := h.deps.IDs.GenerateFromUUID(c.ID())
	if err != nil {
		return commands.ReportLocationResult{}, common.Unavailable("hashid", err)
	}
	return commands.ReportLocationResult{ContactID: external}, nil
}

// add retries transient failures. A retry that hits Conflict means an earlier
// attempt did land, which is confirmed by reading the contact back.
func (h *ReportLocationHandler) add(ctx context.Context, c *models.Contact) error {
	repo := h.deps.Store.Contacts()
	attempt := 0
	return withRetry(ctx, h.deps.Backoff(), transient, func(ctx context.Context) error {
		attempt++
		err := repo.Add(ctx, c)
		if attempt == 1 || !errors.Is(err, common.ErrorConflict) {
			return err
		}
		stored, getErr := repo.Get(ctx, c.ID(), c.PartitionKey())
		if getErr != nil {
			return err
		}
		c.SetVersion(stored.Version())
		return nil
	})
}

type AddContactsHandler struct {
	deps Deps
}

func NewAddContactsHandler(deps Deps) *AddContactsHandler {
	return &AddContactsHandler{deps: deps.withDefaults()}
}

// Handle stores the whole batch in one transaction: either every encounter is
// recorded or none is.
func (h *AddContactsHandler) Handle(ctx context.Context, cmd commands.AddContactsCommand) (commands.AddContactsResult, error) {
	batch := make([]*models.Contact, 0, len(cmd.Contacts))
	var failures []common.FieldFailure
	for i, e := range cmd.Contacts {
		c, err := buildContact(cmd, e)
		if err != nil {
			failures = append(failures, common.FieldFailure{Field: fmt.Sprintf("Contacts[%d]", i), Message: err.Error()})
			continue
		}
		batch = append(batch, c)
	}
	if len(failures) > 0 {
		return commands.AddContactsResult{}, common.NewValidationError(failures...)
	}

	err := withRetry(ctx, h.deps.Backoff(), transient, func(ctx context.Context) error {
		return h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
			for _, c := range batch {
				if err := repos.Contacts().Add(ctx, c); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return commands.AddContactsResult{}, err
	}

	ids := make([]string, 0, len(batch))
	for _, c := range batch {
		external, err := h.deps.IDs.GenerateFromUUID(c.ID())
		if err != nil {
			return commands.AddContactsResult{}, common.Unavailable("hashid", err)
		}
		ids = append(ids, external)
	}
	return commands.AddContactsResult{ContactIDs: ids}, nil
}

func buildContact(cmd commands.AddContactsCommand, e commands.ContactEntry) (*models.Contact, error) {
	loc, err := models.LocationFromNullable(e.Latitude, e.Longitude, e.Accuracy)
	if err != nil {
		return nil, err
	}
	return models.NewContact(cmd.ProfileID, cmd.DeviceID, e.SeenProfileID, e.Timestamp, e.DurationValue(), loc)
}

type ClearContactLocationHandler struct {
	deps Deps
}

func NewClearContactLocationHandler(deps Deps) *ClearContactLocationHandler {
	return &ClearContactLocationHandler{deps: deps.withDefaults()}
}

// Handle redacts the contact's location. Clearing is idempotent, so a lost
// race is resolved by re-reading and applying it again.
func (h *ClearContactLocationHandler) Handle(ctx context.Context, cmd commands.ClearContactLocationCommand) (commands.ClearContactLocationResult, error) {
	id, err := uuid.Parse(cmd.ContactID)
	if err != nil {
		return commands.ClearContactLocationResult{}, fmt.Errorf("contact %q: %w", cmd.ContactID, common.ErrorNotFound)
	}
	partition := models.PartitionKey(cmd.ProfileID)
	repo := h.deps.Store.Contacts()

	var version int64
	err = withRetry(ctx, h.deps.Backoff(), retryOn(common.KindConflict, common.KindDependencyUnavailable), func(ctx context.Context) error {
		c, err := repo.Get(ctx, id, partition)
		if err != nil {
			return err
		}
		if c.Location().Present() {
			c.ClearLocation()
			if err := repo.Update(ctx, c); err != nil {
				return err
			}
		}
		version = c.Version()
		return nil
	})
	if err != nil {
		return commands.ClearContactLocationResult{}, err
	}
	return commands.ClearContactLocationResult{ContactID: cmd.ContactID, Version: version}, nil
}

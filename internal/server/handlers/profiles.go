package handlers

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/server/commands"
	"github.com/dmitrijs2005/contacttrace/internal/server/models"
	"github.com/dmitrijs2005/contacttrace/internal/server/notifications"
	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/repomanager"
)

// MfaTokenKey is the push data key carrying the token issued at registration.
const MfaTokenKey = "MfaToken"

type CreateProfileHandler struct {
	deps Deps
}

func NewCreateProfileHandler(deps Deps) *CreateProfileHandler {
	return &CreateProfileHandler{deps: deps.withDefaults()}
}

// Handle allocates an id and stores the profile in one transaction, then
// pushes an MFA token to the registering device. The push is best effort.
func (h *CreateProfileHandler) Handle(ctx context.Context, cmd commands.CreateProfileCommand) (commands.CreateProfileResult, error) {
	var profile *models.Profile
	err := withRetry(ctx, h.deps.Backoff(), transient, func(ctx context.Context) error {
		return h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
			id, err := repos.Profiles().NextID(ctx)
			if err != nil {
				return err
			}
			p, err := models.NewProfile(id, cmd.DeviceID, cmd.PushToken, cmd.Locale, h.deps.Now().Unix())
			if err != nil {
				return common.Unavailable("profiles: next id", err)
			}
			if err := repos.Profiles().Add(ctx, p); err != nil {
				return err
			}
			profile = p
			return nil
		})
	})
	if err != nil {
		return commands.CreateProfileResult{}, err
	}

	external, err := h.deps.IDs.Generate(profile.ID())
	if err != nil {
		return commands.CreateProfileResult{}, common.Unavailable("hashid", err)
	}

	token, err := h.deps.Tokens.Issue(profile.ID())
	if err != nil {
		h.deps.Logger.Warn(ctx, "mfa token not issued", "profile", external, "error", err)
	} else {
		h.deps.notify(ctx, profile.PushToken(), notifications.Notification{
			Data: map[string]string{MfaTokenKey: token},
		})
	}

	return commands.CreateProfileResult{ProfileID: profile.ID(), ExternalID: external}, nil
}

type UpdatePushTokenHandler struct {
	deps Deps
}

func NewUpdatePushTokenHandler(deps Deps) *UpdatePushTokenHandler {
	return &UpdatePushTokenHandler{deps: deps.withDefaults()}
}

// Handle stores the device's new push token. Only the device that registered
// the profile may change it. Setting the current token again is a no-op, and
// a lost race is resolved by re-reading and applying the token again.
func (h *UpdatePushTokenHandler) Handle(ctx context.Context, cmd commands.UpdatePushTokenCommand) (commands.UpdatePushTokenResult, error) {
	repo := h.deps.Store.Profiles()
	partition := models.PartitionKey(cmd.ProfileID)

	var version int64
	err := withRetry(ctx, h.deps.Backoff(), retryOn(common.KindConflict, common.KindDependencyUnavailable), func(ctx context.Context) error {
		p, err := repo.Get(ctx, cmd.ProfileID, partition)
		if err != nil {
			return err
		}
		if p.DeviceID() != cmd.DeviceID {
			return fmt.Errorf("profile %d on device %q: %w", cmd.ProfileID, cmd.DeviceID, common.ErrorNotFound)
		}
		if p.PushToken() != cmd.PushToken {
			p.UpdatePushToken(cmd.PushToken)
			if err := repo.Update(ctx, p); err != nil {
				return err
			}
		}
		version = p.Version()
		return nil
	})
	if err != nil {
		return commands.UpdatePushTokenResult{}, err
	}
	return commands.UpdatePushTokenResult{ProfileID: cmd.ProfileID, Version: version}, nil
}

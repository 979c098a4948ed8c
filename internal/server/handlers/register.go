package handlers

import (
	"errors"

	"github.com/dmitrijs2005/contacttrace/internal/server/commands"
	"github.com/dmitrijs2005/contacttrace/internal/server/pipeline"
)

// Register binds every command handler to r.
func Register(r *pipeline.Registry, deps Deps) error {
	return errors.Join(
		pipeline.Register[commands.CreateProfileCommand, commands.CreateProfileResult](r, NewCreateProfileHandler(deps)),
		pipeline.Register[commands.UpdatePushTokenCommand, commands.UpdatePushTokenResult](r, NewUpdatePushTokenHandler(deps)),
		pipeline.Register[commands.ReportLocationCommand, commands.ReportLocationResult](r, NewReportLocationHandler(deps)),
		pipeline.Register[commands.AddContactsCommand, commands.AddContactsResult](r, NewAddContactsHandler(deps)),
		pipeline.Register[commands.ClearContactLocationCommand, commands.ClearContactLocationResult](r, NewClearContactLocationHandler(deps)),
		pipeline.Register[commands.ExportContactsCommand, commands.ExportContactsResult](r, NewExportContactsHandler(deps)),
	)
}

// NewDispatcher registers all handlers and validators and builds the
// dispatcher. Validation is the only behavior; logging and, when rec is not
// nil, metrics observe the outcome of every command, rejections included. It
// fails if any command lacks a handler.
func NewDispatcher(deps Deps, rec pipeline.Recorder) (*pipeline.Dispatcher, error) {
	deps = deps.withDefaults()

	r := pipeline.NewRegistry()
	if err := commands.RegisterValidators(r); err != nil {
		return nil, err
	}
	if err := Register(r, deps); err != nil {
		return nil, err
	}

	d, err := pipeline.NewDispatcher(r, []pipeline.Behavior{pipeline.ValidationBehavior(r)}, commands.All()...)
	if err != nil {
		return nil, err
	}
	observers := []pipeline.Observer{pipeline.LogOutcome(deps.Logger.With("module", "pipeline"))}
	if rec != nil {
		observers = append(observers, pipeline.RecordOutcome(rec))
	}
	return d.WithObservers(observers...), nil
}

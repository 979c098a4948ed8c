package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/logging"
)

// ValidatorLookup resolves the validator of a command, if any.
type ValidatorLookup interface {
	ValidatorFor(name string) (func(Command) []common.FieldFailure, bool)
}

// ValidationBehavior rejects a command whose validator reports failures,
// without calling next. Commands without a validator pass straight through.
func ValidationBehavior(validators ValidatorLookup) Behavior {
	return func(ctx context.Context, cmd Command, next Next) (any, error) {
		validate, ok := validators.ValidatorFor(cmd.CommandName())
		if !ok {
			return next(ctx)
		}
		if failures := validate(cmd); len(failures) > 0 {
			return nil, common.NewValidationError(failures...)
		}
		return next(ctx)
	}
}

// Observer is told the outcome of every Dispatcher.Send, whichever stage
// ended it. err is nil on success and a *Failure otherwise.
type Observer func(ctx context.Context, command string, err error, elapsed time.Duration)

// LogOutcome logs each command at debug level, and failures at warn level
// with their stage and kind.
func LogOutcome(logger logging.Logger) Observer {
	return func(ctx context.Context, command string, err error, elapsed time.Duration) {
		l := logger.With("command", command, "duration", elapsed)
		if err == nil {
			l.Debug(ctx, "command handled")
			return
		}
		var f *Failure
		if errors.As(err, &f) {
			l = l.With("stage", f.Stage)
		}
		l.Warn(ctx, "command failed", "kind", common.KindOf(err), "error", err)
	}
}

// Recorder receives one observation per executed command.
type Recorder interface {
	ObserveCommand(command string, outcome string, elapsed time.Duration)
}

// OutcomeOK labels a command that completed without error.
const OutcomeOK = "ok"

// RecordOutcome reports duration and outcome of each command to rec. The
// outcome of a failure is its kind.
func RecordOutcome(rec Recorder) Observer {
	return func(_ context.Context, command string, err error, elapsed time.Duration) {
		outcome := OutcomeOK
		if err != nil {
			outcome = string(common.KindOf(err))
		}
		rec.ObserveCommand(command, outcome, elapsed)
	}
}

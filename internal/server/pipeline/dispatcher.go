package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/contacttrace/internal/common"
)

// Next invokes the remainder of the chain.
type Next func(ctx context.Context) (any, error)

// Behavior is a middleware stage wrapping the call to the next stage. A
// behavior must return failures coming back from next unchanged.
type Behavior func(ctx context.Context, cmd Command, next Next) (any, error)

// Stage names the part of the pipeline a failure came from.
type Stage string

const (
	StageDispatch   Stage = "dispatch"
	StageValidation Stage = "validation"
	StageBehavior   Stage = "behavior"
	StageHandler    Stage = "handler"
)

// Failure is the error returned by Dispatcher.Send. Kind is always one of
// the common taxonomy values.
type Failure struct {
	Command string
	Stage   Stage
	Kind    common.Kind
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Command, f.Stage, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Dispatcher routes each command to its single handler through the behavior
// chain. It holds no mutable state and is safe for concurrent use.
type Dispatcher struct {
	handlers  map[string]handleFunc
	behaviors []Behavior
	observers []Observer
}

// NewDispatcher freezes the registry. Behaviors run in the given order, the
// first one outermost. Every name in expected must have a handler.
func NewDispatcher(r *Registry, behaviors []Behavior, expected ...string) (*Dispatcher, error) {
	if err := r.check(expected); err != nil {
		return nil, err
	}
	handlers := make(map[string]handleFunc, len(r.handlers))
	for name, h := range r.handlers {
		handlers[name] = h
	}
	return &Dispatcher{
		handlers:  handlers,
		behaviors: append([]Behavior(nil), behaviors...),
	}, nil
}

// WithObservers returns a dispatcher that also reports every outcome to obs,
// including failures raised before or by the behavior chain.
func (d *Dispatcher) WithObservers(obs ...Observer) *Dispatcher {
	cp := *d
	cp.observers = append(append([]Observer(nil), d.observers...), obs...)
	return &cp
}

// Send runs cmd through the chain and returns the handler's result.
func (d *Dispatcher) Send(ctx context.Context, cmd Command) (any, error) {
	if len(d.observers) == 0 {
		return d.send(ctx, cmd)
	}
	start := time.Now()
	res, err := d.send(ctx, cmd)
	name := ""
	if cmd != nil {
		name = cmd.CommandName()
	}
	elapsed := time.Since(start)
	for _, observe := range d.observers {
		observe(ctx, name, err, elapsed)
	}
	return res, err
}

func (d *Dispatcher) send(ctx context.Context, cmd Command) (any, error) {
	if cmd == nil {
		return nil, &Failure{
			Stage: StageDispatch,
			Kind:  common.KindValidation,
			Err:   common.NewValidationError(common.FieldFailure{Field: "Command", Message: "is required"}),
		}
	}
	name := cmd.CommandName()

	handle, ok := d.handlers[name]
	if !ok {
		err := fmt.Errorf("%w: %s: %w", ErrMissingHandler, name, common.ErrorNotFound)
		return nil, &Failure{Command: name, Stage: StageDispatch, Kind: common.KindNotFound, Err: err}
	}

	var (
		handlerStarted bool
		handlerErr     error
	)
	next := func(ctx context.Context) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrorCanceled, err)
		}
		handlerStarted = true
		res, err := handle(ctx, cmd)
		handlerErr = err
		return res, err
	}
	for i := len(d.behaviors) - 1; i >= 0; i-- {
		next = wrap(d.behaviors[i], cmd, next)
	}

	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("%w: %w", common.ErrorCanceled, err)
		return nil, &Failure{Command: name, Stage: StageDispatch, Kind: common.KindCanceled, Err: err}
	}

	res, err := next(ctx)
	if err == nil {
		return res, nil
	}

	stage := StageBehavior
	switch {
	case handlerStarted && errors.Is(err, handlerErr) && handlerErr != nil:
		stage = StageHandler
	case !handlerStarted && errors.Is(err, common.ErrorValidation):
		stage = StageValidation
	case !handlerStarted && errors.Is(err, common.ErrorCanceled):
		stage = StageDispatch
	}
	return nil, &Failure{Command: name, Stage: stage, Kind: common.KindOf(err), Err: err}
}

func wrap(b Behavior, cmd Command, next Next) Next {
	return func(ctx context.Context) (any, error) {
		return b(ctx, cmd, next)
	}
}

// Send is the typed form of Dispatcher.Send.
func Send[R any](ctx context.Context, d *Dispatcher, cmd Command) (R, error) {
	var zero R
	res, err := d.Send(ctx, cmd)
	if err != nil {
		return zero, err
	}
	r, ok := res.(R)
	if !ok {
		return zero, &Failure{
			Command: cmd.CommandName(),
			Stage:   StageDispatch,
			Kind:    common.KindDependencyUnavailable,
			Err:     fmt.Errorf("%w: result %T", ErrCommandType, res),
		}
	}
	return r, nil
}

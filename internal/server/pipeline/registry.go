// Package pipeline routes commands to their handlers through an ordered chain
// of behaviors. The mapping from command to handler and validator is built
// once at startup by an explicit Registry; nothing is discovered at dispatch
// time.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/contacttrace/internal/common"
)

var (
	ErrDuplicateHandler   = errors.New("handler already registered")
	ErrDuplicateValidator = errors.New("validator already registered")
	ErrMissingHandler     = errors.New("no handler registered")
	ErrCommandType        = errors.New("command type mismatch")
)

// Command is an intent object. CommandName is its type tag and must be
// callable on the zero value, so commands are declared as value types.
type Command interface {
	CommandName() string
}

// Handler executes the business logic of exactly one command type.
type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) { return f(ctx, cmd) }

// Validator is a pure precondition check. An empty result means valid.
type Validator[C Command] interface {
	Validate(cmd C) []common.FieldFailure
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc[C Command] func(cmd C) []common.FieldFailure

func (f ValidatorFunc[C]) Validate(cmd C) []common.FieldFailure { return f(cmd) }

type handleFunc func(ctx context.Context, cmd Command) (any, error)

type validateFunc func(cmd Command) []common.FieldFailure

// Registry collects handlers and validators keyed by command name. It is
// not safe for concurrent registration; build it before serving traffic.
type Registry struct {
	handlers   map[string]handleFunc
	validators map[string]validateFunc
}

func NewRegistry() *Registry {
	return &Registry{
		handlers:   make(map[string]handleFunc),
		validators: make(map[string]validateFunc),
	}
}

// Register binds h to the command type C.
func Register[C Command, R any](r *Registry, h Handler[C, R]) error {
	var zero C
	name := zero.CommandName()
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
	}
	r.handlers[name] = func(ctx context.Context, cmd Command) (any, error) {
		c, ok := cmd.(C)
		if !ok {
			return nil, fmt.Errorf("%w: %s handler got %T", ErrCommandType, name, cmd)
		}
		return h.Handle(ctx, c)
	}
	return nil
}

// RegisterValidator binds v to the command type C. At most one validator per
// command type is accepted.
func RegisterValidator[C Command](r *Registry, v Validator[C]) error {
	var zero C
	name := zero.CommandName()
	if _, ok := r.validators[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateValidator, name)
	}
	r.validators[name] = func(cmd Command) []common.FieldFailure {
		c, ok := cmd.(C)
		if !ok {
			return []common.FieldFailure{{Field: "Command", Message: fmt.Sprintf("unexpected type %T", cmd)}}
		}
		return v.Validate(c)
	}
	return nil
}

// ValidatorFor returns the validator registered for the named command.
func (r *Registry) ValidatorFor(name string) (func(Command) []common.FieldFailure, bool) {
	v, ok := r.validators[name]
	return v, ok
}

// check verifies that every expected command has a handler and that no
// validator is orphaned.
func (r *Registry) check(expected []string) error {
	var errs []error
	for _, name := range expected {
		if _, ok := r.handlers[name]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingHandler, name))
		}
	}
	for name := range r.validators {
		if _, ok := r.handlers[name]; !ok {
			errs = append(errs, fmt.Errorf("%w: validator for %s has no handler", ErrMissingHandler, name))
		}
	}
	return errors.Join(errs...)
}

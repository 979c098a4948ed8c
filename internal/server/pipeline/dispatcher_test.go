package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingCommand struct{ N int }

func (pingCommand) CommandName() string { return "ping" }

type echoCommand struct{ Text string }

func (echoCommand) CommandName() string { return "echo" }

type countingHandler struct {
	calls atomic.Int32
	err   error
}

func (h *countingHandler) Handle(_ context.Context, cmd pingCommand) (int, error) {
	h.calls.Add(1)
	if h.err != nil {
		return 0, h.err
	}
	return cmd.N * 2, nil
}

func positive(cmd pingCommand) []common.FieldFailure {
	var out []common.FieldFailure
	if cmd.N <= 0 {
		out = append(out, common.FieldFailure{Field: "N", Message: "must be positive"})
	}
	if cmd.N > 100 {
		out = append(out, common.FieldFailure{Field: "N", Message: "must be at most 100"})
	}
	return out
}

func newTestDispatcher(t *testing.T, h *countingHandler, withValidator bool, extra ...Behavior) *Dispatcher {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, Register[pingCommand, int](r, h))
	require.NoError(t, Register[echoCommand, string](r, HandlerFunc[echoCommand, string](func(_ context.Context, c echoCommand) (string, error) {
		return c.Text, nil
	})))
	if withValidator {
		require.NoError(t, RegisterValidator[pingCommand](r, ValidatorFunc[pingCommand](positive)))
	}
	behaviors := append([]Behavior{ValidationBehavior(r)}, extra...)
	d, err := NewDispatcher(r, behaviors, pingCommand{}.CommandName(), echoCommand{}.CommandName())
	require.NoError(t, err)
	return d
}

func TestRegister_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register[pingCommand, int](r, &countingHandler{}))
	err := Register[pingCommand, int](r, &countingHandler{})
	assert.ErrorIs(t, err, ErrDuplicateHandler)

	require.NoError(t, RegisterValidator[pingCommand](r, ValidatorFunc[pingCommand](positive)))
	err = RegisterValidator[pingCommand](r, ValidatorFunc[pingCommand](positive))
	assert.ErrorIs(t, err, ErrDuplicateValidator)
}

func TestNewDispatcher_FailsFastOnMissingHandler(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register[pingCommand, int](r, &countingHandler{}))

	_, err := NewDispatcher(r, nil, "ping", "echo")
	assert.ErrorIs(t, err, ErrMissingHandler)
	assert.Contains(t, err.Error(), "echo")
}

func TestNewDispatcher_FailsOnOrphanValidator(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterValidator[pingCommand](r, ValidatorFunc[pingCommand](positive)))

	_, err := NewDispatcher(r, nil)
	assert.ErrorIs(t, err, ErrMissingHandler)
}

func TestSend_ValidationFailureSkipsHandler(t *testing.T) {
	h := &countingHandler{}
	d := newTestDispatcher(t, h, true)

	_, err := d.Send(context.Background(), pingCommand{N: 0})
	require.Error(t, err)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageValidation, f.Stage)
	assert.Equal(t, common.KindValidation, f.Kind)
	assert.Equal(t, "ping", f.Command)

	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []common.FieldFailure{{Field: "N", Message: "must be positive"}}, verr.Failures)
	assert.Zero(t, h.calls.Load())
}

func TestSend_ValidationCarriesEveryFailure(t *testing.T) {
	r := NewRegistry()
	h := &countingHandler{}
	require.NoError(t, Register[pingCommand, int](r, h))
	require.NoError(t, RegisterValidator[pingCommand](r, ValidatorFunc[pingCommand](func(pingCommand) []common.FieldFailure {
		return []common.FieldFailure{
			{Field: "A", Message: "first"},
			{Field: "B", Message: "second"},
			{Field: "C", Message: "third"},
		}
	})))
	d, err := NewDispatcher(r, []Behavior{ValidationBehavior(r)})
	require.NoError(t, err)

	_, err = d.Send(context.Background(), pingCommand{N: 1})

	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Failures, 3)
	assert.Equal(t, "A", verr.Failures[0].Field)
	assert.Equal(t, "C", verr.Failures[2].Field)
	assert.Zero(t, h.calls.Load())
}

func TestSend_WithoutValidatorInvokesHandlerOnce(t *testing.T) {
	h := &countingHandler{}
	d := newTestDispatcher(t, h, false)

	res, err := Send[int](context.Background(), d, pingCommand{N: -5})
	require.NoError(t, err)
	assert.Equal(t, -10, res)
	assert.Equal(t, int32(1), h.calls.Load())
}

func TestSend_ValidCommandReachesHandler(t *testing.T) {
	h := &countingHandler{}
	d := newTestDispatcher(t, h, true)

	res, err := Send[int](context.Background(), d, pingCommand{N: 21})
	require.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.Equal(t, int32(1), h.calls.Load())

	text, err := Send[string](context.Background(), d, echoCommand{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}

func TestSend_HandlerFailurePropagates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind common.Kind
	}{
		{"not found", fmt.Errorf("get: %w", common.ErrorNotFound), common.KindNotFound},
		{"conflict", common.ErrorConflict, common.KindConflict},
		{"dependency", common.Unavailable("insert", errors.New("db down")), common.KindDependencyUnavailable},
		{"unclassified", errors.New("boom"), common.KindDependencyUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &countingHandler{err: tc.err}
			d := newTestDispatcher(t, h, true)

			_, err := d.Send(context.Background(), pingCommand{N: 1})

			var f *Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, StageHandler, f.Stage)
			assert.Equal(t, tc.kind, f.Kind)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestSend_CanceledBeforeDispatch(t *testing.T) {
	h := &countingHandler{}
	d := newTestDispatcher(t, h, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Send(ctx, pingCommand{N: 1})

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, common.KindCanceled, f.Kind)
	assert.Equal(t, StageDispatch, f.Stage)
	assert.ErrorIs(t, err, common.ErrorCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.calls.Load())
}

func TestSend_CanceledInsideChain(t *testing.T) {
	h := &countingHandler{}
	cancelling := func(ctx context.Context, cmd Command, next Next) (any, error) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		return next(ctx)
	}
	d := newTestDispatcher(t, h, true, cancelling)

	_, err := d.Send(context.Background(), pingCommand{N: 1})

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, common.KindCanceled, f.Kind)
	assert.Equal(t, StageDispatch, f.Stage)
	assert.Zero(t, h.calls.Load())
}

func TestSend_BehaviorOrderIsExplicit(t *testing.T) {
	var mu sync.Mutex
	var trace []string
	mark := func(name string) Behavior {
		return func(ctx context.Context, cmd Command, next Next) (any, error) {
			mu.Lock()
			trace = append(trace, name+">")
			mu.Unlock()
			res, err := next(ctx)
			mu.Lock()
			trace = append(trace, "<"+name)
			mu.Unlock()
			return res, err
		}
	}
	d := newTestDispatcher(t, &countingHandler{}, true, mark("first"), mark("second"))

	_, err := d.Send(context.Background(), pingCommand{N: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"first>", "second>", "<second", "<first"}, trace)

	trace = nil
	_, err = d.Send(context.Background(), pingCommand{N: 0})
	require.Error(t, err)
	assert.Empty(t, trace, "validation runs before later behaviors")
}

func TestSend_BehaviorFailureKeepsStage(t *testing.T) {
	h := &countingHandler{}
	failing := func(ctx context.Context, cmd Command, next Next) (any, error) {
		return nil, common.Unavailable("rate limiter", errors.New("down"))
	}
	d := newTestDispatcher(t, h, true, failing)

	_, err := d.Send(context.Background(), pingCommand{N: 1})

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageBehavior, f.Stage)
	assert.Equal(t, common.KindDependencyUnavailable, f.Kind)
	assert.Zero(t, h.calls.Load())
}

type unknownCommand struct{}

func (unknownCommand) CommandName() string { return "unknown" }

func TestSend_UnknownAndNilCommands(t *testing.T) {
	d := newTestDispatcher(t, &countingHandler{}, true)

	_, err := d.Send(context.Background(), unknownCommand{})
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, common.KindNotFound, f.Kind)
	assert.ErrorIs(t, err, ErrMissingHandler)

	_, err = d.Send(context.Background(), nil)
	require.ErrorAs(t, err, &f)
	assert.Equal(t, common.KindValidation, f.Kind)
}

func TestSend_TypedResultMismatch(t *testing.T) {
	d := newTestDispatcher(t, &countingHandler{}, true)

	_, err := Send[string](context.Background(), d, pingCommand{N: 1})
	assert.ErrorIs(t, err, ErrCommandType)
}

func TestSend_ConcurrentUse(t *testing.T) {
	h := &countingHandler{}
	d := newTestDispatcher(t, h, true)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := d.Send(context.Background(), pingCommand{N: n}); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), failures.Load(), "only N=0 is invalid")
	assert.Equal(t, int32(63), h.calls.Load())
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]string
}

func (r *fakeRecorder) ObserveCommand(command, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[command] = outcome
}

func TestObservers_SeeEveryOutcome(t *testing.T) {
	rec := &fakeRecorder{outcomes: map[string]string{}}
	var logs bytes.Buffer
	h := &countingHandler{err: common.ErrorConflict}
	d := newTestDispatcher(t, h, true).WithObservers(
		LogOutcome(logging.NewJSONLogger(&logs, "debug")),
		RecordOutcome(rec),
	)

	_, err := d.Send(context.Background(), pingCommand{N: 0})
	require.Error(t, err)
	assert.Equal(t, string(common.KindValidation), rec.outcomes["ping"])
	assert.Contains(t, logs.String(), `"stage":"validation"`)
	assert.Zero(t, h.calls.Load())

	_, err = d.Send(context.Background(), pingCommand{N: 1})
	require.Error(t, err)
	assert.Equal(t, string(common.KindConflict), rec.outcomes["ping"])

	_, err = d.Send(context.Background(), echoCommand{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, rec.outcomes["echo"])

	_, err = d.Send(context.Background(), unknownCommand{})
	require.Error(t, err)
	assert.Equal(t, string(common.KindNotFound), rec.outcomes["unknown"])
}

func TestWithObservers_LeavesOriginalUntouched(t *testing.T) {
	rec := &fakeRecorder{outcomes: map[string]string{}}
	d := newTestDispatcher(t, &countingHandler{}, true)
	_ = d.WithObservers(RecordOutcome(rec))

	_, err := d.Send(context.Background(), pingCommand{N: 1})
	require.NoError(t, err)
	assert.Empty(t, rec.outcomes)
}

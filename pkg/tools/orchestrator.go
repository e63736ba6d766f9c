package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sonacove/livebridge/pkg/wire"
)

const defaultCallTimeout = 30 * time.Second

// Outcome classifies how a function call finished. Used as a metric
// label, so values are stable.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeError            Outcome = "error"
	OutcomeTimeout          Outcome = "timeout"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeUnknownFunction  Outcome = "unknown_function"
	OutcomeInvalidArguments Outcome = "invalid_arguments"
	OutcomeDuplicate        Outcome = "duplicate"
)

// Result is the outcome of one function call. Response is nil when no
// response must be sent (cancelled or duplicate calls).
type Result struct {
	ID       string
	Name     string
	Outcome  Outcome
	Response *wire.FunctionResponse
}

// Orchestrator executes server-issued function calls against a
// Registry. Calls in a batch run concurrently; each gets its own
// timeout and can be cancelled individually by ID. Every call ID is
// resolved at most once.
type Orchestrator struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	active    map[string]context.CancelFunc
	cancelled map[string]struct{}
	resolved  map[string]struct{}
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithCallTimeout sets the per-call execution deadline.
func WithCallTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger used for call lifecycle events.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func NewOrchestrator(registry *Registry, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		timeout:   defaultCallTimeout,
		logger:    slog.Default(),
		active:    make(map[string]context.CancelFunc),
		cancelled: make(map[string]struct{}),
		resolved:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExecuteBatch runs all calls concurrently and returns one Result per
// call, in call order. Calls whose IDs were already resolved produce a
// duplicate Result with no response. Cancelled calls produce no
// response either; everything else resolves exactly once, with an
// error payload when execution fails.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, calls []wire.FunctionCall) []Result {
	results := make([]Result, len(calls))

	// Register cancel funcs before launching so a cancellation that
	// races the batch still lands.
	ctxs := make([]context.Context, len(calls))
	o.mu.Lock()
	for i, call := range calls {
		if _, done := o.resolved[call.ID]; done {
			results[i] = Result{ID: call.ID, Name: call.Name, Outcome: OutcomeDuplicate}
			continue
		}
		if _, dup := o.active[call.ID]; dup {
			results[i] = Result{ID: call.ID, Name: call.Name, Outcome: OutcomeDuplicate}
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		o.active[call.ID] = cancel
		ctxs[i] = callCtx
	}
	o.mu.Unlock()

	var wg sync.WaitGroup
	for i, call := range calls {
		if ctxs[i] == nil {
			continue
		}
		wg.Add(1)
		go func(i int, call wire.FunctionCall, callCtx context.Context) {
			defer wg.Done()
			results[i] = o.execute(callCtx, call)
		}(i, call, ctxs[i])
	}
	wg.Wait()

	o.mu.Lock()
	for i, call := range calls {
		if ctxs[i] == nil {
			continue
		}
		if cancel, ok := o.active[call.ID]; ok {
			cancel()
			delete(o.active, call.ID)
		}
		// A cancellation that landed while the handler was finishing
		// still suppresses the response.
		if _, withdrawn := o.cancelled[call.ID]; withdrawn {
			results[i].Outcome = OutcomeCancelled
			results[i].Response = nil
		}
		delete(o.cancelled, call.ID)
		if results[i].Response != nil {
			o.resolved[call.ID] = struct{}{}
		}
	}
	o.mu.Unlock()

	return results
}

func (o *Orchestrator) execute(ctx context.Context, call wire.FunctionCall) Result {
	res := Result{ID: call.ID, Name: call.Name}

	decl, handler, ok := o.registry.Lookup(call.Name)
	if !ok {
		o.logger.Warn("tool call for unknown function", "id", call.ID, "name", call.Name)
		res.Outcome = OutcomeUnknownFunction
		res.Response = errorResponse(call, "unknown_function",
			fmt.Sprintf("no function named %q is registered", call.Name))
		return res
	}

	if err := ValidateArgs(decl.Parameters, call.Args); err != nil {
		o.logger.Warn("tool call arguments rejected", "id", call.ID, "name", call.Name, "error", err)
		res.Outcome = OutcomeInvalidArguments
		res.Response = errorResponse(call, "invalid_arguments", err.Error())
		return res
	}

	started := time.Now()
	out, err := handler(ctx, call.Args)
	elapsed := time.Since(started)

	switch {
	case errors.Is(err, context.Canceled):
		o.logger.Info("tool call cancelled", "id", call.ID, "name", call.Name, "elapsed", elapsed)
		res.Outcome = OutcomeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		o.logger.Warn("tool call timed out", "id", call.ID, "name", call.Name, "elapsed", elapsed)
		res.Outcome = OutcomeTimeout
		res.Response = errorResponse(call, "tool_timeout",
			fmt.Sprintf("function %q did not finish within %s", call.Name, o.timeout))
	case err != nil:
		o.logger.Warn("tool call failed", "id", call.ID, "name", call.Name, "error", err, "elapsed", elapsed)
		res.Outcome = OutcomeError
		res.Response = errorResponse(call, "tool_execution_failed", err.Error())
	default:
		res.Outcome = OutcomeOK
		res.Response = successResponse(call, out)
	}
	return res
}

// Cancel withdraws the given call IDs. Running handlers see their
// context cancelled and produce no response.
func (o *Orchestrator) Cancel(ids []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		o.cancelled[id] = struct{}{}
		if cancel, ok := o.active[id]; ok {
			cancel()
		}
	}
}

// CancelAll cancels every in-flight call. Used on session teardown.
func (o *Orchestrator) CancelAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, cancel := range o.active {
		o.cancelled[id] = struct{}{}
		cancel()
	}
}

// ActiveCount reports the number of in-flight calls.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// MarkResolved records that a response for id has been sent. Returns
// false if the id was already resolved; callers must not send a
// second response in that case.
func (o *Orchestrator) MarkResolved(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, done := o.resolved[id]; done {
		return false
	}
	o.resolved[id] = struct{}{}
	return true
}

// MarkResolvedBatch atomically resolves all ids or none. Returns the
// first already-resolved id when the batch is rejected.
func (o *Orchestrator) MarkResolvedBatch(ids []string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		if _, done := o.resolved[id]; done {
			return id, false
		}
	}
	for _, id := range ids {
		o.resolved[id] = struct{}{}
	}
	return "", true
}

func successResponse(call wire.FunctionCall, out any) *wire.FunctionResponse {
	payload, err := json.Marshal(out)
	if err != nil {
		return errorResponse(call, "tool_execution_failed",
			fmt.Sprintf("function %q returned an unserializable value: %v", call.Name, err))
	}
	// The response payload must be a JSON object; wrap bare values.
	if len(payload) == 0 || payload[0] != '{' {
		payload, _ = json.Marshal(map[string]json.RawMessage{"result": payload})
	}
	return &wire.FunctionResponse{ID: call.ID, Name: call.Name, Response: payload}
}

func errorResponse(call wire.FunctionCall, code, message string) *wire.FunctionResponse {
	payload, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	return &wire.FunctionResponse{ID: call.ID, Name: call.Name, Response: payload}
}

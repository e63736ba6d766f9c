package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sonacove/livebridge/pkg/wire"
)

func mustRegister(t *testing.T, r *Registry, decl Declaration, h Handler) {
	t.Helper()
	if err := r.Register(decl, h); err != nil {
		t.Fatalf("register %s: %v", decl.Name, err)
	}
}

func errorCode(t *testing.T, resp *wire.FunctionResponse) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Response, &payload); err != nil {
		t.Fatalf("unmarshal response payload: %v", err)
	}
	return payload.Error.Code
}

func TestExecuteBatchConcurrent(t *testing.T) {
	reg := NewRegistry()
	var mu sync.Mutex
	running := 0
	maxRunning := 0
	slow := func(ctx context.Context, args json.RawMessage) (any, error) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return map[string]string{"status": "done"}, nil
	}
	mustRegister(t, reg, Declaration{Name: "a"}, slow)
	mustRegister(t, reg, Declaration{Name: "b"}, slow)

	o := NewOrchestrator(reg)
	results := o.ExecuteBatch(context.Background(), []wire.FunctionCall{
		{ID: "fc-1", Name: "a"},
		{ID: "fc-2", Name: "b"},
	})

	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	seen := map[string]bool{}
	for _, res := range results {
		if res.Outcome != OutcomeOK {
			t.Fatalf("outcome for %s = %s", res.ID, res.Outcome)
		}
		if res.Response == nil || res.Response.ID != res.ID {
			t.Fatalf("response id mismatch for %s", res.ID)
		}
		if seen[res.ID] {
			t.Fatalf("duplicate response for %s", res.ID)
		}
		seen[res.ID] = true
	}
	if maxRunning != 2 {
		t.Fatalf("calls did not run concurrently: max %d", maxRunning)
	}
}

func TestExecuteBatchUnknownFunction(t *testing.T) {
	o := NewOrchestrator(NewRegistry())
	results := o.ExecuteBatch(context.Background(), []wire.FunctionCall{
		{ID: "fc-1", Name: "nope"},
	})
	if results[0].Outcome != OutcomeUnknownFunction {
		t.Fatalf("outcome = %s", results[0].Outcome)
	}
	if code := errorCode(t, results[0].Response); code != "unknown_function" {
		t.Fatalf("error code = %s", code)
	}
}

func TestExecuteBatchInvalidArguments(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Declaration{
		Name: "lookup",
		Parameters: &wire.Schema{
			Type:       "object",
			Properties: map[string]*wire.Schema{"q": {Type: "string"}},
			Required:   []string{"q"},
		},
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		t.Fatal("handler should not run with invalid arguments")
		return nil, nil
	})

	o := NewOrchestrator(reg)
	results := o.ExecuteBatch(context.Background(), []wire.FunctionCall{
		{ID: "fc-1", Name: "lookup", Args: json.RawMessage(`{"q":42}`)},
	})
	if results[0].Outcome != OutcomeInvalidArguments {
		t.Fatalf("outcome = %s", results[0].Outcome)
	}
	if code := errorCode(t, results[0].Response); code != "invalid_arguments" {
		t.Fatalf("error code = %s", code)
	}
}

func TestExecuteBatchTimeout(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Declaration{Name: "hang"}, func(ctx context.Context, args json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	o := NewOrchestrator(reg, WithCallTimeout(20*time.Millisecond))
	results := o.ExecuteBatch(context.Background(), []wire.FunctionCall{
		{ID: "fc-1", Name: "hang"},
	})
	if results[0].Outcome != OutcomeTimeout {
		t.Fatalf("outcome = %s", results[0].Outcome)
	}
	if code := errorCode(t, results[0].Response); code != "tool_timeout" {
		t.Fatalf("error code = %s", code)
	}
}

func TestExecuteBatchHandlerError(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Declaration{Name: "boom"}, func(ctx context.Context, args json.RawMessage) (any, error) {
		return nil, errors.New("backend unavailable")
	})

	o := NewOrchestrator(reg)
	results := o.ExecuteBatch(context.Background(), []wire.FunctionCall{
		{ID: "fc-1", Name: "boom"},
	})
	if results[0].Outcome != OutcomeError {
		t.Fatalf("outcome = %s", results[0].Outcome)
	}
	if code := errorCode(t, results[0].Response); code != "tool_execution_failed" {
		t.Fatalf("error code = %s", code)
	}
	if !strings.Contains(string(results[0].Response.Response), "backend unavailable") {
		t.Fatalf("error message missing: %s", results[0].Response.Response)
	}
}

func TestCancelSuppressesResponse(t *testing.T) {
	reg := NewRegistry()
	started := make(chan struct{})
	mustRegister(t, reg, Declaration{Name: "slow"}, func(ctx context.Context, args json.RawMessage) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	o := NewOrchestrator(reg)
	done := make(chan []Result, 1)
	go func() {
		done <- o.ExecuteBatch(context.Background(), []wire.FunctionCall{
			{ID: "fc-1", Name: "slow"},
		})
	}()

	<-started
	o.Cancel([]string{"fc-1"})

	select {
	case results := <-done:
		if results[0].Outcome != OutcomeCancelled {
			t.Fatalf("outcome = %s", results[0].Outcome)
		}
		if results[0].Response != nil {
			t.Fatalf("cancelled call produced a response: %+v", results[0].Response)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not finish after cancel")
	}
}

func TestCancelUnknownIDIsNoOp(t *testing.T) {
	o := NewOrchestrator(NewRegistry())
	o.Cancel([]string{"never-issued"})
	if o.ActiveCount() != 0 {
		t.Fatalf("active count = %d", o.ActiveCount())
	}
}

func TestDuplicateIDResolvedOnce(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	mustRegister(t, reg, Declaration{Name: "once"}, func(ctx context.Context, args json.RawMessage) (any, error) {
		calls++
		return map[string]int{"n": calls}, nil
	})

	o := NewOrchestrator(reg)
	first := o.ExecuteBatch(context.Background(), []wire.FunctionCall{{ID: "fc-1", Name: "once"}})
	if first[0].Outcome != OutcomeOK {
		t.Fatalf("first outcome = %s", first[0].Outcome)
	}

	second := o.ExecuteBatch(context.Background(), []wire.FunctionCall{{ID: "fc-1", Name: "once"}})
	if second[0].Outcome != OutcomeDuplicate {
		t.Fatalf("second outcome = %s", second[0].Outcome)
	}
	if second[0].Response != nil {
		t.Fatal("duplicate call produced a response")
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
}

func TestMarkResolved(t *testing.T) {
	o := NewOrchestrator(NewRegistry())
	if !o.MarkResolved("fc-1") {
		t.Fatal("first resolution rejected")
	}
	if o.MarkResolved("fc-1") {
		t.Fatal("second resolution accepted")
	}
}

func TestSuccessResponseWrapsBareValues(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Declaration{Name: "scalar"}, func(ctx context.Context, args json.RawMessage) (any, error) {
		return 42, nil
	})
	o := NewOrchestrator(reg)
	results := o.ExecuteBatch(context.Background(), []wire.FunctionCall{{ID: "fc-1", Name: "scalar"}})
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(results[0].Response.Response, &payload); err != nil {
		t.Fatalf("payload is not an object: %v", err)
	}
	if string(payload["result"]) != "42" {
		t.Fatalf("wrapped payload = %s", results[0].Response.Response)
	}
}

func TestRegistryDeclarationsSorted(t *testing.T) {
	reg := NewRegistry()
	noop := func(ctx context.Context, args json.RawMessage) (any, error) { return nil, nil }
	mustRegister(t, reg, Declaration{Name: "zebra"}, noop)
	mustRegister(t, reg, Declaration{Name: "alpha"}, noop)
	if err := reg.Register(Declaration{Name: "zebra"}, noop); err == nil {
		t.Fatal("duplicate registration accepted")
	}
	decls := reg.Declarations()
	if len(decls) != 2 || decls[0].Name != "alpha" || decls[1].Name != "zebra" {
		t.Fatalf("declarations = %+v", decls)
	}
}

// Package tools maps domain-level oracle calls onto payment-gated HTTP
// requests and maps the responses back to domain results.
package tools

import (
	"context"
	"fmt"

	"github.com/aurahive/paygate/flow"
	"github.com/aurahive/paygate/logger"
	"github.com/aurahive/paygate/notify"
	"github.com/aurahive/paygate/types"
)

// Executor runs a payment-gated request. Satisfied by flow.Orchestrator.
type Executor interface {
	Execute(ctx context.Context, req *flow.Request) (*flow.Result, error)
}

// Tool is one oracle operation. Implementations validate their own
// parameters before any network activity and own the mapping between
// domain types and the wire.
type Tool interface {
	Name() string

	// Call runs the tool. The returned report, when non-empty, is
	// forwarded to the notification sink after a successful call.
	Call(ctx context.Context, exec Executor, params map[string]any) (result map[string]any, report string, err error)
}

// Adapter dispatches domain calls to registered tools.
type Adapter struct {
	exec  Executor
	sink  notify.Sink
	log   logger.Logger
	tools map[string]Tool
}

// NewAdapter creates an Adapter. sink may be nil to disable reporting.
func NewAdapter(exec Executor, sink notify.Sink, log logger.Logger) *Adapter {
	if sink == nil {
		sink = notify.NoopSink{}
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Adapter{
		exec:  exec,
		sink:  sink,
		log:   log,
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the adapter.
func (a *Adapter) Register(t Tool) {
	a.tools[t.Name()] = t
}

// Tools lists registered tool names.
func (a *Adapter) Tools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

// Call runs a named tool. Unknown tools and malformed parameters fail fast
// with VALIDATION_ERROR before any network or payment activity.
func (a *Adapter) Call(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	tool, ok := a.tools[name]
	if !ok {
		return nil, &types.Error{
			Code:    types.ErrValidationError,
			Message: fmt.Sprintf("unknown tool: %q", name),
		}
	}

	result, report, err := tool.Call(ctx, a.exec, params)
	if err != nil {
		return nil, err
	}

	if report != "" {
		// Fire-and-forget: delivery failure never affects the call.
		go func() {
			if err := a.sink.Emit(context.Background(), report); err != nil {
				a.log.Warn("report delivery failed", map[string]any{"tool": name, "error": err.Error()})
			}
		}()
	}

	return result, nil
}

package toolcall

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/observe"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/types"
)

// Tool is a callable tool as seen by the agent runner. Invoke must register
// with the [Registry] for its execution, so an interruption can cancel it,
// and must return a short textual summary for the LLM.
type Tool interface {
	// Definition describes the tool to the LLM.
	Definition() types.ToolDefinition

	// Invoke executes the tool with JSON-encoded args. The context carries
	// the per-generation cancellation; implementations must observe it at
	// their suspension points.
	Invoke(ctx context.Context, args string) (string, error)
}

// Catalog maps tool names to implementations. It is populated at startup
// (built-in tools plus any MCP-imported ones) and read-only afterwards from
// the orchestrator's perspective, but registration is mutex-guarded so the
// MCP bridge can import catalogues concurrently.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]Tool)}
}

// Add registers a tool. A duplicate name replaces the previous entry.
func (c *Catalog) Add(t Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools[t.Definition().Name] = t
}

// Definitions returns all tool definitions sorted by name, for inclusion in
// LLM requests.
func (c *Catalog) Definitions() []types.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.ToolDefinition, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t.Definition())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke executes the named tool. Unknown names return an error string for
// the LLM rather than failing the generation.
func (c *Catalog) Invoke(ctx context.Context, name, args string) (string, error) {
	c.mu.RLock()
	t, ok := c.tools[name]
	c.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("toolcall: unknown tool %q", name)
	}

	ctx, span := observe.StartSpan(ctx, "tool.invoke",
		trace.WithAttributes(attribute.String("tool", name)),
	)
	defer span.End()

	out, err := t.Invoke(ctx, args)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

// Len returns the number of registered tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}

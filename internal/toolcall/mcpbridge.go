package toolcall

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/types"
)

// MCP transport kinds.
const (
	MCPTransportStdio          = "stdio"
	MCPTransportStreamableHTTP = "streamable-http"
)

// MCPServerConfig describes one external MCP server whose tools are imported
// into the catalog.
type MCPServerConfig struct {
	// Name labels the server in logs and tool metadata.
	Name string

	// Transport is "stdio" or "streamable-http".
	Transport string

	// Command is the executable plus space-separated arguments (stdio only).
	Command string

	// URL is the endpoint address (streamable-http only).
	URL string

	// Env holds additional environment variables (stdio only).
	Env map[string]string
}

// MCPBridge connects to external MCP servers and wraps their tools as
// [Tool] values that participate in the in-flight registry like any built-in
// tool.
type MCPBridge struct {
	client   *mcpsdk.Client
	registry *Registry
	sessions []*mcpsdk.ClientSession
}

// NewMCPBridge creates a bridge whose imported tools register their
// executions with registry.
func NewMCPBridge(registry *Registry) *MCPBridge {
	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: "voicebot-toolbridge", Version: "1.0.0"},
		nil,
	)
	return &MCPBridge{client: client, registry: registry}
}

// Import connects to the server described by cfg, lists its tools, and adds
// each to catalog.
func (b *MCPBridge) Import(ctx context.Context, catalog *Catalog, cfg MCPServerConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("mcp bridge: server config must have a non-empty name")
	}

	var transport mcpsdk.Transport
	switch cfg.Transport {
	case MCPTransportStdio:
		parts := strings.Fields(cfg.Command)
		if len(parts) == 0 {
			return fmt.Errorf("mcp bridge: stdio server %q requires a non-empty command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case MCPTransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("mcp bridge: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}

	default:
		return fmt.Errorf("mcp bridge: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	session, err := b.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp bridge: connect to server %q: %w", cfg.Name, err)
	}
	b.sessions = append(b.sessions, session)

	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return fmt.Errorf("mcp bridge: list tools for server %q: %w", cfg.Name, err)
		}
		catalog.Add(&mcpTool{
			def: types.ToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaToMap(tool.InputSchema),
			},
			server:   cfg.Name,
			session:  session,
			registry: b.registry,
		})
	}
	return nil
}

// Close shuts down all server sessions.
func (b *MCPBridge) Close() error {
	var firstErr error
	for _, s := range b.sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.sessions = nil
	return firstErr
}

// mcpTool adapts one remote MCP tool to the [Tool] interface. Each
// invocation registers with the in-flight registry; cancellation from the
// registry cancels the remote call's context.
type mcpTool struct {
	def      types.ToolDefinition
	server   string
	session  *mcpsdk.ClientSession
	registry *Registry
}

// Definition implements Tool.
func (t *mcpTool) Definition() types.ToolDefinition { return t.def }

// Invoke implements Tool.
func (t *mcpTool) Invoke(ctx context.Context, args string) (string, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := t.registry.Register(t.def.Name, cancel, map[string]string{"server": t.server})
	defer t.registry.Unregister(id)

	var argsMap map[string]any
	if args != "" && args != "{}" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return "", fmt.Errorf("mcp bridge: invalid args JSON for tool %q: %w", t.def.Name, err)
		}
	}

	result, err := t.session.CallTool(callCtx, &mcpsdk.CallToolParams{
		Name:      t.def.Name,
		Arguments: argsMap,
	})
	if err != nil {
		return "", fmt.Errorf("mcp bridge: call to tool %q failed: %w", t.def.Name, err)
	}

	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("mcp bridge: tool %q reported error: %s", t.def.Name, sb.String())
	}
	return sb.String(), nil
}

// schemaToMap converts any schema value to a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

var _ Tool = (*mcpTool)(nil)

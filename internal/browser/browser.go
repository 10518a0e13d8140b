// Package browser talks to a browser-automation MCP server and turns its tool
// failures into taxonomy errors.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/apply-cli/internal/resilience"
)

// clientImpl identifies this program to the MCP server.
var clientImpl = &mcp.Implementation{Name: "apply-cli", Version: "0.1.0"}

// DefaultCallTimeout bounds a single tool call when none is configured.
const DefaultCallTimeout = 30 * time.Second

// Tool describes one browser tool exposed by the server.
type Tool struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// Options configures a Session.
type Options struct {
	// CallTimeout bounds each tool call. Zero means DefaultCallTimeout.
	CallTimeout time.Duration
}

// Session is a connected browser tool server.
type Session struct {
	session *mcp.ClientSession
	tools   []Tool
	opts    Options
	log     *zap.Logger
}

// CommandTransport launches the MCP server as a subprocess speaking stdio.
func CommandTransport(command string, args ...string) mcp.Transport {
	return &mcp.CommandTransport{Command: exec.Command(command, args...)} //nolint:gosec // operator-configured command
}

// Connect opens a client session over transport and lists the server's tools.
func Connect(ctx context.Context, transport mcp.Transport, opts Options, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}

	client := mcp.NewClient(clientImpl, nil)
	cs, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, resilience.Tag(eris.Wrap(err, "browser: connect"), "browser connect")
	}

	res, err := cs.ListTools(ctx, nil)
	if err != nil {
		cs.Close() //nolint:errcheck
		return nil, resilience.Tag(eris.Wrap(err, "browser: list tools"), "browser list tools")
	}

	tools := make([]Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, toTool(t))
	}

	log.Info("connected to browser tools", zap.Int("tools", len(tools)))
	return &Session{session: cs, tools: tools, opts: opts, log: log}, nil
}

// toTool flattens the tool's JSON schema into properties and required fields.
func toTool(t *mcp.Tool) Tool {
	out := Tool{Name: t.Name, Description: t.Description}
	if t.InputSchema == nil {
		return out
	}
	data, err := json.Marshal(t.InputSchema)
	if err != nil {
		return out
	}
	var schema struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		return out
	}
	out.Properties = schema.Properties
	out.Required = schema.Required
	return out
}

// Tools returns the tools advertised by the server.
func (s *Session) Tools() []Tool {
	return s.tools
}

// Call invokes a tool with JSON arguments and returns its text output. A tool
// that reports an error comes back as a taxonomy error classified from its
// message; transport failures are tagged network or timeout.
func (s *Session) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	var arguments any = map[string]any{}
	if len(args) > 0 {
		arguments = args
	}

	start := time.Now()
	res, err := s.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: arguments})
	elapsed := time.Since(start)
	if err != nil {
		op := "browser: call " + name
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = resilience.WrapError(err, resilience.CategoryTimeout, op)
		} else {
			// Anything the session itself reports is a broken link to the browser.
			err = resilience.WrapError(err, resilience.CategoryNetwork, op)
		}
		s.log.Warn("tool call failed", zap.String("tool", name), zap.Duration("elapsed", elapsed), zap.Error(err))
		return "", err
	}

	text := resultText(res)
	if res.IsError {
		toolErr := ClassifyToolError(text)
		s.log.Warn("tool reported error",
			zap.String("tool", name),
			zap.String("category", string(resilience.CategoryOf(toolErr))),
			zap.Duration("elapsed", elapsed),
		)
		return text, toolErr
	}

	s.log.Debug("tool call", zap.String("tool", name), zap.Duration("elapsed", elapsed))
	return text, nil
}

// Close ends the session and, for command transports, stops the server.
func (s *Session) Close() error {
	return s.session.Close()
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

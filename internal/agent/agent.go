// Package agent drives one operator turn through the LLM and the browser tools.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/apply-cli/internal/browser"
	"github.com/sells-group/apply-cli/internal/profile"
	"github.com/sells-group/apply-cli/internal/resilience"
	"github.com/sells-group/apply-cli/pkg/anthropic"
)

// Toolbox is the browser collaborator as seen by the agent.
type Toolbox interface {
	Tools() []browser.Tool
	Call(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// EventKind identifies a progress event.
type EventKind string

const (
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventFinal      EventKind = "final"
)

// Event reports progress within a turn.
type Event struct {
	Kind    EventKind
	Tool    string
	Input   json.RawMessage
	Output  string
	IsError bool
	Text    string
}

// EmitFunc receives events in emission order. It may be nil.
type EmitFunc func(Event)

// Config bounds a turn.
type Config struct {
	Model         string
	MaxTokens     int64
	MaxSteps      int
	MaxToolErrors int
	Mode          string
}

// DefaultConfig matches the configuration defaults.
func DefaultConfig() Config {
	return Config{
		Model:         "claude-sonnet-4-5-20250929",
		MaxTokens:     4096,
		MaxSteps:      40,
		MaxToolErrors: 3,
		Mode:          ModeApplication,
	}
}

// Agent keeps the conversation with the model across turns.
type Agent struct {
	llm    anthropic.Client
	tools  Toolbox
	cfg    Config
	system string
	log    *zap.Logger

	history []anthropic.Message
	usage   anthropic.TokenUsage
}

// New creates an agent for the given profile.
func New(llm anthropic.Client, tools Toolbox, p *profile.Profile, cfg Config, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	if cfg.MaxToolErrors <= 0 {
		cfg.MaxToolErrors = def.MaxToolErrors
	}
	return &Agent{
		llm:    llm,
		tools:  tools,
		cfg:    cfg,
		system: SystemPrompt(cfg.Mode, p),
		log:    log,
	}
}

// Reset forgets the conversation.
func (a *Agent) Reset() {
	a.history = nil
}

// Usage returns the tokens consumed so far.
func (a *Agent) Usage() anthropic.TokenUsage {
	return a.usage
}

// Run sends input to the model and executes its tool calls until it answers
// without one. The final text is returned. A failed turn leaves the
// conversation as it was before the turn, so the same input can be retried.
func (a *Agent) Run(ctx context.Context, input string, emit EmitFunc) (string, error) {
	if emit == nil {
		emit = func(Event) {}
	}

	msgs := slices.Clone(a.history)
	msgs = append(msgs, anthropic.Message{Role: "user", Content: input})
	tools := a.toolDefs()
	consecutiveErrs := 0

	for step := 0; ; step++ {
		if step >= a.cfg.MaxSteps {
			return "", resilience.NewTimeoutError(fmt.Sprintf("agent gave no answer within %d steps", a.cfg.MaxSteps))
		}
		if err := ctx.Err(); err != nil {
			return "", resilience.Tag(err, "agent turn")
		}

		resp, err := a.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     a.cfg.Model,
			MaxTokens: a.cfg.MaxTokens,
			System:    []anthropic.SystemBlock{{Text: a.system, CacheControl: &anthropic.CacheControl{TTL: "5m"}}},
			Messages:  msgs,
			Tools:     tools,
		})
		if err != nil {
			return "", tagLLMError(err)
		}
		a.usage = a.usage.Add(resp.Usage)
		msgs = append(msgs, anthropic.Message{Role: "assistant", Blocks: resp.Content})

		uses := resp.ToolUses()
		if len(uses) == 0 {
			text := resp.Text()
			emit(Event{Kind: EventFinal, Text: text})
			a.history = msgs
			resp.Usage.LogCost(a.log, a.cfg.Model, "agent")
			a.log.Info("turn finished", zap.Int("steps", step+1))
			return text, nil
		}

		results := make([]anthropic.ContentBlock, 0, len(uses))
		for _, use := range uses {
			emit(Event{Kind: EventToolCall, Tool: use.Name, Input: use.Input})

			if use.Name == ReportBlockerTool {
				blocker := blockerError(use.Input)
				emit(Event{Kind: EventToolResult, Tool: use.Name, Output: blocker.Error(), IsError: true})
				a.log.Warn("blocker reported", zap.String("category", string(blocker.Category)), zap.String("message", blocker.Message))
				return "", blocker
			}

			out, err := a.callTool(ctx, use)
			if err != nil {
				emit(Event{Kind: EventToolResult, Tool: use.Name, Output: err.Error(), IsError: true})
				if resilience.CategoryOf(err).RequiresManualIntervention() {
					return "", err
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", resilience.Tag(ctxErr, "agent turn")
				}
				consecutiveErrs++
				if consecutiveErrs >= a.cfg.MaxToolErrors {
					a.log.Warn("too many consecutive tool errors", zap.Int("errors", consecutiveErrs))
					return "", err
				}
				results = append(results, anthropic.ToolResultBlock(use.ID, err.Error(), true))
				continue
			}

			consecutiveErrs = 0
			emit(Event{Kind: EventToolResult, Tool: use.Name, Output: out})
			results = append(results, anthropic.ToolResultBlock(use.ID, out, false))
		}
		msgs = append(msgs, anthropic.Message{Role: "user", Blocks: results})
	}
}

func (a *Agent) callTool(ctx context.Context, use anthropic.ContentBlock) (string, error) {
	if !a.knowsTool(use.Name) {
		return "", resilience.NewElementNotFoundError("unknown tool "+use.Name, use.Name)
	}
	a.log.Debug("tool call", zap.String("tool", use.Name), zap.ByteString("input", use.Input))
	return a.tools.Call(ctx, use.Name, use.Input)
}

func (a *Agent) knowsTool(name string) bool {
	if a.tools == nil {
		return false
	}
	for _, t := range a.tools.Tools() {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (a *Agent) toolDefs() []anthropic.Tool {
	var defs []anthropic.Tool
	if a.tools != nil {
		for _, t := range a.tools.Tools() {
			defs = append(defs, anthropic.Tool{
				Name:        t.Name,
				Description: t.Description,
				Properties:  t.Properties,
				Required:    t.Required,
			})
		}
	}
	return append(defs, reportBlockerDef())
}

func reportBlockerDef() anthropic.Tool {
	return anthropic.Tool{
		Name:        ReportBlockerTool,
		Description: "Stop and hand the application back to the operator when a CAPTCHA, login wall or unfixable form error blocks progress.",
		Properties: map[string]any{
			"category": map[string]any{
				"type": "string",
				"enum": []string{
					string(resilience.CategoryCaptcha),
					string(resilience.CategoryAuthentication),
					string(resilience.CategoryFormValidation),
					string(resilience.CategoryElementNotFound),
					string(resilience.CategoryTimeout),
					string(resilience.CategoryNetwork),
				},
			},
			"message": map[string]any{"type": "string", "description": "What the page shows"},
			"field":   map[string]any{"type": "string", "description": "Form field or element involved, if any"},
		},
		Required: []string{"category", "message"},
	}
}

// blockerError converts report_blocker input into a taxonomy error.
func blockerError(input json.RawMessage) *resilience.Error {
	var args struct {
		Category string `json:"category"`
		Message  string `json:"message"`
		Field    string `json:"field"`
	}
	_ = json.Unmarshal(input, &args)

	cat := resilience.ParseCategory(args.Category)
	switch cat {
	case resilience.CategoryCaptcha:
		return resilience.NewCaptchaError(args.Message)
	case resilience.CategoryAuthentication:
		return resilience.NewAuthenticationError(args.Message)
	case resilience.CategoryFormValidation:
		return resilience.NewFormValidationError(args.Message, args.Field)
	case resilience.CategoryElementNotFound:
		return resilience.NewElementNotFoundError(args.Message, args.Field)
	default:
		msg := args.Message
		if msg == "" {
			msg = "blocked: " + args.Category
		}
		return resilience.NewError(cat, msg)
	}
}

// tagLLMError attaches a taxonomy category to a failed model call.
func tagLLMError(err error) error {
	if code := anthropic.StatusCode(err); code != 0 {
		return resilience.TagHTTPStatus(err, code, "llm")
	}
	return resilience.Tag(err, "llm")
}

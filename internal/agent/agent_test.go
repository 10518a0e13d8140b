package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/apply-cli/internal/browser"
	"github.com/sells-group/apply-cli/internal/profile"
	"github.com/sells-group/apply-cli/internal/resilience"
	"github.com/sells-group/apply-cli/pkg/anthropic"
)

// mockLLM implements anthropic.Client for testing.
type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// fakeToolbox answers tool calls from a table.
type fakeToolbox struct {
	results map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeToolbox) Tools() []browser.Tool {
	return []browser.Tool{
		{Name: "browser_navigate", Description: "Navigate", Properties: map[string]any{"url": map[string]any{"type": "string"}}, Required: []string{"url"}},
		{Name: "browser_click", Description: "Click"},
	}
}

func (f *fakeToolbox) Call(_ context.Context, name string, _ json.RawMessage) (string, error) {
	f.calls = append(f.calls, name)
	if err, ok := f.errs[name]; ok {
		return "", err
	}
	return f.results[name], nil
}

func toolUse(id, name, input string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		StopReason: anthropic.StopToolUse,
		Content: []anthropic.ContentBlock{
			{Type: anthropic.BlockToolUse, ID: id, Name: name, Input: json.RawMessage(input)},
		},
	}
}

func final(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		StopReason: anthropic.StopEndTurn,
		Content:    []anthropic.ContentBlock{anthropic.TextBlock(text)},
		Usage:      anthropic.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}
}

func collect(events *[]Event) EmitFunc {
	return func(e Event) { *events = append(*events, e) }
}

func newTestAgent(llm anthropic.Client, tools Toolbox, cfg Config) *Agent {
	return New(llm, tools, &profile.Profile{FirstName: "Ada", LastName: "Lovelace"}, cfg, nil)
}

func TestRun_ToolLoopThenFinal(t *testing.T) {
	llm := new(mockLLM)
	tools := &fakeToolbox{results: map[string]string{"browser_navigate": "Navigated"}}

	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1
	})).Return(toolUse("tu_1", "browser_navigate", `{"url":"https://x.com/job/1"}`), nil).Once()
	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 3
	})).Return(final("Application submitted successfully"), nil).Once()

	a := newTestAgent(llm, tools, Config{})
	var events []Event
	out, err := a.Run(context.Background(), "apply to https://x.com/job/1", collect(&events))
	require.NoError(t, err)
	assert.Equal(t, "Application submitted successfully", out)

	require.Len(t, events, 3)
	assert.Equal(t, EventToolCall, events[0].Kind)
	assert.Equal(t, "browser_navigate", events[0].Tool)
	assert.JSONEq(t, `{"url":"https://x.com/job/1"}`, string(events[0].Input))
	assert.Equal(t, EventToolResult, events[1].Kind)
	assert.Equal(t, "Navigated", events[1].Output)
	assert.False(t, events[1].IsError)
	assert.Equal(t, EventFinal, events[2].Kind)
	assert.Equal(t, "Application submitted successfully", events[2].Text)

	assert.Equal(t, []string{"browser_navigate"}, tools.calls)
	assert.Len(t, a.history, 4)
	assert.Equal(t, int64(10), a.Usage().InputTokens)
	llm.AssertExpectations(t)
}

func TestRun_SendsToolsAndSystemPrompt(t *testing.T) {
	llm := new(mockLLM)
	var got anthropic.MessageRequest
	llm.On("CreateMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(anthropic.MessageRequest) }).
		Return(final("ok"), nil)

	a := newTestAgent(llm, &fakeToolbox{}, Config{Model: "m", MaxTokens: 99})
	_, err := a.Run(context.Background(), "hi", nil)
	require.NoError(t, err)

	assert.Equal(t, "m", got.Model)
	assert.Equal(t, int64(99), got.MaxTokens)
	require.Len(t, got.System, 1)
	assert.Contains(t, got.System[0].Text, "Ada Lovelace")
	names := make([]string, 0, len(got.Tools))
	for _, tool := range got.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"browser_navigate", "browser_click", ReportBlockerTool}, names)
	assert.Equal(t, []string{"url"}, got.Tools[0].Required)
}

func TestRun_HistoryCarriesAcrossTurns(t *testing.T) {
	llm := new(mockLLM)
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(final("ok"), nil)

	a := newTestAgent(llm, &fakeToolbox{}, Config{})
	_, err := a.Run(context.Background(), "first", nil)
	require.NoError(t, err)
	_, err = a.Run(context.Background(), "second", nil)
	require.NoError(t, err)
	assert.Len(t, a.history, 4)

	a.Reset()
	assert.Empty(t, a.history)
}

func TestRun_ReportBlocker(t *testing.T) {
	tests := []struct {
		input    string
		want     resilience.Category
		manual   bool
		contains string
	}{
		{`{"category":"captcha","message":"hCaptcha on submit"}`, resilience.CategoryCaptcha, true, "hCaptcha"},
		{`{"category":"authentication","message":"Login wall"}`, resilience.CategoryAuthentication, true, "Login wall"},
		{`{"category":"form_validation","message":"Salary required","field":"salary"}`, resilience.CategoryFormValidation, false, "Salary"},
		{`{"category":"element_not_found","message":"No submit button"}`, resilience.CategoryElementNotFound, false, "submit"},
		{`{"category":"weird","message":"?"}`, resilience.CategoryUnknown, false, "?"},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			llm := new(mockLLM)
			llm.On("CreateMessage", mock.Anything, mock.Anything).
				Return(toolUse("tu_1", ReportBlockerTool, tt.input), nil).Once()

			tools := &fakeToolbox{}
			a := newTestAgent(llm, tools, Config{})
			var events []Event
			_, err := a.Run(context.Background(), "apply", collect(&events))
			require.Error(t, err)
			assert.Equal(t, tt.want, resilience.CategoryOf(err))
			assert.Equal(t, tt.manual, resilience.CategoryOf(err).RequiresManualIntervention())
			assert.Contains(t, err.Error(), tt.contains)
			assert.Empty(t, tools.calls, "blocker must not reach the browser")
			require.Len(t, events, 2)
			assert.True(t, events[1].IsError)
			assert.Empty(t, a.history, "failed turn must not be kept")
		})
	}
}

func TestRun_CaptchaToolErrorEndsTurn(t *testing.T) {
	llm := new(mockLLM)
	llm.On("CreateMessage", mock.Anything, mock.Anything).
		Return(toolUse("tu_1", "browser_click", `{"ref":"e1"}`), nil).Once()

	tools := &fakeToolbox{errs: map[string]error{"browser_click": resilience.NewCaptchaError("")}}
	a := newTestAgent(llm, tools, Config{})
	_, err := a.Run(context.Background(), "apply", nil)
	require.Error(t, err)
	assert.Equal(t, resilience.CategoryCaptcha, resilience.CategoryOf(err))
	llm.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestRun_ToolErrorFedBackThenRecovers(t *testing.T) {
	llm := new(mockLLM)
	var second anthropic.MessageRequest
	llm.On("CreateMessage", mock.Anything, mock.Anything).
		Return(toolUse("tu_1", "browser_click", `{"ref":"e1"}`), nil).Once()
	llm.On("CreateMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { second = args.Get(1).(anthropic.MessageRequest) }).
		Return(final("done"), nil).Once()

	tools := &fakeToolbox{errs: map[string]error{"browser_click": resilience.NewElementNotFoundError("Element not found", "e1")}}
	a := newTestAgent(llm, tools, Config{})
	out, err := a.Run(context.Background(), "apply", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	require.Len(t, second.Messages, 3)
	result := second.Messages[2].Blocks[0]
	assert.Equal(t, anthropic.BlockToolResult, result.Type)
	assert.Equal(t, "tu_1", result.ToolUseID)
	assert.True(t, result.IsError)
}

func TestRun_ConsecutiveToolErrorsEndTurn(t *testing.T) {
	llm := new(mockLLM)
	llm.On("CreateMessage", mock.Anything, mock.Anything).
		Return(toolUse("tu_x", "browser_click", `{}`), nil)

	tools := &fakeToolbox{errs: map[string]error{"browser_click": resilience.NewElementNotFoundError("gone", "")}}
	a := newTestAgent(llm, tools, Config{MaxToolErrors: 2})
	_, err := a.Run(context.Background(), "apply", nil)
	require.Error(t, err)
	assert.Equal(t, resilience.CategoryElementNotFound, resilience.CategoryOf(err))
	assert.Len(t, tools.calls, 2)
}

func TestRun_UnknownToolCountsAsError(t *testing.T) {
	llm := new(mockLLM)
	llm.On("CreateMessage", mock.Anything, mock.Anything).
		Return(toolUse("tu_1", "browser_teleport", `{}`), nil)

	tools := &fakeToolbox{}
	a := newTestAgent(llm, tools, Config{MaxToolErrors: 1})
	_, err := a.Run(context.Background(), "apply", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool browser_teleport")
	assert.Empty(t, tools.calls)
}

func TestRun_MaxStepsIsTimeout(t *testing.T) {
	llm := new(mockLLM)
	llm.On("CreateMessage", mock.Anything, mock.Anything).
		Return(toolUse("tu_1", "browser_navigate", `{"url":"https://x.com"}`), nil)

	tools := &fakeToolbox{results: map[string]string{"browser_navigate": "ok"}}
	a := newTestAgent(llm, tools, Config{MaxSteps: 3})
	_, err := a.Run(context.Background(), "apply", nil)
	require.Error(t, err)
	assert.Equal(t, resilience.CategoryTimeout, resilience.CategoryOf(err))
	llm.AssertNumberOfCalls(t, "CreateMessage", 3)
}

func TestRun_LLMErrorIsTagged(t *testing.T) {
	llm := new(mockLLM)
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

	a := newTestAgent(llm, &fakeToolbox{}, Config{})
	_, err := a.Run(context.Background(), "apply", nil)
	require.Error(t, err)
	assert.Equal(t, resilience.CategoryTimeout, resilience.CategoryOf(err))

	llm2 := new(mockLLM)
	llm2.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("bad request"))
	a2 := newTestAgent(llm2, &fakeToolbox{}, Config{})
	_, err = a2.Run(context.Background(), "apply", nil)
	require.Error(t, err)
	assert.Equal(t, resilience.CategoryUnknown, resilience.CategoryOf(err))
}

func TestRun_CancelledContext(t *testing.T) {
	llm := new(mockLLM)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newTestAgent(llm, &fakeToolbox{}, Config{})
	_, err := a.Run(ctx, "apply", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	llm.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestNew_Defaults(t *testing.T) {
	a := New(new(mockLLM), nil, nil, Config{}, nil)
	assert.Equal(t, DefaultConfig().Model, a.cfg.Model)
	assert.Equal(t, 40, a.cfg.MaxSteps)
	assert.Equal(t, 3, a.cfg.MaxToolErrors)
	assert.Equal(t, []string{ReportBlockerTool}, []string{a.toolDefs()[0].Name})
}

// Package apply runs the interactive session that turns pasted job URLs into
// tracked, agent-driven application attempts.
package apply

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/apply-cli/internal/agent"
	"github.com/sells-group/apply-cli/internal/model"
	"github.com/sells-group/apply-cli/internal/resilience"
	"github.com/sells-group/apply-cli/internal/tracker"
)

// SourceChat is the metadata source recorded for applications started here.
const SourceChat = "chat"

const banner = `Job application assistant. Paste a job URL to apply, or type 'help'.`

const helpText = `Commands:
  <url> [| company | position]   apply to a job posting
  apply <url> [| company | ...]  same as above
  resume [id]                    retry the last failed or paused application
  list [status]                  list tracked applications
  stats                          show counts per status
  export [path]                  export applications (.csv or .xlsx)
  help                           show this help
  quit, exit                     leave the session
Anything else is sent to the agent as a free-form request.
`

// Runner executes one agent turn.
type Runner interface {
	Run(ctx context.Context, input string, emit agent.EmitFunc) (string, error)
}

// Config controls retries and limits of a session.
type Config struct {
	Retry       resilience.RetryConfig
	TurnTimeout time.Duration
	ExportPath  string
}

// Session is one interactive loop. Only the loop goroutine touches the store.
type Session struct {
	store      *tracker.Store
	runner     Runner
	classifier *resilience.Classifier
	cfg        Config
	in         io.Reader
	out        io.Writer
	log        *zap.Logger

	lines     <-chan string
	current   string // application in progress
	resumable string // last failed or paused application of this session
}

// NewSession wires a session reading commands from in and writing to out.
func NewSession(store *tracker.Store, runner Runner, cfg Config, in io.Reader, out io.Writer, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ExportPath == "" {
		cfg.ExportPath = "applications.csv"
	}
	return &Session{
		store:      store,
		runner:     runner,
		classifier: resilience.NewClassifier(log),
		cfg:        cfg,
		in:         in,
		out:        out,
		log:        log,
	}
}

// Run reads commands until quit, end of input or cancellation of ctx. On
// cancellation the application in progress is marked failed. The store is
// saved before Run returns. Failures of a single command never end the loop.
func (s *Session) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	s.lines = readLines(s.in, done)
	defer s.shutdown()

	s.printf("%s\n", banner)
	for {
		s.printf("\n> ")
		line, err := s.readLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.log.Info("session interrupted")
			return err
		}
		if s.handle(ctx, line) {
			return nil
		}
	}
}

// handle executes one command line and reports whether the session should end.
func (s *Session) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	log := s.log.With(zap.String("turn_id", uuid.NewString()))

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case "quit", "exit":
		return true
	case "help":
		s.printf("%s", helpText)
	case "stats":
		_ = WriteStats(s.out, s.store.Statistics())
	case "list":
		s.list(arg)
	case "export":
		s.export(arg)
	case "resume":
		s.resume(ctx, log, arg)
	case "apply":
		s.apply(ctx, log, arg)
	default:
		if isURL(cmd) {
			s.apply(ctx, log, line)
			return false
		}
		s.chat(ctx, log, line)
	}
	return false
}

// apply handles "<url> [| company | position]".
func (s *Session) apply(ctx context.Context, log *zap.Logger, arg string) {
	parts := strings.Split(arg, "|")
	url := strings.TrimSpace(parts[0])
	if !isURL(url) {
		s.printf("Not a job URL: %q\n", url)
		return
	}

	if existing, ok := s.store.Get(tracker.Fingerprint(url)); ok {
		s.printf("Already tracked: %s at %s (status %s, created %s).\n",
			existing.Position, existing.Company, existing.Status.Label(),
			existing.CreatedAt.Local().Format(time.DateTime))
		answer, err := s.ask(ctx, "apply again? [y/N] ")
		if err != nil {
			return
		}
		if !isYes(answer) {
			s.printf("Skipped.\n")
			return
		}
		log.Info("duplicate protection overridden", zap.String("id", existing.ID))
		s.attempt(ctx, log, existing, false)
		return
	}

	var company, position string
	var err error
	if len(parts) > 1 {
		company = strings.TrimSpace(parts[1])
	} else if company, err = s.ask(ctx, "Company (Enter to skip): "); err != nil {
		return
	}
	if len(parts) > 2 {
		position = strings.TrimSpace(parts[2])
	} else if position, err = s.ask(ctx, "Position (Enter to skip): "); err != nil {
		return
	}

	id := s.store.Add(url, strings.TrimSpace(company), strings.TrimSpace(position), model.StatusPending,
		map[string]any{"source": SourceChat})
	app, ok := s.store.Get(id)
	if !ok {
		return
	}
	s.attempt(ctx, log, app, false)
}

// resume re-runs the given application, or the last one that failed or
// paused in this session.
func (s *Session) resume(ctx context.Context, log *zap.Logger, id string) {
	if id == "" {
		id = s.resumable
	}
	if id == "" {
		s.printf("Nothing to resume.\n")
		return
	}
	app, ok := s.store.Get(id)
	if !ok {
		s.printf("No application with id %s.\n", id)
		return
	}
	s.attempt(ctx, log, app, true)
}

// attempt drives the agent through the retry policy and records the outcome.
func (s *Session) attempt(ctx context.Context, log *zap.Logger, app *model.Application, resumed bool) {
	log = log.With(zap.String("application_id", app.ID))
	s.current = app.ID
	s.store.UpdateStatus(app.ID, model.StatusInProgress, nil)
	s.printf("Applying to %s at %s...\n", app.Position, app.Company)

	retry := s.cfg.Retry
	retry.ShouldRetry = resilience.IsRetryable
	retry.Operation = "apply"
	retry.Log = log
	retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.printf("Attempt %d failed (%s): %v. Retrying in %s.\n",
			attempt, resilience.CategoryOf(err), err, delay.Round(time.Millisecond))
	}

	input := applyPrompt(app, resumed)
	_, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		s.store.IncrementAttempts(app.ID)
		return s.runTurn(ctx, log, input)
	})
	if err != nil && ctx.Err() != nil {
		// Recorded by shutdown.
		return
	}
	s.current = ""

	if err != nil {
		s.recordFailure(app, err)
		return
	}
	s.store.UpdateStatus(app.ID, model.StatusCompleted, nil)
	if s.resumable == app.ID {
		s.resumable = ""
	}
	s.printf("Application to %s at %s completed.\n", app.Position, app.Company)
}

func (s *Session) recordFailure(app *model.Application, err error) {
	info := s.classifier.Classify(err, "apply "+app.URL)
	status := model.StatusFailed
	if info.RequiresManualIntervention {
		status = model.StatusRequiresManual
	}
	s.store.UpdateStatus(app.ID, status, &info)
	s.resumable = app.ID

	if info.RequiresManualIntervention {
		s.printf("Automation paused (%s): %s\nFinish this step in the browser, then type 'resume'.\n",
			info.Category, info.Message)
		return
	}
	s.printf("Application failed (%s): %s\nType 'resume' to try again.\n", info.Category, info.Message)
}

// chat forwards free text to the agent without tracking it.
func (s *Session) chat(ctx context.Context, log *zap.Logger, input string) {
	if _, err := s.runTurn(ctx, log, input); err != nil {
		if ctx.Err() != nil {
			return
		}
		info := s.classifier.Classify(err, "chat")
		s.printf("Error (%s): %s\n", info.Category, info.Message)
	}
}

// runTurn runs one agent turn bounded by the turn timeout. A panic in the
// agent is returned as an error.
func (s *Session) runTurn(ctx context.Context, log *zap.Logger, input string) (text string, err error) {
	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("agent panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = eris.Errorf("apply: agent panic: %v", r)
		}
	}()
	return s.runner.Run(ctx, input, s.emit)
}

func (s *Session) list(arg string) {
	apps := s.store.List()
	if arg != "" {
		status, err := model.ParseStatus(strings.ToLower(arg))
		if err != nil {
			s.printf("Unknown status %q.\n", arg)
			return
		}
		apps = s.store.ByStatus(status)
	}
	_ = WriteTable(s.out, apps)
}

func (s *Session) export(path string) {
	if path == "" {
		path = s.cfg.ExportPath
	}
	if err := s.store.ExportFile(path); err != nil {
		s.printf("Export failed: %v\n", err)
		return
	}
	s.printf("Exported %d applications to %s.\n", s.store.Len(), path)
}

// shutdown records an interrupted application and flushes the store.
func (s *Session) shutdown() {
	if s.current != "" {
		app, ok := s.store.Get(s.current)
		if ok {
			info := s.classifier.Classify(resilience.NewError(resilience.CategoryUnknown, "interrupted by operator"), "apply "+app.URL)
			s.store.UpdateStatus(app.ID, model.StatusFailed, &info)
			s.log.Warn("application interrupted", zap.String("application_id", app.ID))
		}
		s.current = ""
	}
	s.store.Save()
}

func (s *Session) emit(e agent.Event) {
	switch e.Kind {
	case agent.EventToolCall:
		s.printf("  -> %s %s\n", e.Tool, truncate(oneLine(string(e.Input)), 120))
	case agent.EventToolResult:
		marker := "<-"
		if e.IsError {
			marker = "!!"
		}
		s.printf("  %s %s: %s\n", marker, e.Tool, truncate(oneLine(e.Output), 120))
	case agent.EventFinal:
		if e.Text != "" {
			s.printf("\n%s\n", e.Text)
		}
	}
}

// ask prints prompt and returns the next input line.
func (s *Session) ask(ctx context.Context, prompt string) (string, error) {
	s.printf("%s", prompt)
	line, err := s.readLine(ctx)
	return strings.TrimSpace(line), err
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// readLines feeds lines from in until EOF or until done is closed.
func readLines(in io.Reader, done <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-done:
				return
			}
		}
	}()
	return ch
}

func applyPrompt(app *model.Application, resumed bool) string {
	if resumed {
		return fmt.Sprintf("Continue the application for the %s position at %s: %s\n"+
			"The operator has dealt with the previous blocker. Take a fresh snapshot, pick up where the form was left and submit it.",
			app.Position, app.Company, app.URL)
	}
	return fmt.Sprintf("Apply to the %s position at %s: %s\n"+
		"Open the posting, find the application form, fill it from the applicant data and submit it.",
		app.Position, app.Company, app.URL)
}

func isURL(s string) bool {
	s = strings.ToLower(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isYes(s string) bool {
	switch strings.ToLower(s) {
	case "y", "yes":
		return true
	}
	return false
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

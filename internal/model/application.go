package model

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ApplicationStatus represents the lifecycle state of a job application.
type ApplicationStatus string

const (
	StatusPending        ApplicationStatus = "pending"
	StatusInProgress     ApplicationStatus = "in_progress"
	StatusCompleted      ApplicationStatus = "completed"
	StatusFailed         ApplicationStatus = "failed"
	StatusRequiresManual ApplicationStatus = "requires_manual"
)

// Placeholders used when the operator leaves company or position empty.
const (
	UnknownCompany  = "Unknown Company"
	UnknownPosition = "Unknown Position"
)

// Statuses returns every status in declaration order.
func Statuses() []ApplicationStatus {
	return []ApplicationStatus{
		StatusPending,
		StatusInProgress,
		StatusCompleted,
		StatusFailed,
		StatusRequiresManual,
	}
}

// Valid reports whether s is one of the enumerated statuses.
func (s ApplicationStatus) Valid() bool {
	return slices.Contains(Statuses(), s)
}

// ParseStatus converts a persisted or operator-supplied string into a status.
func ParseStatus(v string) (ApplicationStatus, error) {
	s := ApplicationStatus(v)
	if !s.Valid() {
		return "", eris.Errorf("model: unknown application status %q", v)
	}
	return s, nil
}

// Label renders s for display, e.g. "Requires Manual".
func (s ApplicationStatus) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// UnmarshalText rejects values outside the enumeration.
func (s *ApplicationStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ErrorInfo is the structured description of a classified failure.
type ErrorInfo struct {
	ErrorType                  string `json:"error_type"`
	Message                    string `json:"message"`
	Context                    string `json:"context"`
	Category                   string `json:"category"`
	RequiresManualIntervention bool   `json:"requires_manual_intervention"`
}

// ErrorEntry is one append-only entry in an application's error history.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Error     ErrorInfo `json:"error"`
}

// Application is a tracked application attempt, keyed by the URL fingerprint.
type Application struct {
	ID        string            `json:"id"`
	URL       string            `json:"url"`
	Company   string            `json:"company"`
	Position  string            `json:"position"`
	Status    ApplicationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Metadata  map[string]any    `json:"metadata"`
	Attempts  int               `json:"attempts"`
	Errors    []ErrorEntry      `json:"errors"`
}

// Clone returns a copy that shares no mutable state with a.
func (a *Application) Clone() *Application {
	c := *a
	c.Metadata = maps.Clone(a.Metadata)
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	c.Errors = slices.Clone(a.Errors)
	if c.Errors == nil {
		c.Errors = []ErrorEntry{}
	}
	return &c
}

// LastError returns the most recent error entry, if any.
func (a *Application) LastError() (ErrorEntry, bool) {
	if len(a.Errors) == 0 {
		return ErrorEntry{}, false
	}
	return a.Errors[len(a.Errors)-1], true
}

// Statistics is an aggregate view over all tracked applications.
type Statistics struct {
	Total    int                       `json:"total"`
	ByStatus map[ApplicationStatus]int `json:"by_status"`
}

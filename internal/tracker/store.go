// Package tracker keeps the durable history of job applications in a single
// JSON document keyed by URL fingerprint.
package tracker

import (
	"cmp"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/apply-cli/internal/model"
)

// Options controls duplicate protection and persistence.
type Options struct {
	// PreventDuplicates makes Add a no-op for an already tracked URL.
	PreventDuplicates bool
	// AutoSave persists the store after every mutation.
	AutoSave bool
}

// DefaultOptions matches the configuration defaults.
func DefaultOptions() Options {
	return Options{PreventDuplicates: true, AutoSave: true}
}

// Store is the Application Store. It is not safe for concurrent use and
// assumes exclusive ownership of its file for the lifetime of the process.
type Store struct {
	path string
	opts Options
	log  *zap.Logger

	apps  map[string]*model.Application
	order []string

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// Open loads the store from path. A missing file yields an empty store; an
// unreadable or malformed file is logged and also yields an empty store,
// leaving the file untouched until the next successful save.
func Open(path string, opts Options, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		path:    path,
		opts:    opts,
		log:     log,
		apps:    make(map[string]*model.Application),
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
	s.load()
	return s
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error("error loading history", zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	var apps map[string]*model.Application
	if err := json.Unmarshal(data, &apps); err != nil {
		s.log.Error("error loading history", zap.String("path", s.path), zap.Error(err))
		return
	}

	ids := make([]string, 0, len(apps))
	for id, app := range apps {
		if app == nil {
			continue
		}
		if app.Metadata == nil {
			app.Metadata = map[string]any{}
		}
		if app.Errors == nil {
			app.Errors = []model.ErrorEntry{}
		}
		ids = append(ids, id)
	}
	// JSON objects carry no order; creation time restores insertion order.
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(apps[a].CreatedAt.Compare(apps[b].CreatedAt), strings.Compare(a, b))
	})

	for _, id := range ids {
		s.apps[id] = apps[id]
	}
	s.order = ids
	s.log.Info("loaded applications from history", zap.Int("count", len(ids)), zap.String("path", s.path))
}

// Save rewrites the whole store to disk. Failures are logged and leave the
// in-memory state untouched.
func (s *Store) Save() {
	if err := s.write(); err != nil {
		s.log.Error("error saving history", zap.String("path", s.path), zap.Error(err))
		return
	}
	s.log.Info("saved applications to history", zap.Int("count", len(s.apps)))
}

// write replaces the file via a temp file and rename so readers never see a
// partial document.
func (s *Store) write() error {
	data, err := json.MarshalIndent(s.apps, "", "  ")
	if err != nil {
		return eris.Wrap(err, "tracker: marshal")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "tracker: create data dir")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "tracker: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "tracker: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "tracker: close temp file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return eris.Wrap(err, "tracker: replace history file")
	}
	return nil
}

func (s *Store) autoSave() {
	if s.opts.AutoSave {
		s.Save()
	}
}

// Add starts tracking an application and returns its ID. When the URL is
// already tracked and duplicates are prevented, the existing ID is returned
// and nothing changes. When duplicates are allowed the existing record is
// reopened: its details and status are replaced while created_at, attempts
// and the error history are kept.
func (s *Store) Add(url, company, position string, status model.ApplicationStatus, metadata map[string]any) string {
	if company == "" {
		company = model.UnknownCompany
	}
	if position == "" {
		position = model.UnknownPosition
	}
	if status == "" {
		status = model.StatusPending
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	id := Fingerprint(url)
	now := s.nowFunc()

	if existing, ok := s.apps[id]; ok {
		if s.opts.PreventDuplicates {
			s.log.Warn("duplicate application detected",
				zap.String("id", id),
				zap.String("company", company),
				zap.String("position", position),
				zap.Time("previous_created_at", existing.CreatedAt),
				zap.String("previous_status", string(existing.Status)),
			)
			return id
		}

		existing.Company = company
		existing.Position = position
		existing.Status = status
		existing.Metadata = metadata
		existing.UpdatedAt = now
		s.autoSave()
		s.log.Info("reopened application",
			zap.String("id", id),
			zap.String("company", company),
			zap.String("position", position),
		)
		return id
	}

	s.apps[id] = &model.Application{
		ID:        id,
		URL:       url,
		Company:   company,
		Position:  position,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
		Attempts:  0,
		Errors:    []model.ErrorEntry{},
	}
	s.order = append(s.order, id)
	s.autoSave()

	s.log.Info("added application",
		zap.String("id", id),
		zap.String("company", company),
		zap.String("position", position),
	)
	return id
}

// UpdateStatus sets the status of id and, when info is given, appends it to
// the error history. Unknown IDs are logged and ignored.
func (s *Store) UpdateStatus(id string, status model.ApplicationStatus, info *model.ErrorInfo) {
	app, ok := s.apps[id]
	if !ok {
		s.log.Error("application not found", zap.String("id", id))
		return
	}

	old := app.Status
	now := s.nowFunc()
	app.Status = status
	app.UpdatedAt = now
	if info != nil {
		app.Errors = append(app.Errors, model.ErrorEntry{Timestamp: now, Error: *info})
	}
	s.autoSave()

	s.log.Info("updated application",
		zap.String("id", id),
		zap.String("from", string(old)),
		zap.String("to", string(status)),
	)
}

// IncrementAttempts records one more automation attempt. Unknown IDs are
// silently ignored.
func (s *Store) IncrementAttempts(id string) {
	app, ok := s.apps[id]
	if !ok {
		return
	}
	app.Attempts++
	app.UpdatedAt = s.nowFunc()
	s.autoSave()
}

// SetMetadata stores one metadata key on id. Unknown IDs are logged and ignored.
func (s *Store) SetMetadata(id, key string, value any) {
	app, ok := s.apps[id]
	if !ok {
		s.log.Error("application not found", zap.String("id", id))
		return
	}
	app.Metadata[key] = value
	app.UpdatedAt = s.nowFunc()
	s.autoSave()
}

// Annotate stores one bookkeeping metadata key, such as an external page id,
// without refreshing updated_at. Unknown IDs are logged and ignored.
func (s *Store) Annotate(id, key string, value any) {
	app, ok := s.apps[id]
	if !ok {
		s.log.Error("application not found", zap.String("id", id))
		return
	}
	app.Metadata[key] = value
	s.autoSave()
}

// Get returns a copy of the application, or false if id is not tracked.
func (s *Store) Get(id string) (*model.Application, bool) {
	app, ok := s.apps[id]
	if !ok {
		return nil, false
	}
	return app.Clone(), true
}

// List returns copies of all applications in insertion order.
func (s *Store) List() []*model.Application {
	out := make([]*model.Application, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.apps[id].Clone())
	}
	return out
}

// ByStatus returns copies of the applications in the given status, in
// insertion order.
func (s *Store) ByStatus(status model.ApplicationStatus) []*model.Application {
	var out []*model.Application
	for _, id := range s.order {
		if app := s.apps[id]; app.Status == status {
			out = append(out, app.Clone())
		}
	}
	return out
}

// IsDuplicate reports whether url is already tracked.
func (s *Store) IsDuplicate(url string) bool {
	_, ok := s.apps[Fingerprint(url)]
	return ok
}

// Len returns the number of tracked applications.
func (s *Store) Len() int {
	return len(s.apps)
}

// Statistics counts applications per status. Every status is present.
func (s *Store) Statistics() model.Statistics {
	stats := model.Statistics{
		Total:    len(s.apps),
		ByStatus: make(map[model.ApplicationStatus]int, len(model.Statuses())),
	}
	for _, st := range model.Statuses() {
		stats.ByStatus[st] = 0
	}
	for _, app := range s.apps {
		stats.ByStatus[app.Status]++
	}
	return stats
}

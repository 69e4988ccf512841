package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"school-planner/domain"
)

const (
	defaultDebounce  = 450 * time.Millisecond
	defaultSavedHold = 1500 * time.Millisecond
	saveTimeout      = 15 * time.Second
)

var (
	// ErrSessionLoading is returned for mutations attempted before the
	// initial load finished.
	ErrSessionLoading = errors.New("session: initial load in progress")
	// ErrSessionClosed is returned for any call after Close.
	ErrSessionClosed = errors.New("session: closed")
)

// Config wires a session to its collaborators.
type Config struct {
	Remote Remote
	Cache  Cache
	Logger *log.Logger

	// Debounce is the quiet period after the last mutation before a remote
	// write is issued. Zero means the 450ms default.
	Debounce time.Duration
	// SavedHold is how long the saved status is shown before reverting to
	// idle.
	SavedHold time.Duration

	// OnStatus is invoked on every sync status change.
	OnStatus func(Status)
	// OnNotify surfaces non-blocking notifications (offline fallback, failed
	// saves, import errors are returned directly instead).
	OnNotify func(string)
}

// Session owns the in-memory document and reconciles it with the remote
// store. Every mutation is applied under one mutex, written through to the
// offline cache synchronously and coalesced into a single debounced remote
// write. A failed remote write never rolls the document back.
type Session struct {
	remote    Remote
	cache     Cache
	logger    *log.Logger
	debounce  time.Duration
	savedHold time.Duration
	onStatus  func(Status)
	onNotify  func(string)

	mu      sync.Mutex
	doc     domain.Document
	status  Status
	loading bool
	closed  bool
	timer   *time.Timer

	// saveMu serializes remote writes so two debounce windows never overlap
	// on the wire.
	saveMu sync.Mutex
}

// NewSession seeds the document from the offline cache (or the default
// document) and returns an idle session. Call Load to reconcile against the
// remote store.
func NewSession(cfg Config) *Session {
	if cfg.Remote == nil {
		panic("engine.NewSession: remote is nil")
	}
	if cfg.Cache == nil {
		panic("engine.NewSession: cache is nil")
	}
	s := &Session{
		remote:    cfg.Remote,
		cache:     cfg.Cache,
		logger:    cfg.Logger,
		debounce:  cfg.Debounce,
		savedHold: cfg.SavedHold,
		onStatus:  cfg.OnStatus,
		onNotify:  cfg.OnNotify,
		status:    StatusIdle,
	}
	if s.logger == nil {
		s.logger = log.StandardLogger()
	}
	if s.debounce <= 0 {
		s.debounce = defaultDebounce
	}
	if s.savedHold <= 0 {
		s.savedHold = defaultSavedHold
	}
	if cached := s.cache.Load(); cached != nil {
		s.doc = domain.Normalize(*cached)
	} else {
		s.doc = domain.DefaultDocument()
	}
	return s
}

// Load replaces the in-memory document with the remote one. On failure the
// session keeps the cached or default document and goes offline; the error is
// surfaced as a notification, never as a fatal condition.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.loading = true
	s.mu.Unlock()

	doc, err := s.remote.Fetch(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		s.setStatus(StatusOffline)
		s.notify("could not reach the server, working from the offline copy")
		s.logger.WithError(err).Warn("initial load failed, serving offline document")
		return err
	}
	s.doc = domain.Normalize(doc)
	snapshot := s.doc.Clone()
	s.mu.Unlock()

	s.cache.Save(snapshot)
	s.cache.Clear()
	s.setStatus(StatusIdle)
	return nil
}

// Snapshot returns a deep copy of the current document.
func (s *Session) Snapshot() domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Status returns the current sync status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// AddCourse creates a course. A *domain.ValidationError is returned for bad
// input and the document is left untouched.
func (s *Session) AddCourse(name, color string, credits *float64) (domain.Course, error) {
	var course domain.Course
	err := s.mutate(func(doc domain.Document) (domain.Document, error) {
		next, c, err := domain.AddCourse(doc, name, color, credits)
		course = c
		return next, err
	})
	return course, err
}

// UpdateCourse edits a course.
func (s *Session) UpdateCourse(id, name, color string, credits *float64) (domain.Course, error) {
	var course domain.Course
	err := s.mutate(func(doc domain.Document) (domain.Document, error) {
		next, c, err := domain.UpdateCourse(doc, id, name, color, credits)
		course = c
		return next, err
	})
	return course, err
}

// DeleteCourse removes a course, clearing references on tasks and grades.
func (s *Session) DeleteCourse(id string) error {
	return s.mutate(func(doc domain.Document) (domain.Document, error) {
		return domain.DeleteCourse(doc, id), nil
	})
}

// AddTask creates a task from raw form input.
func (s *Session) AddTask(in domain.TaskInput) (domain.Task, error) {
	var task domain.Task
	err := s.mutate(func(doc domain.Document) (domain.Document, error) {
		next, t, err := domain.AddTask(doc, in, time.Now())
		task = t
		return next, err
	})
	return task, err
}

// UpdateTask edits a task, keeping any derived grade in lockstep.
func (s *Session) UpdateTask(id string, in domain.TaskInput) (domain.Task, error) {
	var task domain.Task
	err := s.mutate(func(doc domain.Document) (domain.Document, error) {
		next, t, err := domain.UpdateTask(doc, id, in)
		task = t
		return next, err
	})
	return task, err
}

// DeleteTask removes a task and its derived grade.
func (s *Session) DeleteTask(id string) error {
	return s.mutate(func(doc domain.Document) (domain.Document, error) {
		return domain.DeleteTask(doc, id), nil
	})
}

// CompleteTask finishes a task. When the task tracks points, nothing is
// committed and a score prompt is returned; the caller either confirms via
// ConfirmScore or abandons the prompt, which leaves the task open.
func (s *Session) CompleteTask(id string) (*domain.ScorePrompt, error) {
	s.mu.Lock()
	if err := s.guardLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	next, prompt, err := domain.CompleteTask(s.doc, id, time.Now())
	if err != nil || prompt != nil {
		s.mu.Unlock()
		return prompt, err
	}
	snapshot := s.commitLocked(next)
	s.mu.Unlock()
	s.cache.Save(snapshot)
	return nil, nil
}

// ConfirmScore commits a pending completion with the entered score.
func (s *Session) ConfirmScore(id string, score float64) error {
	return s.mutate(func(doc domain.Document) (domain.Document, error) {
		return domain.ConfirmScore(doc, id, score, time.Now())
	})
}

// UndoTask reopens a done task and deletes its derived grade.
func (s *Session) UndoTask(id string) error {
	return s.mutate(func(doc domain.Document) (domain.Document, error) {
		return domain.UndoTask(doc, id)
	})
}

// AddGrade creates a manual grade item.
func (s *Session) AddGrade(in domain.GradeInput) (domain.GradeItem, error) {
	var item domain.GradeItem
	err := s.mutate(func(doc domain.Document) (domain.Document, error) {
		next, g, err := domain.AddGrade(doc, in, time.Now())
		item = g
		return next, err
	})
	return item, err
}

// UpdateGrade edits a manual grade item.
func (s *Session) UpdateGrade(id string, in domain.GradeInput) (domain.GradeItem, error) {
	var item domain.GradeItem
	err := s.mutate(func(doc domain.Document) (domain.Document, error) {
		next, g, err := domain.UpdateGrade(doc, id, in)
		item = g
		return next, err
	})
	return item, err
}

// DeleteGrade removes a grade item.
func (s *Session) DeleteGrade(id string) error {
	return s.mutate(func(doc domain.Document) (domain.Document, error) {
		return domain.DeleteGrade(doc, id), nil
	})
}

// UpdateSettings replaces the user settings, normalized.
func (s *Session) UpdateSettings(settings domain.Settings) error {
	return s.mutate(func(doc domain.Document) (domain.Document, error) {
		return domain.UpdateSettings(doc, settings), nil
	})
}

// Buckets classifies open tasks by due day.
func (s *Session) Buckets(now time.Time, opts domain.BucketOptions) domain.Buckets {
	return domain.ComputeBuckets(s.Snapshot(), now, opts)
}

// Tasks returns the filtered, sorted task list.
func (s *Session) Tasks(q domain.TaskQuery, by domain.TaskSort) []domain.Task {
	return domain.SortTasks(domain.FilterTasks(s.Snapshot(), q), by)
}

// GradeSummary returns per-course grade aggregates.
func (s *Session) GradeSummary() map[string]domain.CourseAggregate {
	return domain.CourseAggregates(s.Snapshot())
}

// Overall returns the aggregate across all grade items.
func (s *Session) Overall() domain.CourseAggregate {
	return domain.OverallAggregate(s.Snapshot())
}

// Export renders the document as pretty-printed JSON.
func (s *Session) Export() ([]byte, error) {
	return s.Snapshot().Export()
}

// Import replaces the document wholesale with the parsed, normalized payload.
// Malformed JSON returns a *domain.ParseError and changes nothing.
func (s *Session) Import(data []byte) error {
	doc, err := domain.ParseDocument(data)
	if err != nil {
		return err
	}
	return s.mutate(func(domain.Document) (domain.Document, error) {
		return doc, nil
	})
}

// Flush cancels the pending debounce window and saves immediately.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()
	return s.save(ctx)
}

// Close stops the debounce timer and waits for an in-flight save. It does not
// issue a final save; call Flush first when that is wanted.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()

	// Acquiring saveMu blocks until an in-flight save has finished.
	s.saveMu.Lock()
	s.saveMu.Unlock()
}

func (s *Session) mutate(op func(domain.Document) (domain.Document, error)) error {
	s.mu.Lock()
	if err := s.guardLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	next, err := op(s.doc)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot := s.commitLocked(next)
	s.mu.Unlock()

	s.cache.Save(snapshot)
	return nil
}

func (s *Session) guardLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.loading {
		return ErrSessionLoading
	}
	return nil
}

// commitLocked installs the new document and restarts the debounce window.
// The returned clone is for the cache write that happens outside the lock.
func (s *Session) commitLocked(next domain.Document) domain.Document {
	s.doc = next
	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.debounce, s.debouncedSave)
	return next.Clone()
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) debouncedSave() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	_ = s.save(ctx)
}

func (s *Session) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	snapshot := s.doc.Clone()
	s.mu.Unlock()

	s.setStatus(StatusSaving)
	if err := s.remote.Store(ctx, snapshot); err != nil {
		s.setStatus(StatusError)
		s.notify("saving to the server failed, your changes are kept locally")
		s.logger.WithError(err).Error("remote save failed, offline cache retains the document")
		return err
	}
	s.setStatus(StatusSaved)
	time.AfterFunc(s.savedHold, s.settleSavedStatus)
	return nil
}

func (s *Session) settleSavedStatus() {
	s.mu.Lock()
	if s.status != StatusSaved {
		s.mu.Unlock()
		return
	}
	s.status = StatusIdle
	cb := s.onStatus
	s.mu.Unlock()
	if cb != nil {
		cb(StatusIdle)
	}
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	if s.status == st {
		s.mu.Unlock()
		return
	}
	s.status = st
	cb := s.onStatus
	s.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

func (s *Session) notify(msg string) {
	if s.onNotify != nil {
		s.onNotify(msg)
	}
}

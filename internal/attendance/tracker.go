package attendance

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/campcheck/internal/domain/models"
)

// State is the tracker's position in the session lifecycle.
type State string

const (
	StateIdle State = "idle"
	StateOpen State = "open"
)

const (
	DefaultLocation = "Main Area"
	DefaultOperator = "Current User"
)

// Directory is the read side of the registry the tracker depends on.
type Directory interface {
	Find(id string) (models.Camper, bool)
	Snapshot() []models.Camper
}

// TrackerOptions tunes session defaults.
type TrackerOptions struct {
	DefaultLocation string
	DefaultOperator string
}

// Tracker owns the single open scanning session and the history of closed
// ones. All methods are safe for concurrent use and linearized.
type Tracker struct {
	mu        sync.Mutex
	directory Directory
	active    *models.Session
	scanned   map[string]struct{}
	history   []models.SessionRecord
	opts      TrackerOptions
	now       func() time.Time
	newID     func() string
}

// NewTracker builds an idle tracker resolving codes against directory.
func NewTracker(directory Directory, opts TrackerOptions) *Tracker {
	if opts.DefaultLocation == "" {
		opts.DefaultLocation = DefaultLocation
	}
	if opts.DefaultOperator == "" {
		opts.DefaultOperator = DefaultOperator
	}
	return &Tracker{
		directory: directory,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// State reports whether a session is open.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

func (t *Tracker) stateLocked() State {
	if t.active == nil {
		return StateIdle
	}
	return StateOpen
}

// Start opens a new session. It fails with a ConflictError when one is already open.
func (t *Tracker) Start(location, operator string) (models.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		return models.Session{}, &ConflictError{Code: CodeActiveSessionExists, Reason: "session " + t.active.ID + " is already open"}
	}

	location = strings.TrimSpace(location)
	if location == "" {
		location = t.opts.DefaultLocation
	}
	operator = strings.TrimSpace(operator)
	if operator == "" {
		operator = t.opts.DefaultOperator
	}

	t.active = &models.Session{
		ID:        t.newID(),
		StartedAt: t.now().UTC(),
		Location:  location,
		Operator:  operator,
		Status:    models.SessionOpen,
		Events:    make([]models.ScanEvent, 0),
	}
	t.scanned = make(map[string]struct{})
	return t.active.Clone(), nil
}

// RecordScan applies a scanned code to the open session. Duplicates and
// unknown codes are reported through the outcome, not as errors.
func (t *Tracker) RecordScan(code string) (models.ScanOutcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return models.ScanOutcome{}, &StateError{Op: "record scan", State: StateIdle}
	}

	at := t.now().UTC()
	outcome := models.ScanOutcome{Code: code, At: at}

	id, ok := models.ParsePayloadID(code)
	if !ok {
		outcome.Kind = models.OutcomeUnknown
		return outcome, nil
	}
	camper, ok := t.directory.Find(id)
	if !ok {
		outcome.Kind = models.OutcomeUnknown
		return outcome, nil
	}

	outcome.Camper = &camper
	if _, dup := t.scanned[camper.ID]; dup {
		outcome.Kind = models.OutcomeDuplicate
		return outcome, nil
	}

	t.scanned[camper.ID] = struct{}{}
	t.active.Events = append(t.active.Events, models.ScanEvent{CamperID: camper.ID, ScannedAt: at})
	outcome.Kind = models.OutcomeAccepted
	return outcome, nil
}

// Active returns a snapshot of the open session with live counts.
func (t *Tracker) Active() (models.ActiveSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return models.ActiveSession{}, &StateError{Op: "read active session", State: StateIdle}
	}

	total := len(t.directory.Snapshot())
	scanned := len(t.active.Events)
	remaining := total - scanned
	if remaining < 0 {
		remaining = 0
	}
	return models.ActiveSession{
		Session: t.active.Clone(),
		Counts:  models.LiveCounts{Scanned: scanned, Total: total, Remaining: remaining},
	}, nil
}

// Missing lists the campers not yet scanned in the open session, in roster order.
func (t *Tracker) Missing() ([]models.Camper, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return nil, &StateError{Op: "list missing campers", State: StateIdle}
	}
	return BuildReport(t.directory.Snapshot(), t.active.Events).MissingCampers, nil
}

// Close ends the open session, builds its report from the current roster and
// appends both to history.
func (t *Tracker) Close() (models.SessionRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return models.SessionRecord{}, &StateError{Op: "close session", State: StateIdle}
	}

	session := t.active.Clone()
	ended := t.now().UTC()
	session.EndedAt = &ended
	session.Status = models.SessionClosed

	record := models.SessionRecord{
		Session: session,
		Report:  BuildReport(t.directory.Snapshot(), session.Events),
	}
	t.history = append(t.history, record)
	t.active = nil
	t.scanned = nil
	return record.Clone(), nil
}

// Cancel discards the open session. Nothing is added to history.
func (t *Tracker) Cancel() (models.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return models.Session{}, &StateError{Op: "cancel session", State: StateIdle}
	}

	session := t.active.Clone()
	ended := t.now().UTC()
	session.EndedAt = &ended
	session.Status = models.SessionCancelled

	t.active = nil
	t.scanned = nil
	return session, nil
}

// History returns closed sessions oldest first.
func (t *Tracker) History() []models.SessionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.SessionRecord, 0, len(t.history))
	for _, rec := range t.history {
		out = append(out, rec.Clone())
	}
	return out
}

// Record returns one closed session by id.
func (t *Tracker) Record(id string) (models.SessionRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, rec := range t.history {
		if rec.Session.ID == id {
			return rec.Clone(), nil
		}
	}
	return models.SessionRecord{}, ErrNotFound
}

// RestoreHistory seeds history with previously persisted records.
func (t *Tracker) RestoreHistory(records []models.SessionRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.history) > 0 {
		return &ConflictError{Code: CodeAlreadyRestored, Reason: "history already populated"}
	}
	for _, rec := range records {
		t.history = append(t.history, rec.Clone())
	}
	return nil
}

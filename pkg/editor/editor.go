// Package editor holds a working copy of one session's attendance and autosaves
// it through the bulk update endpoint after a quiet period with no edits.
package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
)

// State is the autosave lifecycle of the working copy.
type State string

const (
	StateIdle   State = "idle"
	StateDirty  State = "dirty"
	StateSaving State = "saving"
	StateSaved  State = "saved"
	StateError  State = "error"
)

// ErrUnknownRow is returned when an edit names an attendance id that is not loaded.
var ErrUnknownRow = errors.New("editor: attendance row not loaded")

// Saver persists a bulk patch. *client.Client satisfies it.
type Saver interface {
	BulkUpdate(ctx context.Context, items []models.AttendanceUpdate) error
}

// Row is one editable attendance line.
type Row struct {
	AttendanceID string
	StudentID    string
	FirstName    string
	LastName     string
	DisplayName  string
	Status       models.AttendanceStatus
	Notes        string
}

// FullName joins first and last name, falling back to the display name.
func (r Row) FullName() string {
	if full := strings.TrimSpace(r.FirstName + " " + r.LastName); full != "" {
		return full
	}
	return r.DisplayName
}

// RowsFromSession flattens a session's populated attendees into editor rows.
func RowsFromSession(detail *models.SessionDetail) []Row {
	if detail == nil {
		return nil
	}
	rows := make([]Row, 0, len(detail.Attendees))
	for _, a := range detail.Attendees {
		row := Row{AttendanceID: a.ID, StudentID: a.StudentID, Status: a.Status}
		if a.Notes != nil {
			row.Notes = *a.Notes
		}
		if a.Student != nil {
			row.DisplayName = a.Student.DisplayName
		}
		rows = append(rows, row)
	}
	return rows
}

// Config tunes the editor timers.
type Config struct {
	// QuietPeriod is how long edits must pause before an autosave. Default 1s.
	QuietPeriod time.Duration
	// ConfirmWindow is how long the saved state shows before returning to idle. Default 2s.
	ConfirmWindow time.Duration
	// SaveTimeout bounds each timer-driven save request. Default 10s.
	SaveTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = time.Second
	}
	if c.ConfirmWindow <= 0 {
		c.ConfirmWindow = 2 * time.Second
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 10 * time.Second
	}
	return c
}

// Editor is safe for concurrent use.
//
// At most one bulk call is in flight. An edit made while a save is running
// re-arms the quiet period; the follow-up call starts only after the running
// one returns, so the server always receives snapshots in edit order.
type Editor struct {
	saver  Saver
	cfg    Config
	logger *zap.Logger

	// sendMu serialises bulk calls so an older snapshot never lands after a newer one.
	sendMu sync.Mutex

	mu         sync.Mutex
	rows       []Row
	index      map[string]int
	state      State
	lastErr    error
	generation uint64
	editSeq    uint64
	sentSeq    uint64
	quiet      *time.Timer
	confirm    *time.Timer
	closed     bool
}

// New builds an idle editor with no rows.
func New(saver Saver, cfg Config, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{
		saver:  saver,
		cfg:    cfg.withDefaults(),
		logger: logger,
		index:  map[string]int{},
		state:  StateIdle,
	}
}

// Load replaces the working copy, discarding unsaved edits and pending timers.
// Saves already in flight complete, but their outcome no longer affects State.
func (e *Editor) Load(rows []Row) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopTimersLocked()
	e.generation++
	e.rows = append([]Row(nil), rows...)
	e.index = make(map[string]int, len(rows))
	for i, row := range e.rows {
		e.index[row.AttendanceID] = i
	}
	e.editSeq, e.sentSeq = 0, 0
	e.state = StateIdle
	e.lastErr = nil
}

// SetStatus changes one row's status and re-arms the quiet period.
func (e *Editor) SetStatus(attendanceID string, status models.AttendanceStatus) error {
	return e.edit(attendanceID, func(row *Row) { row.Status = status })
}

// SetNotes changes one row's notes and re-arms the quiet period.
func (e *Editor) SetNotes(attendanceID, notes string) error {
	return e.edit(attendanceID, func(row *Row) { row.Notes = notes })
}

func (e *Editor) edit(attendanceID string, apply func(*Row)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.index[attendanceID]
	if !ok {
		return ErrUnknownRow
	}
	apply(&e.rows[i])
	e.editSeq++
	if e.closed {
		return nil
	}
	if e.confirm != nil {
		e.confirm.Stop()
		e.confirm = nil
	}
	if e.state != StateSaving {
		e.state = StateDirty
	}

	gen := e.generation
	if e.quiet != nil {
		e.quiet.Stop()
	}
	e.quiet = time.AfterFunc(e.cfg.QuietPeriod, func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SaveTimeout)
		defer cancel()
		_ = e.save(ctx, gen)
	})
	return nil
}

// Flush saves the held rows now instead of waiting for the quiet period.
// It is a no-op when nothing changed since the last save.
func (e *Editor) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.quiet != nil {
		e.quiet.Stop()
		e.quiet = nil
	}
	gen := e.generation
	e.mu.Unlock()
	return e.save(ctx, gen)
}

// Close stops the timers. A request already in flight is left to finish.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.stopTimersLocked()
}

// State reports the autosave state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the failure behind StateError.
func (e *Editor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Rows returns a copy of the working copy in load order.
func (e *Editor) Rows() []Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Row(nil), e.rows...)
}

// View filters and sorts a copy of the working copy.
func (e *Editor) View(query string, s Sort) []Row {
	return FilterAndSort(e.Rows(), query, s)
}

func (e *Editor) save(ctx context.Context, gen uint64) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	e.mu.Lock()
	if gen != e.generation || e.editSeq == e.sentSeq {
		e.mu.Unlock()
		return nil
	}
	items := make([]models.AttendanceUpdate, 0, len(e.rows))
	for _, row := range e.rows {
		status := string(row.Status)
		notes := row.Notes
		items = append(items, models.AttendanceUpdate{AttendanceID: row.AttendanceID, Status: &status, Notes: &notes})
	}
	seq := e.editSeq
	e.sentSeq = seq
	e.state = StateSaving
	e.mu.Unlock()

	err := e.saver.BulkUpdate(ctx, items)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		e.logger.Debug("discarding save result from an earlier load", zap.Error(err))
		return err
	}
	switch {
	case err != nil:
		e.state = StateError
		e.lastErr = err
		if e.sentSeq == seq {
			// lets Flush resend the failed snapshot
			e.sentSeq = 0
		}
		e.logger.Warn("attendance autosave failed", zap.Int("rows", len(items)), zap.Error(err))
	case e.editSeq != seq:
		e.state = StateDirty
	default:
		e.state = StateSaved
		e.lastErr = nil
		if !e.closed {
			e.confirm = time.AfterFunc(e.cfg.ConfirmWindow, func() { e.settle(gen) })
		}
	}
	return err
}

func (e *Editor) settle(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen == e.generation && e.state == StateSaved {
		e.state = StateIdle
	}
}

func (e *Editor) stopTimersLocked() {
	if e.quiet != nil {
		e.quiet.Stop()
		e.quiet = nil
	}
	if e.confirm != nil {
		e.confirm.Stop()
		e.confirm = nil
	}
}

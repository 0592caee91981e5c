package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/meemli/meemli-api/internal/models"
)

// SessionRepository persists sessions and fans out their attendance rows.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns sessions matching filter, newest first.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", len(args)))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		conditions = append(conditions, fmt.Sprintf("session_date = $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT id, section_id, session_date, created_at, updated_at FROM sessions
        WHERE %s ORDER BY session_date DESC, id ASC`, strings.Join(conditions, " AND "))
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// FindByID fetches a session. Returns sql.ErrNoRows when absent.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT id, section_id, session_date, created_at, updated_at FROM sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ExistingIDs returns which of ids belong to stored sessions.
func (r *SessionRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	return existingIDs(ctx, r.db, "sessions", ids)
}

// CreateWithAttendance inserts the session and, when populate is set, one PRESENT
// attendance row per student enrolled in its section, all in one transaction.
// It returns the number of attendance rows created.
func (r *SessionRepository) CreateWithAttendance(ctx context.Context, session *models.Session, populate bool) (created int, err error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertSession = `INSERT INTO sessions (id, section_id, session_date, created_at, updated_at)
        VALUES (:id, :section_id, :session_date, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertSession, session); err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}

	if populate {
		var studentIDs []string
		if err = tx.SelectContext(ctx, &studentIDs, `SELECT student_id FROM section_enrollments WHERE section_id = $1 ORDER BY student_id`, session.SectionID); err != nil {
			return 0, fmt.Errorf("load enrolled students: %w", err)
		}
		const insertAttendance = `INSERT INTO attendance (id, session_id, student_id, status, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $5) ON CONFLICT (session_id, student_id) DO NOTHING`
		for _, studentID := range studentIDs {
			if _, err = tx.ExecContext(ctx, insertAttendance, uuid.NewString(), session.ID, studentID, models.AttendancePresent, now); err != nil {
				return 0, fmt.Errorf("create attendance for student %s: %w", studentID, err)
			}
			created++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create session: %w", err)
	}
	return created, nil
}

// Update rewrites the section and date of a session.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET section_id = :section_id, session_date = :session_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// ExistsForSectionOn reports whether the section already has a session on day.
func (r *SessionRepository) ExistsForSectionOn(ctx context.Context, sectionID string, day models.Date) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM sessions WHERE section_id = $1 AND session_date = $2)`
	if err := r.db.GetContext(ctx, &exists, query, sectionID, day); err != nil {
		return false, fmt.Errorf("check session exists: %w", err)
	}
	return exists, nil
}

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

const attendanceDetailQuery = `SELECT a.id, a.session_id, a.student_id, a.status, a.notes, a.created_at, a.updated_at,
        st.id AS "student.id", st.display_name AS "student.display_name", st.meemli_email AS "student.meemli_email",
        st.grade AS "student.grade", st.school_name AS "student.school_name", st.city AS "student.city",
        st.state AS "student.state", st.preassessment_score AS "student.preassessment_score",
        st.postassessment_score AS "student.postassessment_score", st.comments AS "student.comments",
        st.parent_first_name AS "student.parent.first_name", st.parent_last_name AS "student.parent.last_name",
        st.parent_phone AS "student.parent.phone", st.parent_email AS "student.parent.email",
        st.created_at AS "student.created_at", st.updated_at AS "student.updated_at"
        FROM attendance a
        JOIN students st ON st.id = a.student_id
        WHERE a.session_id = $1
        ORDER BY st.display_name ASC, a.id ASC`

// AttendanceRepository persists per-student attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListBySession returns the session's rows, each with its student resolved.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceDetail, error) {
	var rows []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, attendanceDetailQuery, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance for session: %w", err)
	}
	for i := range rows {
		if rows[i].Student != nil && rows[i].Student.EnrolledSectionIDs == nil {
			rows[i].Student.EnrolledSectionIDs = []string{}
		}
	}
	return rows, nil
}

// FindByID fetches a record. Returns sql.ErrNoRows when absent.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	const query = `SELECT id, session_id, student_id, status, notes, created_at, updated_at FROM attendance WHERE id = $1`
	var record models.Attendance
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts a single record. A duplicate (session, student) pair violates a unique constraint.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.AttendancePresent
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO attendance (id, session_id, student_id, status, notes, created_at, updated_at)
        VALUES (:id, :session_id, :student_id, :status, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// Patch writes the provided fields of one record. It reports whether a row matched;
// a patch with no fields matches nothing and writes nothing.
func (r *AttendanceRepository) Patch(ctx context.Context, id string, status, notes *string) (bool, error) {
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if status != nil {
		args = append(args, *status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if notes != nil {
		args = append(args, *notes)
		sets = append(sets, fmt.Sprintf("notes = $%d", len(args)))
	}
	if len(sets) == 0 {
		return false, nil
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)
	query := fmt.Sprintf("UPDATE attendance SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("patch attendance %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("patch attendance rows affected: %w", err)
	}
	return affected > 0, nil
}

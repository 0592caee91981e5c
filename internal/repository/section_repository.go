package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/meemli/meemli-api/internal/models"
)

const sectionColumns = `s.id, s.code, s.program_id, s.start_time, s.end_time, s.days, s.created_at, s.updated_at,
        ARRAY(SELECT st.user_id FROM section_teachers st WHERE st.section_id = s.id ORDER BY st.user_id) AS teacher_ids,
        ARRAY(SELECT se.student_id FROM section_enrollments se WHERE se.section_id = s.id ORDER BY se.student_id) AS student_ids,
        ARRAY(SELECT ss.id FROM sessions ss WHERE ss.section_id = s.id ORDER BY ss.session_date, ss.id) AS session_ids`

type sectionRow struct {
	models.Section
	TeacherIDs pq.StringArray `db:"teacher_ids"`
	StudentIDs pq.StringArray `db:"student_ids"`
	SessionIDs pq.StringArray `db:"session_ids"`
}

func (r sectionRow) toModel() models.Section {
	section := r.Section
	section.Teachers = toStrings(r.TeacherIDs)
	section.EnrolledStudents = toStrings(r.StudentIDs)
	section.Sessions = toStrings(r.SessionIDs)
	if section.Days == nil {
		section.Days = pq.StringArray{}
	}
	return section
}

func sectionModels(rows []sectionRow) []models.Section {
	sections := make([]models.Section, 0, len(rows))
	for _, row := range rows {
		sections = append(sections, row.toModel())
	}
	return sections
}

// SectionRepository manages sections together with their teacher and enrollment links.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs a SectionRepository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns every section ordered by code.
func (r *SectionRepository) List(ctx context.Context) ([]models.Section, error) {
	query := fmt.Sprintf("SELECT %s FROM sections s ORDER BY s.code ASC, s.id ASC", sectionColumns)
	var rows []sectionRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sectionModels(rows), nil
}

// ListByIDs returns the sections whose ids are given, ordered by code.
func (r *SectionRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Section, error) {
	if len(ids) == 0 {
		return []models.Section{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM sections s WHERE s.id = ANY($1) ORDER BY s.code ASC, s.id ASC", sectionColumns)
	var rows []sectionRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list sections by id: %w", err)
	}
	return sectionModels(rows), nil
}

// ListMeetingOn returns sections that meet on the weekday of day within an active program.
func (r *SectionRepository) ListMeetingOn(ctx context.Context, day models.Date) ([]models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections s
        JOIN programs p ON p.id = s.program_id
        WHERE $1 = ANY(s.days) AND p.archived = FALSE
        AND p.start_date <= $2 AND (p.end_date IS NULL OR p.end_date >= $2)
        ORDER BY s.code ASC, s.id ASC`, sectionColumns)
	var rows []sectionRow
	if err := r.db.SelectContext(ctx, &rows, query, day.Weekday().String(), day); err != nil {
		return nil, fmt.Errorf("list sections meeting on %s: %w", day, err)
	}
	return sectionModels(rows), nil
}

// FindByID fetches a section. Returns sql.ErrNoRows when absent.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf("SELECT %s FROM sections s WHERE s.id = $1", sectionColumns)
	var row sectionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	section := row.toModel()
	return &section, nil
}

// ExistingIDs returns which of ids belong to stored sections.
func (r *SectionRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	return existingIDs(ctx, r.db, "sections", ids)
}

// Create inserts a section with its teachers and enrolled students.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) (err error) {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	section.CreatedAt = now
	section.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create section: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO sections (id, code, program_id, start_time, end_time, days, created_at, updated_at)
        VALUES (:id, :code, :program_id, :start_time, :end_time, :days, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	if err = r.writeLinks(ctx, tx, section); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create section: %w", err)
	}
	if section.Sessions == nil {
		section.Sessions = []string{}
	}
	return nil
}

// Update rewrites a section and replaces its teacher and enrollment links.
func (r *SectionRepository) Update(ctx context.Context, section *models.Section) (err error) {
	section.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update section: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE sections SET code = :code, program_id = :program_id, start_time = :start_time,
        end_time = :end_time, days = :days, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	if err = r.writeLinks(ctx, tx, section); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update section: %w", err)
	}
	return nil
}

func (r *SectionRepository) writeLinks(ctx context.Context, tx *sqlx.Tx, section *models.Section) error {
	if err := replaceLinks(ctx, tx, "section_teachers", "section_id", "user_id", section.ID, section.Teachers); err != nil {
		return err
	}
	return replaceLinks(ctx, tx, "section_enrollments", "section_id", "student_id", section.ID, section.EnrolledStudents)
}

// Delete removes a section; links, sessions and their attendance cascade.
func (r *SectionRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete section: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete section rows affected: %w", err)
	}
	return affected > 0, nil
}

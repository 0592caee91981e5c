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

const studentColumns = `s.id, s.display_name, s.meemli_email, s.grade, s.school_name, s.city, s.state,
        s.preassessment_score, s.postassessment_score, s.comments,
        s.parent_first_name AS "parent.first_name", s.parent_last_name AS "parent.last_name",
        s.parent_phone AS "parent.phone", s.parent_email AS "parent.email",
        s.created_at, s.updated_at,
        ARRAY(SELECT se.section_id FROM section_enrollments se WHERE se.student_id = s.id ORDER BY se.section_id) AS section_ids`

type studentRow struct {
	models.Student
	SectionIDs pq.StringArray `db:"section_ids"`
}

func (r studentRow) toModel() models.Student {
	student := r.Student
	student.EnrolledSectionIDs = toStrings(r.SectionIDs)
	return student
}

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns every student ordered by display name.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s ORDER BY s.display_name ASC", studentColumns)
	var rows []studentRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toModel())
	}
	return students, nil
}

// FindByID fetches a student by ID. Returns sql.ErrNoRows when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.id = $1", studentColumns)
	var row studentRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	student := row.toModel()
	return &student, nil
}

// ExistingIDs returns which of ids belong to stored students.
func (r *StudentRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	return existingIDs(ctx, r.db, "students", ids)
}

// Create inserts a student and its section enrollments.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) (err error) {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO students (id, display_name, meemli_email, grade, school_name, city, state,
        preassessment_score, postassessment_score, comments,
        parent_first_name, parent_last_name, parent_phone, parent_email, created_at, updated_at)
        VALUES (:id, :display_name, :meemli_email, :grade, :school_name, :city, :state,
        :preassessment_score, :postassessment_score, :comments,
        :parent.first_name, :parent.last_name, :parent.phone, :parent.email, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	if err = replaceLinks(ctx, tx, "section_enrollments", "student_id", "section_id", student.ID, student.EnrolledSectionIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	return nil
}

// Update rewrites a student and replaces its section enrollments.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) (err error) {
	student.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update student: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE students SET display_name = :display_name, meemli_email = :meemli_email, grade = :grade,
        school_name = :school_name, city = :city, state = :state,
        preassessment_score = :preassessment_score, postassessment_score = :postassessment_score, comments = :comments,
        parent_first_name = :parent.first_name, parent_last_name = :parent.last_name,
        parent_phone = :parent.phone, parent_email = :parent.email, updated_at = :updated_at
        WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if err = replaceLinks(ctx, tx, "section_enrollments", "student_id", "section_id", student.ID, student.EnrolledSectionIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update student: %w", err)
	}
	return nil
}

// Delete removes a student; enrollments and attendance cascade.
func (r *StudentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete student rows affected: %w", err)
	}
	return affected > 0, nil
}

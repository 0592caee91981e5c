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

const programColumns = `p.id, p.code, p.name, p.start_date, p.end_date, p.description, p.archived, p.created_at, p.updated_at,
        ARRAY(SELECT s.id FROM sections s WHERE s.program_id = p.id ORDER BY s.code, s.id) AS section_ids`

type programRow struct {
	models.Program
	SectionIDs pq.StringArray `db:"section_ids"`
}

func (r programRow) toModel() models.Program {
	program := r.Program
	program.Sections = toStrings(r.SectionIDs)
	return program
}

// ProgramRepository persists programs.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs a ProgramRepository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns programs, latest start date first.
func (r *ProgramRepository) List(ctx context.Context) ([]models.Program, error) {
	query := fmt.Sprintf("SELECT %s FROM programs p ORDER BY p.start_date DESC, p.id ASC", programColumns)
	var rows []programRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	programs := make([]models.Program, 0, len(rows))
	for _, row := range rows {
		programs = append(programs, row.toModel())
	}
	return programs, nil
}

// FindByID fetches a program. Returns sql.ErrNoRows when absent.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	query := fmt.Sprintf("SELECT %s FROM programs p WHERE p.id = $1", programColumns)
	var row programRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	program := row.toModel()
	return &program, nil
}

// ExistingIDs returns which of ids belong to stored programs.
func (r *ProgramRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	return existingIDs(ctx, r.db, "programs", ids)
}

// Create inserts a program, keeping a caller supplied id.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	program.CreatedAt = now
	program.UpdatedAt = now
	const query = `INSERT INTO programs (id, code, name, start_date, end_date, description, archived, created_at, updated_at)
        VALUES (:id, :code, :name, :start_date, :end_date, :description, :archived, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	if program.Sections == nil {
		program.Sections = []string{}
	}
	return nil
}

// Update rewrites a program.
func (r *ProgramRepository) Update(ctx context.Context, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE programs SET code = :code, name = :name, start_date = :start_date, end_date = :end_date,
        description = :description, archived = :archived, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return nil
}

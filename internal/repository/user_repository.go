package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/meemli/meemli-api/internal/models"
)

const userColumns = `id, first_name, last_name, personal_email, meemli_email, admin, created_at, updated_at`

// UserRepository persists staff users keyed by identity provider uid.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// List returns every user ordered by last then first name.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users ORDER BY last_name ASC, first_name ASC", userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// FindByID fetches a user. Returns sql.ErrNoRows when absent.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistingIDs returns which of ids belong to stored users.
func (r *UserRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	return existingIDs(ctx, r.db, "users", ids)
}

// Create inserts a user. The id must already be set to the provider uid.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("create user: missing id")
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	query := fmt.Sprintf("INSERT INTO users (%s) VALUES (:id, :first_name, :last_name, :personal_email, :meemli_email, :admin, :created_at, :updated_at)", userColumns)
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update rewrites a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET first_name = :first_name, last_name = :last_name, personal_email = :personal_email,
        meemli_email = :meemli_email, admin = :admin, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
	"github.com/meemli/meemli-api/pkg/identity"
)

type userRepository interface {
	List(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

type accountManager interface {
	CreateAccount(ctx context.Context, email string) (*models.IdentityAccount, error)
	UpdateEmail(ctx context.Context, uid, email string) error
	GetAccount(ctx context.Context, uid string) (*models.IdentityAccount, error)
}

// CreateUserRequest holds payload for creating staff users.
type CreateUserRequest struct {
	FirstName     string `json:"firstName" validate:"required,min=2"`
	LastName      string `json:"lastName" validate:"required,min=2"`
	PersonalEmail string `json:"personalEmail" validate:"required,email"`
	MeemliEmail   string `json:"meemliEmail" validate:"required,email"`
	Admin         bool   `json:"admin"`
}

// UpdateUserRequest holds a partial user edit.
type UpdateUserRequest struct {
	FirstName     *string `json:"firstName" validate:"omitempty,min=2"`
	LastName      *string `json:"lastName" validate:"omitempty,min=2"`
	PersonalEmail *string `json:"personalEmail" validate:"omitempty,email"`
	MeemliEmail   *string `json:"meemliEmail" validate:"omitempty,email"`
	Admin         *bool   `json:"admin"`
}

// UserService keeps staff rows in step with identity provider accounts.
type UserService struct {
	repo      userRepository
	accounts  accountManager
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo userRepository, accounts accountManager, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, accounts: accounts, validator: defaultValidator(validate), logger: logger}
}

// List returns every staff user.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list users")
	}
	return users, nil
}

// Create opens a provider account for personalEmail, then stores the row under its uid.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	account, err := s.accounts.CreateAccount(ctx, req.PersonalEmail)
	if err != nil {
		return nil, identityError(err)
	}
	user := &models.User{
		ID:            account.UID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		PersonalEmail: req.PersonalEmail,
		MeemliEmail:   req.MeemliEmail,
		Admin:         req.Admin,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		s.logger.Error("user row not stored after provider account was created",
			zap.String("uid", account.UID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create user")
	}
	return user, nil
}

// Update applies a partial edit, pushing a personalEmail change to the provider first.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user not found", "failed to load user")
	}
	if req.PersonalEmail != nil && *req.PersonalEmail != user.PersonalEmail {
		if err := s.accounts.UpdateEmail(ctx, id, *req.PersonalEmail); err != nil {
			return nil, identityError(err)
		}
		user.PersonalEmail = *req.PersonalEmail
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.MeemliEmail != nil {
		user.MeemliEmail = *req.MeemliEmail
	}
	if req.Admin != nil {
		user.Admin = *req.Admin
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Internal(err, "failed to update user")
	}
	return user, nil
}

// Get resolves the provider account, then the stored row.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	if _, err := s.accounts.GetAccount(ctx, id); err != nil {
		return nil, identityError(err)
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user not found", "failed to load user")
	}
	return user, nil
}

// IsAdmin reports whether uid has a stored row flagged admin.
func (s *UserService) IsAdmin(ctx context.Context, uid string) (bool, error) {
	user, err := s.repo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Internal(err, "failed to load user")
	}
	return user.Admin, nil
}

func identityError(err error) error {
	switch {
	case errors.Is(err, identity.ErrAccountNotFound):
		return appErrors.NotFound("user not found")
	case errors.Is(err, identity.ErrEmailTaken):
		return appErrors.Clone(appErrors.ErrConflict, "email already in use")
	default:
		return appErrors.Wrap(err, appErrors.ErrIdentity.Code, appErrors.ErrIdentity.Status, appErrors.ErrIdentity.Message)
	}
}

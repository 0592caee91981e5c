package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
)

type programRepository interface {
	List(ctx context.Context) ([]models.Program, error)
	FindByID(ctx context.Context, id string) (*models.Program, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
}

// CreateProgramRequest holds payload for creating programs. ID may be chosen by the client.
type CreateProgramRequest struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	StartDate   string  `json:"startDate" validate:"required,isodate"`
	EndDate     *string `json:"endDate" validate:"omitempty,isodate"`
	Description *string `json:"description"`
	Archived    *bool   `json:"archived"`
}

// UpdateProgramRequest holds a partial program edit.
type UpdateProgramRequest struct {
	Code        *string `json:"code"`
	Name        *string `json:"name" validate:"omitempty,min=1"`
	StartDate   *string `json:"startDate" validate:"omitempty,isodate"`
	EndDate     *string `json:"endDate" validate:"omitempty,isodate"`
	Description *string `json:"description"`
	Archived    *bool   `json:"archived"`
}

// ProgramService handles program use-cases.
type ProgramService struct {
	repo      programRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs the program service.
func NewProgramService(repo programRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, cache: cache, validator: defaultValidator(validate), logger: logger}
}

// List returns every program.
func (s *ProgramService) List(ctx context.Context) ([]models.Program, error) {
	var cached []models.Program
	if s.cache.Get(ctx, cacheKeyPrograms+"all", &cached) {
		return cached, nil
	}
	programs, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list programs")
	}
	s.cache.Set(ctx, cacheKeyPrograms+"all", programs)
	return programs, nil
}

// Get returns one program.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "program not found", "failed to load program")
	}
	return program, nil
}

// Create validates and stores a program.
func (s *ProgramService) Create(ctx context.Context, req CreateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	start, _ := models.ParseDate(req.StartDate)
	program := &models.Program{
		ID:          req.ID,
		Code:        req.Code,
		Name:        req.Name,
		StartDate:   start,
		Description: req.Description,
	}
	if req.EndDate != nil {
		end, _ := models.ParseDate(*req.EndDate)
		program.EndDate = &end
	}
	if req.Archived != nil {
		program.Archived = *req.Archived
	}
	if err := checkProgramDates(program); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, program); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "program id already exists")
		}
		return nil, appErrors.Internal(err, "failed to create program")
	}
	s.cache.Invalidate(ctx, cacheKeyPrograms)
	return program, nil
}

// Update applies a partial edit.
func (s *ProgramService) Update(ctx context.Context, id string, req UpdateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "program not found", "failed to load program")
	}
	if req.Code != nil {
		program.Code = *req.Code
	}
	if req.Name != nil {
		program.Name = *req.Name
	}
	if req.StartDate != nil {
		program.StartDate, _ = models.ParseDate(*req.StartDate)
	}
	if req.EndDate != nil {
		end, _ := models.ParseDate(*req.EndDate)
		program.EndDate = &end
	}
	if req.Description != nil {
		program.Description = req.Description
	}
	if req.Archived != nil {
		program.Archived = *req.Archived
	}
	if err := checkProgramDates(program); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, program); err != nil {
		return nil, appErrors.Internal(err, "failed to update program")
	}
	s.cache.Invalidate(ctx, cacheKeyPrograms)
	return program, nil
}

func checkProgramDates(program *models.Program) error {
	if program.EndDate != nil && program.EndDate.Before(program.StartDate) {
		return appErrors.Validation("endDate must not be before startDate")
	}
	return nil
}

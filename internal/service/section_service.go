package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
	"github.com/meemli/meemli-api/pkg/validation"
)

type sectionRepository interface {
	List(ctx context.Context) ([]models.Section, error)
	FindByID(ctx context.Context, id string) (*models.Section, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
	Delete(ctx context.Context, id string) (bool, error)
}

type idLookup interface {
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
}

// CreateSectionRequest holds payload for creating sections.
type CreateSectionRequest struct {
	Code             string   `json:"code" validate:"required"`
	Program          string   `json:"program" validate:"required"`
	Teachers         []string `json:"teachers" validate:"required"`
	EnrolledStudents []string `json:"enrolledStudents"`
	StartTime        string   `json:"startTime" validate:"required,hhmm"`
	EndTime          string   `json:"endTime" validate:"required,hhmm"`
	Days             []string `json:"days" validate:"required,min=1,dive,weekday"`
}

// UpdateSectionRequest holds a partial section edit.
type UpdateSectionRequest struct {
	Code             *string  `json:"code" validate:"omitempty,min=1"`
	Program          *string  `json:"program" validate:"omitempty,min=1"`
	Teachers         []string `json:"teachers"`
	EnrolledStudents []string `json:"enrolledStudents"`
	StartTime        *string  `json:"startTime" validate:"omitempty,hhmm"`
	EndTime          *string  `json:"endTime" validate:"omitempty,hhmm"`
	Days             []string `json:"days" validate:"omitempty,min=1,dive,weekday"`
}

// SectionService handles section use-cases and reference checks.
type SectionService struct {
	repo      sectionRepository
	programs  idLookup
	users     idLookup
	students  idLookup
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs the section service.
func NewSectionService(repo sectionRepository, programs, users, students idLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{
		repo:      repo,
		programs:  programs,
		users:     users,
		students:  students,
		cache:     cache,
		validator: defaultValidator(validate),
		logger:    logger,
	}
}

// List returns every section.
func (s *SectionService) List(ctx context.Context) ([]models.Section, error) {
	var cached []models.Section
	if s.cache.Get(ctx, cacheKeySections+"all", &cached) {
		return cached, nil
	}
	sections, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list sections")
	}
	s.cache.Set(ctx, cacheKeySections+"all", sections)
	return sections, nil
}

// Get returns one section.
func (s *SectionService) Get(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "section not found", "failed to load section")
	}
	return section, nil
}

// Create validates and stores a section.
func (s *SectionService) Create(ctx context.Context, req CreateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if err := validation.EndAfterStart(req.StartTime, req.EndTime); err != nil {
		return nil, appErrors.Validation(err.Error())
	}
	section := &models.Section{
		Code:             req.Code,
		ProgramID:        req.Program,
		Teachers:         unique(req.Teachers),
		EnrolledStudents: unique(req.EnrolledStudents),
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Days:             pq.StringArray(unique(req.Days)),
	}
	if err := s.checkReferences(ctx, section); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, appErrors.Internal(err, "failed to create section")
	}
	s.invalidate(ctx)
	s.logger.Info("section created", zap.String("section_id", section.ID), zap.String("code", section.Code))
	return section, nil
}

// Update applies a partial edit. The time order check runs on the merged values.
func (s *SectionService) Update(ctx context.Context, id string, req UpdateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "section not found", "failed to load section")
	}
	if req.Code != nil {
		section.Code = *req.Code
	}
	if req.Program != nil {
		section.ProgramID = *req.Program
	}
	if req.Teachers != nil {
		section.Teachers = unique(req.Teachers)
	}
	if req.EnrolledStudents != nil {
		section.EnrolledStudents = unique(req.EnrolledStudents)
	}
	if req.StartTime != nil {
		section.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		section.EndTime = *req.EndTime
	}
	if req.Days != nil {
		section.Days = pq.StringArray(unique(req.Days))
	}
	if err := validation.EndAfterStart(section.StartTime, section.EndTime); err != nil {
		return nil, appErrors.Validation(err.Error())
	}
	if err := s.checkReferences(ctx, section); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, section); err != nil {
		return nil, appErrors.Internal(err, "failed to update section")
	}
	s.invalidate(ctx)
	return section, nil
}

// Delete removes a section together with its sessions and their attendance.
func (s *SectionService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to delete section")
	}
	if !deleted {
		return appErrors.NotFound("section not found")
	}
	s.invalidate(ctx)
	return nil
}

func (s *SectionService) checkReferences(ctx context.Context, section *models.Section) error {
	found, err := s.programs.ExistingIDs(ctx, []string{section.ProgramID})
	if err != nil {
		return appErrors.Internal(err, "failed to validate program")
	}
	if err := missingRefError("program", []string{section.ProgramID}, found); err != nil {
		return err
	}
	if found, err = s.users.ExistingIDs(ctx, section.Teachers); err != nil {
		return appErrors.Internal(err, "failed to validate teachers")
	}
	if err := missingRefError("teacher", section.Teachers, found); err != nil {
		return err
	}
	if found, err = s.students.ExistingIDs(ctx, section.EnrolledStudents); err != nil {
		return appErrors.Internal(err, "failed to validate students")
	}
	return missingRefError("student", section.EnrolledStudents, found)
}

func (s *SectionService) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, cacheKeySections, cacheKeySessions, cacheKeyPrograms)
}

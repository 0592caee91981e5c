package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) (bool, error)
}

type sectionLookup interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Section, error)
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
}

// ParentContactRequest carries the guardian fields, all required when present.
type ParentContactRequest struct {
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	ParentContact       *ParentContactRequest `json:"parentContact" validate:"required"`
	DisplayName         string                `json:"displayName" validate:"required,min=3"`
	MeemliEmail         string                `json:"meemliEmail" validate:"required,email"`
	Grade               int                   `json:"grade" validate:"required,min=1,max=12"`
	SchoolName          string                `json:"schoolName" validate:"required,min=3"`
	City                string                `json:"city" validate:"required,min=3"`
	State               string                `json:"state" validate:"required,min=3"`
	PreassessmentScore  *int                  `json:"preassessmentScore"`
	PostassessmentScore *int                  `json:"postassessmentScore"`
	EnrolledSections    []string              `json:"enrolledSections" validate:"required"`
	Comments            *string               `json:"comments"`
}

// UpdateStudentRequest holds a partial student edit; nil fields are left unchanged.
type UpdateStudentRequest struct {
	ParentContact       *ParentContactRequest `json:"parentContact" validate:"omitempty"`
	DisplayName         *string               `json:"displayName" validate:"omitempty,min=3"`
	MeemliEmail         *string               `json:"meemliEmail" validate:"omitempty,email"`
	Grade               *int                  `json:"grade" validate:"omitempty,min=1,max=12"`
	SchoolName          *string               `json:"schoolName" validate:"omitempty,min=3"`
	City                *string               `json:"city" validate:"omitempty,min=3"`
	State               *string               `json:"state" validate:"omitempty,min=3"`
	PreassessmentScore  *int                  `json:"preassessmentScore"`
	PostassessmentScore *int                  `json:"postassessmentScore"`
	EnrolledSections    []string              `json:"enrolledSections"`
	Comments            *string               `json:"comments"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	sections  sectionLookup
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, sections sectionLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, sections: sections, cache: cache, validator: defaultValidator(validate), logger: logger}
}

// List returns every student with section ids unresolved.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list students")
	}
	return students, nil
}

// Get returns a student with enrolled sections resolved.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	return s.populate(ctx, student)
}

// Create registers a new student and returns it with sections resolved.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	sectionIDs := unique(req.EnrolledSections)
	if err := s.checkSections(ctx, sectionIDs); err != nil {
		return nil, err
	}
	student := &models.Student{
		DisplayName:         req.DisplayName,
		MeemliEmail:         req.MeemliEmail,
		Grade:               req.Grade,
		SchoolName:          req.SchoolName,
		City:                req.City,
		State:               req.State,
		PreassessmentScore:  req.PreassessmentScore,
		PostassessmentScore: req.PostassessmentScore,
		ParentContact:       parentContact(req.ParentContact),
		EnrolledSectionIDs:  sectionIDs,
	}
	if req.Comments != nil {
		student.Comments = *req.Comments
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Internal(err, "failed to create student")
	}
	s.invalidateRosters(ctx)
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.Int("sections", len(sectionIDs)))
	return s.populate(ctx, student)
}

// Update applies a partial edit.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	if req.EnrolledSections != nil {
		sectionIDs := unique(req.EnrolledSections)
		if err := s.checkSections(ctx, sectionIDs); err != nil {
			return nil, err
		}
		student.EnrolledSectionIDs = sectionIDs
	}
	if req.ParentContact != nil {
		student.ParentContact = parentContact(req.ParentContact)
	}
	if req.DisplayName != nil {
		student.DisplayName = *req.DisplayName
	}
	if req.MeemliEmail != nil {
		student.MeemliEmail = *req.MeemliEmail
	}
	if req.Grade != nil {
		student.Grade = *req.Grade
	}
	if req.SchoolName != nil {
		student.SchoolName = *req.SchoolName
	}
	if req.City != nil {
		student.City = *req.City
	}
	if req.State != nil {
		student.State = *req.State
	}
	if req.PreassessmentScore != nil {
		student.PreassessmentScore = req.PreassessmentScore
	}
	if req.PostassessmentScore != nil {
		student.PostassessmentScore = req.PostassessmentScore
	}
	if req.Comments != nil {
		student.Comments = *req.Comments
	}
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Internal(err, "failed to update student")
	}
	s.invalidateRosters(ctx)
	return s.populate(ctx, student)
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to delete student")
	}
	if !deleted {
		return appErrors.NotFound("student not found")
	}
	s.invalidateRosters(ctx)
	return nil
}

// invalidateRosters drops cached lists that embed section enrollment.
func (s *StudentService) invalidateRosters(ctx context.Context) {
	s.cache.Invalidate(ctx, cacheKeySections, cacheKeySessions)
}

func (s *StudentService) checkSections(ctx context.Context, ids []string) error {
	found, err := s.sections.ExistingIDs(ctx, ids)
	if err != nil {
		return appErrors.Internal(err, "failed to validate sections")
	}
	return missingRefError("section", ids, found)
}

func (s *StudentService) populate(ctx context.Context, student *models.Student) (*models.StudentDetail, error) {
	sections, err := s.sections.ListByIDs(ctx, student.EnrolledSectionIDs)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrolled sections")
	}
	if student.EnrolledSectionIDs == nil {
		student.EnrolledSectionIDs = []string{}
	}
	return &models.StudentDetail{Student: *student, EnrolledSections: sections}, nil
}

func parentContact(req *ParentContactRequest) models.ParentContact {
	if req == nil {
		return models.ParentContact{}
	}
	return models.ParentContact{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
)

// Session origins recorded in metrics.
const (
	SessionOriginAPI       = "api"
	SessionOriginScheduler = "scheduler"
)

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	CreateWithAttendance(ctx context.Context, session *models.Session, populate bool) (int, error)
	Update(ctx context.Context, session *models.Session) error
	ExistsForSectionOn(ctx context.Context, sectionID string, day models.Date) (bool, error)
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Section, error)
	ListMeetingOn(ctx context.Context, day models.Date) ([]models.Section, error)
}

type attendanceReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceDetail, error)
}

// CreateSessionRequest holds payload for creating sessions.
// PopulateAttendance defaults to true.
type CreateSessionRequest struct {
	Section            string `json:"section" validate:"required"`
	SessionDate        string `json:"sessionDate" validate:"required,isodate"`
	PopulateAttendance *bool  `json:"populateAttendance"`
}

// UpdateSessionRequest holds a partial session edit.
type UpdateSessionRequest struct {
	Section     *string `json:"section" validate:"omitempty,min=1"`
	SessionDate *string `json:"sessionDate" validate:"omitempty,isodate"`
}

// SessionService handles sessions and the attendance fan-out on creation.
type SessionService struct {
	repo       sessionRepository
	sections   sectionReader
	attendance attendanceReader
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSessionService constructs the session service.
func NewSessionService(repo sessionRepository, sections sectionReader, attendance attendanceReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		repo:       repo,
		sections:   sections,
		attendance: attendance,
		cache:      cache,
		metrics:    metrics,
		validator:  defaultValidator(validate),
		logger:     logger,
	}
}

// List returns sessions with their section resolved.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionSummary, error) {
	key := sessionListKey(filter)
	var cached []models.SessionSummary
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	sessions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list sessions")
	}
	sectionIDs := make([]string, 0, len(sessions))
	for _, session := range sessions {
		sectionIDs = append(sectionIDs, session.SectionID)
	}
	sections, err := s.sections.ListByIDs(ctx, unique(sectionIDs))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load sections")
	}
	byID := make(map[string]*models.Section, len(sections))
	for i := range sections {
		byID[sections[i].ID] = &sections[i]
	}
	summaries := make([]models.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, models.SessionSummary{Session: session, Section: byID[session.SectionID]})
	}
	s.cache.Set(ctx, key, summaries)
	return summaries, nil
}

// Get returns a session with its section and attendees resolved.
func (s *SessionService) Get(ctx context.Context, id string) (*models.SessionDetail, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "session not found", "failed to load session")
	}
	detail := &models.SessionDetail{Session: *session}
	section, err := s.sections.FindByID(ctx, session.SectionID)
	switch {
	case err == nil:
		detail.Section = section
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to load section")
	}
	attendees, err := s.attendance.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance")
	}
	if attendees == nil {
		attendees = []models.AttendanceDetail{}
	}
	detail.Attendees = attendees
	return detail, nil
}

// Create stores the session and one PRESENT record per enrolled student.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*models.SessionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if _, err := s.sections.FindByID(ctx, req.Section); err != nil {
		return nil, lookupError(err, "section not found", "failed to load section")
	}
	day, _ := models.ParseDate(req.SessionDate)
	populate := req.PopulateAttendance == nil || *req.PopulateAttendance

	session := &models.Session{SectionID: req.Section, SessionDate: day}
	created, err := s.repo.CreateWithAttendance(ctx, session, populate)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create session")
	}
	s.afterCreate(ctx, session, created, SessionOriginAPI)
	return s.Get(ctx, session.ID)
}

// Update applies a partial edit. Existing attendance rows are kept.
func (s *SessionService) Update(ctx context.Context, id string, req UpdateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "session not found", "failed to load session")
	}
	if req.Section != nil && *req.Section != session.SectionID {
		if _, err := s.sections.FindByID(ctx, *req.Section); err != nil {
			return nil, lookupError(err, "section not found", "failed to load section")
		}
		session.SectionID = *req.Section
	}
	if req.SessionDate != nil {
		session.SessionDate, _ = models.ParseDate(*req.SessionDate)
	}
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, appErrors.Internal(err, "failed to update session")
	}
	s.cache.Invalidate(ctx, cacheKeySessions, cacheKeySections)
	return session, nil
}

// CreateForDay creates the sessions of every section meeting on day that has none yet.
// It returns how many sessions were created.
func (s *SessionService) CreateForDay(ctx context.Context, day models.Date) (int, error) {
	sections, err := s.sections.ListMeetingOn(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("list sections meeting on %s: %w", day, err)
	}
	created := 0
	var errs []error
	for _, section := range sections {
		exists, err := s.repo.ExistsForSectionOn(ctx, section.ID, day)
		if err != nil {
			errs = append(errs, s.sectionFailure(section.ID, day, fmt.Errorf("check session for section %s: %w", section.ID, err)))
			continue
		}
		if exists {
			continue
		}
		session := &models.Session{SectionID: section.ID, SessionDate: day}
		rows, err := s.repo.CreateWithAttendance(ctx, session, true)
		if err != nil {
			errs = append(errs, s.sectionFailure(section.ID, day, fmt.Errorf("create session for section %s: %w", section.ID, err)))
			continue
		}
		s.afterCreate(ctx, session, rows, SessionOriginScheduler)
		created++
	}
	return created, errors.Join(errs...)
}

// sectionFailure logs one section's failure so the rest of the day still runs.
func (s *SessionService) sectionFailure(sectionID string, day models.Date, err error) error {
	s.logger.Error("daily session creation failed",
		zap.String("section_id", sectionID),
		zap.String("session_date", day.String()),
		zap.Error(err))
	return err
}

func (s *SessionService) afterCreate(ctx context.Context, session *models.Session, rows int, origin string) {
	s.metrics.ObserveSessionCreated(origin, rows)
	s.cache.Invalidate(ctx, cacheKeySessions, cacheKeySections)
	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("section_id", session.SectionID),
		zap.String("session_date", session.SessionDate.String()),
		zap.Int("attendance_rows", rows),
		zap.String("origin", origin),
	)
}

func sessionListKey(filter models.SessionFilter) string {
	date := ""
	if filter.Date != nil {
		date = filter.Date.String()
	}
	return fmt.Sprintf("%slist:%s:%s", cacheKeySessions, filter.SectionID, date)
}

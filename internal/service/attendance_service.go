package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
)

type attendanceRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceDetail, error)
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	Create(ctx context.Context, record *models.Attendance) error
	Patch(ctx context.Context, id string, status, notes *string) (bool, error)
}

// CreateAttendanceRequest holds payload for recording one student's attendance.
type CreateAttendanceRequest struct {
	Session string  `json:"session" validate:"required"`
	Student string  `json:"student" validate:"required"`
	Status  string  `json:"status" validate:"omitempty,attendance_status"`
	Notes   *string `json:"notes"`
}

// UpdateAttendanceRequest holds a validated single-record edit.
type UpdateAttendanceRequest struct {
	Status *string `json:"status" validate:"omitempty,attendance_status"`
	Notes  *string `json:"notes"`
}

// AttendanceServiceConfig tunes the bulk update contract.
type AttendanceServiceConfig struct {
	// StrictBulk rejects a bulk payload carrying an unknown status before any write.
	StrictBulk bool
}

// AttendanceService handles attendance records, including the bulk update used by autosave.
type AttendanceService struct {
	repo      attendanceRepository
	sessions  idLookup
	students  idLookup
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AttendanceServiceConfig
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, sessions, students idLookup, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AttendanceServiceConfig) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:      repo,
		sessions:  sessions,
		students:  students,
		metrics:   metrics,
		validator: defaultValidator(validate),
		logger:    logger,
		cfg:       cfg,
	}
}

// DecodeBulkItems keeps the items that carry an attendanceId. Items that are not
// objects of the expected shape count as dropped, like items without an id.
func DecodeBulkItems(raw []json.RawMessage) (items []models.AttendanceUpdate, dropped int) {
	items = make([]models.AttendanceUpdate, 0, len(raw))
	for _, entry := range raw {
		var item models.AttendanceUpdate
		if err := json.Unmarshal(entry, &item); err != nil || strings.TrimSpace(item.AttendanceID) == "" {
			dropped++
			continue
		}
		items = append(items, item)
	}
	return items, dropped
}

// BulkUpdate applies each item as an independent point update by id. Unknown ids
// are no-ops and status values are stored verbatim unless strict mode is on.
func (s *AttendanceService) BulkUpdate(ctx context.Context, raw []json.RawMessage) (*models.BulkUpdateResult, error) {
	start := time.Now()
	items, dropped := DecodeBulkItems(raw)
	result := &models.BulkUpdateResult{Received: len(raw), Dropped: dropped}

	if s.cfg.StrictBulk {
		for _, item := range items {
			if item.Status != nil && !models.AttendanceStatus(*item.Status).Valid() {
				return nil, appErrors.Validation(fmt.Sprintf("status %q of attendance %s must be one of PRESENT, ABSENT, LATE", *item.Status, item.AttendanceID))
			}
		}
	}

	var missingIDs []string
	for _, item := range items {
		matched, err := s.repo.Patch(ctx, item.AttendanceID, item.Status, item.Notes)
		if err != nil {
			s.metrics.ObserveBulkUpdate(result.Applied, result.Dropped, result.Missing, time.Since(start))
			return nil, appErrors.Internal(err, "failed to update attendance")
		}
		if matched {
			result.Applied++
			continue
		}
		if item.Status != nil || item.Notes != nil {
			result.Missing++
			missingIDs = append(missingIDs, item.AttendanceID)
		}
	}

	s.metrics.ObserveBulkUpdate(result.Applied, result.Dropped, result.Missing, time.Since(start))
	if len(missingIDs) > 0 {
		s.logger.Warn("bulk attendance ids matched no record", zap.Int("count", len(missingIDs)), zap.Strings("ids", missingIDs))
	}
	s.logger.Debug("bulk attendance applied",
		zap.Int("received", result.Received),
		zap.Int("dropped", result.Dropped),
		zap.Int("applied", result.Applied))
	return result, nil
}

// ListBySession returns the session's rows, 404 when it has none.
func (s *AttendanceService) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceDetail, error) {
	rows, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list attendance")
	}
	if len(rows) == 0 {
		return nil, appErrors.NotFound("no attendance records for session")
	}
	return rows, nil
}

// Create records one student's attendance for a session.
func (s *AttendanceService) Create(ctx context.Context, req CreateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	found, err := s.sessions.ExistingIDs(ctx, []string{req.Session})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to validate session")
	}
	if err := missingRefError("session", []string{req.Session}, found); err != nil {
		return nil, err
	}
	if found, err = s.students.ExistingIDs(ctx, []string{req.Student}); err != nil {
		return nil, appErrors.Internal(err, "failed to validate student")
	}
	if err := missingRefError("student", []string{req.Student}, found); err != nil {
		return nil, err
	}
	record := &models.Attendance{
		SessionID: req.Session,
		StudentID: req.Student,
		Status:    models.AttendanceStatus(req.Status),
		Notes:     req.Notes,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already recorded for this student and session")
		}
		return nil, appErrors.Internal(err, "failed to create attendance")
	}
	return record, nil
}

// Update applies a validated edit to one record.
func (s *AttendanceService) Update(ctx context.Context, id string, req UpdateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if req.Status != nil || req.Notes != nil {
		matched, err := s.repo.Patch(ctx, id, req.Status, req.Notes)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to update attendance")
		}
		if !matched {
			return nil, appErrors.NotFound("attendance not found")
		}
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "attendance not found", "failed to load attendance")
	}
	return record, nil
}

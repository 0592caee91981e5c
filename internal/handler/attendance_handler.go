package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meemli/meemli-api/internal/models"
	"github.com/meemli/meemli-api/internal/service"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
	"github.com/meemli/meemli-api/pkg/response"
)

type attendanceService interface {
	BulkUpdate(ctx context.Context, raw []json.RawMessage) (*models.BulkUpdateResult, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceDetail, error)
	Create(ctx context.Context, req service.CreateAttendanceRequest) (*models.Attendance, error)
	Update(ctx context.Context, id string, req service.UpdateAttendanceRequest) (*models.Attendance, error)
}

// AttendanceHandler exposes attendance endpoints, including the autosave bulk update.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// BulkUpdate godoc
// @Summary Apply attendance edits by id
// @Description Each item is applied independently; items without attendanceId are dropped and unknown ids are ignored.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body []models.AttendanceUpdate true "Attendance edits"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/bulk-update [put]
func (h *AttendanceHandler) BulkUpdate(c *gin.Context) {
	var raw []json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "request body must be an array of attendance updates"))
		return
	}
	// null decodes into a nil slice without error.
	if raw == nil {
		response.Error(c, appErrors.Validation("request body must be an array of attendance updates"))
		return
	}
	result, err := h.attendance.BulkUpdate(c.Request.Context(), raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "attendance updated"}, withMeta(c, map[string]interface{}{
		"received": result.Received,
		"applied":  result.Applied,
		"dropped":  result.Dropped,
		"missing":  result.Missing,
	}))
}

// ListBySession godoc
// @Summary List attendance rows of a session
// @Tags Attendance
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/session/{sessionId} [get]
func (h *AttendanceHandler) ListBySession(c *gin.Context) {
	rows, err := h.attendance.ListBySession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// Create godoc
// @Summary Record one student's attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.CreateAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Create(c *gin.Context) {
	var req service.CreateAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.attendance.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Update godoc
// @Summary Update one attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance ID"
// @Param payload body service.UpdateAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	var req service.UpdateAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.attendance.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

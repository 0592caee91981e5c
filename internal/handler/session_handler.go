package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/meemli/meemli-api/internal/models"
	"github.com/meemli/meemli-api/internal/service"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
	"github.com/meemli/meemli-api/pkg/response"
)

type sessionService interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionSummary, error)
	Get(ctx context.Context, id string) (*models.SessionDetail, error)
	Create(ctx context.Context, req service.CreateSessionRequest) (*models.SessionDetail, error)
	Update(ctx context.Context, id string, req service.UpdateSessionRequest) (*models.Session, error)
}

type sessionExporter interface {
	ExportSession(ctx context.Context, sessionID, format string) (*service.ExportFile, error)
}

// SessionHandler exposes session endpoints.
type SessionHandler struct {
	sessions sessionService
	exports  sessionExporter
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions sessionService, exports sessionExporter) *SessionHandler {
	return &SessionHandler{sessions: sessions, exports: exports}
}

// List godoc
// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Param section query string false "Filter by section id"
// @Param date query string false "Filter by session date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	filter := models.SessionFilter{SectionID: strings.TrimSpace(c.Query("section"))}
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		day, err := models.ParseDate(raw)
		if err != nil {
			response.Error(c, appErrors.Validation("date must be an ISO date"))
			return
		}
		filter.Date = &day
	}
	sessions, err := h.sessions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, withMeta(c, map[string]interface{}{"count": len(sessions)}))
}

// Get godoc
// @Summary Get session with attendees
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Create godoc
// @Summary Create session and its attendance rows
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req service.CreateSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Update session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.UpdateSessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	var req service.UpdateSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.sessions.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Export godoc
// @Summary Download a session's attendance sheet
// @Tags Sessions
// @Produce octet-stream
// @Param id path string true "Session ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Router /sessions/{id}/export [get]
func (h *SessionHandler) Export(c *gin.Context) {
	file, err := h.exports.ExportSession(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

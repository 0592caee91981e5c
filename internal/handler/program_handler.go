package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meemli/meemli-api/internal/models"
	"github.com/meemli/meemli-api/internal/service"
	"github.com/meemli/meemli-api/pkg/response"
)

type programService interface {
	List(ctx context.Context) ([]models.Program, error)
	Get(ctx context.Context, id string) (*models.Program, error)
	Create(ctx context.Context, req service.CreateProgramRequest) (*models.Program, error)
	Update(ctx context.Context, id string, req service.UpdateProgramRequest) (*models.Program, error)
}

// ProgramHandler exposes program endpoints.
type ProgramHandler struct {
	programs programService
}

// NewProgramHandler constructs ProgramHandler.
func NewProgramHandler(programs programService) *ProgramHandler {
	return &ProgramHandler{programs: programs}
}

// List godoc
// @Summary List programs
// @Tags Programs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /programs [get]
func (h *ProgramHandler) List(c *gin.Context) {
	programs, err := h.programs.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, programs, withMeta(c, map[string]interface{}{"count": len(programs)}))
}

// Get godoc
// @Summary Get program
// @Tags Programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /program/{id} [get]
func (h *ProgramHandler) Get(c *gin.Context) {
	program, err := h.programs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, program)
}

// Create godoc
// @Summary Create program
// @Tags Programs
// @Accept json
// @Produce json
// @Param payload body service.CreateProgramRequest true "Program payload"
// @Success 201 {object} response.Envelope
// @Router /program [post]
func (h *ProgramHandler) Create(c *gin.Context) {
	var req service.CreateProgramRequest
	if !bindJSON(c, &req) {
		return
	}
	program, err := h.programs.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, program)
}

// Update godoc
// @Summary Update program
// @Tags Programs
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param payload body service.UpdateProgramRequest true "Program payload"
// @Success 200 {object} response.Envelope
// @Router /program/{id} [put]
func (h *ProgramHandler) Update(c *gin.Context) {
	var req service.UpdateProgramRequest
	if !bindJSON(c, &req) {
		return
	}
	program, err := h.programs.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, program)
}

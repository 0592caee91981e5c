package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meemli/meemli-api/internal/models"
	"github.com/meemli/meemli-api/internal/service"
	"github.com/meemli/meemli-api/pkg/response"
)

type sectionService interface {
	List(ctx context.Context) ([]models.Section, error)
	Get(ctx context.Context, id string) (*models.Section, error)
	Create(ctx context.Context, req service.CreateSectionRequest) (*models.Section, error)
	Update(ctx context.Context, id string, req service.UpdateSectionRequest) (*models.Section, error)
	Delete(ctx context.Context, id string) error
}

// SectionHandler exposes section endpoints.
type SectionHandler struct {
	sections sectionService
}

// NewSectionHandler constructs SectionHandler.
func NewSectionHandler(sections sectionService) *SectionHandler {
	return &SectionHandler{sections: sections}
}

// List godoc
// @Summary List sections
// @Tags Sections
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *SectionHandler) List(c *gin.Context) {
	sections, err := h.sections.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, withMeta(c, map[string]interface{}{"count": len(sections)}))
}

// Get godoc
// @Summary Get section
// @Tags Sections
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [get]
func (h *SectionHandler) Get(c *gin.Context) {
	section, err := h.sections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, section)
}

// Create godoc
// @Summary Create section
// @Tags Sections
// @Accept json
// @Produce json
// @Param payload body service.CreateSectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sections [post]
func (h *SectionHandler) Create(c *gin.Context) {
	var req service.CreateSectionRequest
	if !bindJSON(c, &req) {
		return
	}
	section, err := h.sections.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// Update godoc
// @Summary Update section
// @Tags Sections
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body service.UpdateSectionRequest true "Section payload"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [put]
func (h *SectionHandler) Update(c *gin.Context) {
	var req service.UpdateSectionRequest
	if !bindJSON(c, &req) {
		return
	}
	section, err := h.sections.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, section)
}

// Delete godoc
// @Summary Delete section
// @Tags Sections
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [delete]
func (h *SectionHandler) Delete(c *gin.Context) {
	if err := h.sections.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "section deleted"})
}

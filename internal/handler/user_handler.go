package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meemli/meemli-api/internal/middleware"
	"github.com/meemli/meemli-api/internal/models"
	"github.com/meemli/meemli-api/internal/service"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
	"github.com/meemli/meemli-api/pkg/response"
)

type userService interface {
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, req service.CreateUserRequest) (*models.User, error)
	Update(ctx context.Context, id string, req service.UpdateUserRequest) (*models.User, error)
}

// UserHandler exposes staff user endpoints.
type UserHandler struct {
	users userService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users userService) *UserHandler {
	return &UserHandler{users: users}
}

// List godoc
// @Summary List staff users
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, withMeta(c, map[string]interface{}{"count": len(users)}))
}

// Get godoc
// @Summary Get user by identity provider uid
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /user/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// Create godoc
// @Summary Create user and identity provider account
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Router /user [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req service.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Update godoc
// @Summary Update user
// @Description Only administrators may change the admin flag.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.UpdateUserRequest true "User payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /user/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	var req service.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Admin != nil && !middleware.IsAdminCaller(c) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only administrators may change admin"))
		return
	}
	user, err := h.users.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

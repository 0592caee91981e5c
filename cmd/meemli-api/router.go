package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/meemli/meemli-api/api/swagger"
	"github.com/meemli/meemli-api/internal/handler"
	"github.com/meemli/meemli-api/internal/middleware"
	"github.com/meemli/meemli-api/internal/service"
	"github.com/meemli/meemli-api/pkg/config"
	"github.com/meemli/meemli-api/pkg/logger"
	corsmiddleware "github.com/meemli/meemli-api/pkg/middleware/cors"
	reqidmiddleware "github.com/meemli/meemli-api/pkg/middleware/requestid"
)

type routes struct {
	verifier middleware.TokenVerifier
	admins   middleware.AdminChecker
	metrics  *service.MetricsService

	health     *handler.MetricsHandler
	students   *handler.StudentHandler
	sections   *handler.SectionHandler
	programs   *handler.ProgramHandler
	users      *handler.UserHandler
	sessions   *handler.SessionHandler
	attendance *handler.AttendanceHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, rt routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(rt.metrics))

	r.GET("/health", rt.health.Health)
	r.GET("/ready", rt.health.Ready)
	r.GET("/metrics", rt.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.WithResponseMeta(), middleware.Auth(rt.verifier, cfg.AuthBypass))
	adminOnly := middleware.RequireAdmin(rt.admins)
	adminOrSelf := middleware.RBAC(rt.admins, middleware.RoleAdmin, middleware.RoleSelf)

	api.GET("/sessions", rt.sessions.List)
	api.POST("/sessions", rt.sessions.Create)
	api.GET("/sessions/:id", rt.sessions.Get)
	api.PUT("/sessions/:id", rt.sessions.Update)
	api.GET("/sessions/:id/export", rt.sessions.Export)

	api.PUT("/attendance/bulk-update", rt.attendance.BulkUpdate)
	api.GET("/attendance/session/:sessionId", rt.attendance.ListBySession)
	api.POST("/attendance", rt.attendance.Create)
	api.PUT("/attendance/:id", rt.attendance.Update)

	api.GET("/students", rt.students.List)
	api.POST("/students", rt.students.Create)
	api.GET("/students/:id", rt.students.Get)
	api.PUT("/students/:id", rt.students.Update)
	api.DELETE("/students/:id", adminOnly, rt.students.Delete)

	api.GET("/sections", rt.sections.List)
	api.POST("/sections", rt.sections.Create)
	api.GET("/sections/:id", rt.sections.Get)
	api.PUT("/sections/:id", rt.sections.Update)
	api.DELETE("/sections/:id", adminOnly, rt.sections.Delete)

	api.GET("/programs", rt.programs.List)
	api.GET("/program/:id", rt.programs.Get)
	api.POST("/program", rt.programs.Create)
	api.PUT("/program/:id", rt.programs.Update)

	api.GET("/users", rt.users.List)
	api.POST("/user", adminOnly, rt.users.Create)
	api.GET("/user/:id", adminOrSelf, rt.users.Get)
	api.PUT("/user/:id", adminOrSelf, rt.users.Update)

	return r
}

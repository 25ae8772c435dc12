package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/handler"
	"github.com/noah-isme/advising-api/internal/middleware"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/service"
	"github.com/noah-isme/advising-api/pkg/config"
	"github.com/noah-isme/advising-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/advising-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/advising-api/pkg/middleware/requestid"
)

type routeDeps struct {
	auth         *service.AuthService
	metrics      *service.MetricsService
	availability *handler.AvailabilityHandler
	schedule     *handler.ScheduleHandler
	bookings     *handler.BookingHandler
	agenda       *handler.AgendaHandler
	ops          *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	writes := []gin.HandlerFunc{}
	if cfg.RateLimit.Enabled {
		writes = append(writes, middleware.NewRateLimiter(cfg.RateLimit.Every, cfg.RateLimit.Burst).Handler())
	}
	staff := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)
	students := middleware.RequireRoles(models.RoleStudent)
	guarded := func(role, h gin.HandlerFunc) []gin.HandlerFunc {
		chain := append([]gin.HandlerFunc{role}, writes...)
		return append(chain, h)
	}

	api := r.Group(cfg.APIPrefix, middleware.JWT(deps.auth))
	{
		api.GET("/availability", deps.availability.List)
		api.PUT("/availability", guarded(staff, deps.availability.Set)...)
		api.DELETE("/availability/:teacherId/:date/:start", guarded(staff, deps.availability.Unset)...)

		api.GET("/schedule/:teacherId/:date", deps.schedule.Day)

		api.POST("/bookings", guarded(students, deps.bookings.Claim)...)
		api.GET("/bookings/me", students, deps.bookings.Mine)
		api.GET("/bookings/:id", deps.bookings.Get)
		api.GET("/bookings/:id/ics", deps.bookings.ICS)
		api.POST("/bookings/:id/cancel", guarded(students, deps.bookings.Cancel)...)

		api.GET("/teachers/:teacherId/bookings", staff, deps.bookings.ForTeacher)
		api.GET("/teachers/:teacherId/agenda", staff, deps.agenda.Export)
	}

	return r
}

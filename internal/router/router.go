package router // package router registers the ops and admin HTTP routes

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-bot/internal/config"
	"github.com/iliyamo/meeting-room-bot/internal/handler"
	"github.com/iliyamo/meeting-room-bot/internal/middleware"
	"github.com/iliyamo/meeting-room-bot/internal/ratelimit"
)

// Deps carries what the routes need.  Admin may be nil, in which case the
// admin group is not registered.
type Deps struct {
	Schedule *handler.ScheduleHandler
	Admin    *handler.AdminHandler
	Limiter  *ratelimit.Bucket
	Redis    *redis.Client
	Cache    config.CacheConfig
	Secret   string
	AdminID  int64
	Log      *zap.Logger
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Metrics())
	e.Use(middleware.RateLimit(d.Limiter, d.Log))

	RegisterRoutes(e, d.Schedule)
	if d.Admin != nil && d.Secret != "" {
		RegisterAdmin(e, d)
	}
	return e
}

// RegisterRoutes registers the unauthenticated routes.
func RegisterRoutes(e *echo.Echo, s *handler.ScheduleHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/v1/schedule", s.GetSchedule)
}

// RegisterAdmin registers /v1/admin behind JWTAuth and RequireAdmin.  Stats
// responses are cached in Redis.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(d.Secret))
	g.Use(middleware.RequireAdmin(d.AdminID))

	g.GET("/stats", d.Admin.GetStats, middleware.NewRedisCache(d.Cache, d.Redis))
	g.POST("/sweep", d.Admin.PostSweep)
	g.POST("/announce", d.Admin.PostAnnounce)
}

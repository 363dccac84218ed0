package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/flowme-cloud/flowme-backend/internal/ai"
	httpapi "github.com/flowme-cloud/flowme-backend/internal/api/http"
	"github.com/flowme-cloud/flowme-backend/internal/api/http/middleware"
	"github.com/flowme-cloud/flowme-backend/internal/cleanup"
	"github.com/flowme-cloud/flowme-backend/internal/diagrams"
	"github.com/flowme-cloud/flowme-backend/internal/settings"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	AllowedOrigins []string

	DB    *pgxpool.Pool
	Redis *redis.Client

	// Metrics is where /metrics reads from; nil skips the endpoint.
	Metrics *prometheus.Registry

	Settings *settings.Service
	// SettingsAdminToken authorizes PUT /settings; empty refuses every write.
	SettingsAdminToken string

	Diagrams *diagrams.Service
	Gateway  *ai.Gateway
	Jobs     *ai.Jobs
	Events   *cleanup.Handler
	Audit    *cleanup.AuditRepo

	// AsyncEvents answers page events before the reconcile finishes.
	AsyncEvents bool
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(dep.AllowedOrigins)))
	r.Use(middleware.RequestIDMiddleware())

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	if dep.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(dep.Metrics, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.HostIdentity())

	if dep.Settings != nil {
		settings.Register(api, dep.Settings, middleware.RequireAdminToken(dep.SettingsAdminToken))
	}
	if dep.Diagrams != nil {
		diagrams.Register(api, dep.Diagrams)
	}
	if dep.Gateway != nil {
		ai.Register(api, dep.Gateway, dep.Jobs)
	}
	if dep.Events != nil {
		var runs cleanup.RunLister
		if dep.Audit != nil {
			runs = dep.Audit
		}
		cleanup.Register(api, dep.Events, runs, dep.AsyncEvents)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader, middleware.AdminTokenHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: len(origins) > 0,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

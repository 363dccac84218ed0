package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/flowme-cloud/flowme-backend/config"
	"github.com/flowme-cloud/flowme-backend/internal/ai"
	"github.com/flowme-cloud/flowme-backend/internal/cleanup"
	"github.com/flowme-cloud/flowme-backend/internal/confluence"
	"github.com/flowme-cloud/flowme-backend/internal/diagrams"
	"github.com/flowme-cloud/flowme-backend/internal/scanner"
	"github.com/flowme-cloud/flowme-backend/internal/settings"
	"github.com/flowme-cloud/flowme-backend/internal/storage/postgres"
)

// App holds the wired services shared by the API server and the worker.
type App struct {
	Config *config.Config

	Host  *confluence.Client
	Redis *redis.Client
	Pool  *pgxpool.Pool
	SQL   *sql.DB

	Settings *settings.Service
	Diagrams *diagrams.Service
	Gateway  *ai.Gateway
	Jobs     *ai.Jobs
	Events   *cleanup.Handler
	Audit    *cleanup.AuditRepo
}

// NewApp connects to Redis and, when configured, Postgres, and wires every
// service. Close releases the connections.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	rdb, err := OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.Redis = rdb

	if cfg.Database.Enabled() {
		pool, err := OpenDB(ctx, DBOptions{DSN: postgres.DSN(&cfg.Database)})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Pool = pool
	}

	var store settings.Store = settings.NewRedisStore(rdb)
	if cfg.Settings.Backend == "postgres" {
		db, err := postgres.NewConnection(ctx, &cfg.Database)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.SQL = db
		pg := settings.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("settings schema: %w", err)
		}
		store = pg
	}
	a.Settings = settings.NewService(store)

	a.Host = NewConfluenceClient(ctx, cfg.Confluence)
	a.Diagrams = diagrams.NewService(a.Host)

	prompts, err := ai.LoadPrompts()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Gateway = ai.NewGateway(a.Settings, ai.NewHTTPDispatcher(nil), prompts)
	a.Jobs = ai.NewJobs(a.Gateway, rdb)

	var audit cleanup.AuditSink
	if a.Pool != nil && cfg.Cleanup.AuditEnabled {
		a.Audit = cleanup.NewAuditRepo(a.Pool)
		if err := a.Audit.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("audit schema: %w", err)
		}
		audit = a.Audit
	}
	reconciler := cleanup.NewReconciler(a.Host, scanner.New(a.Host), audit)
	a.Events = cleanup.NewHandler(a.Host, reconciler, cleanup.NewDeferredSet(rdb))

	log.Printf("wired services settings=%s db=%t audit=%t", cfg.Settings.Backend, a.Pool != nil, a.Audit != nil)
	return a, nil
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.SQL != nil {
		_ = a.SQL.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

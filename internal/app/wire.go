package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/roomviz-backend/internal/data/repos"
	httpapi "github.com/yungbote/roomviz-backend/internal/http"
	httpH "github.com/yungbote/roomviz-backend/internal/http/handlers"
	httpMW "github.com/yungbote/roomviz-backend/internal/http/middleware"
	"github.com/yungbote/roomviz-backend/internal/modules/design"
	"github.com/yungbote/roomviz-backend/internal/modules/design/marker"
	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/observability"
	"github.com/yungbote/roomviz-backend/internal/platform/gcp"
	"github.com/yungbote/roomviz-backend/internal/platform/imagefetch"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
	"github.com/yungbote/roomviz-backend/internal/platform/openai"
	"github.com/yungbote/roomviz-backend/internal/platform/redisx"
	"github.com/yungbote/roomviz-backend/internal/realtime"
	"github.com/yungbote/roomviz-backend/internal/realtime/bus"
	"github.com/yungbote/roomviz-backend/internal/services"
)

type Clients struct {
	Redis  *goredis.Client
	Bus    bus.Bus
	Bucket gcp.BucketService
	OpenAI openai.Client
	Fetch  imagefetch.Fetcher
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis is optional; without it the render gate and SSE stay in-process.
	rdb, err := redisx.NewClientFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	var sseBus bus.Bus
	if rdb != nil {
		if sseBus, err = bus.NewRedisBus(log, rdb); err != nil {
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
	}

	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}

	openaiClient, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	return Clients{
		Redis:  rdb,
		Bus:    sseBus,
		Bucket: bucket,
		OpenAI: openaiClient,
		Fetch:  imagefetch.New(log),
	}, nil
}

type Repos struct {
	Project      repos.ProjectRepo
	ImageVersion repos.ImageVersionRepo
	Region       repos.RegionRepo
	RenderLog    repos.RenderLogRepo
	CostEstimate repos.CostEstimateRepo
	CatalogUsage repos.CatalogUsageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Project:      repos.NewProjectRepo(db, log),
		ImageVersion: repos.NewImageVersionRepo(db, log),
		Region:       repos.NewRegionRepo(db, log),
		RenderLog:    repos.NewRenderLogRepo(db, log),
		CostEstimate: repos.NewCostEstimateRepo(db, log),
		CatalogUsage: repos.NewCatalogUsageRepo(db, log),
	}
}

type Services struct {
	Catalog      services.Catalog
	Images       *services.ImageStore
	Orchestrator *render.Orchestrator
	Design       design.Usecases
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	clients Clients,
	r Repos,
	hub *realtime.SSEHub,
	metrics *observability.Metrics,
) (Services, error) {
	log.Info("Wiring services...")

	catalog, err := services.LoadCatalog(log, cfg.CatalogPath)
	if err != nil {
		return Services{}, fmt.Errorf("load catalog: %w", err)
	}
	markers, err := marker.NewRenderer()
	if err != nil {
		return Services{}, fmt.Errorf("init marker renderer: %w", err)
	}

	images := services.NewImageStore(log, clients.Bucket, clients.Fetch)
	var publisher realtime.Publisher
	if clients.Bus != nil {
		publisher = clients.Bus
	}
	notifier := services.NewProjectNotifier(realtime.NewEmitter(log, hub, publisher))
	store := pending.NewStore()

	gate := render.NewLocalGate()
	if clients.Redis != nil {
		gate = render.NewRedisGate(log, redisx.NewLocker(clients.Redis, "roomviz:render:"), renderLockTTL(cfg))
	}

	deps := render.Deps{
		DB:       db,
		Projects: r.Project,
		Versions: r.ImageVersion,
		Regions:  r.Region,
		Pending:  store,
		Markers:  markers,
		Images:   images,
		Store:    images,
		Editor:   services.NewOpenAIEditor(log, clients.OpenAI, cfg.Render.Model),
		Gate:     gate,
		Bookkeeper: services.NewBookkeeper(log, catalog, r.CostEstimate, r.CatalogUsage, r.RenderLog,
			cfg.bookkeepingConfig()),
		Notifier: notifier,
		Floors:   catalog,
	}
	if metrics != nil {
		deps.Metrics = metrics
	}
	orchestrator := render.New(log, cfg.renderConfig(), deps)

	uc := design.New(design.UsecasesDeps{
		DB:       db,
		Log:      log.With("service", "DesignUsecases"),
		Projects: r.Project,
		Versions: r.ImageVersion,
		Regions:  r.Region,
		Pending:  store,
		Renders:  orchestrator,
		Uploads:  images,
		Catalog:  catalog,
		Notifier: notifier,
		MinArea:  cfg.Render.MinArea,
	})

	return Services{
		Catalog:      catalog,
		Images:       images,
		Orchestrator: orchestrator,
		Design:       uc,
	}, nil
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Project  *httpH.ProjectHandler
	Region   *httpH.RegionHandler
	Pending  *httpH.PendingHandler
	Render   *httpH.RenderHandler
	Polygon  *httpH.PolygonHandler
	Catalog  *httpH.CatalogHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, s Services, hub *realtime.SSEHub, clients Clients, db *gorm.DB) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Project:  httpH.NewProjectHandler(log, s.Design),
		Region:   httpH.NewRegionHandler(log, s.Design),
		Pending:  httpH.NewPendingHandler(log, s.Design),
		Render:   httpH.NewRenderHandler(log, s.Design),
		Polygon:  httpH.NewPolygonHandler(log, s.Design),
		Catalog:  httpH.NewCatalogHandler(s.Catalog),
		Realtime: httpH.NewRealtimeHandler(log, hub, s.Design),
	}
}

func wireRouterConfig(log *logger.Logger, cfg Config, metrics *observability.Metrics, h Handlers) httpapi.RouterConfig {
	return httpapi.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		ServiceName:       cfg.Telemetry.ServiceName,
		TracingEnabled:    cfg.Telemetry.TracingEnabled,
		CORSOrigins:       cfg.CORSOrigins,
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		RenderRateLimiter: httpMW.NewUserRateLimiter(cfg.Render.PerMinute, cfg.Render.Burst),
		HealthHandler:     h.Health,
		ProjectHandler:    h.Project,
		RegionHandler:     h.Region,
		PendingHandler:    h.Pending,
		RenderHandler:     h.Render,
		PolygonHandler:    h.Polygon,
		CatalogHandler:    h.Catalog,
		RealtimeHandler:   h.Realtime,
	}
}

// renderLockTTL keeps the cross-instance lock alive past the longest render.
func renderLockTTL(cfg Config) time.Duration {
	if ttl := cfg.Render.Timeout + cfg.Render.PersistTimeout; ttl > cfg.Render.LockTTL {
		return ttl
	}
	return cfg.Render.LockTTL
}

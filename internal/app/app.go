package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/roomviz-backend/internal/db"
	httpapi "github.com/yungbote/roomviz-backend/internal/http"
	"github.com/yungbote/roomviz-backend/internal/modules/design"
	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/observability"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
	"github.com/yungbote/roomviz-backend/internal/realtime"
	"github.com/yungbote/roomviz-backend/internal/realtime/bus"
)

// Version is stamped by the build.
var Version = "dev"

type App struct {
	Log     *logger.Logger
	DB      *gorm.DB
	Cfg     Config
	Router  *gin.Engine
	Server  *httpapi.Server
	Design  design.Usecases
	Renders *render.Orchestrator
	SSEHub  *realtime.SSEHub
	Metrics *observability.Metrics

	pg           *db.PostgresService
	redis        *goredis.Client
	bus          bus.Bus
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(context.Background(), log, cfg.otelConfig(Version))
	metrics := observability.Init(log)

	pg, err := db.NewPostgresService(log, cfg.dbConfig())
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(log)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	hub := realtime.NewSSEHub(log)
	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, clients, reposet, hub, metrics)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset, hub, clients, theDB)
	routerCfg := wireRouterConfig(log, cfg, metrics, handlerset)
	server := httpapi.NewServer(routerCfg)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Router:       server.Engine,
		Server:       server,
		Design:       serviceset.Design,
		Renders:      serviceset.Orchestrator,
		SSEHub:       hub,
		Metrics:      metrics,
		pg:           pg,
		redis:        clients.Redis,
		bus:          clients.Bus,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background loops: the cross-instance SSE forwarder and the metrics listener.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.bus != nil {
		if err := a.bus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start SSE forwarder: %w", err)
		}
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.Telemetry.MetricsAddr)
	return nil
}

// Run serves HTTP until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx, a.Cfg.Addr, a.Cfg.ShutdownTimeout)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/roomviz-backend/internal/http/handlers"
	httpMW "github.com/yungbote/roomviz-backend/internal/http/middleware"
	"github.com/yungbote/roomviz-backend/internal/observability"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	TracingEnabled bool
	CORSOrigins    []string

	AuthMiddleware    *httpMW.AuthMiddleware
	RenderRateLimiter *httpMW.UserRateLimiter

	HealthHandler   *httpH.HealthHandler
	ProjectHandler  *httpH.ProjectHandler
	RegionHandler   *httpH.RegionHandler
	PendingHandler  *httpH.PendingHandler
	RenderHandler   *httpH.RenderHandler
	PolygonHandler  *httpH.PolygonHandler
	CatalogHandler  *httpH.CatalogHandler
	RealtimeHandler *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		name := cfg.ServiceName
		if name == "" {
			name = "roomviz"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	{
		// Public
		if cfg.PolygonHandler != nil {
			api.POST("/polygons/validate", cfg.PolygonHandler.Validate)
		}
		if cfg.CatalogHandler != nil {
			api.GET("/catalog", cfg.CatalogHandler.ListMaterials)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Projects
		if cfg.ProjectHandler != nil {
			protected.POST("/projects", cfg.ProjectHandler.CreateProject)
			protected.GET("/projects", cfg.ProjectHandler.ListProjects)
			protected.GET("/projects/:id", cfg.ProjectHandler.GetProject)
			protected.DELETE("/projects/:id", cfg.ProjectHandler.DeleteProject)
			protected.GET("/projects/:id/versions", cfg.ProjectHandler.ListVersions)
			protected.PUT("/projects/:id/current-version", cfg.ProjectHandler.SwitchVersion)
		}

		// Regions
		if cfg.RegionHandler != nil {
			protected.POST("/projects/:id/regions", cfg.RegionHandler.CreateRegion)
			protected.GET("/projects/:id/regions", cfg.RegionHandler.ListRegions)
			protected.PATCH("/projects/:id/regions/:region_id", cfg.RegionHandler.UpdateRegion)
			protected.DELETE("/projects/:id/regions/:region_id", cfg.RegionHandler.DeleteRegion)
		}

		// Pending edits
		if cfg.PendingHandler != nil {
			protected.GET("/projects/:id/pending", cfg.PendingHandler.GetPending)
			protected.DELETE("/projects/:id/pending", cfg.PendingHandler.ClearPending)
			protected.PUT("/projects/:id/pending/walls/:region_id", cfg.PendingHandler.SetWall)
			protected.DELETE("/projects/:id/pending/walls/:region_id", cfg.PendingHandler.RemoveWall)
			protected.PUT("/projects/:id/pending/floor", cfg.PendingHandler.SetFloor)
			protected.POST("/projects/:id/pending/floor/reference", cfg.PendingHandler.UploadFloorReference)
			protected.DELETE("/projects/:id/pending/floor", cfg.PendingHandler.ClearFloor)
			protected.POST("/projects/:id/pending/placements", cfg.PendingHandler.AddPlacement)
			protected.DELETE("/projects/:id/pending/placements/:placement_id", cfg.PendingHandler.RemovePlacement)
		}

		// Renders
		if cfg.RenderHandler != nil {
			submit := []gin.HandlerFunc{}
			if cfg.RenderRateLimiter != nil {
				submit = append(submit, cfg.RenderRateLimiter.Handler())
			}
			submit = append(submit, cfg.RenderHandler.SubmitRender)
			protected.POST("/projects/:id/renders", submit...)
			protected.GET("/projects/:id/renders/current", cfg.RenderHandler.RenderStatus)
			protected.DELETE("/projects/:id/renders/current", cfg.RenderHandler.CancelRender)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/projects/:id/events", cfg.RealtimeHandler.ProjectEvents)
		}
	}

	return r
}

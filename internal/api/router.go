package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/headcount/internal/api/handlers"
	"github.com/your-org/headcount/internal/api/ws"
	"github.com/your-org/headcount/internal/auth"
	"github.com/your-org/headcount/internal/processing"
	"github.com/your-org/headcount/internal/queue"
	"github.com/your-org/headcount/internal/storage"
)

type RouterConfig struct {
	APIKey    string
	DB        *storage.PostgresStore
	Snapshots *storage.SnapshotStore
	Producer  *queue.Producer
	Manager   *processing.Manager
	Hub       *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Snapshots, cfg.Producer.Ping, cfg.Manager)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Worker registry diagnostics
	v1.GET("/workers", systemH.Workers)

	// Cameras
	cameraH := handlers.NewCameraHandler(cfg.DB, cfg.DB, cfg.Manager, cfg.Snapshots)
	v1.POST("/cameras", cameraH.Create)
	v1.GET("/cameras", cameraH.List)
	v1.GET("/cameras/:id", cameraH.Get)
	v1.PATCH("/cameras/:id", cameraH.Update)
	v1.DELETE("/cameras/:id", cameraH.Delete)
	v1.POST("/cameras/:id/start", cameraH.Start)
	v1.POST("/cameras/:id/stop", cameraH.Stop)
	v1.GET("/cameras/:id/latest-count", cameraH.LatestCount)
	v1.GET("/cameras/:id/counts", cameraH.Counts)
	v1.POST("/camera/connect", cameraH.Connect)

	// Rooms
	roomH := handlers.NewRoomHandler(cfg.DB, cfg.DB, cfg.Manager, cfg.Snapshots)
	v1.POST("/rooms", roomH.Create)
	v1.GET("/rooms", roomH.List)
	v1.GET("/rooms/:id", roomH.Get)
	v1.PATCH("/rooms/:id", roomH.Update)
	v1.DELETE("/rooms/:id", roomH.Delete)
	v1.POST("/rooms/:id/stop", roomH.Stop)
	v1.GET("/rooms/:id/counts", roomH.Counts)

	// Counts
	countH := handlers.NewCountHandler(cfg.DB, cfg.Snapshots)
	v1.GET("/camera-counts", countH.List)
	v1.GET("/counts/:id/snapshot", countH.Snapshot)

	return r
}

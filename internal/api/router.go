package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/attend/internal/api/handlers"
	"github.com/your-org/attend/internal/api/ws"
	"github.com/your-org/attend/internal/auth"
	"github.com/your-org/attend/internal/queue"
	"github.com/your-org/attend/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Notifier *queue.Notifier
	Hub      *ws.Hub
	Verifier handlers.Verifier
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Notifier)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Application endpoints (with auth; auth is a no-op when no key is set)
	app := r.Group("/")
	app.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	app.GET("/ws", cfg.Hub.HandleWS)

	// Attendance submission
	attendH := handlers.NewAttendanceHandler(cfg.Verifier, cfg.DB, cfg.MinIO, cfg.Notifier)
	app.POST("/attendance", attendH.Submit)

	// Review workflow
	validationH := handlers.NewValidationHandler(cfg.DB, cfg.MinIO, cfg.Notifier)
	app.GET("/validation", validationH.List)
	app.POST("/validate_attendance", validationH.Decide)
	app.GET("/validation/:id/snapshot", validationH.Snapshot)

	// Reporting
	reportH := handlers.NewReportHandler(cfg.DB)
	app.GET("/report", reportH.List)

	// Staff roster
	staffH := handlers.NewStaffHandler(cfg.DB)
	app.GET("/staff", staffH.List)

	return r
}

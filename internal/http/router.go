package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/categorylink/internal/http/handlers"
	httpMW "github.com/yungbote/categorylink/internal/http/middleware"
	"github.com/yungbote/categorylink/internal/observability"
	"github.com/yungbote/categorylink/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string

	HealthHandler   *httpH.HealthHandler
	ProgressHandler *httpH.ProgressHandler
	RealtimeHandler *httpH.RealtimeHandler
	RunHandler      *httpH.RunHandler
	Metrics         *observability.Metrics
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "categorylink"
	}
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	// Progress
	if cfg.ProgressHandler != nil {
		r.GET("/progress", cfg.ProgressHandler.GetProgress)
	}

	// Realtime (SSE)
	if cfg.RealtimeHandler != nil {
		r.GET("/events", cfg.RealtimeHandler.SSEStream)
	}

	// Ledger
	if cfg.RunHandler != nil {
		r.GET("/runs", cfg.RunHandler.ListRuns)
	}

	// Metrics
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	return r
}

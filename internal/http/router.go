package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/mes-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mes-backend/internal/http/middleware"
	"github.com/yungbote/mes-backend/internal/observability"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	TraceRecordHandler *httpH.TraceRecordHandler
	HealthHandler      *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Log == nil {
		cfg.Log = logger.NewNop()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "mes-backend"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")

	// Trace records
	if h := cfg.TraceRecordHandler; h != nil {
		traces := api.Group("/trace-records")
		traces.POST("", h.Create)
		traces.GET("", h.List)
		traces.GET("/by-pin/:pin", h.GetByPin)
		traces.POST("/by-pin/:pin/proc-items", h.AddProcItem)
		traces.GET("/by-sequence/:product_code/:sequence", h.GetBySequence)
		traces.GET("/:id", h.Get)
		traces.POST("/:id/pin", h.BindPin)
		traces.POST("/:id/bom-items", h.AddBomItem)
		traces.DELETE("/:id/bom-items/:item_id", h.RemoveBomItem)
		traces.DELETE("/:id/proc-items/:item_id", h.RemoveProcItem)
		traces.POST("/:id/force-ng", h.ForceNg)
		traces.POST("/:id/force-destroyed", h.ForceDestroyed)
	}

	return r
}

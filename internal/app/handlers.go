package app

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mes-backend/internal/data/db"
	"github.com/yungbote/mes-backend/internal/http"
	httpH "github.com/yungbote/mes-backend/internal/http/handlers"
	"github.com/yungbote/mes-backend/internal/observability"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

type Handlers struct {
	Health      *httpH.HealthHandler
	TraceRecord *httpH.TraceRecordHandler
}

func wireHandlers(log *logger.Logger, dbs *db.Service, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(func(ctx context.Context) error {
			if dbs == nil {
				return nil
			}
			return dbs.PingContext(ctx)
		}),
		TraceRecord: httpH.NewTraceRecordHandler(log, services.Traces),
	}
}

func wireRouterConfig(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers) http.RouterConfig {
	switch strings.ToLower(cfg.LogMode) {
	case "prod", "production":
		gin.SetMode(gin.ReleaseMode)
	}
	return http.RouterConfig{
		Log:                log,
		Metrics:            metrics,
		ServiceName:        cfg.ServiceName,
		CORSOrigins:        cfg.CORSOrigins,
		TraceRecordHandler: handlers.TraceRecord,
		HealthHandler:      handlers.Health,
	}
}

package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mes-backend/internal/http/response"
	"github.com/yungbote/mes-backend/internal/pkg/ctxutil"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

// ledgerParams maps route params to the log keys the ledger uses elsewhere.
var ledgerParams = []struct {
	param string
	key   string
}{
	{"id", "trace_info_id"},
	{"pin", "pin"},
	{"product_code", "product_code"},
	{"sequence", "sequence"},
	{"item_id", "item_id"},
}

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		fields := requestLogFields(c, time.Since(start))
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func requestLogFields(c *gin.Context, dur time.Duration) []interface{} {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	fields := []interface{}{
		"method", strings.ToUpper(c.Request.Method),
		"path", path,
		"status", c.Writer.Status(),
		"duration_ms", dur.Milliseconds(),
	}
	fields = append(fields, ctxutil.LogFields(c.Request.Context())...)
	for _, p := range ledgerParams {
		if v := strings.TrimSpace(c.Param(p.param)); v != "" {
			fields = append(fields, p.key, v)
		}
	}
	if code := c.GetString(response.ErrorCodeKey); code != "" {
		fields = append(fields, "error_code", code)
	}
	if len(c.Errors) > 0 {
		fields = append(fields, "error", c.Errors.String())
	}
	return fields
}

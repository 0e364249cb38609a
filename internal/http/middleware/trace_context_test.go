package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mes-backend/internal/http/response"
	"github.com/yungbote/mes-backend/internal/pkg/ctxutil"
)

func TestAttachTraceContextPropagatesHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "req-42")
	req.Header.Set(headerTraceID, "trace-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if seen == nil {
		t.Fatalf("trace data missing from request context")
	}
	if seen.RequestID != "req-42" || seen.TraceID != "trace-42" {
		t.Fatalf("trace data: got=%+v", seen)
	}
	if got := w.Header().Get(headerTraceID); got != "trace-42" {
		t.Fatalf("trace header: want=trace-42 got=%q", got)
	}
}

func TestAttachTraceContextGeneratesIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get(headerRequestID) == "" || w.Header().Get(headerTraceID) == "" {
		t.Fatalf("expected generated ids, got headers=%v", w.Header())
	}
}

func TestRequestLoggerToleratesNilLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(nil))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusTeapot {
		t.Fatalf("status: want=%d got=%d", http.StatusTeapot, w.Code)
	}
}

func TestRequestLogFieldsCarryLedgerContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	fields := map[string]interface{}{}
	r.Use(func(c *gin.Context) {
		c.Next()
		kv := requestLogFields(c, 0)
		for i := 0; i+1 < len(kv); i += 2 {
			fields[kv[i].(string)] = kv[i+1]
		}
	})
	r.POST("/api/trace-records/:id/pin", func(c *gin.Context) {
		response.RespondError(c, http.StatusConflict, "already_bound", errors.New("already bound"))
	})

	req := httptest.NewRequest(http.MethodPost, "/api/trace-records/abc/pin", nil)
	req.Header.Set(headerRequestID, "req-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	want := map[string]interface{}{
		"path":          "/api/trace-records/:id/pin",
		"status":        http.StatusConflict,
		"request_id":    "req-7",
		"trace_info_id": "abc",
		"error_code":    "already_bound",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Fatalf("field %s: want=%v got=%v", k, v, fields[k])
		}
	}
	if _, ok := fields["pin"]; ok {
		t.Fatalf("absent params should not be logged: %v", fields)
	}
}

package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/mes-backend/internal/http/handlers"
)

func TestHealthcheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		ping   func(context.Context) error
		status int
	}{
		{name: "ok", ping: func(context.Context) error { return nil }, status: nethttp.StatusOK},
		{name: "db down", ping: func(context.Context) error { return errors.New("down") }, status: nethttp.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRouter(RouterConfig{HealthHandler: httpH.NewHealthHandler(tc.ping)})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/healthcheck", nil))
			if w.Code != tc.status {
				t.Fatalf("status: want=%d got=%d", tc.status, w.Code)
			}
		})
	}
}

func TestRouterSetsRequestHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{HealthHandler: httpH.NewHealthHandler(nil)})
	req := httptest.NewRequest(nethttp.MethodGet, "/healthcheck", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "req-1" {
		t.Fatalf("request id: want=req-1 got=%q", got)
	}
	if w.Header().Get("X-Trace-Id") == "" {
		t.Fatalf("expected trace id header")
	}
}

func TestTraceRoutesRegistered(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{TraceRecordHandler: httpH.NewTraceRecordHandler(nil, nil)})
	want := map[string]bool{
		"POST /api/trace-records":                                   false,
		"GET /api/trace-records":                                    false,
		"GET /api/trace-records/:id":                                false,
		"GET /api/trace-records/by-pin/:pin":                        false,
		"GET /api/trace-records/by-sequence/:product_code/:sequence": false,
		"POST /api/trace-records/:id/pin":                           false,
		"POST /api/trace-records/:id/bom-items":                     false,
		"DELETE /api/trace-records/:id/bom-items/:item_id":          false,
		"POST /api/trace-records/by-pin/:pin/proc-items":            false,
		"DELETE /api/trace-records/:id/proc-items/:item_id":         false,
		"POST /api/trace-records/:id/force-ng":                      false,
		"POST /api/trace-records/:id/force-destroyed":               false,
	}
	for _, rt := range r.Routes() {
		key := rt.Method + " " + rt.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, seen := range want {
		if !seen {
			t.Fatalf("route not registered: %s", route)
		}
	}
}

package server

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/cadence/internal/adapters/server/common"
	"github.com/evanschultz/cadence/internal/adapters/storage/memory"
	"github.com/evanschultz/cadence/internal/app"
)

// testService returns an in-memory service adapter for transport tests.
func testService() common.ScheduleService {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	next := 0
	svc := app.NewService(memory.New(), nil, func() string {
		next++
		return fmt.Sprintf("i%d", next)
	}, func() time.Time { return now }, app.ServiceConfig{})
	return common.NewAppServiceAdapter(svc)
}

// TestNewHandlerRoutes verifies health, REST, and unknown routes on the composed mux.
func TestNewHandlerRoutes(t *testing.T) {
	var logs bytes.Buffer
	logger := log.New(&logs)
	logger.SetLevel(log.DebugLevel)
	handler, cfg, err := NewHandler(Config{APIEndpoint: "api/v1/", MCPEndpoint: ""}, Dependencies{Service: testService(), Logger: logger})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" || cfg.HTTPBind != defaultBindAddress || cfg.ServerName != "cadence" {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Fatalf("%s = %d %q", path, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("GET /api/v1/items = %d %q", rec.Code, rec.Body.String())
	}
	if !strings.Contains(logs.String(), "http request") {
		t.Fatalf("expected request log, got %q", logs.String())
	}
}

// TestNewHandlerRejectsBadConfig verifies endpoint collisions and missing services fail.
func TestNewHandlerRejectsBadConfig(t *testing.T) {
	if _, _, err := NewHandler(Config{APIEndpoint: "/x", MCPEndpoint: "x"}, Dependencies{Service: testService()}); err == nil {
		t.Fatal("expected endpoint collision error")
	}
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected missing service error")
	}
}

package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/capdir/component"
)

type staticChecker []component.Health

func (s staticChecker) HealthAll(context.Context) []component.Health { return s }

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/probe", h)
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, httptest.NewRequest("GET", "/probe", http.NoBody))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return rr, body
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checker    component.HealthChecker
		wantCode   int
		wantStatus string
	}{
		{"no checker", nil, http.StatusOK, "healthy"},
		{"all healthy", staticChecker{{Name: "directory", Status: component.StatusHealthy}}, http.StatusOK, "healthy"},
		{"degraded", staticChecker{
			{Name: "directory", Status: component.StatusHealthy},
			{Name: "gcd-redis", Status: component.StatusDegraded},
		}, http.StatusOK, "degraded"},
		{"unhealthy", staticChecker{
			{Name: "directory", Status: component.StatusUnhealthy},
			{Name: "gcd-redis", Status: component.StatusDegraded},
		}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := serve(t, Health("capdir", tt.checker))
			if rr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rr.Code, tt.wantCode)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
		})
	}
}

func TestReadiness(t *testing.T) {
	rr, body := serve(t, Readiness("capdir", staticChecker{{Name: "directory", Status: component.StatusUnhealthy}}))
	if rr.Code != http.StatusServiceUnavailable || body["status"] != "not_ready" {
		t.Errorf("got %d %v", rr.Code, body)
	}

	rr, body = serve(t, Readiness("capdir", staticChecker{{Name: "directory", Status: component.StatusDegraded}}))
	if rr.Code != http.StatusOK || body["status"] != "ready" {
		t.Errorf("got %d %v", rr.Code, body)
	}
}

func TestLiveness(t *testing.T) {
	rr, body := serve(t, Liveness("capdir"))
	if rr.Code != http.StatusOK || body["status"] != "alive" {
		t.Errorf("got %d %v", rr.Code, body)
	}
}

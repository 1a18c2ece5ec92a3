package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/appointments/api/internal/config"
	"github.com/appointments/api/internal/domain/scheduling"
	"github.com/appointments/api/internal/platform/auth"
	"github.com/appointments/api/internal/platform/telemetry"
)

const testSigningKey = "server-test-key"

func testServer(t *testing.T, env string) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Env:            env,
		Store:          config.StoreMemory,
		CORSOrigins:    []string{"*"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		RequestTimeout: 5 * time.Second,
		AuthSigningKey: testSigningKey,
		MetricsEnabled: true,
	}
	mem := scheduling.NewMemoryStore()
	svc := scheduling.NewService(mem.Appointments(), mem.Doctors(), mem)
	return newServer(cfg, zerolog.Nop(), svc, telemetry.NewCollector("test"), nil)
}

func serve(h http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const bookingBody = `{"doctor":"mjones","startDate":"2099-07-09T09:30","endDate":"2099-07-09T10:15","patient":"asmith"}`

func TestServer_DevelopmentFlow(t *testing.T) {
	h := testServer(t, "development")

	rec := serve(h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID on every response")
	}

	rec = serve(h, http.MethodPost, "/api/appointments", bookingBody, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_http_requests_total{method="POST",path="/api/appointments",status="201"} 1`) {
		t.Errorf("expected application metrics in exposition, got %s", rec.Body.String())
	}
}

func TestServer_ProductionRequiresToken(t *testing.T) {
	h := testServer(t, "production")

	if rec := serve(h, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Errorf("health must stay public, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/api/appointments", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	sign := func(roles ...string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Roles: roles,
		})
		s, err := tok.SignedString([]byte(testSigningKey))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	if rec := serve(h, http.MethodPost, "/api/appointments", bookingBody, sign("viewer")); rec.Code != http.StatusForbidden {
		t.Errorf("viewer create: expected 403, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodPost, "/api/appointments", bookingBody, sign("scheduler")); rec.Code != http.StatusCreated {
		t.Errorf("scheduler create: expected 201, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodDelete, "/api/appointments", "", sign("scheduler")); rec.Code != http.StatusForbidden {
		t.Errorf("scheduler delete all: expected 403, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/api/appointments", "", sign("viewer")); rec.Code != http.StatusOK {
		t.Errorf("viewer list: expected 200, got %d", rec.Code)
	}
}

func TestServer_NoDBHealthForMemoryStore(t *testing.T) {
	h := testServer(t, "development")
	if rec := serve(h, http.MethodGet, "/health/db", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for /health/db without a pool, got %d", rec.Code)
	}
}

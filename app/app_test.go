package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/memstore"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/Black-And-White-Club/tourney-settlement/config"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	modules *Modules
	sandbox *paymentgateway.Sandbox
	store   *memstore.Store
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			AllowedOrigins: []string{"https://app.example.com"},
			RateLimit:      1000,
			RateBurst:      1000,
		},
		JWT:          config.JWTConfig{Secret: "test-secret", Issuer: "tests"},
		Gateway:      config.GatewayConfig{Mode: "sandbox", Currency: "INR", KeySecret: "sbx"},
		Registration: config.RegistrationConfig{PaymentTimeout: 15 * time.Minute},
		Settlement:   config.SettlementConfig{FeeRateBps: 1000},
	}
}

func newTestServer(t *testing.T, health map[string]HealthCheck) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	store := memstore.New()
	sandbox := paymentgateway.NewSandbox(cfg.Gateway.KeySecret, "")
	bus := eventbus.NewInMemory(logger)
	t.Cleanup(func() { _ = bus.Close() })

	registry := prometheus.NewRegistry()
	modules := NewModules(ModuleDeps{
		Config: cfg,
		Repositories: Repositories{
			Tournaments:   store.Tournaments(),
			Registrations: store.Registrations(),
			Slots:         store.Slots(),
			Ledger:        store.Ledger(),
			Settlement:    store.Settlement(),
			Disputes:      store.Disputes(),
		},
		Gateway:  sandbox,
		EventBus: bus,
		Logger:   logger,
		Metrics:  telemetry.NewPrometheusMetrics(registry),
	})
	return &testServer{
		handler: modules.Handler(logger, health, MetricsHandler(registry)),
		modules: modules,
		sandbox: sandbox,
		store:   store,
	}
}

func (s *testServer) token(t *testing.T, role authdomain.Role) (authdomain.Principal, string) {
	t.Helper()
	p := authdomain.Principal{ID: uuid.New(), Role: role, Name: string(role)}
	tok, err := s.modules.Auth.Provider().GenerateToken(p, time.Hour)
	require.NoError(t, err)
	return p, tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorEnvelope struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   string
	}{
		{
			name:       "all checks pass",
			checks:     map[string]HealthCheck{"database": func(context.Context) error { return nil }},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "one check fails",
			checks: map[string]HealthCheck{
				"database": func(context.Context) error { return nil },
				"queue":    func(context.Context) error { return errors.New("river_job missing") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "unavailable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.checks)
			rec := srv.do(t, http.MethodGet, "/healthz", "", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody[healthResponse](t, rec)
			assert.Equal(t, tt.wantBody, body.Status)
			assert.Len(t, body.Checks, len(tt.checks))
		})
	}
}

func TestRouter_NotFoundAndCorrelation(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	req.Header.Set(correlationIDHeader, "corr-123")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "corr-123", rec.Header().Get(correlationIDHeader))
	assert.Equal(t, "NOT_FOUND", decodeBody[errorEnvelope](t, rec).Error.Code)
}

func TestRouter_AuthGuards(t *testing.T) {
	srv := newTestServer(t, nil)
	_, participant := srv.token(t, authdomain.RoleParticipant)

	rec := srv.do(t, http.MethodPost, "/api/v1/tournaments", "", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/tournaments", participant, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/admin/payouts/batch-approve", participant, map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/tournaments", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestRegistrationFlow drives a tournament from creation to a confirmed
// entrant over HTTP.
func TestRegistrationFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	_, organizer := srv.token(t, authdomain.RoleOrganizer)
	_, admin := srv.token(t, authdomain.RoleAdmin)
	_, participant := srv.token(t, authdomain.RoleParticipant)

	rec := srv.do(t, http.MethodPost, "/api/v1/tournaments", organizer, map[string]any{
		"name":       "Friday Scrims",
		"game":       "valorant",
		"capacity":   2,
		"entry_fee":  5000,
		"currency":   "INR",
		"prize_pool": 8000,
		"starts_at":  time.Now().Add(48 * time.Hour).UTC(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tour := decodeBody[struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}](t, rec)
	assert.Equal(t, "DRAFT", tour.Status)
	base := "/api/v1/tournaments/" + tour.ID.String()

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, base+"/submit", organizer, nil).Code)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/v1/admin/tournaments/"+tour.ID.String()+"/approve", admin, nil).Code)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, base+"/open", organizer, nil).Code)

	rec = srv.do(t, http.MethodPost, base+"/join", participant, map[string]any{
		"team_name":    "Night Owls",
		"team_members": []string{"a", "b"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	joined := decodeBody[struct {
		Registration struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		} `json:"registration"`
		Order struct {
			ID     string `json:"id"`
			Amount int64  `json:"amount"`
		} `json:"order"`
	}](t, rec)
	assert.Equal(t, "AWAITING_PAYMENT", joined.Registration.Status)
	assert.Equal(t, int64(5000), joined.Order.Amount)

	tampered := srv.do(t, http.MethodPost, "/api/v1/payments/verify", participant, map[string]any{
		"registration_id": joined.Registration.ID,
		"order_id":        joined.Order.ID,
		"payment_id":      "pay_1",
		"signature":       strings.Repeat("0", 64),
	})
	assert.Equal(t, http.StatusBadRequest, tampered.Code)
	assert.Equal(t, "PAYMENT_VERIFICATION_FAILED", decodeBody[errorEnvelope](t, tampered).Error.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/payments/verify", participant, map[string]any{
		"registration_id": joined.Registration.ID,
		"order_id":        joined.Order.ID,
		"payment_id":      "pay_1",
		"signature":       srv.sandbox.SignCallback(joined.Order.ID, "pay_1"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CONFIRMED", decodeBody[struct {
		Status string `json:"status"`
	}](t, rec).Status)

	rec = srv.do(t, http.MethodGet, base+"/participants", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Night Owls")

	metrics := srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "service_operation_attempts_total")
}

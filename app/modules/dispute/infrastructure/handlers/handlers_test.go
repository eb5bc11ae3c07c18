package disputehandlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	disputeservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/application"
	disputedomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/domain"
	disputedb "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(svc Service, guard *FakeGuard) *httptest.Server {
	h := NewDisputeHandlers(svc, nil)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticate)
		r.Post("/disputes", h.HandleOpen)
		r.Get("/disputes/{id}", h.HandleGet)
		r.With(guard.Require(authdomain.RoleOrganizer)).Get("/tournaments/{id}/disputes", h.HandleList)
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(authdomain.RoleAdmin))
			r.Post("/admin/disputes/{id}/review", h.HandleReview)
			r.Post("/admin/disputes/{id}/resolve", h.HandleResolve)
			r.Post("/admin/disputes/{id}/dismiss", h.HandleDismiss)
		})
	})
	return httptest.NewServer(r)
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	env, _ := body["error"].(map[string]any)
	code, _ := env["code"].(string)
	return code
}

func sampleDispute(status disputedomain.Status) *disputedb.Dispute {
	return &disputedb.Dispute{
		ID:           uuid.New(),
		TournamentID: uuid.New(),
		RaisedBy:     uuid.New(),
		Type:         disputedomain.TypeResultDispute,
		Priority:     disputedomain.PriorityHigh,
		Status:       status,
		Description:  "placement 2 was actually placement 1",
	}
}

func TestHandleOpen(t *testing.T) {
	actor := &authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleParticipant}
	tid, mid := uuid.New(), uuid.New()
	var got disputeservice.DisputeInput
	svc := &FakeService{
		OpenDisputeFunc: func(ctx context.Context, p authdomain.Principal, in disputeservice.DisputeInput) (*disputedb.Dispute, error) {
			assert.Equal(t, actor.ID, p.ID)
			got = in
			return sampleDispute(disputedomain.StatusOpen), nil
		},
	}
	srv := newTestServer(svc, &FakeGuard{principal: actor})
	defer srv.Close()

	body := `{"tournament_id":"` + tid.String() + `","match_id":"` + mid.String() + `","type":"RESULT_DISPUTE","priority":"HIGH","description":"wrong winner"}`
	status, out := do(t, srv, http.MethodPost, "/disputes", body)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "OPEN", out["status"])
	assert.Equal(t, tid, got.TournamentID)
	require.NotNil(t, got.MatchID)
	assert.Equal(t, mid, *got.MatchID)
	assert.Nil(t, got.RegistrationID)
	assert.Equal(t, disputedomain.TypeResultDispute, got.Type)

	status, out = do(t, srv, http.MethodPost, "/disputes", `{"tournament_id":"`+tid.String()+`","severity":"max"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(apperr.CodeValidation), errorCode(out))
	assert.Equal(t, []string{"OpenDispute"}, svc.calls)
}

func TestHandleResolve_AdminOnly(t *testing.T) {
	d := sampleDispute(disputedomain.StatusResolved)
	svc := &FakeService{
		ResolveFunc: func(ctx context.Context, p authdomain.Principal, id uuid.UUID, outcome string) (*disputedb.Dispute, error) {
			assert.Equal(t, "result stands", outcome)
			d.Resolution = &outcome
			return d, nil
		},
	}
	path := "/admin/disputes/" + d.ID.String() + "/resolve"

	organizer := newTestServer(svc, &FakeGuard{principal: &authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleOrganizer}})
	defer organizer.Close()
	status, out := do(t, organizer, http.MethodPost, path, `{"outcome":"result stands"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, string(apperr.CodeForbidden), errorCode(out))
	assert.Empty(t, svc.calls)

	admin := newTestServer(svc, &FakeGuard{principal: &authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleAdmin}})
	defer admin.Close()
	status, out = do(t, admin, http.MethodPost, path, `{"outcome":"result stands"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "RESOLVED", out["status"])
	assert.Equal(t, "result stands", out["resolution"])
}

func TestHandleDismiss_TerminalIsConflict(t *testing.T) {
	svc := &FakeService{
		DismissFunc: func(ctx context.Context, p authdomain.Principal, id uuid.UUID, reason string) (*disputedb.Dispute, error) {
			return nil, apperr.InvalidState("dispute is RESOLVED")
		},
	}
	srv := newTestServer(svc, &FakeGuard{principal: &authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleAdmin}})
	defer srv.Close()

	status, out := do(t, srv, http.MethodPost, "/admin/disputes/"+uuid.NewString()+"/dismiss", `{"reason":"late"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(apperr.CodeInvalidState), errorCode(out))
}

func TestHandleList_StatusFilter(t *testing.T) {
	var gotStatus *disputedomain.Status
	svc := &FakeService{
		ListDisputesFunc: func(ctx context.Context, p authdomain.Principal, tid uuid.UUID, status *disputedomain.Status) ([]disputedb.Dispute, error) {
			gotStatus = status
			return []disputedb.Dispute{*sampleDispute(disputedomain.StatusUnderReview)}, nil
		},
	}
	srv := newTestServer(svc, &FakeGuard{principal: &authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleOrganizer}})
	defer srv.Close()
	path := "/tournaments/" + uuid.NewString() + "/disputes"

	status, out := do(t, srv, http.MethodGet, path+"?status=UNDER_REVIEW", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["disputes"], 1)
	require.NotNil(t, gotStatus)
	assert.Equal(t, disputedomain.StatusUnderReview, *gotStatus)

	status, out = do(t, srv, http.MethodGet, path+"?status=CLOSED", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(apperr.CodeValidation), errorCode(out))
}

func TestHandleGet_Unauthenticated(t *testing.T) {
	srv := newTestServer(&FakeService{}, &FakeGuard{})
	defer srv.Close()

	status, out := do(t, srv, http.MethodGet, "/disputes/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(apperr.CodeUnauthorized), errorCode(out))
}

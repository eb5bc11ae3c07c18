package tournamenthandlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
	"github.com/google/uuid"
)

// TournamentHandlers implements the Handlers interface.
type TournamentHandlers struct {
	service Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewTournamentHandlers creates a new TournamentHandlers instance.
func NewTournamentHandlers(service Service, logger *slog.Logger) Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &TournamentHandlers{service: service, logger: logger, now: time.Now}
}

type lifecycleFunc func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)

// lifecycle serves the body-less transition endpoints.
func (h *TournamentHandlers) lifecycle(w http.ResponseWriter, r *http.Request, fn lifecycleFunc) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	t, err := fn(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newTournamentResponse(t))
}

func (h *TournamentHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req termsRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	terms, err := req.terms(h.now())
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	t, err := h.service.CreateTournament(r.Context(), actor, terms)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newTournamentResponse(t))
}

// HandleUpdate replaces the terms of a draft. The body carries the full set
// of terms, not a patch of changed fields.
func (h *TournamentHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req termsRequest
	h.lifecycle(w, r, func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
		if err := httpx.Decode(r, &req); err != nil {
			return nil, err
		}
		terms, err := req.terms(h.now())
		if err != nil {
			return nil, err
		}
		return h.service.UpdateDraft(ctx, actor, id, terms)
	})
}

func (h *TournamentHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.SubmitForApproval)
}

func (h *TournamentHandlers) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Approve)
}

func (h *TournamentHandlers) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
		var req reasonRequest
		if err := httpx.Decode(r, &req); err != nil {
			return nil, err
		}
		return h.service.Reject(ctx, actor, id, req.Reason)
	})
}

func (h *TournamentHandlers) HandleOpen(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.OpenRegistration)
}

func (h *TournamentHandlers) HandleClose(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.CloseRegistration)
}

func (h *TournamentHandlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.StartMatch)
}

func (h *TournamentHandlers) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Complete)
}

// HandleCancel cancels the tournament and reports the refunds it created.
func (h *TournamentHandlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req reasonRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}

	res, err := h.service.Cancel(r.Context(), actor, id, req.Reason)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cancelResponse{
		Tournament:         newTournamentResponse(res.Tournament),
		CancelledPending:   res.CancelledPending,
		CancelledConfirmed: res.CancelledConfirmed,
		RefundsCreated:     res.RefundsCreated,
		RefundedTotal:      res.RefundedTotal,
	})
}

func (h *TournamentHandlers) HandleTopUp(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
		var req topUpRequest
		if err := httpx.Decode(r, &req); err != nil {
			return nil, err
		}
		return h.service.TopUpEscrow(ctx, actor, id, req.Amount)
	})
}

func (h *TournamentHandlers) HandleEscrowSummary(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	summary, err := h.service.EscrowSummary(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *TournamentHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	t, err := h.service.GetTournament(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newTournamentResponse(t))
}

// HandleList supports ?status=, ?organizer_id=, ?limit= and ?offset=.
func (h *TournamentHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	list, err := h.service.ListTournaments(r.Context(), filter)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	out := make([]tournamentResponse, 0, len(list))
	for i := range list {
		out = append(out, newTournamentResponse(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tournaments": out})
}

func parseListFilter(r *http.Request) (tournamentdb.ListFilter, error) {
	q := r.URL.Query()
	var filter tournamentdb.ListFilter
	if raw := q.Get("status"); raw != "" {
		status := tournamentdomain.Status(raw)
		filter.Status = &status
	}
	organizerID, err := httpx.QueryUUID(r, "organizer_id")
	if err != nil {
		return filter, err
	}
	filter.OrganizerID = organizerID
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, apperr.Validation("invalid %s %q", name, raw)
		}
		*dst = n
	}
	return filter, nil
}

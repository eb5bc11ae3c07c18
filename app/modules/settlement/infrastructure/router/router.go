package settlementrouter

import (
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	settlementhandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/handlers"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
	"github.com/go-chi/chi/v5"
)

// Mount registers the match, result and payout routes.
func Mount(r chi.Router, guard httpx.Guard, handlers settlementhandlers.Handlers) {
	r.Get("/tournaments/{id}/matches", handlers.HandleListMatches)

	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticate)
		r.Get("/matches/{id}/results", handlers.HandleGetResult)

		r.Group(func(r chi.Router) {
			r.Use(guard.Require(authdomain.RoleOrganizer))
			r.Post("/tournaments/{id}/matches", handlers.HandleCreateMatch)
			r.Post("/matches/{id}/results", handlers.HandleSubmitResult)
			r.Get("/tournaments/{id}/payouts", handlers.HandleListPayouts)
		})

		r.Group(func(r chi.Router) {
			r.Use(guard.Require(authdomain.RoleAdmin))
			r.Post("/admin/matches/{id}/verify", handlers.HandleVerifyResult)
			r.Post("/admin/matches/{id}/reject", handlers.HandleRejectResult)
			r.Post("/admin/payouts/batch-approve", handlers.HandleBatchApprove)
			r.Post("/admin/payouts/{id}/approve", handlers.HandleApprovePayout)
			r.Post("/admin/payouts/{id}/process", handlers.HandleProcessPayout)
			r.Post("/admin/payouts/{id}/retry", handlers.HandleRetryPayout)
			r.Post("/admin/refunds/{id}/retry", handlers.HandleRetryRefund)
			r.Get("/admin/tournaments/{id}/settlement-report", handlers.HandleSettlementReport)
		})
	})
}

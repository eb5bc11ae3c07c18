package tournamentrouter

import (
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	tournamenthandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/handlers"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
	"github.com/go-chi/chi/v5"
)

// Mount registers the tournament routes on r, which is already rooted at
// the API base path.
func Mount(r chi.Router, guard httpx.Guard, handlers tournamenthandlers.Handlers) {
	r.Get("/tournaments", handlers.HandleList)
	r.Get("/tournaments/{id}", handlers.HandleGet)

	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(guard.Require(authdomain.RoleOrganizer))
			r.Post("/tournaments", handlers.HandleCreate)
			r.Patch("/tournaments/{id}", handlers.HandleUpdate)
			r.Post("/tournaments/{id}/submit", handlers.HandleSubmit)
			r.Post("/tournaments/{id}/open", handlers.HandleOpen)
			r.Post("/tournaments/{id}/close", handlers.HandleClose)
			r.Post("/tournaments/{id}/start", handlers.HandleStart)
			r.Post("/tournaments/{id}/complete", handlers.HandleComplete)
			r.Post("/tournaments/{id}/cancel", handlers.HandleCancel)
			r.Post("/tournaments/{id}/topup", handlers.HandleTopUp)
			r.Get("/tournaments/{id}/escrow", handlers.HandleEscrowSummary)
		})

		r.Group(func(r chi.Router) {
			r.Use(guard.Require(authdomain.RoleAdmin))
			r.Post("/admin/tournaments/{id}/approve", handlers.HandleApprove)
			r.Post("/admin/tournaments/{id}/reject", handlers.HandleReject)
		})
	})
}

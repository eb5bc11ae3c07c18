package disputerouter

import (
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	disputehandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/handlers"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
	"github.com/go-chi/chi/v5"
)

func Mount(r chi.Router, guard httpx.Guard, handlers disputehandlers.Handlers) {
	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticate)
		r.With(guard.RateLimit).Post("/disputes", handlers.HandleOpen)
		r.Get("/disputes/{id}", handlers.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(guard.Require(authdomain.RoleOrganizer))
			r.Get("/tournaments/{id}/disputes", handlers.HandleList)
		})

		r.Group(func(r chi.Router) {
			r.Use(guard.Require(authdomain.RoleAdmin))
			r.Post("/admin/disputes/{id}/review", handlers.HandleReview)
			r.Post("/admin/disputes/{id}/resolve", handlers.HandleResolve)
			r.Post("/admin/disputes/{id}/dismiss", handlers.HandleDismiss)
		})
	})
}

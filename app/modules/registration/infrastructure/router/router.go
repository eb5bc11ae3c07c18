package registrationrouter

import (
	registrationhandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/handlers"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
	"github.com/go-chi/chi/v5"
)

// Mount registers the registration routes on r, which is already rooted at
// the API base path.
func Mount(r chi.Router, guard httpx.Guard, handlers registrationhandlers.Handlers) {
	r.Get("/tournaments/{id}/participants", handlers.HandleListParticipants)
	r.Post("/webhooks/payments", handlers.HandlePaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticate)
		r.Get("/tournaments/{id}/my-registration", handlers.HandleGetMyRegistration)
		r.Delete("/registrations/{id}", handlers.HandleCancel)

		r.Group(func(r chi.Router) {
			r.Use(guard.RateLimit)
			r.Post("/tournaments/{id}/join", handlers.HandleJoin)
			r.Post("/payments/verify", handlers.HandleVerifyPayment)
		})
	})
}

package routers

import (
	"github.com/go-chi/chi/v5"

	"speakmatch/internal/scoring"
	"speakmatch/internal/signaling"
)

func SessionRoutes(r *chi.Mux, relay *signaling.Relay, scores *scoring.Handlers) {
	r.Get("/api/v1/webrtc/config", relay.ConfigHandler)
	r.Route("/api/v1/session/{sessionId}", func(r chi.Router) {
		r.Get("/", relay.SessionHandler)
		r.HandleFunc("/ws", relay.SessionWS)
		r.Post("/connected", relay.ConnectedHandler)
		r.Post("/score", scores.SubmitHandler)
		r.Get("/scores", scores.ListHandler)
	})
}

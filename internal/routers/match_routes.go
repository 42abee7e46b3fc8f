package routers

import (
	"github.com/go-chi/chi/v5"

	"speakmatch/internal/matchmaking"
)

func MatchRoutes(r *chi.Mux, h *matchmaking.Handlers) {
	r.Route("/api/v1/match", func(r chi.Router) {
		r.Post("/join", h.JoinHandler)
		r.Post("/cancel", h.CancelHandler)
		r.Get("/check", h.CheckHandler)
		r.HandleFunc("/ws", h.WsHandler)
	})
}

package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"speakmatch/internal/models"
	"speakmatch/internal/utils"
)

func HealthRoutes(r *chi.Mux) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.JSON(w, http.StatusOK, models.Resp{OK: true, Info: "healthy"})
	})
}

package scoring

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"speakmatch/internal/models"
	"speakmatch/internal/repositories"
	"speakmatch/internal/utils"
)

// Handlers exposes the scoring service over HTTP. The scorer identity comes
// from the session token, never from the request body.
type Handlers struct {
	svc       *Service
	jwtSecret []byte
}

func NewHandlers(svc *Service, jwtSecret []byte) *Handlers {
	return &Handlers{svc: svc, jwtSecret: jwtSecret}
}

// SubmitHandler handles POST /api/v1/session/{sessionId}/score.
func (h *Handlers) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	token := r.URL.Query().Get("token")
	userID, err := utils.VerifySessionToken(token, sessionID, h.jwtSecret)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	var req models.ScoreReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ScorerID = userID

	err = h.svc.Submit(r.Context(), sessionID, req)
	switch {
	case errors.Is(err, repositories.ErrSessionNotFound):
		utils.JSONError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, repositories.ErrRoleConflict):
		utils.JSONError(w, http.StatusForbidden, "only the current interviewer may score")
	case errors.Is(err, repositories.ErrBadTransition):
		utils.JSONError(w, http.StatusGone, "session has ended")
	case errors.Is(err, repositories.ErrInvalidScore):
		utils.JSONError(w, http.StatusBadRequest, "score metrics out of range")
	case err != nil:
		utils.JSONError(w, http.StatusInternalServerError, "failed to record score")
	default:
		utils.JSON(w, http.StatusOK, models.Resp{OK: true, Info: "scored"})
	}
}

// ListHandler handles GET /api/v1/session/{sessionId}/scores.
func (h *Handlers) ListHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	token := r.URL.Query().Get("token")
	if _, err := utils.VerifySessionToken(token, sessionID, h.jwtSecret); err != nil {
		utils.JSONError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	scores, err := h.svc.ListScores(sessionID)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		utils.JSONError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to list scores")
		return
	}
	utils.JSON(w, http.StatusOK, scores)
}

package matchmaking

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"speakmatch/internal/models"
	"speakmatch/internal/utils"
)

// Handlers exposes the matchmaking API over HTTP and pushes match_found
// notifications to waiting clients over WebSocket.
type Handlers struct {
	mm       *Matchmaker
	upgrader websocket.Upgrader
}

func NewHandlers(mm *Matchmaker) *Handlers {
	return &Handlers{
		mm: mm,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// JoinHandler enqueues the caller and attempts an immediate pairing.
func (h *Handlers) JoinHandler(w http.ResponseWriter, r *http.Request) {
	var req models.JoinReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}
	if req.UserID == "" || req.ExamID == "" {
		utils.JSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "userId and examId required"})
		return
	}

	session, err := h.mm.RequestMatch(r.Context(), req.UserID, req.ExamID)
	if err == ErrAlreadyInSession {
		utils.JSON(w, http.StatusConflict, models.Resp{OK: false, Info: "already in an active session"})
		return
	}
	if err != nil {
		log.Printf("Join failed for user %s: %v", req.UserID, err)
		utils.JSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "failed to join queue"})
		return
	}

	if session == nil {
		utils.JSON(w, http.StatusOK, models.Resp{OK: true, Info: "queued"})
		return
	}

	check, err := h.mm.CheckFor(req.UserID)
	if err != nil {
		utils.JSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "failed to load session"})
		return
	}
	utils.JSON(w, http.StatusOK, models.Resp{OK: true, Info: check})
}

// CancelHandler removes the caller's queue entry.
func (h *Handlers) CancelHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	removed, err := h.mm.Cancel(r.Context(), req.UserID)
	if err != nil {
		utils.JSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "failed to cancel"})
		return
	}
	if !removed {
		utils.JSON(w, http.StatusNotFound, models.Resp{OK: false, Info: "not in queue"})
		return
	}
	utils.JSON(w, http.StatusOK, models.Resp{OK: true, Info: "cancelled"})
}

// CheckHandler answers "am I matched yet" polls.
func (h *Handlers) CheckHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		utils.JSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "userId required"})
		return
	}

	check, err := h.mm.CheckFor(userID)
	if err != nil {
		utils.JSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "failed to check"})
		return
	}
	utils.JSON(w, http.StatusOK, check)
}

// WsHandler bridges the caller's match channel onto a WebSocket so a waiting
// client hears about its session without polling.
func (h *Handlers) WsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	// Not the request context: the router's timeout must not cut off a
	// client that is still waiting for a partner.
	ctx := context.Background()
	sub := h.mm.SubscribeMatches(ctx, userID)
	defer sub.Close()
	defer conn.Close()
	log.Printf("Match WebSocket connected for user: %s", userID)

	// Reader goroutine only observes the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-done:
			log.Printf("User %s disconnected from match socket", userID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				log.Printf("Error sending to user %s: %v", userID, err)
				return
			}
		}
	}
}

// internal/handlers/debate.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/room"
	"github.com/podiumhq/podium/internal/store"
)

// CreateDebateHandler builds a new debate and its live room. The
// creator still joins over the websocket like everyone else.
func CreateDebateHandler(rs *room.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if _, err := EnsureSession(w, r); err != nil {
			http.Error(w, "session error", http.StatusUnauthorized)
			return
		}

		var req struct {
			Topic      string `json:"topic"`
			InviteCode string `json:"invite_code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Topic == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		rm, err := rs.CreateDebate(r.Context(), req.Topic, req.InviteCode)
		if err != nil {
			http.Error(w, "failed to create debate", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		debate := rm.Snapshot()
		json.NewEncoder(w).Encode(&debate)
	}
}

// ListDebatesHandler returns the debates with live rooms in this
// process.
func ListDebatesHandler(rs *room.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"debates": rs.List(),
		})
	}
}

// ResultHandler serves the persisted Result for a finalized debate.
func ResultHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		debateID, err := uuid.Parse(r.URL.Query().Get("debate_id"))
		if err != nil {
			http.Error(w, "invalid debate_id", http.StatusBadRequest)
			return
		}
		result, err := st.LoadResult(r.Context(), debateID)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "no result for debate", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "failed to load result", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// HealthHandler reports liveness.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}

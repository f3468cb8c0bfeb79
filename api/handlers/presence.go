package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Rohith-Das/Med360-sub001/config"
	"github.com/Rohith-Das/Med360-sub001/realtime"
)

// Presence exported for testing purposes
type Presence struct {
	Hub realtime.Presence
}

// PresenceByUserIDHandler reports whether a user has a live connection
func (p Presence) PresenceByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	b, err := json.Marshal(map[string]interface{}{
		"userId":   userID,
		"isOnline": p.Hub.IsOnline(userID),
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

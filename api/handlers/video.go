package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Rohith-Das/Med360-sub001/api"
	"github.com/Rohith-Das/Med360-sub001/config"
	"github.com/Rohith-Das/Med360-sub001/models"
	"github.com/Rohith-Das/Med360-sub001/video"
)

// Video exported for testing purposes
type Video struct {
	Video *video.Service
}

// InitiateSessionHandler creates a waiting session and rings the callee
func (v Video) InitiateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		AppointmentID string `json:"appointmentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.AppointmentID == "" {
		config.ErrorStatus("appointmentId is required", http.StatusBadRequest, w, errors.New("missing appointment id"))
		return
	}

	claims, _ := api.ClaimsFromContext(r.Context())
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := v.Video.Initiate(ctx, requestBody.AppointmentID, claims.UserID, claims.Role)
	if err != nil {
		videoErrorStatus("failed to initiate video session", w, err)
		return
	}

	zap.S().Infow("video session initiated", "roomId", session.RoomID, "appointmentId", requestBody.AppointmentID)

	b, err := json.Marshal(session)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// JoinSessionHandler moves a waiting session to active for a participant
func (v Video) JoinSessionHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	claims, _ := api.ClaimsFromContext(r.Context())
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := v.Video.Join(ctx, roomID, claims.UserID)
	if err != nil {
		videoErrorStatus("failed to join video session", w, err)
		return
	}

	b, err := json.Marshal(session)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// EndSessionHandler ends a session, idempotent on already ended
func (v Video) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	claims, _ := api.ClaimsFromContext(r.Context())
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := v.Video.End(ctx, roomID, claims.UserID)
	if err != nil {
		videoErrorStatus("failed to end video session", w, err)
		return
	}

	b, err := json.Marshal(session)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// SessionByRoomIDHandler returns a session by room ID
func (v Video) SessionByRoomIDHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	zap.S().Debugf("room_id: %v", roomID)

	claims, _ := api.ClaimsFromContext(r.Context())
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := v.Video.Get(ctx, roomID)
	if err != nil {
		videoErrorStatus("failed to get video session", w, err)
		return
	}
	if !session.HasParticipant(claims.UserID) && claims.Role != models.RoleAdmin {
		config.ErrorStatus("cannot view sessions of other users", http.StatusForbidden, w, video.ErrUnauthorized)
		return
	}

	b, err := json.Marshal(session)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// videoErrorStatus maps session lifecycle errors onto http statuses
func videoErrorStatus(message string, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, video.ErrSessionNotFound):
		config.ErrorStatus(message, http.StatusNotFound, w, err)
	case errors.Is(err, video.ErrUnauthorized):
		config.ErrorStatus(message, http.StatusForbidden, w, err)
	case errors.Is(err, video.ErrInvalidAppointmentState):
		config.ErrorStatus(message, http.StatusConflict, w, err)
	case errors.Is(err, video.ErrInvalidTransition):
		config.ErrorStatus(message, http.StatusConflict, w, err)
	default:
		config.ErrorStatus(message, http.StatusInternalServerError, w, err)
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Rohith-Das/Med360-sub001/api"
	"github.com/Rohith-Das/Med360-sub001/chat"
	"github.com/Rohith-Das/Med360-sub001/config"
	"github.com/Rohith-Das/Med360-sub001/models"
)

// Chat exported for testing purposes
type Chat struct {
	Chat *chat.Service
}

// CreateRoomHandler finds or creates the room for a doctor/patient pair
func (c Chat) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		DoctorID  string `json:"doctorId"`
		PatientID string `json:"patientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.DoctorID == "" || requestBody.PatientID == "" {
		config.ErrorStatus("doctorId and patientId are required", http.StatusBadRequest, w, errors.New("missing participant id"))
		return
	}

	claims, _ := api.ClaimsFromContext(r.Context())
	if claims.Role != models.RoleAdmin && claims.UserID != requestBody.DoctorID && claims.UserID != requestBody.PatientID {
		config.ErrorStatus("cannot create a room for other users", http.StatusForbidden, w, chat.ErrUnauthorized)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	room, created, err := c.Chat.FindOrCreateRoom(ctx, requestBody.DoctorID, requestBody.PatientID)
	if err != nil {
		chatErrorStatus("failed to create chat room", w, err)
		return
	}

	b, err := json.Marshal(room)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	if created {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	w.Write(b)
}

// RoomsByUserIDHandler returns all rooms for a user with unread counts
func (c Chat) RoomsByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	role := r.URL.Query().Get("role")

	zap.S().Debugf("user_id: %v", userID)

	claims, _ := api.ClaimsFromContext(r.Context())
	if role == "" {
		role = claims.Role
	}
	if claims.Role != models.RoleAdmin && claims.UserID != userID {
		config.ErrorStatus("cannot list rooms for other users", http.StatusForbidden, w, chat.ErrUnauthorized)
		return
	}

	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		Limit = 50
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit, err))
	}
	Page := getPage(0, r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.Chat.ListRooms(ctx, userID, role, Limit, Page)
	if err != nil {
		config.ErrorStatus("failed to get chat rooms", http.StatusInternalServerError, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.ChatRoomSummary{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RoomMessagesHandler returns a room's message history oldest first
func (c Chat) RoomMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	claims, _ := api.ClaimsFromContext(r.Context())
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if claims.Role != models.RoleAdmin {
		if _, err := c.Chat.Room(ctx, roomID, claims.UserID); err != nil {
			chatErrorStatus("failed to get chat room", w, err)
			return
		}
	}

	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		Limit = 50
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit, err))
	}
	Page := getPage(0, r)

	dbResp, err := c.Chat.History(ctx, roomID, Limit, Page)
	if err != nil {
		chatErrorStatus("failed to get messages", w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.ChatMessage{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MarkRoomReadHandler marks every unread counterpart message as seen
func (c Chat) MarkRoomReadHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	var requestBody struct {
		ReaderID   string `json:"readerId"`
		ReaderRole string `json:"readerRole"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	claims, _ := api.ClaimsFromContext(r.Context())
	if requestBody.ReaderID == "" {
		requestBody.ReaderID = claims.UserID
		requestBody.ReaderRole = claims.Role
	}
	if claims.Role != models.RoleAdmin && claims.UserID != requestBody.ReaderID {
		config.ErrorStatus("cannot mark reads for other users", http.StatusForbidden, w, chat.ErrUnauthorized)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	modified, err := c.Chat.MarkRead(ctx, roomID, requestBody.ReaderID, requestBody.ReaderRole)
	if err != nil {
		chatErrorStatus("failed to mark messages read", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":       "Messages marked as read",
		"modifiedCount": modified,
	})
}

// chatErrorStatus maps messaging pipeline errors onto http statuses
func chatErrorStatus(message string, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound):
		config.ErrorStatus(message, http.StatusNotFound, w, err)
	case errors.Is(err, chat.ErrChatExpired):
		config.ErrorStatus(message, http.StatusGone, w, err)
	case errors.Is(err, chat.ErrUnauthorized):
		config.ErrorStatus(message, http.StatusForbidden, w, err)
	case errors.Is(err, chat.ErrNotEligible):
		config.ErrorStatus(message, http.StatusForbidden, w, err)
	default:
		config.ErrorStatus(message, http.StatusInternalServerError, w, err)
	}
}

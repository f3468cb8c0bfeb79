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
	"github.com/Rohith-Das/Med360-sub001/config"
	"github.com/Rohith-Das/Med360-sub001/models"
	"github.com/Rohith-Das/Med360-sub001/notifications"
)

// Notification exported for testing purposes
type Notification struct {
	Dispatcher *notifications.Dispatcher
}

// DispatchHandler stores a notification and pushes it to the recipient
func (n Notification) DispatchHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody models.Notification
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.RecipientID == "" || requestBody.Type == "" {
		config.ErrorStatus("recipientId and type are required", http.StatusBadRequest, w, errors.New("missing required fields"))
		return
	}

	claims, _ := api.ClaimsFromContext(r.Context())
	if requestBody.SenderID == "" {
		requestBody.SenderID = claims.UserID
		requestBody.SenderType = claims.Role
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	delivered, err := n.Dispatcher.Dispatch(ctx, requestBody)
	if err != nil {
		config.ErrorStatus("failed to dispatch notification", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "Notification dispatched",
		"delivered": delivered,
	})
}

// NotificationsByUserIDHandler returns a user's notifications newest first
func (n Notification) NotificationsByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: %v", userID)

	claims, _ := api.ClaimsFromContext(r.Context())
	if claims.Role != models.RoleAdmin && claims.UserID != userID {
		config.ErrorStatus("cannot list notifications for other users", http.StatusForbidden, w, notifications.ErrNotOwner)
		return
	}

	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		Limit = 50
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit, err))
	}
	Page := getPage(0, r)
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := n.Dispatcher.List(ctx, userID, unreadOnly, int64(Limit), int64(Page))
	if err != nil {
		config.ErrorStatus("failed to get notifications", http.StatusInternalServerError, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Notification{}
	}

	count, err := n.Dispatcher.UnreadCount(ctx, userID)
	if err != nil {
		config.ErrorStatus("failed to get unread count", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(map[string]interface{}{
		"notifications": dbResp,
		"unreadCount":   count,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MarkNotificationReadHandler marks a single notification as read
func (n Notification) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	notificationID := mux.Vars(r)["notification_id"]

	claims, _ := api.ClaimsFromContext(r.Context())
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := n.Dispatcher.MarkRead(ctx, notificationID, claims.UserID); err != nil {
		switch {
		case errors.Is(err, notifications.ErrNotificationNotFound):
			config.ErrorStatus("failed to get notification by ID", http.StatusNotFound, w, err)
		case errors.Is(err, notifications.ErrNotOwner):
			config.ErrorStatus("cannot mark notifications of other users", http.StatusForbidden, w, err)
		default:
			config.ErrorStatus("failed to mark notification read", http.StatusInternalServerError, w, err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Notification marked as read",
	})
}

// MarkAllNotificationsReadHandler marks all of a user's notifications read
func (n Notification) MarkAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	claims, _ := api.ClaimsFromContext(r.Context())
	if claims.Role != models.RoleAdmin && claims.UserID != userID {
		config.ErrorStatus("cannot mark notifications of other users", http.StatusForbidden, w, notifications.ErrNotOwner)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	modified, err := n.Dispatcher.MarkAllRead(ctx, userID)
	if err != nil {
		config.ErrorStatus("failed to mark notifications read", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":       "All notifications marked as read",
		"modifiedCount": modified,
	})
}

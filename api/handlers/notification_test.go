package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Rohith-Das/Med360-sub001/databases/mocks"
	"github.com/Rohith-Das/Med360-sub001/models"
	"github.com/Rohith-Das/Med360-sub001/notifications"
)

func newTestDispatcher(store *mocks.NotificationDatabase) *notifications.Dispatcher {
	return &notifications.Dispatcher{
		Store:     store,
		Broadcast: stubBroadcaster{},
		Presence:  &stubPresence{online: map[string]bool{}},
	}
}

func TestDispatchHandler(t *testing.T) {
	store := &mocks.NotificationDatabase{}
	insertRes := &mocks.InsertOneResultHelper{}
	insertRes.On("Decode").Return(primitive.NewObjectID())
	store.On("InsertOne", mock.Anything, mock.Anything).Return(insertRes, nil)

	h := Notification{Dispatcher: newTestDispatcher(store)}
	body := bytes.NewBufferString(`{"recipientId": "pat1", "recipientType": "patient", "type": "new_message", "title": "New message"}`)
	req := requestWithClaims(httptest.NewRequest(http.MethodPost, "/api/v1/notifications", body), "doc1", models.RoleDoctor)
	rr := httptest.NewRecorder()
	h.DispatchHandler(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"delivered":false`)
}

func TestDispatchHandlerMissingFields(t *testing.T) {
	h := Notification{Dispatcher: newTestDispatcher(&mocks.NotificationDatabase{})}
	body := bytes.NewBufferString(`{"title": "no recipient"}`)
	req := requestWithClaims(httptest.NewRequest(http.MethodPost, "/api/v1/notifications", body), "doc1", models.RoleDoctor)
	rr := httptest.NewRecorder()
	h.DispatchHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNotificationsByUserIDHandler(t *testing.T) {
	store := &mocks.NotificationDatabase{}
	store.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]models.Notification{
		{ID: primitive.NewObjectID(), RecipientID: "pat1", Title: "New message"},
	}, nil)
	store.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(3), nil)

	h := Notification{Dispatcher: newTestDispatcher(store)}
	req := requestWithClaims(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/pat1", nil), "pat1", models.RolePatient)
	rr := serveVars(h.NotificationsByUserIDHandler, req, map[string]string{"user_id": "pat1"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"unreadCount":3`)
	assert.Contains(t, rr.Body.String(), "New message")
}

func TestNotificationsByUserIDHandlerOtherUser(t *testing.T) {
	h := Notification{Dispatcher: newTestDispatcher(&mocks.NotificationDatabase{})}
	req := requestWithClaims(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/pat1", nil), "doc1", models.RoleDoctor)
	rr := serveVars(h.NotificationsByUserIDHandler, req, map[string]string{"user_id": "pat1"})

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestMarkNotificationReadHandler(t *testing.T) {
	id := primitive.NewObjectID()
	store := &mocks.NotificationDatabase{}
	store.On("FindOne", mock.Anything, mock.Anything).Return(&models.Notification{ID: id, RecipientID: "pat1"}, nil)
	store.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	h := Notification{Dispatcher: newTestDispatcher(store)}
	req := requestWithClaims(httptest.NewRequest(http.MethodPut, "/api/v1/notifications/"+id.Hex()+"/read", nil), "pat1", models.RolePatient)
	rr := serveVars(h.MarkNotificationReadHandler, req, map[string]string{"notification_id": id.Hex()})

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMarkNotificationReadHandlerNotOwner(t *testing.T) {
	id := primitive.NewObjectID()
	store := &mocks.NotificationDatabase{}
	store.On("FindOne", mock.Anything, mock.Anything).Return(&models.Notification{ID: id, RecipientID: "pat1"}, nil)

	h := Notification{Dispatcher: newTestDispatcher(store)}
	req := requestWithClaims(httptest.NewRequest(http.MethodPut, "/api/v1/notifications/"+id.Hex()+"/read", nil), "doc1", models.RoleDoctor)
	rr := serveVars(h.MarkNotificationReadHandler, req, map[string]string{"notification_id": id.Hex()})

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestMarkNotificationReadHandlerUnknownID(t *testing.T) {
	store := &mocks.NotificationDatabase{}
	store.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	h := Notification{Dispatcher: newTestDispatcher(store)}
	id := primitive.NewObjectID().Hex()
	req := requestWithClaims(httptest.NewRequest(http.MethodPut, "/api/v1/notifications/"+id+"/read", nil), "pat1", models.RolePatient)
	rr := serveVars(h.MarkNotificationReadHandler, req, map[string]string{"notification_id": id})

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMarkAllNotificationsReadHandler(t *testing.T) {
	store := &mocks.NotificationDatabase{}
	store.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).Return(int64(4), nil)

	h := Notification{Dispatcher: newTestDispatcher(store)}
	req := requestWithClaims(httptest.NewRequest(http.MethodPut, "/api/v1/notifications/user/pat1/read-all", nil), "pat1", models.RolePatient)
	rr := serveVars(h.MarkAllNotificationsReadHandler, req, map[string]string{"user_id": "pat1"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"modifiedCount":4`)
}

package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Rohith-Das/Med360-sub001/cache"
	"github.com/Rohith-Das/Med360-sub001/databases/mocks"
	"github.com/Rohith-Das/Med360-sub001/models"
	"github.com/Rohith-Das/Med360-sub001/video"
)

func newTestVideoService(sessions *mocks.VideoSessionDatabase, appointments *mocks.AppointmentDatabase) *video.Service {
	return &video.Service{
		Sessions:     sessions,
		Appointments: appointments,
		Cache:        cache.NewBestEffort(nil),
		Broadcast:    stubBroadcaster{},
		Presence:     &stubPresence{online: map[string]bool{}},
	}
}

func testSession(status string) *models.VideoCallSession {
	return &models.VideoCallSession{
		ID:            primitive.NewObjectID(),
		RoomID:        "room-uuid",
		AppointmentID: primitive.NewObjectID().Hex(),
		DoctorID:      "doc1",
		PatientID:     "pat1",
		Status:        status,
		InitiatedBy:   models.RoleDoctor,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
}

func TestInitiateSessionHandler(t *testing.T) {
	apptID := primitive.NewObjectID()
	appointments := &mocks.AppointmentDatabase{}
	appointments.On("FindOne", mock.Anything, mock.Anything).Return(&models.Appointment{ID: apptID, DoctorID: "doc1", PatientID: "pat1", Status: models.AppointmentStatusConfirmed}, nil)
	sessions := &mocks.VideoSessionDatabase{}
	insertRes := &mocks.InsertOneResultHelper{}
	insertRes.On("Decode").Return(primitive.NewObjectID())
	sessions.On("InsertOne", mock.Anything, mock.Anything).Return(insertRes, nil)

	h := Video{Video: newTestVideoService(sessions, appointments)}
	body := bytes.NewBufferString(`{"appointmentId": "` + apptID.Hex() + `"}`)
	req := requestWithClaims(httptest.NewRequest(http.MethodPost, "/api/v1/video/sessions", body), "doc1", models.RoleDoctor)
	rr := httptest.NewRecorder()
	h.InitiateSessionHandler(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"waiting"`)
}

func TestInitiateSessionHandlerUnconfirmedAppointment(t *testing.T) {
	apptID := primitive.NewObjectID()
	appointments := &mocks.AppointmentDatabase{}
	appointments.On("FindOne", mock.Anything, mock.Anything).Return(&models.Appointment{ID: apptID, DoctorID: "doc1", PatientID: "pat1", Status: models.AppointmentStatusCancelled}, nil)

	h := Video{Video: newTestVideoService(&mocks.VideoSessionDatabase{}, appointments)}
	body := bytes.NewBufferString(`{"appointmentId": "` + apptID.Hex() + `"}`)
	req := requestWithClaims(httptest.NewRequest(http.MethodPost, "/api/v1/video/sessions", body), "doc1", models.RoleDoctor)
	rr := httptest.NewRecorder()
	h.InitiateSessionHandler(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestInitiateSessionHandlerMissingBody(t *testing.T) {
	h := Video{Video: newTestVideoService(&mocks.VideoSessionDatabase{}, &mocks.AppointmentDatabase{})}
	req := requestWithClaims(httptest.NewRequest(http.MethodPost, "/api/v1/video/sessions", bytes.NewBufferString(`{}`)), "doc1", models.RoleDoctor)
	rr := httptest.NewRecorder()
	h.InitiateSessionHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestJoinSessionHandler(t *testing.T) {
	waiting := testSession(models.SessionStatusWaiting)
	started := time.Now().UTC()
	active := *waiting
	active.Status = models.SessionStatusActive
	active.StartedAt = &started

	sessions := &mocks.VideoSessionDatabase{}
	sessions.On("FindOne", mock.Anything, mock.Anything).Return(waiting, nil).Once()
	sessions.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
	sessions.On("FindOne", mock.Anything, mock.Anything).Return(&active, nil).Once()

	h := Video{Video: newTestVideoService(sessions, &mocks.AppointmentDatabase{})}
	req := requestWithClaims(httptest.NewRequest(http.MethodPost, "/api/v1/video/sessions/room-uuid/join", nil), "pat1", models.RolePatient)
	rr := serveVars(h.JoinSessionHandler, req, map[string]string{"room_id": "room-uuid"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"active"`)
}

func TestJoinSessionHandlerEndedSession(t *testing.T) {
	sessions := &mocks.VideoSessionDatabase{}
	sessions.On("FindOne", mock.Anything, mock.Anything).Return(testSession(models.SessionStatusEnded), nil)

	h := Video{Video: newTestVideoService(sessions, &mocks.AppointmentDatabase{})}
	req := requestWithClaims(httptest.NewRequest(http.MethodPost, "/api/v1/video/sessions/room-uuid/join", nil), "pat1", models.RolePatient)
	rr := serveVars(h.JoinSessionHandler, req, map[string]string{"room_id": "room-uuid"})

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestJoinSessionHandlerOutsider(t *testing.T) {
	sessions := &mocks.VideoSessionDatabase{}
	sessions.On("FindOne", mock.Anything, mock.Anything).Return(testSession(models.SessionStatusWaiting), nil)

	h := Video{Video: newTestVideoService(sessions, &mocks.AppointmentDatabase{})}
	req := requestWithClaims(httptest.NewRequest(http.MethodPost, "/api/v1/video/sessions/room-uuid/join", nil), "stranger", models.RolePatient)
	rr := serveVars(h.JoinSessionHandler, req, map[string]string{"room_id": "room-uuid"})

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestEndSessionHandler(t *testing.T) {
	started := time.Now().UTC().Add(-time.Minute)
	active := testSession(models.SessionStatusActive)
	active.StartedAt = &started

	sessions := &mocks.VideoSessionDatabase{}
	sessions.On("FindOne", mock.Anything, mock.Anything).Return(active, nil)
	sessions.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	h := Video{Video: newTestVideoService(sessions, &mocks.AppointmentDatabase{})}
	req := requestWithClaims(httptest.NewRequest(http.MethodPost, "/api/v1/video/sessions/room-uuid/end", nil), "doc1", models.RoleDoctor)
	rr := serveVars(h.EndSessionHandler, req, map[string]string{"room_id": "room-uuid"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ended"`)
}

func TestEndSessionHandlerUnknownRoom(t *testing.T) {
	sessions := &mocks.VideoSessionDatabase{}
	sessions.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	h := Video{Video: newTestVideoService(sessions, &mocks.AppointmentDatabase{})}
	req := requestWithClaims(httptest.NewRequest(http.MethodPost, "/api/v1/video/sessions/nope/end", nil), "doc1", models.RoleDoctor)
	rr := serveVars(h.EndSessionHandler, req, map[string]string{"room_id": "nope"})

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessionByRoomIDHandler(t *testing.T) {
	sessions := &mocks.VideoSessionDatabase{}
	sessions.On("FindOne", mock.Anything, mock.Anything).Return(testSession(models.SessionStatusActive), nil)

	h := Video{Video: newTestVideoService(sessions, &mocks.AppointmentDatabase{})}
	req := requestWithClaims(httptest.NewRequest(http.MethodGet, "/api/v1/video/sessions/room-uuid", nil), "doc1", models.RoleDoctor)
	rr := serveVars(h.SessionByRoomIDHandler, req, map[string]string{"room_id": "room-uuid"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"roomId":"room-uuid"`)
}

func TestSessionByRoomIDHandlerOutsider(t *testing.T) {
	sessions := &mocks.VideoSessionDatabase{}
	sessions.On("FindOne", mock.Anything, mock.Anything).Return(testSession(models.SessionStatusActive), nil)

	h := Video{Video: newTestVideoService(sessions, &mocks.AppointmentDatabase{})}
	req := requestWithClaims(httptest.NewRequest(http.MethodGet, "/api/v1/video/sessions/room-uuid", nil), "stranger", models.RolePatient)
	rr := serveVars(h.SessionByRoomIDHandler, req, map[string]string{"room_id": "room-uuid"})

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestSessionByRoomIDHandlerAdmin(t *testing.T) {
	sessions := &mocks.VideoSessionDatabase{}
	sessions.On("FindOne", mock.Anything, mock.Anything).Return(testSession(models.SessionStatusActive), nil)

	h := Video{Video: newTestVideoService(sessions, &mocks.AppointmentDatabase{})}
	req := requestWithClaims(httptest.NewRequest(http.MethodGet, "/api/v1/video/sessions/room-uuid", nil), "admin1", models.RoleAdmin)
	rr := serveVars(h.SessionByRoomIDHandler, req, map[string]string{"room_id": "room-uuid"})

	assert.Equal(t, http.StatusOK, rr.Code)
}

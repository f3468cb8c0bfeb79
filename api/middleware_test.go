package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/Rohith-Das/Med360-sub001/config"
	"github.com/Rohith-Das/Med360-sub001/models"
)

func testAuth() Auth {
	return Auth{Config: &config.Config{
		DoctorSecret:  "doctor-secret",
		PatientSecret: "patient-secret",
		AdminSecret:   "admin-secret",
	}}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	assert.NoError(t, err)
	return raw
}

func TestAuthenticateDoctorToken(t *testing.T) {
	a := testAuth()
	raw := signToken(t, "doctor-secret", jwt.MapClaims{
		"userId": "doc1",
		"role":   models.RoleDoctor,
		"name":   "Dr Smith",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	claims, err := a.Authenticate(raw)

	assert.NoError(t, err)
	assert.Equal(t, "doc1", claims.UserID)
	assert.Equal(t, models.RoleDoctor, claims.Role)
	assert.Equal(t, "Dr Smith", claims.Name)
}

func TestAuthenticateRejectsCrossAudienceSignature(t *testing.T) {
	a := testAuth()
	// role claim says doctor, signed with the patient secret
	raw := signToken(t, "patient-secret", jwt.MapClaims{
		"userId": "doc1",
		"role":   models.RoleDoctor,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	_, err := a.Authenticate(raw)
	assert.Error(t, err)
}

func TestAuthenticateLegacyTokenWithoutRoleClaim(t *testing.T) {
	a := testAuth()
	raw := signToken(t, "doctor-secret", jwt.MapClaims{
		"userId": "doc1",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	claims, err := a.Authenticate(raw)

	assert.NoError(t, err)
	assert.Equal(t, "doc1", claims.UserID)
	assert.Equal(t, models.RoleDoctor, claims.Role)
}

func TestAuthenticateSubFallback(t *testing.T) {
	a := testAuth()
	raw := signToken(t, "patient-secret", jwt.MapClaims{
		"sub":  "pat1",
		"role": models.RolePatient,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	claims, err := a.Authenticate(raw)

	assert.NoError(t, err)
	assert.Equal(t, "pat1", claims.UserID)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	a := testAuth()
	raw := signToken(t, "patient-secret", jwt.MapClaims{
		"userId": "pat1",
		"role":   models.RolePatient,
		"exp":    time.Now().Add(-time.Hour).Unix(),
	})

	_, err := a.Authenticate(raw)
	assert.Error(t, err)
}

func TestAuthenticateMissingUserID(t *testing.T) {
	a := testAuth()
	raw := signToken(t, "admin-secret", jwt.MapClaims{
		"role": models.RoleAdmin,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	_, err := a.Authenticate(raw)
	assert.Error(t, err)
}

func TestAuthenticateGarbage(t *testing.T) {
	a := testAuth()

	_, err := a.Authenticate("")
	assert.Error(t, err)

	_, err = a.Authenticate("asdfasdf")
	assert.Error(t, err)
}

func TestMiddlewareStampsClaims(t *testing.T) {
	a := testAuth()
	raw := signToken(t, "patient-secret", jwt.MapClaims{
		"userId": "pat1",
		"role":   models.RolePatient,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	var got Claims
	var found bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = ClaimsFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rr := httptest.NewRecorder()
	a.Middleware(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, found)
	assert.Equal(t, "pat1", got.UserID)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	a := testAuth()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/rooms", nil)
	rr := httptest.NewRecorder()
	a.Middleware(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error": "unauthorized"}`, rr.Body.String())
}

func TestTokenFromRequestQueryFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
	assert.Equal(t, "query-token", tokenFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", tokenFromRequest(req))
}

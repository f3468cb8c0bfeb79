package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSignature(t *testing.T) {
	h := CloudinaryHandler{APISecret: "test-secret", UploadPreset: "chat-uploads"}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate-signature", nil)
	rr := httptest.NewRecorder()
	h.GenerateSignature(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["timestamp"])

	mac := hmac.New(sha1.New, []byte("test-secret"))
	mac.Write([]byte("timestamp=" + resp["timestamp"] + "&upload_preset=chat-uploads"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), resp["signature"])
}

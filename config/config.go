package config

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL              string
	DatabaseName     string
	RedisURL         string
	BaseURL          string
	Port             string
	Env              string
	DoctorSecret     string
	PatientSecret    string
	AdminSecret      string
	CloudinarySecret string
	CloudinaryPreset string
	ChatCacheTTL     time.Duration
}

// New sets up all config related services
func New() *Config {

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:              os.Getenv("DB_URI"),
		DatabaseName:     os.Getenv("DB_NAME"),
		RedisURL:         os.Getenv("REDIS_URL"),
		BaseURL:          os.Getenv("BASE_URL"),
		Port:             os.Getenv("PORT"),
		Env:              env,
		DoctorSecret:     os.Getenv("DOCTOR_ACCESS_SECRET"),
		PatientSecret:    os.Getenv("PATIENT_ACCESS_SECRET"),
		AdminSecret:      os.Getenv("ADMIN_ACCESS_SECRET"),
		CloudinarySecret: os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryPreset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
		ChatCacheTTL:     30 * time.Second,
	}

}

// SecretFor returns the JWT signing secret for a token audience.
func (c *Config) SecretFor(role string) (string, bool) {
	switch role {
	case "doctor":
		return c.DoctorSecret, c.DoctorSecret != ""
	case "patient":
		return c.PatientSecret, c.PatientSecret != ""
	case "admin":
		return c.AdminSecret, c.AdminSecret != ""
	}
	return "", false
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
	return
}

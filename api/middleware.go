package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Rohith-Das/Med360-sub001/config"
	"github.com/Rohith-Das/Med360-sub001/models"
)

// Claims carries the authenticated identity through the request context
// and the websocket handshake.
type Claims struct {
	UserID string
	Role   string
	Name   string
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stamped by the auth middleware.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(Claims)
	return c, ok
}

// WithClaims stamps claims onto a context.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// Auth verifies bearer tokens signed with per-audience secrets.
type Auth struct {
	Config *config.Config
}

// Middleware adds bearer token authentication around accessing the routes
func (a Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		claims, err := a.Authenticate(tokenFromRequest(r))
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		zap.S().Debugf("User %s Authenticated\n", claims.UserID)
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Authenticate validates a raw token and returns its claims. Tokens carry
// an explicit role claim naming the audience whose secret signed them.
// Tokens minted before the role claim existed are tried against each
// audience secret, patient first since patients are the bulk of traffic.
func (a Auth) Authenticate(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, errors.New("missing bearer token")
	}
	unverified, err := roleFromUnverified(raw)
	if err == nil {
		secret, ok := a.Config.SecretFor(unverified)
		if !ok {
			return Claims{}, fmt.Errorf("no secret configured for role %q", unverified)
		}
		return a.verify(raw, unverified, secret)
	}
	for _, role := range []string{models.RolePatient, models.RoleDoctor, models.RoleAdmin} {
		secret, ok := a.Config.SecretFor(role)
		if !ok {
			continue
		}
		if claims, err := a.verify(raw, role, secret); err == nil {
			return claims, nil
		}
	}
	return Claims{}, errors.New("token did not verify against any audience")
}

func (a Auth) verify(raw, role, secret string) (Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Claims{}, err
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, errors.New("invalid token claims")
	}
	userID, _ := mapClaims["userId"].(string)
	if userID == "" {
		// collaborator services historically minted the id under "sub"
		userID, _ = mapClaims["sub"].(string)
	}
	if userID == "" {
		return Claims{}, errors.New("token missing user id")
	}
	name, _ := mapClaims["name"].(string)
	return Claims{UserID: userID, Role: role, Name: name}, nil
}

// roleFromUnverified reads the role claim without verifying the
// signature, just to pick which secret to verify with.
func roleFromUnverified(raw string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", err
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unreadable claims")
	}
	role, _ := mapClaims["role"].(string)
	switch role {
	case models.RoleDoctor, models.RolePatient, models.RoleAdmin:
		return role, nil
	}
	return "", errors.New("no role claim")
}

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

// tokenFromRequest pulls the bearer token from the Authorization header,
// falling back to the token query param used by websocket clients.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return after
		}
	}
	return r.URL.Query().Get("token")
}

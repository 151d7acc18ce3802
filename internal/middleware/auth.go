package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"soccer-game/internal/auth"
)

type contextKey string

const (
	ParticipantContextKey contextKey = "participant"
)

// Participant is the authenticated caller.
type Participant struct {
	ID          string
	DisplayName string
}

type AuthMiddleware struct {
	jwtService *auth.JWTService
}

func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// RequireAuth validates the access token and puts the participant into the
// request context. Returns 401 if the token is missing or invalid.
//
// Browsers cannot set headers on a WebSocket upgrade, so the token may also
// arrive as the "token" query parameter.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := extractToken(r)
		if !ok {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				http.Error(w, "Token has expired", http.StatusUnauthorized)
				return
			}
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		p := &Participant{ID: claims.UserID, DisplayName: claims.DisplayName}
		next.ServeHTTP(w, r.WithContext(WithParticipant(r.Context(), p)))
	})
}

func extractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// Check Bearer prefix
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// WithParticipant stores p in ctx.
func WithParticipant(ctx context.Context, p *Participant) context.Context {
	return context.WithValue(ctx, ParticipantContextKey, p)
}

// GetParticipant retrieves the authenticated participant from the request context
func GetParticipant(ctx context.Context) (*Participant, bool) {
	p, ok := ctx.Value(ParticipantContextKey).(*Participant)
	return p, ok && p != nil
}

// GetParticipantID is a shorthand for GetParticipant(ctx).ID.
func GetParticipantID(ctx context.Context) (string, bool) {
	p, ok := GetParticipant(ctx)
	if !ok {
		return "", false
	}
	return p.ID, true
}

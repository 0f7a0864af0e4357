package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	"github.com/careloop/doctorbooking/internal/infrastructure/observability"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

type contextKey string

const principalKey contextKey = "principal"

// PrincipalFromContext returns the authenticated principal attached by
// AuthMiddleware
func PrincipalFromContext(ctx context.Context) (entities.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(entities.Principal)
	return principal, ok
}

// ContextWithPrincipal attaches a principal to the context
func ContextWithPrincipal(ctx context.Context, principal entities.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// AuthMiddleware validates the bearer token and attaches the principal
// to the request context. The active session's last_used_at is stamped
// best-effort; a missing session does not fail the request because the
// access token is the authority until it expires.
func AuthMiddleware(jwtSecret string, sessions repositories.SessionRepository) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "missing bearer token")
				return
			}

			principal, err := parsePrincipal(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			if sessions != nil {
				if err := sessions.Touch(r.Context(), principal.ID, time.Now().UTC()); err != nil &&
					!apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
					observability.LoggerFromContext(r.Context()).Warn().Err(err).
						Str("user_id", principal.ID).
						Msg("Failed to touch session")
				}
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parsePrincipal(token string, secret []byte) (entities.Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return entities.Principal{}, apperrors.NewUnauthorizedError("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["token_use"] != "access" {
		return entities.Principal{}, apperrors.NewUnauthorizedError("invalid token")
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || (role != string(entities.RolePatient) && role != string(entities.RoleDoctor)) {
		return entities.Principal{}, apperrors.NewUnauthorizedError("invalid token")
	}

	return entities.Principal{ID: sub, Role: entities.Role(role)}, nil
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

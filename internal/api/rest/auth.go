package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims issued to API callers
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// authMiddleware validates bearer tokens on protected endpoints
func authMiddleware(secret string, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeUnauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := validateToken(secret, parts[1])
			if err != nil {
				logger.DebugContext(r.Context(), "token validation failed",
					slog.String("path", r.URL.Path),
					slog.Any("error", err))
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyUserID, claims.UserID)
			if meta := RequestMetaFromContext(ctx); meta != nil {
				meta.UserID = claims.UserID
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateToken parses and verifies a signed token
func validateToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// userIDFromContext returns the authenticated caller, if any
func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(contextKeyUserID).(string)
	return userID
}

// isPublicEndpoint checks if the endpoint doesn't require authentication.
// The live feed authenticates inside the upgrade handler; browsers can't
// attach an Authorization header to a WebSocket request.
func isPublicEndpoint(path string) bool {
	publicEndpoints := []string{
		"/health",
		"/healthz",
		"/ready",
		"/metrics",
		"/api/v1/threats/live",
	}

	for _, endpoint := range publicEndpoints {
		if path == endpoint {
			return true
		}
	}

	return false
}

// writeUnauthorized writes a 401 unauthorized response
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":{"code":"UNAUTHORIZED","message":"%s"}}`, message)
}

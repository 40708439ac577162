package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	authproviders "github.com/jdavenport/lockstep/pkg/auth/providers"
	"github.com/jdavenport/lockstep/pkg/log"
	"github.com/jdavenport/lockstep/pkg/repositories"
)

type ContextKey int

const (
	// PlayerContextKey is the key used to store the player in the request context
	PlayerContextKey ContextKey = iota
)

func NewAuthMiddleware(authProvider authproviders.AuthProvider, repository repositories.Repository) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearerToken, err := parseBearerToken(r)
			if err != nil {
				log.Debug("failed to parse bearer token: %v", err)
				http.Error(w, "failed to parse bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := authProvider.VerifyToken(r.Context(), bearerToken)
			if err != nil {
				log.Debug("failed to verify token: %v", err)
				http.Error(w, "failed to verify token", http.StatusUnauthorized)
				return
			}

			player, err := repository.GetPlayer(r.Context(), claims.PlayerID)
			if err != nil {
				if repositories.IsNotFound(err) {
					http.Error(w, "player not found", http.StatusUnauthorized)
					return
				}
				log.Error("failed to get player: %v", err)
				http.Error(w, "failed to get player", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), PlayerContextKey, player)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseBearerToken parses the bearer token from the Authorization header
func parseBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	return parts[1], nil
}

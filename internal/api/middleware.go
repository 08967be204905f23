/**
 * @description
 * This file contains custom middleware for the HTTP router. Authentication
 * validates the bearer tokens issued by the cooperative's identity service
 * (HS256, subject = member UUID, `role` claim) and places the caller's
 * identity in the request context. Role guards keep the verifier-only
 * endpoints at the API edge, so the core service only ever receives
 * pre-validated identities.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: Token parsing and validation.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	memberIDKey contextKey = "memberID"
	roleKey     contextKey = "role"
)

// Roles issued by the identity service.
const (
	RoleAdmin    = "admin"
	RoleCobranza = "cobranza"
	RoleCliente  = "cliente"
)

// AuthMiddleware creates a middleware that validates HS256 bearer tokens.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				http.Error(w, "Token has no subject", http.StatusUnauthorized)
				return
			}
			memberID, err := uuid.Parse(subject)
			if err != nil {
				http.Error(w, "Invalid subject format", http.StatusUnauthorized)
				return
			}

			role, _ := claims["role"].(string)
			if role == "" {
				role = RoleCliente
			}

			ctx := context.WithValue(r.Context(), memberIDKey, memberID)
			ctx = context.WithValue(ctx, roleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose role is not in the allow-list. Admin is
// always allowed, mirroring the identity service's role model.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := map[string]bool{RoleAdmin: true}
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := CallerRole(r.Context())
			if !ok || !allowed[role] {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerMemberID returns the authenticated member id from the context.
func CallerMemberID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(memberIDKey).(uuid.UUID)
	return id, ok
}

// CallerRole returns the authenticated caller's role from the context.
func CallerRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleKey).(string)
	return role, ok
}

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleGovernment is required by tender creation, closing and stage
// approval. Work submission stays guarded by the workflow engine's
// winner-name check instead.
const RoleGovernment = "government"

type roleClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireRole guards next with an HS256 bearer token check. With an
// empty secret the check is disabled and requests pass through.
func RequireRole(secret, role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			WriteUnauthorized(w, "")
			return
		}

		claims := &roleClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			WriteUnauthorized(w, "Invalid or expired token")
			return
		}
		if claims.Role != role {
			WriteForbidden(w, fmt.Sprintf("Requires role %q", role))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IssueToken mints an HS256 token carrying role, valid for ttl. Used by
// operators to hand out government credentials.
func IssueToken(secret, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, roleClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}

// Package middleware provides HTTP middleware for protecting resource
// endpoints with session tokens minted after zero-knowledge authentication.
package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/i-dipanshu/secure-files-sub000/pkg/jwt"
)

// ContextKey is used for storing values in request context.
type ContextKey string

const (
	// JWTClaimsKey is the context key for verified JWT claims.
	JWTClaimsKey ContextKey = "jwt_claims"

	// RequestIDKey is the context key for the request ID.
	RequestIDKey ContextKey = "request_id"
)

// JWTMiddleware creates middleware that verifies Bearer session tokens
// against the issuer's JWKS and stores the claims in the request context.
func JWTMiddleware(issuerJWKS jwk.Set, expectedAudience string) func(http.Handler) http.Handler {
	verifier := jwt.NewJWTVerifier(issuerJWKS)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token := strings.TrimPrefix(authHeader, bearerPrefix)

			claims, err := verifier.Verify(token, expectedAudience)
			if err != nil {
				http.Error(w, fmt.Sprintf("JWT verification failed: %v", err), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), JWTClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetJWTClaims extracts verified JWT claims from the request context.
func GetJWTClaims(r *http.Request) (*jwt.Claims, bool) {
	claims, ok := r.Context().Value(JWTClaimsKey).(*jwt.Claims)
	return claims, ok
}

// RequireZKScheme ensures the session token was issued through
// zero-knowledge authentication with the expected scheme.
func RequireZKScheme(expectedScheme string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetJWTClaims(r)
			if !ok {
				http.Error(w, "JWT claims required", http.StatusInternalServerError)
				return
			}

			if claims.ZK == nil {
				http.Error(w, "JWT missing ZK claims", http.StatusForbidden)
				return
			}

			if claims.ZK.Scheme != expectedScheme {
				http.Error(w, fmt.Sprintf("invalid ZK scheme: expected %s, got %s", expectedScheme, claims.ZK.Scheme), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireCurve ensures the session token was issued over a specific curve.
func RequireCurve(expectedCurve string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetJWTClaims(r)
			if !ok {
				http.Error(w, "JWT claims required", http.StatusInternalServerError)
				return
			}

			if claims.ZK == nil {
				http.Error(w, "JWT missing ZK claims", http.StatusForbidden)
				return
			}

			if claims.ZK.Group != expectedCurve {
				http.Error(w, fmt.Sprintf("invalid curve: expected %s, got %s", expectedCurve, claims.ZK.Group), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORS middleware for browser clients.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequestID middleware assigns each request an ID, preserving one supplied
// by an upstream proxy.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Recovery middleware recovers from handler panics.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/lestrrat-go/jwx/v2/jwk"

	zkjwt "github.com/i-dipanshu/secure-files-sub000/pkg/jwt"
	mw "github.com/i-dipanshu/secure-files-sub000/pkg/middleware"
)

func main() {
	var (
		addr       = flag.String("addr", ":8081", "Server address")
		authServer = flag.String("auth-server", "http://localhost:8080", "Auth server base URL")
		audience   = flag.String("audience", "zkauth-api", "JWT audience")
	)
	flag.Parse()

	log.Println("Starting zkauth demo API server...")

	// Fetch JWKS from the auth server so issued tokens can be verified
	// without sharing key material.
	jwksURL := *authServer + "/.well-known/jwks.json"
	log.Printf("Fetching JWKS from: %s", jwksURL)

	resp, err := http.Get(jwksURL)
	if err != nil {
		log.Fatalf("Failed to fetch JWKS: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Failed to fetch JWKS: HTTP %d", resp.StatusCode)
	}

	issuerJWKS, err := jwk.ParseReader(resp.Body)
	if err != nil {
		log.Fatalf("Failed to parse JWKS: %v", err)
	}
	log.Printf("Loaded %d signing keys", issuerJWKS.Len())

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(mw.RequestID)
	r.Use(chimw.Logger)
	r.Use(mw.Recovery)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(mw.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","service":"zkauth-demo-api"}`)
	})

	r.Get("/public", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message":   "This is a public endpoint",
			"timestamp": time.Now(),
			"service":   "zkauth-demo-api",
		})
	})

	// Protected routes require a session token from zero-knowledge login.
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.JWTMiddleware(issuerJWKS, *audience))
		r.Use(mw.RequireZKScheme(zkjwt.SchemeSchnorrZKP))

		r.Get("/profile", func(w http.ResponseWriter, r *http.Request) {
			claims, ok := mw.GetJWTClaims(r)
			if !ok {
				http.Error(w, "Missing JWT claims", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"message":    "Profile data",
				"subject":    claims.Subject,
				"username":   claims.Username,
				"audience":   claims.Audience,
				"issued_at":  claims.IssuedAt,
				"expires_at": claims.ExpiresAt,
				"zk_info":    claims.ZK,
			})
		})

		r.Get("/files", func(w http.ResponseWriter, r *http.Request) {
			claims, _ := mw.GetJWTClaims(r)

			files := []map[string]interface{}{
				{"name": "quarterly-report.pdf", "size": 482133, "owner": claims.Username},
				{"name": "design-notes.md", "size": 10987, "owner": claims.Username},
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"files":     files,
				"timestamp": time.Now(),
			})
		})

		// Endpoint restricted to secp256k1 sessions.
		r.Route("/secp256k1", func(r chi.Router) {
			r.Use(mw.RequireCurve("secp256k1"))

			r.Get("/data", func(w http.ResponseWriter, r *http.Request) {
				claims, _ := mw.GetJWTClaims(r)

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]interface{}{
					"message":   "This endpoint requires secp256k1 authentication",
					"subject":   claims.Subject,
					"curve":     claims.ZK.Group,
					"timestamp": time.Now(),
				})
			})
		})
	})

	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		info := map[string]interface{}{
			"service":     "zkauth demo API",
			"description": "Demonstrates session tokens minted after Schnorr zero-knowledge authentication",
			"auth_server": *authServer,
			"audience":    *audience,
			"endpoints": map[string]interface{}{
				"public": map[string]string{
					"GET /health": "Health check",
					"GET /public": "Public endpoint (no auth)",
					"GET /info":   "This information",
				},
				"protected": map[string]string{
					"GET /api/profile":        "User profile (requires session token)",
					"GET /api/files":          "User files (requires session token)",
					"GET /api/secp256k1/data": "Curve-restricted data (secp256k1 sessions only)",
				},
			},
			"auth_flow": []string{
				"1. Register identity: POST /auth/register",
				"2. Log in with a fresh proof: POST /auth/login",
				"3. Call this API with the minted Bearer token",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	})

	log.Printf("Server starting on %s", *addr)
	log.Printf("Auth server: %s", *authServer)
	log.Printf("Expected audience: %s", *audience)
	log.Println()
	log.Println("Endpoints:")
	log.Println("  GET  /health             - Health check")
	log.Println("  GET  /public             - Public endpoint")
	log.Println("  GET  /info               - API information")
	log.Println("  GET  /api/profile        - User profile (session token)")
	log.Println("  GET  /api/files          - User files (session token)")
	log.Println("  GET  /api/secp256k1/data - Curve-restricted data")
	log.Println()
	log.Printf("Visit http://localhost%s/info for more details", *addr)

	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sauerbraten/jsonfile"

	"github.com/i-dipanshu/secure-files-sub000/pkg/auth"
	"github.com/i-dipanshu/secure-files-sub000/pkg/crypto/curve"
	"github.com/i-dipanshu/secure-files-sub000/pkg/jwt"
	mw "github.com/i-dipanshu/secure-files-sub000/pkg/middleware"
	"github.com/i-dipanshu/secure-files-sub000/pkg/replay"
	"github.com/i-dipanshu/secure-files-sub000/pkg/storage"
)

// fileConfig mirrors the flag set; non-zero fields from the JSON config
// file override flag defaults.
type fileConfig struct {
	Addr       string `json:"addr"`
	KeyFile    string `json:"key_file"`
	ConfigFile string `json:"jwt_config_file"`
	Issuer     string `json:"issuer"`
	Audience   string `json:"audience"`
	TokenTTL   string `json:"token_ttl"`
	MaxAge     string `json:"proof_max_age"`
	MaxSkew    string `json:"proof_max_skew"`
	RateLimit  int    `json:"rate_limit"`
	CurveName  string `json:"curve"`
}

func main() {
	var (
		addr        = flag.String("addr", ":8080", "Server address")
		configPath  = flag.String("config", "", "Optional JSON config file")
		keyFile     = flag.String("key", "keys/jwt-signing.pem", "JWT signing key file")
		jwtConfig   = flag.String("jwt-config", "keys/jwt-config.json", "JWT config file")
		issuer      = flag.String("issuer", "https://auth.zkauth.example", "JWT issuer")
		audience    = flag.String("audience", "zkauth-api", "JWT audience")
		tokenTTL    = flag.Duration("token-ttl", 5*time.Minute, "JWT token TTL")
		proofMaxAge = flag.Duration("proof-max-age", 5*time.Minute, "Max age of proof messages")
		proofSkew   = flag.Duration("proof-max-skew", 30*time.Second, "Allowed future clock skew for proof messages")
		rateLimit   = flag.Int("rate-limit", 120, "Max requests per minute per client")
		curveName   = flag.String("curve", "secp256k1", "Curve to use (secp256k1|ristretto255)")
	)
	flag.Parse()

	if *configPath != "" {
		var fc fileConfig
		if err := jsonfile.ParseFile(*configPath, &fc); err != nil {
			log.Fatalf("Failed to parse config file %s: %v", *configPath, err)
		}
		applyFileConfig(&fc, addr, keyFile, jwtConfig, issuer, audience, tokenTTL, proofMaxAge, proofSkew, rateLimit, curveName)
		log.Printf("Loaded config from %s", *configPath)
	}

	log.Println("Starting zkauth server...")

	activeCurve, err := curve.FromName(*curveName)
	if err != nil {
		log.Fatalf("Unsupported curve %q: %v", *curveName, err)
	}
	log.Printf("Using curve: %s", activeCurve.Name())

	var store storage.Store = storage.NewMemoryStore()
	defer store.Close()
	log.Println("Initialized in-memory storage")

	policy := replay.NewPolicy(*proofMaxAge, *proofSkew, replay.NewInMemoryStore(*proofMaxAge+*proofSkew))
	log.Printf("Proof window: max age %v, max skew %v", *proofMaxAge, *proofSkew)

	if _, err := os.Stat(*keyFile); os.IsNotExist(err) {
		log.Printf("Key file %s does not exist, generating new key...", *keyFile)
		if err := jwt.GenerateKeyPairFiles("auth-key-1", *issuer, *keyFile, *jwtConfig); err != nil {
			log.Fatalf("Failed to generate key pair: %v", err)
		}
		log.Printf("Generated new key pair: %s, %s", *keyFile, *jwtConfig)
	}

	tokenSigner, err := jwt.NewES256SignerFromFile(*keyFile, *jwtConfig)
	if err != nil {
		log.Fatalf("Failed to create JWT signer: %v", err)
	}
	log.Printf("Loaded JWT signer with algorithm: %s", tokenSigner.Algorithm())

	handlers := auth.NewHandlers(store, activeCurve, tokenSigner, policy, auth.Config{
		Issuer:   *issuer,
		Audience: *audience,
		TokenTTL: *tokenTTL,
	})

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(mw.RequestID)
	r.Use(chimw.Logger)
	r.Use(mw.Recovery)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(mw.RateLimit(*rateLimit, time.Minute))
	r.Use(mw.CORS)

	r.Get("/health", handlers.Health)

	r.Post("/auth/register", handlers.Register)
	r.Post("/auth/login", handlers.Login)
	r.Post("/auth/logout", handlers.Logout)

	r.Group(func(r chi.Router) {
		r.Use(mw.JWTMiddleware(tokenSigner.JWKS(), *audience))
		r.Use(mw.RequireZKScheme(jwt.SchemeSchnorrZKP))
		r.Get("/auth/verify", handlers.VerifyToken)
	})

	r.Get("/.well-known/jwks.json", handlers.JWKS)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/users", handlers.ListUsers)
		r.Get("/stats", handlers.Stats)
	})

	log.Printf("Server starting on %s", *addr)
	log.Printf("Issuer: %s", *issuer)
	log.Printf("Audience: %s", *audience)
	log.Printf("Token TTL: %v", *tokenTTL)
	log.Println()
	log.Println("Endpoints:")
	log.Println("  POST /auth/register          - Register new identity")
	log.Println("  POST /auth/login             - Zero-knowledge login")
	log.Println("  GET  /auth/verify            - Token introspection")
	log.Println("  POST /auth/logout            - Logout")
	log.Println("  GET  /.well-known/jwks.json  - JWT signing keys")
	log.Println("  GET  /health                 - Health check")
	log.Println("  GET  /admin/users            - List users")
	log.Println("  GET  /admin/stats            - Service stats")
	log.Println()

	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func applyFileConfig(
	fc *fileConfig,
	addr, keyFile, jwtConfig, issuer, audience *string,
	tokenTTL, proofMaxAge, proofSkew *time.Duration,
	rateLimit *int,
	curveName *string,
) {
	if fc.Addr != "" {
		*addr = fc.Addr
	}
	if fc.KeyFile != "" {
		*keyFile = fc.KeyFile
	}
	if fc.ConfigFile != "" {
		*jwtConfig = fc.ConfigFile
	}
	if fc.Issuer != "" {
		*issuer = fc.Issuer
	}
	if fc.Audience != "" {
		*audience = fc.Audience
	}
	if fc.TokenTTL != "" {
		if d, err := time.ParseDuration(fc.TokenTTL); err == nil {
			*tokenTTL = d
		} else {
			log.Fatalf("Invalid token_ttl %q: %v", fc.TokenTTL, err)
		}
	}
	if fc.MaxAge != "" {
		if d, err := time.ParseDuration(fc.MaxAge); err == nil {
			*proofMaxAge = d
		} else {
			log.Fatalf("Invalid proof_max_age %q: %v", fc.MaxAge, err)
		}
	}
	if fc.MaxSkew != "" {
		if d, err := time.ParseDuration(fc.MaxSkew); err == nil {
			*proofSkew = d
		} else {
			log.Fatalf("Invalid proof_max_skew %q: %v", fc.MaxSkew, err)
		}
	}
	if fc.RateLimit > 0 {
		*rateLimit = fc.RateLimit
	}
	if fc.CurveName != "" {
		*curveName = fc.CurveName
	}
}

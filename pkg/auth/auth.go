// Package auth implements the HTTP authentication surface: registration,
// zero-knowledge login, token introspection, and JWKS publication.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/i-dipanshu/secure-files-sub000/pkg/authmsg"
	"github.com/i-dipanshu/secure-files-sub000/pkg/crypto/curve"
	"github.com/i-dipanshu/secure-files-sub000/pkg/crypto/schnorr"
	"github.com/i-dipanshu/secure-files-sub000/pkg/jwt"
	"github.com/i-dipanshu/secure-files-sub000/pkg/middleware"
	"github.com/i-dipanshu/secure-files-sub000/pkg/replay"
	"github.com/i-dipanshu/secure-files-sub000/pkg/storage"
)

// Handlers contains all authentication handlers.
type Handlers struct {
	store       storage.Store
	curve       curve.Curve
	tokenSigner jwt.TokenSigner
	policy      *replay.Policy
	config      Config

	// now is swapped in tests.
	now func() time.Time
}

// Config contains configuration for auth handlers.
type Config struct {
	Issuer   string        // JWT issuer
	Audience string        // JWT audience
	TokenTTL time.Duration // JWT lifetime
}

// NewHandlers creates new authentication handlers.
func NewHandlers(
	store storage.Store,
	crv curve.Curve,
	tokenSigner jwt.TokenSigner,
	policy *replay.Policy,
	config Config,
) *Handlers {
	return &Handlers{
		store:       store,
		curve:       crv,
		tokenSigner: tokenSigner,
		policy:      policy,
		config:      config,
		now:         time.Now,
	}
}

// RegisterRequest represents a user registration request. The proof must be
// bound to the claimed username through a fresh authentication message so a
// registrant demonstrates possession of the private key.
type RegisterRequest struct {
	Username  string                 `json:"username"`
	Email     string                 `json:"email"`
	PublicKey string                 `json:"public_key"`
	Proof     *schnorr.ProofEnvelope `json:"proof"`
}

// RegisterResponse confirms a created user.
type RegisterResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

// LoginRequest represents a zero-knowledge login request.
type LoginRequest struct {
	Username string                 `json:"username"`
	Proof    *schnorr.ProofEnvelope `json:"proof"`
}

// LoginResponse represents the token response.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// authFailed writes the uniform login rejection. Every authentication
// failure takes this path so responses do not reveal which check failed.
func authFailed(w http.ResponseWriter) {
	http.Error(w, "authentication failed", http.StatusUnauthorized)
}

// Register handles user registration.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Username == "" {
		http.Error(w, "username required", http.StatusBadRequest)
		return
	}
	if req.Proof == nil {
		http.Error(w, "registration proof required", http.StatusBadRequest)
		return
	}

	point, err := schnorr.DecodePublicKey(h.curve, req.PublicKey)
	if err != nil {
		http.Error(w, "invalid public key", http.StatusBadRequest)
		return
	}

	// Store the canonical encoding regardless of how the client spelled it.
	pk, err := schnorr.EncodePublicKey(point)
	if err != nil {
		http.Error(w, "invalid public key", http.StatusBadRequest)
		return
	}

	banned, err := h.store.IsInDenylist(pk)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if banned {
		http.Error(w, "public key is banned", http.StatusForbidden)
		return
	}

	proof, err := schnorr.DecodeProof(h.curve, req.Proof)
	if err != nil {
		http.Error(w, "invalid registration proof", http.StatusBadRequest)
		return
	}

	// The message must name the registrant and be fresh and unconsumed.
	if err := h.policy.Check(req.Username, pk, proof.Message, h.now()); err != nil {
		http.Error(w, "invalid registration proof", http.StatusBadRequest)
		return
	}

	if !schnorr.Verify(h.curve, proof, point) {
		http.Error(w, "invalid registration proof", http.StatusBadRequest)
		return
	}

	user := &storage.User{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Email:     req.Email,
		PublicKey: pk,
	}

	if err := h.store.CreateUser(user); err != nil {
		switch {
		case errors.Is(err, storage.ErrUserExists):
			http.Error(w, "username already registered", http.StatusConflict)
		case errors.Is(err, storage.ErrEmailInUse):
			http.Error(w, "email already registered", http.StatusConflict)
		case errors.Is(err, storage.ErrPublicKeyInUse):
			http.Error(w, "public key already registered", http.StatusConflict)
		default:
			http.Error(w, "storage error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(RegisterResponse{
		ID:       user.ID,
		Username: user.Username,
		Status:   user.Status,
	})
}

// Login handles one-shot zero-knowledge authentication. The request carries
// a complete non-interactive proof; there is no commitment round trip.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Proof == nil {
		authFailed(w)
		return
	}

	user, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		authFailed(w)
		return
	}

	if user.Status != storage.StatusActive {
		authFailed(w)
		return
	}

	banned, err := h.store.IsInDenylist(user.PublicKey)
	if err != nil || banned {
		authFailed(w)
		return
	}

	proof, err := schnorr.DecodeProof(h.curve, req.Proof)
	if err != nil {
		authFailed(w)
		return
	}

	now := h.now()
	if err := h.policy.Check(req.Username, user.PublicKey, proof.Message, now); err != nil {
		authFailed(w)
		return
	}

	point, err := schnorr.DecodePublicKey(h.curve, user.PublicKey)
	if err != nil {
		authFailed(w)
		return
	}

	if !schnorr.Verify(h.curve, proof, point) {
		authFailed(w)
		return
	}

	_, provedAt, err := authmsg.Parse(proof.Message)
	if err != nil {
		authFailed(w)
		return
	}

	subject := jwt.GeneratePairwiseSubject(point.Bytes(), h.config.Audience)

	token, err := jwt.MintSessionToken(
		h.tokenSigner,
		h.config.Issuer,
		subject,
		h.config.Audience,
		user.Username,
		proof.Message,
		provedAt,
		h.curve.Name(),
		h.config.TokenTTL,
	)
	if err != nil {
		http.Error(w, "failed to mint token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.config.TokenTTL.Seconds()),
	})
}

// VerifyToken introspects the bearer's session token. It must sit behind
// the JWT middleware, which performs the actual verification.
func (h *Handlers) VerifyToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetJWTClaims(r)
	if !ok {
		http.Error(w, "JWT claims required", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"valid":      true,
		"subject":    claims.Subject,
		"username":   claims.Username,
		"issuer":     claims.Issuer,
		"audience":   claims.Audience,
		"expires_at": claims.ExpiresAt,
	}
	if claims.ZK != nil {
		response["zk"] = claims.ZK
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Logout acknowledges session termination. Tokens are stateless, so the
// client discards its token; nothing is revoked server-side.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "logged out"})
}

// JWKS returns the public keys for JWT verification.
func (h *Handlers) JWKS(w http.ResponseWriter, r *http.Request) {
	jwks := h.tokenSigner.JWKS()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")

	if err := json.NewEncoder(w).Encode(jwks); err != nil {
		http.Error(w, "failed to encode JWKS", http.StatusInternalServerError)
		return
	}
}

// ListUsers returns all registered users (admin surface).
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// Stats reports operational counters (admin surface).
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"curve":    h.curve.Name(),
		"issuer":   h.config.Issuer,
		"audience": h.config.Audience,
	}

	if counted, ok := h.store.(interface{ Stats() map[string]int }); ok {
		stats["storage"] = counted.Stats()
	}
	if sized, ok := h.policy.Store.(interface{ Size() int }); ok {
		stats["replay_entries"] = sized.Size()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// Health reports service liveness and storage reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

package auth

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/i-dipanshu/secure-files-sub000/pkg/authmsg"
	"github.com/i-dipanshu/secure-files-sub000/pkg/crypto/curve"
	"github.com/i-dipanshu/secure-files-sub000/pkg/crypto/schnorr"
	"github.com/i-dipanshu/secure-files-sub000/pkg/jwt"
	"github.com/i-dipanshu/secure-files-sub000/pkg/replay"
	"github.com/i-dipanshu/secure-files-sub000/pkg/storage"
)

type testEnv struct {
	handlers *Handlers
	curve    curve.Curve
	signer   *jwt.ES256Signer
	store    *storage.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	crv := curve.NewSecp256k1()

	key, err := jwt.GenerateES256KeyPair()
	if err != nil {
		t.Fatalf("failed to generate signing key: %v", err)
	}
	signer, err := jwt.NewES256Signer(key, "test-key", "https://auth.test")
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	store := storage.NewMemoryStore()
	policy := replay.NewPolicy(5*time.Minute, 30*time.Second, replay.NewInMemoryStore(5*time.Minute))

	handlers := NewHandlers(store, crv, signer, policy, Config{
		Issuer:   "https://auth.test",
		Audience: "zkauth-api",
		TokenTTL: 5 * time.Minute,
	})

	return &testEnv{handlers: handlers, curve: crv, signer: signer, store: store}
}

// proveFor builds a fresh proof envelope for the given identity.
func (e *testEnv) proveFor(t *testing.T, keyPair *schnorr.KeyPair, identity string, ts int64) *schnorr.ProofEnvelope {
	t.Helper()

	message := authmsg.Build(identity, ts)
	proof, err := schnorr.Prove(e.curve, rand.Reader, keyPair.Private, message)
	if err != nil {
		t.Fatalf("failed to prove: %v", err)
	}

	env, err := schnorr.EncodeProof(proof)
	if err != nil {
		t.Fatalf("failed to encode proof: %v", err)
	}
	return env
}

func (e *testEnv) newKeyPair(t *testing.T) (*schnorr.KeyPair, string) {
	t.Helper()

	keyPair, err := schnorr.GenerateKeyPair(e.curve, rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}

	pk, err := schnorr.EncodePublicKey(keyPair.Public)
	if err != nil {
		t.Fatalf("failed to encode public key: %v", err)
	}
	return keyPair, pk
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	req := httptest.NewRequest("POST", target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func (e *testEnv) register(t *testing.T, username, email string) (*schnorr.KeyPair, string) {
	t.Helper()

	keyPair, pk := e.newKeyPair(t)
	rr := postJSON(t, e.handlers.Register, "/auth/register", RegisterRequest{
		Username:  username,
		Email:     email,
		PublicKey: pk,
		Proof:     e.proveFor(t, keyPair, username, time.Now().Unix()),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("registration failed: %d %s", rr.Code, rr.Body.String())
	}
	return keyPair, pk
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Valid", func(t *testing.T) {
		keyPair, pk := env.newKeyPair(t)
		rr := postJSON(t, env.handlers.Register, "/auth/register", RegisterRequest{
			Username:  "alice",
			Email:     "alice@example.com",
			PublicKey: pk,
			Proof:     env.proveFor(t, keyPair, "alice", time.Now().Unix()),
		})

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp RegisterResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Username != "alice" {
			t.Errorf("unexpected username: %s", resp.Username)
		}
		if resp.Status != storage.StatusActive {
			t.Errorf("unexpected status: %s", resp.Status)
		}
		if resp.ID == "" {
			t.Error("expected user ID")
		}
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		keyPair, pk := env.newKeyPair(t)
		rr := postJSON(t, env.handlers.Register, "/auth/register", RegisterRequest{
			Username:  "alice",
			Email:     "alice2@example.com",
			PublicKey: pk,
			Proof:     env.proveFor(t, keyPair, "alice", time.Now().Unix()),
		})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rr.Code)
		}
	})

	t.Run("InvalidPublicKey", func(t *testing.T) {
		keyPair, _ := env.newKeyPair(t)
		rr := postJSON(t, env.handlers.Register, "/auth/register", RegisterRequest{
			Username:  "bob",
			Email:     "bob@example.com",
			PublicKey: "not-a-key",
			Proof:     env.proveFor(t, keyPair, "bob", time.Now().Unix()),
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("MissingProof", func(t *testing.T) {
		_, pk := env.newKeyPair(t)
		rr := postJSON(t, env.handlers.Register, "/auth/register", RegisterRequest{
			Username:  "bob",
			Email:     "bob@example.com",
			PublicKey: pk,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("ProofForDifferentIdentity", func(t *testing.T) {
		keyPair, pk := env.newKeyPair(t)
		rr := postJSON(t, env.handlers.Register, "/auth/register", RegisterRequest{
			Username:  "bob",
			Email:     "bob@example.com",
			PublicKey: pk,
			Proof:     env.proveFor(t, keyPair, "mallory", time.Now().Unix()),
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("ProofWithForeignKey", func(t *testing.T) {
		foreign, _ := env.newKeyPair(t)
		_, pk := env.newKeyPair(t)
		rr := postJSON(t, env.handlers.Register, "/auth/register", RegisterRequest{
			Username:  "bob",
			Email:     "bob@example.com",
			PublicKey: pk,
			Proof:     env.proveFor(t, foreign, "bob", time.Now().Unix()),
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("BannedPublicKey", func(t *testing.T) {
		keyPair, pk := env.newKeyPair(t)
		if err := env.store.AddToDenylist(pk); err != nil {
			t.Fatal(err)
		}
		rr := postJSON(t, env.handlers.Register, "/auth/register", RegisterRequest{
			Username:  "eve",
			Email:     "eve@example.com",
			PublicKey: pk,
			Proof:     env.proveFor(t, keyPair, "eve", time.Now().Unix()),
		})
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/register", strings.NewReader("{"))
		rr := httptest.NewRecorder()
		env.handlers.Register(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	keyPair, _ := env.register(t, "alice", "alice@example.com")

	expectAuthFailed := func(t *testing.T, rr *httptest.ResponseRecorder) {
		t.Helper()
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
		}
		if body := strings.TrimSpace(rr.Body.String()); body != "authentication failed" {
			t.Errorf("rejection body must be uniform, got %q", body)
		}
	}

	// Each subtest uses a distinct timestamp so messages never collide in
	// the replay store across subtests.
	t.Run("Valid", func(t *testing.T) {
		rr := postJSON(t, env.handlers.Login, "/auth/login", LoginRequest{
			Username: "alice",
			Proof:    env.proveFor(t, keyPair, "alice", time.Now().Unix()+10),
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp LoginResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.TokenType != "Bearer" {
			t.Errorf("unexpected token type: %s", resp.TokenType)
		}
		if resp.ExpiresIn != 300 {
			t.Errorf("unexpected expiry: %d", resp.ExpiresIn)
		}

		claims, err := jwt.NewJWTVerifier(env.signer.JWKS()).Verify(resp.AccessToken, "zkauth-api")
		if err != nil {
			t.Fatalf("minted token failed verification: %v", err)
		}
		if claims.Username != "alice" {
			t.Errorf("unexpected username claim: %s", claims.Username)
		}
		if claims.ZK == nil || claims.ZK.Scheme != jwt.SchemeSchnorrZKP {
			t.Error("missing zk claims")
		}
		if claims.ZK.Group != "secp256k1" {
			t.Errorf("unexpected group claim: %s", claims.ZK.Group)
		}
	})

	t.Run("ReplayedProof", func(t *testing.T) {
		proof := env.proveFor(t, keyPair, "alice", time.Now().Unix()+11)

		first := postJSON(t, env.handlers.Login, "/auth/login", LoginRequest{Username: "alice", Proof: proof})
		if first.Code != http.StatusOK {
			t.Fatalf("first use should succeed, got %d", first.Code)
		}

		second := postJSON(t, env.handlers.Login, "/auth/login", LoginRequest{Username: "alice", Proof: proof})
		expectAuthFailed(t, second)
	})

	t.Run("StaleMessage", func(t *testing.T) {
		rr := postJSON(t, env.handlers.Login, "/auth/login", LoginRequest{
			Username: "alice",
			Proof:    env.proveFor(t, keyPair, "alice", time.Now().Add(-10*time.Minute).Unix()),
		})
		expectAuthFailed(t, rr)
	})

	t.Run("FutureMessage", func(t *testing.T) {
		rr := postJSON(t, env.handlers.Login, "/auth/login", LoginRequest{
			Username: "alice",
			Proof:    env.proveFor(t, keyPair, "alice", time.Now().Add(10*time.Minute).Unix()),
		})
		expectAuthFailed(t, rr)
	})

	t.Run("WrongKey", func(t *testing.T) {
		foreign, _ := env.newKeyPair(t)
		rr := postJSON(t, env.handlers.Login, "/auth/login", LoginRequest{
			Username: "alice",
			Proof:    env.proveFor(t, foreign, "alice", time.Now().Unix()+12),
		})
		expectAuthFailed(t, rr)
	})

	t.Run("IdentityMismatch", func(t *testing.T) {
		rr := postJSON(t, env.handlers.Login, "/auth/login", LoginRequest{
			Username: "alice",
			Proof:    env.proveFor(t, keyPair, "mallory", time.Now().Unix()+13),
		})
		expectAuthFailed(t, rr)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		rr := postJSON(t, env.handlers.Login, "/auth/login", LoginRequest{
			Username: "nobody",
			Proof:    env.proveFor(t, keyPair, "nobody", time.Now().Unix()),
		})
		expectAuthFailed(t, rr)
	})

	t.Run("TamperedResponse", func(t *testing.T) {
		proof := env.proveFor(t, keyPair, "alice", time.Now().Unix()+14)
		proof.Response = "0x" + strings.Repeat("11", 32)
		rr := postJSON(t, env.handlers.Login, "/auth/login", LoginRequest{Username: "alice", Proof: proof})
		expectAuthFailed(t, rr)
	})

	t.Run("InactiveUser", func(t *testing.T) {
		if err := env.store.UpdateUserStatus("alice", "suspended"); err != nil {
			t.Fatal(err)
		}
		defer env.store.UpdateUserStatus("alice", storage.StatusActive)

		rr := postJSON(t, env.handlers.Login, "/auth/login", LoginRequest{
			Username: "alice",
			Proof:    env.proveFor(t, keyPair, "alice", time.Now().Unix()+15),
		})
		expectAuthFailed(t, rr)
	})

	t.Run("BannedKey", func(t *testing.T) {
		user, err := env.store.GetUserByUsername("alice")
		if err != nil {
			t.Fatal(err)
		}
		if err := env.store.AddToDenylist(user.PublicKey); err != nil {
			t.Fatal(err)
		}
		defer env.store.RemoveFromDenylist(user.PublicKey)

		rr := postJSON(t, env.handlers.Login, "/auth/login", LoginRequest{
			Username: "alice",
			Proof:    env.proveFor(t, keyPair, "alice", time.Now().Unix()+16),
		})
		expectAuthFailed(t, rr)
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/auth/logout", nil)
	rr := httptest.NewRecorder()
	env.handlers.Logout(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "logged out") {
		t.Errorf("unexpected body: %s", rr.Body.String())
	}
}

func TestJWKSEndpoint(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/.well-known/jwks.json", nil)
	rr := httptest.NewRecorder()
	env.handlers.JWKS(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var jwks struct {
		Keys []map[string]interface{} `json:"keys"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &jwks); err != nil {
		t.Fatalf("failed to decode JWKS: %v", err)
	}
	if len(jwks.Keys) != 1 {
		t.Fatalf("expected one key, got %d", len(jwks.Keys))
	}
	if jwks.Keys[0]["kid"] != "test-key" {
		t.Errorf("unexpected kid: %v", jwks.Keys[0]["kid"])
	}
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com")

	t.Run("ListUsers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/users", nil)
		rr := httptest.NewRecorder()
		env.handlers.ListUsers(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var resp struct {
			Users []storage.User `json:"users"`
			Count int            `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Count != 1 || resp.Users[0].Username != "alice" {
			t.Errorf("unexpected users: %+v", resp)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/stats", nil)
		rr := httptest.NewRecorder()
		env.handlers.Stats(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var stats map[string]interface{}
		if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
			t.Fatal(err)
		}
		if stats["curve"] != "secp256k1" {
			t.Errorf("unexpected curve: %v", stats["curve"])
		}
		if _, ok := stats["storage"]; !ok {
			t.Error("expected storage counters")
		}
	})
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	env.handlers.Health(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

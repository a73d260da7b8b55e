package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	zkjwt "github.com/i-dipanshu/secure-files-sub000/pkg/jwt"
)

func newTestSigner(t *testing.T) *zkjwt.ES256Signer {
	t.Helper()

	key, err := zkjwt.GenerateES256KeyPair()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	signer, err := zkjwt.NewES256Signer(key, "test-key", "https://auth.example.com")
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	return signer
}

func mintTestToken(t *testing.T, signer *zkjwt.ES256Signer, audience string, ttl time.Duration) string {
	t.Helper()

	token, err := zkjwt.MintSessionToken(signer, "https://auth.example.com", "test-subject", audience, "alice", []byte("ZKP_AUTH:alice:1700000000"), 1700000000, "secp256k1", ttl)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return token
}

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func TestJWTMiddleware(t *testing.T) {
	signer := newTestSigner(t)
	mw := JWTMiddleware(signer.JWKS(), "test-audience")

	t.Run("ValidToken", func(t *testing.T) {
		token := mintTestToken(t, signer, "test-audience", time.Minute)

		req := httptest.NewRequest("GET", "https://api.example.com/files", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetJWTClaims(r)
			if !ok {
				t.Error("claims should be in context")
			}
			if claims.Username != "alice" {
				t.Errorf("wrong username: %s", claims.Username)
			}
			if claims.ZK == nil || claims.ZK.Scheme != zkjwt.SchemeSchnorrZKP {
				t.Error("zk claims mismatch")
			}
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("MissingAuthorization", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://api.example.com/files", nil)
		rr := httptest.NewRecorder()

		mw(okHandler()).ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("WrongAuthorizationScheme", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://api.example.com/files", nil)
		req.Header.Set("Authorization", "Basic dGVzdA==")
		rr := httptest.NewRecorder()

		mw(okHandler()).ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		token := mintTestToken(t, signer, "test-audience", -time.Minute)

		req := httptest.NewRequest("GET", "https://api.example.com/files", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		mw(okHandler()).ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("WrongAudience", func(t *testing.T) {
		token := mintTestToken(t, signer, "other-audience", time.Minute)

		req := httptest.NewRequest("GET", "https://api.example.com/files", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		mw(okHandler()).ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})
}

func TestRequireZKScheme(t *testing.T) {
	mw := RequireZKScheme(zkjwt.SchemeSchnorrZKP)

	withClaims := func(claims *zkjwt.Claims) *http.Request {
		req := httptest.NewRequest("GET", "https://api.example.com/files", nil)
		ctx := context.WithValue(req.Context(), JWTClaimsKey, claims)
		return req.WithContext(ctx)
	}

	t.Run("ValidScheme", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rr, withClaims(&zkjwt.Claims{
			ZK: &zkjwt.ZKClaims{Scheme: zkjwt.SchemeSchnorrZKP},
		}))
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("MissingZKClaims", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rr, withClaims(&zkjwt.Claims{}))
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rr.Code)
		}
	})

	t.Run("WrongScheme", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rr, withClaims(&zkjwt.Claims{
			ZK: &zkjwt.ZKClaims{Scheme: "password"},
		}))
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rr.Code)
		}
	})

	t.Run("NoClaimsInContext", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rr.Code)
		}
	})
}

func TestRequireCurve(t *testing.T) {
	mw := RequireCurve("secp256k1")

	withGroup := func(group string) *http.Request {
		req := httptest.NewRequest("GET", "https://api.example.com/files", nil)
		ctx := context.WithValue(req.Context(), JWTClaimsKey, &zkjwt.Claims{
			ZK: &zkjwt.ZKClaims{Group: group},
		})
		return req.WithContext(ctx)
	}

	t.Run("ValidCurve", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rr, withGroup("secp256k1"))
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("WrongCurve", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rr, withGroup("ristretto255"))
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rr.Code)
		}
	})
}

func TestUtilityMiddleware(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	t.Run("CORS", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		rr := httptest.NewRecorder()

		CORS(testHandler).ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
		if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
			t.Errorf("expected CORS origin *, got %s", origin)
		}
	})

	t.Run("CORSOptions", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/test", nil)
		rr := httptest.NewRecorder()

		CORS(testHandler).ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
		if body := rr.Body.String(); body != "" {
			t.Error("OPTIONS should not call next handler")
		}
	})

	t.Run("RequestID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		rr := httptest.NewRecorder()

		RequestID(testHandler).ServeHTTP(rr, req)

		if requestID := rr.Header().Get("X-Request-ID"); requestID == "" {
			t.Error("expected X-Request-ID header")
		}
	})

	t.Run("RequestIDExisting", func(t *testing.T) {
		existingID := "test-request-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", existingID)
		rr := httptest.NewRecorder()

		RequestID(testHandler).ServeHTTP(rr, req)

		if requestID := rr.Header().Get("X-Request-ID"); requestID != existingID {
			t.Errorf("expected request ID %s, got %s", existingID, requestID)
		}
	})

	t.Run("Recovery", func(t *testing.T) {
		panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		})

		req := httptest.NewRequest("GET", "/test", nil)
		rr := httptest.NewRecorder()

		Recovery(panicHandler).ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected 500 after panic, got %d", rr.Code)
		}
		if body := rr.Body.String(); !strings.Contains(body, "Internal Server Error") {
			t.Errorf("expected error message, got %s", body)
		}
	})

	t.Run("RecoveryNoPanic", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		rr := httptest.NewRecorder()

		Recovery(testHandler).ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})
}

func TestRateLimit(t *testing.T) {
	ratelimited := RateLimit(2, time.Minute)

	counter := 0
	baseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter++
		w.WriteHeader(http.StatusOK)
	})

	handler := ratelimited(baseHandler)

	req := httptest.NewRequest("GET", "/rate", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	resp1 := httptest.NewRecorder()
	handler.ServeHTTP(resp1, req)
	if resp1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", resp1.Code)
	}

	resp2 := httptest.NewRecorder()
	handler.ServeHTTP(resp2, req)
	if resp2.Code != http.StatusOK {
		t.Fatalf("expected second request to succeed, got %d", resp2.Code)
	}

	resp3 := httptest.NewRecorder()
	handler.ServeHTTP(resp3, req)
	if resp3.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit to trigger, got %d", resp3.Code)
	}
	if retry := resp3.Header().Get("Retry-After"); retry != "60" {
		t.Errorf("expected Retry-After hint of 60s, got %q", retry)
	}

	if counter != 2 {
		t.Fatalf("expected handler to execute twice, ran %d times", counter)
	}

	// A different client has its own budget.
	other := httptest.NewRequest("GET", "/rate", nil)
	other.RemoteAddr = "192.0.2.2:1234"
	resp4 := httptest.NewRecorder()
	handler.ServeHTTP(resp4, other)
	if resp4.Code != http.StatusOK {
		t.Fatalf("expected fresh client to succeed, got %d", resp4.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if ip := clientIP(req); ip != "192.0.2.1" {
		t.Errorf("unexpected IP: %s", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := clientIP(req); ip != "203.0.113.9" {
		t.Errorf("unexpected forwarded IP: %s", ip)
	}
}

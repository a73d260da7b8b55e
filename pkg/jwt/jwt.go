// Package jwt issues and verifies the time-limited session credentials
// minted after a successful zero-knowledge login. Tokens are ES256-signed
// and carry a zk claim block describing how the session was established.
package jwt

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// SchemeSchnorrZKP identifies sessions established via a Schnorr proof.
const SchemeSchnorrZKP = "schnorr-zkp"

// TokenSigner signs session tokens and publishes the verification keys.
type TokenSigner interface {
	// Sign creates a JWT with the given claims.
	Sign(claims map[string]interface{}) (string, error)

	// JWKS returns the public keys for token verification.
	JWKS() jwk.Set

	// Algorithm returns the signing algorithm.
	Algorithm() string
}

// TokenVerifier verifies session tokens.
type TokenVerifier interface {
	Verify(token string, expectedAudience string) (*Claims, error)
}

// Claims are the parsed contents of a session token.
type Claims struct {
	Issuer    string                 `json:"iss"`
	Subject   string                 `json:"sub"`
	Audience  string                 `json:"aud"`
	Username  string                 `json:"username"`
	IssuedAt  int64                  `json:"iat"`
	ExpiresAt int64                  `json:"exp"`
	ZK        *ZKClaims              `json:"zk,omitempty"`
	Extra     map[string]interface{} `json:"-"`
}

// ZKClaims describe the proof that established the session.
type ZKClaims struct {
	Scheme   string `json:"scheme"`  // "schnorr-zkp"
	Group    string `json:"grp"`     // "secp256k1" or "ristretto255"
	MsgHash  string `json:"m_hash"`  // base64 SHA-256 of the authenticated message
	ProvedAt int64  `json:"iat_zkp"` // timestamp embedded in the message
}

// ES256Signer signs tokens with an ECDSA P-256 key.
type ES256Signer struct {
	privateKey *ecdsa.PrivateKey
	keyID      string
	issuer     string
	jwks       jwk.Set
}

// NewES256Signer wraps a P-256 private key as a TokenSigner, building the
// published JWK set from its public half.
func NewES256Signer(privateKey *ecdsa.PrivateKey, keyID, issuer string) (*ES256Signer, error) {
	publicJWK, err := jwk.FromRaw(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK from public key: %w", err)
	}

	if err := publicJWK.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("failed to set key ID: %w", err)
	}
	if err := publicJWK.Set(jwk.AlgorithmKey, "ES256"); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}
	if err := publicJWK.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("failed to set key usage: %w", err)
	}

	jwks := jwk.NewSet()
	jwks.AddKey(publicJWK)

	return &ES256Signer{
		privateKey: privateKey,
		keyID:      keyID,
		issuer:     issuer,
		jwks:       jwks,
	}, nil
}

// Sign creates a JWT with the given claims.
func (s *ES256Signer) Sign(claims map[string]interface{}) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims(claims))
	token.Header["kid"] = s.keyID

	tokenString, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return tokenString, nil
}

// JWKS returns the public keys for token verification.
func (s *ES256Signer) JWKS() jwk.Set {
	return s.jwks
}

// Algorithm returns "ES256".
func (s *ES256Signer) Algorithm() string {
	return "ES256"
}

// JWTVerifier verifies tokens against an issuer's JWK set.
type JWTVerifier struct {
	issuerJWKS jwk.Set
}

// NewJWTVerifier creates a verifier over the issuer's published keys.
func NewJWTVerifier(issuerJWKS jwk.Set) *JWTVerifier {
	return &JWTVerifier{issuerJWKS: issuerJWKS}
}

// Verify checks the signature, expiry, and audience of a token and returns
// its claims.
func (v *JWTVerifier) Verify(tokenString string, expectedAudience string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("missing key ID")
		}

		key, ok := v.issuerJWKS.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("key not found: %s", kid)
		}

		var publicKey interface{}
		if err := key.Raw(&publicKey); err != nil {
			return nil, fmt.Errorf("failed to extract public key: %w", err)
		}
		return publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}

	claimsMap := token.Claims.(jwt.MapClaims)

	if aud, ok := claimsMap["aud"].(string); ok {
		if aud != expectedAudience {
			return nil, fmt.Errorf("invalid audience: expected %s, got %s", expectedAudience, aud)
		}
	} else {
		return nil, fmt.Errorf("missing audience claim")
	}

	return parseClaimsMap(claimsMap)
}

// parseClaimsMap converts raw claims into the structured form.
func parseClaimsMap(claimsMap jwt.MapClaims) (*Claims, error) {
	claims := &Claims{
		Extra: make(map[string]interface{}),
	}

	if iss, ok := claimsMap["iss"].(string); ok {
		claims.Issuer = iss
	}
	if sub, ok := claimsMap["sub"].(string); ok {
		claims.Subject = sub
	}
	if aud, ok := claimsMap["aud"].(string); ok {
		claims.Audience = aud
	}
	if username, ok := claimsMap["username"].(string); ok {
		claims.Username = username
	}
	if iat, ok := claimsMap["iat"].(float64); ok {
		claims.IssuedAt = int64(iat)
	}
	if exp, ok := claimsMap["exp"].(float64); ok {
		claims.ExpiresAt = int64(exp)
	}

	if zkRaw, ok := claimsMap["zk"].(map[string]interface{}); ok {
		claims.ZK = &ZKClaims{}
		if scheme, ok := zkRaw["scheme"].(string); ok {
			claims.ZK.Scheme = scheme
		}
		if grp, ok := zkRaw["grp"].(string); ok {
			claims.ZK.Group = grp
		}
		if mHash, ok := zkRaw["m_hash"].(string); ok {
			claims.ZK.MsgHash = mHash
		}
		if provedAt, ok := zkRaw["iat_zkp"].(float64); ok {
			claims.ZK.ProvedAt = int64(provedAt)
		}
	}

	for k, v := range claimsMap {
		switch k {
		case "iss", "sub", "aud", "username", "iat", "exp", "zk":
		default:
			claims.Extra[k] = v
		}
	}

	return claims, nil
}

// MintSessionToken creates the session credential issued after a verified
// proof. The zk claim block records the group, the scheme, a hash of the
// authenticated message, and the proof's embedded timestamp, so downstream
// services can gate on how the session was established.
func MintSessionToken(
	signer TokenSigner,
	issuer, subject, audience, username string,
	message []byte,
	provedAt int64,
	groupName string,
	ttl time.Duration,
) (string, error) {
	now := time.Now()
	msgHash := sha256.Sum256(message)

	claims := map[string]interface{}{
		"iss":      issuer,
		"sub":      subject,
		"aud":      audience,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
		"zk": map[string]interface{}{
			"scheme":  SchemeSchnorrZKP,
			"grp":     groupName,
			"m_hash":  base64.StdEncoding.EncodeToString(msgHash[:]),
			"iat_zkp": provedAt,
		},
	}

	return signer.Sign(claims)
}

// GeneratePairwiseSubject derives a deterministic but opaque subject
// identifier from a public key and an audience, so subjects cannot be
// correlated across audiences.
func GeneratePairwiseSubject(pk []byte, audience string) string {
	h := sha256.New()
	h.Write([]byte("zkauth/1/sub"))
	h.Write(pk)
	h.Write([]byte(audience))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

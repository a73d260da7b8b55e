package client

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/i-dipanshu/secure-files-sub000/pkg/authmsg"
	"github.com/i-dipanshu/secure-files-sub000/pkg/crypto/curve"
	"github.com/i-dipanshu/secure-files-sub000/pkg/crypto/schnorr"
)

// Client drives the registration and login flows against an authentication
// server. The private scalar is generated locally, kept in the keystore, and
// never transmitted.
type Client struct {
	baseURL  string
	curve    curve.Curve
	keystore Keystore
	http     *http.Client
	rand     io.Reader

	// now is swapped in tests.
	now func() time.Time
}

// New creates a client for the server at baseURL.
func New(baseURL string, crv curve.Curve, keystore Keystore) *Client {
	return &Client{
		baseURL:  baseURL,
		curve:    crv,
		keystore: keystore,
		http:     &http.Client{Timeout: 30 * time.Second},
		rand:     rand.Reader,
		now:      time.Now,
	}
}

type registerRequest struct {
	Username  string                 `json:"username"`
	Email     string                 `json:"email"`
	PublicKey string                 `json:"public_key"`
	Proof     *schnorr.ProofEnvelope `json:"proof"`
}

type loginRequest struct {
	Username string                 `json:"username"`
	Proof    *schnorr.ProofEnvelope `json:"proof"`
}

// LoginResult carries the proof that was presented and the session token
// the server minted for it.
type LoginResult struct {
	Proof       *schnorr.ProofEnvelope
	AccessToken string
	ExpiresIn   int64
}

// RegisterIdentity generates a fresh key pair, persists the private scalar
// in the keystore, and registers the public key under the given identity.
// It returns the key pair and the public key encoding sent to the server.
func (c *Client) RegisterIdentity(identity, email string) (*schnorr.KeyPair, string, error) {
	keyPair, err := schnorr.GenerateKeyPair(c.curve, c.rand)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate key pair: %w", err)
	}

	if err := c.keystore.Store(hex.EncodeToString(keyPair.Private.Bytes())); err != nil {
		return nil, "", fmt.Errorf("failed to persist private key: %w", err)
	}

	pk, err := schnorr.EncodePublicKey(keyPair.Public)
	if err != nil {
		return nil, "", err
	}

	proof, err := c.prove(keyPair.Private, identity)
	if err != nil {
		return nil, "", err
	}

	status, body, err := c.post("/auth/register", registerRequest{
		Username:  identity,
		Email:     email,
		PublicKey: pk,
		Proof:     proof,
	})
	if err != nil {
		return nil, "", err
	}
	if status != http.StatusCreated {
		return nil, "", fmt.Errorf("registration rejected: %d %s", status, body)
	}

	return keyPair, pk, nil
}

// Authenticate proves knowledge of the stored private scalar for the given
// identity and returns the proof together with the minted session token.
func (c *Client) Authenticate(identity string) (*LoginResult, error) {
	scalarHex, err := c.keystore.Retrieve()
	if err != nil {
		return nil, err
	}

	scalarBytes, err := hex.DecodeString(scalarHex)
	if err != nil {
		return nil, fmt.Errorf("stored key is not valid hex: %w", err)
	}

	private, err := c.curve.ParseScalar(scalarBytes)
	if err != nil {
		return nil, fmt.Errorf("stored key is not a valid scalar: %w", err)
	}

	proof, err := c.prove(private, identity)
	if err != nil {
		return nil, err
	}

	status, body, err := c.post("/auth/login", loginRequest{
		Username: identity,
		Proof:    proof,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("login rejected: %d %s", status, body)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}

	return &LoginResult{
		Proof:       proof,
		AccessToken: resp.AccessToken,
		ExpiresIn:   resp.ExpiresIn,
	}, nil
}

// Logout clears the keystore and notifies the server.
func (c *Client) Logout() error {
	if _, _, err := c.post("/auth/logout", struct{}{}); err != nil {
		return err
	}
	return c.keystore.Clear()
}

func (c *Client) prove(private curve.Scalar, identity string) (*schnorr.ProofEnvelope, error) {
	message := authmsg.Build(identity, c.now().Unix())

	proof, err := schnorr.Prove(c.curve, c.rand, private, message)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof: %w", err)
	}

	return schnorr.EncodeProof(proof)
}

func (c *Client) post(path string, payload interface{}) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, bytes.TrimSpace(body), nil
}

// Package schnorr implements non-interactive Schnorr proofs of knowledge of
// a discrete logarithm, used to authenticate users without ever transmitting
// or storing a secret.
//
// A prover holding private scalar x with public point P = x*G convinces the
// verifier as follows:
//
//  1. Draw a fresh random nonce r and commit to R = r*G.
//  2. Derive the challenge c = H(R || P || m) mod n (Fiat-Shamir: the hash of
//     the transcript stands in for the verifier's random challenge).
//  3. Respond with s = r + c*x mod n.
//
// The verifier accepts when s*G == R + c*P, which holds exactly when the
// response was formed with the discrete log of P:
//
//	s*G = (r + c*x)*G = r*G + c*(x*G) = R + c*P
//
// The nonce r must be drawn fresh from a CSPRNG for every proof. Reusing r
// across two proofs with the same key lets an observer solve
// x = (s1 - s2)/(c1 - c2) mod n and recover the private key.
package schnorr

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/i-dipanshu/secure-files-sub000/pkg/crypto/curve"
)

// ErrEntropyFailure wraps failures of the injected randomness source.
// Key and proof generation fail loudly instead of degrading to weak output.
var ErrEntropyFailure = errors.New("entropy failure")

// KeyPair holds a private scalar and its public point P = x*G. The private
// scalar is generated client-side and never leaves the client; only the
// public point is registered with the service.
type KeyPair struct {
	Private curve.Scalar
	Public  curve.Point
}

// Proof is the non-interactive proof tuple. It is immutable once produced
// and conceptually single-use: the verifier-side freshness policy rejects a
// second presentation of the same message.
type Proof struct {
	Commitment curve.Point  // R = r*G
	Challenge  curve.Scalar // c = H(R || P || m) mod n
	Response   curve.Scalar // s = r + c*x mod n
	Message    []byte       // m, the authenticated message
}

// GenerateKeyPair draws a private scalar uniformly from [1, n-1] using the
// provided CSPRNG and derives the matching public point.
func GenerateKeyPair(crv curve.Curve, rand io.Reader) (*KeyPair, error) {
	private, err := crv.GenerateScalar(rand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyFailure, err)
	}

	public := crv.ScalarBaseMult(private)
	if public == nil || public.IsIdentity() {
		return nil, errors.New("derived public point is degenerate")
	}

	return &KeyPair{Private: private, Public: public}, nil
}

// Challenge derives the Fiat-Shamir challenge scalar:
//
//	c = SHA-256(R.coords || P.coords || message) mod n
//
// Coordinates are serialized fixed-width big-endian (32 bytes each for
// secp256k1), so both sides of the protocol produce byte-identical digests.
// There is deliberately no domain prefix: the encoding must match the wire
// protocol's reference verifier bit for bit.
func Challenge(crv curve.Curve, R, P curve.Point, message []byte) (curve.Scalar, error) {
	h := sha256.New()
	h.Write(R.TranscriptBytes())
	h.Write(P.TranscriptBytes())
	h.Write(message)

	c := new(big.Int).SetBytes(h.Sum(nil))
	c.Mod(c, crv.Order())

	// c == 0 happens with probability ~2^-256; treated as a malformed input
	// rather than given a special scalar representation.
	return crv.ParseScalar(c.FillBytes(make([]byte, 32)))
}

// Prove creates a proof that the caller knows the private scalar, binding it
// to the given message. A fresh nonce is drawn from rand on every call.
func Prove(crv curve.Curve, rand io.Reader, private curve.Scalar, message []byte) (*Proof, error) {
	// GenerateScalar already retries zero draws; the loop guards against a
	// backend returning a degenerate commitment anyway.
	var (
		nonce      curve.Scalar
		commitment curve.Point
	)
	for {
		var err error
		nonce, err = crv.GenerateScalar(rand)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEntropyFailure, err)
		}

		commitment = crv.ScalarBaseMult(nonce)
		if commitment != nil && !commitment.IsIdentity() {
			break
		}
	}

	public := crv.ScalarBaseMult(private)
	if public == nil {
		return nil, errors.New("invalid private scalar")
	}

	challenge, err := Challenge(crv, commitment, public, message)
	if err != nil {
		return nil, err
	}

	// s = r + c*x mod n
	s := new(big.Int).Mul(challenge.BigInt(), private.BigInt())
	s.Add(s, nonce.BigInt())
	s.Mod(s, crv.Order())

	response, err := crv.ParseScalar(s.FillBytes(make([]byte, 32)))
	if err != nil {
		return nil, err
	}

	msg := make([]byte, len(message))
	copy(msg, message)

	return &Proof{
		Commitment: commitment,
		Challenge:  challenge,
		Response:   response,
		Message:    msg,
	}, nil
}

// Verify checks a proof against the claimed public point. It is a pure
// function of public data and returns a single accept/reject bit: callers
// never learn whether the challenge recomputation or the group equation
// failed, so a rejected proof yields no oracle.
func Verify(crv curve.Curve, proof *Proof, public curve.Point) bool {
	if proof == nil || proof.Commitment == nil || proof.Challenge == nil || proof.Response == nil {
		return false
	}
	if crv.ValidatePoint(public) != nil || crv.ValidatePoint(proof.Commitment) != nil {
		return false
	}

	// Recompute c' = H(R || P || m) and check it matches the proof's
	// challenge. A mismatch catches tampering with R, P, or the message.
	expected, err := Challenge(crv, proof.Commitment, public, proof.Message)
	challengeOK := err == nil && expected.BigInt().Cmp(proof.Challenge.BigInt()) == 0

	// Check s*G == R + c*P. Both checks always run so the reject path is
	// indistinguishable regardless of which one failed.
	left := crv.ScalarBaseMult(proof.Response)
	right := crv.Add(proof.Commitment, crv.ScalarMult(public, proof.Challenge))
	equationOK := left != nil && right != nil && left.Equal(right)

	return challengeOK && equationOK
}

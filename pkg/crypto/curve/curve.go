// Package curve abstracts the prime-order group arithmetic underneath the
// Schnorr authentication protocol.
//
// Two groups are supported:
//
//   - secp256k1: the Bitcoin/Ethereum curve. Points serialize to 33 bytes
//     compressed or 65 bytes uncompressed; scalars are 32 bytes big-endian.
//   - ristretto255: a prime-order group over Curve25519 with a canonical
//     32-byte point encoding and no cofactor pitfalls.
//
// All scalar arithmetic is modulo the group order n. The hardness of the
// discrete logarithm problem (given P = x*G, recovering x) is the security
// assumption the whole protocol rests on.
package curve

import (
	"errors"
	"io"
	"math/big"
)

// Point is an element of the group: an (x, y) pair on the curve or the
// identity element. The identity is rejected wherever a public key or a
// commitment is expected.
type Point interface {
	// Bytes returns the canonical transport encoding of the point
	// (33-byte compressed for secp256k1, 32-byte canonical for ristretto255).
	Bytes() []byte

	// TranscriptBytes returns the fixed-width encoding that is hashed into
	// Fiat-Shamir challenges. For secp256k1 this is the 32-byte big-endian
	// x-coordinate followed by the 32-byte big-endian y-coordinate (64 bytes
	// total); for ristretto255 it is the canonical 32-byte encoding.
	TranscriptBytes() []byte

	// Equal reports whether two points are the same group element.
	Equal(other Point) bool

	// IsIdentity reports whether the point is the identity element.
	IsIdentity() bool
}

// Scalar is an integer in [1, n-1], always reduced modulo the group order.
// Scalars serve as private keys, nonces, challenges, and responses.
type Scalar interface {
	// Bytes returns the 32-byte big-endian encoding of the scalar.
	Bytes() []byte

	// BigInt returns a copy of the scalar as a big.Int.
	BigInt() *big.Int
}

// Curve bundles the group operations the protocol needs. Implementations
// must reject off-curve points, identity elements, and out-of-range scalars
// at the parsing boundary so the layers above never see them.
type Curve interface {
	// Name returns the group identifier ("secp256k1" or "ristretto255").
	Name() string

	// ParsePoint deserializes and validates a point encoding.
	ParsePoint(b []byte) (Point, error)

	// ParseScalar deserializes a 32-byte big-endian scalar and rejects
	// values outside [1, n-1].
	ParseScalar(b []byte) (Scalar, error)

	// ScalarBaseMult computes s*G.
	ScalarBaseMult(s Scalar) Point

	// ScalarMult computes s*P.
	ScalarMult(p Point, s Scalar) Point

	// Add computes P + Q.
	Add(p, q Point) Point

	// Order returns n, the order of the group.
	Order() *big.Int

	// GenerateScalar draws a uniformly random scalar in [1, n-1] from rand.
	// rand must be a cryptographically secure source; an exhausted or failing
	// source returns an error rather than a weak scalar.
	GenerateScalar(rand io.Reader) (Scalar, error)

	// ValidatePoint rejects points that are off the curve or the identity.
	ValidatePoint(p Point) error
}

var (
	// ErrInvalidPoint indicates a malformed point encoding.
	ErrInvalidPoint = errors.New("invalid point")

	// ErrInvalidScalar indicates a malformed or out-of-range scalar.
	ErrInvalidScalar = errors.New("invalid scalar")

	// ErrIdentityPoint indicates the identity element where a real point is required.
	ErrIdentityPoint = errors.New("point is identity")

	// ErrPointNotOnCurve indicates coordinates that do not satisfy the curve equation.
	ErrPointNotOnCurve = errors.New("point is not on curve")
)

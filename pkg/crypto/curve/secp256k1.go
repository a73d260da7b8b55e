package curve

import (
	"fmt"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Secp256k1Point wraps a btcec public key as a group element.
type Secp256k1Point struct {
	point *btcec.PublicKey
}

// Bytes returns the 33-byte compressed encoding.
func (p *Secp256k1Point) Bytes() []byte {
	if p == nil || p.point == nil {
		return nil
	}
	return p.point.SerializeCompressed()
}

// TranscriptBytes returns x||y, each coordinate 32 bytes big-endian.
func (p *Secp256k1Point) TranscriptBytes() []byte {
	if p == nil || p.point == nil {
		return nil
	}
	out := make([]byte, 64)
	p.point.X().FillBytes(out[:32])
	p.point.Y().FillBytes(out[32:])
	return out
}

// Equal reports whether two points are identical.
func (p *Secp256k1Point) Equal(other Point) bool {
	o, ok := other.(*Secp256k1Point)
	if !ok {
		return false
	}
	if p.point == nil || o.point == nil {
		return p.point == nil && o.point == nil
	}
	return p.point.IsEqual(o.point)
}

// IsIdentity reports whether the point is the point at infinity. btcec never
// produces it from a valid encoding, so only the nil sentinel qualifies.
func (p *Secp256k1Point) IsIdentity() bool {
	return p == nil || p.point == nil
}

// Secp256k1Scalar is an integer modulo the secp256k1 group order.
type Secp256k1Scalar struct {
	scalar *big.Int
}

// Bytes returns the 32-byte big-endian encoding.
func (s *Secp256k1Scalar) Bytes() []byte {
	if s == nil || s.scalar == nil {
		return nil
	}
	return s.scalar.FillBytes(make([]byte, 32))
}

// BigInt returns a copy of the scalar value.
func (s *Secp256k1Scalar) BigInt() *big.Int {
	return new(big.Int).Set(s.scalar)
}

// Secp256k1Curve implements Curve for secp256k1 on top of btcec.
type Secp256k1Curve struct{}

// NewSecp256k1 returns the secp256k1 group.
func NewSecp256k1() Curve {
	return &Secp256k1Curve{}
}

// Name returns "secp256k1".
func (c *Secp256k1Curve) Name() string {
	return "secp256k1"
}

// ParsePoint accepts 33-byte compressed or 65-byte uncompressed encodings.
func (c *Secp256k1Curve) ParsePoint(b []byte) (Point, error) {
	if len(b) == 0 {
		return nil, ErrInvalidPoint
	}

	pubKey, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}

	point := &Secp256k1Point{point: pubKey}
	if err := c.ValidatePoint(point); err != nil {
		return nil, err
	}
	return point, nil
}

// ParseScalar parses a 32-byte big-endian scalar in [1, n-1].
func (c *Secp256k1Curve) ParseScalar(b []byte) (Scalar, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidScalar, len(b))
	}

	scalar := new(big.Int).SetBytes(b)
	if scalar.Sign() <= 0 || scalar.Cmp(c.Order()) >= 0 {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidScalar)
	}
	return &Secp256k1Scalar{scalar: scalar}, nil
}

// ScalarBaseMult computes s*G.
func (c *Secp256k1Curve) ScalarBaseMult(s Scalar) Point {
	sc, ok := s.(*Secp256k1Scalar)
	if !ok || sc.scalar == nil {
		return nil
	}

	_, pubKey := btcec.PrivKeyFromBytes(sc.Bytes())
	return &Secp256k1Point{point: pubKey}
}

// ScalarMult computes s*P.
func (c *Secp256k1Curve) ScalarMult(p Point, s Scalar) Point {
	pt, ok := p.(*Secp256k1Point)
	if !ok || pt.point == nil {
		return nil
	}
	sc, ok := s.(*Secp256k1Scalar)
	if !ok || sc.scalar == nil {
		return nil
	}

	rx, ry := btcec.S256().ScalarMult(pt.point.X(), pt.point.Y(), sc.scalar.Bytes())
	return pointFromCoords(rx, ry)
}

// Add computes P + Q.
func (c *Secp256k1Curve) Add(p, q Point) Point {
	pp, ok := p.(*Secp256k1Point)
	if !ok || pp.point == nil {
		return nil
	}
	qq, ok := q.(*Secp256k1Point)
	if !ok || qq.point == nil {
		return nil
	}

	rx, ry := btcec.S256().Add(pp.point.X(), pp.point.Y(), qq.point.X(), qq.point.Y())
	return pointFromCoords(rx, ry)
}

// Order returns the secp256k1 group order n.
func (c *Secp256k1Curve) Order() *big.Int {
	return btcec.S256().N
}

// GenerateScalar draws a uniform scalar in [1, n-1] by rejection sampling.
func (c *Secp256k1Curve) GenerateScalar(rand io.Reader) (Scalar, error) {
	var buf [32]byte
	for {
		if _, err := io.ReadFull(rand, buf[:]); err != nil {
			return nil, fmt.Errorf("entropy source failed: %w", err)
		}

		k := new(big.Int).SetBytes(buf[:])
		if k.Sign() == 0 || k.Cmp(c.Order()) >= 0 {
			continue
		}
		return &Secp256k1Scalar{scalar: k}, nil
	}
}

// ValidatePoint rejects the identity and anything off the curve.
func (c *Secp256k1Curve) ValidatePoint(p Point) error {
	pt, ok := p.(*Secp256k1Point)
	if !ok {
		return ErrInvalidPoint
	}
	if pt.IsIdentity() {
		return ErrIdentityPoint
	}
	if !btcec.S256().IsOnCurve(pt.point.X(), pt.point.Y()) {
		return ErrPointNotOnCurve
	}
	return nil
}

// pointFromCoords rebuilds a btcec key from affine coordinates via the
// uncompressed encoding. (nil, nil) from the underlying math maps to nil,
// which upper layers treat as the identity.
func pointFromCoords(x, y *big.Int) Point {
	if x == nil || y == nil || (x.Sign() == 0 && y.Sign() == 0) {
		return nil
	}

	enc := make([]byte, 65)
	enc[0] = 0x04
	x.FillBytes(enc[1:33])
	y.FillBytes(enc[33:])

	pubKey, err := btcec.ParsePubKey(enc)
	if err != nil {
		return nil
	}
	return &Secp256k1Point{point: pubKey}
}

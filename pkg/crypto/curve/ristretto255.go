package curve

import (
	"fmt"
	"io"
	"math/big"

	"github.com/gtank/ristretto255"
)

// Ristretto255Point is an element of the Ristretto255 prime-order group.
type Ristretto255Point struct {
	point *ristretto255.Element
}

// Bytes returns the canonical 32-byte encoding.
func (p *Ristretto255Point) Bytes() []byte {
	if p == nil || p.point == nil {
		return nil
	}

	encoded := p.point.Encode(nil)
	out := make([]byte, len(encoded))
	copy(out, encoded)
	return out
}

// TranscriptBytes returns the canonical encoding; Ristretto points have no
// affine coordinates, so the 32-byte encoding doubles as the transcript form.
func (p *Ristretto255Point) TranscriptBytes() []byte {
	return p.Bytes()
}

// Equal reports whether two points are identical.
func (p *Ristretto255Point) Equal(other Point) bool {
	o, ok := other.(*Ristretto255Point)
	if !ok {
		return false
	}
	switch {
	case p == nil && o == nil:
		return true
	case p == nil || o == nil:
		return false
	}
	return p.point.Equal(o.point) == 1
}

// IsIdentity reports whether the point is the identity element.
func (p *Ristretto255Point) IsIdentity() bool {
	if p == nil || p.point == nil {
		return true
	}
	return p.point.Equal(ristretto255.NewIdentityElement()) == 1
}

// Ristretto255Scalar is an integer modulo the Ristretto255 group order.
type Ristretto255Scalar struct {
	scalar *ristretto255.Scalar
}

// Bytes returns the 32-byte big-endian encoding (converted from the
// library's internal little-endian form).
func (s *Ristretto255Scalar) Bytes() []byte {
	if s == nil || s.scalar == nil {
		return nil
	}

	le := s.scalar.Bytes()
	be := make([]byte, len(le))
	for i := range le {
		be[len(le)-1-i] = le[i]
	}
	return be
}

// BigInt returns the scalar value as a big.Int.
func (s *Ristretto255Scalar) BigInt() *big.Int {
	if s == nil || s.scalar == nil {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(s.Bytes())
}

// Ristretto255Curve implements Curve for the Ristretto group.
type Ristretto255Curve struct{}

// NewRistretto255 returns the ristretto255 group.
func NewRistretto255() Curve {
	return &Ristretto255Curve{}
}

// Name returns "ristretto255".
func (c *Ristretto255Curve) Name() string {
	return "ristretto255"
}

// ParsePoint decodes a canonical 32-byte Ristretto encoding.
func (c *Ristretto255Curve) ParsePoint(b []byte) (Point, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidPoint, len(b))
	}

	elem := ristretto255.NewIdentityElement()
	if _, err := elem.SetCanonicalBytes(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return &Ristretto255Point{point: elem}, nil
}

// ParseScalar decodes a 32-byte big-endian scalar in [1, n-1].
func (c *Ristretto255Curve) ParseScalar(b []byte) (Scalar, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidScalar, len(b))
	}

	bi := new(big.Int).SetBytes(b)
	if bi.Sign() <= 0 || bi.Cmp(c.Order()) >= 0 {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidScalar)
	}

	be := bi.FillBytes(make([]byte, 32))
	le := make([]byte, 32)
	for i := range be {
		le[i] = be[len(be)-1-i]
	}

	sc := ristretto255.NewScalar()
	if _, err := sc.SetCanonicalBytes(le); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	return &Ristretto255Scalar{scalar: sc}, nil
}

// ScalarBaseMult returns s*B for the canonical generator B.
func (c *Ristretto255Curve) ScalarBaseMult(s Scalar) Point {
	sc, ok := s.(*Ristretto255Scalar)
	if !ok || sc.scalar == nil {
		return nil
	}

	elem := ristretto255.NewIdentityElement()
	elem.ScalarBaseMult(sc.scalar)
	return &Ristretto255Point{point: elem}
}

// ScalarMult computes s*P.
func (c *Ristretto255Curve) ScalarMult(p Point, s Scalar) Point {
	pt, ok := p.(*Ristretto255Point)
	if !ok || pt.point == nil {
		return nil
	}
	sc, ok := s.(*Ristretto255Scalar)
	if !ok || sc.scalar == nil {
		return nil
	}

	elem := ristretto255.NewIdentityElement()
	elem.ScalarMult(sc.scalar, pt.point)
	return &Ristretto255Point{point: elem}
}

// Add returns P + Q.
func (c *Ristretto255Curve) Add(p, q Point) Point {
	pp, ok := p.(*Ristretto255Point)
	if !ok || pp.point == nil {
		return nil
	}
	qq, ok := q.(*Ristretto255Point)
	if !ok || qq.point == nil {
		return nil
	}

	elem := ristretto255.NewIdentityElement()
	elem.Add(pp.point, qq.point)
	return &Ristretto255Point{point: elem}
}

// Order returns l = 2^252 + 27742317777372353535851937790883648493.
func (c *Ristretto255Curve) Order() *big.Int {
	order := new(big.Int).Lsh(big.NewInt(1), 252)
	addend, _ := new(big.Int).SetString("27742317777372353535851937790883648493", 10)
	return order.Add(order, addend)
}

// GenerateScalar derives a uniform scalar from 64 bytes of rand, retrying the
// (negligible-probability) zero outcome.
func (c *Ristretto255Curve) GenerateScalar(rand io.Reader) (Scalar, error) {
	seed := make([]byte, 64)
	for {
		if _, err := io.ReadFull(rand, seed); err != nil {
			return nil, fmt.Errorf("entropy source failed: %w", err)
		}

		sc := ristretto255.NewScalar()
		if _, err := sc.SetUniformBytes(seed); err != nil {
			return nil, fmt.Errorf("failed to derive scalar: %w", err)
		}
		if sc.Equal(ristretto255.NewScalar()) == 1 {
			continue
		}
		return &Ristretto255Scalar{scalar: sc}, nil
	}
}

// ValidatePoint ensures the point is well-formed and not the identity.
func (c *Ristretto255Curve) ValidatePoint(p Point) error {
	pt, ok := p.(*Ristretto255Point)
	if !ok || pt.point == nil {
		return ErrInvalidPoint
	}
	if pt.IsIdentity() {
		return ErrIdentityPoint
	}
	return nil
}

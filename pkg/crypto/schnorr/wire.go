package schnorr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/i-dipanshu/secure-files-sub000/pkg/crypto/curve"
)

// ErrInvalidEncoding indicates a malformed hex field, a wrong-length value,
// or coordinates that do not describe a valid curve point. Inputs are
// rejected, never coerced.
var ErrInvalidEncoding = errors.New("invalid encoding")

// ProofEnvelope is the JSON wire format exchanged with the authentication
// service. Numeric fields are big-endian integers, zero-padded to 32 bytes
// (64 hex characters) and prefixed with "0x"; the prefix is optional on
// input. The message travels as a UTF-8 string.
type ProofEnvelope struct {
	CommitmentX string `json:"commitment_x"`
	CommitmentY string `json:"commitment_y"`
	Response    string `json:"response"`
	Challenge   string `json:"challenge"`
	Message     string `json:"message"`
}

// EncodeProof serializes a proof into the wire envelope. The envelope's
// coordinate fields require an affine x/y split, so only groups with a
// 64-byte coordinate encoding (secp256k1) are representable.
func EncodeProof(proof *Proof) (*ProofEnvelope, error) {
	if proof == nil || proof.Commitment == nil {
		return nil, ErrInvalidEncoding
	}

	coords := proof.Commitment.TranscriptBytes()
	if len(coords) != 64 {
		return nil, fmt.Errorf("%w: group has no affine coordinate encoding", ErrInvalidEncoding)
	}

	return &ProofEnvelope{
		CommitmentX: encodeHexValue(coords[:32]),
		CommitmentY: encodeHexValue(coords[32:]),
		Response:    encodeHexValue(proof.Response.Bytes()),
		Challenge:   encodeHexValue(proof.Challenge.Bytes()),
		Message:     string(proof.Message),
	}, nil
}

// DecodeProof parses and validates a wire envelope into a Proof. The
// commitment coordinates must describe a point on the curve; scalars must be
// in range.
func DecodeProof(crv curve.Curve, env *ProofEnvelope) (*Proof, error) {
	if env == nil {
		return nil, ErrInvalidEncoding
	}

	x, err := decodeHexValue(env.CommitmentX)
	if err != nil {
		return nil, err
	}
	y, err := decodeHexValue(env.CommitmentY)
	if err != nil {
		return nil, err
	}

	// 0x04 || x || y is the uncompressed SEC1 form the curve parser accepts.
	enc := make([]byte, 0, 65)
	enc = append(enc, 0x04)
	enc = append(enc, x...)
	enc = append(enc, y...)

	commitment, err := crv.ParsePoint(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	challengeBytes, err := decodeHexValue(env.Challenge)
	if err != nil {
		return nil, err
	}
	challenge, err := crv.ParseScalar(challengeBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	responseBytes, err := decodeHexValue(env.Response)
	if err != nil {
		return nil, err
	}
	response, err := crv.ParseScalar(responseBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	return &Proof{
		Commitment: commitment,
		Challenge:  challenge,
		Response:   response,
		Message:    []byte(env.Message),
	}, nil
}

// EncodePublicKey returns the registration encoding of a public point:
// uncompressed SEC1, "04" followed by the 64-hex-char x and y coordinates.
func EncodePublicKey(p curve.Point) (string, error) {
	if p == nil {
		return "", ErrInvalidEncoding
	}

	coords := p.TranscriptBytes()
	if len(coords) != 64 {
		return "", fmt.Errorf("%w: group has no affine coordinate encoding", ErrInvalidEncoding)
	}
	return "04" + hex.EncodeToString(coords), nil
}

// DecodePublicKey parses the uncompressed public key encoding and validates
// the point. An optional "0x" prefix is tolerated.
func DecodePublicKey(crv curve.Curve, s string) (curve.Point, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 130 || !strings.HasPrefix(s, "04") {
		return nil, fmt.Errorf("%w: expected uncompressed public key (04 + 128 hex chars)", ErrInvalidEncoding)
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	point, err := crv.ParsePoint(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return point, nil
}

// encodeHexValue renders a 32-byte value as 0x-prefixed, zero-padded hex.
func encodeHexValue(b []byte) string {
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return "0x" + hex.EncodeToString(padded)
}

// decodeHexValue parses a big-endian hex value with an optional 0x prefix
// into a 32-byte buffer. Values shorter than 64 chars are left-padded;
// senders that strip leading zeros remain parseable.
func decodeHexValue(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) == 0 || len(s) > 64 {
		return nil, fmt.Errorf("%w: expected up to 64 hex chars, got %d", ErrInvalidEncoding, len(s))
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	padded := make([]byte, 32)
	copy(padded[32-len(raw):], raw)
	return padded, nil
}

// Package authmsg builds and parses the authenticated message that binds an
// identity and a freshness timestamp into a proof. The encoding is canonical
// and deterministic: both sides of the protocol must derive byte-identical
// messages for challenge recomputation to succeed.
package authmsg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Prefix tags every authentication message.
const Prefix = "ZKP_AUTH"

// ErrMalformed indicates a message that does not follow the
// ZKP_AUTH:<identity>:<unix_ts> layout.
var ErrMalformed = errors.New("malformed authentication message")

// Build produces the canonical message ZKP_AUTH:<identity>:<unix_ts>.
// Two calls with identical inputs return byte-identical output.
func Build(identity string, unixTS int64) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", Prefix, identity, unixTS))
}

// Parse recovers the identity and timestamp from a message produced by
// Build. The timestamp is everything after the final colon, so identities
// containing colons survive the round trip.
func Parse(message []byte) (identity string, unixTS int64, err error) {
	s := string(message)
	if !strings.HasPrefix(s, Prefix+":") {
		return "", 0, ErrMalformed
	}

	rest := s[len(Prefix)+1:]
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 {
		return "", 0, ErrMalformed
	}

	identity = rest[:i]
	unixTS, err = strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return identity, unixTS, nil
}

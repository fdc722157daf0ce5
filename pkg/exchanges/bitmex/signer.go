package bitmex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"
)

// Signer computes BitMEX API request signatures. It stores the secret as
// []byte to allow memory wiping, and is stateless apart from the secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer for the given API secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the lowercase hex HMAC-SHA256 of verb + path + nonce + body,
// keyed by the secret. The path must be the full request path, including the
// query string for read requests; body is empty for reads. The digest is
// always 64 hex characters.
func (s *Signer) Sign(verb, path string, nonce int64, body string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(verb))
	mac.Write([]byte(path))
	mac.Write([]byte(strconv.FormatInt(nonce, 10)))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// Wipe clears the secret from memory. The signer is unusable afterwards.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	for i := range s.secret {
		s.secret[i] = 0
	}
}

// nonceSource produces strictly increasing nonces derived from wall-clock
// milliseconds. The ratchet guards against repeated calls within one
// millisecond and against the clock stepping backward: a candidate at or
// below the last issued value is bumped to last+1.
type nonceSource struct {
	last atomic.Int64
}

// Next returns the next nonce.
func (n *nonceSource) Next() int64 {
	for {
		candidate := time.Now().UnixMilli()
		last := n.last.Load()
		if candidate <= last {
			candidate = last + 1
		}
		if n.last.CompareAndSwap(last, candidate) {
			return candidate
		}
	}
}

// Package crypto signs and verifies the actor tokens a trusted gateway
// attaches to API requests.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrBadSignature is returned when a signature does not match the actor
	// and timestamp it was presented with.
	ErrBadSignature = errors.New("crypto: bad signature")
	// ErrStaleTimestamp is returned when the signed timestamp is outside the
	// allowed skew.
	ErrStaleTimestamp = errors.New("crypto: stale timestamp")
)

// ActorSigner holds the secret shared with the identity gateway.
type ActorSigner struct {
	secret []byte
	skew   time.Duration
}

// NewActorSigner creates an ActorSigner. skew bounds how far a signed
// timestamp may drift from the verifier's clock in either direction.
func NewActorSigner(secret string, skew time.Duration) *ActorSigner {
	if skew <= 0 {
		skew = 5 * time.Minute
	}
	return &ActorSigner{secret: []byte(secret), skew: skew}
}

// Sign returns base64(HMAC-SHA256(secret, actor + "." + unixTS)).
func (s *ActorSigner) Sign(actorID string, unixTS int64) string {
	return hmacSHA256Base64(s.secret, message(actorID, unixTS))
}

// Headers returns the header values a gateway sends for actorID at time at:
// X-Actor-ID, X-Actor-Timestamp and X-Actor-Signature.
func (s *ActorSigner) Headers(actorID string, at time.Time) map[string]string {
	ts := at.Unix()
	return map[string]string{
		"X-Actor-ID":        actorID,
		"X-Actor-Timestamp": strconv.FormatInt(ts, 10),
		"X-Actor-Signature": s.Sign(actorID, ts),
	}
}

// Verify checks a presented signature. The timestamp is the decimal unix
// seconds string from the request; now is the verifier's clock.
func (s *ActorSigner) Verify(actorID, timestamp, signature string, now time.Time) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("crypto: parse timestamp %q: %w", timestamp, ErrBadSignature)
	}
	drift := now.Sub(time.Unix(ts, 0))
	if drift > s.skew || drift < -s.skew {
		return fmt.Errorf("crypto: timestamp drift %s: %w", drift.Truncate(time.Second), ErrStaleTimestamp)
	}

	presented, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(message(actorID, ts)))
	if !hmac.Equal(presented, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}

// String returns a redacted representation suitable for logging.
func (s *ActorSigner) String() string {
	return fmt.Sprintf("ActorSigner{secret=****, skew=%s}", s.skew)
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func message(actorID string, unixTS int64) string {
	return actorID + "." + strconv.FormatInt(unixTS, 10)
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// internal/form/csrf.go
//
// Forms subsystem: stateless CSRF token utilities.
//
// Context
//   Rendered forms embed a hidden "csrf_token" input.  The server verifies it
//   on POST to ensure the request originated from a form it rendered for the
//   same session subject.  The token is stateless:
//
//      base64url( nonce | unixMicro | HMAC_SHA256(secret, subject+nonce+unixMicro) )
//
//   •  nonce: 16 random bytes.
//   •  unixMicro: microseconds since Unix epoch, 8 bytes, big-endian.
//   •  subject: caller-supplied identity (e.g. the user ID), not embedded in
//      the token, so a token minted for one user fails for another.
//
// Workflow
//   •  NewCSRF(key)                  → signer (random key when key is empty).
//   •  Generate(subject)             → token string for the renderer.
//   •  Verify(subject, tok)          → constant-time verify; false on failure.
//
//------------------------------------------------------------------------------

package form

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"time"

	"go.uber.org/zap"
)

const (
	nonceBytes   = 16
	tokenBytes   = nonceBytes + 8 + sha256.Size
	csrfMaxAge   = 2 * time.Hour
	csrfMaxSkew  = time.Minute
	minSecretLen = 32
)

// CSRF signs and verifies form tokens.  Safe for concurrent use.
type CSRF struct {
	secret []byte
	now    func() time.Time
}

// NewCSRF returns a signer keyed by key.  A key shorter than 32 bytes is
// replaced by a random one, which resets on restart.
func NewCSRF(key []byte) *CSRF {
	if len(key) < minSecretLen {
		key = make([]byte, minSecretLen)
		_, _ = rand.Read(key)
		zap.S().Warnw("csrf key missing or short, using ephemeral key")
	}
	return &CSRF{secret: key, now: time.Now}
}

// Generate creates a new token bound to subject.  Call once per render.
func (c *CSRF) Generate(subject string) (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(c.now().UnixMicro()))

	buf := make([]byte, 0, tokenBytes)
	buf = append(buf, nonce...)
	buf = append(buf, ts...)
	buf = append(buf, c.sign(subject, nonce, ts)...)

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verify returns true if tok passes HMAC and age checks for subject.
func (c *CSRF) Verify(subject, tok string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return false
	}

	nonce := raw[:nonceBytes]
	tsBytes := raw[nonceBytes : nonceBytes+8]
	sig := raw[nonceBytes+8:]

	issued := time.UnixMicro(int64(binary.BigEndian.Uint64(tsBytes)))
	now := c.now()
	if now.Sub(issued) > csrfMaxAge || issued.Sub(now) > csrfMaxSkew {
		return false
	}

	return hmac.Equal(sig, c.sign(subject, nonce, tsBytes))
}

func (c *CSRF) sign(subject string, nonce, ts []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	n := make([]byte, 8)
	binary.BigEndian.PutUint64(n, uint64(len(subject)))
	mac.Write(n)
	mac.Write([]byte(subject))
	mac.Write(nonce)
	mac.Write(ts)
	return mac.Sum(nil)
}

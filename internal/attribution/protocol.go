package attribution

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Signer implements the HMAC request protocol for the two public endpoints.
// The collect signature is a freshly computed proof over user, campaign,
// timestamp and nonce. The event signature is computed once by the server at
// collection time and echoed back by the client, so on the event path it is
// a capability token rather than a proof.
type Signer struct {
	secret  []byte
	maxSkew time.Duration
}

// NewSigner creates a Signer. An empty secret is a fatal configuration
// error: without it neither endpoint can be trusted.
func NewSigner(secret string, maxSkew time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}
	return &Signer{secret: []byte(secret), maxSkew: maxSkew}, nil
}

func (s *Signer) sign(msg string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// CollectSignature computes the expected signature for a collect request.
func (s *Signer) CollectSignature(userCode, campaignCode string, authTS int64, nonce string) string {
	return s.sign(fmt.Sprintf("%s|%s|%d|%s", userCode, campaignCode, authTS, nonce))
}

// EventSignature computes the capability signature handed to the client at
// collection time and required on every event submission.
func (s *Signer) EventSignature(userCode, campaignCode, pageviewCode string) string {
	return s.sign(fmt.Sprintf("%s|%s|%s", userCode, campaignCode, pageviewCode))
}

// VerifyCollect checks a collect signature in constant time.
func (s *Signer) VerifyCollect(userCode, campaignCode string, authTS int64, nonce, sig string) bool {
	expected := s.CollectSignature(userCode, campaignCode, authTS, nonce)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// SignatureEqual compares two signature strings in constant time.
func SignatureEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// TimestampFresh reports whether authTS (unix seconds) is within the
// configured skew of now. This bounds replay of the initial collect call;
// the nonce closes the remaining window.
func (s *Signer) TimestampFresh(authTS int64, now time.Time) bool {
	d := now.Sub(time.Unix(authTS, 0))
	if d < 0 {
		d = -d
	}
	return d <= s.maxSkew
}

// NonceTTL is how long a collect nonce must be remembered: the skew window
// on both sides plus slack for clock jitter.
func (s *Signer) NonceTTL() time.Duration {
	return 2*s.maxSkew + time.Minute
}

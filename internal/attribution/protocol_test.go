package attribution

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSigner_RequiresSecret(t *testing.T) {
	_, err := NewSigner("", 0)
	assert.Error(t, err)
}

func TestCollectSignature_MatchesWireFormat(t *testing.T) {
	s, err := NewSigner("topsecret", 0)
	require.NoError(t, err)

	msg := fmt.Sprintf("%s|%s|%d|%s", "u7xk", "CMP-GO-ABCDEFGH12", int64(1700000000), "nonce-1")
	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte(msg))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, s.CollectSignature("u7xk", "CMP-GO-ABCDEFGH12", 1700000000, "nonce-1"))
}

func TestVerifyCollect(t *testing.T) {
	s, err := NewSigner("topsecret", 0)
	require.NoError(t, err)

	sig := s.CollectSignature("u7xk", "CMP-GO-ABCDEFGH12", 1700000000, "nonce-1")
	assert.True(t, s.VerifyCollect("u7xk", "CMP-GO-ABCDEFGH12", 1700000000, "nonce-1", sig))
	assert.False(t, s.VerifyCollect("u7xk", "CMP-GO-ABCDEFGH12", 1700000001, "nonce-1", sig))
	assert.False(t, s.VerifyCollect("u7xk", "CMP-GO-ABCDEFGH12", 1700000000, "nonce-2", sig))
	assert.False(t, s.VerifyCollect("u7xk", "CMP-GO-ABCDEFGH12", 1700000000, "nonce-1", "deadbeef"))
}

func TestEventSignature_CoversPageviewTriple(t *testing.T) {
	s, err := NewSigner("topsecret", 0)
	require.NoError(t, err)

	a := s.EventSignature("u7xk", "CMP-GO-ABCDEFGH12", "xk2q")
	b := s.EventSignature("u7xk", "CMP-GO-ABCDEFGH12", "zz9m")
	assert.NotEqual(t, a, b)
	assert.True(t, SignatureEqual(a, s.EventSignature("u7xk", "CMP-GO-ABCDEFGH12", "xk2q")))
}

func TestTimestampFresh(t *testing.T) {
	s, err := NewSigner("topsecret", 5*time.Minute)
	require.NoError(t, err)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, s.TimestampFresh(now.Unix(), now))
	assert.True(t, s.TimestampFresh(now.Add(-4*time.Minute).Unix(), now))
	assert.True(t, s.TimestampFresh(now.Add(3*time.Minute).Unix(), now))
	assert.False(t, s.TimestampFresh(now.Add(-6*time.Minute).Unix(), now))
	assert.False(t, s.TimestampFresh(now.Add(6*time.Minute).Unix(), now))
	assert.False(t, s.TimestampFresh(0, now))
}

func TestNonceTTL_CoversSkewWindow(t *testing.T) {
	s, err := NewSigner("topsecret", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 11*time.Minute, s.NonceTTL())
}

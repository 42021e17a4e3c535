package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpaqueCodec_RoundTrip(t *testing.T) {
	c, err := NewOpaqueCodec("test-salt")
	require.NoError(t, err)

	for _, id := range []int64{1, 2, 7, 42, 999, 123456789, 1 << 40} {
		token, err := c.Encode(id)
		require.NoError(t, err)
		assert.NotContains(t, token, "-", "tokens must not collide with the composed-code separator")

		got, ok := c.Decode(token)
		assert.True(t, ok)
		assert.Equal(t, id, got)
	}
}

func TestOpaqueCodec_NonSequential(t *testing.T) {
	c, err := NewOpaqueCodec("test-salt")
	require.NoError(t, err)

	a, _ := c.Encode(1)
	b, _ := c.Encode(2)
	assert.NotEqual(t, a, b)
}

func TestOpaqueCodec_SaltChangesTokens(t *testing.T) {
	c1, err := NewOpaqueCodec("salt-one")
	require.NoError(t, err)
	c2, err := NewOpaqueCodec("salt-two")
	require.NoError(t, err)

	t1, _ := c1.Encode(12345)
	t2, _ := c2.Encode(12345)
	assert.NotEqual(t, t1, t2)

	// A token minted under one salt must not decode to the same id elsewhere.
	if id, ok := c2.Decode(t1); ok {
		assert.NotEqual(t, int64(12345), id)
	}
}

func TestOpaqueCodec_DecodeGarbage(t *testing.T) {
	c, err := NewOpaqueCodec("test-salt")
	require.NoError(t, err)

	for _, tok := range []string{"", "!!!", "garbage", "CMP-GO-ABCDEFGH12", "   "} {
		id, ok := c.Decode(tok)
		assert.False(t, ok, "token %q should not decode", tok)
		assert.Zero(t, id)
	}
}

func TestOpaqueCodec_EncodeRejectsNonPositive(t *testing.T) {
	c, err := NewOpaqueCodec("test-salt")
	require.NoError(t, err)

	_, err = c.Encode(0)
	assert.Error(t, err)
	_, err = c.Encode(-5)
	assert.Error(t, err)
}

func TestOpaqueCodec_EmptySalt(t *testing.T) {
	_, err := NewOpaqueCodec("")
	assert.Error(t, err)
}

func TestComposedCode_RoundTrip(t *testing.T) {
	composed := ComposedCode("u7xk", "CMP-GO-ABCDEFGH12", "xk2q")
	assert.Equal(t, "u7xk-CMP-GO-ABCDEFGH12-xk2q", composed)

	user, campaign, pv, ok := SplitComposedCode(composed)
	require.True(t, ok)
	assert.Equal(t, "u7xk", user)
	assert.Equal(t, "CMP-GO-ABCDEFGH12", campaign)
	assert.Equal(t, "xk2q", pv)
}

func TestSplitComposedCode_Malformed(t *testing.T) {
	for _, s := range []string{"", "one", "one-two", "-CMP-GO-AAAA", "a--b"} {
		_, _, _, ok := SplitComposedCode(s)
		assert.False(t, ok, "composed %q should not parse", s)
	}
}

package codes

import (
	"fmt"
	"strings"

	hashids "github.com/speps/go-hashids/v2"
)

// OpaqueCodec reversibly encodes internal numeric ids into short salted
// tokens for use in URLs exchanged with third parties. It hides sequence,
// nothing more; it is not an encryption primitive.
type OpaqueCodec struct {
	h *hashids.HashID
}

// NewOpaqueCodec creates a codec with the given salt. The salt is part of
// the wire contract with affiliate platforms: changing it invalidates every
// token already handed out.
func NewOpaqueCodec(salt string) (*OpaqueCodec, error) {
	if salt == "" {
		return nil, fmt.Errorf("opaque codec salt is required")
	}
	h, err := hashids.NewWithData(&hashids.HashIDData{
		Alphabet:  hashids.DefaultAlphabet,
		Salt:      salt,
		MinLength: 4,
	})
	if err != nil {
		return nil, fmt.Errorf("init hashids: %w", err)
	}
	return &OpaqueCodec{h: h}, nil
}

// Encode turns a positive id into its token.
func (c *OpaqueCodec) Encode(id int64) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("id must be positive, got %d", id)
	}
	token, err := c.h.EncodeInt64([]int64{id})
	if err != nil {
		return "", fmt.Errorf("encode id: %w", err)
	}
	return token, nil
}

// Decode reverses Encode. Malformed or foreign tokens return (0, false),
// never an error worth acting on.
func (c *OpaqueCodec) Decode(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	ids, err := c.h.DecodeInt64WithError(token)
	if err != nil || len(ids) != 1 || ids[0] <= 0 {
		return 0, false
	}
	return ids[0], true
}

// ComposedCode is the identifier handed to affiliate platforms:
// <user token>-<campaign code>-<pageview token>.
func ComposedCode(userToken, campaignCode, pageviewToken string) string {
	return userToken + "-" + campaignCode + "-" + pageviewToken
}

// SplitComposedCode parses a composed code back into its parts. The campaign
// code itself contains dashes, so the first and last segments are the user
// and pageview tokens and everything between is the campaign code.
func SplitComposedCode(composed string) (userToken, campaignCode, pageviewToken string, ok bool) {
	parts := strings.Split(composed, "-")
	if len(parts) < 3 {
		return "", "", "", false
	}
	userToken = parts[0]
	pageviewToken = parts[len(parts)-1]
	campaignCode = strings.Join(parts[1:len(parts)-1], "-")
	if userToken == "" || campaignCode == "" || pageviewToken == "" {
		return "", "", "", false
	}
	return userToken, campaignCode, pageviewToken, true
}

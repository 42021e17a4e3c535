// Package codes produces the external identifiers exchanged with browsers
// and affiliate platforms: checksummed campaign codes, opaque tokens for
// internal numeric ids, and the composed callback code built from both.
package codes

import (
	"context"
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	codePrefix  = "CMP"
	bodyLength  = 8
	maxAttempts = 25
)

var channelPattern = regexp.MustCompile(`^[A-Z]{2}$`)

// PlaceholderCode returns a temporary code for a freshly inserted campaign
// row. It satisfies the NOT-NULL/UNIQUE constraints but never matches
// domain.CodePattern, so it is always replaced post-creation. ULID keeps it
// unique before the row has an id.
func PlaceholderCode() string {
	return "PENDING-" + ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// CodeChecker reports whether a candidate campaign code is already taken.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// Generator produces unique campaign codes of the form
// CMP-<channel>-<8-char body><2-digit checksum>.
type Generator struct {
	checker CodeChecker
}

// NewGenerator creates a campaign code generator backed by the given
// uniqueness checker.
func NewGenerator(checker CodeChecker) *Generator {
	return &Generator{checker: checker}
}

// Generate returns a new unique campaign code for the given 2-letter channel.
// Collisions are astronomically unlikely, but the retry loop is bounded so a
// broken uniqueness check cannot spin forever.
func (g *Generator) Generate(ctx context.Context, channelCode string) (string, error) {
	channel := strings.ToUpper(channelCode)
	if !channelPattern.MatchString(channel) {
		return "", fmt.Errorf("channel code must be two letters, got %q", channelCode)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := compose(channel, randomBody())
		exists, err := g.checker.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("campaign code generation exhausted %d attempts for channel %s", maxAttempts, channel)
}

// randomBody takes the random segment of a ULID (Crockford base32, already
// uppercase alphanumeric) and keeps the trailing 8 characters. If the
// segment ever comes up short, a fresh identifier is drawn.
func randomBody() string {
	for {
		id := ulid.MustNew(ulid.Now(), rand.Reader).String()
		segment := id[10:] // 16 random chars after the 10-char time part
		if len(segment) >= bodyLength {
			return segment[len(segment)-bodyLength:]
		}
	}
}

func compose(channel, body string) string {
	base := codePrefix + "-" + channel + "-" + body
	return base + Checksum(base)
}

// Checksum computes the 2-digit check value for a code base: the sum of its
// byte values mod 97, zero-padded.
func Checksum(base string) string {
	sum := 0
	for i := 0; i < len(base); i++ {
		sum += int(base[i])
	}
	return fmt.Sprintf("%02d", sum%97)
}

// ValidChecksum reports whether a full campaign code carries the checksum
// its body demands.
func ValidChecksum(code string) bool {
	if len(code) < 2 {
		return false
	}
	base, digits := code[:len(code)-2], code[len(code)-2:]
	return Checksum(base) == digits
}

package domain

import (
	"regexp"
	"time"
)

// CodePattern is the canonical shape of an assigned campaign code:
// CMP-<2-letter channel>-<8-char body><2-digit checksum>.
var CodePattern = regexp.MustCompile(`^CMP-[A-Z]{2}-[A-Z0-9]{8}[0-9]{2}$`)

// Campaign is a marketing campaign owned by exactly one user. Its code is
// globally unique and immutable once assigned; rows are inserted with a
// placeholder code that is replaced right after creation.
type Campaign struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	Name          string    `json:"name" db:"name"`
	Code          string    `json:"code" db:"code"`
	ChannelCode   string    `json:"channel_code" db:"channel_code"`
	AllowedOrigin string    `json:"allowed_origin" db:"allowed_origin"`
	Active        bool      `json:"active" db:"active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// HasAssignedCode reports whether the campaign carries a final code
// (as opposed to the placeholder used to satisfy NOT-NULL on insert).
func (c *Campaign) HasAssignedCode() bool {
	return CodePattern.MatchString(c.Code)
}

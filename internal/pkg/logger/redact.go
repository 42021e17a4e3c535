package logger

import "strings"

// RedactSecret masks a signature, token or secret for safe logging, keeping
// a short prefix so entries for the same value can still be correlated.
// "a1b2c3d4e5f6..." → "a1b2c3***"
func RedactSecret(val string) string {
	if len(val) <= 6 {
		return "***"
	}
	return val[:6] + "***"
}

// RedactIP truncates an address to its network part.
// "203.0.113.42" → "203.0.113.x", IPv6 keeps the first two groups.
func RedactIP(ip string) string {
	if idx := strings.LastIndex(ip, "."); idx > 0 {
		return ip[:idx] + ".x"
	}
	parts := strings.Split(ip, ":")
	if len(parts) > 2 {
		return parts[0] + ":" + parts[1] + "::x"
	}
	return "***"
}

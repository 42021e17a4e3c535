package classify

import (
	"context"
	"strings"
)

// Resolver is the DNS surface needed for forward-confirmed reverse DNS.
// *net.Resolver satisfies it.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// ClaimsGooglebot reports whether the user agent self-declares as Googlebot.
// The claim alone is worthless; VerifyGooglebot must confirm it.
func ClaimsGooglebot(userAgent string) bool {
	return strings.Contains(strings.ToLower(userAgent), "googlebot")
}

// VerifyGooglebot runs forward-confirmed reverse DNS on the IP: the PTR
// record must name a Google-owned host, and resolving that host forward must
// round-trip to the original IP. This is Google's documented verification
// procedure and stops user-agent spoofing from bypassing bot classification.
func VerifyGooglebot(ctx context.Context, r Resolver, ip string) bool {
	names, err := r.LookupAddr(ctx, ip)
	if err != nil {
		return false
	}
	for _, name := range names {
		host := strings.TrimSuffix(name, ".")
		if !strings.HasSuffix(host, ".googlebot.com") && !strings.HasSuffix(host, ".google.com") {
			continue
		}
		addrs, err := r.LookupHost(ctx, host)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if addr == ip {
				return true
			}
		}
	}
	return false
}

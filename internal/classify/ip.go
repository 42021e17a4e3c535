package classify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/metrics"
)

// ReputationReport is the raw signal set returned by the reputation
// provider for one IP.
type ReputationReport struct {
	Tor        bool   `json:"tor"`
	VPN        bool   `json:"vpn"`
	Proxy      bool   `json:"proxy"`
	Datacenter bool   `json:"datacenter"`
	Bot        bool   `json:"bot"`
	Country    string `json:"country"`
	Region     string `json:"region"`
	City       string `json:"city"`
	ISP        string `json:"isp"`
}

// ReputationClient looks up an IP with the external provider.
type ReputationClient interface {
	Lookup(ctx context.Context, ip string) (*ReputationReport, error)
}

// ClassificationStore is the durable cache table for IP lookups.
// Get returns (nil, nil) on a miss.
type ClassificationStore interface {
	GetIPClassification(ctx context.Context, ip string) (*domain.IPClassification, error)
	PutIPClassification(ctx context.Context, cls *domain.IPClassification) error
}

// IPClassifier is the cache-aside IP lookup: in-process map, then durable
// cache table, then the external provider. Provider errors degrade to
// IPUnknown and are never persisted, so the next run retries. Classify never
// returns an error; it must not block the write path it supports.
type IPClassifier struct {
	store    ClassificationStore
	client   ReputationClient
	resolver Resolver
	timeout  time.Duration

	mu  sync.RWMutex
	mem map[string]domain.IPClassification
}

// NewIPClassifier wires an IPClassifier. resolver may be nil to disable the
// Googlebot bypass.
func NewIPClassifier(store ClassificationStore, client ReputationClient, resolver Resolver, timeout time.Duration) *IPClassifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IPClassifier{
		store:    store,
		client:   client,
		resolver: resolver,
		timeout:  timeout,
		mem:      make(map[string]domain.IPClassification),
	}
}

// Classify resolves the category and geo fields for an IP. userAgent is
// consulted only for the Googlebot bypass.
func (c *IPClassifier) Classify(ctx context.Context, ip, userAgent string) domain.IPClassification {
	if ip == "" {
		return domain.IPClassification{IP: ip, Category: domain.IPUnknown}
	}

	c.mu.RLock()
	if cls, ok := c.mem[ip]; ok {
		c.mu.RUnlock()
		return cls
	}
	c.mu.RUnlock()

	if cached, err := c.store.GetIPClassification(ctx, ip); err != nil {
		log.Printf("classify: cache read for %s: %v", ip, err)
	} else if cached != nil {
		c.remember(*cached)
		metrics.ClassificationsTotal.WithLabelValues("cache", string(cached.Category)).Inc()
		return *cached
	}

	// A verified Googlebot claim short-circuits the reputation provider.
	if c.resolver != nil && ClaimsGooglebot(userAgent) {
		vctx, cancel := context.WithTimeout(ctx, c.timeout)
		verified := VerifyGooglebot(vctx, c.resolver, ip)
		cancel()
		if verified {
			cls := domain.IPClassification{
				IP:        ip,
				Category:  domain.IPBot,
				ISP:       "Google",
				CreatedAt: time.Now().UTC(),
			}
			c.persist(ctx, cls)
			metrics.ClassificationsTotal.WithLabelValues("fcrdns", string(cls.Category)).Inc()
			return cls
		}
	}

	lctx, cancel := context.WithTimeout(ctx, c.timeout)
	report, err := c.client.Lookup(lctx, ip)
	cancel()
	if err != nil {
		log.Printf("classify: reputation lookup for %s: %v", ip, err)
		metrics.ClassificationsTotal.WithLabelValues("provider", string(domain.IPUnknown)).Inc()
		return domain.IPClassification{IP: ip, Category: domain.IPUnknown}
	}

	cls := domain.IPClassification{
		IP:        ip,
		Category:  categoryOf(report),
		Country:   report.Country,
		Region:    report.Region,
		City:      report.City,
		ISP:       report.ISP,
		CreatedAt: time.Now().UTC(),
	}
	c.persist(ctx, cls)
	metrics.ClassificationsTotal.WithLabelValues("provider", string(cls.Category)).Inc()
	return cls
}

// categoryOf applies the fixed priority order:
// tor > vpn > proxy > datacenter > bot > real.
func categoryOf(r *ReputationReport) domain.IPCategory {
	switch {
	case r.Tor:
		return domain.IPTor
	case r.VPN:
		return domain.IPVPN
	case r.Proxy:
		return domain.IPProxy
	case r.Datacenter:
		return domain.IPDatacenter
	case r.Bot:
		return domain.IPBot
	default:
		return domain.IPReal
	}
}

func (c *IPClassifier) persist(ctx context.Context, cls domain.IPClassification) {
	c.remember(cls)
	if err := c.store.PutIPClassification(ctx, &cls); err != nil {
		log.Printf("classify: cache write for %s: %v", cls.IP, err)
	}
}

func (c *IPClassifier) remember(cls domain.IPClassification) {
	c.mu.Lock()
	c.mem[cls.IP] = cls
	c.mu.Unlock()
}

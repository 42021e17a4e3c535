package classify

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/attribution/internal/domain"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]domain.IPClassification
	puts int
}

func (m *memStore) GetIPClassification(ctx context.Context, ip string) (*domain.IPClassification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cls, ok := m.rows[ip]; ok {
		return &cls, nil
	}
	return nil, nil
}

func (m *memStore) PutIPClassification(ctx context.Context, cls *domain.IPClassification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[string]domain.IPClassification{}
	}
	m.rows[cls.IP] = *cls
	m.puts++
	return nil
}

type stubClient struct {
	mu     sync.Mutex
	report *ReputationReport
	err    error
	calls  int
}

func (s *stubClient) Lookup(ctx context.Context, ip string) (*ReputationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

type stubResolver struct {
	ptr     map[string][]string
	forward map[string][]string
}

func (s *stubResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	if names, ok := s.ptr[addr]; ok {
		return names, nil
	}
	return nil, fmt.Errorf("no PTR for %s", addr)
}

func (s *stubResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if addrs, ok := s.forward[host]; ok {
		return addrs, nil
	}
	return nil, fmt.Errorf("no A for %s", host)
}

func TestCategoryOf_PriorityOrder(t *testing.T) {
	tests := []struct {
		name   string
		report ReputationReport
		want   domain.IPCategory
	}{
		{"tor wins over everything", ReputationReport{Tor: true, VPN: true, Proxy: true, Datacenter: true, Bot: true}, domain.IPTor},
		{"vpn over proxy", ReputationReport{VPN: true, Proxy: true, Datacenter: true}, domain.IPVPN},
		{"proxy over datacenter", ReputationReport{Proxy: true, Datacenter: true}, domain.IPProxy},
		{"datacenter over bot", ReputationReport{Datacenter: true, Bot: true}, domain.IPDatacenter},
		{"bot over real", ReputationReport{Bot: true}, domain.IPBot},
		{"clean is real", ReputationReport{}, domain.IPReal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, categoryOf(&tt.report))
		})
	}
}

func TestClassify_CacheAside(t *testing.T) {
	store := &memStore{}
	client := &stubClient{report: &ReputationReport{Country: "US", Region: "CA", City: "San Jose", ISP: "ExampleNet"}}
	c := NewIPClassifier(store, client, nil, 0)

	first := c.Classify(context.Background(), "203.0.113.9", "Mozilla/5.0")
	assert.Equal(t, domain.IPReal, first.Category)
	assert.Equal(t, "US", first.Country)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 1, store.puts)

	// Second call is served from memory, third from a fresh classifier via
	// the durable table; neither hits the provider again.
	c.Classify(context.Background(), "203.0.113.9", "Mozilla/5.0")
	assert.Equal(t, 1, client.calls)

	c2 := NewIPClassifier(store, client, nil, 0)
	again := c2.Classify(context.Background(), "203.0.113.9", "Mozilla/5.0")
	assert.Equal(t, domain.IPReal, again.Category)
	assert.Equal(t, 1, client.calls)
}

func TestClassify_ProviderFailureDegradesToUnknown(t *testing.T) {
	store := &memStore{}
	client := &stubClient{err: fmt.Errorf("provider timeout")}
	c := NewIPClassifier(store, client, nil, 0)

	cls := c.Classify(context.Background(), "203.0.113.9", "Mozilla/5.0")
	assert.Equal(t, domain.IPUnknown, cls.Category)
	assert.Zero(t, store.puts, "unknown must not be persisted so the lookup retries")

	// Once the provider recovers, the same IP classifies normally.
	client.mu.Lock()
	client.err = nil
	client.report = &ReputationReport{Datacenter: true}
	client.mu.Unlock()

	cls = c.Classify(context.Background(), "203.0.113.9", "Mozilla/5.0")
	assert.Equal(t, domain.IPDatacenter, cls.Category)
	assert.Equal(t, 1, store.puts)
}

func TestClassify_VerifiedGooglebotBypassesProvider(t *testing.T) {
	store := &memStore{}
	client := &stubClient{report: &ReputationReport{Datacenter: true}}
	resolver := &stubResolver{
		ptr:     map[string][]string{"66.249.66.1": {"crawl-66-249-66-1.googlebot.com."}},
		forward: map[string][]string{"crawl-66-249-66-1.googlebot.com": {"66.249.66.1"}},
	}
	c := NewIPClassifier(store, client, resolver, 0)

	cls := c.Classify(context.Background(), "66.249.66.1", "Mozilla/5.0 (compatible; Googlebot/2.1)")
	assert.Equal(t, domain.IPBot, cls.Category)
	assert.Equal(t, "Google", cls.ISP)
	assert.Zero(t, client.calls, "verified Googlebot must not consume a provider lookup")
	assert.Equal(t, 1, store.puts)
}

func TestClassify_SpoofedGooglebotFallsThrough(t *testing.T) {
	store := &memStore{}
	client := &stubClient{report: &ReputationReport{Datacenter: true}}
	resolver := &stubResolver{
		ptr:     map[string][]string{"198.51.100.7": {"vps.shady-host.example."}},
		forward: map[string][]string{},
	}
	c := NewIPClassifier(store, client, resolver, 0)

	cls := c.Classify(context.Background(), "198.51.100.7", "Mozilla/5.0 (compatible; Googlebot/2.1)")
	assert.Equal(t, domain.IPDatacenter, cls.Category, "spoofed claim must run the normal pipeline")
	assert.Equal(t, 1, client.calls)
}

func TestVerifyGooglebot_ForwardMustRoundTrip(t *testing.T) {
	// PTR names a Google host but the forward record points elsewhere.
	resolver := &stubResolver{
		ptr:     map[string][]string{"198.51.100.7": {"crawl-1-2-3-4.googlebot.com."}},
		forward: map[string][]string{"crawl-1-2-3-4.googlebot.com": {"66.249.66.1"}},
	}
	assert.False(t, VerifyGooglebot(context.Background(), resolver, "198.51.100.7"))
}

func TestClaimsGooglebot(t *testing.T) {
	assert.True(t, ClaimsGooglebot("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
	assert.True(t, ClaimsGooglebot("GOOGLEBOT-Image/1.0"))
	assert.False(t, ClaimsGooglebot("Mozilla/5.0 (Windows NT 10.0)"))
}

func TestDeviceClassifier(t *testing.T) {
	c := NewDeviceClassifier()

	tests := []struct {
		name string
		ua   string
		want domain.DeviceCategory
	}{
		{
			"desktop chrome",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			domain.DeviceDesktop,
		},
		{
			"iphone safari",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			domain.DeviceMobile,
		},
		{
			"ipad",
			"Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
			domain.DeviceTablet,
		},
		{
			"googlebot is a bot before it is anything else",
			"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			domain.DeviceBot,
		},
		{
			"empty ua",
			"",
			domain.DeviceOther,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.ua)
			assert.Equal(t, tt.want, got.Category)
		})
	}

	d := c.Classify("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	require.Equal(t, domain.DeviceDesktop, d.Category)
	assert.Equal(t, "Chrome", d.Browser)
	assert.Equal(t, "Windows", d.OS)
}

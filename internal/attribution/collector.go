package attribution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/ignite/attribution/internal/codes"
	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/metrics"
)

// ErrCampaignNotFound is returned by CampaignResolver implementations when
// no campaign carries the requested code.
var ErrCampaignNotFound = errors.New("campaign not found")

// CampaignResolver resolves a campaign by its external code.
type CampaignResolver interface {
	GetByCode(ctx context.Context, code string) (*domain.Campaign, error)
}

// PageviewWriter persists pageview rows.
type PageviewWriter interface {
	Insert(ctx context.Context, pv *domain.Pageview) error
}

// DeviceClassifier derives device attributes from a user agent.
type DeviceClassifier interface {
	Classify(userAgent string) domain.DeviceClassification
}

// PageviewSink mirrors pageview rows to the analytical warehouse. Failures
// there must never affect the live request path.
type PageviewSink interface {
	InsertPageview(ctx context.Context, pv domain.Pageview) error
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ValidationError is a synchronous 4xx rejection: no side effects, not
// retried, carries a human-readable reason for the field that failed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CollectRequest carries the fields of a collect call after transport
// decoding.
type CollectRequest struct {
	UserCode     string
	CampaignCode string
	VisitorCode  string
	AuthTS       int64
	AuthNonce    string
	AuthSig      string

	URL        string
	LandingURL string
	Referrer   string
	UserAgent  string
	IPAddress  string

	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string

	GCLID         string
	FBCLID        string
	TTCLID        string
	MSCLKID       string
	WBRAID        string
	GBRAID        string
	GAdCampaignID string
}

// CollectResult is returned to the client script. The pageview code, visitor
// code and event signature are the required inputs for the event path; the
// collector's job ends once contexts are seeded.
type CollectResult struct {
	PageviewCode string `json:"pageview_code"`
	VisitorCode  string `json:"visitor_code"`
	EventSig     string `json:"event_sig"`
}

// CollectorConfig holds the TTLs governing the context window.
type CollectorConfig struct {
	CampaignTTL   time.Duration
	PageviewTTL   time.Duration
	HitGateWindow time.Duration
}

// Collector validates signed collect requests, persists pageviews and seeds
// the context store. Safe for concurrent use.
type Collector struct {
	campaigns CampaignResolver
	pageviews PageviewWriter
	store     ContextStore
	signer    *Signer
	codec     *codes.OpaqueCodec
	ids       *snowflake.Node
	devices   DeviceClassifier
	sink      PageviewSink
	clock     Clock
	cfg       CollectorConfig
}

// NewCollector wires a Collector. sink may be nil when no warehouse is
// configured; devices may be nil to skip inline device classification.
func NewCollector(
	campaigns CampaignResolver,
	pageviews PageviewWriter,
	store ContextStore,
	signer *Signer,
	codec *codes.OpaqueCodec,
	ids *snowflake.Node,
	devices DeviceClassifier,
	sink PageviewSink,
	clock Clock,
	cfg CollectorConfig,
) *Collector {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.CampaignTTL <= 0 {
		cfg.CampaignTTL = 30 * time.Minute
	}
	if cfg.PageviewTTL <= 0 {
		cfg.PageviewTTL = 30 * time.Minute
	}
	if cfg.HitGateWindow <= 0 {
		cfg.HitGateWindow = 24 * time.Hour
	}
	return &Collector{
		campaigns: campaigns,
		pageviews: pageviews,
		store:     store,
		signer:    signer,
		codec:     codec,
		ids:       ids,
		devices:   devices,
		sink:      sink,
		clock:     clock,
		cfg:       cfg,
	}
}

// Collect runs the full collection flow:
// received -> validated -> campaign_resolved -> persisted -> context_seeded.
func (c *Collector) Collect(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	if err := c.validate(ctx, req); err != nil {
		metrics.CollectsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	userID, ok := c.codec.Decode(req.UserCode)
	if !ok {
		metrics.CollectsTotal.WithLabelValues("rejected").Inc()
		return nil, &ValidationError{Field: "user_code", Message: "invalid user"}
	}

	campaign, err := c.campaigns.GetByCode(ctx, req.CampaignCode)
	if err != nil {
		if errors.Is(err, ErrCampaignNotFound) {
			metrics.CollectsTotal.WithLabelValues("rejected").Inc()
			return nil, &ValidationError{Field: "campaign_code", Message: "invalid campaign"}
		}
		return nil, fmt.Errorf("resolve campaign: %w", err)
	}
	if campaign.UserID != userID || !campaign.Active {
		metrics.CollectsTotal.WithLabelValues("rejected").Inc()
		return nil, &ValidationError{Field: "campaign_code", Message: "invalid campaign"}
	}

	now := c.clock.Now().UTC()
	visitorCode := req.VisitorCode
	if visitorCode == "" {
		visitorCode = uuid.NewString()
	}

	first, err := c.store.FirstHit(ctx, campaign.ID, visitorCode, c.cfg.HitGateWindow)
	if err != nil {
		// The gate only differentiates unique traffic; losing it must not
		// drop the pageview.
		log.Printf("collector: hit gate unavailable: %v", err)
		first = true
	}

	pv := c.buildPageview(campaign, visitorCode, first, now, req)
	if err := c.pageviews.Insert(ctx, pv); err != nil {
		return nil, fmt.Errorf("persist pageview: %w", err)
	}

	pageviewCode, err := c.codec.Encode(pv.ID)
	if err != nil {
		return nil, fmt.Errorf("encode pageview code: %w", err)
	}
	eventSig := c.signer.EventSignature(req.UserCode, req.CampaignCode, pageviewCode)

	if err := c.seedContexts(ctx, campaign, req, pv, pageviewCode, eventSig, now); err != nil {
		return nil, err
	}

	c.mirror(*pv)
	metrics.CollectsTotal.WithLabelValues("collected").Inc()

	return &CollectResult{
		PageviewCode: pageviewCode,
		VisitorCode:  visitorCode,
		EventSig:     eventSig,
	}, nil
}

func (c *Collector) validate(ctx context.Context, req CollectRequest) error {
	switch {
	case req.UserCode == "":
		return &ValidationError{Field: "user_code", Message: "required"}
	case req.CampaignCode == "":
		return &ValidationError{Field: "campaign_code", Message: "required"}
	case req.AuthNonce == "":
		return &ValidationError{Field: "auth_nonce", Message: "required"}
	case req.AuthSig == "":
		return &ValidationError{Field: "auth_sig", Message: "required"}
	case req.URL == "":
		return &ValidationError{Field: "url", Message: "required"}
	}

	if !c.signer.TimestampFresh(req.AuthTS, c.clock.Now()) {
		metrics.SignatureFailuresTotal.WithLabelValues("collect").Inc()
		return &ValidationError{Field: "auth_ts", Message: "stale timestamp"}
	}
	if !c.signer.VerifyCollect(req.UserCode, req.CampaignCode, req.AuthTS, req.AuthNonce, req.AuthSig) {
		metrics.SignatureFailuresTotal.WithLabelValues("collect").Inc()
		return &ValidationError{Field: "auth_sig", Message: "invalid signature"}
	}

	fresh, err := c.store.MarkNonce(ctx, req.AuthNonce, c.signer.NonceTTL())
	if err != nil {
		return fmt.Errorf("mark nonce: %w", err)
	}
	if !fresh {
		metrics.SignatureFailuresTotal.WithLabelValues("collect").Inc()
		return &ValidationError{Field: "auth_nonce", Message: "replayed nonce"}
	}
	return nil
}

func (c *Collector) buildPageview(campaign *domain.Campaign, visitorCode string, first bool, now time.Time, req CollectRequest) *domain.Pageview {
	pv := &domain.Pageview{
		ID:          c.ids.Generate().Int64(),
		CampaignID:  campaign.ID,
		UserID:      campaign.UserID,
		VisitorCode: visitorCode,
		URL:         req.URL,
		LandingURL:  req.LandingURL,
		Referrer:    req.Referrer,
		UserAgent:   req.UserAgent,
		IPAddress:   req.IPAddress,
		Unique:      first,

		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		UTMTerm:     req.UTMTerm,
		UTMContent:  req.UTMContent,

		GCLID:         req.GCLID,
		FBCLID:        req.FBCLID,
		TTCLID:        req.TTCLID,
		MSCLKID:       req.MSCLKID,
		WBRAID:        req.WBRAID,
		GBRAID:        req.GBRAID,
		GAdCampaignID: req.GAdCampaignID,

		CreatedAt: now,
	}

	// Device attributes are cheap to derive inline; IP classification is
	// left NULL for the batch worker.
	if c.devices != nil && req.UserAgent != "" {
		d := c.devices.Classify(req.UserAgent)
		cat := string(d.Category)
		pv.DeviceCategory = &cat
		if d.Browser != "" {
			pv.Browser = &d.Browser
		}
		if d.OS != "" {
			pv.OS = &d.OS
		}
	}
	return pv
}

func (c *Collector) seedContexts(ctx context.Context, campaign *domain.Campaign, req CollectRequest, pv *domain.Pageview, pageviewCode, eventSig string, now time.Time) error {
	existing, err := c.store.GetCampaignContext(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("read campaign context: %w", err)
	}
	if existing == nil {
		cc := CampaignContext{
			CampaignID:    campaign.ID,
			CampaignCode:  campaign.Code,
			UserID:        campaign.UserID,
			UserCode:      req.UserCode,
			AllowedOrigin: campaign.AllowedOrigin,
		}
		if err := c.store.PutCampaignContext(ctx, cc, c.cfg.CampaignTTL); err != nil {
			return fmt.Errorf("seed campaign context: %w", err)
		}
	}

	pc := PageviewContext{
		CampaignID:    campaign.ID,
		CampaignCode:  campaign.Code,
		PageviewID:    pv.ID,
		PageviewCode:  pageviewCode,
		UserID:        campaign.UserID,
		UserCode:      req.UserCode,
		VisitorCode:   pv.VisitorCode,
		EventSig:      eventSig,
		LastCollectAt: now,
	}
	if err := c.store.PutPageviewContext(ctx, pc, c.cfg.PageviewTTL); err != nil {
		return fmt.Errorf("seed pageview context: %w", err)
	}

	if err := c.store.TouchLast(ctx, "collect", pageviewKeyOf(pc), now, c.cfg.PageviewTTL); err != nil {
		log.Printf("collector: touch last collect: %v", err)
	}
	return nil
}

func pageviewKeyOf(pc PageviewContext) string {
	return pc.UserCode + ":" + pc.CampaignCode + ":" + pc.PageviewCode
}

// mirror sends the row to the warehouse without blocking the caller.
func (c *Collector) mirror(pv domain.Pageview) {
	if c.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.sink.InsertPageview(ctx, pv); err != nil {
			log.Printf("collector: warehouse mirror failed for pageview %d: %v", pv.ID, err)
		}
	}()
}

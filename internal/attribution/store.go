// Package attribution implements the signed collect/event pipeline: the
// short-TTL context store linking visitors to campaigns and pageviews, the
// HMAC request protocol, the pageview collector and the event recorder.
package attribution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CampaignContext is the campaign-level cache entry, written on the first
// collection of a campaign inside the TTL window.
type CampaignContext struct {
	CampaignID    int64  `json:"campaign_id"`
	CampaignCode  string `json:"campaign_code"`
	UserID        int64  `json:"user_id"`
	UserCode      string `json:"user_code"`
	AllowedOrigin string `json:"allowed_origin"`
}

// PageviewContext is the per-pageview cache entry, written once at collection
// time and read-only afterward by the event path. During its TTL it is the
// authoritative linkage between visitor, campaign and pageview; it is never
// reconstructed from the database.
type PageviewContext struct {
	CampaignID    int64     `json:"campaign_id"`
	CampaignCode  string    `json:"campaign_code"`
	PageviewID    int64     `json:"pageview_id"`
	PageviewCode  string    `json:"pageview_code"`
	UserID        int64     `json:"user_id"`
	UserCode      string    `json:"user_code"`
	VisitorCode   string    `json:"visitor_code"`
	EventSig      string    `json:"event_sig"`
	LastCollectAt time.Time `json:"last_collect_at"`
	LastHitAt     time.Time `json:"last_hit_at"`
}

// ContextStore is the shared, TTL-bound state backing the pipeline. Get
// methods return (nil, nil) on a missing or expired entry; callers treat
// absence as a hard stop, not as a cue to repopulate from the database.
type ContextStore interface {
	PutCampaignContext(ctx context.Context, cc CampaignContext, ttl time.Duration) error
	GetCampaignContext(ctx context.Context, campaignID int64) (*CampaignContext, error)

	PutPageviewContext(ctx context.Context, pc PageviewContext, ttl time.Duration) error
	GetPageviewContext(ctx context.Context, userCode, campaignCode, pageviewCode string) (*PageviewContext, error)

	// MarkNonce records a collect nonce. It returns false when the nonce was
	// already seen inside the TTL window.
	MarkNonce(ctx context.Context, nonce string, ttl time.Duration) (bool, error)

	// FirstHit reports whether this is the first collect for the visitor and
	// campaign inside the gate window, setting the gate as a side effect.
	FirstHit(ctx context.Context, campaignID int64, visitorCode string, window time.Duration) (bool, error)

	// TouchLast refreshes a last-seen marker ("collect" or "hit") for a
	// pageview key.
	TouchLast(ctx context.Context, kind, pageviewKey string, at time.Time, ttl time.Duration) error

	CachedScript(ctx context.Context, userCode, campaignCode string) (string, error)
	PutCachedScript(ctx context.Context, userCode, campaignCode, body string, ttl time.Duration) error
}

// RedisStore implements ContextStore on Redis, relying on native per-key
// expiry. Keys are namespaced by prefix and category so operators can
// inspect or clear one category without touching the others:
// {prefix}:campaign:*, {prefix}:pv:*, {prefix}:last:*, {prefix}:hit_gate:*,
// {prefix}:script:template:*.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a ContextStore on the given client. prefix defaults
// to "attr" when empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "attr"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) campaignKey(id int64) string {
	return fmt.Sprintf("%s:campaign:%d", s.prefix, id)
}

func (s *RedisStore) pageviewKey(userCode, campaignCode, pageviewCode string) string {
	return fmt.Sprintf("%s:pv:%s:%s:%s", s.prefix, userCode, campaignCode, pageviewCode)
}

func (s *RedisStore) PutCampaignContext(ctx context.Context, cc CampaignContext, ttl time.Duration) error {
	data, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("marshal campaign context: %w", err)
	}
	if err := s.client.Set(ctx, s.campaignKey(cc.CampaignID), data, ttl).Err(); err != nil {
		return fmt.Errorf("put campaign context: %w", err)
	}
	return nil
}

func (s *RedisStore) GetCampaignContext(ctx context.Context, campaignID int64) (*CampaignContext, error) {
	data, err := s.client.Get(ctx, s.campaignKey(campaignID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign context: %w", err)
	}
	var cc CampaignContext
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, fmt.Errorf("unmarshal campaign context: %w", err)
	}
	return &cc, nil
}

func (s *RedisStore) PutPageviewContext(ctx context.Context, pc PageviewContext, ttl time.Duration) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("marshal pageview context: %w", err)
	}
	key := s.pageviewKey(pc.UserCode, pc.CampaignCode, pc.PageviewCode)
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("put pageview context: %w", err)
	}
	return nil
}

func (s *RedisStore) GetPageviewContext(ctx context.Context, userCode, campaignCode, pageviewCode string) (*PageviewContext, error) {
	data, err := s.client.Get(ctx, s.pageviewKey(userCode, campaignCode, pageviewCode)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pageview context: %w", err)
	}
	var pc PageviewContext
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("unmarshal pageview context: %w", err)
	}
	return &pc, nil
}

func (s *RedisStore) MarkNonce(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:nonce:%s", s.prefix, nonce)
	ok, err := s.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark nonce: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) FirstHit(ctx context.Context, campaignID int64, visitorCode string, window time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:hit_gate:%d:%s", s.prefix, campaignID, visitorCode)
	ok, err := s.client.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("hit gate: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) TouchLast(ctx context.Context, kind, pageviewKey string, at time.Time, ttl time.Duration) error {
	key := fmt.Sprintf("%s:last:%s:%s", s.prefix, kind, pageviewKey)
	if err := s.client.Set(ctx, key, at.UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("touch last %s: %w", kind, err)
	}
	return nil
}

func (s *RedisStore) scriptKey(userCode, campaignCode string) string {
	return fmt.Sprintf("%s:script:template:%s:%s", s.prefix, userCode, campaignCode)
}

func (s *RedisStore) CachedScript(ctx context.Context, userCode, campaignCode string) (string, error) {
	body, err := s.client.Get(ctx, s.scriptKey(userCode, campaignCode)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get cached script: %w", err)
	}
	return body, nil
}

func (s *RedisStore) PutCachedScript(ctx context.Context, userCode, campaignCode, body string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.scriptKey(userCode, campaignCode), body, ttl).Err(); err != nil {
		return fmt.Errorf("put cached script: %w", err)
	}
	return nil
}

package attribution

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/metrics"
)

// Ignore reasons reported on the event path. These are soft, expected
// outcomes for expired or replayed links, not security incidents.
const (
	ReasonContextMissing    = "redis_context_missing"
	ReasonSignatureMismatch = "signature_mismatch"
	ReasonInvalidEventType  = "invalid_event_type"
)

// EventWriter persists behavioral event rows.
type EventWriter interface {
	Insert(ctx context.Context, ev *domain.PageviewEvent) error
}

// RecordRequest carries one behavioral event submission.
type RecordRequest struct {
	UserCode     string
	CampaignCode string
	PageviewCode string
	EventSig     string

	EventType      domain.EventType
	TargetURL      string
	ElementID      string
	ElementName    string
	ElementClasses string

	FormFieldsChecked int
	FormFieldsFilled  int
	FormHasUserData   bool

	EventTS int64
}

// RecordOutcome is the tagged business result of a record attempt. The
// transport layer serializes both variants to an HTTP 200 so the calling
// script never branches on attribution internals.
type RecordOutcome struct {
	EventID int64
	Ignored bool
	Reason  string
}

// Recorder validates event submissions against the stored campaign and
// pageview contexts and appends event rows. It never reads the durable store
// to reconstruct a missing context: absence of either entry is a hard stop,
// which bounds the blast radius of a replayed or forged signature to the
// context TTL window.
type Recorder struct {
	events  EventWriter
	store   ContextStore
	ids     *snowflake.Node
	clock   Clock
	lastTTL time.Duration
}

// NewRecorder wires a Recorder.
func NewRecorder(events EventWriter, store ContextStore, ids *snowflake.Node, clock Clock, lastTTL time.Duration) *Recorder {
	if clock == nil {
		clock = SystemClock{}
	}
	if lastTTL <= 0 {
		lastTTL = 30 * time.Minute
	}
	return &Recorder{events: events, store: store, ids: ids, clock: clock, lastTTL: lastTTL}
}

// Record processes one event submission. An error return means an
// infrastructure failure the transport logs and still answers ok to.
func (r *Recorder) Record(ctx context.Context, req RecordRequest) (RecordOutcome, error) {
	pc, err := r.store.GetPageviewContext(ctx, req.UserCode, req.CampaignCode, req.PageviewCode)
	if err != nil {
		return RecordOutcome{}, fmt.Errorf("read pageview context: %w", err)
	}
	if pc == nil {
		metrics.EventsTotal.WithLabelValues("ignored", ReasonContextMissing).Inc()
		return RecordOutcome{Ignored: true, Reason: ReasonContextMissing}, nil
	}

	// The campaign context expires on its own TTL, usually before the
	// pageview context does. Once it is gone the campaign's window is
	// closed and events stop recording.
	cc, err := r.store.GetCampaignContext(ctx, pc.CampaignID)
	if err != nil {
		return RecordOutcome{}, fmt.Errorf("read campaign context: %w", err)
	}
	if cc == nil {
		metrics.EventsTotal.WithLabelValues("ignored", ReasonContextMissing).Inc()
		return RecordOutcome{Ignored: true, Reason: ReasonContextMissing}, nil
	}

	if !SignatureEqual(pc.EventSig, req.EventSig) {
		metrics.EventsTotal.WithLabelValues("ignored", ReasonSignatureMismatch).Inc()
		metrics.SignatureFailuresTotal.WithLabelValues("event").Inc()
		return RecordOutcome{Ignored: true, Reason: ReasonSignatureMismatch}, nil
	}

	if !domain.ValidEventType(req.EventType) {
		metrics.EventsTotal.WithLabelValues("ignored", ReasonInvalidEventType).Inc()
		return RecordOutcome{Ignored: true, Reason: ReasonInvalidEventType}, nil
	}

	now := r.clock.Now().UTC()
	occurred := now
	if req.EventTS > 0 {
		occurred = time.Unix(req.EventTS, 0).UTC()
	}

	ev := &domain.PageviewEvent{
		ID:                r.ids.Generate().Int64(),
		PageviewID:        pc.PageviewID,
		EventType:         req.EventType,
		TargetURL:         req.TargetURL,
		ElementID:         req.ElementID,
		ElementName:       req.ElementName,
		ElementClasses:    req.ElementClasses,
		FormFieldsChecked: req.FormFieldsChecked,
		FormFieldsFilled:  req.FormFieldsFilled,
		FormHasUserData:   req.FormHasUserData,
		OccurredAt:        occurred,
		CreatedAt:         now,
	}
	if err := r.events.Insert(ctx, ev); err != nil {
		return RecordOutcome{}, fmt.Errorf("persist event: %w", err)
	}

	// Marker refresh is advisory; don't hold the client for it.
	go func(key string) {
		mctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.store.TouchLast(mctx, "hit", key, now, r.lastTTL); err != nil {
			log.Printf("recorder: touch last hit: %v", err)
		}
	}(pageviewKeyOf(*pc))

	metrics.EventsTotal.WithLabelValues("recorded", "").Inc()
	return RecordOutcome{EventID: ev.ID}, nil
}

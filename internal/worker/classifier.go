package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/attribution/internal/classify"
	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/pkg/distlock"
)

const (
	// ClassifierBatchSize is how many unclassified pageviews one pass picks up.
	ClassifierBatchSize = 50

	// DefaultClassifierPollInterval is how often to look for work.
	DefaultClassifierPollInterval = 30 * time.Second

	// classifyTimeout bounds one IP lookup, DNS round-trips included.
	classifyTimeout = 10 * time.Second
)

// PageviewSource is the persistence surface the classifier works against.
type PageviewSource interface {
	ListUnclassified(ctx context.Context, limit int) ([]domain.Pageview, error)
	UpdateClassification(ctx context.Context, id int64, cls *domain.IPClassification) error
}

// ClassificationMirror propagates classification results to the warehouse.
type ClassificationMirror interface {
	UpdateClassification(ctx context.Context, pageviewID int64, cls *domain.IPClassification) error
}

// IPClassifierWorker backfills ip_category on pageview rows. Selection is
// idempotent: only rows with a NULL category match, so overlapping runs on
// separate hosts at worst duplicate a provider lookup, never a write that
// disagrees. The distributed lock keeps that overlap rare rather than
// correct, correctness comes from the NULL predicate.
type IPClassifierWorker struct {
	source     PageviewSource
	classifier *classify.IPClassifier
	mirror     ClassificationMirror
	lock       distlock.DistLock

	pollInterval time.Duration

	classified int64
	skipped    int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewIPClassifierWorker wires the worker. redisClient and db select the lock
// backend; mirror may be nil when no warehouse is configured.
func NewIPClassifierWorker(source PageviewSource, classifier *classify.IPClassifier, mirror ClassificationMirror, redisClient *redis.Client, db *sql.DB) *IPClassifierWorker {
	return &IPClassifierWorker{
		source:       source,
		classifier:   classifier,
		mirror:       mirror,
		lock:         distlock.NewLock(redisClient, db, "ip-classifier-batch", 2*time.Minute),
		pollInterval: DefaultClassifierPollInterval,
	}
}

// SetPollInterval overrides the poll interval, mainly for tests.
func (w *IPClassifierWorker) SetPollInterval(d time.Duration) { w.pollInterval = d }

// Start begins the polling loop.
func (w *IPClassifierWorker) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("classifier worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	log.Printf("[IPClassifier] Starting with poll interval: %v", w.pollInterval)

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops the loop and waits for the in-flight batch to finish.
func (w *IPClassifierWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	log.Printf("[IPClassifier] Stopped. Classified: %d, Skipped: %d",
		atomic.LoadInt64(&w.classified), atomic.LoadInt64(&w.skipped))
}

func (w *IPClassifierWorker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.runBatch()
		}
	}
}

func (w *IPClassifierWorker) runBatch() {
	ctx, cancel := context.WithTimeout(w.ctx, w.pollInterval)
	defer cancel()

	acquired, err := w.lock.Acquire(ctx)
	if err != nil {
		log.Printf("[IPClassifier] Lock acquire failed: %v", err)
		return
	}
	if !acquired {
		return
	}
	defer w.lock.Release(ctx)

	batch, err := w.source.ListUnclassified(ctx, ClassifierBatchSize)
	if err != nil {
		log.Printf("[IPClassifier] List unclassified failed: %v", err)
		return
	}

	for _, pv := range batch {
		if ctx.Err() != nil {
			return
		}
		w.classifyOne(ctx, pv)
	}
}

func (w *IPClassifierWorker) classifyOne(ctx context.Context, pv domain.Pageview) {
	jobCtx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	cls := w.classifier.Classify(jobCtx, pv.IPAddress, pv.UserAgent)
	if cls.Category == domain.IPUnknown {
		// Provider degraded; leave the row NULL so the next pass retries.
		atomic.AddInt64(&w.skipped, 1)
		return
	}

	if err := w.source.UpdateClassification(jobCtx, pv.ID, &cls); err != nil {
		log.Printf("[IPClassifier] Update pageview %d failed: %v", pv.ID, err)
		atomic.AddInt64(&w.skipped, 1)
		return
	}
	atomic.AddInt64(&w.classified, 1)

	if w.mirror != nil {
		if err := w.mirror.UpdateClassification(jobCtx, pv.ID, &cls); err != nil {
			log.Printf("[IPClassifier] Mirror pageview %d failed: %v", pv.ID, err)
		}
	}
}

// Stats returns processed counters for health reporting.
func (w *IPClassifierWorker) Stats() (classified, skipped int64) {
	return atomic.LoadInt64(&w.classified), atomic.LoadInt64(&w.skipped)
}

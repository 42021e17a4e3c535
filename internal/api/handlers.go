package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ignite/attribution/internal/attribution"
	"github.com/ignite/attribution/internal/codes"
	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/leads"
)

// PlatformDirectory resolves affiliate platforms by slug. A miss returns
// leads.ErrPlatformNotFound.
type PlatformDirectory interface {
	GetBySlug(ctx context.Context, slug string) (*domain.AffiliatePlatform, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	collector *attribution.Collector
	recorder  *attribution.Recorder
	scripts   *attribution.ScriptRenderer
	ingestor  *leads.Ingestor
	converter *leads.Converter
	campaigns attribution.CampaignResolver
	platforms PlatformDirectory
	codec     *codes.OpaqueCodec
	validate  *validator.Validate
	startTime time.Time
}

// NewHandlers creates the handler set with all dependencies.
func NewHandlers(
	collector *attribution.Collector,
	recorder *attribution.Recorder,
	scripts *attribution.ScriptRenderer,
	ingestor *leads.Ingestor,
	converter *leads.Converter,
	campaigns attribution.CampaignResolver,
	platforms PlatformDirectory,
	codec *codes.OpaqueCodec,
) *Handlers {
	return &Handlers{
		collector: collector,
		recorder:  recorder,
		scripts:   scripts,
		ingestor:  ingestor,
		converter: converter,
		campaigns: campaigns,
		platforms: platforms,
		codec:     codec,
		validate:  validator.New(),
		startTime: time.Now(),
	}
}

// HealthCheck returns service health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(h.startTime).String(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

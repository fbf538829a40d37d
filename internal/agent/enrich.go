package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/joelkehle/patentos/internal/journal"
	"github.com/joelkehle/patentos/internal/metrics"
	"github.com/joelkehle/patentos/internal/patent"
	"github.com/joelkehle/patentos/internal/session"
)

// Sentinel texts returned in place of a model answer.
const (
	DeepDiveFailedText       = "Deep dive analysis failed due to agent timeout."
	AnalysisUnavailableText  = "Analysis unavailable."
	PriorArtUnavailableText  = "Prior art simulation unavailable."
	FallbackDossierMarker    = "**System Notice:** Real-time deep scan timed out."
	FallbackDossier          = FallbackDossierMarker + " \n\n**Simulated Finding:** High probability of existing prior art in US Sector 4 (Semiconductors). Recommend manual review."
	msgPriorArtFallback      = "Prior art protocol warning: Using simulation fallback due to timeout."
	msgPriorArtFound         = "Found high-risk citation vectors."
	msgPriorArtNarrationJPO  = "Accessing JPO (Japan) and KIPO (Korea) citation databases..."
	msgPriorArtNarrationScan = "Analyzing 142 citation vectors for semantic overlap..."
)

var priorArtNarration = []narration{
	{typ: session.LogInfo, message: msgPriorArtNarrationJPO},
	{typ: session.LogAction, message: msgPriorArtNarrationScan},
}

// DeepDive asks for the freedom-to-operate summary of rec. It never fails:
// errors and empty answers become sentinel text.
func (a *Agent) DeepDive(ctx context.Context, rec patent.Record) string {
	text, err := a.gw.GenerateText(ctx, deepDivePrompt(rec))
	if err != nil {
		metrics.DeepDives.WithLabelValues("failed").Inc()
		a.logger.Warn("deep_dive_failed", zap.String("entity_id", rec.ID), zap.Error(err))
		return DeepDiveFailedText
	}
	if strings.TrimSpace(text) == "" {
		metrics.DeepDives.WithLabelValues("empty").Inc()
		return AnalysisUnavailableText
	}
	metrics.DeepDives.WithLabelValues("ok").Inc()
	return text
}

// SelectEntity opens the detail view for id and refreshes its analysis in
// the background. Every call starts a fresh analysis; an answer for a
// selection that has since changed is dropped.
func (a *Agent) SelectEntity(id string) (session.Selection, error) {
	if a.ctx.Err() != nil {
		return session.Selection{}, ErrClosed
	}
	sel, err := a.store.Select(id)
	if err != nil {
		return session.Selection{}, err
	}
	a.store.Log(sel.Generation, session.LogInfo, fmt.Sprintf("Generating Freedom-to-Operate report for %s...", id))
	err = a.goBackground(func(ctx context.Context) {
		text := a.DeepDive(ctx, sel.Record)
		if !a.store.SetAnalysis(sel, text) {
			metrics.StaleResults.WithLabelValues("analysis").Inc()
			a.logger.Debug("deep_dive_superseded", zap.String("entity_id", id), zap.Uint64("selection", sel.Seq))
		}
	})
	return sel, err
}

// ClearSelection closes the detail view. An analysis still in flight is
// discarded when it lands.
func (a *Agent) ClearSelection() {
	a.store.ClearSelection()
}

// RequestPriorArt returns the prior-art dossier for id, fetching it when
// none is attached. Concurrent requests for the same record in the same
// generation share one gateway call. A failed call attaches the fallback
// dossier, so the only errors are an unknown id, a superseded generation or
// ctx ending while waiting. The fetch itself always runs to completion.
func (a *Agent) RequestPriorArt(ctx context.Context, id string) (string, error) {
	rec, gen, ok := a.store.Lookup(id)
	if !ok {
		return "", ErrUnknownEntity
	}
	if rec.HasPriorArt() {
		a.store.Log(gen, session.LogInfo, fmt.Sprintf("Retrieving cached Prior Art report for %s...", id))
		metrics.PriorArt.WithLabelValues("cached").Inc()
		return *rec.PriorArtReport, nil
	}
	type result struct {
		report string
		err    error
	}
	key := fmt.Sprintf("%d/%s", gen, id)
	done := make(chan result, 1)
	err := a.goBackground(func(context.Context) {
		v, err, shared := a.flights.Do(key, func() (any, error) {
			return a.fetchPriorArt(gen, id)
		})
		if shared {
			metrics.PriorArt.WithLabelValues("shared").Inc()
		}
		report, _ := v.(string)
		done <- result{report: report, err: err}
	})
	if err != nil {
		return "", err
	}

	select {
	case r := <-done:
		return r.report, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SubmitPriorArt validates id and fetches its dossier in the background.
func (a *Agent) SubmitPriorArt(id string) error {
	if _, _, ok := a.store.Lookup(id); !ok {
		return ErrUnknownEntity
	}
	return a.goBackground(func(ctx context.Context) {
		if _, err := a.RequestPriorArt(ctx, id); err != nil && !errors.Is(err, session.ErrStale) {
			a.logger.Info("prior_art_request_error", zap.String("entity_id", id), zap.Error(err))
		}
	})
}

func (a *Agent) fetchPriorArt(gen uint64, id string) (string, error) {
	rec, started, err := a.store.BeginPriorArt(gen, id)
	if err != nil {
		if errors.Is(err, session.ErrStale) {
			metrics.PriorArt.WithLabelValues("stale").Inc()
		}
		return "", err
	}
	if !started {
		metrics.PriorArt.WithLabelValues("cached").Inc()
		return *rec.PriorArtReport, nil
	}

	a.store.Log(gen, session.LogAction, fmt.Sprintf("Initiating Prior Art Discovery Protocol for %s...", id))
	a.logger.Info("prior_art_start", zap.Uint64("generation", gen), zap.String("entity_id", id))

	stop := a.narrate(gen, priorArtNarration)
	text, callErr := a.gw.GenerateText(a.ctx, priorArtPrompt(rec))
	stop()

	report, fallback := text, false
	switch {
	case callErr != nil:
		a.logger.Warn("prior_art_fallback", zap.String("entity_id", id), zap.Error(callErr))
		a.store.Log(gen, session.LogWarning, msgPriorArtFallback)
		report, fallback = FallbackDossier, true
	case strings.TrimSpace(text) == "":
		report = PriorArtUnavailableText
	}

	stored, attached := a.store.AttachPriorArt(gen, id, report, fallback)
	if !attached {
		if stored.HasPriorArt() {
			return *stored.PriorArtReport, nil
		}
		metrics.PriorArt.WithLabelValues("stale").Inc()
		metrics.StaleResults.WithLabelValues("prior_art").Inc()
		a.logger.Info("prior_art_superseded", zap.Uint64("generation", gen), zap.String("entity_id", id))
		return "", session.ErrStale
	}

	if fallback {
		metrics.PriorArt.WithLabelValues("fallback").Inc()
	} else {
		a.store.Log(gen, session.LogSuccess, msgPriorArtFound)
		a.store.Log(gen, session.LogInfo, fmt.Sprintf("Prior Art Dossier attached to case file %s.", id))
		metrics.PriorArt.WithLabelValues("fetched").Inc()
	}
	a.recordDossier(journal.Dossier{
		Generation: gen,
		EntityID:   id,
		Fallback:   fallback,
		Chars:      len(report),
		CreatedAt:  a.now(),
	})
	return report, nil
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joelkehle/patentos/internal/gateway"
	"github.com/joelkehle/patentos/internal/journal"
	"github.com/joelkehle/patentos/internal/metrics"
	"github.com/joelkehle/patentos/internal/patent"
	"github.com/joelkehle/patentos/internal/session"
)

// Activity log lines written by a search.
const (
	msgNoAPIKey      = "Error: No API Key found in environment variables."
	msgMalformed     = "Warning: Agent response was malformed. Attempting recovery..."
	msgFatalIndexing = "Agent encountered a fatal indexing error. Please retry."
	msgMalfunction   = "System Malfunction: Search terminated abnormally."
	msgCrossRef      = "Cross-referencing filing dates with UK IPO database..."
	msgFilter        = "Filtering for UK-replicable opportunities (Expired/US-Only)..."
)

type searchRun struct {
	gen     uint64
	query   string
	started time.Time
}

// Search runs a landscape search to completion and returns the sanitized
// records in replicability order. A parse failure completes with zero
// records and a nil error. When a newer search or a reset superseded this
// one, the results are discarded and session.ErrStale is returned.
func (a *Agent) Search(ctx context.Context, query string) ([]patent.Record, error) {
	run, err := a.begin(query)
	if err != nil {
		return nil, err
	}
	return a.run(ctx, run)
}

// SubmitSearch starts a search in the background. The session is already in
// SEARCHING when it returns.
func (a *Agent) SubmitSearch(query string) error {
	if a.ctx.Err() != nil {
		return ErrClosed
	}
	run, err := a.begin(query)
	if err != nil {
		return err
	}
	return a.goBackground(func(ctx context.Context) {
		if _, err := a.run(ctx, run); err != nil && !errors.Is(err, session.ErrStale) {
			a.logger.Info("search_finished_with_error", zap.Uint64("generation", run.gen), zap.Error(err))
		}
	})
}

func (a *Agent) begin(query string) (searchRun, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return searchRun{}, ErrEmptyQuery
	}
	gen := a.store.BeginSearch(query)
	a.store.Log(gen, session.LogInfo, fmt.Sprintf("Initiating global patent scan for: \"%s\"", query))
	a.logger.Info("search_start", zap.Uint64("generation", gen), zap.String("query", query))
	return searchRun{gen: gen, query: query, started: a.now()}, nil
}

func (a *Agent) run(ctx context.Context, r searchRun) ([]patent.Record, error) {
	if err := gateway.Ready(a.gw); err != nil {
		a.store.Log(r.gen, session.LogError, msgNoAPIKey)
		return nil, a.fail(r, err)
	}

	a.store.Log(r.gen, session.LogInfo, fmt.Sprintf("Initializing %s Agent...", a.modelLabel))
	a.pause(ctx)
	a.store.Log(r.gen, session.LogAction, fmt.Sprintf("Accessing global patent index for \"%s\"...", r.query))
	a.pause(ctx)
	a.store.Log(r.gen, session.LogAction, msgFilter)

	raw, err := a.gw.GenerateRecords(ctx, searchPrompt(r.query, a.candidates), recordSchema)
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrParse):
		a.store.Log(r.gen, session.LogAction, msgCrossRef)
		a.store.Log(r.gen, session.LogWarning, msgMalformed)
		return a.complete(r, nil, err)
	case errors.Is(err, gateway.ErrConfig):
		a.store.Log(r.gen, session.LogError, msgNoAPIKey)
		return nil, a.fail(r, err)
	default:
		a.store.Log(r.gen, session.LogError, msgFatalIndexing)
		return nil, a.fail(r, err)
	}

	a.store.Log(r.gen, session.LogAction, msgCrossRef)
	a.pause(ctx)

	records := make([]patent.Record, len(raw))
	for i, v := range raw {
		records[i] = patent.Sanitize(patent.RawFrom(v))
	}
	records = patent.Project(records, patent.SortReplicability)
	a.store.Log(r.gen, session.LogSuccess, fmt.Sprintf("Analysis complete. Identified %d strategic vectors.", len(records)))
	return a.complete(r, records, nil)
}

// complete installs records for the run's generation. cause is a recovered
// error (a parse failure) to note in the journal.
func (a *Agent) complete(r searchRun, records []patent.Record, cause error) ([]patent.Record, error) {
	if records == nil {
		records = []patent.Record{}
	}
	if !a.store.CompleteSearch(r.gen, records) {
		return nil, a.discard(r)
	}
	outcome := journal.OutcomeCompleted
	if len(records) == 0 {
		outcome = journal.OutcomeEmpty
	}
	run := journal.SearchRun{
		Generation:  r.gen,
		Query:       r.query,
		Outcome:     outcome,
		ResultCount: len(records),
		StartedAt:   r.started,
		FinishedAt:  a.now(),
	}
	if cause != nil {
		run.Error = cause.Error()
	}
	a.recordSearch(run)
	metrics.Searches.WithLabelValues(outcome).Inc()
	a.logger.Info("search_complete",
		zap.Uint64("generation", r.gen),
		zap.Int("results", len(records)),
		zap.String("outcome", outcome),
		zap.Int64("elapsed_ms", a.now().Sub(r.started).Milliseconds()))
	return records, nil
}

func (a *Agent) fail(r searchRun, cause error) error {
	if !a.store.FailSearch(r.gen) {
		return a.discard(r)
	}
	a.store.Log(r.gen, session.LogError, msgMalfunction)
	a.recordSearch(journal.SearchRun{
		Generation: r.gen,
		Query:      r.query,
		Outcome:    journal.OutcomeError,
		Error:      cause.Error(),
		StartedAt:  r.started,
		FinishedAt: a.now(),
	})
	metrics.Searches.WithLabelValues(journal.OutcomeError).Inc()
	a.logger.Warn("search_failed", zap.Uint64("generation", r.gen), zap.Error(cause))
	return cause
}

func (a *Agent) discard(r searchRun) error {
	metrics.StaleResults.WithLabelValues("search").Inc()
	a.recordSearch(journal.SearchRun{
		Generation: r.gen,
		Query:      r.query,
		Outcome:    journal.OutcomeSuperseded,
		StartedAt:  r.started,
		FinishedAt: a.now(),
	})
	a.logger.Info("search_superseded", zap.Uint64("generation", r.gen))
	return session.ErrStale
}

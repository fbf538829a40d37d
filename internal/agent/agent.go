// Package agent orchestrates searches and per-record enrichment against the
// AI gateway and reconciles every result into the session store.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/joelkehle/patentos/internal/gateway"
	"github.com/joelkehle/patentos/internal/journal"
	"github.com/joelkehle/patentos/internal/session"
)

const (
	DefaultCandidates = 6
	DefaultPacing     = 400 * time.Millisecond
)

var (
	ErrEmptyQuery    = errors.New("query is required")
	ErrUnknownEntity = session.ErrUnknownEntity
	ErrClosed        = errors.New("agent is closed")
)

// Journal records finished runs. *journal.Journal satisfies it.
type Journal interface {
	RecordSearch(ctx context.Context, run journal.SearchRun) error
	RecordDossier(ctx context.Context, d journal.Dossier) error
}

type Agent struct {
	gw     gateway.Gateway
	store  *session.Store
	logger *zap.Logger

	journal    Journal
	pacing     time.Duration
	candidates int
	modelLabel string
	now        func() time.Time

	flights singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add against Close so no goroutine starts once Close is waiting.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Agent)

func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithJournal(j Journal) Option {
	return func(a *Agent) { a.journal = j }
}

// WithPacing sets the delay between narration steps. Zero disables pacing.
func WithPacing(d time.Duration) Option {
	return func(a *Agent) {
		if d >= 0 {
			a.pacing = d
		}
	}
}

func WithCandidates(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.candidates = n
		}
	}
}

// WithModelLabel overrides the model name shown in the activity log.
func WithModelLabel(label string) Option {
	return func(a *Agent) {
		if label != "" {
			a.modelLabel = label
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

func New(gw gateway.Gateway, store *session.Store, opts ...Option) *Agent {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		gw:         gw,
		store:      store,
		logger:     zap.NewNop(),
		pacing:     DefaultPacing,
		candidates: DefaultCandidates,
		modelLabel: "PatentOS",
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	if m, ok := gw.(interface{ Model() string }); ok && m.Model() != "" {
		a.modelLabel = m.Model()
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Agent) Store() *session.Store { return a.store }

// Ready reports whether the gateway can serve requests.
func (a *Agent) Ready() error { return gateway.Ready(a.gw) }

// Wait blocks until every background search and enrichment has finished.
func (a *Agent) Wait() { a.wg.Wait() }

// Close cancels background work and waits for it to reach a terminal state.
func (a *Agent) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.cancel()
	a.wg.Wait()
}

// goBackground runs fn on a tracked goroutine bound to the agent lifetime.
// It is the only place that adds to wg.
func (a *Agent) goBackground(fn func(ctx context.Context)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.ctx)
	}()
	return nil
}

// pause waits for the pacing delay. It reports false if ctx ended first.
func (a *Agent) pause(ctx context.Context) bool {
	if a.pacing <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(a.pacing)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type narration struct {
	typ     session.LogType
	message string
}

// narrate writes cosmetic progress events on its own goroutine, one per
// pacing interval. The returned stop func cancels the remaining steps and
// waits for the goroutine to exit. Narration is disabled when pacing is zero.
func (a *Agent) narrate(gen uint64, steps []narration) (stop func()) {
	if a.pacing <= 0 || len(steps) == 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(a.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, s := range steps {
			if !a.pause(ctx) {
				return
			}
			a.store.Log(gen, s.typ, s.message)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (a *Agent) recordSearch(run journal.SearchRun) {
	if a.journal == nil {
		return
	}
	if err := a.journal.RecordSearch(context.WithoutCancel(a.ctx), run); err != nil {
		a.logger.Warn("journal_record_search_failed", zap.Uint64("generation", run.Generation), zap.Error(err))
	}
}

func (a *Agent) recordDossier(d journal.Dossier) {
	if a.journal == nil {
		return
	}
	if err := a.journal.RecordDossier(context.WithoutCancel(a.ctx), d); err != nil {
		a.logger.Warn("journal_record_dossier_failed", zap.String("entity_id", d.EntityID), zap.Error(err))
	}
}

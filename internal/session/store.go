// Package session holds the single per-process session state and the
// transitions that are the only way to change it.
package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joelkehle/patentos/internal/patent"
)

type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusSearching Status = "SEARCHING"
	StatusCompleted Status = "COMPLETED"
	StatusError     Status = "ERROR"
)

var (
	ErrUnknownEntity   = errors.New("unknown entity")
	ErrInvalidSortMode = errors.New("invalid sort mode")
)

// Analysis is the transient freedom-to-operate view of the selected record.
// It is refreshed on every selection and never stored on the record.
type Analysis struct {
	EntityID string `json:"entityId"`
	Text     string `json:"text"`
	Loading  bool   `json:"loading"`
}

// State is a deep copy of the session taken under the store lock.
type State struct {
	Generation      uint64          `json:"generation"`
	Query           string          `json:"query"`
	Status          Status          `json:"status"`
	Entities        []patent.Record `json:"entities"`
	Log             []LogEvent      `json:"log"`
	SelectedID      string          `json:"selectedId,omitempty"`
	SortMode        patent.SortMode `json:"sortMode"`
	Analysis        *Analysis       `json:"analysis,omitempty"`
	PendingPriorArt []string        `json:"pendingPriorArt"`
}

// Selected resolves the weak selection reference against the entity list.
func (s State) Selected() (patent.Record, bool) {
	if s.SelectedID == "" {
		return patent.Record{}, false
	}
	for _, e := range s.Entities {
		if e.ID == s.SelectedID {
			return e, true
		}
	}
	return patent.Record{}, false
}

// Store serializes every transition behind one mutex. Search-scoped writes
// carry the generation they were started under and are dropped once a newer
// search or a reset has begun.
type Store struct {
	mu sync.Mutex

	generation uint64
	selection  uint64

	query    string
	status   Status
	entities []patent.Record
	log      []LogEvent
	selected string
	sortMode patent.SortMode
	analysis *Analysis
	pending  map[string]struct{}

	subs   map[int]chan LogEvent
	nextID int

	now   func() time.Time
	newID func() string
}

type Option func(*Store)

// WithClock replaces time.Now for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the uuid generator for log event ids.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		status:   StatusIdle,
		sortMode: patent.SortReplicability,
		pending:  map[string]struct{}{},
		subs:     map[int]chan LogEvent{},
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Generation:      s.generation,
		Query:           s.query,
		Status:          s.status,
		Entities:        patent.CloneAll(s.entities),
		Log:             slices.Clone(s.log),
		SelectedID:      s.selected,
		SortMode:        s.sortMode,
		PendingPriorArt: make([]string, 0, len(s.pending)),
	}
	if st.Entities == nil {
		st.Entities = []patent.Record{}
	}
	if st.Log == nil {
		st.Log = []LogEvent{}
	}
	if s.analysis != nil {
		a := *s.analysis
		st.Analysis = &a
	}
	for id := range s.pending {
		st.PendingPriorArt = append(st.PendingPriorArt, id)
	}
	slices.Sort(st.PendingPriorArt)
	return st
}

// Generation returns the current search generation token.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// BeginSearch starts a new generation: entities, log, selection, analysis
// and pending enrichments are cleared and status becomes SEARCHING. The sort
// mode is kept.
func (s *Store) BeginSearch(query string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.query = query
	s.status = StatusSearching
	s.clearLocked()
	return s.generation
}

// CompleteSearch replaces the entity set wholesale. It reports false when gen
// is stale, in which case nothing changes.
func (s *Store) CompleteSearch(gen uint64, records []patent.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.status != StatusSearching {
		return false
	}
	s.entities = patent.CloneAll(records)
	s.status = StatusCompleted
	return true
}

// FailSearch moves the current search to ERROR. It reports false when gen is stale.
func (s *Store) FailSearch(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.status != StatusSearching {
		return false
	}
	s.status = StatusError
	return true
}

// Reset returns the session to its initial state from any status. It bumps
// the generation so in-flight work is discarded when it lands.
func (s *Store) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.query = ""
	s.status = StatusIdle
	s.sortMode = patent.SortReplicability
	s.clearLocked()
	return s.generation
}

func (s *Store) clearLocked() {
	s.entities = nil
	s.log = nil
	s.selected = ""
	s.analysis = nil
	s.selection++
	clear(s.pending)
}

// SetSortMode changes the display ordering. It never touches entities.
func (s *Store) SetSortMode(mode patent.SortMode) error {
	if _, err := patent.ParseSortMode(string(mode)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSortMode, err)
	}
	s.mu.Lock()
	s.sortMode = mode
	s.mu.Unlock()
	return nil
}

// Lookup returns a copy of the record with the given id together with the
// generation it belongs to.
func (s *Store) Lookup(id string) (patent.Record, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return patent.Record{}, 0, false
	}
	return s.entities[i].Clone(), s.generation, true
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.entities, func(r patent.Record) bool { return r.ID == id })
}

// Selection identifies one act of selecting a record. Analysis results are
// only accepted for the selection that requested them.
type Selection struct {
	Generation uint64
	Seq        uint64
	Record     patent.Record
}

// Select points the selection at id and marks its analysis as loading.
// Re-selecting the same id starts a fresh analysis.
func (s *Store) Select(id string) (Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Selection{}, ErrUnknownEntity
	}
	s.selection++
	s.selected = id
	s.analysis = &Analysis{EntityID: id, Loading: true}
	return Selection{Generation: s.generation, Seq: s.selection, Record: s.entities[i].Clone()}, nil
}

// ClearSelection closes the detail view.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection++
	s.selected = ""
	s.analysis = nil
}

// SetAnalysis stores the analysis text for sel. It reports false when the
// selection has since changed.
func (s *Store) SetAnalysis(sel Selection, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel.Seq != s.selection || sel.Generation != s.generation || s.selected != sel.Record.ID {
		return false
	}
	s.analysis = &Analysis{EntityID: sel.Record.ID, Text: text}
	return true
}

// BeginPriorArt checks and marks a prior-art fetch for id atomically. When a
// report is already attached it is returned with started=false and nothing
// is marked.
func (s *Store) BeginPriorArt(gen uint64, id string) (rec patent.Record, started bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return patent.Record{}, false, ErrStale
	}
	i := s.indexLocked(id)
	if i < 0 {
		return patent.Record{}, false, ErrUnknownEntity
	}
	rec = s.entities[i].Clone()
	if rec.HasPriorArt() {
		return rec, false, nil
	}
	s.pending[id] = struct{}{}
	return rec, true, nil
}

// AttachPriorArt is the single writer of Record.PriorArtReport. It patches
// every record carrying the given id, leaves every other record untouched and
// clears the pending marker. A report already attached is never overwritten;
// the stored record is returned either way.
func (s *Store) AttachPriorArt(gen uint64, id, report string, fallback bool) (patent.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return patent.Record{}, false
	}
	delete(s.pending, id)
	i := s.indexLocked(id)
	if i < 0 {
		return patent.Record{}, false
	}
	if s.entities[i].HasPriorArt() {
		return s.entities[i].Clone(), false
	}
	next := slices.Clone(s.entities)
	for j, rec := range next {
		if rec.ID == id && !rec.HasPriorArt() {
			next[j] = rec.WithPriorArt(report, fallback)
		}
	}
	s.entities = next
	return next[i].Clone(), true
}

// PriorArtPending reports whether a fetch for id is outstanding.
func (s *Store) PriorArtPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

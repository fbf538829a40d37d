package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/patentos/internal/gateway"
	"github.com/joelkehle/patentos/internal/patent"
	"github.com/joelkehle/patentos/internal/session"
)

func recordsFor(id string) patent.Record {
	return patent.Sanitize(patent.Raw{patent.FieldID: id})
}

func TestDeepDiveSentinels(t *testing.T) {
	ctx := context.Background()
	a := newAgent(t, &fakeGateway{textErr: errors.New("deadline exceeded")})
	assert.Equal(t, DeepDiveFailedText, a.DeepDive(ctx, recordsFor("US1")))

	a = newAgent(t, &fakeGateway{text: "  "})
	assert.Equal(t, AnalysisUnavailableText, a.DeepDive(ctx, recordsFor("US1")))

	a = newAgent(t, &fakeGateway{text: "# Executive Verdict"})
	assert.Equal(t, "# Executive Verdict", a.DeepDive(ctx, recordsFor("US1")))
}

func TestSelectEntityRefreshesAnalysis(t *testing.T) {
	gw := &fakeGateway{}
	a := newAgent(t, gw)
	searched(t, a, gw)
	gw.text = "# Executive Verdict"

	_, err := a.SelectEntity("missing")
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = a.SelectEntity("US1")
	require.NoError(t, err)
	a.Wait()
	st := a.Store().Snapshot()
	require.NotNil(t, st.Analysis)
	assert.Equal(t, "US1", st.Analysis.EntityID)
	assert.Equal(t, "# Executive Verdict", st.Analysis.Text)
	assert.False(t, st.Analysis.Loading)
	assert.Equal(t, session.StatusCompleted, st.Status)

	_, err = a.SelectEntity("US1")
	require.NoError(t, err)
	a.Wait()
	assert.Equal(t, int32(2), gw.textCalls.Load(), "re-selecting refreshes the analysis")
}

func TestSupersededAnalysisIsDiscarded(t *testing.T) {
	gw := &fakeGateway{}
	a := newAgent(t, gw)
	searched(t, a, gw)
	gw.text = "analysis"
	gw.gate = make(chan struct{})

	_, err := a.SelectEntity("US1")
	require.NoError(t, err)
	_, err = a.SelectEntity("US2")
	require.NoError(t, err)
	close(gw.gate)
	a.Wait()

	st := a.Store().Snapshot()
	assert.Equal(t, "US2", st.SelectedID)
	require.NotNil(t, st.Analysis)
	assert.Equal(t, "US2", st.Analysis.EntityID)

	a.ClearSelection()
	st = a.Store().Snapshot()
	assert.Empty(t, st.SelectedID)
	assert.Nil(t, st.Analysis)
}

func TestRequestPriorArtAttachesAndCaches(t *testing.T) {
	gw := &fakeGateway{}
	a := newAgent(t, gw)
	searched(t, a, gw)
	gw.text = "**CITATION ANALYSIS RESULTS**"

	report, err := a.RequestPriorArt(context.Background(), "US2")
	require.NoError(t, err)
	assert.Equal(t, "**CITATION ANALYSIS RESULTS**", report)

	st := a.Store().Snapshot()
	for _, e := range st.Entities {
		if e.ID == "US2" {
			require.NotNil(t, e.PriorArtReport)
			assert.Equal(t, report, *e.PriorArtReport)
			assert.False(t, e.PriorArtFallback)
		} else {
			assert.Nil(t, e.PriorArtReport)
		}
	}
	assert.Empty(t, st.PendingPriorArt)
	msgs := messages(st)
	assert.Contains(t, msgs, "Initiating Prior Art Discovery Protocol for US2...")
	assert.Contains(t, msgs, msgPriorArtFound)
	assert.Contains(t, msgs, "Prior Art Dossier attached to case file US2.")

	again, err := a.RequestPriorArt(context.Background(), "US2")
	require.NoError(t, err)
	assert.Equal(t, report, again)
	assert.Equal(t, int32(1), gw.textCalls.Load(), "a cached dossier costs no gateway call")
	assert.Contains(t, messages(a.Store().Snapshot()), "Retrieving cached Prior Art report for US2...")
}

func TestRequestPriorArtAtMostOneInFlight(t *testing.T) {
	gw := &fakeGateway{}
	a := newAgent(t, gw)
	searched(t, a, gw)
	gw.text = "dossier"
	gw.gate = make(chan struct{})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.RequestPriorArt(context.Background(), "US1")
		}(i)
	}
	require.Eventually(t, func() bool { return gw.textCalls.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, a.Store().PriorArtPending("US1"))
	close(gw.gate)
	wg.Wait()

	assert.Equal(t, int32(1), gw.textCalls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "dossier", results[i])
	}
	assert.False(t, a.Store().PriorArtPending("US1"))
}

func TestRequestPriorArtFallback(t *testing.T) {
	j := &memJournal{}
	gw := &fakeGateway{}
	a := newAgent(t, gw, WithJournal(j))
	searched(t, a, gw)
	gw.textErr = &gateway.Error{Kind: gateway.KindTransport, Err: context.DeadlineExceeded}

	report, err := a.RequestPriorArt(context.Background(), "US3")
	require.NoError(t, err)
	assert.Equal(t, FallbackDossier, report)
	assert.Contains(t, report, FallbackDossierMarker)

	rec, _, ok := a.Store().Lookup("US3")
	require.True(t, ok)
	assert.True(t, rec.PriorArtFallback)
	assert.False(t, a.Store().PriorArtPending("US3"))

	st := a.Store().Snapshot()
	last := st.Log[len(st.Log)-1]
	assert.Equal(t, session.LogWarning, last.Type)
	assert.Equal(t, msgPriorArtFallback, last.Message)

	require.Len(t, j.dossiers, 1)
	assert.True(t, j.dossiers[0].Fallback)
}

func TestRequestPriorArtEmptyAnswer(t *testing.T) {
	gw := &fakeGateway{}
	a := newAgent(t, gw)
	searched(t, a, gw)
	gw.text = ""

	report, err := a.RequestPriorArt(context.Background(), "US1")
	require.NoError(t, err)
	assert.Equal(t, PriorArtUnavailableText, report)
}

func TestRequestPriorArtUnknownEntity(t *testing.T) {
	gw := &fakeGateway{}
	a := newAgent(t, gw)
	searched(t, a, gw)
	_, err := a.RequestPriorArt(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownEntity)
	assert.ErrorIs(t, a.SubmitPriorArt("nope"), ErrUnknownEntity)
	assert.Zero(t, gw.textCalls.Load())
}

func TestRequestPriorArtStaleAfterReset(t *testing.T) {
	gw := &fakeGateway{}
	a := newAgent(t, gw)
	searched(t, a, gw)
	gw.text = "late dossier"
	gw.gate = make(chan struct{})

	require.NoError(t, a.SubmitPriorArt("US1"))
	require.Eventually(t, func() bool { return gw.textCalls.Load() == 1 }, time.Second, time.Millisecond)
	a.Store().Reset()
	close(gw.gate)
	a.Wait()

	st := a.Store().Snapshot()
	assert.Empty(t, st.Entities)
	assert.Empty(t, st.Log)
	assert.Empty(t, st.PendingPriorArt)
}

func TestPriorArtNarrationRunsAlongsideCall(t *testing.T) {
	gw := &fakeGateway{}
	a := newAgent(t, gw, WithPacing(time.Millisecond))
	searched(t, a, gw)
	gw.text = "dossier"
	gw.gate = make(chan struct{})

	require.NoError(t, a.SubmitPriorArt("US1"))
	require.Eventually(t, func() bool {
		msgs := messages(a.Store().Snapshot())
		return len(msgs) > 0 && msgs[len(msgs)-1] == msgPriorArtNarrationScan
	}, time.Second, time.Millisecond)
	close(gw.gate)
	a.Wait()

	msgs := messages(a.Store().Snapshot())
	assert.Contains(t, msgs, msgPriorArtNarrationJPO)
	assert.Equal(t, "Prior Art Dossier attached to case file US1.", msgs[len(msgs)-1])
}

func TestWaitingCallerCanGiveUp(t *testing.T) {
	gw := &fakeGateway{}
	a := newAgent(t, gw)
	searched(t, a, gw)
	gw.text = "dossier"
	gw.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := a.RequestPriorArt(ctx, "US1")
		errc <- err
	}()
	require.Eventually(t, func() bool { return gw.textCalls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(gw.gate)
	a.Wait()
	rec, _, _ := a.Store().Lookup("US1")
	require.NotNil(t, rec.PriorArtReport, "the fetch finishes without its caller")
	assert.Equal(t, "dossier", *rec.PriorArtReport)
}

func TestRequestPriorArtAfterCloseIsRefused(t *testing.T) {
	gw := &fakeGateway{text: "dossier"}
	a := newAgent(t, gw)
	searched(t, a, gw)
	a.Close()

	_, err := a.RequestPriorArt(context.Background(), "US1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.SubmitPriorArt("US2"), ErrClosed)
	assert.Zero(t, gw.textCalls.Load())
}

func TestCloseWhileRequestingPriorArt(t *testing.T) {
	gw := &fakeGateway{text: "dossier"}
	a := newAgent(t, gw)
	searched(t, a, gw)

	ids := []string{"US1", "US2", "US3"}
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := a.RequestPriorArt(context.Background(), id)
			errs <- err
		}(ids[i%len(ids)])
	}
	a.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrClosed)
		}
	}
}

func TestRequestPriorArtPatchesEveryRecordSharingAnID(t *testing.T) {
	gw := &fakeGateway{text: "dossier"}
	a := newAgent(t, gw)
	gw.records = []any{
		map[string]any{"title": "A", "ukReplicabilityScore": 60.0},
		map[string]any{"title": "B", "ukReplicabilityScore": 50.0},
	}
	_, err := a.Search(context.Background(), "battery")
	require.NoError(t, err)

	report, err := a.RequestPriorArt(context.Background(), patent.DefaultID)
	require.NoError(t, err)
	assert.Equal(t, "dossier", report)

	st := a.Store().Snapshot()
	require.Len(t, st.Entities, 2)
	for _, rec := range st.Entities {
		assert.Equal(t, patent.DefaultID, rec.ID)
		require.True(t, rec.HasPriorArt(), rec.Title)
		assert.Equal(t, "dossier", *rec.PriorArtReport)
	}
	assert.Equal(t, int32(1), gw.textCalls.Load())
}

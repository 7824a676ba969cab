package quotes

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quote-engine/store"
)

func TestMetrics_CountOutcomesAndRuns(t *testing.T) {
	ctx := context.Background()
	gw, err := store.Open(ctx, store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	im, err := NewImporter(gw, ImportOptions{
		OnMalformed: MalformedSkip,
		Now:         func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	}, m)
	require.NoError(t, err)

	label := "02/2024"
	recs := []ExternalRecord{
		NewExternalRecord("01/2024", "10"),
		{Period: &label},
		NewExternalRecord("13/2024", "10"),
	}

	_, err = im.Import(ctx, "a.json", recs)
	require.NoError(t, err)
	_, err = im.Import(ctx, "a.json", recs[:1])
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues(string(outcomeCreated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues(string(outcomeUpdated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues(string(outcomeSkipped))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues(string(outcomeRejected))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues(runCompleted)))

	n, err := testutil.GatherAndCount(reg, "quotes_import_run_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.record(outcomeCreated)
		m.runFinished(runFailed, 0)
	})
}

func TestMetrics_RolledBackRunCountsNoRecords(t *testing.T) {
	// GIVEN: An all-or-nothing import whose last record is malformed
	ctx := context.Background()
	gw, err := store.Open(ctx, store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	m := NewMetrics(prometheus.NewRegistry())
	im, err := NewImporter(gw, ImportOptions{Atomicity: AtomicAllOrNothing}, m)
	require.NoError(t, err)

	// WHEN
	_, err = im.Import(ctx, "a.json", []ExternalRecord{
		NewExternalRecord("01/2024", "10"),
		NewExternalRecord("02/2024", "11"),
		NewExternalRecord("13/2024", "12"),
	})

	// THEN: Nothing was stored, so nothing is counted as created
	require.Error(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.records.WithLabelValues(string(outcomeCreated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(runFailed)))
}

func TestMetrics_PerRecordAbortCountsCommittedRecords(t *testing.T) {
	ctx := context.Background()
	gw, err := store.Open(ctx, store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	m := NewMetrics(prometheus.NewRegistry())
	im, err := NewImporter(gw, ImportOptions{}, m)
	require.NoError(t, err)

	_, err = im.Import(ctx, "a.json", []ExternalRecord{
		NewExternalRecord("01/2024", "10"),
		NewExternalRecord("13/2024", "12"),
	})

	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues(string(outcomeCreated))))
}

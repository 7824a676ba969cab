package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quote-engine/quotes"
	"github.com/warp/quote-engine/store"
)

func newTestScheduler(t *testing.T) (*InboxScheduler, *store.Gateway) {
	t.Helper()
	gw, err := store.Open(context.Background(), store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	im, err := quotes.NewImporter(gw, quotes.ImportOptions{}, nil)
	require.NoError(t, err)
	return NewInboxScheduler(quotes.NewService(gw, im), t.TempDir()), gw
}

func writeInbox(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestInboxScheduler_RunNow(t *testing.T) {
	// GIVEN: An inbox with a good file, a malformed file and a non-JSON file
	s, gw := newTestScheduler(t)
	writeInbox(t, s.Dir, "b-good.json", `[{"referenceMonth":"01/2024","price":1}]`)
	writeInbox(t, s.Dir, "a-bad.json", `[{"referenceMonth":"99/2024","price":1}]`)
	writeInbox(t, s.Dir, "notes.txt", `ignored`)

	// WHEN: Running a pass
	res, err := s.RunNow(context.Background())

	// THEN: Each JSON file is imported once and moved
	require.NoError(t, err)
	assert.Equal(t, []string{"b-good.json"}, res.Processed)
	assert.Equal(t, []string{"a-bad.json"}, res.Failed)

	assert.FileExists(t, filepath.Join(s.Dir, ProcessedDir, "b-good.json"))
	assert.FileExists(t, filepath.Join(s.Dir, FailedDir, "a-bad.json"))
	assert.FileExists(t, filepath.Join(s.Dir, "notes.txt"))
	assert.NoFileExists(t, filepath.Join(s.Dir, "b-good.json"))

	runs, err := quotes.ListImportRuns(context.Background(), gw, quotes.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b-good.json", runs[0].FileName)

	// AND: A second pass finds nothing
	res, err = s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Processed)
	assert.Empty(t, res.Failed)
}

func TestInboxScheduler_MissingDir(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.Dir = filepath.Join(s.Dir, "absent")

	_, err := s.RunNow(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInboxScheduler_StartStop(t *testing.T) {
	s, gw := newTestScheduler(t)
	s.Interval = 10 * time.Millisecond
	writeInbox(t, s.Dir, "q.json", `[{"referenceMonth":"01/2024","price":1}]`)

	s.Start()
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(s.Dir, ProcessedDir, "q.json"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()
	s.Stop()

	runs, err := quotes.ListImportRuns(context.Background(), gw, quotes.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestInboxScheduler_DisabledWithoutDir(t *testing.T) {
	s := NewInboxScheduler(nil, "")
	assert.False(t, s.Enabled)
	assert.NotPanics(t, func() {
		s.Start()
		s.Stop()
	})
}

package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"screenpilot/internal/codex"
	"screenpilot/internal/config"
	"screenpilot/internal/store"
)

func newFixture(t *testing.T) (*SessionWatcher, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Watch.SessionsDir = filepath.Join(dir, "sessions")
	cfg.Watch.Debounce = 0
	cfg.Store.Path = filepath.Join(dir, "test.db")

	st, err := store.New(cfg.Store.Path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	converter := codex.NewConverter(codex.NewClassifier(cfg.Checks, nil), cfg.Convert)
	w, err := NewSessionWatcher(converter, st, cfg.Watch)
	require.NoError(t, err)
	t.Cleanup(func() { w.watcher.Close() })
	require.NoError(t, os.MkdirAll(cfg.Watch.SessionsDir, 0755))
	return w, st, cfg.Watch.SessionsDir
}

func reliableClick() codex.ActionRecord {
	return codex.ActionRecord{
		Event:       codex.EventClick,
		RelPosition: []float64{0.5, 0.5},
		Window: codex.Window{
			App:    "Google Chrome",
			Title:  "Inbox - localhost",
			Width:  1512,
			Height: 982,
			Alpha:  1.0,
		},
	}
}

func writeSession(t *testing.T, dir, name string, actions []codex.ActionRecord) string {
	t.Helper()
	data, err := json.Marshal(actions)
	require.NoError(t, err)
	path := filepath.Join(dir, name+".json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestConvertSessionStoresAutomation(t *testing.T) {
	w, st, dir := newFixture(t)

	path := writeSession(t, dir, "send_email", []codex.ActionRecord{reliableClick(), reliableClick()})
	w.convertSession(path)

	auto, err := st.LoadAutomation("send_email")
	require.NoError(t, err)
	assert.Len(t, auto.Steps, 2)
	assert.Equal(t, path, auto.Source)

	sess, err := st.LoadSession("send_email")
	require.NoError(t, err)
	assert.Len(t, sess.Actions, 2)

	assert.Equal(t, 1, w.Stats().SessionsConverted)
}

func TestConvertSessionRejectsLowQuality(t *testing.T) {
	w, st, dir := newFixture(t)

	// A click with no position and no window fails most checks, pulling
	// the session rate below the save threshold.
	path := writeSession(t, dir, "flaky", []codex.ActionRecord{{Event: codex.EventClick}})
	w.convertSession(path)

	_, err := st.LoadAutomation("flaky")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The raw session is still persisted for later inspection.
	_, err = st.LoadSession("flaky")
	require.NoError(t, err)

	assert.Equal(t, 1, w.Stats().SessionsRejected)
}

func TestConvertSessionMissingFileIsSilent(t *testing.T) {
	w, _, dir := newFixture(t)
	w.convertSession(filepath.Join(dir, "gone.json"))
	assert.Equal(t, 0, w.Stats().Errors)
}

func TestHandleEventFiltersNonSessionFiles(t *testing.T) {
	w, _, dir := newFixture(t)

	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Create})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "s.json"), Op: fsnotify.Chmod})
	assert.Equal(t, 0, w.Stats().FilesSeen)

	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "s.json"), Op: fsnotify.Create})
	assert.Equal(t, 1, w.Stats().FilesSeen)
}

func TestDebouncedEventConverts(t *testing.T) {
	w, st, dir := newFixture(t)

	path := writeSession(t, dir, "debounced", []codex.ActionRecord{reliableClick()})
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	w.processDebouncedEvents()

	_, err := st.LoadAutomation("debounced")
	require.NoError(t, err)
	// The debounce entry is consumed; a second pass is a no-op.
	w.processDebouncedEvents()
	assert.Equal(t, 1, w.Stats().SessionsConverted)
}

func TestConvertAllPicksUpExistingFiles(t *testing.T) {
	w, st, dir := newFixture(t)

	writeSession(t, dir, "one", []codex.ActionRecord{reliableClick()})
	writeSession(t, dir, "two", []codex.ActionRecord{reliableClick()})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0644))

	require.NoError(t, w.ConvertAll(context.Background()))

	infos, err := st.ListAutomations()
	require.NoError(t, err)
	assert.Len(t, infos, 2)
	assert.Equal(t, 2, w.Stats().SessionsConverted)
}

func TestStartStopLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Watch.SessionsDir = filepath.Join(dir, "sessions")
	cfg.Watch.Debounce = 10 * time.Millisecond
	cfg.Store.Path = filepath.Join(dir, "test.db")

	st, err := store.New(cfg.Store.Path)
	require.NoError(t, err)
	converter := codex.NewConverter(codex.NewClassifier(cfg.Checks, nil), cfg.Convert)
	w, err := NewSessionWatcher(converter, st, cfg.Watch)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsWatching())
	// Start is idempotent.
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	assert.False(t, w.IsWatching())
	// Stop after stop is a no-op.
	w.Stop()

	require.NoError(t, st.Close())
}

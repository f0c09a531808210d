// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/joshndala/shyft-rag-app/internal/transport"
)

type fakeUploader struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]error
}

func (u *fakeUploader) Upload(_ context.Context, path string) (*transport.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail[filepath.Base(path)]; err != nil {
		return nil, err
	}
	u.paths = append(u.paths, filepath.Base(path))
	return &transport.UploadResult{Message: "Successfully uploaded " + filepath.Base(path), File: filepath.Base(path)}, nil
}

func (u *fakeUploader) uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func fastOptions(dir string) Options {
	opts := DefaultOptions(dir)
	opts.Debounce = 20 * time.Millisecond
	opts.PollInterval = 20 * time.Millisecond
	opts.UploadsPerMinute = 0
	return opts
}

func TestNew_Validation(t *testing.T) {
	dir := t.TempDir()
	_, err := New(nil, DefaultOptions(dir))
	assert.Error(t, err)

	_, err = New(&fakeUploader{}, DefaultOptions(filepath.Join(dir, "missing")))
	assert.Error(t, err)

	file := filepath.Join(dir, "a.pdf")
	writeFile(t, file, "x")
	_, err = New(&fakeUploader{}, DefaultOptions(file))
	assert.Error(t, err)

	w, err := New(&fakeUploader{}, Options{Dir: dir, UploadsPerMinute: 0})
	require.NoError(t, err)
	assert.Equal(t, rate.Inf, w.limiter.Limit())
	assert.True(t, w.exts[".pdf"])
	assert.True(t, w.exts[".html"])
}

func TestSync_UploadsMatchingFilesOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.pdf"), "pdf")
	writeFile(t, filepath.Join(dir, "a.HTML"), "<p>hi</p>")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, ".hidden.pdf"), "ignored")
	writeFile(t, filepath.Join(dir, ".git", "x.pdf"), "ignored")
	writeFile(t, filepath.Join(dir, "sub", "c.pdf"), "nested")

	up := &fakeUploader{}
	w, err := New(up, fastOptions(dir))
	require.NoError(t, err)

	results := w.Sync(context.Background())
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.False(t, r.Skipped)
	}
	assert.Equal(t, []string{"a.HTML", "b.pdf", "c.pdf"}, up.uploaded())

	// Same content again: nothing is uploaded
	results = w.Sync(context.Background())
	for _, r := range results {
		assert.True(t, r.Skipped, r.Path)
	}
	assert.Len(t, up.uploaded(), 3)

	// Changed content is uploaded again
	writeFile(t, filepath.Join(dir, "b.pdf"), "pdf v2")
	w.Sync(context.Background())
	assert.Equal(t, []string{"a.HTML", "b.pdf", "c.pdf", "b.pdf"}, up.uploaded())
}

func TestSync_StatePersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	stateFile := filepath.Join(t.TempDir(), "watch-state.json")
	writeFile(t, filepath.Join(dir, "doc.pdf"), "content")

	opts := fastOptions(dir)
	opts.StateFile = stateFile

	first := &fakeUploader{}
	w, err := New(first, opts)
	require.NoError(t, err)
	w.Sync(context.Background())
	require.Len(t, first.uploaded(), 1)
	assert.FileExists(t, stateFile)

	second := &fakeUploader{}
	w, err = New(second, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Known())
	w.Sync(context.Background())
	assert.Empty(t, second.uploaded())
}

func TestSync_FailedUploadIsRetriedNextTime(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "doc.pdf"), "content")

	boom := errors.New("Unsupported file format")
	up := &fakeUploader{fail: map[string]error{"doc.pdf": boom}}
	w, err := New(up, fastOptions(dir))
	require.NoError(t, err)

	results := w.Sync(context.Background())
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, boom)

	up.mu.Lock()
	up.fail = nil
	up.mu.Unlock()
	results = w.Sync(context.Background())
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "Successfully uploaded doc.pdf", results[0].Message)
}

func TestLoadState_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	writeFile(t, path, "{not json")
	_, err := loadState(path)
	assert.Error(t, err)

	writeFile(t, path, "")
	s, err := loadState(path)
	require.NoError(t, err)
	assert.Zero(t, s.len())
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	writeFile(t, a, "same")
	writeFile(t, b, "same")

	ha, err := hashFile(a)
	require.NoError(t, err)
	hb, err := hashFile(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	writeFile(t, b, "different")
	hb, err = hashFile(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func runWatcher(t *testing.T, opts Options, up Uploader) (*Watcher, chan Result) {
	t.Helper()
	results := make(chan Result, 16)
	opts.OnResult = func(r Result) { results <- r }
	w, err := New(up, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, w.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool { return w.Mode() != "" }, 2*time.Second, 5*time.Millisecond)
	return w, results
}

func awaitResult(t *testing.T, results chan Result, name string) Result {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r := <-results:
			if filepath.Base(r.Path) == name {
				return r
			}
		case <-timeout:
			t.Fatalf("no result for %s", name)
		}
	}
}

func TestRun_Polling(t *testing.T) {
	dir := t.TempDir()
	opts := fastOptions(dir)
	opts.ForcePolling = true
	up := &fakeUploader{}
	w, results := runWatcher(t, opts, up)
	assert.Equal(t, ModePolling, w.Mode())

	writeFile(t, filepath.Join(dir, "new.pdf"), "fresh")
	r := awaitResult(t, results, "new.pdf")
	assert.NoError(t, r.Err)
	assert.Contains(t, up.uploaded(), "new.pdf")
}

func TestRun_Fsnotify(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "existing.pdf"), "old")
	up := &fakeUploader{}
	w, results := runWatcher(t, fastOptions(dir), up)
	if w.Mode() != ModeFsnotify {
		t.Skip("fsnotify not available on this platform")
	}
	assert.Contains(t, up.uploaded(), "existing.pdf", "startup sync uploads existing files")

	writeFile(t, filepath.Join(dir, "report.html"), "<h1>Q3</h1>")
	writeFile(t, filepath.Join(dir, "ignored.txt"), "x")
	r := awaitResult(t, results, "report.html")
	assert.NoError(t, r.Err)

	writeFile(t, filepath.Join(dir, "nested", "deep.pdf"), "deep")
	awaitResult(t, results, "deep.pdf")

	assert.NotContains(t, up.uploaded(), "ignored.txt")
}

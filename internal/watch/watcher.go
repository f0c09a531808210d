// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/joshndala/shyft-rag-app/internal/logging"
	"github.com/joshndala/shyft-rag-app/internal/transport"
)

const logModule = "watch"

// Mode names the change detection in use.
const (
	ModeFsnotify = "fsnotify"
	ModePolling  = "polling"
)

// Uploader sends one file to the backend. *transport.Client implements it.
type Uploader interface {
	Upload(ctx context.Context, path string) (*transport.UploadResult, error)
}

// Options configures a Watcher.
type Options struct {
	// Dir is the folder to watch, including subfolders
	Dir string

	// Extensions limits uploads to these suffixes (case-insensitive)
	Extensions []string

	// Debounce is how long a file must stay quiet before it is uploaded
	Debounce time.Duration

	// UploadsPerMinute caps the upload rate; 0 means unlimited
	UploadsPerMinute int

	// StateFile persists content hashes between runs; empty keeps them in memory
	StateFile string

	// PollInterval is used when fsnotify is unavailable or ForcePolling is set
	PollInterval time.Duration
	ForcePolling bool

	Logger logging.Logger

	// OnResult is called after every processed file, from the watcher goroutine
	OnResult func(Result)
}

// DefaultOptions returns options for dir with the usual document types.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:              dir,
		Extensions:       []string{".pdf", ".html"},
		Debounce:         500 * time.Millisecond,
		UploadsPerMinute: 30,
		PollInterval:     2 * time.Second,
	}
}

// Result describes what happened to one file.
type Result struct {
	Path    string
	Message string
	Err     error
	// Skipped is set when the content matches the last upload
	Skipped bool
	Time    time.Time
}

// Watcher uploads new and changed documents in a folder.
type Watcher struct {
	up      Uploader
	opts    Options
	logger  logging.Logger
	limiter *rate.Limiter
	state   *state
	exts    map[string]bool

	mu      sync.Mutex
	pending map[string]time.Time
	mode    string
}

// New validates opts and loads the hash state.
func New(up Uploader, opts Options) (*Watcher, error) {
	if up == nil {
		return nil, errors.New("uploader cannot be nil")
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", opts.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot watch %s: not a directory", opts.Dir)
	}
	opts.Dir = dir

	defaults := DefaultOptions(dir)
	if len(opts.Extensions) == 0 {
		opts.Extensions = defaults.Extensions
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	st, err := loadState(opts.StateFile)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if opts.UploadsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.UploadsPerMinute))
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	return &Watcher{
		up:      up,
		opts:    opts,
		logger:  opts.Logger,
		limiter: rate.NewLimiter(limit, 1),
		state:   st,
		exts:    exts,
		pending: make(map[string]time.Time),
	}, nil
}

// Dir returns the absolute watched folder.
func (w *Watcher) Dir() string {
	return w.opts.Dir
}

// Mode reports fsnotify or polling once Run has started.
func (w *Watcher) Mode() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Known returns how many files have a recorded upload.
func (w *Watcher) Known() int {
	return w.state.len()
}

// Sync uploads every matching file that is new or changed since its last
// upload, in path order, and returns what happened to each.
func (w *Watcher) Sync(ctx context.Context) []Result {
	files, err := w.scan()
	if err != nil {
		w.logger.Warn(logModule, "initial scan failed", map[string]interface{}{"error": err})
		return nil
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	results := make([]Result, 0, len(paths))
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		results = append(results, w.process(ctx, p))
	}
	return results
}

// Run syncs the folder and then uploads changes until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	w.Sync(ctx)
	if ctx.Err() != nil {
		return nil
	}

	if !w.opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			defer fsw.Close()
			if err = w.addRecursive(fsw, w.opts.Dir); err == nil {
				w.setMode(ModeFsnotify)
				w.run(ctx, fsw.Events, fsw.Errors, fsw)
				return nil
			}
		}
		w.logger.Warn(logModule, "fsnotify unavailable, falling back to polling", map[string]interface{}{"error": err})
	}

	w.setMode(ModePolling)
	w.run(ctx, nil, nil, nil)
	return nil
}

func (w *Watcher) setMode(m string) {
	w.mu.Lock()
	w.mode = m
	w.mu.Unlock()
	w.logger.Info(logModule, "watching folder", map[string]interface{}{"dir": w.opts.Dir, "mode": m})
}

// run is the event loop. With nil channels it polls instead.
func (w *Watcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, fsw *fsnotify.Watcher) {
	tick := w.opts.Debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	flush := time.NewTicker(tick)
	defer flush.Stop()

	var pollC <-chan time.Time
	var known map[string]fileStamp
	if fsw == nil {
		poll := time.NewTicker(w.opts.PollInterval)
		defer poll.Stop()
		pollC = poll.C
		known, _ = w.scan()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(fsw, ev)

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logger.Warn(logModule, "watch error", map[string]interface{}{"error": err})

		case <-pollC:
			current, err := w.scan()
			if err != nil {
				w.logger.Warn(logModule, "poll failed", map[string]interface{}{"error": err})
				continue
			}
			for p, stamp := range current {
				if old, ok := known[p]; !ok || old != stamp {
					w.touch(p)
				}
			}
			known = current

		case <-flush.C:
			for _, p := range w.due() {
				w.process(ctx, p)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !hidden(filepath.Base(ev.Name)) {
				_ = w.addRecursive(fsw, ev.Name)
				// Files copied in together with the folder raise no events
				if files, err := w.scanDir(ev.Name); err == nil {
					for p := range files {
						w.touch(p)
					}
				}
			}
			return
		}
	}
	if w.matches(ev.Name) {
		w.touch(ev.Name)
	}
}

// touch (re)starts the quiet period for path.
func (w *Watcher) touch(path string) {
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// due removes and returns pending paths that have been quiet long enough.
func (w *Watcher) due() []string {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for p, t := range w.pending {
		if now.Sub(t) >= w.opts.Debounce {
			ready = append(ready, p)
			delete(w.pending, p)
		}
	}
	sort.Strings(ready)
	return ready
}

// process uploads path unless its content was already uploaded.
func (w *Watcher) process(ctx context.Context, path string) Result {
	res := Result{Path: path, Time: time.Now()}
	defer func() {
		if w.opts.OnResult != nil && ctx.Err() == nil {
			w.opts.OnResult(res)
		}
	}()

	info, err := os.Stat(path)
	if err != nil {
		res.Err = err
		return res
	}
	if !info.Mode().IsRegular() {
		res.Skipped = true
		return res
	}

	hash, err := hashFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	if w.state.unchanged(path, hash) {
		res.Skipped = true
		return res
	}

	if err := w.limiter.Wait(ctx); err != nil {
		res.Err = err
		return res
	}

	up, err := w.up.Upload(ctx, path)
	if err != nil {
		res.Err = err
		w.logger.Warn(logModule, "upload failed", map[string]interface{}{"file": path, "error": err})
		return res
	}
	res.Message = up.Message
	if err := w.state.mark(path, hash); err != nil {
		w.logger.Warn(logModule, "failed to save watch state", map[string]interface{}{"error": err})
	}
	w.logger.Info(logModule, "uploaded", map[string]interface{}{"file": path})
	return res
}

// fileStamp is what polling compares between scans.
type fileStamp struct {
	modTime time.Time
	size    int64
}

func (w *Watcher) scan() (map[string]fileStamp, error) {
	return w.scanDir(w.opts.Dir)
}

func (w *Watcher) scanDir(root string) (map[string]fileStamp, error) {
	files := make(map[string]fileStamp)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if info.IsDir() {
			if path != root && hidden(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.matches(path) {
			files[path] = fileStamp{modTime: info.ModTime(), size: info.Size()}
		}
		return nil
	})
	return files, err
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && hidden(info.Name()) {
			return filepath.SkipDir
		}
		if path == dir {
			// The root must be watchable
			return fsw.Add(path)
		}
		_ = fsw.Add(path)
		return nil
	})
}

func (w *Watcher) matches(path string) bool {
	name := filepath.Base(path)
	if hidden(name) {
		return false
	}
	if w.opts.StateFile != "" && filepath.Clean(path) == filepath.Clean(w.opts.StateFile) {
		return false
	}
	return w.exts[strings.ToLower(filepath.Ext(name))]
}

// hidden covers dotfiles, including in-progress atomic writes.
func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

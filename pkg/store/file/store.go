// Package file provides a YAML-file-backed mock definition store that
// reloads its definitions when the file changes on disk.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/mockrelay/mockrelay/pkg/logging"
	"github.com/mockrelay/mockrelay/pkg/mock"
	"github.com/mockrelay/mockrelay/pkg/store"
)

// Document is the on-disk shape of a definitions file.
type Document struct {
	Endpoints []*mock.Endpoint `yaml:"endpoints"`
}

// Store is a file-backed definition store. Definitions are held in memory
// and replaced wholesale when the backing file is rewritten.
type Store struct {
	path string
	log  *slog.Logger

	mu        sync.RWMutex
	endpoints []*mock.Endpoint

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New loads the definitions file at path. The returned store does not watch
// the file until Watch is called.
func New(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path: path,
		log:  logging.Nop(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the definitions file, replacing the in-memory set.
// Endpoints that fail validation are skipped with a warning.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read definitions: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse definitions %s: %w", s.path, err)
	}

	kept := make([]*mock.Endpoint, 0, len(doc.Endpoints))
	for _, e := range doc.Endpoints {
		if e == nil {
			continue
		}
		if err := e.Validate(); err != nil {
			s.log.Warn("skipping invalid endpoint definition", "error", err)
			continue
		}
		kept = append(kept, e)
	}

	s.mu.Lock()
	s.endpoints = kept
	s.mu.Unlock()

	s.log.Info("definitions loaded", "path", s.path, "endpoints", len(kept))
	return nil
}

// Watch starts watching the definitions file and reloads it on change.
// The watch stops when Close is called.
func (s *Store) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors typically replace the file, which would
	// otherwise drop a watch on the file itself.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	s.watcher = w

	s.wg.Add(1)
	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.Warn("definitions reload failed", "error", err)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("definitions watch error", "error", err)
		}
	}
}

// Close stops watching the definitions file.
func (s *Store) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.wg.Wait()
	return err
}

// ListActive returns all enabled endpoints.
func (s *Store) ListActive(ctx context.Context) ([]*mock.Endpoint, error) {
	return s.ListActiveFiltered(ctx, store.Filter{})
}

// ListActiveFiltered returns enabled endpoints matching the filter.
func (s *Store) ListActiveFiltered(_ context.Context, f store.Filter) ([]*mock.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*mock.Endpoint
	for _, e := range s.endpoints {
		if e.IsEnabled() && filterMatches(e, f) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Detach deep-copies the endpoint so it is usable outside the store.
func (s *Store) Detach(e *mock.Endpoint) *mock.Endpoint {
	return e.Detach()
}

func filterMatches(e *mock.Endpoint, f store.Filter) bool {
	if f.Method != "" && f.Method != e.Method {
		return false
	}
	if f.Path != "" && f.Path != e.Path {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if e.Type == t {
			return true
		}
	}
	return false
}

var _ store.Store = (*Store)(nil)

// Package credstore holds the agent's stored token as an opaque string,
// reloading it when the backing file changes. Absence of credentials is
// a normal state, not an error.
package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Store reads the agent token from a file and keeps it current
type Store struct {
	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}

	mu    sync.RWMutex
	token string
}

// New creates a store backed by the given file. A missing file simply
// means no credentials yet.
func New(path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Token returns the stored token, reporting whether one is present
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Reload re-reads the token from disk
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.token = ""
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read credentials: %w", err)
	}

	s.mu.Lock()
	s.token = strings.TrimSpace(string(data))
	s.mu.Unlock()
	return nil
}

// Watch reloads the token whenever the credentials file changes. The
// directory is watched rather than the file so replace-by-rename is
// picked up.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}

	s.watcher = watcher
	go s.run()
	return nil
}

// Close stops the watcher, if started
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.stopCh)
	return s.watcher.Close()
}

func (s *Store) run() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				s.logger.Debug().Str("op", event.Op.String()).Msg("Credentials file changed, reloading")
				if err := s.Reload(); err != nil {
					s.logger.Warn().Err(err).Msg("Failed to reload credentials")
				}
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn().Err(err).Msg("Credentials watcher error")

		case <-s.stopCh:
			return
		}
	}
}

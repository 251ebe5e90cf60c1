package tle

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Loader reads a local TLE file into a Store and mirrors every accepted
// file into a Cache. When the file is unreadable or holds no usable entry,
// the newest cached copy is published instead.
type Loader struct {
	path   string
	store  *Store
	cache  *Cache // optional
	logger *slog.Logger

	// Identity of the last file read; guarded by store.mu.
	modTime time.Time
	size    int64
}

func NewLoader(path string, store *Store, cache *Cache, logger *slog.Logger) *Loader {
	return &Loader{
		path:   path,
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Load reads the file unconditionally.
func (l *Loader) Load() error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return l.load()
}

// Reload reads the file only if its size or modification time changed since
// the last read. It reports whether a new dataset was published.
func (l *Loader) Reload() (bool, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	info, err := os.Stat(l.path)
	if err == nil && info.ModTime().Equal(l.modTime) && info.Size() == l.size && l.store.Get() != nil {
		return false, nil
	}
	before := l.store.Get()
	if err := l.load(); err != nil {
		return false, err
	}
	return l.store.Get() != before, nil
}

func (l *Loader) load() error {
	entries, data, err := l.readFile()
	if err != nil {
		l.logger.Warn("TLE file unusable, trying cache", "path", l.path, "error", err)
		return l.loadFromCache(err)
	}

	now := time.Now()
	ds := NewDataset(l.path, now, entries)
	l.store.Set(ds)
	l.logger.Info("TLE dataset loaded",
		"path", l.path,
		"count", len(entries),
		"epoch_min", ds.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", ds.EpochRange.Max.Format(time.RFC3339),
	)

	if l.cache != nil {
		if _, err := l.cache.Write(data, now); err != nil {
			l.logger.Warn("TLE cache write failed", "error", err)
		}
	}
	return nil
}

func (l *Loader) readFile() ([]TLEEntry, []byte, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return nil, nil, fmt.Errorf("stat TLE file: %w", err)
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading TLE file: %w", err)
	}
	l.modTime, l.size = info.ModTime(), info.Size()

	entries, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		return nil, nil, err
	}
	if len(entries) == 0 {
		return nil, nil, fmt.Errorf("no valid TLE entries in %s", l.path)
	}
	return entries, data, nil
}

// loadFromCache publishes the newest cached copy, unless a dataset is
// already being served, in which case that one is kept.
func (l *Loader) loadFromCache(cause error) error {
	if l.cache == nil || l.store.Get() != nil {
		return cause
	}
	data, ts, err := l.cache.LoadLatest()
	if err != nil {
		return errors.Join(cause, fmt.Errorf("TLE cache: %w", err))
	}

	entries, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil || len(entries) == 0 {
		return errors.Join(cause, fmt.Errorf("TLE cache holds no usable entries"))
	}

	l.store.Set(NewDataset("cache", ts, entries))
	l.logger.Info("TLE dataset loaded from cache",
		"count", len(entries),
		"cached_at", ts.UTC().Format(time.RFC3339),
	)
	return nil
}

package tle

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrCacheEmpty is returned by LoadLatest when no cache file exists.
var ErrCacheEmpty = errors.New("no cache files found")

// Cache keeps copies of accepted TLE files on disk, newest last.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache that stores files in dir and keeps at most maxFiles.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Write saves data to a timestamped file and prunes old files beyond
// maxFiles. Data identical to the newest cached copy is not written again;
// the returned bool reports whether a file was created.
func (c *Cache) Write(data []byte, ts time.Time) (bool, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return false, fmt.Errorf("creating cache dir: %w", err)
	}

	files, err := c.listFiles()
	if err != nil {
		return false, err
	}
	if n := len(files); n > 0 {
		latest, err := os.ReadFile(filepath.Join(c.dir, files[n-1].name))
		if err == nil && bytes.Equal(latest, data) {
			return false, nil
		}
	}

	path := filepath.Join(c.dir, fmt.Sprintf("tle_%d.txt", ts.Unix()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("writing cache file: %w", err)
	}

	return true, c.prune()
}

// LoadLatest reads the newest cache file by the timestamp in its name.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, ErrCacheEmpty
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

// listFiles returns cache files sorted oldest first.
func (c *Cache) listFiles() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		tsStr, ok := strings.CutPrefix(name, "tle_")
		if !ok {
			continue
		}
		tsStr, ok = strings.CutSuffix(tsStr, ".txt")
		if !ok {
			continue
		}
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0)})
	}

	slices.SortFunc(files, func(a, b cacheFile) int {
		return a.ts.Compare(b.ts)
	})
	return files, nil
}

func (c *Cache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}

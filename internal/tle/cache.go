package tle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrNoCacheFiles is returned by LoadLatest when the cache is empty.
var ErrNoCacheFiles = errors.New("no cache files found")

const defaultMaxSnapshots = 5

// Cache persists raw CelesTrak payloads so a restart can serve passes before
// the first refresh completes. Each payload is one snapshot file named
// tle_<unix seconds>.txt; only the newest maxFiles are kept.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache returns a Cache rooted at dir.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = defaultMaxSnapshots
	}
	return &Cache{dir: dir, maxFiles: maxFiles}
}

type snapshot struct {
	name    string
	fetched time.Time
}

func snapshotName(fetched time.Time) string {
	return "tle_" + strconv.FormatInt(fetched.Unix(), 10) + ".txt"
}

// snapshotTime recovers the fetch time from a snapshot file name.
func snapshotTime(name string) (time.Time, bool) {
	digits, ok := strings.CutPrefix(name, "tle_")
	if !ok {
		return time.Time{}, false
	}
	digits, ok = strings.CutSuffix(digits, ".txt")
	if !ok {
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

// Write stores data as the snapshot for fetched, then drops old snapshots.
// The file is written under a temporary name and renamed into place so
// LoadLatest never sees a partial payload.
func (c *Cache) Write(data []byte, fetched time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".tle-*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(c.dir, snapshotName(fetched))); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("install snapshot: %w", err)
	}

	return c.prune()
}

// LoadLatest returns the newest snapshot and its fetch time.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	snaps, err := c.snapshots()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(snaps) == 0 {
		return nil, time.Time{}, ErrNoCacheFiles
	}

	newest := snaps[0]
	data, err := os.ReadFile(filepath.Join(c.dir, newest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read snapshot %s: %w", newest.name, err)
	}
	return data, newest.fetched, nil
}

// snapshots lists snapshot files newest first. A missing directory is an
// empty cache.
func (c *Cache) snapshots() ([]snapshot, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list cache dir: %w", err)
	}

	snaps := make([]snapshot, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if ts, ok := snapshotTime(e.Name()); ok {
			snaps = append(snaps, snapshot{name: e.Name(), fetched: ts})
		}
	}
	slices.SortFunc(snaps, func(a, b snapshot) int { return b.fetched.Compare(a.fetched) })
	return snaps, nil
}

func (c *Cache) prune() error {
	snaps, err := c.snapshots()
	if err != nil {
		return err
	}
	if len(snaps) <= c.maxFiles {
		return nil
	}

	var errs []error
	for _, s := range snaps[c.maxFiles:] {
		if err := os.Remove(filepath.Join(c.dir, s.name)); err != nil {
			errs = append(errs, fmt.Errorf("prune %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

package checker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// Cache persists the last successful probe result per source, so operators
// can inspect the last known good observation for a source that is currently
// failing or skipped. The cache is local state only: it never feeds back into
// scoring, and writing it never touches the probed systems.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// cachedResult is the on-disk envelope for one cached probe result.
type cachedResult struct {
	SavedAt time.Time `json:"saved_at"`
	Result  Result    `json:"result"`
}

// NewCache creates a probe cache under dir with the given TTL. A zero TTL
// defaults to 1 hour.
func NewCache(dir string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{dir: dir, ttl: ttl, now: time.Now}
}

func (c *Cache) path(source Source) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.json", source))
}

// Save stores a successful result. Unsuccessful results are ignored: the
// cache holds last known good observations only.
func (c *Cache) Save(res Result) error {
	if !res.Available {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return eris.Wrap(err, "cache: mkdir")
	}

	data, err := json.MarshalIndent(cachedResult{SavedAt: c.now().UTC(), Result: res}, "", "  ")
	if err != nil {
		return eris.Wrap(err, "cache: marshal")
	}

	tmp := c.path(res.Source) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "cache: write")
	}
	if err := os.Rename(tmp, c.path(res.Source)); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "cache: rename")
	}
	return nil
}

// Load returns the cached result for source and its age, or false if no
// fresh entry exists.
func (c *Cache) Load(source Source) (Result, time.Duration, bool) {
	data, err := os.ReadFile(c.path(source))
	if err != nil {
		return Result{}, 0, false
	}

	var entry cachedResult
	if err := json.Unmarshal(data, &entry); err != nil {
		return Result{}, 0, false
	}

	age := c.now().UTC().Sub(entry.SavedAt)
	if age > c.ttl {
		return Result{}, 0, false
	}
	return entry.Result, age, true
}

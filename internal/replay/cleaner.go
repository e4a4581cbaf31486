package replay

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"neonrange/server/internal/logging"
)

// RetentionPolicy bounds how many session bundles stay on disk and for how long.
type RetentionPolicy struct {
	MaxSessions int
	MaxAge      time.Duration
}

// StorageStats summarises the disk footprint of persisted bundles.
type StorageStats struct {
	Sessions  int       `json:"sessions"`
	Bytes     int64     `json:"bytes"`
	Removed   int       `json:"removed"`
	LastSweep time.Time `json:"last_sweep"`
}

// Cleaner periodically prunes session bundles according to a retention policy.
type Cleaner struct {
	mu     sync.RWMutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
}

// NewCleaner constructs a cleaner for the replay root directory.
func NewCleaner(dir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	return &Cleaner{dir: dir, policy: policy, log: logger, now: time.Now}
}

// Run executes retention sweeps until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if c == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	c.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// RunOnce performs a single retention sweep.
func (c *Cleaner) RunOnce() {
	if c == nil {
		return
	}
	c.sweep()
}

// Stats returns the last recorded storage statistics.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

type bundle struct {
	name    string
	path    string
	size    int64
	modTime time.Time
}

func (c *Cleaner) sweep() {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return
	}
	bundles, err := c.collect()
	if err != nil {
		c.log.Warn("replay retention scan failed", logging.Error(err), logging.String("directory", c.dir))
		return
	}
	now := c.now()
	stats := StorageStats{LastSweep: now}
	for _, b := range bundles {
		reason := c.expired(b, now, stats.Sessions)
		if reason == "" {
			stats.Sessions++
			stats.Bytes += b.size
			continue
		}
		if err := os.RemoveAll(b.path); err != nil {
			//1.- A bundle that could not be removed still occupies disk and counts as kept.
			c.log.Warn("replay retention removal failed", logging.Error(err), logging.String("bundle", b.name))
			stats.Sessions++
			stats.Bytes += b.size
			continue
		}
		stats.Removed++
		c.log.Info("replay retention removed bundle", logging.String("bundle", b.name), logging.String("reason", reason))
	}
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

func (c *Cleaner) collect() ([]bundle, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	bundles := make([]bundle, 0, len(entries))
	for _, entry := range entries {
		//1.- Only bundle directories are managed; stray files are left alone.
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			c.log.Warn("replay retention stat failed", logging.Error(err), logging.String("path", path))
			continue
		}
		size, newest, err := directoryFootprint(path)
		if err != nil {
			c.log.Warn("replay retention size failed", logging.Error(err), logging.String("path", path))
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		bundles = append(bundles, bundle{name: entry.Name(), path: path, size: size, modTime: newest})
	}
	//2.- Newest first so the session limit favours recent play.
	slices.SortFunc(bundles, func(a, b bundle) int { return b.modTime.Compare(a.modTime) })
	return bundles, nil
}

func (c *Cleaner) expired(b bundle, now time.Time, kept int) string {
	reasons := make([]string, 0, 2)
	if c.policy.MaxAge > 0 && now.Sub(b.modTime) > c.policy.MaxAge {
		reasons = append(reasons, fmt.Sprintf("age>%s", c.policy.MaxAge))
	}
	if c.policy.MaxSessions > 0 && kept >= c.policy.MaxSessions {
		reasons = append(reasons, fmt.Sprintf(">=%d sessions", c.policy.MaxSessions))
	}
	return strings.Join(reasons, ", ")
}

func directoryFootprint(root string) (int64, time.Time, error) {
	var (
		total  int64
		newest time.Time
	)
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return total, newest, err
}

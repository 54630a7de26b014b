package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	cacheVersion = 2
	fileSuffix   = ".bin"
	DefaultTTL   = 30 * 24 * time.Hour
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheExpired = errors.New("cache expired")
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// LyricEntry is a cached lyrics lookup. Artist and Title are the lookup keys as
// requested, TrackName and ArtistName what the provider matched.
type LyricEntry struct {
	Version    uint8
	Artist     string
	Title      string
	TrackName  string
	ArtistName string
	Kind       uint8
	Text       string
	CreatedAt  int64
	ExpiresAt  int64
}

func (e *LyricEntry) expired(now time.Time) bool {
	return e.ExpiresAt <= now.Unix()
}

// DiskCache keeps entries in memory and, when basePath is set, as gob files.
type DiskCache struct {
	basePath string
	ttl      time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	memCache map[string]*LyricEntry
}

// New opens a cache rooted at dir. An empty dir gives a memory-only cache.
func New(dir string, ttl time.Duration, logger *zap.Logger) (*DiskCache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &DiskCache{
		basePath: dir,
		ttl:      ttl,
		logger:   logger,
		memCache: make(map[string]*LyricEntry),
	}

	if dir == "" {
		return c, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %q: %w", dir, err)
	}
	return c, nil
}

func (c *DiskCache) Path() string { return c.basePath }

func generateKey(artist, title string) string {
	normalized := strings.ToLower(strings.TrimSpace(artist)) + "|" + strings.ToLower(strings.TrimSpace(title))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:12])
}

func (c *DiskCache) filePath(key string) string {
	return filepath.Join(c.basePath, key+fileSuffix)
}

func (c *DiskCache) Get(artist, title string) (*LyricEntry, error) {
	if artist == "" || title == "" {
		return nil, ErrCacheMiss
	}

	key := generateKey(artist, title)
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.memCache[key]
	c.mu.RUnlock()

	if ok {
		if !entry.expired(now) {
			return entry, nil
		}
		c.mu.Lock()
		delete(c.memCache, key)
		c.mu.Unlock()
	}

	if c.basePath == "" {
		if ok {
			return nil, ErrCacheExpired
		}
		return nil, ErrCacheMiss
	}

	path := c.filePath(key)
	entry, err := c.readFromDisk(path)
	if err != nil {
		return nil, err
	}

	if entry.expired(now) {
		_ = os.Remove(path)
		return nil, ErrCacheExpired
	}

	c.mu.Lock()
	c.memCache[key] = entry
	c.mu.Unlock()

	return entry, nil
}

func (c *DiskCache) Set(artist, title string, entry *LyricEntry) error {
	if artist == "" || title == "" || entry == nil {
		return errors.New("invalid cache entry")
	}

	key := generateKey(artist, title)
	now := time.Now()

	entry.Version = cacheVersion
	entry.Artist = artist
	entry.Title = title
	entry.CreatedAt = now.Unix()
	entry.ExpiresAt = now.Add(c.ttl).Unix()

	c.mu.Lock()
	c.memCache[key] = entry
	c.mu.Unlock()

	if c.basePath == "" {
		return nil
	}

	if err := c.writeToDisk(c.filePath(key), entry); err != nil {
		c.logger.Warn("Failed to persist lyrics cache entry",
			zap.String("artist", artist),
			zap.String("title", title),
			zap.Error(err))
		return err
	}
	return nil
}

func (c *DiskCache) Delete(artist, title string) error {
	if artist == "" || title == "" {
		return errors.New("invalid artist or title")
	}

	key := generateKey(artist, title)

	c.mu.Lock()
	delete(c.memCache, key)
	c.mu.Unlock()

	if c.basePath == "" {
		return nil
	}

	err := os.Remove(c.filePath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *DiskCache) Clear() error {
	c.mu.Lock()
	c.memCache = make(map[string]*LyricEntry)
	c.mu.Unlock()

	return c.eachFile(func(path string, _ os.DirEntry) {
		_ = os.Remove(path)
	})
}

// Prune removes expired and unreadable files and reports how many went.
func (c *DiskCache) Prune() (int, error) {
	pruned := 0
	now := time.Now()

	err := c.eachFile(func(path string, _ os.DirEntry) {
		entry, err := c.readFromDisk(path)
		if err != nil || entry.expired(now) {
			_ = os.Remove(path)
			pruned++
		}
	})
	return pruned, err
}

func (c *DiskCache) Stats() (count int, sizeBytes int64, err error) {
	err = c.eachFile(func(_ string, d os.DirEntry) {
		info, infoErr := d.Info()
		if infoErr != nil {
			return
		}
		count++
		sizeBytes += info.Size()
	})
	return count, sizeBytes, err
}

func (c *DiskCache) ListAll() ([]*LyricEntry, error) {
	var result []*LyricEntry
	err := c.eachFile(func(path string, _ os.DirEntry) {
		entry, readErr := c.readFromDisk(path)
		if readErr != nil {
			return
		}
		result = append(result, entry)
	})
	return result, err
}

func (c *DiskCache) eachFile(fn func(path string, d os.DirEntry)) error {
	if c.basePath == "" {
		return nil
	}

	entries, err := os.ReadDir(c.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, d := range entries {
		if d.IsDir() || !strings.HasSuffix(d.Name(), fileSuffix) {
			continue
		}
		fn(filepath.Join(c.basePath, d.Name()), d)
	}
	return nil
}

func (c *DiskCache) readFromDisk(path string) (*LyricEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	defer file.Close()

	var entry LyricEntry
	if err := gob.NewDecoder(file).Decode(&entry); err != nil {
		return nil, ErrCacheCorrupt
	}

	// older layouts are discarded rather than migrated
	if entry.Version != cacheVersion {
		_ = os.Remove(path)
		return nil, ErrCacheCorrupt
	}

	return &entry, nil
}

// writeToDisk goes through a temp file and rename so readers never see a
// partial entry.
func (c *DiskCache) writeToDisk(path string, entry *LyricEntry) error {
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(file).Encode(entry); err != nil {
		file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

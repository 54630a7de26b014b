package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"karolbroda.com/encore/internal/cache"
	"karolbroda.com/encore/internal/catalog"
	"karolbroda.com/encore/internal/config"
	"karolbroda.com/encore/internal/lyrics"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:05.50", formatTimestamp(5.5))
	assert.Equal(t, "02:03.25", formatTimestamp(123.25))
}

func TestSortCacheEntries(t *testing.T) {
	entries := []*cache.LyricEntry{
		{ArtistName: "b", TrackName: "z", CreatedAt: 1},
		{Artist: "A", Title: "y", CreatedAt: 3},
		{ArtistName: "c", TrackName: "x", CreatedAt: 2},
	}

	sortCacheEntries(entries, "artist")
	assert.Equal(t, "A", entryArtist(entries[0]))

	sortCacheEntries(entries, "title")
	assert.Equal(t, "x", entryTitle(entries[0]))

	sortCacheEntries(entries, "date")
	assert.Equal(t, int64(3), entries[0].CreatedAt)
}

func TestSimilarCachedSongs(t *testing.T) {
	diskCache, err := cache.New(t.TempDir(), time.Hour, nil)
	require.NoError(t, err)
	require.NoError(t, diskCache.Set("Daft Punk", "One More Time", &cache.LyricEntry{Text: "x"}))
	require.NoError(t, diskCache.Set("Metallica", "One", &cache.LyricEntry{Text: "y"}))

	suggestions := similarCachedSongs(diskCache, "daft punk", "one more tme", 5)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "Daft Punk", entryArtist(suggestions[0]))

	assert.Empty(t, similarCachedSongs(diskCache, "zzzzzzzz", "qqqqqqqqqqqq", 5))
}

func TestNewLyricsSource(t *testing.T) {
	client, err := catalog.New("http://localhost:5000", "", time.Second, nil)
	require.NoError(t, err)
	diskCache, err := cache.New("", time.Hour, nil)
	require.NoError(t, err)

	cfg := &config.Config{LrclibURL: config.DefaultLrclibURL, HTTPTimeout: time.Second}

	cfg.LyricsSource = "catalog"
	assert.Same(t, client, newLyricsSource(cfg, client, diskCache, zap.NewNop()))

	cfg.LyricsSource = "lrclib"
	assert.IsType(t, &lyrics.LrclibSource{}, newLyricsSource(cfg, client, diskCache, zap.NewNop()))

	cfg.LyricsSource = "chain"
	chain, ok := newLyricsSource(cfg, client, diskCache, zap.NewNop()).(lyrics.Chain)
	require.True(t, ok)
	assert.Len(t, chain, 2)
}

func TestNewCatalog_LogsInWithPassword(t *testing.T) {
	var loggedIn bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			loggedIn = true
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	cfg := &config.Config{CatalogURL: server.URL, CatalogPassword: "secret", HTTPTimeout: time.Second}
	_, err := newCatalog(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, loggedIn)

	loggedIn = false
	cfg.CatalogPassword = ""
	_, err = newCatalog(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, loggedIn)
}

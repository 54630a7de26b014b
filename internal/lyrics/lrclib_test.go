package lyrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/encore/internal/cache"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) (*LrclibSource, *cache.DiskCache) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	diskCache, err := cache.New(t.TempDir(), time.Hour, nil)
	require.NoError(t, err)

	source := NewLrclibSource(server.URL+"/api", 5*time.Second, diskCache, nil)
	source.pause = 0
	return source, diskCache
}

func TestLrclibSource_DirectHitIsCached(t *testing.T) {
	var hits atomic.Int32
	source, diskCache := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/get", r.URL.Path)
		assert.Equal(t, "Daft Punk", r.URL.Query().Get("artist_name"))
		_ = json.NewEncoder(w).Encode(lrclibRecord{
			TrackName:    "One More Time",
			ArtistName:   "Daft Punk",
			SyncedLyrics: "[00:01.00]One more time",
		})
	})

	payload, err := source.Lyrics(context.Background(), "Daft  Punk", "One More Time")
	require.NoError(t, err)
	assert.Equal(t, KindSynced, payload.Kind)

	entry, err := diskCache.Get("Daft  Punk", "One More Time")
	require.NoError(t, err)
	assert.Equal(t, "[00:01.00]One more time", entry.Text)

	_, err = source.Lyrics(context.Background(), "Daft  Punk", "One More Time")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestLrclibSource_FallsBackToSearch(t *testing.T) {
	source, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/get":
			http.NotFound(w, r)
		case "/api/search":
			assert.Equal(t, "Around the World", r.URL.Query().Get("q"))
			_ = json.NewEncoder(w).Encode([]lrclibRecord{
				{ArtistName: "Someone Else", SyncedLyrics: "[00:01.00]wrong"},
				{ArtistName: "Daft Punk", PlainLyrics: "plain body"},
				{ArtistName: "Daft Punk & Friends", SyncedLyrics: "[00:02.00]right"},
			})
		}
	})

	payload, err := source.Lyrics(context.Background(), "Daft Punk", "Around the World (Radio Edit)")
	require.NoError(t, err)
	assert.Equal(t, Payload{Kind: KindSynced, Text: "[00:02.00]right"}, payload)
}

func TestLrclibSource_NothingFound(t *testing.T) {
	source, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/search" {
			_, _ = w.Write([]byte("[]"))
			return
		}
		http.NotFound(w, r)
	})

	payload, err := source.Lyrics(context.Background(), "Nobody", "Nothing")
	require.NoError(t, err)
	assert.True(t, payload.IsAbsent())
}

func TestStripVersionInfo(t *testing.T) {
	tests := map[string]string{
		"Song (Remastered 2011)": "Song",
		"Song [Live] (Edit)":     "Song",
		"Plain":                  "Plain",
		"  Spaced   Out ":        "Spaced Out",
	}
	for input, expected := range tests {
		assert.Equal(t, expected, stripVersionInfo(input), input)
	}
}

func TestArtistSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, artistSimilarity("daft punk", "daft punk & friends"))
	assert.Greater(t, artistSimilarity("beyonce", "beyoncé"), 0.5)
	assert.Less(t, artistSimilarity("daft punk", "metallica"), 0.5)
	assert.Zero(t, artistSimilarity("", "x"))
}

func TestBuildStrategies_Deduplicates(t *testing.T) {
	strategies := buildStrategies("abba", "sos")
	seen := map[searchStrategy]bool{}
	for _, s := range strategies {
		assert.False(t, seen[s], "duplicate strategy %v", s)
		seen[s] = true
	}
	assert.Contains(t, strategies, searchStrategy{"Abba", "Sos"})
}

package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/encore/internal/lyrics"
	"karolbroda.com/encore/internal/track"
)

func newTestClient(t *testing.T, mux *http.ServeMux) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(server.URL, "secret", 5*time.Second, nil)
	require.NoError(t, err)
	return client, server
}

func sessionGuard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "ok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func TestClient_LoginKeepsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("password") != "secret" {
			_, _ = w.Write([]byte("<form>Incorrect Password</form>"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/", http.StatusFound)
	})
	mux.HandleFunc("/chart", sessionGuard(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]track.Song{{ID: 1, Title: "Hit", Artist: "Star"}})
	}))

	client, server := newTestClient(t, mux)
	ctx := context.Background()

	_, err := client.Chart(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, client.Login(ctx))
	songs, err := client.Chart(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hit", songs[0].Title)

	wrong, err := New(server.URL, "nope", time.Second, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, wrong.Login(ctx), ErrUnauthorized)
}

func TestClient_Resolve(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/play", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("id") {
		case "1":
			_ = json.NewEncoder(w).Encode(resolveResponse{Source: SourceLocal, URL: "/cached/1.m4a"})
		case "2":
			assert.Equal(t, "AC/DC", q.Get("artist"))
			_ = json.NewEncoder(w).Encode(resolveResponse{Source: SourceRemote, URL: "https://cdn.example.com/a?b=c&d=e"})
		default:
			_ = json.NewEncoder(w).Encode(resolveResponse{Error: "Song not found"})
		}
	})

	client, server := newTestClient(t, mux)
	ctx := context.Background()

	local, err := client.Resolve(ctx, track.Song{ID: 1, Title: "t", Artist: "a"})
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/cached/1.m4a", local)

	remote, err := client.Resolve(ctx, track.Song{ID: 2, Title: "Thunderstruck", Artist: "AC/DC"})
	require.NoError(t, err)
	parsed, err := url.Parse(remote)
	require.NoError(t, err)
	assert.Equal(t, "/stream_proxy", parsed.Path)
	assert.Equal(t, "https://cdn.example.com/a?b=c&d=e", parsed.Query().Get("url"))

	_, err = client.Resolve(ctx, track.Song{ID: 3, Title: "t", Artist: "a"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Lyrics(t *testing.T) {
	responses := map[string]string{
		"synced": `{"type":"synced","text":"[00:01.00]hi"}`,
		"plain":  `{"type":"plain","text":"hello"}`,
		"absent": `{}`,
		"legacy": `{"lyrics":"[00:02.00]old server"}`,
		"null":   `{"lyrics":null}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/lyrics", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(responses[r.URL.Query().Get("title")]))
	})
	client, _ := newTestClient(t, mux)

	tests := []struct {
		title    string
		expected lyrics.Payload
	}{
		{"synced", lyrics.Payload{Kind: lyrics.KindSynced, Text: "[00:01.00]hi"}},
		{"plain", lyrics.Payload{Kind: lyrics.KindPlain, Text: "hello"}},
		{"absent", lyrics.Payload{Kind: lyrics.KindAbsent}},
		{"legacy", lyrics.Payload{Kind: lyrics.KindSynced, Text: "[00:02.00]old server"}},
		{"null", lyrics.Payload{Kind: lyrics.KindAbsent}},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			payload, err := client.Lyrics(context.Background(), "artist", tt.title)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, payload)
		})
	}
}

func TestClient_LikesAndCache(t *testing.T) {
	var toggled, cached track.Song
	mux := http.NewServeMux()
	mux.HandleFunc("/api/toggle_like", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Song track.Song `json:"song"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		toggled = body.Song
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/cache_song", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&cached))
	})
	mux.HandleFunc("/api/likes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":9,"title":"Liked","artist":"Someone","cover_xl":"xl"}]`))
	})
	mux.HandleFunc("/recommend", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("artist_id"))
		_, _ = w.Write([]byte(`[]`))
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()
	song := track.Song{ID: 7, Title: "T", Artist: "A", ArtistID: 42}

	require.NoError(t, client.ToggleLike(ctx, song))
	assert.Equal(t, song, toggled)

	require.NoError(t, client.TriggerCache(ctx, song))
	assert.Equal(t, song, cached)

	liked, err := client.LikedSongs(ctx)
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, "xl", liked[0].CoverXL)

	recs, err := client.Recommendations(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestClient_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	client, _ := newTestClient(t, mux)

	_, err := client.Search(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

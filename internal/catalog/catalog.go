// Package catalog is the HTTP client for the music catalog server: search,
// charts, audio resolution, lyrics, recommendations and the liked list.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"karolbroda.com/encore/internal/lyrics"
	"karolbroda.com/encore/internal/track"
)

var (
	ErrNotFound     = errors.New("not found in catalog")
	ErrUnauthorized = errors.New("catalog session not authorized")
)

const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

type Client struct {
	baseURL  *url.URL
	password string
	http     *http.Client
	logger   *zap.Logger
}

func New(baseURL string, password string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid catalog url %q: %w", baseURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 2 * time.Second,
	}

	return &Client{
		baseURL:  parsed,
		password: password,
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			Jar:       jar,
			// the server answers login with a redirect to its html index
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}, nil
}

// Login starts a cookie session. A redirect means the password was accepted;
// the login form coming back means it was not.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/login", nil), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400, resp.StatusCode == http.StatusNoContent:
		c.logger.Info("Logged in to catalog", zap.String("url", c.baseURL.String()))
		return nil
	default:
		return fmt.Errorf("login rejected with status %d: %w", resp.StatusCode, ErrUnauthorized)
	}
}

func (c *Client) Search(ctx context.Context, query string) ([]track.Song, error) {
	var songs []track.Song
	if err := c.getJSON(ctx, "/search", url.Values{"q": {query}}, &songs); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return songs, nil
}

func (c *Client) Chart(ctx context.Context) ([]track.Song, error) {
	var songs []track.Song
	if err := c.getJSON(ctx, "/chart", nil, &songs); err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	return songs, nil
}

type resolveResponse struct {
	Source string `json:"source"`
	URL    string `json:"url"`
	Error  string `json:"error"`
}

// Resolve returns a URL the audio transport can open directly. Remote
// sources are routed through the server's stream proxy.
func (c *Client) Resolve(ctx context.Context, song track.Song) (string, error) {
	query := url.Values{}
	query.Set("artist", song.Artist)
	query.Set("title", song.Title)
	query.Set("id", strconv.FormatInt(song.ID, 10))

	var resolved resolveResponse
	if err := c.getJSON(ctx, "/play", query, &resolved); err != nil {
		return "", fmt.Errorf("resolve %s: %w", song, err)
	}
	if resolved.Error != "" || resolved.URL == "" {
		return "", fmt.Errorf("resolve %s: %s: %w", song, resolved.Error, ErrNotFound)
	}

	if resolved.Source == SourceLocal {
		ref, err := url.Parse(resolved.URL)
		if err != nil {
			return "", fmt.Errorf("invalid local source %q: %w", resolved.URL, err)
		}
		return c.baseURL.ResolveReference(ref).String(), nil
	}
	return c.StreamProxyURL(resolved.URL), nil
}

func (c *Client) StreamProxyURL(remote string) string {
	return c.endpoint("/stream_proxy", url.Values{"url": {remote}})
}

type lyricsResponse struct {
	Type   string  `json:"type"`
	Text   string  `json:"text"`
	Legacy *string `json:"lyrics"`
}

// Lyrics makes the catalog a lyrics.Source. Older servers answer with a bare
// "lyrics" field, which is classified by whether it carries time tags.
func (c *Client) Lyrics(ctx context.Context, artist string, title string) (lyrics.Payload, error) {
	query := url.Values{}
	query.Set("artist", artist)
	query.Set("title", title)

	var body lyricsResponse
	if err := c.getJSON(ctx, "/lyrics", query, &body); err != nil {
		if errors.Is(err, ErrNotFound) {
			return lyrics.Payload{Kind: lyrics.KindAbsent}, nil
		}
		return lyrics.Payload{}, fmt.Errorf("lyrics for %s - %s: %w", artist, title, err)
	}

	switch {
	case body.Text != "":
		kind := lyrics.KindFromString(body.Type)
		if kind == lyrics.KindAbsent {
			kind = lyrics.KindPlain
		}
		return lyrics.Payload{Kind: kind, Text: body.Text}, nil
	case body.Legacy != nil && *body.Legacy != "":
		if len(lyrics.Parse(*body.Legacy)) > 0 {
			return lyrics.Payload{Kind: lyrics.KindSynced, Text: *body.Legacy}, nil
		}
		return lyrics.Payload{Kind: lyrics.KindPlain, Text: *body.Legacy}, nil
	default:
		return lyrics.Payload{Kind: lyrics.KindAbsent}, nil
	}
}

func (c *Client) Recommendations(ctx context.Context, artistID int64) ([]track.Song, error) {
	var songs []track.Song
	query := url.Values{"artist_id": {strconv.FormatInt(artistID, 10)}}
	if err := c.getJSON(ctx, "/recommend", query, &songs); err != nil {
		return nil, fmt.Errorf("recommendations for artist %d: %w", artistID, err)
	}
	return songs, nil
}

func (c *Client) LikedSongs(ctx context.Context) ([]track.Song, error) {
	var songs []track.Song
	if err := c.getJSON(ctx, "/api/likes", nil, &songs); err != nil {
		return nil, fmt.Errorf("liked songs: %w", err)
	}
	return songs, nil
}

func (c *Client) ToggleLike(ctx context.Context, song track.Song) error {
	body := struct {
		Song track.Song `json:"song"`
	}{Song: song}
	if err := c.postJSON(ctx, "/api/toggle_like", body); err != nil {
		return fmt.Errorf("toggle like %d: %w", song.ID, err)
	}
	return nil
}

func (c *Client) TriggerCache(ctx context.Context, song track.Song) error {
	if err := c.postJSON(ctx, "/api/cache_song", song); err != nil {
		return fmt.Errorf("cache song %d: %w", song.ID, err)
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("Catalog request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode >= 300 && resp.StatusCode < 400:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog json: %w", err)
	}
	return nil
}

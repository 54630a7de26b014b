package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"karolbroda.com/encore/internal/cache"
)

var errNotFound = errors.New("lyrics not found")

type lrclibRecord struct {
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

func (r *lrclibRecord) payload() Payload {
	switch {
	case r.SyncedLyrics != "":
		return Payload{Kind: KindSynced, Text: r.SyncedLyrics}
	case r.PlainLyrics != "":
		return Payload{Kind: KindPlain, Text: r.PlainLyrics}
	default:
		return Payload{Kind: KindAbsent}
	}
}

// LrclibSource queries lrclib.net directly, trying several spellings of the
// artist and title before falling back to a free-text search.
type LrclibSource struct {
	baseURL string
	client  *http.Client
	cache   *cache.DiskCache
	logger  *zap.Logger
	pause   time.Duration
}

func NewLrclibSource(baseURL string, timeout time.Duration, diskCache *cache.DiskCache, logger *zap.Logger) *LrclibSource {
	if logger == nil {
		logger = zap.NewNop()
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
	return &LrclibSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: transport, Timeout: timeout},
		cache:   diskCache,
		logger:  logger,
		pause:   100 * time.Millisecond,
	}
}

type searchStrategy struct {
	artist string
	title  string
}

func (s *LrclibSource) Lyrics(ctx context.Context, artist string, title string) (Payload, error) {
	if artist == "" || title == "" {
		return Payload{}, errors.New("track title or artist is empty")
	}

	if s.cache != nil {
		if entry, err := s.cache.Get(artist, title); err == nil {
			return Payload{Kind: Kind(entry.Kind), Text: entry.Text}, nil
		}
	}

	record, err := s.lookup(ctx, artist, title)
	if errors.Is(err, errNotFound) {
		return Payload{Kind: KindAbsent}, nil
	}
	if err != nil {
		return Payload{}, err
	}

	result := record.payload()
	if s.cache != nil && !result.IsAbsent() {
		_ = s.cache.Set(artist, title, &cache.LyricEntry{
			TrackName:  record.TrackName,
			ArtistName: record.ArtistName,
			Kind:       uint8(result.Kind),
			Text:       result.Text,
		})
	}
	return result, nil
}

func (s *LrclibSource) lookup(ctx context.Context, artist string, title string) (*lrclibRecord, error) {
	var lastErr error
	for i, strategy := range buildStrategies(artist, title) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.pause):
			}
		}

		query := url.Values{}
		query.Set("artist_name", strategy.artist)
		query.Set("track_name", strategy.title)

		var record lrclibRecord
		err := s.getJSON(ctx, "/get?"+query.Encode(), &record)
		if err == nil {
			if !record.payload().IsAbsent() {
				return &record, nil
			}
			lastErr = errNotFound
			continue
		}

		lastErr = err
		if isTimeoutError(err) {
			return nil, fmt.Errorf("lyrics server took too long to respond: %w", err)
		}
	}

	if lastErr != nil && !errors.Is(lastErr, errNotFound) {
		s.logger.Debug("lrclib direct lookups failed, searching",
			zap.String("artist", artist),
			zap.String("title", title),
			zap.Error(lastErr))
	}

	return s.search(ctx, artist, title)
}

// search runs a free-text query on the stripped title and keeps the candidate
// whose artist reads closest to the requested one, preferring synced bodies.
func (s *LrclibSource) search(ctx context.Context, artist string, title string) (*lrclibRecord, error) {
	query := url.Values{}
	query.Set("q", stripVersionInfo(title))

	var candidates []lrclibRecord
	if err := s.getJSON(ctx, "/search?"+query.Encode(), &candidates); err != nil {
		return nil, err
	}

	want := strings.ToLower(normalizeString(artist))
	best := -1
	bestScore := 0.0
	for i := range candidates {
		c := &candidates[i]
		if c.payload().IsAbsent() {
			continue
		}

		score := artistSimilarity(want, strings.ToLower(normalizeString(c.ArtistName)))
		if score < 0.5 {
			continue
		}
		if c.SyncedLyrics != "" {
			score += 1
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return nil, errNotFound
	}
	return &candidates[best], nil
}

// artistSimilarity is 1 for containment either way, otherwise one minus the
// edit distance relative to the longer name.
func artistSimilarity(a string, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func (s *LrclibSource) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("User-Agent", "encore/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("lrclib returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode lrclib json: %w", err)
	}
	return nil
}

func buildStrategies(artist string, title string) []searchStrategy {
	normalizedArtist := normalizeString(artist)
	normalizedTitle := normalizeString(title)
	titleCaser := cases.Title(language.Und)

	candidates := []searchStrategy{
		{normalizedArtist, normalizedTitle},
		{stripVersionInfo(artist), stripVersionInfo(title)},
		{strings.ToLower(normalizedArtist), strings.ToLower(normalizedTitle)},
		{titleCaser.String(normalizedArtist), titleCaser.String(normalizedTitle)},
		{artist, title},
	}

	seen := make(map[searchStrategy]bool, len(candidates))
	unique := candidates[:0]
	for _, c := range candidates {
		if c.artist == "" || c.title == "" || seen[c] {
			continue
		}
		seen[c] = true
		unique = append(unique, c)
	}
	return unique
}

func normalizeString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripVersionInfo drops bracketed suffixes such as "(Remastered)" or
// "[Live]".
func stripVersionInfo(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
			continue
		case ')', ']':
			if depth > 0 {
				depth--
				b.WriteRune(' ')
				continue
			}
		}
		if depth == 0 {
			b.WriteRune(r)
		}
	}
	return normalizeString(b.String())
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Chain asks each source in turn and returns the first non-absent payload.
type Chain []Source

func (c Chain) Lyrics(ctx context.Context, artist string, title string) (Payload, error) {
	var errs []error
	for _, source := range c {
		payload, err := source.Lyrics(ctx, artist, title)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !payload.IsAbsent() {
			return payload, nil
		}
	}
	return Payload{Kind: KindAbsent}, errors.Join(errs...)
}

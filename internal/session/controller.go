package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"karolbroda.com/encore/internal/lyrics"
	"karolbroda.com/encore/internal/queue"
	"karolbroda.com/encore/internal/track"
	"karolbroda.com/encore/internal/transport"
)

var (
	ErrNoSong = errors.New("no song loaded")
	// ErrResolution marks a song whose audio source could not be resolved.
	ErrResolution = errors.New("audio source resolution failed")
	// ErrLikesUnavailable is returned by like toggles when the session runs
	// without a likes collaborator.
	ErrLikesUnavailable = errors.New("likes are not available")
)

type Options struct {
	Catalog    Catalog
	Lyrics     lyrics.Source
	Transport  transport.Transport
	Queue      *queue.Queue
	Likes      Likes
	Recents    Recents
	Volumes    VolumeStore
	Renderer   Renderer
	Logger     *zap.Logger
	SyncOffset float64
	// Volume is applied to every new source. Nil leaves the player's own
	// volume alone until the first SetVolume.
	Volume *float64
	// Rand picks an index in [0, n). Defaults to math/rand.
	Rand func(n int) int
}

// Controller is the playback session. Every song load bumps a generation
// counter; asynchronous results carry the generation they were started
// under and are dropped when it is no longer current.
type Controller struct {
	catalog   Catalog
	lyrics    lyrics.Source
	transport transport.Transport
	queue     *queue.Queue
	likes     Likes
	recents   Recents
	volumes   VolumeStore
	renderer  Renderer
	logger    *zap.Logger
	rand      func(n int) int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	generation   uint64
	song         *track.Song
	loadID       string
	state        State
	sourceLoaded bool
	position     float64
	lyricsKind   lyrics.Kind
	syncer       *lyrics.Synchronizer
	volume       float64
	volumeSet    bool
}

func NewController(opts Options) *Controller {
	if opts.Renderer == nil {
		opts.Renderer = NopRenderer{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Queue == nil {
		opts.Queue = queue.New()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Intn
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		catalog:   opts.Catalog,
		lyrics:    opts.Lyrics,
		transport: opts.Transport,
		queue:     opts.Queue,
		likes:     opts.Likes,
		recents:   opts.Recents,
		volumes:   opts.Volumes,
		renderer:  opts.Renderer,
		logger:    opts.Logger,
		rand:      opts.Rand,
		ctx:       ctx,
		cancel:    cancel,
		syncer:    lyrics.NewSynchronizer(opts.Renderer),
	}
	if opts.Volume != nil {
		c.volume = transport.ClampVolume(*opts.Volume)
		c.volumeSet = true
	}
	c.syncer.SetOffset(opts.SyncOffset)
	return c
}

// LoadSong replaces the session with song and starts resolving its audio and
// lyrics in the background.
func (c *Controller) LoadSong(song track.Song) error {
	_, err := c.load(song, 0, false)
	return err
}

// loadIfCurrent loads song only while gen is still the current generation.
// It reports whether the load happened.
func (c *Controller) loadIfCurrent(gen uint64, song track.Song) (bool, error) {
	return c.load(song, gen, true)
}

func (c *Controller) load(song track.Song, expected uint64, guarded bool) (bool, error) {
	if !song.IsValid() {
		return false, fmt.Errorf("load song: %w", queue.ErrInvalidSong)
	}

	loadID := uuid.NewString()
	logger := c.logger.With(
		zap.String("load_id", loadID),
		zap.Int64("song_id", song.ID),
		zap.String("song", song.String()))

	c.mu.Lock()
	if guarded && expected != c.generation {
		c.mu.Unlock()
		return false, nil
	}
	c.generation++
	gen := c.generation
	current := song
	c.song = &current
	c.loadID = loadID
	c.state = StateLoading
	c.sourceLoaded = false
	c.position = 0
	c.lyricsKind = lyrics.KindAbsent
	c.syncer.Reset()

	liked := c.isLiked(song.ID)
	c.renderer.NowPlaying(NowPlaying{Song: song, ArtistPending: true, Liked: liked})
	c.renderer.PlaybackState(StateLoading)
	c.renderer.Lyrics(LyricsView{Status: LyricsSearching})
	c.renderer.Progress(0, float64(song.DurationSecs))
	c.mu.Unlock()

	if c.recents != nil {
		if err := c.recents.Record(c.ctx, song); err != nil {
			logger.Warn("Failed to record recent song", zap.Error(err))
		}
	}
	if liked {
		c.likes.RequestCache(song)
	}

	logger.Info("Loading song")

	c.wg.Add(2)
	go c.resolveAudio(gen, song, logger)
	go c.resolveLyrics(gen, song, logger)
	return true, nil
}

func (c *Controller) resolveAudio(gen uint64, song track.Song, logger *zap.Logger) {
	defer c.wg.Done()

	source, err := c.catalog.Resolve(c.ctx, song)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		logger.Debug("Dropping stale audio resolution")
		return
	}

	liked := c.isLiked(song.ID)
	if err != nil {
		logger.Warn("Song not available", zap.Error(fmt.Errorf("%w: %w", ErrResolution, err)))
		c.setStateLocked(StateError)
		c.renderer.NowPlaying(NowPlaying{Song: song, Liked: liked, Err: "song not available"})
		return
	}

	c.renderer.NowPlaying(NowPlaying{Song: song, Liked: liked})

	if err := c.transport.SetSource(source); err != nil {
		logger.Warn("Audio transport rejected source", zap.String("source", source), zap.Error(err))
		c.setStateLocked(StateError)
		return
	}
	c.sourceLoaded = true

	if c.volumeSet {
		if err := c.transport.SetVolume(c.volume); err != nil {
			logger.Debug("Audio transport ignored volume", zap.Float64("volume", c.volume), zap.Error(err))
		}
	}

	if err := c.transport.Play(); err != nil {
		// blocked playback waits for an explicit toggle
		logger.Info("Playback start blocked", zap.Error(err))
		c.setStateLocked(StatePaused)
		return
	}
	c.setStateLocked(StatePlaying)
	logger.Debug("Playback started", zap.String("source", source))
}

func (c *Controller) resolveLyrics(gen uint64, song track.Song, logger *zap.Logger) {
	defer c.wg.Done()

	payload, err := c.lyrics.Lyrics(c.ctx, song.Artist, song.Title)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		logger.Debug("Dropping stale lyrics")
		return
	}

	if err != nil {
		logger.Warn("Lyrics lookup failed", zap.Error(err))
		payload = lyrics.Payload{Kind: lyrics.KindAbsent}
	}

	switch {
	case payload.IsAbsent():
		c.lyricsKind = lyrics.KindAbsent
		c.renderer.Lyrics(LyricsView{Status: LyricsUnavailable})
	case payload.Kind == lyrics.KindSynced:
		lines := lyrics.SortStable(lyrics.Parse(payload.Text))
		if len(lines) == 0 {
			c.lyricsKind = lyrics.KindPlain
			c.renderer.Lyrics(LyricsView{Status: LyricsPlain, Text: payload.Text})
			break
		}
		c.lyricsKind = lyrics.KindSynced
		c.renderer.Lyrics(LyricsView{Status: LyricsSynced, Lines: lines})
		c.syncer.Load(lines)
		c.syncer.Update(c.position)
	default:
		c.lyricsKind = lyrics.KindPlain
		c.renderer.Lyrics(LyricsView{Status: LyricsPlain, Text: payload.Text})
	}

	logger.Debug("Lyrics resolved", zap.Stringer("kind", c.lyricsKind))
}

// Next starts the head of the queue. With an empty queue a natural track end
// plays a random recommendation for the finished song's artist, while a user
// skip does nothing.
func (c *Controller) Next(isUserAction bool) error {
	if song, ok := c.queue.DequeueNext(); ok {
		c.renderQueue()
		return c.LoadSong(song)
	}
	if isUserAction {
		return nil
	}

	c.mu.Lock()
	gen := c.generation
	var finished track.Song
	if c.song != nil {
		finished = *c.song
	}
	c.mu.Unlock()

	if !finished.HasArtistID() {
		return nil
	}

	c.wg.Add(1)
	go c.playRecommendation(gen, finished)
	return nil
}

func (c *Controller) playRecommendation(gen uint64, finished track.Song) {
	defer c.wg.Done()

	logger := c.logger.With(zap.Int64("artist_id", finished.ArtistID))
	songs, err := c.catalog.Recommendations(c.ctx, finished.ArtistID)

	switch {
	case err != nil:
		logger.Warn("Recommendation fetch failed", zap.Error(err))
		return
	case len(songs) == 0:
		logger.Info("No recommendations, staying idle")
		return
	}

	pick := songs[c.rand(len(songs))]
	loaded, err := c.loadIfCurrent(gen, pick)
	switch {
	case err != nil:
		logger.Warn("Recommended song could not be loaded", zap.Error(err))
	case !loaded:
		logger.Debug("Dropping stale recommendation", zap.String("song", pick.String()))
	default:
		logger.Info("Playing recommendation", zap.String("song", pick.String()))
	}
}

// Discover returns recommendations for the most recent song with an artist
// id, or nothing when there is none.
func (c *Controller) Discover(ctx context.Context) ([]track.Song, error) {
	if c.recents == nil {
		return nil, nil
	}
	seed, ok := c.recents.FirstWithArtist()
	if !ok {
		return nil, nil
	}
	return c.catalog.Recommendations(ctx, seed.ArtistID)
}

func (c *Controller) OnPlaying() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sourceLoaded {
		c.setStateLocked(StatePlaying)
	}
}

func (c *Controller) OnPaused() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sourceLoaded && c.state == StatePlaying {
		c.setStateLocked(StatePaused)
	}
}

func (c *Controller) OnTimeUpdate(position float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.song == nil {
		return
	}
	c.position = position
	c.syncer.Update(position)
	c.renderer.Progress(position, c.durationLocked())
}

// OnEnded moves on to whatever plays next.
func (c *Controller) OnEnded() {
	c.mu.Lock()
	if c.song == nil || !c.sourceLoaded {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateEnded)
	c.mu.Unlock()

	if err := c.Next(false); err != nil {
		c.logger.Warn("Failed to advance after track end", zap.Error(err))
	}
}

// TogglePlay flips between playing and paused. It is a no-op until a source
// has been handed to the transport.
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sourceLoaded {
		return nil
	}

	if c.state == StatePlaying {
		if err := c.transport.Pause(); err != nil {
			return fmt.Errorf("pause: %w", err)
		}
		c.setStateLocked(StatePaused)
		return nil
	}

	if err := c.transport.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	c.setStateLocked(StatePlaying)
	return nil
}

// Seek jumps to fraction of the track, clamped to [0, 1]. NaN seeks to the
// start.
func (c *Controller) Seek(fraction float64) error {
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sourceLoaded {
		return nil
	}
	return c.seekLocked(fraction * c.durationLocked())
}

// SeekToLine jumps to the start of a synced lyric line.
func (c *Controller) SeekToLine(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, ok := c.syncer.SeekTarget(index)
	if !ok || !c.sourceLoaded {
		return nil
	}
	return c.seekLocked(target)
}

// Restart seeks back to the start of the current song.
func (c *Controller) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sourceLoaded {
		return nil
	}
	return c.seekLocked(0)
}

func (c *Controller) seekLocked(seconds float64) error {
	if err := c.transport.Seek(seconds); err != nil {
		return fmt.Errorf("seek to %.2fs: %w", seconds, err)
	}
	c.position = seconds
	c.syncer.Update(seconds)
	c.renderer.Progress(seconds, c.durationLocked())
	return nil
}

// ToggleLikeCurrent flips the like on the current song and returns the new
// state.
func (c *Controller) ToggleLikeCurrent() (bool, error) {
	if c.likes == nil {
		return false, ErrLikesUnavailable
	}

	c.mu.Lock()
	if c.song == nil {
		c.mu.Unlock()
		return false, ErrNoSong
	}
	song := *c.song
	c.mu.Unlock()

	return c.ToggleLike(song), nil
}

// ToggleLike flips the like on song. Without a likes collaborator it is a
// no-op that reports false.
func (c *Controller) ToggleLike(song track.Song) bool {
	if c.likes == nil {
		c.logger.Debug("Ignoring like toggle without likes", zap.Int64("song_id", song.ID))
		return false
	}
	liked := c.likes.Toggle(song)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.song != nil && c.song.IsSameSong(song) {
		c.renderer.NowPlaying(NowPlaying{Song: *c.song, ArtistPending: c.state == StateLoading, Liked: liked})
	}
	c.renderer.Liked(c.likes.Songs())
	return liked
}

func (c *Controller) Enqueue(song track.Song) error {
	if err := c.queue.Enqueue(song); err != nil {
		return err
	}
	c.renderQueue()
	return nil
}

func (c *Controller) RemoveFromQueue(index int) (track.Song, error) {
	song, err := c.queue.RemoveAt(index)
	if err != nil {
		return track.Song{}, err
	}
	c.renderQueue()
	return song, nil
}

// Volume returns the session volume. Until one is set it asks the transport,
// falling back to full volume.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volumeLocked()
}

func (c *Controller) volumeLocked() float64 {
	if c.volumeSet {
		return c.volume
	}
	volume, err := c.transport.Volume()
	if err != nil {
		return 1
	}
	return transport.ClampVolume(volume)
}

// SetVolume clamps volume to [0, 1], applies it to the transport and saves
// it. It returns the applied volume.
func (c *Controller) SetVolume(volume float64) (float64, error) {
	volume = transport.ClampVolume(volume)

	c.mu.Lock()
	c.volume = volume
	c.volumeSet = true
	c.renderer.Volume(volume)
	c.mu.Unlock()

	if err := c.transport.SetVolume(volume); err != nil {
		return volume, fmt.Errorf("set volume: %w", err)
	}

	if c.volumes != nil {
		if err := c.volumes.SaveVolume(c.ctx, volume); err != nil {
			c.logger.Warn("Failed to save volume", zap.Float64("volume", volume), zap.Error(err))
		}
	}
	return volume, nil
}

// AdjustVolume shifts the volume by delta and returns the applied volume.
func (c *Controller) AdjustVolume(delta float64) (float64, error) {
	return c.SetVolume(c.Volume() + delta)
}

// SetLyricsVisible stops or resumes highlight directives.
func (c *Controller) SetLyricsVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncer.SetVisible(visible)
}

// AdjustSyncOffset shifts lyric timing by delta seconds and returns the new
// offset.
func (c *Controller) AdjustSyncOffset(delta float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncer.SetOffset(c.syncer.Offset() + delta)
	c.syncer.Update(c.position)
	return c.syncer.Offset()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:      c.state,
		Position:   c.position,
		Duration:   c.durationLocked(),
		ActiveLine: c.syncer.Current(),
		LyricsKind: c.lyricsKind,
		Queue:      c.queue.Snapshot(),
		Volume:     c.volumeLocked(),
	}
	if c.song != nil {
		song := *c.song
		snap.Song = &song
		snap.Liked = c.isLiked(song.ID)
	}
	return snap
}

// Run feeds transport events into the session until ctx ends or the event
// channel closes.
func (c *Controller) Run(ctx context.Context) error {
	events := c.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			c.Dispatch(event)
		}
	}
}

func (c *Controller) Dispatch(event transport.Event) {
	switch event.Type {
	case transport.EventPlaying:
		c.OnPlaying()
	case transport.EventPaused:
		c.OnPaused()
	case transport.EventTimeUpdate:
		c.OnTimeUpdate(event.Position)
	case transport.EventEnded:
		c.OnEnded()
	}
}

// Wait blocks until in-flight resolutions have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close abandons in-flight requests and waits for them to return.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	c.renderer.PlaybackState(state)
}

func (c *Controller) durationLocked() float64 {
	if d := c.transport.Duration(); d > 0 {
		return d
	}
	if c.song != nil {
		return float64(c.song.DurationSecs)
	}
	return 0
}

func (c *Controller) isLiked(id int64) bool {
	return c.likes != nil && c.likes.IsLiked(id)
}

func (c *Controller) renderQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer.Queue(c.queue.Snapshot())
}

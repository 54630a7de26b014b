package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
)

// Status is a point-in-time view of the MPRIS player.
type Status struct {
	Title        string
	Artist       string
	Album        string
	ArtworkURL   string
	TrackID      dbus.ObjectPath
	DurationSecs float64
	PositionSecs float64
	Playing      bool
}

type mprisState struct {
	trackID  dbus.ObjectPath
	duration float64
	playing  bool
	// started is set once the current source has reported Playing, so a
	// later Stopped reads as the end of the track.
	started bool
}

// MPRIS controls a desktop media player over the D-Bus MPRIS interface.
type MPRIS struct {
	bus          *dbus.Conn
	service      string
	pollInterval time.Duration
	logger       *zap.Logger

	signalChan chan *dbus.Signal
	stopChan   chan struct{}
	stopOnce   sync.Once
	eventChan  chan Event
	wg         sync.WaitGroup

	mu    sync.RWMutex
	state mprisState
}

func NewMPRIS(bus *dbus.Conn, mprisService string, pollInterval time.Duration, logger *zap.Logger) (*MPRIS, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}
	if mprisService == "" {
		return nil, errors.New("empty mpris service name")
	}
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MPRIS{
		bus:          bus,
		service:      mprisService,
		pollInterval: pollInterval,
		logger:       logger,
		eventChan:    make(chan Event, 64),
		stopChan:     make(chan struct{}),
	}, nil
}

// Start subscribes to player signals and begins position polling.
func (m *MPRIS) Start() error {
	signalChan := make(chan *dbus.Signal, 10)
	m.signalChan = signalChan
	m.bus.Signal(signalChan)

	matchPropertiesChanged := fmt.Sprintf(
		"type='signal',sender='%s',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',path='%s'",
		m.service, mprisPath,
	)
	matchSeeked := fmt.Sprintf(
		"type='signal',sender='%s',interface='%s',member='Seeked',path='%s'",
		m.service, mprisPlayerIface, mprisPath,
	)

	if err := m.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchPropertiesChanged).Err; err != nil {
		return fmt.Errorf("failed to add properties match: %w", err)
	}
	if err := m.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchSeeked).Err; err != nil {
		return fmt.Errorf("failed to add seeked match: %w", err)
	}

	if status, err := m.Status(); err == nil {
		m.mu.Lock()
		m.state.trackID = status.TrackID
		m.state.duration = status.DurationSecs
		m.state.playing = status.Playing
		m.mu.Unlock()
	}

	m.wg.Add(2)
	go m.signalLoop()
	go m.pollLoop()
	return nil
}

func (m *MPRIS) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		if m.signalChan != nil {
			m.bus.RemoveSignal(m.signalChan)
		}
	})
	m.wg.Wait()
}

func (m *MPRIS) Events() <-chan Event {
	return m.eventChan
}

func (m *MPRIS) player() dbus.BusObject {
	return m.bus.Object(m.service, mprisPath)
}

func (m *MPRIS) SetSource(uri string) error {
	m.mu.Lock()
	m.state.started = false
	m.state.duration = 0
	m.mu.Unlock()

	if err := m.player().Call(mprisPlayerIface+".OpenUri", 0, uri).Err; err != nil {
		return fmt.Errorf("failed to open uri: %w", err)
	}
	return nil
}

func (m *MPRIS) Play() error {
	if err := m.player().Call(mprisPlayerIface+".Play", 0).Err; err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}
	return nil
}

func (m *MPRIS) Pause() error {
	if err := m.player().Call(mprisPlayerIface+".Pause", 0).Err; err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}
	return nil
}

func (m *MPRIS) Position() (float64, error) {
	prop, err := m.player().GetProperty(mprisPlayerIface + ".Position")
	if err != nil {
		return 0, fmt.Errorf("failed to get position property: %w", err)
	}

	positionMicroseconds, ok := prop.Value().(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected position type %T", prop.Value())
	}
	return microsToSeconds(positionMicroseconds), nil
}

// Seek sets an absolute position. MPRIS needs the current track id for that.
func (m *MPRIS) Seek(seconds float64) error {
	m.mu.RLock()
	trackID := m.state.trackID
	m.mu.RUnlock()

	if !trackID.IsValid() {
		return errors.New("no track id to seek in")
	}
	if seconds < 0 {
		seconds = 0
	}

	err := m.player().Call(mprisPlayerIface+".SetPosition", 0, trackID, int64(seconds*1_000_000)).Err
	if err != nil {
		return fmt.Errorf("failed to set position: %w", err)
	}
	return nil
}

func (m *MPRIS) Volume() (float64, error) {
	prop, err := m.player().GetProperty(mprisPlayerIface + ".Volume")
	if err != nil {
		return 0, fmt.Errorf("failed to get volume property: %w", err)
	}

	volume, ok := prop.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected volume type %T", prop.Value())
	}
	return volume, nil
}

func (m *MPRIS) SetVolume(volume float64) error {
	err := m.player().SetProperty(mprisPlayerIface+".Volume", dbus.MakeVariant(ClampVolume(volume)))
	if err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}
	return nil
}

func (m *MPRIS) Duration() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.duration
}

// Status reads metadata, playback status and position from the player.
func (m *MPRIS) Status() (Status, error) {
	obj := m.player()

	prop, err := obj.GetProperty(mprisPlayerIface + ".Metadata")
	if err != nil {
		return Status{}, fmt.Errorf("failed to get metadata property: %w", err)
	}
	metadata, ok := prop.Value().(map[string]dbus.Variant)
	if !ok {
		return Status{}, fmt.Errorf("unexpected metadata type %T", prop.Value())
	}

	status := Status{
		Title:        extractString(metadata, "xesam:title"),
		Artist:       extractArtist(metadata, "xesam:artist"),
		Album:        extractString(metadata, "xesam:album"),
		ArtworkURL:   extractString(metadata, "mpris:artUrl"),
		TrackID:      extractObjectPath(metadata, "mpris:trackid"),
		DurationSecs: extractDurationSeconds(metadata, "mpris:length"),
	}

	if playback, err := obj.GetProperty(mprisPlayerIface + ".PlaybackStatus"); err == nil {
		value, _ := playback.Value().(string)
		status.Playing = value == "Playing"
	}
	if pos, err := m.Position(); err == nil {
		status.PositionSecs = pos
	}
	return status, nil
}

func (m *MPRIS) signalLoop() {
	defer m.wg.Done()
	for {
		select {
		case sig, ok := <-m.signalChan:
			if !ok {
				return
			}
			m.handleSignal(sig)
		case <-m.stopChan:
			return
		}
	}
}

// pollLoop reports the position while playing; MPRIS does not signal
// ordinary position progress.
func (m *MPRIS) pollLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.RLock()
			playing := m.state.playing
			m.mu.RUnlock()
			if !playing {
				continue
			}

			pos, err := m.Position()
			if err != nil {
				m.logger.Debug("Position poll failed", zap.Error(err))
				continue
			}
			m.emit(Event{Type: EventTimeUpdate, Position: pos})
		case <-m.stopChan:
			return
		}
	}
}

func (m *MPRIS) handleSignal(sig *dbus.Signal) {
	if sig == nil {
		return
	}

	switch sig.Name {
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		m.handlePropertiesChanged(sig)
	case "org.mpris.MediaPlayer2.Player.Seeked":
		m.handleSeeked(sig)
	}
}

func (m *MPRIS) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}

	interfaceName, ok := sig.Body[0].(string)
	if !ok || interfaceName != mprisPlayerIface {
		return
	}

	changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	if metadataVariant, exists := changedProps["Metadata"]; exists {
		if metadata, ok := metadataVariant.Value().(map[string]dbus.Variant); ok {
			m.mu.Lock()
			m.state.trackID = extractObjectPath(metadata, "mpris:trackid")
			m.state.duration = extractDurationSeconds(metadata, "mpris:length")
			m.mu.Unlock()
		}
	}

	if playbackVariant, exists := changedProps["PlaybackStatus"]; exists {
		status, ok := playbackVariant.Value().(string)
		if !ok {
			return
		}

		m.mu.Lock()
		event, emit := eventForStatus(status, m.state.started)
		m.state.playing = status == "Playing"
		if status == "Playing" {
			m.state.started = true
		}
		if status == "Stopped" {
			m.state.started = false
		}
		m.mu.Unlock()

		if emit {
			m.emit(event)
		}
	}
}

func (m *MPRIS) handleSeeked(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}

	positionMicroseconds, ok := sig.Body[0].(int64)
	if !ok {
		return
	}
	m.emit(Event{Type: EventTimeUpdate, Position: microsToSeconds(positionMicroseconds)})
}

// emit drops time updates when the consumer lags; state changes wait.
func (m *MPRIS) emit(event Event) {
	if event.Type == EventTimeUpdate {
		select {
		case m.eventChan <- event:
		default:
		}
		return
	}

	select {
	case m.eventChan <- event:
	case <-m.stopChan:
	}
}

// eventForStatus maps a PlaybackStatus value to a transport event. Stopped
// only counts as the end of a track once playback had started.
func eventForStatus(status string, started bool) (Event, bool) {
	switch status {
	case "Playing":
		return Event{Type: EventPlaying}, true
	case "Paused":
		return Event{Type: EventPaused}, true
	case "Stopped":
		if started {
			return Event{Type: EventEnded}, true
		}
		return Event{Type: EventPaused}, true
	default:
		return Event{}, false
	}
}

func microsToSeconds(us int64) float64 {
	if us < 0 {
		return 0
	}
	return float64(us) / 1_000_000
}

// Wait blocks until the player reports status, or ctx ends. Used to give a
// freshly launched player time to claim its bus name.
func (m *MPRIS) Wait(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := m.Status(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("player %s not available: %w", m.service, ctx.Err())
		case <-ticker.C:
		}
	}
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	text, _ := variant.Value().(string)
	return text
}

func extractObjectPath(metadata map[string]dbus.Variant, key string) dbus.ObjectPath {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	switch typed := variant.Value().(type) {
	case dbus.ObjectPath:
		return typed
	case string:
		return dbus.ObjectPath(typed)
	default:
		return ""
	}
}

func extractArtist(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	switch typed := variant.Value().(type) {
	case []string:
		if len(typed) > 0 {
			return typed[0]
		}
		return ""
	case string:
		return typed
	default:
		return ""
	}
}

func extractDurationSeconds(metadata map[string]dbus.Variant, key string) float64 {
	variant, exists := metadata[key]
	if !exists {
		return 0
	}

	switch typed := variant.Value().(type) {
	case int64:
		return microsToSeconds(typed)
	case uint64:
		return float64(typed) / 1_000_000
	default:
		return 0
	}
}

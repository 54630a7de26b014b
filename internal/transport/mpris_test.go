package transport

import (
	"math"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestEventForStatus(t *testing.T) {
	tests := []struct {
		status  string
		started bool
		want    EventType
		emit    bool
	}{
		{"Playing", false, EventPlaying, true},
		{"Paused", true, EventPaused, true},
		{"Stopped", true, EventEnded, true},
		{"Stopped", false, EventPaused, true},
		{"Buffering", true, 0, false},
	}

	for _, tt := range tests {
		event, emit := eventForStatus(tt.status, tt.started)
		assert.Equal(t, tt.emit, emit, tt.status)
		if tt.emit {
			assert.Equal(t, tt.want, event.Type, tt.status)
		}
	}
}

func TestMetadataExtraction(t *testing.T) {
	metadata := map[string]dbus.Variant{
		"xesam:title":   dbus.MakeVariant("Song"),
		"xesam:artist":  dbus.MakeVariant([]string{"First", "Second"}),
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/org/mpris/track/1")),
		"mpris:length":  dbus.MakeVariant(int64(215_500_000)),
	}

	assert.Equal(t, "Song", extractString(metadata, "xesam:title"))
	assert.Equal(t, "", extractString(metadata, "xesam:album"))
	assert.Equal(t, "First", extractArtist(metadata, "xesam:artist"))
	assert.Equal(t, dbus.ObjectPath("/org/mpris/track/1"), extractObjectPath(metadata, "mpris:trackid"))
	assert.Equal(t, 215.5, extractDurationSeconds(metadata, "mpris:length"))

	metadata["mpris:length"] = dbus.MakeVariant(uint64(1_000_000))
	assert.Equal(t, 1.0, extractDurationSeconds(metadata, "mpris:length"))
}

func TestHandleSignal_EmitsTransportEvents(t *testing.T) {
	m := &MPRIS{eventChan: make(chan Event, 8), stopChan: make(chan struct{})}

	changed := func(props map[string]dbus.Variant) *dbus.Signal {
		return &dbus.Signal{
			Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
			Body: []interface{}{mprisPlayerIface, props, []string{}},
		}
	}

	m.handleSignal(changed(map[string]dbus.Variant{
		"Metadata": dbus.MakeVariant(map[string]dbus.Variant{
			"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/t/1")),
			"mpris:length":  dbus.MakeVariant(int64(90_000_000)),
		}),
		"PlaybackStatus": dbus.MakeVariant("Playing"),
	}))
	m.handleSignal(&dbus.Signal{Name: "org.mpris.MediaPlayer2.Player.Seeked", Body: []interface{}{int64(30_000_000)}})
	m.handleSignal(changed(map[string]dbus.Variant{"PlaybackStatus": dbus.MakeVariant("Stopped")}))

	assert.Equal(t, 90.0, m.Duration())
	assert.Equal(t, Event{Type: EventPlaying}, <-m.eventChan)
	assert.Equal(t, Event{Type: EventTimeUpdate, Position: 30}, <-m.eventChan)
	assert.Equal(t, Event{Type: EventEnded}, <-m.eventChan)
	assert.Empty(t, m.eventChan)
}

func TestClampVolume(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "in range", in: 0.4, want: 0.4},
		{name: "below zero", in: -0.2, want: 0},
		{name: "above one", in: 1.7, want: 1},
		{name: "nan", in: math.NaN(), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampVolume(tt.in))
		})
	}
}

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gethiox/midizap/internal/pkg/focus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "midizap.ini")
	require.Nil(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.ini"))
	require.Nil(t, err)
	assert.Equal(t, DefaultSettings(), s)

	s, err = LoadSettings("")
	require.Nil(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadSettings(t *testing.T) {
	path := writeSettings(t, `
[midizap]
poll_rate = 500
reload_interval = 250
max_depth = 4
client_name = zap

[focus]
backend = xprop
refresh = 0

[midi]
backend = raw
device2 = /dev/snd/midiC2D0

[output]
device_name = keys
key_delay_ms = 3
`)
	s, err := LoadSettings(path)
	require.Nil(t, err)

	assert.Equal(t, Settings{
		Midizap: Runtime{
			PollRate:       2 * time.Millisecond,
			ReloadInterval: 250 * time.Millisecond,
			MaxDepth:       4,
			ClientName:     "zap",
		},
		Focus:  Focus{Backend: focus.Xprop, Refresh: 0},
		MIDI:   MIDI{Backend: BackendRaw, Devices: [2]string{"0", "/dev/snd/midiC2D0"}},
		Output: Output{DeviceName: "keys", KeyDelay: 3 * time.Millisecond},
	}, s)
}

func TestLoadSettingsPartial(t *testing.T) {
	path := writeSettings(t, "[focus]\nbackend = wayland\n")
	s, err := LoadSettings(path)
	require.Nil(t, err)

	expected := DefaultSettings()
	assert.Equal(t, expected, s)
}

func TestLoadSettingsErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{name: "not a number", content: "[midizap]\nmax_depth = deep\n"},
		{name: "zero poll rate", content: "[midizap]\npoll_rate = 0\n"},
		{name: "zero reload", content: "[midizap]\nreload_interval = 0\n"},
		{name: "negative refresh", content: "[focus]\nrefresh = -1\n"},
		{name: "negative delay", content: "[output]\nkey_delay_ms = -5\n"},
		{name: "broken", content: "[midizap\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadSettings(writeSettings(t, tc.content))
			assert.NotNil(t, err)
		})
	}
}

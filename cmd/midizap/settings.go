package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gethiox/midizap/internal/pkg/dispatch"
	"github.com/gethiox/midizap/internal/pkg/focus"
	"github.com/go-ini/ini"
)

type Runtime struct {
	PollRate       time.Duration
	ReloadInterval time.Duration
	MaxDepth       int
	ClientName     string
}

type Focus struct {
	Backend focus.Backend
	Refresh time.Duration
}

const (
	BackendALSA = "alsa"
	BackendRaw  = "raw"
)

// MIDI selects the transport. Devices name the raw MIDI devices of the
// first and second port, by path or by number.
type MIDI struct {
	Backend string
	Devices [2]string
}

type Output struct {
	DeviceName string
	KeyDelay   time.Duration
}

// Settings are the application settings, the translation rules live in the
// midizaprc file.
type Settings struct {
	Midizap Runtime
	Focus   Focus
	MIDI    MIDI
	Output  Output
}

func DefaultSettings() Settings {
	return Settings{
		Midizap: Runtime{
			PollRate:       time.Millisecond,
			ReloadInterval: time.Second,
			MaxDepth:       dispatch.DefaultMaxDepth,
		},
		Focus: Focus{
			Backend: focus.Auto,
			Refresh: 100 * time.Millisecond,
		},
		MIDI: MIDI{
			Backend: BackendALSA,
			Devices: [2]string{"0", "1"},
		},
		Output: Output{
			DeviceName: "midizap",
		},
	}
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "midizap", "midizap.ini")
}

func intKey(sec *ini.Section, name string, def int) (int, error) {
	if !sec.HasKey(name) {
		return def, nil
	}
	i, err := sec.Key(name).Int()
	if err != nil {
		return 0, fmt.Errorf("[%s] %s: %w", sec.Name(), name, err)
	}
	return i, nil
}

// LoadSettings reads the settings file at path. A missing file yields the
// defaults, so does every missing key.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read settings: %w", err)
	}

	cfg, err := ini.Load(data)
	if err != nil {
		return s, fmt.Errorf("failed to parse settings: %w", err)
	}

	// [midizap]
	sec := cfg.Section("midizap")
	rate, err := intKey(sec, "poll_rate", int(time.Second/s.Midizap.PollRate))
	if err != nil {
		return s, err
	}
	if rate <= 0 {
		return s, fmt.Errorf("[midizap] poll_rate: must be positive, got %d", rate)
	}
	s.Midizap.PollRate = time.Second / time.Duration(rate)

	i, err := intKey(sec, "reload_interval", int(s.Midizap.ReloadInterval/time.Millisecond))
	if err != nil {
		return s, err
	}
	if i <= 0 {
		return s, fmt.Errorf("[midizap] reload_interval: must be positive, got %d", i)
	}
	s.Midizap.ReloadInterval = time.Millisecond * time.Duration(i)

	if s.Midizap.MaxDepth, err = intKey(sec, "max_depth", s.Midizap.MaxDepth); err != nil {
		return s, err
	}
	s.Midizap.ClientName = sec.Key("client_name").String()

	// [focus]
	sec = cfg.Section("focus")
	if sec.HasKey("backend") {
		s.Focus.Backend = focus.Backend(sec.Key("backend").In(string(focus.Auto), []string{
			string(focus.Auto), string(focus.Xdotool), string(focus.Xprop), string(focus.None),
		}))
	}
	i, err = intKey(sec, "refresh", int(s.Focus.Refresh/time.Millisecond))
	if err != nil {
		return s, err
	}
	if i < 0 {
		return s, fmt.Errorf("[focus] refresh: must not be negative, got %d", i)
	}
	s.Focus.Refresh = time.Millisecond * time.Duration(i)

	// [midi]
	sec = cfg.Section("midi")
	if sec.HasKey("backend") {
		s.MIDI.Backend = sec.Key("backend").In(BackendALSA, []string{BackendALSA, BackendRaw})
	}
	for i, key := range []string{"device", "device2"} {
		if v := sec.Key(key).String(); v != "" {
			s.MIDI.Devices[i] = v
		}
	}

	// [output]
	sec = cfg.Section("output")
	if name := sec.Key("device_name").String(); name != "" {
		s.Output.DeviceName = name
	}
	i, err = intKey(sec, "key_delay_ms", 0)
	if err != nil {
		return s, err
	}
	if i < 0 {
		return s, fmt.Errorf("[output] key_delay_ms: must not be negative, got %d", i)
	}
	s.Output.KeyDelay = time.Millisecond * time.Duration(i)

	return s, nil
}

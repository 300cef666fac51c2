package main

import (
	"fmt"
	"strings"

	"github.com/gethiox/midizap/internal/pkg/config"
	"github.com/gethiox/midizap/internal/pkg/dispatch"
	"github.com/gethiox/midizap/internal/pkg/midi/driver"
	"github.com/gethiox/midizap/internal/pkg/midi/driver/alsa"
)

const defaultClientName = "midizap"

// Flags are the command line switches that override directives.
type Flags struct {
	// Ports is -1 when neither -o nor -o2 was given.
	Ports       int
	ClientName  string
	Passthrough [2]bool
	Debug       config.Debug
	// Trace shows the internal debug messages.
	Trace bool
}

// parseDebug reads the letters of the -d switch.
func parseDebug(classes string) (config.Debug, bool, error) {
	var d config.Debug
	var trace bool
	for _, c := range strings.ToLower(classes) {
		switch c {
		case 'r':
			d.Regex = true
		case 's':
			d.Strokes = true
		case 'k':
			d.Keys = true
		case 'm':
			d.Midi = true
		case 'j':
			trace = true
		default:
			return d, trace, fmt.Errorf("unknown debug class %q, expected any of rskmj", c)
		}
	}
	return d, trace, nil
}

// Options is the effective configuration of one run, made of the flags,
// the settings and the directives of the loaded configuration file.
type Options struct {
	Ports             int
	ClientName        string
	Passthrough       [2]bool
	SystemPassthrough [2]bool
	Debug             config.Debug
	In, Out           [2]string
}

func mergeOptions(f Flags, s Settings, o config.Options) Options {
	m := Options{
		SystemPassthrough: o.SystemPassthrough,
		In:                o.In,
		Out:               o.Out,
	}

	switch {
	case f.Ports >= 0:
		m.Ports = f.Ports
	case o.Ports >= 0:
		m.Ports = o.Ports
	}
	if m.Ports > 2 {
		m.Ports = 2
	}

	switch {
	case f.ClientName != "":
		m.ClientName = f.ClientName
	case o.ClientName != "":
		m.ClientName = o.ClientName
	case s.Midizap.ClientName != "":
		m.ClientName = s.Midizap.ClientName
	default:
		m.ClientName = defaultClientName
	}

	for i := range m.Passthrough {
		m.Passthrough[i] = f.Passthrough[i] || o.Passthrough[i]
	}
	m.Debug = config.Debug{
		Regex:   f.Debug.Regex || o.Debug.Regex,
		Strokes: f.Debug.Strokes || o.Debug.Strokes,
		Keys:    f.Debug.Keys || o.Debug.Keys,
		Midi:    f.Debug.Midi || o.Debug.Midi,
	}
	return m
}

func (o Options) Dispatch(maxDepth int) dispatch.Options {
	return dispatch.Options{
		Ports:       o.Ports,
		Passthrough: o.Passthrough,
		MaxDepth:    maxDepth,
		DebugKeys:   o.Debug.Keys,
	}
}

func (o Options) Transport() driver.Options {
	return driver.Options{
		SystemPassthrough: o.SystemPassthrough,
		Debug:             o.Debug.Midi,
	}
}

func (o Options) PortConfig() alsa.Config {
	return alsa.Config{
		ClientName: o.ClientName,
		Ports:      o.Ports,
		In:         o.In,
		Out:        o.Out,
	}
}

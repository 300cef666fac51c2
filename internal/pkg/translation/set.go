package translation

import (
	"github.com/gethiox/midizap/internal/pkg/stroke"
)

// Set is a fully compiled configuration. It is never modified after
// compilation, a reload replaces it as a whole.
type Set struct {
	Sections []*Translation
	Arena    *stroke.Arena
	// Octave is the MIDI_OCTAVE offset used when rendering note names.
	Octave int

	generic *Translation
	ports   [2]*Translation
}

func NewSet(arena *stroke.Arena) *Set {
	return &Set{Arena: arena}
}

// Add appends a finished section. The first section of each default flavor
// wins, later ones are still listed but never selected.
func (s *Set) Add(t *Translation) {
	s.Sections = append(s.Sections, t)
	switch t.Default {
	case Generic:
		if s.generic == nil {
			s.generic = t
		}
	case MIDIPort1:
		if s.ports[0] == nil {
			s.ports[0] = t
		}
	case MIDIPort2:
		if s.ports[1] == nil {
			s.ports[1] = t
		}
	}
}

// Match returns the first regular section matching the window, nil if none.
func (s *Set) Match(title, class string) *Translation {
	if s == nil {
		return nil
	}
	for _, t := range s.Sections {
		if t.Matches(title, class) {
			return t
		}
	}
	return nil
}

// Default returns the generic fallback section.
func (s *Set) Default() *Translation {
	if s == nil {
		return nil
	}
	return s.generic
}

// PortDefault returns the [MIDI] (port 0) or [MIDI2] (port 1) section.
func (s *Set) PortDefault(port int) *Translation {
	if s == nil || port < 0 || port > 1 {
		return nil
	}
	return s.ports[port]
}

// Candidates lists the sections consulted for a message from port, in
// precedence order. active may be nil.
func (s *Set) Candidates(active *Translation, port int) []*Translation {
	out := make([]*Translation, 0, 3)
	if active != nil {
		out = append(out, active)
	}
	if d := s.PortDefault(port); d != nil && d != active {
		out = append(out, d)
	}
	if port == 0 {
		if d := s.Default(); d != nil && d != active {
			out = append(out, d)
		}
	}
	return out
}

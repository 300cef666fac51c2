// Package stroke holds the output actions bound to MIDI input. Strokes of one
// compiled configuration live in a single Arena and are chained into singly
// linked lists by handle, a list is identified by the handle of its head.
package stroke

import (
	"fmt"
	"strings"

	"github.com/gethiox/midizap/internal/pkg/input"
	"github.com/gethiox/midizap/internal/pkg/midi"
)

type Kind uint8

const (
	Nop Kind = iota
	Key
	Shift
	MIDI
)

// Handle refers to a stroke inside an Arena, Nil terminates a list.
type Handle uint32

const Nil Handle = 0

// Message describes a MIDI output stroke.
type Message struct {
	Status uint8 // message type and channel
	Data   uint8 // note, controller or program number, 0 for PB and CP
	Step   int   // 0 selects the context default
	Steps  []int // discrete values for mod output

	Swap      bool // exchange offset and value in mod output
	Change    bool // only emit when the value differs from the last one
	Incr      bool // relative sign-bit output
	Recursive bool // feed back into the dispatcher instead of sending
	Feedback  bool // send to the alternate output port
}

func (m Message) Type() uint8 {
	return m.Status & 0xf0
}

func (m Message) Channel() uint8 {
	return m.Status & 0x0f
}

type Stroke struct {
	Kind Kind
	Next Handle

	Key   input.Key
	Press bool

	Level int

	Msg Message
	// Dirty marks a press-phase MIDI stroke still waiting for its release
	// counterpart.
	Dirty bool
}

// Format renders the stroke the way it is written in a configuration file.
// octave is the MIDI_OCTAVE offset used for note names.
func (s Stroke) Format(octave int) string {
	switch s.Kind {
	case Key:
		if s.Press {
			return s.Key.String() + "/D"
		}
		return s.Key.String() + "/U"
	case Shift:
		if s.Level == 1 {
			return "SHIFT"
		}
		return fmt.Sprintf("SHIFT%d", s.Level)
	case MIDI:
		return FormatMessage(s.Msg, octave)
	default:
		return "NOP"
	}
}

func (s Stroke) String() string {
	return s.Format(0)
}

// FormatMessage renders a MIDI output token, including its channel, so that
// parsing the result yields the same message.
func FormatMessage(m Message, octave int) string {
	var b strings.Builder
	if m.Recursive {
		b.WriteByte('$')
	}
	switch m.Type() {
	case midi.NoteOn:
		b.WriteString(midi.NoteName(m.Data, octave))
	case midi.PolyphonicKeyPressure:
		b.WriteString("KP:" + midi.NoteName(m.Data, octave))
	case midi.ControlChange:
		fmt.Fprintf(&b, "CC%d", m.Data)
	case midi.ProgramChange:
		fmt.Fprintf(&b, "PC%d", m.Data)
	case midi.ChannelPressure:
		b.WriteString("CP")
	case midi.PitchWheelChange:
		b.WriteString("PB")
	default:
		fmt.Fprintf(&b, "<status 0x%02x>", m.Status)
	}
	switch {
	case len(m.Steps) > 0:
		b.WriteString(FormatSteps(m.Steps))
	case m.Step != 0:
		fmt.Fprintf(&b, "[%d]", m.Step)
	}
	fmt.Fprintf(&b, "-%d", m.Channel()+1)
	switch {
	case m.Incr:
		b.WriteByte('~')
	case m.Swap:
		b.WriteByte('\'')
	case m.Change:
		b.WriteByte('?')
	}
	if m.Feedback {
		b.WriteByte('!')
	}
	return b.String()
}

// FormatSteps renders a discrete step list, runs of equal values are
// compressed with the ":n" notation.
func FormatSteps(steps []int) string {
	parts := make([]string, 0, len(steps))
	for i := 0; i < len(steps); {
		j := i
		for j < len(steps) && steps[j] == steps[i] {
			j++
		}
		if j-i > 1 {
			parts = append(parts, fmt.Sprintf("%d:%d", steps[i], j-i))
		} else {
			parts = append(parts, fmt.Sprintf("%d", steps[i]))
		}
		i = j
	}
	return "{" + strings.Join(parts, ",") + "}"
}

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gethiox/midizap/internal/pkg/midi"
	"github.com/gethiox/midizap/internal/pkg/stroke"
	"github.com/gethiox/midizap/internal/pkg/translation"
)

var (
	ErrBadMessage = errors.New("bad MIDI message")
	ErrBadChannel = errors.New("bad MIDI channel")
	ErrBadSteps   = errors.New("bad step list")
)

const maxStepValue = midi.PitchBendMax

// message is a parsed MIDI token, either side of a binding.
type message struct {
	Shift     int // translation.AnyShift without prefix
	HasShift  bool
	Recursive bool

	Name   string // lowercase message name: note, kp, cc, pc, pb, cp, ch
	Status uint8  // message type and channel, 0 for ch
	Data   uint8
	// Chan is the value of a ch token, 0-based.
	Chan uint8

	Brackets bool // [] or [n]
	Step     int  // n of [n], 0 for []
	Braces   bool
	Steps    []int

	Flag     byte
	Feedback bool
}

func (m message) Type() uint8 {
	return m.Status & 0xf0
}

func (m message) Channel() uint8 {
	return m.Status & 0x0f
}

func badMessage(tok, format string, args ...interface{}) error {
	return fmt.Errorf("%w %q: %s", ErrBadMessage, tok, fmt.Sprintf(format, args...))
}

// number reads a decimal number at the start of s.
func number(s string) (int, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i > 6 {
		return 0, s, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, s, false
	}
	return n, s[i:], true
}

func parseShift(tok string) (shift int, rest string, ok bool, err error) {
	idx := strings.IndexByte(tok, '^')
	if idx < 0 {
		return translation.AnyShift, tok, false, nil
	}
	prefix, rest := tok[:idx], tok[idx+1:]
	if prefix == "" {
		return 1, rest, true, nil
	}
	n, tail, ok := number(prefix)
	if !ok || tail != "" || n >= translation.Shifts {
		return 0, "", false, fmt.Errorf("%w: %q", translation.ErrBadShift, prefix)
	}
	return n, rest, true, nil
}

// parseMessage parses a MIDI token. ch is the default channel of tokens
// without a channel suffix, octave the MIDI_OCTAVE offset. Only syntax is
// checked here, whether a token fits its position in a binding is up to
// the caller.
func parseMessage(tok string, ch uint8, octave int) (message, error) {
	m := message{Shift: translation.AnyShift}

	shift, s, hasShift, err := parseShift(tok)
	if err != nil {
		return m, err
	}
	m.Shift, m.HasShift = shift, hasShift

	if strings.HasPrefix(s, "$") {
		m.Recursive = true
		s = s[1:]
	}

	lower := strings.ToLower(s)
	var data int
	switch {
	case strings.HasPrefix(lower, "kp:"):
		m.Name = "kp"
		n, rest, err := parseNote(tok, s[3:], octave)
		if err != nil {
			return m, err
		}
		data, s = n, rest
	case strings.HasPrefix(lower, "cc"), strings.HasPrefix(lower, "pc"), strings.HasPrefix(lower, "ch"):
		m.Name = lower[:2]
		n, rest, ok := number(s[2:])
		if !ok {
			return m, badMessage(tok, "%s needs a number", strings.ToUpper(m.Name))
		}
		data, s = n, rest
	case strings.HasPrefix(lower, "pb"), strings.HasPrefix(lower, "cp"):
		m.Name = lower[:2]
		s = s[2:]
		if len(s) > 0 && s[0] >= '0' && s[0] <= '9' {
			return m, badMessage(tok, "%s takes no number", strings.ToUpper(m.Name))
		}
	default:
		m.Name = "note"
		n, rest, err := parseNote(tok, s, octave)
		if err != nil {
			return m, err
		}
		data, s = n, rest
	}

	if m.Name == "ch" {
		if data < 1 || data > 16 {
			return m, fmt.Errorf("%w: %q", ErrBadChannel, tok)
		}
		if s != "" {
			return m, badMessage(tok, "trailing %q", s)
		}
		m.Chan = uint8(data - 1)
		return m, nil
	}
	if data > midi.DataMax {
		return m, badMessage(tok, "%d out of range", data)
	}

	switch {
	case strings.HasPrefix(s, "["):
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return m, badMessage(tok, "missing ]")
		}
		m.Brackets = true
		if inner := s[1:end]; inner != "" {
			n, tail, ok := number(inner)
			if !ok || tail != "" {
				return m, badMessage(tok, "bad step %q", inner)
			}
			if n < 1 {
				return m, badMessage(tok, "step must be positive")
			}
			m.Step = n
		}
		s = s[end+1:]
	case strings.HasPrefix(s, "{"):
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return m, badMessage(tok, "missing }")
		}
		steps, err := parseSteps(s[1:end])
		if err != nil {
			return m, fmt.Errorf("%q: %w", tok, err)
		}
		m.Braces, m.Steps = true, steps
		s = s[end+1:]
	}

	if len(s) > 1 && s[0] == '-' && s[1] >= '0' && s[1] <= '9' {
		n, rest, _ := number(s[1:])
		if n < 1 || n > 16 {
			return m, fmt.Errorf("%w: %q", ErrBadChannel, tok)
		}
		ch = uint8(n - 1)
		s = rest
	}

	if s != "" && strings.IndexByte("+-=<>~'?", s[0]) >= 0 {
		m.Flag = s[0]
		s = s[1:]
	}
	if strings.HasPrefix(s, "!") {
		m.Feedback = true
		s = s[1:]
	}
	if s != "" {
		return m, badMessage(tok, "trailing %q", s)
	}

	switch m.Name {
	case "note":
		m.Status = midi.NoteOn
	case "kp":
		m.Status = midi.PolyphonicKeyPressure
	case "cc":
		m.Status = midi.ControlChange
	case "pc":
		m.Status = midi.ProgramChange
	case "pb":
		m.Status = midi.PitchWheelChange
	case "cp":
		m.Status = midi.ChannelPressure
	}
	m.Status |= ch
	m.Data = uint8(data)
	return m, nil
}

// parseNote reads a note name like "C5", "f#3" or "Bb4" from the start of s.
func parseNote(tok, s string, octave int) (int, string, error) {
	if s == "" {
		return 0, s, badMessage(tok, "missing note")
	}
	letter := s[0]
	s = s[1:]
	var accidental byte
	if len(s) > 0 && (s[0] == '#' || s[0] == 'b' || s[0] == 'B') {
		accidental = s[0]
		s = s[1:]
	}
	// a minus right after the note name is the octave sign, the channel
	// suffix can only follow the octave number
	sign := 1
	if len(s) > 1 && s[0] == '-' && s[1] >= '0' && s[1] <= '9' {
		sign = -1
		s = s[1:]
	}
	n, rest, ok := number(s)
	if !ok {
		return 0, s, badMessage(tok, "missing octave")
	}
	note, err := midi.NoteNumber(letter, accidental, sign*n, octave)
	if err != nil {
		return 0, s, badMessage(tok, "%s", err)
	}
	if note < 0 || note > midi.DataMax {
		return 0, s, badMessage(tok, "note %d out of range", note)
	}
	return note, rest, nil
}

// parseSteps expands a step list: "1,5,10", "0:3" (0 three times), "0-5"
// (0 to 5) and "5-0" (5 down to 0) items, comma separated.
func parseSteps(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadSteps)
	}
	var out []int
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		v, rest, ok := number(item)
		if !ok || v > maxStepValue {
			return nil, fmt.Errorf("%w: %q", ErrBadSteps, item)
		}
		switch {
		case rest == "":
			out = append(out, v)
		case rest[0] == ':':
			count, tail, ok := number(rest[1:])
			if !ok || tail != "" || count < 1 || count > maxStepValue {
				return nil, fmt.Errorf("%w: %q", ErrBadSteps, item)
			}
			for i := 0; i < count; i++ {
				out = append(out, v)
			}
		case rest[0] == '-':
			to, tail, ok := number(rest[1:])
			if !ok || tail != "" || to > maxStepValue {
				return nil, fmt.Errorf("%w: %q", ErrBadSteps, item)
			}
			dir := 1
			if to < v {
				dir = -1
			}
			for x := v; ; x += dir {
				out = append(out, x)
				if x == to {
					break
				}
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrBadSteps, item)
		}
	}
	return out, nil
}

// output converts a parsed output token into a stroke message.
func (m message) output() stroke.Message {
	return stroke.Message{
		Status:    m.Status,
		Data:      m.Data,
		Step:      m.Step,
		Steps:     m.Steps,
		Swap:      m.Flag == '\'',
		Change:    m.Flag == '?',
		Incr:      m.Flag == '~',
		Recursive: m.Recursive,
		Feedback:  m.Feedback,
	}
}

package midi

import (
	"fmt"
)

const (
	// message types
	NoteOff               uint8 = 0b1000 << 4
	NoteOn                uint8 = 0b1001 << 4
	PolyphonicKeyPressure uint8 = 0b1010 << 4 // After-touch
	ControlChange         uint8 = 0b1011 << 4
	ProgramChange         uint8 = 0b1100 << 4
	ChannelPressure       uint8 = 0b1101 << 4 // After-touch
	PitchWheelChange      uint8 = 0b1110 << 4
	System                uint8 = 0b1111 << 4
)

const (
	// PitchBendCenter is the 14-bit "no bend" value.
	PitchBendCenter = 8192
	PitchBendMax    = 16383
	DataMax         = 127
)

type Event []byte

func (e Event) Type() uint8 {
	return e[0] & 0b11110000
}

func (e Event) Channel() uint8 {
	return e[0] & 0b1111
}

// Data returns the first data byte, zero for messages without one.
func (e Event) Data() uint8 {
	if len(e) < 2 {
		return 0
	}
	return e[1]
}

// Value returns the value carried by the message: the second data byte for
// notes, key pressure and control changes, the first data byte for channel
// pressure and program change, and the 14-bit bend for pitch bend.
func (e Event) Value() int {
	switch e.Type() {
	case PitchWheelChange:
		if len(e) < 3 {
			return PitchBendCenter
		}
		return int(e[2])<<7 | int(e[1])
	case ChannelPressure, ProgramChange:
		return int(e.Data())
	default:
		if len(e) < 3 {
			return 0
		}
		return int(e[2])
	}
}

// Length returns the number of bytes a message with the given status byte
// occupies, 0 for system messages of variable length.
func Length(status uint8) int {
	switch status & 0b11110000 {
	case ProgramChange, ChannelPressure:
		return 2
	case NoteOff, NoteOn, PolyphonicKeyPressure, ControlChange, PitchWheelChange:
		return 3
	}
	switch status {
	case 0xf1, 0xf3:
		return 2
	case 0xf2:
		return 3
	case 0xf6, 0xf8, 0xfa, 0xfb, 0xfc, 0xfe, 0xff:
		return 1
	}
	return 0
}

// IsChannelVoice reports whether e is a complete channel voice message, the only
// kind the translation engine accepts.
func (e Event) IsChannelVoice() bool {
	if len(e) == 0 || len(e) > 3 {
		return false
	}
	if e[0]&0b10000000 == 0 || e[0] >= System {
		return false
	}
	if len(e) != Length(e[0]) {
		return false
	}
	for _, b := range e[1:] {
		if b > DataMax {
			return false
		}
	}
	return true
}

// Normalize turns a note-off into a note-on with zero velocity, every other
// message is returned as a copy.
func Normalize(e Event) Event {
	n := make(Event, len(e))
	copy(n, e)
	if n.Type() == NoteOff && len(n) == 3 {
		n[0] = NoteOn | n.Channel()
		n[2] = 0
	}
	return n
}

func (e Event) String() string {
	if len(e) == 0 {
		return fmt.Sprintf("Warning: empty Midi event, it should be not emitted")
	}
	channel := e[0]&0b1111 + 1
	switch x := e[0] & 0b11110000; x {
	case NoteOff:
		return fmt.Sprintf("Note Off: %s (channel: %2d, velocity: %3d)", noteToString(e.Data()), channel, e.Value())
	case NoteOn:
		return fmt.Sprintf("Note On : %s (channel: %2d, velocity: %3d)", noteToString(e.Data()), channel, e.Value())
	case PolyphonicKeyPressure:
		return fmt.Sprintf("Polyphonic Key Pressure: %s (channel: %2d, pressure: %3d)", noteToString(e.Data()), channel, e.Value())
	case ControlChange:
		var value string
		if len(e) == 3 {
			value = fmt.Sprintf("%3d", e[2])
		} else {
			value = "---"
		}
		return fmt.Sprintf("Control Change: %3d, value: %s (channel: %2d)", e.Data(), value, channel)
	case ProgramChange:
		return fmt.Sprintf("Program Change: %3d (channel: %2d)", e.Data(), channel)
	case ChannelPressure:
		return fmt.Sprintf("Channel Pressure: %3d (channel: %2d)", e.Data(), channel)
	case PitchWheelChange:
		val := float64(e.Value()-PitchBendCenter) / PitchBendCenter
		return fmt.Sprintf("Pitch Bend: %4.0f%% (channel: %2d)", val*100, channel)
	default:
		msg := "System message: "
		for _, v := range e {
			msg += fmt.Sprintf("0x%02x ", v)
		}
		return msg[:len(msg)-1]
	}
}

func NoteEvent(messageType, channel, note, velocity uint8) Event {
	return Event{messageType | channel, note, velocity}
}

func ControlChangeEvent(channel, function, value uint8) Event {
	return Event{ControlChange | channel, function, value}
}

func KeyPressureEvent(channel, note, pressure uint8) Event {
	return Event{PolyphonicKeyPressure | channel, note, pressure}
}

func ProgramChangeEvent(channel, program uint8) Event {
	return Event{ProgramChange | channel, program}
}

func ChannelPressureEvent(channel, pressure uint8) Event {
	return Event{ChannelPressure | channel, pressure}
}

// PitchBendEvent accepts a 14-bit value, 8192 being the center
func PitchBendEvent(channel uint8, val int) Event {
	if val < 0 {
		val = 0
	}
	if val > PitchBendMax {
		val = PitchBendMax
	}
	return Event{PitchWheelChange | channel, uint8(val & 0b01111111), uint8(val >> 7)}
}

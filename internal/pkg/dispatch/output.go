package dispatch

import (
	"github.com/gethiox/midizap/internal/pkg/midi"
	"github.com/gethiox/midizap/internal/pkg/stroke"
)

const (
	defaultPitchBendDelta = 128
	maxSignBitDelta       = 63
)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxValue(status uint8) int {
	if status == midi.PitchWheelChange {
		return midi.PitchBendMax
	}
	return midi.DataMax
}

func event(status, ch, data uint8, value int) midi.Event {
	switch status {
	case midi.NoteOn:
		return midi.NoteEvent(midi.NoteOn, ch, data, uint8(value))
	case midi.ControlChange:
		return midi.ControlChangeEvent(ch, data, uint8(value))
	case midi.PolyphonicKeyPressure:
		return midi.KeyPressureEvent(ch, data, uint8(value))
	case midi.ChannelPressure:
		return midi.ChannelPressureEvent(ch, uint8(value))
	case midi.PitchWheelChange:
		return midi.PitchBendEvent(ch, value)
	default:
		return midi.ProgramChangeEvent(ch, data)
	}
}

// keyEvents builds the message of a stroke bound to an on/off entry. On
// sends the step value, 127 (16383 for pitch bend) without one, off sends
// zero or the pitch bend center. Program changes ignore the phase.
func keyEvents(m stroke.Message, on bool) []midi.Event {
	status := m.Type()
	value := 0
	if status == midi.PitchWheelChange {
		value = midi.PitchBendCenter
	}
	if on {
		value = maxValue(status)
		if m.Step > 0 {
			value = clamp(m.Step, 0, value)
		}
	}
	return []midi.Event{event(status, m.Channel(), m.Data, value)}
}

// modEvent builds the message of a stroke bound to a mod entry from the
// decomposed input value. ok is false when the result is out of range.
func modEvent(m stroke.Message, q, r int) (midi.Event, bool) {
	offset, v := q, r
	if m.Swap {
		offset, v = r, q
	}

	status := m.Type()
	var value int
	switch {
	case len(m.Steps) > 0:
		value = m.Steps[clamp(v, 0, len(m.Steps)-1)]
	case m.Step > 0:
		value = v * m.Step
	default:
		value = v
	}
	value = clamp(value, 0, maxValue(status))

	data := int(m.Data)
	switch status {
	case midi.PitchWheelChange, midi.ChannelPressure:
	case midi.ProgramChange:
		data += value
	default:
		data += offset
	}
	if data > midi.DataMax {
		return nil, false
	}
	return event(status, m.Channel(), uint8(data), value), true
}

// stepEvents builds the messages of a stroke bound to a step entry. Value
// carrying messages move their last sent value by the step size, sign-bit
// output sends the step itself with bit 6 marking an increase.
func (d *Dispatcher) stepEvents(m stroke.Message, port int, up bool) []midi.Event {
	status, ch := m.Type(), m.Channel()
	switch status {
	case midi.NoteOn:
		velocity := midi.DataMax
		if m.Step > 0 {
			velocity = clamp(m.Step, 0, midi.DataMax)
		}
		return []midi.Event{
			midi.NoteEvent(midi.NoteOn, ch, m.Data, uint8(velocity)),
			midi.NoteEvent(midi.NoteOn, ch, m.Data, 0),
		}
	case midi.ProgramChange:
		return []midi.Event{midi.ProgramChangeEvent(ch, m.Data)}
	}

	if m.Incr {
		delta := 1
		if m.Step > 0 {
			delta = clamp(m.Step, 1, maxSignBitDelta)
		}
		if up {
			delta += 64
		}
		return []midi.Event{midi.ControlChangeEvent(ch, m.Data, uint8(delta))}
	}

	delta := 1
	if status == midi.PitchWheelChange {
		delta = defaultPitchBendDelta
	}
	if m.Step > 0 {
		delta = m.Step
	}
	if !up {
		delta = -delta
	}

	k := outKey{port: uint8(port), status: status, ch: ch, data: m.Data}
	if status == midi.PitchWheelChange || status == midi.ChannelPressure {
		k.data = 0
	}
	last, ok := d.outValues[k]
	if !ok && status == midi.PitchWheelChange {
		last = midi.PitchBendCenter
	}
	value := clamp(last+delta, 0, maxValue(status))
	if ok && value == last {
		return nil
	}
	d.outValues[k] = value
	return []midi.Event{event(status, ch, m.Data, value)}
}

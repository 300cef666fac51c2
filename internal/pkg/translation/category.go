package translation

import (
	"github.com/gethiox/midizap/internal/pkg/midi"
)

// Category selects one of the per-message-type entry collections of a shift
// level. Every absolute category is followed by its step counterpart, except
// program change which has none.
type Category uint8

const (
	Note Category = iota
	NoteStep
	PC
	CC
	CCStep
	PB
	PBStep
	KP
	KPStep
	CP
	CPStep

	NumCategories
)

var categoryNames = [NumCategories]string{
	Note:     "note",
	NoteStep: "note-step",
	PC:       "pc",
	CC:       "cc",
	CCStep:   "cc-step",
	PB:       "pb",
	PBStep:   "pb-step",
	KP:       "kp",
	KPStep:   "kp-step",
	CP:       "cp",
	CPStep:   "cp-step",
}

func (c Category) String() string {
	if c >= NumCategories {
		return "unknown"
	}
	return categoryNames[c]
}

func (c Category) IsStep() bool {
	switch c {
	case NoteStep, CCStep, PBStep, KPStep, CPStep:
		return true
	}
	return false
}

// Absolute returns the absolute category a step category belongs to.
func (c Category) Absolute() Category {
	if c.IsStep() {
		return c - 1
	}
	return c
}

// Step returns the step counterpart of an absolute category, ok is false for
// program change.
func (c Category) Step() (Category, bool) {
	switch c {
	case Note, CC, PB, KP, CP:
		return c + 1, true
	case NoteStep, CCStep, PBStep, KPStep, CPStep:
		return c, true
	}
	return c, false
}

// Status returns the MIDI message type of the category.
func (c Category) Status() uint8 {
	switch c.Absolute() {
	case Note:
		return midi.NoteOn
	case PC:
		return midi.ProgramChange
	case CC:
		return midi.ControlChange
	case PB:
		return midi.PitchWheelChange
	case KP:
		return midi.PolyphonicKeyPressure
	default:
		return midi.ChannelPressure
	}
}

// HasData reports whether entries are keyed by a data byte, pitch bend and
// channel pressure entries only have a channel.
func (c Category) HasData() bool {
	switch c.Absolute() {
	case PB, CP:
		return false
	}
	return true
}

// Range is the number of distinct input values.
func (c Category) Range() int {
	if c.Absolute() == PB {
		return midi.PitchBendMax + 1
	}
	return midi.DataMax + 1
}

// Off is the input value meaning "released".
func (c Category) Off() int {
	if c.Absolute() == PB {
		return midi.PitchBendCenter
	}
	return 0
}

// CategoryOf maps a message type to its absolute category.
func CategoryOf(status uint8) (Category, bool) {
	switch status & 0xf0 {
	case midi.NoteOn, midi.NoteOff:
		return Note, true
	case midi.ProgramChange:
		return PC, true
	case midi.ControlChange:
		return CC, true
	case midi.PitchWheelChange:
		return PB, true
	case midi.PolyphonicKeyPressure:
		return KP, true
	case midi.ChannelPressure:
		return CP, true
	}
	return 0, false
}

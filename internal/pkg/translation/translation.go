package translation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/gethiox/midizap/internal/pkg/midi"
	"github.com/gethiox/midizap/internal/pkg/stroke"
)

// Shifts is the number of shift levels, level 0 is the unshifted state.
const Shifts = 5

// AnyShift addresses the staging table of bindings without a shift prefix.
const AnyShift = -1

// entries are searched linearly below this count
const linearLimit = 16

var (
	ErrRedefined  = errors.New("can't redefine message")
	ErrMixedKinds = errors.New("incompatible with existing binding")
	ErrBadShift   = errors.New("invalid shift level")
)

// Kind tells how an entry reacts to incoming values.
type Kind uint8

const (
	OnOff   Kind = iota // press and release lists
	Mod                 // value decomposition, one list
	Linear              // step on absolute value changes, decrease/increase lists
	SignBit             // relative sign-bit encoded input, CC only
)

func (k Kind) String() string {
	switch k {
	case OnOff:
		return "on/off"
	case Mod:
		return "mod"
	case Linear:
		return "incremental"
	default:
		return "sign-bit incremental"
	}
}

// Entry holds the bindings of one (channel, data) pair in one category and
// shift level. Absolute entries use slot 0 for press and slot 1 for release,
// step entries use slot 0 for decrease and slot 1 for increase.
type Entry struct {
	Channel uint8
	Data    uint8
	Kind    Kind

	Lists     [2]stroke.Handle
	Bound     [2]bool
	Steps     [2]int
	StepLists [2][]int

	// Mod is the modulus of a mod entry. A quantized mod entry has Mod 0 and
	// its value list in StepLists[0].
	Mod int
	// AnyShift marks entries copied from a binding without shift prefix.
	AnyShift bool
}

// PitchBendStep is the default input step of incremental pitch bend bindings,
// roughly 7 steps in either direction.
const PitchBendStep = 1170

// Step returns the input step size of a slot, falling back to the default of
// the category.
func (e *Entry) Step(cat Category, index int) int {
	if e.Steps[index] > 0 {
		return e.Steps[index]
	}
	if cat.Absolute() == PB {
		return PitchBendStep
	}
	return 1
}

// Claimed reports whether any slot of the entry is bound.
func (e *Entry) Claimed() bool {
	return e.Bound[0] || e.Bound[1]
}

func less(a *Entry, ch, data uint8) bool {
	if a.Channel != ch {
		return a.Channel < ch
	}
	return a.Data < data
}

// Table is the entry collection of one shift level.
type Table struct {
	entries [NumCategories][]*Entry
	sorted  bool
}

func (t *Table) find(cat Category, ch, data uint8) *Entry {
	list := t.entries[cat]
	if !t.sorted || len(list) < linearLimit {
		for _, e := range list {
			if e.Channel == ch && e.Data == data {
				return e
			}
		}
		return nil
	}
	i := sort.Search(len(list), func(i int) bool {
		return !less(list[i], ch, data)
	})
	if i < len(list) && list[i].Channel == ch && list[i].Data == data {
		return list[i]
	}
	return nil
}

func (t *Table) add(cat Category, e *Entry) {
	t.entries[cat] = append(t.entries[cat], e)
	t.sorted = false
}

func (t *Table) finish() {
	for cat := range t.entries {
		list := t.entries[cat]
		sort.SliceStable(list, func(i, j int) bool {
			return less(list[i], list[j].Channel, list[j].Data)
		})
		t.entries[cat] = list[:len(list):len(list)]
	}
	t.sorted = true
}

// Entries returns the entries of a category, sorted once the table is finished.
func (t *Table) Entries(cat Category) []*Entry {
	return t.entries[cat]
}

func (t *Table) Len() int {
	var n int
	for _, list := range t.entries {
		n += len(list)
	}
	return n
}

type DefaultKind uint8

const (
	NotDefault DefaultKind = iota
	Generic                // empty regex
	MIDIPort1              // [MIDI]
	MIDIPort2              // [MIDI2]
)

type MatchMode uint8

const (
	MatchEither MatchMode = iota // class first, then title
	MatchTitle
	MatchClass
)

// Translation is one named section of a configuration.
type Translation struct {
	Name    string
	Default DefaultKind
	Regex   *regexp.Regexp
	Mode    MatchMode
	// Port is the MIDI input a port default applies to.
	Port int
	// Passthrough forwards unmatched messages of an input port while this
	// section is a candidate.
	Passthrough [2]bool

	Levels [Shifts]Table
	any    Table
	arena  *stroke.Arena
}

func New(name string, arena *stroke.Arena) *Translation {
	return &Translation{Name: name, arena: arena}
}

func (t *Translation) Arena() *stroke.Arena {
	return t.arena
}

func (t *Translation) table(shift int) (*Table, error) {
	if shift == AnyShift {
		return &t.any, nil
	}
	if shift < 0 || shift >= Shifts {
		return nil, fmt.Errorf("%w: %d", ErrBadShift, shift)
	}
	return &t.Levels[shift], nil
}

// FindOrCreate returns the entry for (channel, data) in the given category and
// shift level, allocating it on first use, and claims the slot index for a
// binding of the given kind. Claiming an already bound slot fails with
// ErrRedefined, mixing on/off with mod or linear with sign-bit bindings in
// one entry fails with ErrMixedKinds.
func (t *Translation) FindOrCreate(shift int, cat Category, ch, data uint8, index int, kind Kind) (*Entry, error) {
	tbl, err := t.table(shift)
	if err != nil {
		return nil, err
	}
	if !cat.HasData() {
		data = 0
	}
	e := tbl.find(cat, ch, data)
	if e == nil {
		e = &Entry{Channel: ch, Data: data, Kind: kind}
		tbl.add(cat, e)
	} else if e.Kind != kind {
		return nil, fmt.Errorf("%w: %s binding exists", ErrMixedKinds, e.Kind)
	}
	if e.Bound[index] {
		return nil, ErrRedefined
	}
	e.Bound[index] = true
	return e, nil
}

// Peek returns the entry for (channel, data) in a table under construction,
// AnyShift included, without allocating.
func (t *Translation) Peek(shift int, cat Category, ch, data uint8) *Entry {
	tbl, err := t.table(shift)
	if err != nil {
		return nil
	}
	if !cat.HasData() {
		data = 0
	}
	return tbl.find(cat, ch, data)
}

// Lookup returns the entry for (channel, data), nil when unbound.
func (t *Translation) Lookup(shift int, cat Category, ch, data uint8) *Entry {
	if shift < 0 || shift >= Shifts {
		return nil
	}
	if !cat.HasData() {
		data = 0
	}
	return t.Levels[shift].find(cat, ch, data)
}

// Finish copies bindings without shift prefix into every shift level that has
// no entry of its own for the same (channel, data), then sorts all
// categories for binary search.
func (t *Translation) Finish() {
	for cat := Category(0); cat < NumCategories; cat++ {
		for _, src := range t.any.entries[cat] {
			for level := range t.Levels {
				tbl := &t.Levels[level]
				if tbl.find(cat, src.Channel, src.Data) != nil {
					continue
				}
				tbl.add(cat, t.copyEntry(src))
			}
		}
	}
	t.any = Table{}
	for level := range t.Levels {
		t.Levels[level].finish()
	}
}

func (t *Translation) copyEntry(src *Entry) *Entry {
	e := *src
	e.AnyShift = true
	for i := range e.Lists {
		e.Lists[i] = t.arena.Copy(src.Lists[i])
		if src.StepLists[i] != nil {
			e.StepLists[i] = append([]int(nil), src.StepLists[i]...)
		}
	}
	return &e
}

// Matches reports whether a window with the given title and class selects
// this section. Defaults never match.
func (t *Translation) Matches(title, class string) bool {
	if t.Default != NotDefault || t.Regex == nil {
		return false
	}
	switch t.Mode {
	case MatchTitle:
		return t.Regex.MatchString(title)
	case MatchClass:
		return t.Regex.MatchString(class)
	default:
		if class != "" && t.Regex.MatchString(class) {
			return true
		}
		return t.Regex.MatchString(title)
	}
}

// ShiftPrefix renders the shift prefix of a binding.
func ShiftPrefix(shift int, anyShift bool) string {
	switch {
	case anyShift || shift == AnyShift:
		return ""
	case shift == 1:
		return "^"
	default:
		return fmt.Sprintf("%d^", shift)
	}
}

// Token renders the left hand side of the binding behind one slot of an
// entry, octave is the MIDI_OCTAVE offset.
func (e *Entry) Token(cat Category, shift, index, octave int) string {
	name := ShiftPrefix(shift, e.AnyShift)
	switch cat.Absolute() {
	case Note:
		name += midi.NoteName(e.Data, octave)
	case KP:
		name += "KP:" + midi.NoteName(e.Data, octave)
	case CC:
		name += fmt.Sprintf("CC%d", e.Data)
	case PC:
		name += fmt.Sprintf("PC%d", e.Data)
	case PB:
		name += "PB"
	case CP:
		name += "CP"
	}
	switch {
	case e.Kind == Mod && e.StepLists[0] != nil:
		name += stroke.FormatSteps(e.StepLists[0])
	case e.Kind == Mod && e.Mod == cat.Range():
		name += "[]"
	case e.Kind == Mod:
		name += fmt.Sprintf("[%d]", e.Mod)
	case cat.IsStep() && e.Steps[index] > 0:
		name += fmt.Sprintf("[%d]", e.Steps[index])
	}
	name += fmt.Sprintf("-%d", e.Channel+1)
	switch e.Kind {
	case Linear:
		if index == 0 {
			name += "-"
		} else {
			name += "+"
		}
	case SignBit:
		if index == 0 {
			name += "<"
		} else {
			name += ">"
		}
	}
	return name
}

package stroke

import (
	"strings"

	"github.com/gethiox/midizap/internal/pkg/input"
	"github.com/gethiox/midizap/internal/pkg/midi"
)

// Arena owns all strokes of one compiled configuration. It is append only,
// dropping the arena releases every list at once.
type Arena struct {
	strokes []Stroke
}

func NewArena() *Arena {
	// index 0 is reserved for Nil
	return &Arena{strokes: make([]Stroke, 1, 256)}
}

func (a *Arena) Get(h Handle) *Stroke {
	if h == Nil || int(h) >= len(a.strokes) {
		return nil
	}
	return &a.strokes[h]
}

// Len returns the number of strokes allocated so far.
func (a *Arena) Len() int {
	return len(a.strokes) - 1
}

// List is a list under construction, Head is what table entries keep.
type List struct {
	Head Handle
	Tail Handle
}

func (a *Arena) Append(l *List, s Stroke) Handle {
	s.Next = Nil
	a.strokes = append(a.strokes, s)
	h := Handle(len(a.strokes) - 1)
	if l.Head == Nil {
		l.Head = h
	} else {
		a.strokes[l.Tail].Next = h
	}
	l.Tail = h
	return h
}

// Handles returns the handles of a list in order.
func (a *Arena) Handles(head Handle) []Handle {
	var out []Handle
	for h := head; h != Nil; h = a.strokes[h].Next {
		out = append(out, h)
	}
	return out
}

// Strokes returns copies of the strokes of a list in order.
func (a *Arena) Strokes(head Handle) []Stroke {
	var out []Stroke
	for h := head; h != Nil; h = a.strokes[h].Next {
		s := a.strokes[h]
		s.Next = Nil
		out = append(out, s)
	}
	return out
}

// Copy duplicates a list, the copy shares no strokes with the original.
func (a *Arena) Copy(head Handle) Handle {
	var l List
	for h := head; h != Nil; h = a.strokes[h].Next {
		s := a.strokes[h]
		if s.Msg.Steps != nil {
			s.Msg.Steps = append([]int(nil), s.Msg.Steps...)
		}
		a.Append(&l, s)
	}
	return l.Head
}

// Equal reports whether two lists hold the same strokes in the same order.
func (a *Arena) Equal(x, y Handle) bool {
	xs, ys := a.Strokes(x), a.Strokes(y)
	if len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if !equalStroke(xs[i], ys[i]) {
			return false
		}
	}
	return true
}

func equalStroke(x, y Stroke) bool {
	if x.Kind != y.Kind || x.Key != y.Key || x.Press != y.Press || x.Level != y.Level {
		return false
	}
	return EqualMessage(x.Msg, y.Msg)
}

func EqualMessage(x, y Message) bool {
	if len(x.Steps) != len(y.Steps) {
		return false
	}
	for i := range x.Steps {
		if x.Steps[i] != y.Steps[i] {
			return false
		}
	}
	return x.Status == y.Status && x.Data == y.Data && x.Step == y.Step &&
		x.Swap == y.Swap && x.Change == y.Change && x.Incr == y.Incr &&
		x.Recursive == y.Recursive && x.Feedback == y.Feedback
}

// Format renders a whole list, strokes separated by spaces.
func (a *Arena) Format(head Handle, octave int) string {
	var parts []string
	for h := head; h != Nil; h = a.strokes[h].Next {
		parts = append(parts, a.strokes[h].Format(octave))
	}
	return strings.Join(parts, " ")
}

// Builder appends to the list currently under construction.
type Builder struct {
	arena *Arena
	list  *List

	// Press is set while building the press list of an on/off binding, MIDI
	// strokes appended then are marked dirty.
	Press bool
	// HasMIDI is set once any MIDI stroke was appended.
	HasMIDI bool
}

func (a *Arena) Builder(l *List) *Builder {
	return &Builder{arena: a, list: l}
}

func (b *Builder) Arena() *Arena {
	return b.arena
}

// Switch redirects subsequent appends to another list.
func (b *Builder) Switch(l *List) {
	b.list = l
}

func (b *Builder) List() *List {
	return b.list
}

func (b *Builder) AppendKey(k input.Key, press bool) Handle {
	return b.arena.Append(b.list, Stroke{Kind: Key, Key: k, Press: press})
}

func (b *Builder) AppendShift(level int) Handle {
	return b.arena.Append(b.list, Stroke{Kind: Shift, Level: level})
}

func (b *Builder) AppendNop() Handle {
	return b.arena.Append(b.list, Stroke{Kind: Nop})
}

func (b *Builder) AppendMIDI(m Message) Handle {
	b.HasMIDI = true
	dirty := b.Press && m.Type() != midi.ProgramChange
	return b.arena.Append(b.list, Stroke{Kind: MIDI, Msg: m, Dirty: dirty})
}

package translation

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/gethiox/midizap/internal/pkg/stroke"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func nop(a *stroke.Arena) stroke.Handle {
	var l stroke.List
	a.Builder(&l).AppendNop()
	return l.Head
}

func TestFindOrCreate(t *testing.T) {
	tr := New("test", stroke.NewArena())

	e, err := tr.FindOrCreate(0, CC, 0, 7, 0, OnOff)
	require.Nil(t, err)
	assert.Equal(t, uint8(7), e.Data)

	again, err := tr.FindOrCreate(0, CC, 0, 7, 1, OnOff)
	require.Nil(t, err)
	assert.Same(t, e, again)

	_, err = tr.FindOrCreate(0, CC, 0, 7, 0, OnOff)
	assert.True(t, errors.Is(err, ErrRedefined))

	_, err = tr.FindOrCreate(1, CC, 0, 7, 0, OnOff)
	assert.Nil(t, err, "other shift level is a separate table")

	_, err = tr.FindOrCreate(0, CC, 1, 7, 0, OnOff)
	assert.Nil(t, err, "other channel is a separate entry")

	_, err = tr.FindOrCreate(0, CCStep, 0, 7, 1, Linear)
	assert.Nil(t, err, "absolute and step categories coexist")

	_, err = tr.FindOrCreate(Shifts, CC, 0, 7, 0, OnOff)
	assert.True(t, errors.Is(err, ErrBadShift))
}

func TestFindOrCreateMixedKinds(t *testing.T) {
	for _, tc := range []struct {
		name          string
		cat           Category
		first, second Kind
	}{
		{name: "mod after on/off", cat: CC, first: OnOff, second: Mod},
		{name: "on/off after mod", cat: Note, first: Mod, second: OnOff},
		{name: "sign-bit after linear", cat: CCStep, first: Linear, second: SignBit},
		{name: "linear after sign-bit", cat: CCStep, first: SignBit, second: Linear},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tr := New("test", stroke.NewArena())
			_, err := tr.FindOrCreate(0, tc.cat, 0, 1, 0, tc.first)
			require.Nil(t, err)
			_, err = tr.FindOrCreate(0, tc.cat, 0, 1, 1, tc.second)
			assert.True(t, errors.Is(err, ErrMixedKinds))
		})
	}
}

func TestDatalessCategories(t *testing.T) {
	tr := New("test", stroke.NewArena())
	e, err := tr.FindOrCreate(0, PB, 3, 99, 0, OnOff)
	require.Nil(t, err)
	assert.Equal(t, uint8(0), e.Data)
	tr.Finish()
	assert.Same(t, e, tr.Lookup(0, PB, 3, 42))
}

func TestLookupSorted(t *testing.T) {
	tr := New("test", stroke.NewArena())
	// more than linearLimit entries in reverse order to exercise binary search
	for ch := 3; ch >= 0; ch-- {
		for data := 40; data >= 0; data -= 4 {
			_, err := tr.FindOrCreate(0, Note, uint8(ch), uint8(data), 0, OnOff)
			require.Nil(t, err)
		}
	}
	tr.Finish()

	entries := tr.Levels[0].Entries(Note)
	require.Equal(t, 44, len(entries))
	assert.Equal(t, len(entries), cap(entries))
	for i := 1; i < len(entries); i++ {
		assert.True(t, less(entries[i-1], entries[i].Channel, entries[i].Data))
	}

	for ch := 0; ch < 4; ch++ {
		for data := 0; data <= 40; data++ {
			e := tr.Lookup(0, Note, uint8(ch), uint8(data))
			if data%4 == 0 {
				require.NotNil(t, e, fmt.Sprintf("%d/%d", ch, data))
				assert.Equal(t, uint8(ch), e.Channel)
				assert.Equal(t, uint8(data), e.Data)
			} else {
				assert.Nil(t, e)
			}
		}
	}
	assert.Nil(t, tr.Lookup(0, Note, 5, 0))
	assert.Nil(t, tr.Lookup(-1, Note, 0, 0))
}

func TestFinishAnyShift(t *testing.T) {
	a := stroke.NewArena()
	tr := New("test", a)

	anyEntry, err := tr.FindOrCreate(AnyShift, Note, 0, 60, 0, OnOff)
	require.Nil(t, err)
	anyEntry.Lists[0] = nop(a)

	explicit, err := tr.FindOrCreate(2, Note, 0, 60, 0, OnOff)
	require.Nil(t, err)
	explicit.Lists[0] = nop(a)

	tr.Finish()

	for level := 0; level < Shifts; level++ {
		e := tr.Lookup(level, Note, 0, 60)
		require.NotNil(t, e)
		if level == 2 {
			assert.Same(t, explicit, e, "explicit entry must win")
			assert.False(t, e.AnyShift)
			continue
		}
		assert.True(t, e.AnyShift)
		assert.NotEqual(t, anyEntry.Lists[0], e.Lists[0], "lists are copied")
		assert.True(t, a.Equal(anyEntry.Lists[0], e.Lists[0]))
	}
}

func TestMatches(t *testing.T) {
	for _, tc := range []struct {
		name         string
		mode         MatchMode
		def          DefaultKind
		title, class string
		expected     bool
	}{
		{name: "class match", mode: MatchEither, class: "Firefox", title: "x", expected: true},
		{name: "title match", mode: MatchEither, class: "xterm", title: "Firefox", expected: true},
		{name: "no match", mode: MatchEither, class: "xterm", title: "shell", expected: false},
		{name: "title only ignores class", mode: MatchTitle, class: "Firefox", title: "x", expected: false},
		{name: "class only ignores title", mode: MatchClass, class: "x", title: "Firefox", expected: false},
		{name: "defaults never match", def: Generic, class: "Firefox", expected: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tr := New("test", stroke.NewArena())
			tr.Regex = regexp.MustCompile("Firefox")
			tr.Mode = tc.mode
			tr.Default = tc.def
			assert.Equal(t, tc.expected, tr.Matches(tc.title, tc.class))
		})
	}
}

func TestSetCandidates(t *testing.T) {
	a := stroke.NewArena()
	active := New("app", a)
	active.Regex = regexp.MustCompile("app")
	generic := New("Default", a)
	generic.Default = Generic
	port1 := New("MIDI", a)
	port1.Default = MIDIPort1
	port2 := New("MIDI2", a)
	port2.Default = MIDIPort2
	port2.Port = 1

	s := NewSet(a)
	for _, tr := range []*Translation{generic, active, port1, port2} {
		s.Add(tr)
	}

	assert.Same(t, active, s.Match("my app", ""))
	assert.Nil(t, s.Match("other", ""))

	assert.Equal(t, []*Translation{active, port1, generic}, s.Candidates(active, 0))
	assert.Equal(t, []*Translation{active, port2}, s.Candidates(active, 1))
	assert.Equal(t, []*Translation{port1, generic}, s.Candidates(nil, 0))
	assert.Equal(t, []*Translation{port2}, s.Candidates(nil, 1))
}

func TestCategories(t *testing.T) {
	for _, tc := range []struct {
		cat      Category
		status   uint8
		step     Category
		hasStep  bool
		hasData  bool
		rng, off int
	}{
		{cat: Note, status: 0x90, step: NoteStep, hasStep: true, hasData: true, rng: 128},
		{cat: PC, status: 0xc0, step: PC, hasStep: false, hasData: true, rng: 128},
		{cat: CC, status: 0xb0, step: CCStep, hasStep: true, hasData: true, rng: 128},
		{cat: PB, status: 0xe0, step: PBStep, hasStep: true, hasData: false, rng: 16384, off: 8192},
		{cat: KP, status: 0xa0, step: KPStep, hasStep: true, hasData: true, rng: 128},
		{cat: CP, status: 0xd0, step: CPStep, hasStep: true, hasData: false, rng: 128},
	} {
		t.Run(tc.cat.String(), func(t *testing.T) {
			c, ok := CategoryOf(tc.status | 0x03)
			assert.True(t, ok)
			assert.Equal(t, tc.cat, c)
			step, ok := tc.cat.Step()
			assert.Equal(t, tc.hasStep, ok)
			assert.Equal(t, tc.step, step)
			assert.Equal(t, tc.cat, step.Absolute())
			assert.Equal(t, tc.status, step.Status())
			assert.Equal(t, tc.hasData, tc.cat.HasData())
			assert.Equal(t, tc.rng, tc.cat.Range())
			assert.Equal(t, tc.off, tc.cat.Off())
		})
	}
	_, ok := CategoryOf(0xf8)
	assert.False(t, ok)
	c, _ := CategoryOf(0x80)
	assert.Equal(t, Note, c)
}

func TestEntryToken(t *testing.T) {
	for _, tc := range []struct {
		name     string
		cat      Category
		shift    int
		index    int
		entry    Entry
		expected string
	}{
		{name: "note", cat: Note, entry: Entry{Data: 60}, expected: "0^C5-1"},
		{name: "any shift", cat: Note, entry: Entry{Data: 60, AnyShift: true}, expected: "C5-1"},
		{name: "shift 1", cat: CC, shift: 1, entry: Entry{Channel: 1, Data: 7}, expected: "^CC7-2"},
		{name: "shift 3", cat: PC, shift: 3, entry: Entry{Data: 2}, expected: "3^PC2-1"},
		{name: "mod", cat: CC, entry: Entry{Data: 1, Kind: Mod, Mod: 16, AnyShift: true}, expected: "CC1[16]-1"},
		{name: "full range mod", cat: PB, entry: Entry{Kind: Mod, Mod: 16384, AnyShift: true}, expected: "PB[]-1"},
		{name: "quantized", cat: CP, entry: Entry{Kind: Mod, StepLists: [2][]int{{0, 64}}, AnyShift: true}, expected: "CP{0,64}-1"},
		{name: "decrease", cat: CCStep, index: 0, entry: Entry{Data: 7, Kind: Linear, AnyShift: true}, expected: "CC7-1-"},
		{name: "increase with step", cat: PBStep, index: 1, entry: Entry{Kind: Linear, Steps: [2]int{0, 1170}, AnyShift: true}, expected: "PB[1170]-1+"},
		{name: "sign-bit", cat: CCStep, index: 1, entry: Entry{Data: 7, Kind: SignBit, AnyShift: true}, expected: "CC7-1>"},
		{name: "key pressure", cat: KPStep, index: 0, entry: Entry{Data: 61, Kind: Linear, AnyShift: true}, expected: "KP:C#5-1-"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.entry.Token(tc.cat, tc.shift, tc.index, 0))
		})
	}
}

func TestDump(t *testing.T) {
	a := stroke.NewArena()
	tr := New("Test", a)
	tr.Regex = regexp.MustCompile("test")
	e, err := tr.FindOrCreate(AnyShift, CC, 0, 7, 0, OnOff)
	require.Nil(t, err)
	e.Lists[0] = nop(a)
	tr.Finish()

	s := NewSet(a)
	s.Add(tr)

	var buf bytes.Buffer
	require.Nil(t, s.Dump(&buf))

	var out []sectionDump
	require.Nil(t, yaml.Unmarshal(buf.Bytes(), &out))
	require.Equal(t, 1, len(out))
	assert.Equal(t, "Test", out[0].Name)
	assert.Equal(t, "test", out[0].Regex)
	assert.Equal(t, Shifts, len(out[0].Levels))
	assert.Equal(t, "CC7-1", out[0].Levels[0].Bindings[0].Binding)
	assert.Equal(t, "NOP", out[0].Levels[0].Bindings[0].Strokes)
}

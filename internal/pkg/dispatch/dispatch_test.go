package dispatch

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/gethiox/midizap/internal/pkg/config"
	"github.com/gethiox/midizap/internal/pkg/input"
	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/gethiox/midizap/internal/pkg/midi"
	"github.com/gethiox/midizap/internal/pkg/translation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

type keyEvent struct {
	key   input.Key
	press bool
}

type sent struct {
	port int
	ev   midi.Event
}

type recorder struct {
	keys []keyEvent
	sent []sent
}

func (r *recorder) Key(k input.Key, press bool) error {
	r.keys = append(r.keys, keyEvent{key: k, press: press})
	return nil
}

func (r *recorder) Send(port int, ev midi.Event) error {
	r.sent = append(r.sent, sent{port: port, ev: ev})
	return nil
}

func (r *recorder) clear() {
	r.keys, r.sent = nil, nil
}

// staticFocus reports a fixed window and counts resets.
type staticFocus struct {
	title  string
	resets int
}

func (f *staticFocus) Active(_ context.Context, set *translation.Set) *translation.Translation {
	return set.Match(f.title, "")
}

func (f *staticFocus) Reset() {
	f.resets++
}

func compile(t *testing.T, text string) *translation.Set {
	t.Helper()
	res, err := config.Compile(strings.NewReader(text), "test")
	require.Nil(t, err)
	require.Empty(t, res.Errors)
	return res.Set
}

func setup(t *testing.T, text string, opts Options) (*Dispatcher, *recorder, *staticFocus) {
	t.Helper()
	out := &recorder{}
	focus := &staticFocus{}
	d := New(out, focus, opts)
	d.Load(compile(t, text))
	return d, out, focus
}

func keysym(t *testing.T, name string) input.Key {
	t.Helper()
	k, ok := input.LookupKeysym(name)
	require.True(t, ok, name)
	return k
}

// taps lists n press and release pairs of one key.
func taps(t *testing.T, name string, n int) []keyEvent {
	k := keysym(t, name)
	var out []keyEvent
	for i := 0; i < n; i++ {
		out = append(out, keyEvent{key: k, press: true}, keyEvent{key: k, press: false})
	}
	return out
}

func handle(t *testing.T, d *Dispatcher, port int, events ...midi.Event) {
	t.Helper()
	for _, ev := range events {
		require.Nil(t, d.Handle(context.Background(), port, ev))
	}
}

func note(n, velocity uint8) midi.Event {
	return midi.NoteEvent(midi.NoteOn, 0, n, velocity)
}

func cc(n, value uint8) midi.Event {
	return midi.ControlChangeEvent(0, n, value)
}

func TestKeyPressRelease(t *testing.T) {
	d, out, _ := setup(t, "[Default]\nC5 XK_a\n", Options{})
	a := keysym(t, "XK_a")

	handle(t, d, 0, note(60, 100))
	assert.Equal(t, []keyEvent{{key: a, press: true}}, out.keys)

	handle(t, d, 0, note(60, 90))
	assert.Equal(t, 1, len(out.keys), "repeated on is debounced")

	handle(t, d, 0, midi.NoteEvent(midi.NoteOff, 0, 60, 64))
	assert.Equal(t, []keyEvent{{key: a, press: true}, {key: a, press: false}}, out.keys)

	handle(t, d, 0, note(60, 0))
	assert.Equal(t, 2, len(out.keys), "repeated off is debounced")
}

func TestProgramChange(t *testing.T) {
	d, out, _ := setup(t, "[Default]\nPC5 XK_p\n", Options{})
	handle(t, d, 0, midi.ProgramChangeEvent(0, 5), midi.ProgramChangeEvent(0, 5))
	assert.Equal(t, taps(t, "XK_p", 2), out.keys)
}

func TestSignBit(t *testing.T) {
	d, out, _ := setup(t, "[Default]\nCC7< XK_Left\nCC7> XK_Right\n", Options{})

	handle(t, d, 0, cc(7, 3))
	assert.Equal(t, taps(t, "XK_Left", 3), out.keys)

	out.clear()
	handle(t, d, 0, cc(7, 66))
	assert.Equal(t, taps(t, "XK_Right", 2), out.keys)

	out.clear()
	handle(t, d, 0, cc(7, 0), cc(7, 64))
	assert.Empty(t, out.keys)
}

func TestLinear(t *testing.T) {
	d, out, _ := setup(t, "[Default]\nCC1+ XK_Up\nCC1- XK_Down\nCC2[4]= XK_a\n", Options{})

	handle(t, d, 0, cc(1, 5))
	assert.Equal(t, taps(t, "XK_Up", 5), out.keys)

	out.clear()
	handle(t, d, 0, cc(1, 2))
	assert.Equal(t, taps(t, "XK_Down", 3), out.keys)

	for _, tc := range []struct {
		name   string
		values []uint8
	}{
		{name: "rising", values: []uint8{10, 13, 17, 127}},
		{name: "falling", values: []uint8{127, 100, 99, 3, 0}},
		{name: "jitter", values: []uint8{40, 41, 39, 45, 44, 80, 2}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, out, _ := setup(t, "[Default]\nCC2[4]= XK_a\n", Options{})
			last, expected := 0, 0
			for _, v := range tc.values {
				delta := int(v) - last
				if delta < 0 {
					delta = -delta
				}
				expected += delta / 4
				last = int(v)
				handle(t, d, 0, cc(2, v))
			}
			assert.Equal(t, taps(t, "XK_a", expected), out.keys)
		})
	}
}

func TestModOutput(t *testing.T) {
	text := `[Default]
CC1[16] CC2
CC3[16] CC10'
CC5[16] CC20?
CC6{0,64,127} CC30
CC7[] CC8
CC9[2] CC120
PB[] PB
`
	for _, tc := range []struct {
		name     string
		input    midi.Event
		expected []midi.Event
	}{
		{name: "offset and value", input: cc(1, 37), expected: []midi.Event{cc(4, 5)}},
		{name: "swapped", input: cc(3, 37), expected: []midi.Event{cc(15, 2)}},
		{name: "quantized", input: cc(6, 70), expected: []midi.Event{cc(30, 1)}},
		{name: "quantized tie goes low", input: cc(6, 32), expected: []midi.Event{cc(30, 0)}},
		{name: "data overflow dropped", input: cc(9, 127), expected: nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, out, _ := setup(t, text, Options{Ports: 1})
			handle(t, d, 0, tc.input)
			var got []midi.Event
			for _, s := range out.sent {
				got = append(got, s.ev)
			}
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("identity", func(t *testing.T) {
		d, out, _ := setup(t, text, Options{Ports: 1})
		for v := 0; v <= midi.DataMax; v++ {
			handle(t, d, 0, cc(7, uint8(v)))
			require.Equal(t, v+1, len(out.sent))
			assert.Equal(t, cc(8, uint8(v)), out.sent[v].ev)
		}
		out.clear()
		for _, v := range []int{0, 1, 8191, 8192, 12000, midi.PitchBendMax} {
			handle(t, d, 0, midi.PitchBendEvent(0, v))
		}
		require.Equal(t, 6, len(out.sent))
		assert.Equal(t, midi.PitchBendEvent(0, 12000), out.sent[4].ev)
		assert.Equal(t, midi.PitchBendEvent(0, midi.PitchBendMax), out.sent[5].ev)
	})

	t.Run("change suppression", func(t *testing.T) {
		d, out, _ := setup(t, text, Options{Ports: 1})
		handle(t, d, 0, cc(5, 1), cc(5, 1), cc(5, 17), cc(5, 17), cc(5, 1))
		var got []midi.Event
		for _, s := range out.sent {
			got = append(got, s.ev)
		}
		assert.Equal(t, []midi.Event{cc(20, 1), cc(21, 1), cc(20, 1)}, got)
	})
}

func TestIncrementalOutput(t *testing.T) {
	text := `[Default]
CC1= CC2
CC3< CC4~
CC3> CC4~
CC5+ PB
CC6= C5[90]
`
	d, out, _ := setup(t, text, Options{Ports: 1})
	events := func() []midi.Event {
		var got []midi.Event
		for _, s := range out.sent {
			got = append(got, s.ev)
		}
		out.clear()
		return got
	}

	handle(t, d, 0, cc(1, 3), cc(1, 1))
	assert.Equal(t, []midi.Event{cc(2, 1), cc(2, 2), cc(2, 3), cc(2, 2), cc(2, 1)}, events())

	handle(t, d, 0, cc(3, 2), cc(3, 65))
	assert.Equal(t, []midi.Event{cc(4, 1), cc(4, 1), cc(4, 65)}, events())

	handle(t, d, 0, cc(5, 2))
	assert.Equal(t, []midi.Event{
		midi.PitchBendEvent(0, midi.PitchBendCenter+128),
		midi.PitchBendEvent(0, midi.PitchBendCenter+256),
	}, events())

	handle(t, d, 0, cc(6, 1))
	assert.Equal(t, []midi.Event{note(60, 90), note(60, 0)}, events())
}

func TestSectionPrecedence(t *testing.T) {
	text := `[App] app
C5 XK_x
[MIDI]
D5 XK_b
[MIDI2]
E5 XK_c
[Default]
C5 XK_a
D5 XK_d
F5 XK_f
`
	for _, tc := range []struct {
		name     string
		title    string
		port     int
		input    uint8
		expected string
	}{
		{name: "default", title: "other", port: 0, input: 60, expected: "XK_a"},
		{name: "focused section first", title: "app", port: 0, input: 60, expected: "XK_x"},
		{name: "port section before default", title: "app", port: 0, input: 62, expected: "XK_b"},
		{name: "default fallback", title: "app", port: 0, input: 65, expected: "XK_f"},
		{name: "second port section", title: "other", port: 1, input: 64, expected: "XK_c"},
		{name: "first port section not used by second port", title: "other", port: 1, input: 62},
		{name: "default not used by second port", title: "other", port: 1, input: 65},
		{name: "second port section not used by first port", title: "other", port: 0, input: 64},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, out, focus := setup(t, text, Options{})
			focus.title = tc.title
			handle(t, d, tc.port, note(tc.input, 100), note(tc.input, 0))
			if tc.expected == "" {
				assert.Empty(t, out.keys)
				return
			}
			assert.Equal(t, taps(t, tc.expected, 1), out.keys)
		})
	}
}

func TestRecursion(t *testing.T) {
	d, out, _ := setup(t, "[Default]\nC5 $CC1 XK_b\nCC1 XK_a\n", Options{})
	a, b := keysym(t, "XK_a"), keysym(t, "XK_b")

	handle(t, d, 0, note(60, 100), note(60, 0))
	assert.Equal(t, []keyEvent{
		{key: b, press: true},
		{key: a, press: true},
		{key: b, press: false},
		{key: a, press: false},
	}, out.keys)

	d, out, _ = setup(t, "[Default]\nCC1[] $CC1\n", Options{Ports: 1})
	err := d.Handle(context.Background(), 0, cc(1, 5))
	assert.True(t, errors.Is(err, ErrDepthExceeded))
	assert.Empty(t, out.sent)
}

func TestRecursionOrder(t *testing.T) {
	d, out, _ := setup(t, "[Default]\nCC1+ $CC2\nCC2+ XK_a\nCC2- XK_b\n", Options{})
	handle(t, d, 0, cc(1, 3))
	assert.Equal(t, taps(t, "XK_a", 3), out.keys)

	out.clear()
	handle(t, d, 0, cc(1, 5))
	assert.Equal(t, taps(t, "XK_a", 2), out.keys)
}

// Input state is kept while the focused section does not bind the message.
func TestStateFollowsInput(t *testing.T) {
	text := `[A] ^A$
C5 XK_a
CC1+ XK_Up
[B] ^B$
D5 XK_b
`
	a := keysym(t, "XK_a")

	t.Run("on off", func(t *testing.T) {
		d, out, focus := setup(t, text, Options{})
		focus.title = "A"
		handle(t, d, 0, note(60, 100))
		focus.title = "B"
		handle(t, d, 0, note(60, 0))
		focus.title = "A"
		handle(t, d, 0, note(60, 100), note(60, 0))
		assert.Equal(t, []keyEvent{
			{key: a, press: true},
			{key: a, press: true},
			{key: a, press: false},
		}, out.keys)
	})

	t.Run("linear", func(t *testing.T) {
		d, out, focus := setup(t, text, Options{})
		focus.title = "A"
		handle(t, d, 0, cc(1, 10))
		focus.title = "B"
		handle(t, d, 0, cc(1, 60))
		focus.title = "A"
		handle(t, d, 0, cc(1, 61))
		assert.Equal(t, taps(t, "XK_Up", 11), out.keys)
	})
}

func TestReload(t *testing.T) {
	text := "[Default]\nC5 XK_a\nD8 SHIFT\n"
	d, out, focus := setup(t, text, Options{})
	assert.Equal(t, 1, focus.resets)

	handle(t, d, 0, note(60, 100), note(98, 100))
	assert.Equal(t, 1, d.Shift())

	d.Load(compile(t, text))
	assert.Equal(t, 2, focus.resets)
	assert.Equal(t, 0, d.Shift())

	out.clear()
	handle(t, d, 0, note(60, 0))
	assert.Empty(t, out.keys, "release of a key pressed before the reload")
	handle(t, d, 0, note(60, 100))
	assert.Equal(t, []keyEvent{{key: keysym(t, "XK_a"), press: true}}, out.keys)
}

func TestShift(t *testing.T) {
	text := "[Default]\nD8 SHIFT D8!\n^C5 XK_b\nC5 XK_a\n"
	d, out, _ := setup(t, text, Options{Ports: 1})
	d8 := uint8(98)

	handle(t, d, 0, note(60, 100), note(60, 0))
	assert.Equal(t, taps(t, "XK_a", 1), out.keys)

	out.clear()
	handle(t, d, 0, note(d8, 100), note(d8, 0))
	assert.Equal(t, 1, d.Shift())
	assert.Equal(t, []sent{{port: 0, ev: note(d8, 127)}, {port: 0, ev: note(d8, 127)}}, out.sent)

	out.clear()
	handle(t, d, 0, note(60, 100), note(60, 0))
	assert.Equal(t, taps(t, "XK_b", 1), out.keys)

	out.clear()
	handle(t, d, 0, note(d8, 100), note(d8, 0))
	assert.Equal(t, 0, d.Shift())
	assert.Equal(t, []sent{{port: 0, ev: note(d8, 0)}, {port: 0, ev: note(d8, 0)}}, out.sent)
}

func TestFeedbackPort(t *testing.T) {
	text := "[Default]\nCC1 CC2!\nCC3 CC4\n"

	d, out, _ := setup(t, text, Options{Ports: 2})
	handle(t, d, 0, cc(1, 127), cc(3, 127))
	assert.Equal(t, []sent{{port: 1, ev: cc(2, 127)}, {port: 0, ev: cc(4, 127)}}, out.sent)

	d, out, _ = setup(t, text, Options{Ports: 1})
	handle(t, d, 0, cc(1, 127))
	assert.Equal(t, []sent{{port: 0, ev: cc(2, 127)}}, out.sent)

	d, out, _ = setup(t, text, Options{Ports: 0})
	handle(t, d, 0, cc(1, 127))
	assert.Empty(t, out.sent)
}

func TestPassthrough(t *testing.T) {
	for _, tc := range []struct {
		name     string
		text     string
		opts     Options
		port     int
		expected int
	}{
		{name: "disabled", text: "[Default]\nCC1 XK_a\n", opts: Options{Ports: 2}},
		{name: "global", text: "[Default]\nCC1 XK_a\n", opts: Options{Ports: 2, Passthrough: [2]bool{true, false}}, expected: 1},
		{name: "global other port", text: "[Default]\nCC1 XK_a\n", opts: Options{Ports: 2, Passthrough: [2]bool{false, true}}},
		{name: "section", text: "[MIDI]\nPASSTHROUGH\nCC1 XK_a\n", opts: Options{Ports: 2}, expected: 1},
		{name: "second port section", text: "[MIDI2]\nPASSTHROUGH 2\nCC1 XK_a\n", opts: Options{Ports: 2}, port: 1, expected: 1},
		{name: "nothing bound", text: "[MIDI2]\nPASSTHROUGH 2\n", opts: Options{Ports: 2}, port: 1, expected: 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, out, _ := setup(t, tc.text, tc.opts)
			handle(t, d, tc.port, cc(9, 10), cc(1, 127))
			require.Equal(t, tc.expected, len(out.sent))
			if tc.expected > 0 {
				assert.Equal(t, sent{port: tc.port, ev: cc(9, 10)}, out.sent[0])
			}
		})
	}
}

func TestIgnoredMessages(t *testing.T) {
	d, out, _ := setup(t, "[Default]\nC5 XK_a\n", Options{Ports: 1, Passthrough: [2]bool{true, true}})
	for _, ev := range []midi.Event{
		{0xf8},
		{0xf0, 0x7e, 0xf7},
		{0x90, 60},
		{0x90, 60, 200},
	} {
		assert.Nil(t, d.Handle(context.Background(), 0, ev))
	}
	assert.Empty(t, out.keys)
	assert.Empty(t, out.sent)
}

func TestDecompose(t *testing.T) {
	for _, tc := range []struct {
		name  string
		entry translation.Entry
		value int
		q, r  int
	}{
		{name: "full range", entry: translation.Entry{Mod: 128}, value: 100, q: 0, r: 100},
		{name: "modulus", entry: translation.Entry{Mod: 12}, value: 61, q: 5, r: 1},
		{name: "nearest", entry: translation.Entry{StepLists: [2][]int{{0, 10, 100}}}, value: 60, q: 0, r: 2},
		{name: "tie", entry: translation.Entry{StepLists: [2][]int{{0, 10}}}, value: 5, q: 0, r: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			q, r := decompose(&tc.entry, tc.value)
			assert.Equal(t, tc.q, q)
			assert.Equal(t, tc.r, r)
		})
	}
}

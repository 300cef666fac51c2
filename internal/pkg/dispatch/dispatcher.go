// Package dispatch matches incoming MIDI messages against a compiled
// translation set and executes the bound stroke lists.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gethiox/midizap/internal/pkg/input"
	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/gethiox/midizap/internal/pkg/midi"
	"github.com/gethiox/midizap/internal/pkg/stroke"
	"github.com/gethiox/midizap/internal/pkg/translation"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const DefaultMaxDepth = 16

var ErrDepthExceeded = errors.New("recursion depth exceeded")

// Output executes what the bound strokes produce.
type Output interface {
	Key(k input.Key, press bool) error
	Send(port int, ev midi.Event) error
}

// Focus selects the section of the focused window.
type Focus interface {
	Active(ctx context.Context, set *translation.Set) *translation.Translation
	Reset()
}

type Options struct {
	// Ports is the number of MIDI output ports, 0 disables MIDI output.
	Ports       int
	Passthrough [2]bool
	MaxDepth    int
	// DebugKeys logs every executed binding.
	DebugKeys bool
}

// stateKey addresses per input value state.
type stateKey struct {
	port uint8
	cat  translation.Category
	ch   uint8
	data uint8
}

// outKey addresses the last value sent for an output message.
type outKey struct {
	port   uint8
	status uint8 // message type only
	ch     uint8
	data   uint8
}

type change struct {
	data, value int
}

type work struct {
	port  int
	ev    midi.Event
	depth int
}

type Dispatcher struct {
	mu    sync.Mutex
	out   Output
	focus Focus
	set   *translation.Set
	opts  Options
	shift int

	// debounced on/off state of absolute entries
	down map[stateKey]bool
	// last input value of every controller, for linear step entries
	values map[stateKey]int
	// last value sent by incremental output strokes
	outValues map[outKey]int
	// last (data, value) sent by change suppressed mod strokes
	changes map[stroke.Handle]change

	stack []work
	// messages generated by recursive strokes of the current message
	pending []work
}

func New(out Output, focus Focus, opts Options) *Dispatcher {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	d := &Dispatcher{out: out, focus: focus, opts: opts}
	d.reset()
	return d
}

func (d *Dispatcher) reset() {
	d.shift = 0
	d.down = make(map[stateKey]bool, 64)
	d.values = make(map[stateKey]int, 64)
	d.outValues = make(map[outKey]int, 64)
	d.changes = make(map[stroke.Handle]change, 16)
	d.stack = d.stack[:0]
	d.pending = d.pending[:0]
}

// Load publishes a new translation set. Every piece of state referring to
// the previous set is dropped in the same step.
func (d *Dispatcher) Load(set *translation.Set) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set = set
	d.reset()
	if d.focus != nil {
		d.focus.Reset()
	}
}

func (d *Dispatcher) SetOptions(opts Options) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	d.opts = opts
}

// Shift returns the current shift level.
func (d *Dispatcher) Shift() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shift
}

// Handle processes one message received on an input port. Messages
// generated by recursive strokes are processed before Handle returns. The
// returned error reports branches dropped for exceeding the recursion depth.
func (d *Dispatcher) Handle(ctx context.Context, port int, ev midi.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.set == nil {
		return nil
	}
	if !ev.IsChannelVoice() {
		log.Info(fmt.Sprintf("ignoring message: %s", ev), logger.Debug, zap.Int("port", port))
		return nil
	}

	var active *translation.Translation
	if d.focus != nil {
		active = d.focus.Active(ctx, d.set)
	}
	candidates := d.set.Candidates(active, port)

	var dropped error
	d.stack = append(d.stack[:0], work{port: port, ev: midi.Normalize(ev)})
	for len(d.stack) > 0 {
		w := d.stack[len(d.stack)-1]
		d.stack = d.stack[:len(d.stack)-1]
		if w.depth > d.opts.MaxDepth {
			log.Error(fmt.Sprintf("%s: dropping %s", ErrDepthExceeded, w.ev), logger.Error, zap.Int("port", w.port))
			dropped = fmt.Errorf("%w: %s", ErrDepthExceeded, w.ev)
			continue
		}
		d.process(candidates, w)
		for i := len(d.pending) - 1; i >= 0; i-- {
			d.stack = append(d.stack, d.pending[i])
		}
		d.pending = d.pending[:0]
	}
	return dropped
}

// run describes one execution of a stroke list.
type run struct {
	port  int
	depth int
	kind  translation.Kind
	// press is the phase of on/off entries and the direction of step
	// entries, true meaning increase.
	press bool
	// shiftFeedback makes feedback strokes report the shift state
	shiftFeedback bool
	// q and r are the decomposed input value of mod entries
	q, r int
}

func lookup(candidates []*translation.Translation, shift int, cat translation.Category, ch, data uint8) (*translation.Translation, *translation.Entry) {
	for _, tr := range candidates {
		if e := tr.Lookup(shift, cat, ch, data); e != nil && e.Claimed() {
			return tr, e
		}
	}
	return nil, nil
}

func (d *Dispatcher) process(candidates []*translation.Translation, w work) {
	ev := w.ev
	cat, ok := translation.CategoryOf(ev.Type())
	if !ok {
		return
	}
	ch, data := ev.Channel(), ev.Data()
	if !cat.HasData() {
		data = 0
	}
	value := ev.Value()
	matched := false

	// input state follows every message, bound or not
	on := value != cat.Off()
	changed := false
	if cat != translation.PC {
		k := stateKey{port: uint8(w.port), cat: cat, ch: ch, data: data}
		changed = on != d.down[k]
		d.down[k] = on
	}
	step, hasStep := cat.Step()
	last := cat.Off()
	if hasStep {
		k := stateKey{port: uint8(w.port), cat: step, ch: ch, data: data}
		if v, ok := d.values[k]; ok {
			last = v
		}
		d.values[k] = value
	}

	tr, e := lookup(candidates, d.shift, cat, ch, data)
	if e != nil {
		matched = true
		switch e.Kind {
		case translation.Mod:
			q, r := decompose(e, value)
			d.exec(tr, cat, e, 0, run{port: w.port, depth: w.depth, kind: e.Kind, q: q, r: r})
		case translation.OnOff:
			r := run{port: w.port, depth: w.depth, kind: e.Kind, shiftFeedback: d.hasShift(e.Lists[0])}
			if cat == translation.PC {
				r.press = true
				d.exec(tr, cat, e, 0, r)
				r.press = false
				d.exec(tr, cat, e, 1, r)
				break
			}
			if changed {
				r.press = on
				index := 1
				if on {
					index = 0
				}
				d.exec(tr, cat, e, index, r)
			}
		}
	}

	if hasStep && (e == nil || e.Kind != translation.Mod) {
		if tr, se := lookup(candidates, d.shift, step, ch, data); se != nil {
			matched = true
			d.step(tr, step, se, w, value, last)
		}
	}

	if !matched && d.passthrough(candidates, w.port) {
		d.send(w.port, ev)
	}
}

// step runs a step entry. last is the previous input value of the same
// controller, tracked whether or not a binding matched it.
func (d *Dispatcher) step(tr *translation.Translation, cat translation.Category, e *translation.Entry, w work, value, last int) {
	r := run{port: w.port, depth: w.depth, kind: e.Kind}
	repeat := func(index, times int) {
		r.press = index == 1
		for i := 0; i < times; i++ {
			d.exec(tr, cat, e, index, r)
		}
	}

	if e.Kind == translation.SignBit {
		switch {
		case value > 0 && value < 64:
			repeat(0, value/e.Step(cat, 0))
		case value > 64:
			repeat(1, (value-64)/e.Step(cat, 1))
		}
		return
	}

	delta := value - last
	switch {
	case delta > 0:
		repeat(1, delta/e.Step(cat, 1))
	case delta < 0:
		repeat(0, -delta/e.Step(cat, 0))
	}
}

func (d *Dispatcher) passthrough(candidates []*translation.Translation, port int) bool {
	if port < 0 || port > 1 {
		return false
	}
	if d.opts.Passthrough[port] {
		return true
	}
	for _, tr := range candidates {
		if tr.Passthrough[port] {
			return true
		}
	}
	return false
}

func (d *Dispatcher) hasShift(head stroke.Handle) bool {
	a := d.set.Arena
	for h := head; h != stroke.Nil; {
		s := a.Get(h)
		if s.Kind == stroke.Shift {
			return true
		}
		h = s.Next
	}
	return false
}

// decompose splits an input value for a mod entry into quotient and
// remainder. Quantized entries yield the index of the nearest listed value.
func decompose(e *translation.Entry, value int) (int, int) {
	if list := e.StepLists[0]; len(list) > 0 {
		best, dist := 0, -1
		for i, x := range list {
			diff := value - x
			if diff < 0 {
				diff = -diff
			}
			if dist < 0 || diff < dist {
				best, dist = i, diff
			}
		}
		return 0, best
	}
	if e.Mod <= 0 {
		return 0, value
	}
	return value / e.Mod, value % e.Mod
}

func (d *Dispatcher) exec(tr *translation.Translation, cat translation.Category, e *translation.Entry, index int, r run) {
	head := e.Lists[index]
	if d.opts.DebugKeys {
		token := e.Token(cat, d.shift, index, d.set.Octave)
		suffix := ""
		switch {
		case e.Kind != translation.OnOff:
		case index == 0:
			suffix = "[D]"
		default:
			suffix = "[U]"
		}
		log.Info(fmt.Sprintf("[%s]%s%s: %s", tr.Name, token, suffix, d.set.Arena.Format(head, d.set.Octave)),
			logger.Keys, zap.Int("port", r.port))
	}

	a := d.set.Arena
	for h := head; h != stroke.Nil; {
		s := a.Get(h)
		switch s.Kind {
		case stroke.Key:
			if err := d.out.Key(s.Key, s.Press); err != nil {
				log.Error(fmt.Sprintf("failed to inject %s: %s", s.Key, err), logger.Error)
			}
		case stroke.Shift:
			if d.shift == s.Level {
				d.shift = 0
			} else {
				d.shift = s.Level
			}
		case stroke.MIDI:
			d.message(h, s.Msg, &r)
		}
		h = s.Next
	}
}

// outPort returns the port a stroke sends to.
func (d *Dispatcher) outPort(m stroke.Message, port int) int {
	if m.Feedback && d.opts.Ports > 1 {
		return 1 - port
	}
	return port
}

func (d *Dispatcher) message(h stroke.Handle, m stroke.Message, r *run) {
	port := r.port
	if !m.Recursive {
		port = d.outPort(m, r.port)
	}

	var events []midi.Event
	switch r.kind {
	case translation.OnOff:
		on := r.press
		if r.shiftFeedback && m.Feedback {
			on = d.shift != 0
		}
		events = keyEvents(m, on)
	case translation.Mod:
		ev, ok := modEvent(m, r.q, r.r)
		if !ok {
			return
		}
		if m.Change {
			c := change{data: int(ev.Data()), value: ev.Value()}
			if last, ok := d.changes[h]; ok && last == c {
				return
			}
			d.changes[h] = c
		}
		events = []midi.Event{ev}
	default:
		events = d.stepEvents(m, port, r.press)
	}

	for _, ev := range events {
		if m.Recursive {
			d.pending = append(d.pending, work{port: r.port, ev: ev, depth: r.depth + 1})
			continue
		}
		d.send(port, ev)
	}
}

func (d *Dispatcher) send(port int, ev midi.Event) {
	if port >= d.opts.Ports {
		return
	}
	if err := d.out.Send(port, ev); err != nil {
		log.Error(fmt.Sprintf("failed to send %s: %s", ev, err), logger.Error, zap.Int("port", port))
	}
}

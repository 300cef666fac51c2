package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/gethiox/midizap/internal/pkg/input"
	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/gethiox/midizap/internal/pkg/stroke"
	"github.com/gethiox/midizap/internal/pkg/translation"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

var (
	ErrNoSection   = errors.New("need to start a section before defining bindings")
	ErrBadSection  = errors.New("bad section header")
	ErrBadKey      = errors.New("unrecognized key symbol")
	ErrBadModifier = errors.New("invalid up/down modifier")
	ErrBadBinding  = errors.New("invalid binding")
	ErrBadOption   = errors.New("bad directive argument")
)

// LineError is a problem on one line of a configuration file. The line is
// skipped, compilation goes on.
type LineError struct {
	File string
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Err)
}

func (e LineError) Unwrap() error {
	return e.Err
}

type Debug struct {
	Regex   bool
	Strokes bool
	Keys    bool
	Midi    bool
}

// Options are the global directives of a configuration file.
type Options struct {
	Octave int
	Debug  Debug

	Passthrough       [2]bool
	SystemPassthrough [2]bool

	ClientName string
	// Ports is the number of MIDI ports requested by MIDI_PORTS, -1 when
	// the file does not say.
	Ports int
	In    [2]string
	Out   [2]string
}

// Result is a compiled configuration file.
type Result struct {
	Set     *translation.Set
	Options Options
	Errors  []LineError
}

type scope uint8

const (
	keyScope scope = iota
	incrScope
	modScope
)

type itemKind uint8

const (
	itemKey itemKind = iota
	itemRelease
	itemShift
	itemNop
	itemMIDI
)

type item struct {
	Kind  itemKind
	Key   input.Key
	Mode  keyMode
	Level int
	Msg   stroke.Message
}

type binding struct {
	Text  string
	LHS   message
	Ctx   scope
	Items []item
}

type compiler struct {
	file    string
	line    int
	set     *translation.Set
	arena   *stroke.Arena
	current *translation.Translation
	// skip discards the bindings of a section whose header failed
	skip bool
	opts Options
	errs []LineError
}

// Compile reads a configuration and compiles it into a translation set.
// Problems on single lines are collected in Result.Errors, only failing to
// read r is returned as an error.
func Compile(r io.Reader, file string) (*Result, error) {
	return compile(r, file, false)
}

// compile logs every binding when strokes is set, DEBUG_STROKES turns it on
// from within the file.
func compile(r io.Reader, file string, strokes bool) (*Result, error) {
	arena := stroke.NewArena()
	c := &compiler{
		file:  file,
		set:   translation.NewSet(arena),
		arena: arena,
		opts:  Options{Ports: -1},
	}
	c.opts.Debug.Strokes = strokes
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		c.line++
		if err := c.compileLine(scanner.Text()); err != nil {
			c.errs = append(c.errs, LineError{File: file, Line: c.line, Err: err})
			log.Warn(fmt.Sprintf("%s:%d: %s", file, c.line, err), logger.Warning)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	c.closeSection()
	c.set.Octave = c.opts.Octave
	return &Result{Set: c.set, Options: c.opts, Errors: c.errs}, nil
}

func (c *compiler) closeSection() {
	if c.current == nil {
		return
	}
	c.current.Finish()
	c.set.Add(c.current)
	c.current = nil
}

func (c *compiler) compileLine(line string) error {
	s := strings.TrimSpace(line)
	if s == "" || s[0] == '#' {
		return nil
	}
	if s[0] == '[' {
		return c.section(s)
	}
	tokens := tokenize(s)
	if len(tokens) == 0 {
		return nil
	}
	if ok, err := c.directive(tokens); ok {
		return err
	}
	if c.skip {
		return nil
	}
	if c.current == nil {
		return fmt.Errorf("%w: %s", ErrNoSection, tokens[0])
	}
	b, err := c.parseBinding(tokens)
	if err != nil {
		return fmt.Errorf("[%s]%s: %w", c.current.Name, tokens[0], err)
	}
	if err := c.compileBinding(b); err != nil {
		return fmt.Errorf("[%s]%s: %w", c.current.Name, b.Text, err)
	}
	return nil
}

func (c *compiler) section(s string) error {
	c.closeSection()
	c.skip = false

	end := strings.IndexByte(s, ']')
	if end < 0 {
		c.skip = true
		return fmt.Errorf("%w: missing ]: %s", ErrBadSection, s)
	}
	name := s[1:end]
	rest := strings.TrimSpace(s[end+1:])

	tr := translation.New(name, c.arena)
	if fields := strings.Fields(rest); len(fields) > 0 {
		switch fields[0] {
		case "TITLE":
			tr.Mode = translation.MatchTitle
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "TITLE"))
		case "CLASS":
			tr.Mode = translation.MatchClass
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "CLASS"))
		}
	}

	if rest == "" {
		switch name {
		case "MIDI":
			tr.Default = translation.MIDIPort1
		case "MIDI2":
			tr.Default = translation.MIDIPort2
			tr.Port = 1
		default:
			tr.Default = translation.Generic
		}
	} else {
		re, err := regexp.Compile(rest)
		if err != nil {
			c.skip = true
			return fmt.Errorf("%w: [%s]: %s", ErrBadSection, name, err)
		}
		tr.Regex = re
	}
	c.current = tr
	return nil
}

// directive handles the global settings lines, ok is false when the line
// is not a directive.
func (c *compiler) directive(tokens []token) (ok bool, err error) {
	name := tokens[0].Text
	if tokens[0].Quoted || tokens[0].Slash {
		return false, nil
	}
	args := tokens[1:]
	arg := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%w: %s needs exactly one argument", ErrBadOption, name)
		}
		return args[0].Text, nil
	}
	port := func() ([2]bool, error) {
		if len(args) == 0 {
			return [2]bool{true, true}, nil
		}
		switch args[0].Text {
		case "1":
			return [2]bool{true, false}, nil
		case "2":
			return [2]bool{false, true}, nil
		case "0":
			return [2]bool{}, nil
		}
		return [2]bool{}, fmt.Errorf("%w: %s %s", ErrBadOption, name, args[0].Text)
	}

	switch name {
	case "DEBUG_REGEX":
		c.opts.Debug.Regex = true
	case "DEBUG_STROKES":
		c.opts.Debug.Strokes = true
	case "DEBUG_KEYS":
		c.opts.Debug.Keys = true
	case "DEBUG_MIDI":
		c.opts.Debug.Midi = true
	case "MIDI_OCTAVE":
		v, err := arg()
		if err != nil {
			return true, err
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < -5 || n > 5 {
			return true, fmt.Errorf("%w: MIDI_OCTAVE %s", ErrBadOption, v)
		}
		c.opts.Octave = n
	case "PASSTHROUGH":
		p, err := port()
		if err != nil {
			return true, err
		}
		switch {
		case c.skip:
		case c.current != nil:
			c.current.Passthrough = p
		default:
			c.opts.Passthrough = p
		}
	case "SYSTEM_PASSTHROUGH":
		p, err := port()
		if err != nil {
			return true, err
		}
		c.opts.SystemPassthrough = p
	case "JACK_NAME", "MIDI_NAME":
		v, err := arg()
		if err != nil {
			return true, err
		}
		c.opts.ClientName = v
	case "JACK_PORTS", "MIDI_PORTS":
		v, err := arg()
		if err != nil {
			return true, err
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 2 {
			return true, fmt.Errorf("%w: %s %s", ErrBadOption, name, v)
		}
		c.opts.Ports = n
	case "JACK_IN", "MIDI_IN", "JACK_IN2", "MIDI_IN2", "JACK_OUT", "MIDI_OUT", "JACK_OUT2", "MIDI_OUT2":
		if len(args) == 0 {
			return true, fmt.Errorf("%w: %s needs a port pattern", ErrBadOption, name)
		}
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		pattern := strings.Join(parts, " ")
		if _, err := regexp.Compile(pattern); err != nil {
			return true, fmt.Errorf("%w: %s: %s", ErrBadOption, name, err)
		}
		idx := 0
		if strings.HasSuffix(name, "2") {
			idx = 1
		}
		if strings.Contains(name, "_IN") {
			c.opts.In[idx] = pattern
		} else {
			c.opts.Out[idx] = pattern
		}
	default:
		return false, nil
	}
	return true, nil
}

func isShiftToken(s string) (int, bool) {
	if !strings.HasPrefix(s, "SHIFT") {
		return 0, false
	}
	rest := s[len("SHIFT"):]
	if rest == "" {
		return 1, true
	}
	if len(rest) == 1 && rest[0] >= '1' && rest[0] < '0'+translation.Shifts {
		return int(rest[0] - '0'), true
	}
	return 0, false
}

// parseBinding checks a whole binding line without touching any table, so
// that a bad token discards the binding as a whole.
func (c *compiler) parseBinding(tokens []token) (*binding, error) {
	lhs := tokens[0]
	if lhs.Quoted || lhs.Slash {
		return nil, fmt.Errorf("%w: %s", ErrBadMessage, lhs)
	}
	m, err := parseMessage(lhs.Text, 0, c.opts.Octave)
	if err != nil {
		return nil, err
	}
	ctx, err := lhsScope(m)
	if err != nil {
		return nil, err
	}
	b := &binding{Text: lhs.Text, LHS: m, Ctx: ctx}

	var ch uint8
	released := false
	for _, t := range tokens[1:] {
		switch {
		case t.Quoted:
			for _, r := range t.Text {
				k, ok := input.CharKey(r)
				if !ok {
					log.Warn(fmt.Sprintf("no key for character %q", r), logger.Warning, zap.String("binding", b.Text))
					continue
				}
				b.Items = append(b.Items, item{Kind: itemKey, Key: k})
			}
		case t.Text == "RELEASE":
			if ctx != keyScope {
				return nil, fmt.Errorf("%w: RELEASE in a %s binding", ErrBadBinding, kindName(m, ctx))
			}
			if released || t.Slash {
				return nil, fmt.Errorf("%w: %s", ErrBadBinding, t)
			}
			released = true
			b.Items = append(b.Items, item{Kind: itemRelease})
		case strings.HasPrefix(t.Text, "XK"):
			k, ok := input.LookupKeysym(t.Text)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrBadKey, t.Text)
			}
			mode := modeTap
			if t.Slash {
				if mode, ok = modeOf(t.Suffix); !ok {
					return nil, fmt.Errorf("%w: %s", ErrBadModifier, t)
				}
			}
			b.Items = append(b.Items, item{Kind: itemKey, Key: k, Mode: mode})
		case t.Slash:
			return nil, fmt.Errorf("%w: %s", ErrBadModifier, t)
		case t.Text == "NOP":
			b.Items = append(b.Items, item{Kind: itemNop})
		default:
			if level, ok := isShiftToken(t.Text); ok {
				b.Items = append(b.Items, item{Kind: itemShift, Level: level})
				continue
			}
			out, err := parseMessage(t.Text, ch, c.opts.Octave)
			if err != nil {
				return nil, err
			}
			if out.Name == "ch" {
				ch = out.Chan
				continue
			}
			if err := checkOutput(out, ctx); err != nil {
				return nil, fmt.Errorf("%s: %w", t.Text, err)
			}
			b.Items = append(b.Items, item{Kind: itemMIDI, Msg: out.output()})
		}
	}
	return b, nil
}

func kindName(m message, ctx scope) string {
	switch ctx {
	case modScope:
		return "mod"
	case incrScope:
		return "incremental"
	}
	return strings.ToUpper(m.Name)
}

// lhsScope validates the left hand side of a binding and tells how its
// output tokens are interpreted.
func lhsScope(m message) (scope, error) {
	bad := func(format string, args ...interface{}) (scope, error) {
		return 0, fmt.Errorf("%w: %s", ErrBadBinding, fmt.Sprintf(format, args...))
	}
	switch {
	case m.Name == "ch":
		return bad("CH can't start a binding")
	case m.Recursive:
		return bad("$ is only valid on output messages")
	case m.Feedback:
		return bad("! is only valid on output messages")
	case m.Flag == '\'' || m.Flag == '?':
		return bad("flag %c is only valid on mod output", m.Flag)
	}
	switch m.Flag {
	case 0:
		if !m.Brackets && !m.Braces {
			return keyScope, nil
		}
		if m.Name == "pc" {
			return bad("PC can't have a step size")
		}
		return modScope, nil
	case '<', '>', '~':
		if m.Name != "cc" {
			return bad("sign-bit flag %c is only valid on CC", m.Flag)
		}
	}
	if m.Name == "pc" {
		return bad("PC can't be incremental")
	}
	if m.Braces {
		return bad("step lists are only valid in mod bindings")
	}
	if m.Brackets && m.Step == 0 {
		return bad("[] is only valid in mod bindings")
	}
	return incrScope, nil
}

func checkOutput(m message, ctx scope) error {
	if m.HasShift {
		return fmt.Errorf("%w: shift prefix on output", ErrBadBinding)
	}
	if m.Brackets && m.Step == 0 {
		return fmt.Errorf("%w: [] on output", ErrBadBinding)
	}
	if m.Braces && ctx != modScope {
		return fmt.Errorf("%w: step list outside of mod binding", ErrBadBinding)
	}
	switch m.Flag {
	case 0:
	case '\'', '?':
		if ctx != modScope {
			return fmt.Errorf("%w: flag %c outside of mod binding", ErrBadBinding, m.Flag)
		}
	case '~':
		if ctx != incrScope || m.Name != "cc" {
			return fmt.Errorf("%w: ~ output needs CC in an incremental binding", ErrBadBinding)
		}
	default:
		return fmt.Errorf("%w: flag %c on output", ErrBadBinding, m.Flag)
	}
	return nil
}

// layout computes where a binding lives: its category, entry kind and the
// slots it claims.
func layout(m message) (translation.Category, translation.Kind, []int) {
	cat, _ := translation.CategoryOf(m.Status)
	switch m.Flag {
	case '+':
		cat, _ = cat.Step()
		return cat, translation.Linear, []int{1}
	case '-':
		cat, _ = cat.Step()
		return cat, translation.Linear, []int{0}
	case '=':
		cat, _ = cat.Step()
		return cat, translation.Linear, []int{0, 1}
	case '<':
		cat, _ = cat.Step()
		return cat, translation.SignBit, []int{0}
	case '>':
		cat, _ = cat.Step()
		return cat, translation.SignBit, []int{1}
	case '~':
		cat, _ = cat.Step()
		return cat, translation.SignBit, []int{0, 1}
	}
	if m.Brackets || m.Braces {
		return cat, translation.Mod, []int{0}
	}
	return cat, translation.OnOff, []int{0, 1}
}

func (c *compiler) compileBinding(b *binding) error {
	m := b.LHS
	cat, kind, slots := layout(m)
	tr := c.current

	if e := tr.Peek(m.Shift, cat, m.Channel(), m.Data); e != nil {
		if e.Kind != kind {
			return fmt.Errorf("%w: %s binding exists", translation.ErrMixedKinds, e.Kind)
		}
		for _, slot := range slots {
			if e.Bound[slot] {
				return translation.ErrRedefined
			}
		}
	}
	var e *translation.Entry
	for _, slot := range slots {
		var err error
		if e, err = tr.FindOrCreate(m.Shift, cat, m.Channel(), m.Data, slot, kind); err != nil {
			return err
		}
	}

	var press, release stroke.List
	bld := c.arena.Builder(&press)
	bld.Press = kind == translation.OnOff
	keys := &keyTracker{b: bld}
	explicit := false
	for _, it := range b.Items {
		switch it.Kind {
		case itemKey:
			keys.add(it.Key, it.Mode)
		case itemRelease:
			keys.release(false, &press, &release, false)
			explicit = true
		case itemShift:
			bld.AppendShift(it.Level)
		case itemNop:
			bld.AppendNop()
		case itemMIDI:
			bld.AppendMIDI(it.Msg)
		}
	}
	if kind == translation.OnOff && !explicit {
		keys.release(false, &press, &release, true)
	}
	keys.release(true, &press, &release, false)

	switch kind {
	case translation.OnOff:
		e.Lists = [2]stroke.Handle{press.Head, release.Head}
	case translation.Mod:
		e.Lists[0] = press.Head
		if m.Braces {
			e.StepLists[0] = m.Steps
		} else if m.Step > 0 {
			e.Mod = m.Step
		} else {
			e.Mod = cat.Range()
		}
	default:
		e.Lists[slots[0]] = press.Head
		e.Steps[slots[0]] = m.Step
		if len(slots) == 2 {
			e.Lists[1] = c.arena.Copy(press.Head)
			e.Steps[1] = m.Step
		}
	}

	if c.opts.Debug.Strokes {
		c.logBinding(m.Shift, cat, kind, slots, e)
	}
	return nil
}

func (c *compiler) logBinding(shift int, cat translation.Category, kind translation.Kind, slots []int, e *translation.Entry) {
	for _, slot := range slots {
		fields := []zap.Field{logger.Strokes, zap.String("section", c.current.Name)}
		token := e.Token(cat, shift, slot, c.opts.Octave)
		if kind == translation.OnOff {
			log.Info(fmt.Sprintf("%s[D]: %s", token, c.arena.Format(e.Lists[0], c.opts.Octave)), fields...)
			log.Info(fmt.Sprintf("%s[U]: %s", token, c.arena.Format(e.Lists[1], c.opts.Octave)), fields...)
			return
		}
		log.Info(fmt.Sprintf("%s: %s", token, c.arena.Format(e.Lists[slot], c.opts.Octave)), fields...)
	}
}

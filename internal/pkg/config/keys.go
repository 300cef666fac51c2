package config

import (
	"github.com/gethiox/midizap/internal/pkg/input"
	"github.com/gethiox/midizap/internal/pkg/stroke"
)

// keyMode is the suffix of a key token.
type keyMode uint8

const (
	modeTap  keyMode = iota // bare: press, released by the next key or at the end
	modeDown                // /D
	modeUp                  // /U
	modeHold                // /H
)

func modeOf(suffix byte) (keyMode, bool) {
	switch suffix {
	case 'D':
		return modeDown, true
	case 'U':
		return modeUp, true
	case 'H':
		return modeHold, true
	}
	return modeTap, false
}

type modifierState uint8

const (
	modPressed  modifierState = iota // /D, released when the press list ends
	modHeld                          // /H, released when the binding ends
	modReleased                      // released at the end of the press list, pressed again by the next tap
	modUp
)

type modifier struct {
	key   input.Key
	state modifierState
}

// keyTracker appends key strokes while keeping track of what is held down,
// so that every binding leaves the keyboard the way it found it.
type keyTracker struct {
	b         *stroke.Builder
	modifiers []modifier
	tapped    input.Key
	hasTapped bool
	// afterRelease is set once a release boundary was emitted, the next tap
	// presses the temporarily released modifiers again.
	afterRelease bool
}

func (t *keyTracker) markDown(k input.Key, state modifierState) {
	for i := range t.modifiers {
		if t.modifiers[i].key == k {
			t.modifiers[i].state = state
			return
		}
	}
	t.modifiers = append(t.modifiers, modifier{key: k, state: state})
}

func (t *keyTracker) markUp(k input.Key) {
	for i := range t.modifiers {
		if t.modifiers[i].key == k {
			t.modifiers[i].state = modUp
			return
		}
	}
}

func (t *keyTracker) add(k input.Key, mode keyMode) {
	switch mode {
	case modeDown:
		t.b.AppendKey(k, true)
		t.markDown(k, modPressed)
	case modeUp:
		t.b.AppendKey(k, false)
		t.markUp(k)
	case modeHold:
		t.b.AppendKey(k, true)
		t.markDown(k, modHeld)
	default:
		if t.afterRelease {
			t.repress()
		}
		if t.hasTapped {
			t.b.AppendKey(t.tapped, false)
		}
		t.b.AppendKey(k, true)
		t.tapped, t.hasTapped = k, true
		t.afterRelease = false
	}
}

func (t *keyTracker) releaseModifiers(all bool) {
	for i := range t.modifiers {
		m := &t.modifiers[i]
		switch {
		case m.state == modPressed:
			t.b.AppendKey(m.key, false)
			m.state = modReleased
		case all && m.state == modHeld:
			t.b.AppendKey(m.key, false)
			m.state = modUp
		}
	}
}

func (t *keyTracker) repress() {
	for i := range t.modifiers {
		m := &t.modifiers[i]
		if m.state == modReleased {
			t.b.AppendKey(m.key, true)
			m.state = modPressed
		}
	}
}

// release closes a stroke sequence. With all unset it ends the press list
// of an on/off binding and switches the builder to release, flushing dirty
// MIDI strokes of press into it when flush is set. Explicit RELEASE clauses
// don't flush. With all set held keys are released as well.
func (t *keyTracker) release(all bool, press, release *stroke.List, flush bool) {
	t.releaseModifiers(all)
	if !all {
		t.b.Switch(release)
		t.b.Press = false
		if t.b.HasMIDI {
			a := t.b.Arena()
			for _, h := range a.Handles(press.Head) {
				s := a.Get(h)
				if s.Kind != stroke.MIDI || !s.Dirty {
					continue
				}
				// appending may move the arena, s is stale afterwards
				s.Dirty = false
				if flush {
					t.b.AppendMIDI(s.Msg)
				}
			}
		}
	}
	if t.hasTapped {
		t.b.AppendKey(t.tapped, false)
		t.hasTapped = false
	}
	t.afterRelease = true
}

package input

import (
	"testing"

	"github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
)

func TestLookupKeysym(t *testing.T) {
	for _, tc := range []struct {
		name     string
		expected Key
		ok       bool
	}{
		{name: "XK_a", expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_A}, ok: true},
		{name: "XK_A", expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_A, Shift: true}, ok: true},
		{name: "XK_5", expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_5}, ok: true},
		{name: "XK_F5", expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_F5}, ok: true},
		{name: "XK_Left", expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_LEFT}, ok: true},
		{name: "XK_Return", expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_ENTER}, ok: true},
		{name: "XK_Control_L", expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_LEFTCTRL}, ok: true},
		{name: "XK_Button_1", expected: Key{Type: evdev.EV_KEY, Code: evdev.BTN_LEFT}, ok: true},
		{name: "XK_Scroll_Down", expected: Key{Type: evdev.EV_REL, Code: evdev.REL_WHEEL, Value: -1}, ok: true},
		{name: "XK_NoSuchKey"},
		{name: "Left"},
		{name: "XK_"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k, ok := LookupKeysym(tc.name)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, k)
			}
		})
	}
}

func TestCharKey(t *testing.T) {
	for _, tc := range []struct {
		char     rune
		expected Key
		ok       bool
	}{
		{char: 'x', expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_X}, ok: true},
		{char: 'X', expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_X, Shift: true}, ok: true},
		{char: '0', expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_0}, ok: true},
		{char: ' ', expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_SPACE}, ok: true},
		{char: '?', expected: Key{Type: evdev.EV_KEY, Code: evdev.KEY_SLASH, Shift: true}, ok: true},
		{char: 'é'},
	} {
		t.Run(string(tc.char), func(t *testing.T) {
			k, ok := CharKey(tc.char)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, k)
			}
		})
	}
}

func TestKeyString(t *testing.T) {
	for _, name := range []string{"XK_a", "XK_A", "XK_F5", "XK_Left", "XK_Return", "XK_Button_3", "XK_Scroll_Up", "XK_space"} {
		t.Run(name, func(t *testing.T) {
			k, ok := LookupKeysym(name)
			assert.True(t, ok)
			assert.Equal(t, name, k.String())
		})
	}

	k, _ := LookupKeysym("XK_Scroll_Up")
	assert.True(t, k.IsWheel())
	k, _ = LookupKeysym("XK_Button_2")
	assert.True(t, k.IsButton())
}

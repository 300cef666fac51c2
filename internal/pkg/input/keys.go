package input

import (
	"fmt"
	"strings"

	"github.com/holoplot/go-evdev"
)

// Key identifies something the virtual device can press: a keyboard key, a
// mouse button or one wheel direction.
type Key struct {
	Type  evdev.EvType
	Code  evdev.EvCode
	Value int32 // wheel direction, EV_REL only
	Shift bool  // shift has to be held while typing this key
}

func (k Key) IsButton() bool {
	return k.Type == evdev.EV_KEY && k.Code >= evdev.BTN_MOUSE && k.Code < evdev.BTN_JOYSTICK
}

func (k Key) IsWheel() bool {
	return k.Type == evdev.EV_REL
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	if k.Type != evdev.EV_KEY {
		return fmt.Sprintf("<key %d:%d>", k.Type, k.Code)
	}
	var found string
	for name, code := range evdev.KEYFromString {
		if code == k.Code && (found == "" || name < found) {
			found = name
		}
	}
	if found == "" {
		return fmt.Sprintf("<key %d:%d>", k.Type, k.Code)
	}
	rest := strings.TrimPrefix(found, "KEY_")
	if len(rest) == 1 && !k.Shift {
		rest = strings.ToLower(rest)
	}
	return "XK_" + rest
}

func key(code evdev.EvCode) Key {
	return Key{Type: evdev.EV_KEY, Code: code}
}

func shifted(code evdev.EvCode) Key {
	return Key{Type: evdev.EV_KEY, Code: code, Shift: true}
}

// keysyms maps X keysym names whose evdev counterpart cannot be derived by
// stripping the prefix. Plain letters, digits and function keys fall back to
// evdev.KEYFromString.
var keysyms = map[string]Key{
	"XK_Button_1":    key(evdev.BTN_LEFT),
	"XK_Button_2":    key(evdev.BTN_MIDDLE),
	"XK_Button_3":    key(evdev.BTN_RIGHT),
	"XK_Scroll_Up":   {Type: evdev.EV_REL, Code: evdev.REL_WHEEL, Value: 1},
	"XK_Scroll_Down": {Type: evdev.EV_REL, Code: evdev.REL_WHEEL, Value: -1},

	"XK_Return":       key(evdev.KEY_ENTER),
	"XK_KP_Enter":     key(evdev.KEY_KPENTER),
	"XK_Escape":       key(evdev.KEY_ESC),
	"XK_BackSpace":    key(evdev.KEY_BACKSPACE),
	"XK_Tab":          key(evdev.KEY_TAB),
	"XK_space":        key(evdev.KEY_SPACE),
	"XK_Delete":       key(evdev.KEY_DELETE),
	"XK_Insert":       key(evdev.KEY_INSERT),
	"XK_Home":         key(evdev.KEY_HOME),
	"XK_End":          key(evdev.KEY_END),
	"XK_Prior":        key(evdev.KEY_PAGEUP),
	"XK_Page_Up":      key(evdev.KEY_PAGEUP),
	"XK_Next":         key(evdev.KEY_PAGEDOWN),
	"XK_Page_Down":    key(evdev.KEY_PAGEDOWN),
	"XK_Left":         key(evdev.KEY_LEFT),
	"XK_Right":        key(evdev.KEY_RIGHT),
	"XK_Up":           key(evdev.KEY_UP),
	"XK_Down":         key(evdev.KEY_DOWN),
	"XK_Shift_L":      key(evdev.KEY_LEFTSHIFT),
	"XK_Shift_R":      key(evdev.KEY_RIGHTSHIFT),
	"XK_Control_L":    key(evdev.KEY_LEFTCTRL),
	"XK_Control_R":    key(evdev.KEY_RIGHTCTRL),
	"XK_Alt_L":        key(evdev.KEY_LEFTALT),
	"XK_Alt_R":        key(evdev.KEY_RIGHTALT),
	"XK_Meta_L":       key(evdev.KEY_LEFTMETA),
	"XK_Meta_R":       key(evdev.KEY_RIGHTMETA),
	"XK_Super_L":      key(evdev.KEY_LEFTMETA),
	"XK_Super_R":      key(evdev.KEY_RIGHTMETA),
	"XK_Caps_Lock":    key(evdev.KEY_CAPSLOCK),
	"XK_Num_Lock":     key(evdev.KEY_NUMLOCK),
	"XK_Scroll_Lock":  key(evdev.KEY_SCROLLLOCK),
	"XK_Print":        key(evdev.KEY_SYSRQ),
	"XK_Pause":        key(evdev.KEY_PAUSE),
	"XK_Menu":         key(evdev.KEY_COMPOSE),
	"XK_KP_Add":       key(evdev.KEY_KPPLUS),
	"XK_KP_Subtract":  key(evdev.KEY_KPMINUS),
	"XK_KP_Multiply":  key(evdev.KEY_KPASTERISK),
	"XK_KP_Divide":    key(evdev.KEY_KPSLASH),
	"XK_KP_Decimal":   key(evdev.KEY_KPDOT),
	"XK_minus":        key(evdev.KEY_MINUS),
	"XK_equal":        key(evdev.KEY_EQUAL),
	"XK_bracketleft":  key(evdev.KEY_LEFTBRACE),
	"XK_bracketright": key(evdev.KEY_RIGHTBRACE),
	"XK_semicolon":    key(evdev.KEY_SEMICOLON),
	"XK_apostrophe":   key(evdev.KEY_APOSTROPHE),
	"XK_grave":        key(evdev.KEY_GRAVE),
	"XK_backslash":    key(evdev.KEY_BACKSLASH),
	"XK_comma":        key(evdev.KEY_COMMA),
	"XK_period":       key(evdev.KEY_DOT),
	"XK_slash":        key(evdev.KEY_SLASH),

	"XK_AudioLowerVolume": key(evdev.KEY_VOLUMEDOWN),
	"XK_AudioRaiseVolume": key(evdev.KEY_VOLUMEUP),
	"XK_AudioMute":        key(evdev.KEY_MUTE),
	"XK_AudioPlay":        key(evdev.KEY_PLAYPAUSE),
	"XK_AudioStop":        key(evdev.KEY_STOPCD),
	"XK_AudioPrev":        key(evdev.KEY_PREVIOUSSONG),
	"XK_AudioNext":        key(evdev.KEY_NEXTSONG),
}

// characters typed by quoted strings
var chars = map[rune]Key{
	' ': key(evdev.KEY_SPACE), '\t': key(evdev.KEY_TAB),
	'-': key(evdev.KEY_MINUS), '_': shifted(evdev.KEY_MINUS),
	'=': key(evdev.KEY_EQUAL), '+': shifted(evdev.KEY_EQUAL),
	'[': key(evdev.KEY_LEFTBRACE), '{': shifted(evdev.KEY_LEFTBRACE),
	']': key(evdev.KEY_RIGHTBRACE), '}': shifted(evdev.KEY_RIGHTBRACE),
	';': key(evdev.KEY_SEMICOLON), ':': shifted(evdev.KEY_SEMICOLON),
	'\'': key(evdev.KEY_APOSTROPHE), '"': shifted(evdev.KEY_APOSTROPHE),
	'`': key(evdev.KEY_GRAVE), '~': shifted(evdev.KEY_GRAVE),
	'\\': key(evdev.KEY_BACKSLASH), '|': shifted(evdev.KEY_BACKSLASH),
	',': key(evdev.KEY_COMMA), '<': shifted(evdev.KEY_COMMA),
	'.': key(evdev.KEY_DOT), '>': shifted(evdev.KEY_DOT),
	'/': key(evdev.KEY_SLASH), '?': shifted(evdev.KEY_SLASH),
	'!': shifted(evdev.KEY_1), '@': shifted(evdev.KEY_2),
	'#': shifted(evdev.KEY_3), '$': shifted(evdev.KEY_4),
	'%': shifted(evdev.KEY_5), '^': shifted(evdev.KEY_6),
	'&': shifted(evdev.KEY_7), '*': shifted(evdev.KEY_8),
	'(': shifted(evdev.KEY_9), ')': shifted(evdev.KEY_0),
}

var keyNames = make(map[Key]string, len(keysyms))

func init() {
	for name, k := range keysyms {
		if prev, ok := keyNames[k]; ok && prev < name {
			continue // aliases, keep a stable name
		}
		keyNames[k] = name
	}
}

// LookupKeysym resolves an X keysym name ("XK_Left", "XK_a", "XK_F5") to a key.
func LookupKeysym(name string) (Key, bool) {
	if k, ok := keysyms[name]; ok {
		return k, true
	}
	if !strings.HasPrefix(name, "XK_") {
		return Key{}, false
	}
	rest := name[3:]
	if len(rest) == 1 {
		if k, ok := CharKey(rune(rest[0])); ok {
			return k, true
		}
	}
	code, ok := evdev.KEYFromString["KEY_"+strings.ToUpper(rest)]
	if !ok {
		return Key{}, false
	}
	return key(code), true
}

// CharKey resolves a printable ASCII character.
func CharKey(r rune) (Key, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		code, ok := evdev.KEYFromString["KEY_"+strings.ToUpper(string(r))]
		return key(code), ok
	case r >= 'A' && r <= 'Z':
		code, ok := evdev.KEYFromString["KEY_"+string(r)]
		return shifted(code), ok
	case r >= '0' && r <= '9':
		code, ok := evdev.KEYFromString["KEY_"+string(r)]
		return key(code), ok
	}
	k, ok := chars[r]
	return k, ok
}

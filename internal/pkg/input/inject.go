package input

import (
	"fmt"
	"sync"
	"time"

	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/holoplot/go-evdev"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const busVirtual = 0x06

// Injector emits synthetic key, button and wheel events through a uinput
// device.
type Injector struct {
	mu    sync.Mutex
	dev   *evdev.InputDevice
	delay time.Duration
}

func capabilities() map[evdev.EvType][]evdev.EvCode {
	keys := make([]evdev.EvCode, 0, len(evdev.KEYFromString)+3)
	seen := make(map[evdev.EvCode]struct{})
	for _, code := range evdev.KEYFromString {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		keys = append(keys, code)
	}
	for _, code := range []evdev.EvCode{evdev.BTN_LEFT, evdev.BTN_MIDDLE, evdev.BTN_RIGHT} {
		if _, ok := seen[code]; !ok {
			keys = append(keys, code)
		}
	}

	return map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: keys,
		evdev.EV_REL: {evdev.REL_X, evdev.REL_Y, evdev.REL_WHEEL},
	}
}

// NewInjector creates the virtual device. delay is inserted after every
// emitted event, zero disables it.
func NewInjector(name string, delay time.Duration) (*Injector, error) {
	dev, err := evdev.CreateDevice(name, evdev.InputID{
		BusType: busVirtual,
		Vendor:  0x4d5a,
		Product: 0x0001,
		Version: 1,
	}, capabilities())
	if err != nil {
		return nil, fmt.Errorf("failed to create uinput device: %w", err)
	}
	log.Info(fmt.Sprintf("Virtual input device created: %s", name), logger.Debug)
	return &Injector{dev: dev, delay: delay}, nil
}

func (i *Injector) SetDelay(delay time.Duration) {
	i.mu.Lock()
	i.delay = delay
	i.mu.Unlock()
}

func (i *Injector) write(events ...evdev.InputEvent) error {
	for _, ev := range events {
		ev := ev
		if err := i.dev.WriteOne(&ev); err != nil {
			return err
		}
	}
	err := i.dev.WriteOne(&evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	if err != nil {
		return err
	}
	if i.delay > 0 {
		time.Sleep(i.delay)
	}
	return nil
}

func pressValue(press bool) int32 {
	if press {
		return 1
	}
	return 0
}

// Key presses or releases a key. Wheel keys scroll once on press and ignore
// releases.
func (i *Injector) Key(k Key, press bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch {
	case k.IsWheel():
		if !press {
			return nil
		}
		return i.write(evdev.InputEvent{Type: evdev.EV_REL, Code: k.Code, Value: k.Value})
	case k.Shift && press:
		return i.write(
			evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.KEY_LEFTSHIFT, Value: 1},
			evdev.InputEvent{Type: evdev.EV_KEY, Code: k.Code, Value: 1},
		)
	case k.Shift:
		return i.write(
			evdev.InputEvent{Type: evdev.EV_KEY, Code: k.Code, Value: 0},
			evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.KEY_LEFTSHIFT, Value: 0},
		)
	default:
		return i.write(evdev.InputEvent{Type: evdev.EV_KEY, Code: k.Code, Value: pressValue(press)})
	}
}

var buttons = map[int]evdev.EvCode{
	1: evdev.BTN_LEFT,
	2: evdev.BTN_MIDDLE,
	3: evdev.BTN_RIGHT,
}

// Button presses or releases mouse button 1-3, 4 and 5 scroll the wheel like X does.
func (i *Injector) Button(id int, press bool) error {
	switch id {
	case 4:
		return i.Key(keysyms["XK_Scroll_Up"], press)
	case 5:
		return i.Key(keysyms["XK_Scroll_Down"], press)
	}
	code, ok := buttons[id]
	if !ok {
		return fmt.Errorf("unsupported button: %d", id)
	}
	return i.Key(key(code), press)
}

func (i *Injector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	err := i.dev.Close()
	if err != nil {
		log.Info("closing virtual input device failed", zap.Error(err), logger.Warning)
	}
	return err
}

package main

import (
	"fmt"
	"sync/atomic"

	"github.com/gethiox/midizap/internal/pkg/dispatch"
	"github.com/gethiox/midizap/internal/pkg/focus"
	"github.com/gethiox/midizap/internal/pkg/input"
	"github.com/gethiox/midizap/internal/pkg/midi"
	"github.com/gethiox/midizap/internal/pkg/midi/driver"
	"github.com/logrusorgru/aurora"
)

// engine connects the dispatcher to the injector and the transport and
// counts the traffic for the status view.
type engine struct {
	keys      *input.Injector
	transport *driver.Transport

	received uint64
	sent     uint64
	dropped  uint64
}

func (e *engine) Key(k input.Key, press bool) error {
	if e.keys == nil {
		return nil
	}
	return e.keys.Key(k, press)
}

func (e *engine) Send(port int, ev midi.Event) error {
	err := e.transport.Send(port, ev)
	if err == nil {
		atomic.AddUint64(&e.sent, 1)
	}
	return err
}

type Status struct {
	File     string
	Errors   int
	Window   focus.Window
	Section  string
	Shift    int
	Ports    int
	Received uint64
	Sent     uint64
	Dropped  uint64
}

func snapshot(e *engine, d *dispatch.Dispatcher, cache *focus.Cache, file func() (string, int), ports int) Status {
	s := Status{
		Shift:    d.Shift(),
		Ports:    ports,
		Received: atomic.LoadUint64(&e.received),
		Sent:     atomic.LoadUint64(&e.sent),
		Dropped:  atomic.LoadUint64(&e.dropped),
	}
	s.File, s.Errors = file()
	s.Window, s.Section = cache.Current()
	return s
}

func (s Status) Lines(au aurora.Aurora) []string {
	file := s.File
	if file == "" {
		file = "(none)"
	}
	section := s.Section
	if section == "" {
		section = "(default)"
	}

	errors := fmt.Sprintf("%d", s.Errors)
	if s.Errors > 0 {
		errors = au.Index(203, errors).String()
	}
	shift := "off"
	if s.Shift > 0 {
		shift = au.Index(220, fmt.Sprintf("%d", s.Shift)).String()
	}

	return []string{
		fmt.Sprintf("config: %s, errors: %s", colorForString(au, file), errors),
		fmt.Sprintf("window: %q (class %q)", s.Window.Title, s.Window.Class),
		fmt.Sprintf("section: %s, shift: %s", colorForString(au, section), shift),
		fmt.Sprintf("output ports: %d", s.Ports),
		fmt.Sprintf("received: %d, sent: %d, dropped: %d", s.Received, s.Sent, s.Dropped),
	}
}

package driver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/gethiox/midizap/internal/pkg/midi"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

var (
	ErrNoPort    = errors.New("no such output port")
	ErrQueueFull = errors.New("queue full")
)

const queueSize = 1024

type MIDIPort interface {
	Name() string
	Open() error
	Close() error
}

type MIDIIn interface {
	MIDIPort
	ReceiveChannel() <-chan []byte
}

type MIDIOut interface {
	MIDIPort
	SendChannel() chan<- []byte
}

type Port struct {
	// specific port may be nil if unavailable
	Input  MIDIIn
	Output MIDIOut
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (p *Port) String() string {
	switch {
	case p.Input == nil && p.Output == nil:
		return "(unconnected)"
	case p.Input == nil:
		return fmt.Sprintf("%s (Output only)", p.Output.Name())
	case p.Output == nil:
		return fmt.Sprintf("%s (Input only)", p.Input.Name())
	}

	inName, outName := p.Input.Name(), p.Output.Name()
	n := 0
	for n < min(len(inName), len(outName)) && inName[n] == outName[n] {
		n++
	}
	return fmt.Sprintf("%s (Input/Output)", inName[:n])
}

type Options struct {
	// SystemPassthrough forwards system messages received on a port to the
	// output port of the same number instead of dropping them.
	SystemPassthrough [2]bool
	// Debug logs every message crossing the boundary.
	Debug bool
}

type message struct {
	port int
	ev   midi.Event
}

// Transport merges the inputs of up to two ports into one queue polled by
// the main loop. Only complete channel voice messages reach the queue.
type Transport struct {
	ports []Port
	opts  Options
	queue chan message

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewTransport(ports []Port, opts Options) *Transport {
	return &Transport{
		ports: ports,
		opts:  opts,
		queue: make(chan message, queueSize),
	}
}

// Open opens every port and starts receiving. Ports opened before a failure
// are closed again.
func (t *Transport) Open() error {
	var opened []MIDIPort
	for i, p := range t.ports {
		for _, mp := range []MIDIPort{p.Input, p.Output} {
			if mp == nil {
				continue
			}
			if err := mp.Open(); err != nil {
				for _, o := range opened {
					_ = o.Close()
				}
				return fmt.Errorf("failed to open port %d (%s): %w", i+1, mp.Name(), err)
			}
			opened = append(opened, mp)
		}
	}

	for i, p := range t.ports {
		if p.Input == nil {
			continue
		}
		t.wg.Add(1)
		go t.receive(i, p.Input)
	}
	return nil
}

func (t *Transport) receive(port int, in MIDIIn) {
	defer t.wg.Done()
	for msg := range in.ReceiveChannel() {
		t.accept(port, midi.Event(msg))
	}
}

// accept filters one incoming message at the boundary.
func (t *Transport) accept(port int, ev midi.Event) {
	if len(ev) == 0 {
		return
	}
	t.mu.Lock()
	opts := t.opts
	t.mu.Unlock()

	if opts.Debug {
		log.Info(fmt.Sprintf("in: %s", ev), logger.Midi, zap.Int("port", port))
	}
	if ev[0] >= midi.System {
		if port < len(opts.SystemPassthrough) && opts.SystemPassthrough[port] {
			if err := t.Send(port, ev); err != nil {
				log.Info(fmt.Sprintf("failed to forward system message: %s", err), logger.Warning, zap.Int("port", port))
			}
		}
		return
	}
	if !ev.IsChannelVoice() {
		log.Info(fmt.Sprintf("dropping malformed message: % x", []byte(ev)), logger.Debug, zap.Int("port", port))
		return
	}
	select {
	case t.queue <- message{port: port, ev: ev}:
	default:
		log.Warn(fmt.Sprintf("%s, dropping %s", ErrQueueFull, ev), logger.Warning, zap.Int("port", port))
	}
}

// Pop returns the next received message without blocking, ok is false when
// the queue is empty.
func (t *Transport) Pop() (ev midi.Event, port int, ok bool) {
	select {
	case m := <-t.queue:
		return m.ev, m.port, true
	default:
		return nil, 0, false
	}
}

// Send queues a message on an output port.
func (t *Transport) Send(port int, ev midi.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || port < 0 || port >= len(t.ports) || t.ports[port].Output == nil {
		return fmt.Errorf("%w: %d", ErrNoPort, port+1)
	}
	if t.opts.Debug {
		log.Info(fmt.Sprintf("out: %s", ev), logger.Midi, zap.Int("port", port))
	}
	msg := make([]byte, len(ev))
	copy(msg, ev)
	select {
	case t.ports[port].Output.SendChannel() <- msg:
		return nil
	default:
		return fmt.Errorf("port %d: %w", port+1, ErrQueueFull)
	}
}

// SetOptions replaces the options of a running transport.
func (t *Transport) SetOptions(opts Options) {
	t.mu.Lock()
	t.opts = opts
	t.mu.Unlock()
}

// Ports returns the number of ports.
func (t *Transport) Ports() int {
	return len(t.ports)
}

func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	var errs []error
	for _, p := range t.ports {
		for _, mp := range []MIDIPort{p.Input, p.Output} {
			if mp == nil {
				continue
			}
			if err := mp.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	t.wg.Wait()
	if len(errs) > 0 {
		return fmt.Errorf("failed to close ports: %v", errs)
	}
	return nil
}

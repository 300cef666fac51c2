package driver

import "sync"

// Loopback is an in-memory port pair. Messages given to Receive arrive on
// its input, messages sent to its output are read from Sent.
type Loopback struct {
	name string
	in   chan []byte
	out  chan []byte
	once sync.Once
}

func NewLoopback(name string, size int) *Loopback {
	return &Loopback{
		name: name,
		in:   make(chan []byte, size),
		out:  make(chan []byte, size),
	}
}

func (l *Loopback) Port() Port {
	return Port{Input: loopbackIn{l}, Output: loopbackOut{l}}
}

// Receive delivers a message to the input side.
func (l *Loopback) Receive(msg ...byte) {
	l.in <- msg
}

func (l *Loopback) Sent() <-chan []byte {
	return l.out
}

type loopbackIn struct {
	l *Loopback
}

func (p loopbackIn) Name() string {
	return p.l.name + ":in"
}

func (p loopbackIn) Open() error {
	return nil
}

func (p loopbackIn) Close() error {
	p.l.once.Do(func() { close(p.l.in) })
	return nil
}

func (p loopbackIn) ReceiveChannel() <-chan []byte {
	return p.l.in
}

type loopbackOut struct {
	l *Loopback
}

func (p loopbackOut) Name() string {
	return p.l.name + ":out"
}

func (p loopbackOut) Open() error {
	return nil
}

func (p loopbackOut) Close() error {
	return nil
}

func (p loopbackOut) SendChannel() chan<- []byte {
	return p.l.out
}

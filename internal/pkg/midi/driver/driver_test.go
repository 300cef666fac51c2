package driver

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/gethiox/midizap/internal/pkg/midi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

type received struct {
	port int
	ev   midi.Event
}

// popN polls the transport until n messages arrived or a timeout passed.
func popN(tr *Transport, n int) []received {
	var out []received
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		ev, port, ok := tr.Pop()
		if !ok {
			if len(out) >= n {
				return out
			}
			time.Sleep(time.Millisecond)
			continue
		}
		out = append(out, received{port: port, ev: ev})
	}
	return out
}

// readN collects what arrives on ch until it stays quiet for 10ms.
func readN(ch <-chan []byte) [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-ch:
			out = append(out, msg)
		case <-time.After(10 * time.Millisecond):
			return out
		}
	}
}

func TestTransport(t *testing.T) {
	a, b := NewLoopback("a", 16), NewLoopback("b", 16)
	tr := NewTransport([]Port{a.Port(), b.Port()}, Options{SystemPassthrough: [2]bool{false, true}})
	require.Nil(t, tr.Open())
	assert.Equal(t, 2, tr.Ports())

	a.Receive(0x90, 60, 100)
	// clock, truncated, oversized and out of range messages are dropped
	a.Receive(0xf8)
	a.Receive(0x90, 60)
	a.Receive(0xb0, 1, 2, 3)
	a.Receive(0x80, 60, 200)
	a.Receive(0xb0, 7, 127)
	// system messages of the second port are forwarded
	b.Receive(0xfa)
	b.Receive(0xe1, 0x00, 0x40)

	got := popN(tr, 3)
	require.Equal(t, 3, len(got))
	var fromA, fromB []received
	for _, r := range got {
		if r.port == 0 {
			fromA = append(fromA, r)
		} else {
			fromB = append(fromB, r)
		}
	}
	assert.Equal(t, []received{
		{port: 0, ev: midi.Event{0x90, 60, 100}},
		{port: 0, ev: midi.Event{0xb0, 7, 127}},
	}, fromA)
	assert.Equal(t, []received{{port: 1, ev: midi.Event{0xe1, 0x00, 0x40}}}, fromB)

	assert.Equal(t, [][]byte{{0xfa}}, readN(b.Sent()))
	assert.Empty(t, readN(a.Sent()))

	require.Nil(t, tr.Send(0, midi.ControlChangeEvent(0, 1, 2)))
	assert.Equal(t, [][]byte{{0xb0, 1, 2}}, readN(a.Sent()))

	err := tr.Send(2, midi.ControlChangeEvent(0, 1, 2))
	assert.True(t, errors.Is(err, ErrNoPort))

	require.Nil(t, tr.Close())
	assert.True(t, errors.Is(tr.Send(0, midi.ControlChangeEvent(0, 1, 2)), ErrNoPort))
}

func TestTransportQueueFull(t *testing.T) {
	a := NewLoopback("a", 1)
	tr := NewTransport([]Port{a.Port()}, Options{})
	require.Nil(t, tr.Open())
	defer tr.Close()

	require.Nil(t, tr.Send(0, midi.Event{0x90, 1, 1}))
	assert.True(t, errors.Is(tr.Send(0, midi.Event{0x90, 1, 1}), ErrQueueFull))
}

func TestPortString(t *testing.T) {
	l := NewLoopback("midizap", 1)
	for _, tc := range []struct {
		port     Port
		expected string
	}{
		{port: l.Port(), expected: "midizap: (Input/Output)"},
		{port: Port{Input: l.Port().Input}, expected: "midizap:in (Input only)"},
		{port: Port{Output: l.Port().Output}, expected: "midizap:out (Output only)"},
		{port: Port{}, expected: "(unconnected)"},
	} {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.port.String())
		})
	}
}

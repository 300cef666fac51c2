// Package alsa provides the MIDI ports of the transport through RtMidi.
package alsa

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/gethiox/midizap/internal/pkg/midi/driver"
	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var log = logger.GetLogger()

type MIDIInPortFromDriver struct {
	c        chan []byte
	port     drivers.In
	stopFunc func()
}

func (in *MIDIInPortFromDriver) Name() string {
	return in.port.String()
}

func (in *MIDIInPortFromDriver) Open() error {
	err := in.port.Open()
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}

	stopFn, err := in.port.Listen(func(msg []byte, milliseconds int32) {
		ev := make([]byte, len(msg))
		copy(ev, msg)
		select {
		case in.c <- ev:
		default:
			log.Info("input queue full, dropping message", logger.Warning, zap.String("device", in.Name()))
		}
	}, drivers.ListenConfig{
		TimeCode:    true,
		ActiveSense: true,
		SysEx:       true,
		OnErr: func(err error) {
			log.Info(fmt.Sprintf("input error: %s", err), logger.Warning, zap.String("device", in.Name()))
		},
	})

	if err != nil {
		return fmt.Errorf("failed to listen on device: %w", err)
	}
	in.stopFunc = stopFn
	return nil
}

func (in *MIDIInPortFromDriver) Close() error {
	if in.stopFunc != nil {
		in.stopFunc()
	}
	close(in.c)
	return in.port.Close()
}

func (in *MIDIInPortFromDriver) ReceiveChannel() <-chan []byte {
	return in.c
}

func NewMIDIInPortFromDriver(in drivers.In) driver.MIDIIn {
	return &MIDIInPortFromDriver{
		c:    make(chan []byte, 256),
		port: in,
	}
}

type MIDIOutPortFromDriver struct {
	c      chan []byte
	port   drivers.Out
	opened bool
	done   chan struct{}
}

func (out *MIDIOutPortFromDriver) Name() string {
	return out.port.String()
}

func (out *MIDIOutPortFromDriver) Open() error {
	err := out.port.Open()
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}

	out.opened = true
	go func() {
		defer close(out.done)
		for event := range out.c {
			if err := out.port.Send(event); err != nil {
				log.Info(fmt.Sprintf("failed to send: %s", err), logger.Warning, zap.String("device", out.Name()))
			}
		}
	}()
	return nil
}

// Close waits until every queued message was handed to the driver.
func (out *MIDIOutPortFromDriver) Close() error {
	close(out.c)
	if out.opened {
		<-out.done
	}
	return out.port.Close()
}

func (out *MIDIOutPortFromDriver) SendChannel() chan<- []byte {
	return out.c
}

func NewMIDIOutPortFromDriver(out drivers.Out) driver.MIDIOut {
	return &MIDIOutPortFromDriver{
		c:    make(chan []byte, 256),
		port: out,
		done: make(chan struct{}),
	}
}

// Config selects the ports of the transport. Ports is the number of output
// ports, the number of inputs is at least 1 and follows Ports otherwise. An
// In or Out pattern connects to the first matching system port instead of
// creating a virtual one.
type Config struct {
	ClientName string
	Ports      int
	In         [2]string
	Out        [2]string
}

func portName(client, kind string, n int) string {
	if n == 0 {
		return fmt.Sprintf("%s %s", client, kind)
	}
	return fmt.Sprintf("%s %s%d", client, kind, n+1)
}

func find[P interface{ String() string }](ports []P, pattern string) (P, error) {
	var zero P
	re, err := regexp.Compile(pattern)
	if err != nil {
		return zero, fmt.Errorf("bad port pattern %q: %w", pattern, err)
	}
	for _, p := range ports {
		if re.MatchString(p.String()) {
			return p, nil
		}
	}
	return zero, fmt.Errorf("no port matches %q", pattern)
}

// CreatePorts opens the port pairs described by cfg.
func CreatePorts(cfg Config) ([]driver.Port, error) {
	d := drivers.Get()
	if d == nil {
		return nil, fmt.Errorf("failed to get driver")
	}

	rtmidid, ok := d.(*rtmididrv.Driver)
	if !ok {
		return nil, fmt.Errorf("failed to convert driver")
	}

	inputs := cfg.Ports
	if inputs < 1 {
		inputs = 1
	}

	ports := make([]driver.Port, inputs)
	for i := 0; i < inputs; i++ {
		var in drivers.In
		if pattern := cfg.In[i]; pattern != "" {
			ins, err := rtmidid.Ins()
			if err != nil {
				return nil, fmt.Errorf("failed to list inputs: %w", err)
			}
			if in, err = find(ins, pattern); err != nil {
				return nil, err
			}
			log.Info(fmt.Sprintf("connecting input %d to %s", i+1, in), logger.Info)
		} else {
			var err error
			if in, err = rtmidid.OpenVirtualIn(portName(cfg.ClientName, "midi_in", i)); err != nil {
				return nil, fmt.Errorf("failed to open virtual input: %w", err)
			}
		}
		ports[i].Input = NewMIDIInPortFromDriver(in)

		if i >= cfg.Ports {
			continue
		}
		var out drivers.Out
		if pattern := cfg.Out[i]; pattern != "" {
			outs, err := rtmidid.Outs()
			if err != nil {
				return nil, fmt.Errorf("failed to list outputs: %w", err)
			}
			if out, err = find(outs, pattern); err != nil {
				return nil, err
			}
			log.Info(fmt.Sprintf("connecting output %d to %s", i+1, out), logger.Info)
		} else {
			var err error
			if out, err = rtmidid.OpenVirtualOut(portName(cfg.ClientName, "midi_out", i)); err != nil {
				return nil, fmt.Errorf("failed to open virtual output: %w", err)
			}
		}
		ports[i].Output = NewMIDIOutPortFromDriver(out)
	}
	return ports, nil
}

// GetPorts lists the system MIDI ports, inputs and outputs sharing a port
// number are paired.
func GetPorts() []driver.Port {
	inPorts := gomidi.GetInPorts()
	outPorts := gomidi.GetOutPorts()

	var ports = make([]driver.Port, 0)

	var TotalUniquePortNumbers = make(map[int]struct{})

	var inPortMap = make(map[int]int)
	var outPortMap = make(map[int]int)

	for i, p := range inPorts {
		inPortMap[p.Number()] = i
		TotalUniquePortNumbers[p.Number()] = struct{}{}
	}

	for i, p := range outPorts {
		outPortMap[p.Number()] = i
		TotalUniquePortNumbers[p.Number()] = struct{}{}
	}

	var sortedPortNumbers = make([]int, 0, len(TotalUniquePortNumbers))

	for pNumber := range TotalUniquePortNumbers {
		sortedPortNumbers = append(sortedPortNumbers, pNumber)
	}

	sort.Ints(sortedPortNumbers)

	for _, pNumber := range sortedPortNumbers {
		var port driver.Port
		if idx, ok := inPortMap[pNumber]; ok {
			port.Input = NewMIDIInPortFromDriver(inPorts[idx])
		}
		if idx, ok := outPortMap[pNumber]; ok {
			port.Output = NewMIDIOutPortFromDriver(outPorts[idx])
		}
		ports = append(ports, port)
	}

	return ports
}

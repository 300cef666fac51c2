// Package rawmidi provides transport ports on ALSA raw MIDI character
// devices, for systems without a sequencer.
package rawmidi

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/gethiox/midizap/internal/pkg/midi"
	"github.com/gethiox/midizap/internal/pkg/midi/driver"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	DeviceDir = "/dev/snd"
	maxSysEx  = 4096
)

type openFunc func(path string, flag int) (io.ReadWriteCloser, error)

func openFile(path string, flag int) (io.ReadWriteCloser, error) {
	return os.OpenFile(path, flag|os.O_SYNC, 0)
}

type Device struct {
	Path string
	open openFunc
}

// DetectDevices lists the raw MIDI devices in dir, usually DeviceDir.
func DetectDevices(dir string) ([]Device, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var devices = make([]Device, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "midi") {
			continue
		}
		devices = append(devices, Device{Path: filepath.Join(dir, entry.Name()), open: openFile})
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Path < devices[j].Path
	})
	return devices, nil
}

// Port returns the input and output of the device, each opens its own
// file descriptor.
func (d Device) Port() driver.Port {
	open := d.open
	if open == nil {
		open = openFile
	}
	return driver.Port{
		Input:  &input{path: d.Path, open: open, c: make(chan []byte, 256)},
		Output: &output{path: d.Path, open: open, c: make(chan []byte, 256), done: make(chan struct{})},
	}
}

type input struct {
	path string
	open openFunc
	c    chan []byte

	mu   sync.Mutex
	file io.ReadWriteCloser
}

func (in *input) Name() string {
	return in.path
}

func (in *input) Open() error {
	f, err := in.open(in.path, os.O_RDONLY)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	in.mu.Lock()
	in.file = f
	in.mu.Unlock()

	go in.read(f)
	return nil
}

func (in *input) read(f io.Reader) {
	defer close(in.c)
	parser := midi.NewParser(maxSysEx)
	buf := make([]byte, 256)
	for {
		n, err := f.Read(buf)
		for _, ev := range parser.Feed(buf[:n]) {
			in.c <- ev
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				log.Info(fmt.Sprintf("read failed: %v", err), logger.Warning, zap.String("device", in.path))
			}
			return
		}
	}
}

// Close stops reading, the receive channel is closed once the reader
// returns.
func (in *input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.file == nil {
		close(in.c)
		return nil
	}
	return in.file.Close()
}

func (in *input) ReceiveChannel() <-chan []byte {
	return in.c
}

type output struct {
	path string
	open openFunc
	c    chan []byte
	done chan struct{}

	file io.ReadWriteCloser
}

func (out *output) Name() string {
	return out.path
}

func (out *output) Open() error {
	f, err := out.open(out.path, os.O_WRONLY)
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	out.file = f

	go func() {
		defer close(out.done)
		for ev := range out.c {
			if _, err := f.Write(ev); err != nil {
				log.Info(fmt.Sprintf("failed to write midi event: %v", err), logger.Warning, zap.String("device", out.path))
			}
		}
	}()
	return nil
}

// Close waits until every queued message was written.
func (out *output) Close() error {
	close(out.c)
	if out.file == nil {
		return nil
	}
	<-out.done
	return out.file.Close()
}

func (out *output) SendChannel() chan<- []byte {
	return out.c
}

// Find returns the device matching path or, when path is a number, the
// n-th detected device. Absolute paths are accepted as they are.
func Find(devices []Device, path string) (Device, error) {
	for _, d := range devices {
		if d.Path == path {
			return d, nil
		}
	}
	if filepath.IsAbs(path) {
		return Device{Path: path, open: openFile}, nil
	}
	var n int
	if _, err := fmt.Sscanf(path, "%d", &n); err == nil && fmt.Sprint(n) == path {
		if n >= 0 && n < len(devices) {
			return devices[n], nil
		}
		return Device{}, fmt.Errorf("MIDI device %d does not exist, there are %d devices", n, len(devices))
	}
	return Device{}, fmt.Errorf("no MIDI device %s", path)
}

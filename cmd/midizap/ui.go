package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/logrusorgru/aurora"
)

const (
	ViewLogs   = "logs"
	ViewStatus = "status"

	statusHeight = 7
)

func GetCli() (*gocui.Gui, error) {
	g, err := gocui.NewGui(gocui.Output256, true)
	if err != nil {
		return nil, err
	}

	g.SetManagerFunc(Layout)

	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return nil, err
	}
	if err := g.SetKeybinding("", 'q', gocui.ModNone, quit); err != nil {
		return nil, err
	}

	return g, nil
}

func Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView(ViewStatus, 0, 0, maxX-1, statusHeight, 0); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "[midizap]"
		v.Autoscroll = false
		v.Wrap = false
		v.Frame = true
	}

	if v, err := g.SetView(ViewLogs, 0, statusHeight, maxX-1, maxY-1, gocui.TOP); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "[Logs]"
		v.Autoscroll = false
		v.Wrap = false
		v.Frame = true
	}
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

// logBuffer keeps the last size log messages.
type logBuffer struct {
	mu    sync.Mutex
	lines [][]byte
	next  int
	full  bool
}

func newLogBuffer(size int) *logBuffer {
	if size < 1 {
		size = 1
	}
	return &logBuffer{lines: make([][]byte, size)}
}

func (b *logBuffer) WriteMessage(msg []byte) {
	b.mu.Lock()
	b.lines[b.next] = msg
	b.next++
	if b.next == len(b.lines) {
		b.next = 0
		b.full = true
	}
	b.mu.Unlock()
}

// ReadLastMessages returns up to n messages, oldest first.
func (b *logBuffer) ReadLastMessages(n int) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := b.next
	if b.full {
		stored = len(b.lines)
	}
	if n > stored {
		n = stored
	}
	if n < 0 {
		n = 0
	}

	out := make([][]byte, 0, n)
	start := b.next - n
	for i := 0; i < n; i++ {
		idx := (start + i + len(b.lines)) % len(b.lines)
		out = append(out, b.lines[idx])
	}
	return out
}

// logView drains the logger into a ring buffer and redraws the log view at
// most once per rate. It returns when logger.Messages is closed.
func logView(g *gocui.Gui, color bool, logLevel, bufSize int, rate time.Duration) {
	au := aurora.NewAurora(color)
	buf := newLogBuffer(bufSize)

	var dirty = make(chan struct{}, 1)
	var done = make(chan struct{})
	go func() {
		defer close(done)
		for range dirty {
			g.Update(func(g *gocui.Gui) error {
				v, err := g.View(ViewLogs)
				if err != nil {
					return nil
				}
				x, y := v.Size()
				v.Clear()
				for _, data := range buf.ReadLastMessages(y) {
					msg, err := unpack(data)
					if err != nil {
						fmt.Fprintf(v, "%s\n", data)
						continue
					}
					if s := prepareString(msg, au, x, logLevel); s != "" {
						fmt.Fprintf(v, "%s\n", s)
					}
				}
				return nil
			})
			time.Sleep(rate)
		}
	}()

	for msg := range logger.Messages {
		if m, err := unpack(msg); err == nil && m.Level > logLevel {
			continue
		}
		buf.WriteMessage(msg)
		select {
		case dirty <- struct{}{}:
		default:
		}
	}
	close(dirty)
	<-done
}

// statusView redraws the status view from a snapshot every rate until stop
// is closed.
func statusView(g *gocui.Gui, colors bool, rate time.Duration, stop <-chan struct{}, snapshot func() Status) {
	au := aurora.NewAurora(colors)
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		lines := snapshot().Lines(au)
		g.Update(func(g *gocui.Gui) error {
			v, err := g.View(ViewStatus)
			if err != nil {
				return nil
			}
			x, _ := v.Size()
			v.Clear()
			for _, l := range lines {
				pad := x - rawStringLen(l)
				if pad < 0 {
					pad = 0
				}
				fmt.Fprintf(v, "%s%s\n", l, strings.Repeat(" ", pad))
			}
			return nil
		})
	}
}

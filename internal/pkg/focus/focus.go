// Package focus finds the window that receives the injected keys, its title
// and class select the translation section.
package focus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/gethiox/midizap/internal/pkg/logger"
)

var log = logger.GetLogger()

var ErrNoDisplay = errors.New("no X display")

// Unlabeled is the title reported for windows without a name.
const Unlabeled = "-- Unlabeled Window --"

type Window struct {
	ID    uint64
	Title string
	Class string
}

func (w Window) String() string {
	return fmt.Sprintf("0x%x %q (class %q)", w.ID, w.Title, w.Class)
}

type Resolver interface {
	Focused(ctx context.Context) (Window, error)
}

// Static always reports the same window. A zero Static reports no window,
// only default sections apply then.
type Static struct {
	Window Window
	Err    error
}

func (s Static) Focused(context.Context) (Window, error) {
	return s.Window, s.Err
}

type Backend string

const (
	Auto    Backend = "auto"
	Xdotool Backend = "xdotool"
	Xprop   Backend = "xprop"
	None    Backend = "none"
)

// NewResolver creates the resolver of a backend. Auto picks xdotool when
// installed and falls back to xprop, it yields Static when neither is
// available or there is no display.
func NewResolver(backend Backend) (Resolver, error) {
	switch backend {
	case None:
		return Static{}, nil
	case Xdotool, Xprop:
		if os.Getenv("DISPLAY") == "" {
			return nil, ErrNoDisplay
		}
		if _, err := exec.LookPath(string(backend)); err != nil {
			return nil, fmt.Errorf("%s backend: %w", backend, err)
		}
		return NewX11(backend), nil
	case Auto, "":
		if os.Getenv("DISPLAY") == "" {
			log.Warn(fmt.Sprintf("%s, only default sections apply", ErrNoDisplay), logger.Warning)
			return Static{}, nil
		}
		for _, b := range []Backend{Xdotool, Xprop} {
			if _, err := exec.LookPath(string(b)); err == nil {
				return NewX11(b), nil
			}
		}
		log.Warn("neither xdotool nor xprop found, only default sections apply", logger.Warning)
		return Static{}, nil
	}
	return nil, fmt.Errorf("unknown focus backend %q", backend)
}

package focus

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/gethiox/midizap/internal/pkg/logger"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// X11 asks the X server for the focused window through the xdotool and
// xprop command line tools.
type X11 struct {
	backend Backend
	run     runFunc
}

func NewX11(backend Backend) *X11 {
	return &X11{backend: backend, run: run}
}

func (x *X11) Focused(ctx context.Context) (Window, error) {
	var (
		w   Window
		err error
	)
	if x.backend == Xdotool {
		w, err = x.xdotool(ctx)
		if err == nil {
			return w, nil
		}
	}
	return x.xprop(ctx)
}

func (x *X11) xdotool(ctx context.Context) (Window, error) {
	out, err := x.run(ctx, "xdotool", "getactivewindow")
	if err != nil {
		return Window{}, err
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return Window{}, fmt.Errorf("bad window id %q: %w", out, err)
	}
	w := Window{ID: id}
	if out, err = x.run(ctx, "xdotool", "getwindowname", strconv.FormatUint(id, 10)); err == nil {
		w.Title = strings.TrimRight(string(out), "\n")
	}
	if w.Class, err = x.class(ctx, id); err != nil {
		log.Info(err.Error(), logger.Debug)
	}
	if w.Title == "" {
		w.Title = Unlabeled
	}
	return w, nil
}

var (
	activeWindow = regexp.MustCompile(`window id # (0x[0-9a-fA-F]+)`)
	property     = regexp.MustCompile(`^(\w+)\([A-Z0-9_]+\) = (.*)$`)
	quoted       = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
)

func (x *X11) xprop(ctx context.Context) (Window, error) {
	out, err := x.run(ctx, "xprop", "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		return Window{}, err
	}
	m := activeWindow.FindSubmatch(out)
	if m == nil {
		return Window{}, fmt.Errorf("no active window: %q", out)
	}
	id, err := strconv.ParseUint(string(m[1]), 0, 64)
	if err != nil {
		return Window{}, fmt.Errorf("bad window id %q: %w", m[1], err)
	}
	if id == 0 {
		return Window{Title: Unlabeled}, nil
	}

	props, err := x.properties(ctx, id, "_NET_WM_NAME", "WM_NAME", "WM_CLASS")
	if err != nil {
		return Window{}, err
	}
	w := Window{ID: id, Title: props["_NET_WM_NAME"]}
	if w.Title == "" {
		w.Title = props["WM_NAME"]
	}
	if w.Title == "" {
		w.Title = Unlabeled
	}
	w.Class = props["WM_CLASS"]
	return w, nil
}

func (x *X11) class(ctx context.Context, id uint64) (string, error) {
	props, err := x.properties(ctx, id, "WM_CLASS")
	if err != nil {
		return "", err
	}
	return props["WM_CLASS"], nil
}

// properties reads string properties of a window. Lists such as WM_CLASS
// ("instance", "class") yield their last element.
func (x *X11) properties(ctx context.Context, id uint64, names ...string) (map[string]string, error) {
	args := append([]string{"-id", fmt.Sprintf("0x%x", id)}, names...)
	out, err := x.run(ctx, "xprop", args...)
	if err != nil {
		return nil, err
	}
	props := make(map[string]string, len(names))
	for _, line := range strings.Split(string(out), "\n") {
		m := property.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		values := quoted.FindAllString(m[2], -1)
		if len(values) == 0 {
			continue
		}
		v, err := strconv.Unquote(values[len(values)-1])
		if err != nil {
			v = strings.Trim(values[len(values)-1], `"`)
		}
		props[m[1]] = v
	}
	return props, nil
}

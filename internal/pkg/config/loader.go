package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gethiox/midizap/internal/pkg/logger"
	"go.uber.org/zap"
)

const (
	EnvConfigFile = "MIDIZAP_CONFIG_FILE"
	UserFile      = ".midizaprc"
	SystemFile    = "/etc/midizaprc"
)

var ErrNoConfig = errors.New("no configuration file found")

// Loader finds the configuration file and recompiles it whenever its
// modification time changes.
type Loader struct {
	// Path is an explicit file name, it takes precedence over the
	// environment and the default locations.
	Path string
	// Strokes logs the compiled bindings of every load.
	Strokes bool

	getenv  func(string) string
	home    func() (string, error)
	system  string
	current string
	modTime time.Time
}

func NewLoader(path string) *Loader {
	return &Loader{
		Path:   path,
		getenv: os.Getenv,
		home:   os.UserHomeDir,
		system: SystemFile,
	}
}

// candidates lists the file names tried in order.
func (l *Loader) candidates() []string {
	var out []string
	switch {
	case l.Path != "":
		out = append(out, l.Path)
	case l.getenv(EnvConfigFile) != "":
		out = append(out, l.getenv(EnvConfigFile))
	default:
		if home, err := l.home(); err == nil {
			out = append(out, filepath.Join(home, UserFile))
		}
	}
	return append(out, l.system)
}

// Resolve returns the configuration file in use and its modification time.
func (l *Loader) Resolve() (string, time.Time, error) {
	for _, name := range l.candidates() {
		info, err := os.Stat(name)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warn(fmt.Sprintf("can't use %s: %s", name, err), logger.Warning)
			}
			continue
		}
		if info.IsDir() {
			continue
		}
		return name, info.ModTime(), nil
	}
	return "", time.Time{}, ErrNoConfig
}

// Poll compiles the configuration if it changed since the last successful
// load. It returns a nil Result when nothing changed. On error the caller
// keeps using the previous configuration.
func (l *Loader) Poll() (*Result, error) {
	name, modTime, err := l.Resolve()
	if err != nil {
		return nil, err
	}
	if name == l.current && modTime.Equal(l.modTime) {
		return nil, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open configuration: %w", err)
	}
	defer f.Close()

	res, err := compile(f, name, l.Strokes)
	if err != nil {
		return nil, err
	}
	l.current, l.modTime = name, modTime
	log.Info("configuration loaded", logger.Info,
		zap.String("file", name),
		zap.Int("sections", len(res.Set.Sections)),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// File returns the name of the last loaded configuration file.
func (l *Loader) File() string {
	return l.current
}

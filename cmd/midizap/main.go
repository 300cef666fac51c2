package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/gethiox/midizap/internal/pkg/config"
	"github.com/gethiox/midizap/internal/pkg/dispatch"
	"github.com/gethiox/midizap/internal/pkg/focus"
	"github.com/gethiox/midizap/internal/pkg/input"
	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/gethiox/midizap/internal/pkg/midi/driver"
	"github.com/gethiox/midizap/internal/pkg/translation"
	"github.com/logrusorgru/aurora"
)

var log = logger.GetLogger()

// set by the build script
var version = "dev"

var (
	configFile   = flag.String("c", "", "configuration file, default: $MIDIZAP_CONFIG_FILE, ~/.midizaprc, /etc/midizaprc")
	settingsFile = flag.String("settings", defaultSettingsPath(), "application settings file")
	output       = flag.Bool("o", false, "enable MIDI output on one port")
	output2      = flag.Bool("o2", false, "enable MIDI output on two ports")
	clientName   = flag.String("j", "", "MIDI client name, overrides MIDI_NAME")
	passthrough  = flag.Bool("P", false, "pass unbound messages of the first port through")
	passthrough2 = flag.Bool("P2", false, "pass unbound messages of the second port through")
	debugClasses = flag.String("d", "",
		"debug classes, any combination of:\n"+
			"r: window focus matching\n"+
			"s: compiled bindings\n"+
			"k: executed bindings\n"+
			"m: MIDI traffic\n"+
			"j: internal debug messages",
	)
	dump     = flag.Bool("dump", false, "print the compiled configuration as YAML and exit")
	list     = flag.Bool("list", false, "list system MIDI ports and exit")
	ui       = flag.Bool("ui", false, "engage terminal ui")
	force256 = flag.Bool("256", false, "force 256 color mode")
	nocolor  = flag.Bool("nocolor", false, "disable color")
	silent   = flag.Bool("silent", false, "no output logging")
	printVer = flag.Bool("version", false, "print version and exit")
)

func init() {
	flag.Parse()
}

func handleSigs(wg *sync.WaitGroup, sigs <-chan os.Signal, cancel func()) {
	defer wg.Done()
	var counter int
	for sig := range sigs {
		if counter > 0 {
			fmt.Println("Dirty exit")
			os.Exit(1)
		}
		log.Info(fmt.Sprintf("signal received: %v", sig), logger.Debug)
		cancel()
		counter++
	}
}

// printLogs renders log entries on w until logger.Messages is closed.
func printLogs(done chan<- struct{}, w io.Writer, color bool, logLevel int) {
	defer close(done)
	if *silent {
		for range logger.Messages {
		}
		return
	}
	au := aurora.NewAurora(color)
	for data := range logger.Messages {
		msg, err := unpack(data)
		if err != nil {
			fmt.Fprintf(w, "%s\n", string(data))
			continue
		}
		if m := prepareString(msg, au, -1, logLevel); m != "" {
			fmt.Fprintf(w, "%s\n", m)
		}
	}
}

func runUI(cancel func()) (*gocui.Gui, <-chan struct{}, error) {
	g, err := GetCli()
	if err != nil {
		return nil, nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := g.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
			log.Info(fmt.Sprintf("ui failed: %v", err), logger.Error)
		}
		g.Close()
		cancel()
	}()
	return g, done, nil
}

func stopUI(g *gocui.Gui, done <-chan struct{}) {
	select {
	case <-done:
	default:
		g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
		<-done
	}
}

// loadState remembers the outcome of the last configuration load.
type loadState struct {
	mu     sync.Mutex
	file   string
	errors int
}

func (s *loadState) set(file string, errors int) {
	s.mu.Lock()
	s.file, s.errors = file, errors
	s.mu.Unlock()
}

func (s *loadState) get() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file, s.errors
}

func dumpConfig(loader *config.Loader) int {
	res, err := loader.Poll()
	if err != nil {
		log.Info(fmt.Sprintf("failed to load configuration: %v", err), logger.Error)
		return 1
	}
	if err := res.Set.Dump(os.Stdout); err != nil {
		log.Info(fmt.Sprintf("failed to dump configuration: %v", err), logger.Error)
		return 1
	}
	if len(res.Errors) > 0 {
		return 2
	}
	return 0
}

func watchSettings(ctx context.Context, path string) <-chan string {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		log.Info(fmt.Sprintf("not watching settings: %v", err), logger.Debug)
		return nil
	}
	changes, err := config.WatchFile(ctx, path)
	if err != nil {
		log.Info(fmt.Sprintf("not watching settings: %v", err), logger.Warning)
		return nil
	}
	return changes
}

func main() {
	if *printVer {
		fmt.Printf("midizap %s\n", version)
		return
	}
	if *force256 {
		os.Setenv("TERM", "xterm-256color")
	}

	flagDebug, trace, err := parseDebug(*debugClasses)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	flags := Flags{
		Ports:       -1,
		ClientName:  *clientName,
		Passthrough: [2]bool{*passthrough, *passthrough2},
		Debug:       flagDebug,
		Trace:       trace,
	}
	switch {
	case *output2:
		flags.Ports = 2
	case *output:
		flags.Ports = 1
	}

	logLevel := logger.MidiLvl
	if flags.Trace {
		logLevel = logger.DebugLvl
	}

	var sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())

	var g *gocui.Gui
	var uiDone <-chan struct{}
	var printerDone = make(chan struct{})
	useUI := *ui && !*silent && !*dump && !*list
	if useUI {
		g, uiDone, err = runUI(cancel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start ui: %v\n", err)
			os.Exit(1)
		}
		go func() {
			logView(g, !*nocolor, logLevel, 1024, 50*time.Millisecond)
			close(printerDone)
		}()
	} else {
		// keep stdout clean for the dump
		var w io.Writer = os.Stdout
		if *dump {
			w = os.Stderr
		}
		go printLogs(printerDone, w, !*nocolor, logLevel)
	}

	// this wait-group has to be propagated everywhere where usual logging appear
	wg := sync.WaitGroup{}
	wg.Add(1)
	go handleSigs(&wg, sigs, cancel)

	code := run(ctx, &wg, flags, g)

	cancel()
	signal.Stop(sigs)
	close(sigs)

	// closing logger can be safely invoked only when all internally running goroutines (that may emit logs) are done
	wg.Wait()
	close(logger.Messages)
	<-printerDone
	if useUI {
		stopUI(g, uiDone)
	}
	os.Exit(code)
}

func run(ctx context.Context, wg *sync.WaitGroup, flags Flags, g *gocui.Gui) int {
	settings, err := LoadSettings(*settingsFile)
	if err != nil {
		log.Info(fmt.Sprintf("%v, using defaults", err), logger.Warning)
		settings = DefaultSettings()
	}
	log.Info(fmt.Sprintf("settings: %+v", settings), logger.Debug)

	loader := config.NewLoader(*configFile)
	loader.Strokes = flags.Debug.Strokes

	if *dump {
		return dumpConfig(loader)
	}
	if *list {
		listPorts()
		return 0
	}

	var state loadState
	var directives config.Options
	var set *translation.Set
	res, err := loader.Poll()
	switch {
	case err != nil:
		log.Info(fmt.Sprintf("failed to load configuration: %v", err), logger.Error)
		directives = config.Options{Ports: -1}
	default:
		directives, set = res.Options, res.Set
		state.set(loader.File(), len(res.Errors))
	}
	opts := mergeOptions(flags, settings, directives)

	resolver, err := focus.NewResolver(settings.Focus.Backend)
	if err != nil {
		log.Info(fmt.Sprintf("focus backend unavailable: %v, only default sections apply", err), logger.Warning)
		resolver = focus.Static{}
	}
	cache := focus.NewCache(resolver, settings.Focus.Refresh)
	cache.SetDebug(opts.Debug.Regex)

	keys, err := input.NewInjector(settings.Output.DeviceName, settings.Output.KeyDelay)
	if err != nil {
		log.Info(fmt.Sprintf("key strokes disabled: %v", err), logger.Error)
		keys = nil
	} else {
		defer func() {
			if err := keys.Close(); err != nil {
				log.Info(fmt.Sprintf("failed to close injector: %v", err), logger.Warning)
			}
		}()
	}

	ports, err := createPorts(settings.MIDI, opts)
	if err != nil {
		log.Info(fmt.Sprintf("failed to create MIDI ports: %v", err), logger.Error)
		return 1
	}
	transport := driver.NewTransport(ports, opts.Transport())
	if err := transport.Open(); err != nil {
		log.Info(fmt.Sprintf("failed to open MIDI ports: %v", err), logger.Error)
		return 1
	}
	defer func() {
		if err := transport.Close(); err != nil {
			log.Info(fmt.Sprintf("failed to close transport: %v", err), logger.Warning)
		}
	}()
	for i, p := range ports {
		log.Info(fmt.Sprintf("MIDI port %d: %s", i+1, p.String()), logger.Info)
	}

	eng := &engine{keys: keys, transport: transport}
	d := dispatch.New(eng, cache, opts.Dispatch(settings.Midizap.MaxDepth))
	if set != nil {
		d.Load(set)
	}

	if g != nil {
		stop := make(chan struct{})
		defer close(stop)
		wg.Add(1)
		go func() {
			defer wg.Done()
			statusView(g, !*nocolor, 200*time.Millisecond, stop, func() Status {
				return snapshot(eng, d, cache, state.get, opts.Ports)
			})
		}()
	}

	settingsChanges := watchSettings(ctx, *settingsFile)

	poll := time.NewTicker(settings.Midizap.PollRate)
	defer poll.Stop()
	reload := time.NewTicker(settings.Midizap.ReloadInterval)
	defer reload.Stop()

	log.Info("midizap ready", logger.Info)
root:
	for {
		select {
		case <-ctx.Done():
			break root
		case <-poll.C:
			for {
				ev, port, ok := transport.Pop()
				if !ok {
					break
				}
				atomic.AddUint64(&eng.received, 1)
				if err := d.Handle(ctx, port, ev); err != nil {
					atomic.AddUint64(&eng.dropped, 1)
				}
			}
		case <-reload.C:
			res, err := loader.Poll()
			if err != nil {
				log.Info(fmt.Sprintf("failed to reload configuration: %v", err), logger.Warning)
				continue
			}
			if res == nil {
				continue
			}
			next := mergeOptions(flags, settings, res.Options)
			if next.Ports != opts.Ports || next.ClientName != opts.ClientName || next.In != opts.In || next.Out != opts.Out {
				log.Info("MIDI port changes take effect after restart", logger.Warning)
			}
			next.Ports, next.ClientName, next.In, next.Out = opts.Ports, opts.ClientName, opts.In, opts.Out
			opts = next

			state.set(loader.File(), len(res.Errors))
			cache.SetDebug(opts.Debug.Regex)
			transport.SetOptions(opts.Transport())
			d.SetOptions(opts.Dispatch(settings.Midizap.MaxDepth))
			d.Load(res.Set)
		case _, ok := <-settingsChanges:
			if !ok {
				settingsChanges = nil
				continue
			}
			s, err := LoadSettings(*settingsFile)
			if err != nil {
				log.Info(fmt.Sprintf("settings not applied: %v", err), logger.Warning)
				continue
			}
			settings.Midizap.MaxDepth = s.Midizap.MaxDepth
			settings.Focus.Refresh = s.Focus.Refresh
			settings.Output.KeyDelay = s.Output.KeyDelay

			cache.SetRefresh(settings.Focus.Refresh)
			if keys != nil {
				keys.SetDelay(settings.Output.KeyDelay)
			}
			d.SetOptions(opts.Dispatch(settings.Midizap.MaxDepth))
			log.Info("settings reloaded", logger.Info)
		}
	}
	log.Info("shutting down", logger.Debug)
	return 0
}

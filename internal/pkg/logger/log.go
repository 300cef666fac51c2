package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Messages receives every encoded log entry, one JSON document per message.
// The consumer is responsible for draining it, see cmd/midizap.
var Messages = make(chan []byte, 1024)

const (
	ErrorLvl   = 0
	WarningLvl = 1
	InfoLvl    = 2
	RegexLvl   = 3 // window focus matching
	StrokesLvl = 4 // compiled stroke sequences
	KeysLvl    = 5 // executed bindings
	MidiLvl    = 6 // raw transport traffic

	DebugLvl = 378
)

var (
	Error   = zap.Int("level", ErrorLvl)
	Warning = zap.Int("level", WarningLvl)
	Info    = zap.Int("level", InfoLvl)
	Regex   = zap.Int("level", RegexLvl)
	Strokes = zap.Int("level", StrokesLvl)
	Keys    = zap.Int("level", KeysLvl)
	Midi    = zap.Int("level", MidiLvl)

	Debug = zap.Int("level", DebugLvl)
)

type chanWriter struct {
	sync.Mutex
}

func (w *chanWriter) Write(p []byte) (n int, err error) {
	w.Lock()
	var newSlice = make([]byte, len(p))
	copy(newSlice, p)
	Messages <- newSlice
	w.Unlock()
	return len(p), nil
}

func (w *chanWriter) Sync() error {
	return nil
}

var (
	once   sync.Once
	shared *zap.Logger
)

// GetLogger returns the process wide logger. All instances share one writer
// so entries never interleave on the Messages channel.
func GetLogger() *zap.Logger {
	once.Do(func() {
		cfg := zap.NewProductionEncoderConfig()
		cfg.SkipLineEnding = true
		cfg.EncodeTime = zapcore.EpochNanosTimeEncoder
		cfg.LevelKey = ""
		encoder := zapcore.NewJSONEncoder(cfg)

		shared = zap.New(
			zapcore.NewCore(encoder, zapcore.Lock(&chanWriter{}), zap.DebugLevel),
			zap.AddCaller(),
		)
	})
	return shared
}

// Discard drains Messages until it is closed. Tests and the -silent mode use
// it so that logging never blocks the caller.
func Discard() {
	go func() {
		for range Messages {
		}
	}()
}

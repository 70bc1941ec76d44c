// Package logger holds the process-wide zerolog logger. Components take a
// child tagged with their name through WithComponent.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "kendalinet-layer"

var (
	mu   sync.RWMutex
	base = newLogger(os.Stdout, zerolog.InfoLevel)
)

type Config struct {
	Level string
	Debug bool
	// Output is stdout, stderr or a file path that logs are appended to.
	Output string
	// Pretty writes human-readable console lines instead of JSON.
	Pretty bool
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", serviceName).Logger()
}

func levelOf(cfg Config) (zerolog.Level, error) {
	if cfg.Debug {
		return zerolog.DebugLevel, nil
	}
	if cfg.Level == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	return level, nil
}

func openOutput(name string) (io.Writer, error) {
	switch name {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Init replaces the process logger. Loggers handed out earlier keep writing
// to the previous sink.
func Init(cfg Config) error {
	level, err := levelOf(cfg)
	if err != nil {
		return err
	}
	out, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}

	l := newLogger(out, level)
	mu.Lock()
	base = l
	mu.Unlock()
	log.Logger = l
	return nil
}

func GetLogger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent - logger anak dengan field "component".
func WithComponent(component string) zerolog.Logger {
	return GetLogger().With().Str("component", component).Logger()
}

// Package logging provides leveled logfmt logging for the framework
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-stack/stack"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a Logger
type Options struct {
	// LogFile is the rotated file to write to; stdout when empty
	LogFile string `yaml:"log_file,omitempty"`
	// LogLevel is one of debug, info, warn, error or none
	LogLevel string `yaml:"log_level,omitempty"`
}

// NewOptions returns the default logging options
func NewOptions() *Options {
	return &Options{LogLevel: "info"}
}

// Pairs represents the key=value pairs that describe a log event
type Pairs map[string]interface{}

// Logger is a container for the underlying log provider
type Logger struct {
	logger log.Logger
	closer io.Closer
	level  string

	onceMutex      sync.Mutex
	onceRanEntries map[string]bool
}

// New returns a Logger for the provided options
func New(opts *Options) *Logger {
	if opts == nil {
		opts = NewOptions()
	}
	var wr io.Writer
	if opts.LogFile == "" {
		wr = os.Stdout
	} else {
		wr = &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    256, // megabytes
			MaxBackups: 80,
			MaxAge:     7, // days
			Compress:   true,
		}
	}
	l := NewWithWriter(wr, opts.LogLevel)
	if c, ok := wr.(io.Closer); ok {
		l.closer = c
	}
	return l
}

// ConsoleLogger returns a Logger that prints to stdout at the given level
func ConsoleLogger(logLevel string) *Logger {
	return NewWithWriter(os.Stdout, logLevel)
}

// NoOpLogger returns a Logger that discards everything
func NoOpLogger() *Logger {
	return &Logger{
		logger:         log.NewNopLogger(),
		level:          "none",
		onceRanEntries: make(map[string]bool),
	}
}

// NewWithWriter returns a Logger writing logfmt lines to wr
func NewWithWriter(wr io.Writer, logLevel string) *Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(wr))
	logger = log.With(logger,
		"time", log.DefaultTimestampUTC,
		"app", "vala",
		"caller", log.Valuer(func() interface{} {
			return pkgCaller{stack.Caller(5)}
		}),
	)

	lvl := strings.ToLower(logLevel)
	switch lvl {
	case "debug":
		logger = level.NewFilter(logger, level.AllowDebug())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	case "none":
		logger = level.NewFilter(logger, level.AllowNone())
	default:
		lvl = "info"
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	return &Logger{
		logger:         logger,
		level:          lvl,
		onceRanEntries: make(map[string]bool),
	}
}

func toKeyvals(event string, detail Pairs) []interface{} {
	a := make([]interface{}, 0, (len(detail)*2)+2)
	a = append(a, "event", event)
	for k, v := range detail {
		a = append(a, k, v)
	}
	return a
}

// Debug sends a "DEBUG" event to the Logger
func (l *Logger) Debug(event string, detail Pairs) {
	level.Debug(l.logger).Log(toKeyvals(event, detail)...)
}

// Info sends an "INFO" event to the Logger
func (l *Logger) Info(event string, detail Pairs) {
	level.Info(l.logger).Log(toKeyvals(event, detail)...)
}

// Warn sends a "WARN" event to the Logger
func (l *Logger) Warn(event string, detail Pairs) {
	level.Warn(l.logger).Log(toKeyvals(event, detail)...)
}

// Error sends an "ERROR" event to the Logger
func (l *Logger) Error(event string, detail Pairs) {
	level.Error(l.logger).Log(toKeyvals(event, detail)...)
}

// WarnOnce sends a "WARN" event only once per key. Returns true if this
// invocation was the first.
func (l *Logger) WarnOnce(key string, event string, detail Pairs) bool {
	l.onceMutex.Lock()
	defer l.onceMutex.Unlock()
	key = "warn." + key
	if l.onceRanEntries[key] {
		return false
	}
	l.onceRanEntries[key] = true
	l.Warn(event, detail)
	return true
}

// Level returns the configured log level
func (l *Logger) Level() string {
	return l.level
}

// Close closes any file handle used for logging
func (l *Logger) Close() {
	if l.closer != nil {
		l.closer.Close()
	}
}

// pkgCaller wraps a stack.Call to include the package path in the output
type pkgCaller struct {
	c stack.Call
}

func (pc pkgCaller) String() string {
	return strings.TrimPrefix(fmt.Sprintf("%+v", pc.c), "github.com/xavierroma/vala/app/")
}

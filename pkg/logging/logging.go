// Package logging provides the leveled diagnostic logger shared by the
// reconstruction engine, the live monitor and the command line tool.
//
// Messages go through the standard log package. When a log file is configured
// the output is sent to a size-rotated file instead of stderr.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/natefinch/lumberjack"
)

// Level is the minimum severity that is written.
type Level uint

const (
	DebugLevel Level = iota
	InfoLevel
	WarningLevel
	ErrorLevel
	SilentLevel
)

var levelNames = map[Level]string{
	DebugLevel:   "DEBUG",
	InfoLevel:    "INFO",
	WarningLevel: "WARNING",
	ErrorLevel:   "ERROR",
	SilentLevel:  "SILENT",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", uint(l))
}

// ParseLevel converts a configuration string such as "info" to a Level.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if strings.EqualFold(name, s) {
			return l, nil
		}
	}
	if strings.EqualFold(s, "warn") {
		return WarningLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

var (
	mu     sync.Mutex
	level  = InfoLevel
	logger = log.New(os.Stderr, "", log.LstdFlags)
	closer io.Closer
)

// FileConfig configures a rotating log file.
type FileConfig struct {
	Filename string
	MaxSize  int // megabytes
	MaxAge   int // days
}

// Setup directs output to a rotating file. An empty filename keeps stderr.
func Setup(cfg FileConfig) {
	if cfg.Filename == "" {
		Debugf("Sending log messages to stderr since no log file specified.")
		return
	}
	l := &lumberjack.Logger{
		Filename: cfg.Filename,
		MaxSize:  cfg.MaxSize,
		MaxAge:   cfg.MaxAge,
	}
	SetOutput(l)
	mu.Lock()
	closer = l
	mu.Unlock()
}

// SetOutput redirects log output. Tests use it to capture messages.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// SetLevel sets the minimum severity that is written.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// Shutdown closes the log file, if any.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		closer.Close()
		closer = nil
	}
	logger.SetOutput(os.Stderr)
}

func output(l Level, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}
	logger.Printf("%s %s", levelNames[l], fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) {
	output(DebugLevel, format, args...)
}

func Infof(format string, args ...interface{}) {
	output(InfoLevel, format, args...)
}

func Warningf(format string, args ...interface{}) {
	output(WarningLevel, format, args...)
}

func Errorf(format string, args ...interface{}) {
	output(ErrorLevel, format, args...)
}

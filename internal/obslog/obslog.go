// Package obslog provides the engine's ambient warning/info logger: a
// rotated file sink under the storage home. The engine writes to it when the
// sqlite store is opened, when orphan states are found, when a duplicate
// knowledge blob is resubmitted, and when an external config edit is
// detected. Applied migrations and a config file ignored in favor of the
// lock row are not logged.
//
// Grounded on the teacher's use of gopkg.in/natefinch/lumberjack.v2 for log
// rotation.
package obslog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.Mutex
	logger *log.Logger
)

// Init points the package logger at <home>/orchestrator.log with rotation.
// Safe to call more than once (e.g. across test resets); the latest home
// wins.
func Init(home string) {
	mu.Lock()
	defer mu.Unlock()

	sink := &lumberjack.Logger{
		Filename:   filepath.Join(home, "orchestrator.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	logger = log.New(sink, "", log.LstdFlags|log.LUTC)
}

// Writer exposes the underlying rotated writer, for components that want
// raw io.Writer access instead of Warnf/Infof.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		return os.Stderr
	}
	return logger.Writer()
}

// Warnf logs a warning line. Falls back to stderr if Init was never called
// (e.g. in unit tests that exercise a component in isolation).
func Warnf(format string, args ...any) {
	write("WARN", format, args...)
}

// Infof logs an informational line.
func Infof(format string, args ...any) {
	write("INFO", format, args...)
}

func write(level, format string, args ...any) {
	mu.Lock()
	l := logger
	mu.Unlock()

	msg := fmt.Sprintf("["+level+"] "+format, args...)
	if l == nil {
		fmt.Fprintln(os.Stderr, msg)
		return
	}
	l.Println(msg)
}

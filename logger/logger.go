// Package logger is the panel's leveled logger: one console backend and one
// file backend, both driven by op/go-logging.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/antarex-ai/dashboard/config"
	"github.com/op/go-logging"
)

const (
	module      = "antarex"
	logFileName = "antarex.log"
	timeFormat  = "2006/01/02 15:04:05"
)

var (
	mu      sync.Mutex
	logger  = newNopLogger()
	logFile *os.File
)

func newNopLogger() *logging.Logger {
	l := logging.MustGetLogger(module)
	backend := logging.AddModuleLevel(logging.NewLogBackend(os.Stderr, "", 0))
	backend.SetLevel(logging.WARNING, module)
	l.SetBackend(backend)
	return l
}

// ParseLevel converts the configured level name, falling back to INFO.
func ParseLevel(level config.LogLevel) logging.Level {
	switch level {
	case config.Debug:
		return logging.DEBUG
	case config.Notice:
		return logging.NOTICE
	case config.Warn:
		return logging.WARNING
	case config.Error:
		return logging.ERROR
	default:
		return logging.INFO
	}
}

// InitLogger installs the console backend at the given level and, when the
// log folder is writable, a file backend that always records DEBUG.
func InitLogger(level logging.Level) {
	mu.Lock()
	defer mu.Unlock()

	l := logging.MustGetLogger(module)
	backends := make([]logging.Backend, 0, 2)

	console := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), newFormatter(true))
	leveled := logging.AddModuleLevel(console)
	leveled.SetLevel(level, module)
	backends = append(backends, leveled)

	if file := openFileBackend(); file != nil {
		leveledFile := logging.AddModuleLevel(file)
		leveledFile.SetLevel(logging.DEBUG, module)
		backends = append(backends, leveledFile)
	}

	l.SetBackend(logging.MultiLogger(backends...))
	logger = l
}

func openFileBackend() logging.Backend {
	dir := config.GetLogFolder()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "file log disabled: %v\n", err)
		return nil
	}
	path := filepath.Join(dir, logFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		fmt.Fprintf(os.Stderr, "file log disabled: %v\n", err)
		return nil
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	return logging.NewBackendFormatter(logging.NewLogBackend(file, "", 0), newFormatter(true))
}

func newFormatter(withTime bool) logging.Formatter {
	format := `%{level} - %{message}`
	if withTime {
		format = `%{time:` + timeFormat + `} %{level} - %{message}`
	}
	return logging.MustStringFormatter(format)
}

// CloseLogger releases the log file.
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func Debug(args ...any) {
	logger.Debug(args...)
}

func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
}

func Info(args ...any) {
	logger.Info(args...)
}

func Infof(format string, args ...any) {
	logger.Infof(format, args...)
}

func Warning(args ...any) {
	logger.Warning(args...)
}

func Warningf(format string, args ...any) {
	logger.Warningf(format, args...)
}

func Error(args ...any) {
	logger.Error(args...)
}

func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
}

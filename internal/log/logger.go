package log

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"imagegen/internal/core"
)

// AppLogger is the application logger implementation.
type AppLogger struct {
	logger     *log.Logger
	debug      bool
	fileHandle *os.File
	mu         sync.RWMutex
}

// NewAppLoggerWithConfig creates a logger instance with configuration.
func NewAppLoggerWithConfig(output io.Writer, debugMode bool) *AppLogger {
	return &AppLogger{
		logger:     log.New(output, "", log.LstdFlags),
		debug:      debugMode,
		fileHandle: nil,
	}
}

// Debug logs a message at DEBUG level.
func (l *AppLogger) Debug(format string, args ...any) {
	if l != nil && l.debug {
		l.logger.Printf("[DEBUG] "+format, args...)
	}
}

// Info logs a message at INFO level.
func (l *AppLogger) Info(format string, args ...any) {
	if l != nil {
		l.logger.Printf("[INFO] "+format, args...)
	}
}

// Warn logs a message at WARN level.
func (l *AppLogger) Warn(format string, args ...any) {
	if l != nil {
		l.logger.Printf("[WARN] "+format, args...)
	}
}

// Error logs a message at ERROR level.
func (l *AppLogger) Error(format string, args ...any) {
	if l != nil {
		l.logger.Printf("[ERROR] "+format, args...)
	}
}

// Fatal logs a message at FATAL level and terminates the process.
func (l *AppLogger) Fatal(format string, args ...any) {
	if l != nil {
		l.logger.Fatalf("[FATAL] "+format, args...)
	} else {
		log.Fatalf("[FATAL] "+format, args...)
	}
}

// Close safely closes log file handle.
func (l *AppLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileHandle != nil {
		err := l.fileHandle.Close()
		l.fileHandle = nil
		return err
	}
	return nil
}

// prefixedLogger tags every line with a fixed prefix, e.g. a request ID.
type prefixedLogger struct {
	base   core.Logger
	prefix string
}

// WithPrefix returns a logger that prepends "[prefix] " to every message.
func WithPrefix(base core.Logger, prefix string) core.Logger {
	if base == nil {
		base = &core.NopLogger{}
	}
	if prefix == "" {
		return base
	}
	return &prefixedLogger{base: base, prefix: "[" + prefix + "] "}
}

func (p *prefixedLogger) Debug(format string, args ...any) { p.base.Debug(p.prefix+format, args...) }
func (p *prefixedLogger) Info(format string, args ...any)  { p.base.Info(p.prefix+format, args...) }
func (p *prefixedLogger) Warn(format string, args ...any)  { p.base.Warn(p.prefix+format, args...) }
func (p *prefixedLogger) Error(format string, args ...any) { p.base.Error(p.prefix+format, args...) }
func (p *prefixedLogger) Fatal(format string, args ...any) { p.base.Fatal(p.prefix+format, args...) }

// containsPathTraversal reports whether any path segment is "..".
func containsPathTraversal(path string) bool {
	normalized := strings.ReplaceAll(path, "\\", "/")
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

// createDebugFileOutput creates debug file output, falls back gracefully on failure.
func createDebugFileOutput() (io.Writer, *os.File) {
	debugFile := os.Getenv("DEBUG_FILE")
	if debugFile == "" {
		return os.Stdout, nil
	}

	if len(debugFile) > core.MaxDebugFilePathLength {
		log.Printf("[WARN] DEBUG_FILE path too long, falling back to stdout")
		return os.Stdout, nil
	}

	if containsPathTraversal(debugFile) {
		log.Printf("[WARN] DEBUG_FILE contains path traversal characters, falling back to stdout")
		return os.Stdout, nil
	}

	//nolint:gosec // G304: debugFile from env var, validated by containsPathTraversal
	file, err := os.OpenFile(filepath.Clean(debugFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, core.FilePermissionReadWrite)
	if err != nil {
		log.Printf("[WARN] Failed to open DEBUG_FILE '%s': %v, falling back to stdout", debugFile, err)
		return os.Stdout, nil
	}

	return file, file
}

// IsDebug returns whether the app is running in debug mode.
func IsDebug() bool {
	return os.Getenv("GIN_MODE") == "debug"
}

// CreateLogger creates a logger instance (for dependency injection).
func CreateLogger() core.Logger {
	output, fileHandle := createDebugFileOutput()

	return &AppLogger{
		logger:     log.New(output, "", log.LstdFlags),
		debug:      IsDebug(),
		fileHandle: fileHandle,
	}
}

package ulet

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Logger is the minimal structured logger the client emits debug output to.
// Keys and values alternate in keysAndValues.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SimpleLogger writes key=value formatted lines to the standard logger.
type SimpleLogger struct {
	logger *log.Logger
}

// NewSimpleLogger returns a SimpleLogger writing to stderr.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{
		logger: log.New(os.Stderr, "ulet ", log.LstdFlags|log.Lmicroseconds),
	}
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...any) { l.print("DEBUG", msg, keysAndValues) }
func (l *SimpleLogger) Info(msg string, keysAndValues ...any)  { l.print("INFO", msg, keysAndValues) }
func (l *SimpleLogger) Warn(msg string, keysAndValues ...any)  { l.print("WARN", msg, keysAndValues) }
func (l *SimpleLogger) Error(msg string, keysAndValues ...any) { l.print("ERROR", msg, keysAndValues) }

func (l *SimpleLogger) print(level, msg string, keysAndValues []any) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	if len(keysAndValues)%2 == 1 {
		fmt.Fprintf(&b, " %v", keysAndValues[len(keysAndValues)-1])
	}
	l.logger.Print(b.String())
}

// DebugConfig gates which client events are logged. All flags default to on;
// disable selectively for noise control.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogCache     bool
	LogRateLimit bool
	LogCircuit   bool
	RequestIDGen func() string
}

// DefaultDebugConfig returns a config with all event classes enabled and
// uuid request IDs, but logging itself off until WithDebug.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogRetries:   true,
		LogCache:     true,
		LogRateLimit: true,
		LogCircuit:   true,
		RequestIDGen: uuid.NewString,
	}
}

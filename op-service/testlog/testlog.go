// Package testlog provides loggers that write to the unit test log.
package testlog

import (
	"bytes"
	"log/slog"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

var useColorInTestLog = os.Getenv("OP_TESTLOG_DISABLE_COLOR") != "true"

// Testing is the subset of testing.TB the loggers need.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
	Name() string
	Cleanup(func())
}

// HandlerMod wraps a handler, e.g. to capture records.
type HandlerMod func(slog.Handler) slog.Handler

// Logger returns a logger which logs to the unit test log of t.
func Logger(t Testing, level slog.Level) log.Logger {
	return LoggerWithHandlerMod(t, level)
}

func LoggerWithHandlerMod(t Testing, level slog.Level, handlerMods ...HandlerMod) log.Logger {
	w := &testWriter{t: t}
	t.Cleanup(w.close)
	var handler slog.Handler = log.NewTerminalHandlerWithLevel(w, level, useColorInTestLog)
	for _, mod := range handlerMods {
		handler = mod(handler)
	}
	return log.NewLogger(handler)
}

// testWriter forwards complete lines to t.Logf. Subprocess log pipes may still
// write after the test finished, those lines are dropped.
type testWriter struct {
	mu     sync.Mutex
	t      Testing
	closed bool
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return len(p), nil
	}
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte{'\n'}) {
		w.logLine(string(line))
	}
	return len(p), nil
}

func (w *testWriter) logLine(line string) {
	defer func() {
		if r := recover(); r != nil {
			w.closed = true
		}
	}()
	w.t.Helper()
	w.t.Logf("%s", line)
}

func (w *testWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

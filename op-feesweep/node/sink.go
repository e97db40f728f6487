package node

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/mantlenetworkio/feesweep/op-service/logpipe"
)

// LogSink is the run-wide node log. It is shared by every restart and is never truncated.
// Node processes write to it directly, so their output survives the harness.
type LogSink struct {
	fs    afero.Fs
	path  string
	file  afero.File
	lines *logpipe.Sink
}

// OpenLogSink opens the node log at path in append mode.
func OpenLogSink(fs afero.Fs, path string) (*LogSink, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open node log %s: %w", path, err)
	}
	return &LogSink{fs: fs, path: path, file: f, lines: logpipe.NewSink(f)}, nil
}

func (l *LogSink) Path() string {
	return l.path
}

// Output is the writer handed to child processes as stdout and stderr.
// On the OS filesystem it is the *os.File itself, which the child inherits.
func (l *LogSink) Output() io.Writer {
	return l.file
}

// Mark appends a harness line, such as a restart marker.
func (l *LogSink) Mark(line string) error {
	return l.lines.WriteLine([]byte(line))
}

// Offset is the current size of the log.
func (l *LogSink) Offset() (int64, error) {
	info, err := l.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Follow hands every line appended after offset from to onLog, until ctx is done.
func (l *LogSink) Follow(ctx context.Context, from int64, poll time.Duration, onLog logpipe.LogProcessor) error {
	f, err := l.fs.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to open node log %s: %w", l.path, err)
	}
	if _, err := f.Seek(from, io.SeekStart); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to seek node log: %w", err)
	}
	return logpipe.PipeLogs(logpipe.Follow(ctx, f, poll), onLog)
}

func (l *LogSink) Close() error {
	return l.file.Close()
}

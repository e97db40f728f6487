package logpipe

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

type LogEntry interface {
	LogLevel() slog.Level
	LogMessage() string
	LogFields() []any
	FieldValue(key string) any
}

type LogProcessor func(line []byte)

type LogParser func(line []byte) LogEntry

// maxLineSize bounds a single log line. Node startup may dump large config blobs.
const maxLineSize = 1024 * 1024

func ToLogger(logger log.Logger) func(e LogEntry) {
	return func(e LogEntry) {
		msg := e.LogMessage()
		attrs := e.LogFields()
		lvl := e.LogLevel()

		if lvl >= log.LevelCrit {
			// a crit from the child must not exit this process
			lvl = log.LevelError
			attrs = append(attrs, slog.String("innerLevel", "CRIT"))
		}
		logger.Log(lvl, msg, attrs...)
	}
}

// Parsed combines a parser with an entry consumer into a LogProcessor.
func Parsed(parse LogParser, onEntry func(e LogEntry)) LogProcessor {
	return func(line []byte) {
		onEntry(parse(line))
	}
}

// Sink is a line writer shared by several writers. Each line is written whole, with a trailing newline.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// WriteLine appends a single line. Write errors are returned, not retried.
func (s *Sink) WriteLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	_, err := s.w.Write([]byte{'\n'})
	return err
}

// PipeLogs reads lines from r (e.g. subprocess stdout) and hands each non-empty line to onLog.
// Lines longer than maxLineSize are truncated, the rest of such a line is dropped.
// It processes until the stream ends and closes the reader.
// This returns the first read error; EOF is not an error.
func PipeLogs(r io.ReadCloser, onLog LogProcessor) (outErr error) {
	defer func() {
		outErr = errors.Join(outErr, r.Close())
	}()

	br := bufio.NewReaderSize(r, 64*1024)
	line := make([]byte, 0, 64*1024)
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if len(line) > 0 {
				onLog(line)
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if room := maxLineSize - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if isPrefix {
			continue
		}
		if len(line) > 0 {
			onLog(line)
		}
		line = line[:0]
	}
}

// Follow reads r like tail -f: at EOF it waits poll and reads again.
// Once ctx is done it drains what is left and then reports EOF.
// Closing the follower closes r if r is an io.Closer.
func Follow(ctx context.Context, r io.Reader, poll time.Duration) io.ReadCloser {
	return &follower{ctx: ctx, r: r, poll: poll}
}

type follower struct {
	ctx      context.Context
	r        io.Reader
	poll     time.Duration
	draining bool
}

func (f *follower) Read(p []byte) (int, error) {
	for {
		n, err := f.r.Read(p)
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
		if f.draining {
			return 0, io.EOF
		}
		select {
		case <-f.ctx.Done():
			f.draining = true
		case <-time.After(f.poll):
		}
	}
}

func (f *follower) Close() error {
	if c, ok := f.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

package testlog

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// CapturedRecord is a log record together with the attributes of the logger that emitted it.
type CapturedRecord struct {
	Inherited []slog.Attr
	*slog.Record
}

// Attrs calls f on the record attributes, then on the inherited ones, until f returns false.
func (r *CapturedRecord) Attrs(f func(slog.Attr) bool) {
	more := true
	r.Record.Attrs(func(a slog.Attr) bool {
		more = f(a)
		return more
	})
	if !more {
		return
	}
	for _, a := range r.Inherited {
		if !f(a) {
			return
		}
	}
}

func (r *CapturedRecord) AttrValue(name string) (v any) {
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == name {
			v = a.Value.Any()
			return false
		}
		return true
	})
	return
}

type captureStore struct {
	mu   sync.Mutex
	logs []*CapturedRecord
}

// CapturingHandler records every handled record and forwards it to the wrapped handler.
// It is safe for concurrent use.
type CapturingHandler struct {
	handler slog.Handler
	store   *captureStore
	attrs   []slog.Attr
}

var _ slog.Handler = (*CapturingHandler)(nil)

func CaptureLogger(t Testing, level slog.Level) (log.Logger, *CapturingHandler) {
	var out *CapturingHandler
	logger := LoggerWithHandlerMod(t, level, func(h slog.Handler) slog.Handler {
		out = &CapturingHandler{handler: h, store: new(captureStore)}
		return out
	})
	return logger, out
}

func (c *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	c.store.mu.Lock()
	c.store.logs = append(c.store.logs, &CapturedRecord{Inherited: c.attrs, Record: &r})
	c.store.mu.Unlock()
	return c.handler.Handle(ctx, r)
}

func (c *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	inherited := make([]slog.Attr, 0, len(c.attrs)+len(attrs))
	inherited = append(inherited, attrs...)
	inherited = append(inherited, c.attrs...)
	return &CapturingHandler{handler: c.handler.WithAttrs(attrs), store: c.store, attrs: inherited}
}

func (c *CapturingHandler) WithGroup(name string) slog.Handler {
	return &CapturingHandler{handler: c.handler.WithGroup(name), store: c.store}
}

func (c *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return c.handler.Enabled(ctx, level)
}

func (c *CapturingHandler) Clear() {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.logs = c.store.logs[:0]
}

type LogFilter func(record *CapturedRecord) bool

func NewLevelFilter(level slog.Level) LogFilter {
	return func(r *CapturedRecord) bool {
		return r.Record.Level == level
	}
}

func NewAttributesFilter(key, value string) LogFilter {
	return newAttrFilter(key, func(v string) bool { return v == value })
}

func NewAttributesContainsFilter(key, value string) LogFilter {
	return newAttrFilter(key, func(v string) bool { return strings.Contains(v, value) })
}

func newAttrFilter(key string, match func(v string) bool) LogFilter {
	return func(r *CapturedRecord) bool {
		found := false
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == key && match(a.Value.String()) {
				found = true
				return false
			}
			return true
		})
		return found
	}
}

func NewMessageFilter(message string) LogFilter {
	return func(r *CapturedRecord) bool {
		return r.Record.Message == message
	}
}

func NewMessageContainsFilter(message string) LogFilter {
	return func(r *CapturedRecord) bool {
		return strings.Contains(r.Record.Message, message)
	}
}

func (c *CapturingHandler) FindLog(filters ...LogFilter) *CapturedRecord {
	logs := c.FindLogs(filters...)
	if len(logs) == 0 {
		return nil
	}
	return logs[0]
}

func (c *CapturingHandler) FindLogs(filters ...LogFilter) []*CapturedRecord {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	var logs []*CapturedRecord
outer:
	for _, record := range c.store.logs {
		for _, filter := range filters {
			if !filter(record) {
				continue outer
			}
		}
		logs = append(logs, record)
	}
	return logs
}

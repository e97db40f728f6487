package logpipe

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/ethereum/go-ethereum/log"

	oplog "github.com/mantlenetworkio/feesweep/op-service/log"
)

type rawRustJSONLog struct {
	Level  string         `json:"level"`
	Fields map[string]any `json:"fields"`
	Target string         `json:"target"`
}

type StructuredRustLogEntry struct {
	Message string
	Level   slog.Level
	Fields  map[string]any
}

// ParseRustStructuredLogs parses the JSON lines a tracing-subscriber based server emits.
func ParseRustStructuredLogs(line []byte) LogEntry {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber() // keep number formatting
	var e rawRustJSONLog
	if err := dec.Decode(&e); err != nil {
		return StructuredRustLogEntry{
			Message: "Invalid JSON",
			Level:   slog.LevelWarn,
			Fields:  map[string]any{"line": string(line)},
		}
	}
	lvl, err := oplog.LevelFromString(e.Level)
	if err != nil {
		lvl = log.LevelInfo
	}
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	msg, _ := e.Fields["message"].(string)
	delete(e.Fields, "message")
	if e.Target != "" {
		e.Fields["target"] = e.Target
	}

	return StructuredRustLogEntry{
		Message: msg,
		Level:   lvl,
		Fields:  e.Fields,
	}
}

func (e StructuredRustLogEntry) LogLevel() slog.Level {
	return e.Level
}

func (e StructuredRustLogEntry) LogMessage() string {
	return e.Message
}

func (e StructuredRustLogEntry) LogFields() []any {
	attrs := make([]any, 0, len(e.Fields))
	for k, v := range e.Fields {
		if x, ok := v.(json.Number); ok {
			v = x.String()
		}
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (e StructuredRustLogEntry) FieldValue(key string) any {
	return e.Fields[key]
}

package logpipe

import (
	"bytes"
	"log/slog"

	"github.com/ethereum/go-ethereum/log"

	oplog "github.com/mantlenetworkio/feesweep/op-service/log"
)

// TextLogEntry is an unstructured output line.
type TextLogEntry struct {
	Line  string
	Level slog.Level
}

// ParseTextLogs treats the line as plain text. A leading level word, as printed by
// most pretty formatters ("INFO", "2024-01-01T00:00:00Z  WARN ..."), sets the level.
func ParseTextLogs(line []byte) LogEntry {
	lvl := log.LevelInfo
	for i, word := range bytes.Fields(line) {
		if i > 1 {
			break
		}
		if l, err := oplog.LevelFromString(string(word)); err == nil {
			lvl = l
			break
		}
	}
	return TextLogEntry{Line: string(line), Level: lvl}
}

// ParseAnyLogs picks the structured parser for lines that look like JSON objects.
func ParseAnyLogs(line []byte) LogEntry {
	if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 && trimmed[0] == '{' {
		return ParseRustStructuredLogs(trimmed)
	}
	return ParseTextLogs(line)
}

func (e TextLogEntry) LogLevel() slog.Level {
	return e.Level
}

func (e TextLogEntry) LogMessage() string {
	return e.Line
}

func (e TextLogEntry) LogFields() []any {
	return nil
}

func (e TextLogEntry) FieldValue(key string) any {
	return nil
}

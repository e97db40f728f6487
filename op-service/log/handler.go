package log

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/holiman/uint256"

	elog "github.com/ethereum/go-ethereum/log"
)

const (
	timeFormatMs                 = "2006-01-02T15:04:05.000-0700"
	levelMaxVerbosity slog.Level = math.MinInt
)

type leveler struct{ minLevel slog.Level }

func (l *leveler) Level() slog.Level {
	return l.minLevel
}

// JSONMsHandler writes one JSON object per record, with millisecond timestamps under "t".
func JSONMsHandler(wr io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: replaceJSONMs,
		Level:       &leveler{level},
	})
}

// LogfmtMsHandler writes logfmt records, with millisecond timestamps under "t".
func LogfmtMsHandler(wr io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: replaceLogfmtMs,
		Level:       &leveler{level},
	})
}

// NewHandler builds the handler for the given output format.
func NewHandler(wr io.Writer, format FormatType, level slog.Level, color bool) slog.Handler {
	switch format {
	case FormatJSON:
		return JSONMsHandler(wr, level)
	case FormatLogFmt:
		return LogfmtMsHandler(wr, level)
	case FormatTerminal:
		return elog.NewTerminalHandlerWithLevel(wr, level, color)
	default:
		return elog.NewTerminalHandlerWithLevel(wr, level, false)
	}
}

func replaceLogfmtMs(_ []string, attr slog.Attr) slog.Attr {
	return replaceMs(attr, true)
}

func replaceJSONMs(_ []string, attr slog.Attr) slog.Attr {
	return replaceMs(attr, false)
}

func replaceMs(attr slog.Attr, logfmt bool) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() == slog.KindTime {
			if logfmt {
				return slog.String("t", attr.Value.Time().Format(timeFormatMs))
			}
			return slog.Attr{Key: "t", Value: attr.Value}
		}
	case slog.LevelKey:
		if l, ok := attr.Value.Any().(slog.Level); ok {
			return slog.Any("lvl", elog.LevelString(l))
		}
	}

	switch v := attr.Value.Any().(type) {
	case time.Time:
		if logfmt {
			attr = slog.String(attr.Key, v.Format(timeFormatMs))
		}
	case time.Duration:
		attr.Value = slog.StringValue(v.String())
	case *big.Int:
		if v == nil {
			attr.Value = slog.StringValue("<nil>")
		} else {
			attr.Value = slog.StringValue(v.String())
		}
	case *uint256.Int:
		if v == nil {
			attr.Value = slog.StringValue("<nil>")
		} else {
			attr.Value = slog.StringValue(v.Dec())
		}
	case fmt.Stringer:
		if v == nil || (reflect.ValueOf(v).Kind() == reflect.Pointer && reflect.ValueOf(v).IsNil()) {
			attr.Value = slog.StringValue("<nil>")
		} else {
			attr.Value = slog.StringValue(v.String())
		}
	}
	return attr
}

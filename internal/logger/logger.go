package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl zerolog.Logger
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = timeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: timeFormat}
	}

	zl := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger { return &Logger{zl: zerolog.Nop()} }

// With returns a child logger that always carries fields.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = f.addToContext(ctx)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(l.zl.Error(), msg, fields) }

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.addTo(event)
	}
	event.Msg(msg)
}

// Field is a typed structured-logging attribute.
type Field struct {
	key  string
	kind fieldKind
	s    string
	i    int64
	f    float64
	b    bool
	err  error
	any  interface{}
}

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindError
	kindDuration
	kindAny
)

func (f Field) addTo(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.key, f.s)
	case kindInt:
		e.Int64(f.key, f.i)
	case kindFloat:
		e.Float64(f.key, f.f)
	case kindBool:
		e.Bool(f.key, f.b)
	case kindError:
		e.Err(f.err)
	case kindDuration:
		e.Dur(f.key, time.Duration(f.i))
	default:
		e.Interface(f.key, f.any)
	}
}

func (f Field) addToContext(c zerolog.Context) zerolog.Context {
	switch f.kind {
	case kindString:
		return c.Str(f.key, f.s)
	case kindInt:
		return c.Int64(f.key, f.i)
	case kindFloat:
		return c.Float64(f.key, f.f)
	case kindBool:
		return c.Bool(f.key, f.b)
	case kindError:
		return c.Err(f.err)
	case kindDuration:
		return c.Dur(f.key, time.Duration(f.i))
	default:
		return c.Interface(f.key, f.any)
	}
}

// --- Field constructors ---

func String(key, value string) Field { return Field{key: key, kind: kindString, s: value} }

func Int(key string, value int) Field { return Field{key: key, kind: kindInt, i: int64(value)} }

func Int64(key string, value int64) Field { return Field{key: key, kind: kindInt, i: value} }

func Float(key string, value float64) Field { return Field{key: key, kind: kindFloat, f: value} }

func Bool(key string, value bool) Field { return Field{key: key, kind: kindBool, b: value} }

func Error(err error) Field { return Field{key: "error", kind: kindError, err: err} }

func Duration(key string, value time.Duration) Field {
	return Field{key: key, kind: kindDuration, i: int64(value)}
}

func Any(key string, value interface{}) Field { return Field{key: key, kind: kindAny, any: value} }

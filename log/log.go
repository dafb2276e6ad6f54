package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

type (
	Level  = zapcore.Level
	Field  = zap.Field
	Option = zap.Option
)

const (
	DebugLevel Level = zap.DebugLevel
	InfoLevel  Level = zap.InfoLevel
	WarnLevel  Level = zap.WarnLevel
	ErrorLevel Level = zap.ErrorLevel
	PanicLevel Level = zap.PanicLevel
	FatalLevel Level = zap.FatalLevel
)

var (
	Skip          = zap.Skip
	Binary        = zap.Binary
	Bool          = zap.Bool
	ByteString    = zap.ByteString
	Float64       = zap.Float64
	Float32       = zap.Float32
	Int           = zap.Int
	Int64         = zap.Int64
	Int32         = zap.Int32
	Uint          = zap.Uint
	Uint64        = zap.Uint64
	Uint32        = zap.Uint32
	String        = zap.String
	Strings       = zap.Strings
	Ints          = zap.Ints
	Time          = zap.Time
	Duration      = zap.Duration
	Any           = zap.Any
	ErrorField    = zap.Error
	Namespace     = zap.Namespace
	Stringer      = zap.Stringer
	WithCaller    = zap.WithCaller
	AddCaller     = zap.AddCaller
	AddStack      = zap.AddStacktrace
	AddCallerSkip = zap.AddCallerSkip
)

// Float is a shortcut for Float64
var Float = zap.Float64

type Logger struct {
	l     *zap.Logger
	level zap.AtomicLevel
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.l.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.l.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.l.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.l.Error(msg, fields...)
}

func (l *Logger) Panic(msg string, fields ...Field) {
	l.l.Panic(msg, fields...)
}

func (l *Logger) Fatal(msg string, fields ...Field) {
	l.l.Fatal(msg, fields...)
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) WithOptions(opts ...Option) *Logger {
	return &Logger{l: l.l.WithOptions(opts...), level: l.level}
}

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{l: l.l.With(fields...), level: l.level}
}

// SetLevel changes the level of this logger and every logger derived from it.
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level)
}

func (l *Logger) Level() Level {
	return l.level.Level()
}

func (l *Logger) Sync() error {
	return l.l.Sync()
}

// Zap exposes the underlying logger for libraries that require one.
func (l *Logger) Zap() *zap.Logger {
	return l.l
}

func ParseLevel(s string) (Level, error) {
	return zapcore.ParseLevel(s)
}

// New creates a JSON logger writing to writer.
func New(writer io.Writer, level Level, opts ...Option) *Logger {
	return newLogger(writer, level, zap.NewProductionEncoderConfig(), false, nil, opts...)
}

// DevLogger creates a console logger with colored levels.
func DevLogger(writer io.Writer, level Level, opts ...Option) *Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return newLogger(writer, level, cfg, true, nil, opts...)
}

// NewFiltered works like New (json=true) or DevLogger (json=false) but
// applies zapfilter rules (e.g. "debug:cache.* info:*") on top of the level.
//
//nolint:whitespace // can't make both editor and linter happy
func NewFiltered(
	writer io.Writer, level Level, json bool, rules string, opts ...Option,
) (*Logger, error) {
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, err
	}
	if json {
		return newLogger(writer, level, zap.NewProductionEncoderConfig(),
			false, filter, opts...), nil
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return newLogger(writer, level, cfg, true, filter, opts...), nil
}

//nolint:whitespace // can't make both editor and linter happy
func newLogger(
	writer io.Writer,
	level Level,
	encCfg zapcore.EncoderConfig,
	console bool,
	filter zapfilter.FilterFunc,
	opts ...Option,
) *Logger {
	if writer == nil {
		panic("the writer is nil")
	}
	atomicLevel := zap.NewAtomicLevelAt(level)
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	var enc zapcore.Encoder
	if console {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	var core zapcore.Core = zapcore.NewCore(enc, zapcore.AddSync(writer), atomicLevel)
	if filter != nil {
		core = zapfilter.NewFilteringCore(core, filter)
	}
	return &Logger{
		l:     zap.New(core, opts...),
		level: atomicLevel,
	}
}

var std = New(os.Stderr, InfoLevel)

func Default() *Logger {
	return std
}

// ResetDefault replaces the default logger used by the package level functions.
// not safe for concurrent use
func ResetDefault(l *Logger) {
	std = l
	Debug = std.Debug
	Info = std.Info
	Warn = std.Warn
	Error = std.Error
	Panic = std.Panic
	Fatal = std.Fatal
}

var (
	Debug = std.Debug
	Info  = std.Info
	Warn  = std.Warn
	Error = std.Error
	Panic = std.Panic
	Fatal = std.Fatal
)

func Sync() error {
	if std != nil {
		return std.Sync()
	}
	return nil
}

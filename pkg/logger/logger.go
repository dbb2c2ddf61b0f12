package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Field = zapcore.Field

// Logger is the structured logger every service receives.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
	Named(name string) Logger
	Sync() error
}

// 日志文件轮转参数
const (
	rotateMaxSizeMB  = 100
	rotateMaxBackups = 3
	rotateMaxAgeDays = 7
)

type config struct {
	level       string
	encoding    string
	outputPaths []string
	errorPaths  []string
	fields      map[string]interface{}
}

type Option func(*config)

func WithLevel(level string) Option {
	return func(c *config) { c.level = level }
}

// WithEncoding selects "json" or "console".
func WithEncoding(encoding string) Option {
	return func(c *config) { c.encoding = encoding }
}

// WithOutputPaths sets the sinks for every entry: "stdout", "stderr" or a
// file path rotated with lumberjack.
func WithOutputPaths(paths []string) Option {
	return func(c *config) { c.outputPaths = paths }
}

// WithErrorPaths sets where entries at error level and above are duplicated.
// nil disables the duplicate.
func WithErrorPaths(paths []string) Option {
	return func(c *config) { c.errorPaths = paths }
}

// WithInitialFields attaches fields to every entry, e.g. the process component.
func WithInitialFields(fields map[string]interface{}) Option {
	return func(c *config) {
		for k, v := range fields {
			c.fields[k] = v
		}
	}
}

// NewLogger builds a zap logger. By default it writes JSON at info level to
// stdout and logs/app.log, with errors duplicated to logs/error.log.
func NewLogger(opts ...Option) (Logger, error) {
	c := &config{
		level:       "info",
		encoding:    "json",
		outputPaths: []string{"stdout", "logs/app.log"},
		errorPaths:  []string{"logs/error.log"},
		fields:      map[string]interface{}{},
	}
	for _, opt := range opts {
		opt(c)
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(c.level)); err != nil {
		return nil, fmt.Errorf("can't parse log level: %w", err)
	}

	var cores []zapcore.Core
	for _, path := range c.outputPaths {
		w, err := sink(path)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(c.encoder(), w, level))
	}
	errorLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel && level.Enabled(l)
	})
	for _, path := range c.errorPaths {
		w, err := sink(path)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(c.encoder(), w, errorLevel))
	}

	options := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if len(c.fields) > 0 {
		fields := make([]Field, 0, len(c.fields))
		for k, v := range c.fields {
			fields = append(fields, zap.Any(k, v))
		}
		options = append(options, zap.Fields(fields...))
	}
	return &logger{zap: zap.New(zapcore.NewTee(cores...), options...)}, nil
}

func (c *config) encoder() zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if c.encoding == "console" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func sink(path string) (zapcore.WriteSyncer, error) {
	switch path {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("can't create log directory: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotateMaxSizeMB,
		MaxBackups: rotateMaxBackups,
		MaxAge:     rotateMaxAgeDays,
		Compress:   true,
	}), nil
}

func String(key string, val string) Field          { return zap.String(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func Float64(key string, val float64) Field        { return zap.Float64(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Error(err error) Field                        { return zap.Error(err) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

// domain fields
func ScanID(id string) Field     { return zap.String("scanId", id) }
func FileID(id string) Field     { return zap.String("fileId", id) }
func FileName(name string) Field { return zap.String("fileName", name) }
func SitID(id string) Field      { return zap.String("sitId", id) }

type logger struct {
	zap *zap.Logger
}

func (l *logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, fields...) }
func (l *logger) Info(msg string, fields ...Field)  { l.zap.Info(msg, fields...) }
func (l *logger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, fields...) }
func (l *logger) Error(msg string, fields ...Field) { l.zap.Error(msg, fields...) }
func (l *logger) Fatal(msg string, fields ...Field) { l.zap.Fatal(msg, fields...) }

func (l *logger) With(fields ...Field) Logger {
	return &logger{zap: l.zap.With(fields...)}
}

func (l *logger) Named(name string) Logger {
	return &logger{zap: l.zap.Named(name)}
}

func (l *logger) Sync() error {
	return l.zap.Sync()
}

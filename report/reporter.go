package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Clock tells the simulated time so that every record carries it.
type Clock interface {
	Now() float64
}

// Config selects where and how records are written.
type Config struct {
	// Level is one of debug, info, warn and error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// LogFile receives the records in addition to stderr when set.
	LogFile string `json:"log_file" yaml:"log_file" mapstructure:"log_file"`

	// Format is console or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Reporter writes structured records with a severity, a category tag and a
// free text message.
type Reporter struct {
	logger *zap.Logger
	clock  Clock
}

// NewReporter builds a Reporter from the configuration.
func NewReporter(c Config) (*Reporter, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""

	var encoder zapcore.Encoder
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level),
	}

	if c.LogFile != "" {
		if dir := filepath.Dir(c.LogFile); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}

		f, err := os.OpenFile(c.LogFile,
			os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}

		cores = append(cores,
			zapcore.NewCore(encoder, zapcore.AddSync(f), level))
	}

	return NewReporterWithLogger(zap.New(zapcore.NewTee(cores...))), nil
}

// NewReporterWithLogger wraps an existing logger.
func NewReporterWithLogger(logger *zap.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// NewNopReporter returns a Reporter that drops everything.
func NewNopReporter() *Reporter {
	return NewReporterWithLogger(zap.NewNop())
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel, nil
	case "", "info":
		return zap.InfoLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, errors.New("unknown log level " + s)
	}
}

// SetClock attaches the simulated clock.
func (r *Reporter) SetClock(c Clock) {
	r.clock = c
}

// Logger exposes the underlying logger.
func (r *Reporter) Logger() *zap.Logger {
	return r.logger
}

func (r *Reporter) fields(category string, fields []zap.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	out = append(out, zap.String("category", category))

	if r.clock != nil {
		out = append(out, zap.Float64("sim_time", r.clock.Now()))
	}

	return append(out, fields...)
}

// Debug writes a debug record.
func (r *Reporter) Debug(category, msg string, fields ...zap.Field) {
	r.logger.Debug(msg, r.fields(category, fields)...)
}

// Info writes an info record.
func (r *Reporter) Info(category, msg string, fields ...zap.Field) {
	r.logger.Info(msg, r.fields(category, fields)...)
}

// Warning writes a warning record.
func (r *Reporter) Warning(category, msg string, fields ...zap.Field) {
	r.logger.Warn(msg, r.fields(category, fields)...)
}

// Error writes an error record.
func (r *Reporter) Error(category, msg string, fields ...zap.Field) {
	r.logger.Error(msg, r.fields(category, fields)...)
}

// Fatal records a fatal simulation error. It does not exit, the caller
// decides how the process ends.
func (r *Reporter) Fatal(err error) {
	var e *Error
	if errors.As(err, &e) {
		r.logger.Error(e.Msg, r.fields(e.Kind.String(), []zap.Field{
			zap.String("severity", "fatal"),
			zap.String("component", e.Component),
			zap.String("key", e.Key),
		})...)

		return
	}

	r.logger.Error(err.Error(), r.fields("fatal", nil)...)
}

// Sync flushes buffered records.
func (r *Reporter) Sync() {
	_ = r.logger.Sync()
}

// Package logging holds the process-wide zap logger. Engine components take
// a named child of it at construction, so Initialize must run before any
// engine is built for a new configuration to take effect.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global logger instance
	Logger *zap.Logger

	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Config contains logging configuration
type Config struct {
	// Level is the minimum log level
	Level string `json:"level" yaml:"level" hcl:"level,optional" validate:"omitempty,oneof=debug info warn error"`

	// Format is json or console
	Format string `json:"format" yaml:"format" hcl:"format,optional" validate:"omitempty,oneof=json console"`

	// Output is stdout, stderr or a file path. Reports own stdout, so the
	// default keeps logs off it.
	Output string `json:"output" yaml:"output" hcl:"output,optional"`

	Development bool `json:"development" yaml:"development" hcl:"development,optional"`
}

// DefaultConfig logs warnings and above to stderr
func DefaultConfig() Config {
	return Config{
		Level:  "warn",
		Format: "console",
		Output: "stderr",
	}
}

// Initialize replaces the global logger
func Initialize(cfg Config) error {
	if err := SetLevel(cfg.Level); err != nil {
		return err
	}

	sink, err := openSink(cfg.Output)
	if err != nil {
		return err
	}
	Logger = build(cfg, sink)
	return nil
}

// SetLevel changes the minimum level of the current logger and every child
// taken from it. An empty name keeps the current level.
func SetLevel(name string) error {
	if name == "" {
		return nil
	}
	l, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	level.SetLevel(l)
	return nil
}

// Level returns the current minimum level
func Level() zapcore.Level {
	return level.Level()
}

// ToWriter sends log lines to w, keeping format and level. Tests use it to
// capture or discard engine logs.
func ToWriter(w io.Writer, cfg Config) {
	Logger = build(cfg, zapcore.AddSync(w))
}

func openSink(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "", "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}
	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", output, err)
	}
	return zapcore.AddSync(file), nil
}

func build(cfg Config, sink zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.New(zapcore.NewCore(encoder, sink, level), opts...)
}

// Sync flushes the logger
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Named returns a child logger for one engine component (e.g. "search").
func Named(component string) *zap.Logger {
	return Logger.Named(component)
}

// Rate is the zap field for a tax rate
func Rate(key string, tau float64) zap.Field {
	return zap.Float64(key, tau)
}

// Cell is the pair of fields identifying one (tax, sd) search cell
func Cell(tax, sd float64) zap.Field {
	return zap.Dict("cell", zap.Float64("tax", tax), zap.Float64("sd", sd))
}

func init() {
	_ = Initialize(DefaultConfig())
}

// Package logger provides the process-wide structured logger.
package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	global *zap.Logger
	once   sync.Once
)

// Config controls logger output.
type Config struct {
	Level      string // debug, info, warn, error
	OutputPath string // optional log file; stdout only when empty
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init configures the global logger. Safe to call more than once; only the
// first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		var level zapcore.Level
		switch cfg.Level {
		case "debug":
			level = zapcore.DebugLevel
		case "warn":
			level = zapcore.WarnLevel
		case "error":
			level = zapcore.ErrorLevel
		default:
			level = zapcore.InfoLevel
		}

		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

		cores := []zapcore.Core{
			zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(os.Stdout), level),
		}

		if cfg.OutputPath != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err == nil {
				rotating := zapcore.AddSync(&lumberjack.Logger{
					Filename:   cfg.OutputPath,
					MaxSize:    cfg.MaxSizeMB,
					MaxBackups: cfg.MaxBackups,
					MaxAge:     cfg.MaxAgeDays,
					Compress:   true,
				})
				cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), rotating, level))
			}
		}

		global = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	})
}

// L returns the global logger, initializing a default one if needed.
func L() *zap.Logger {
	if global == nil {
		Init(Config{Level: "info"})
	}
	return global
}

// Debug logs at debug level.
func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

// Info logs at info level.
func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

// Warn logs at warn level.
func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

// Error logs at error level.
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Field helpers.

// String creates a string field.
func String(key, val string) zap.Field { return zap.String(key, val) }

// Int creates an int field.
func Int(key string, val int) zap.Field { return zap.Int(key, val) }

// Bool creates a bool field.
func Bool(key string, val bool) zap.Field { return zap.Bool(key, val) }

// ErrField creates an error field.
func ErrField(err error) zap.Field { return zap.Error(err) }

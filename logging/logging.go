// Package logging writes client logs to a rotating file. The TUI owns the
// terminal, so nothing may ever log to stdout or stderr while it runs.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *zap.Logger = zap.NewNop()

// InitLogger configures the file logger. An empty path defaults to
// ~/.medgpt/medgpt.log.
func InitLogger(path string) error {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(homeDir, ".medgpt", "medgpt.log")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	core := zapcore.NewCore(encoder,
		zapcore.AddSync(&lumberjack.Logger{
			Filename: path, MaxSize: 20, MaxAge: 14, Compress: true,
		}),
		zap.InfoLevel,
	)
	logger = zap.New(core)
	return nil
}

// L returns the current logger. Before InitLogger it is a no-op logger, so
// packages can log unconditionally.
func L() *zap.Logger {
	return logger
}

// Sync flushes buffered log entries.
func Sync() {
	logger.Sync()
}

package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the console logger used by the server and the sync commands.
// File outputs get their directory created first, zap does not do it.
func NewLogger(level string, outputPaths []string) *zap.Logger {
	atomicLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		if lvl, err := zapcore.ParseLevel(level); err == nil {
			atomicLevel.SetLevel(lvl)
		}
	}

	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}
	for _, p := range outputPaths {
		if p == "stdout" || p == "stderr" {
			continue
		}
		_ = os.MkdirAll(filepath.Dir(p), 0o755)
	}

	dualConfig := zap.Config{
		Encoding:         "console",
		Level:            atomicLevel,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    zap.NewProductionEncoderConfig(),
	}
	dualConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	dualLogger, err := dualConfig.Build()
	if err != nil {
		panic(err)
	}

	return dualLogger
}

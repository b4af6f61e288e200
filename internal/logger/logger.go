package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Log *zap.SugaredLogger

// Init initializes the global logger.
// Console output is colored and compact. If logPath is provided, entries
// are also written there through a rotating file without color codes.
func Init(verbose bool, logPath string) {
	logLevel := zap.InfoLevel
	if verbose {
		logLevel = zap.DebugLevel
	}

	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleConfig.EncodeCaller = nil

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleConfig),
		zapcore.AddSync(os.Stdout),
		logLevel,
	)

	if logPath != "" {
		fileConfig := zap.NewDevelopmentEncoderConfig()
		fileConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		fileConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		fileConfig.EncodeCaller = nil

		rotator := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(fileConfig),
			zapcore.AddSync(rotator),
			logLevel,
		)
		core = zapcore.NewTee(core, fileCore)
	}

	Log = zap.New(core).Sugar()
}

// Sync flushes any buffered log entries.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

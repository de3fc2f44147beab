package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	sugar      *zap.SugaredLogger
	atomLevel  zap.AtomicLevel
	loggerOnce sync.Once
)

// initLogger builds the global zap logger writing to stderr. The encoder is
// JSON in normal operation and console style when DAYBLAZER_DEV is set.
func initLogger() {
	loggerOnce.Do(func() {
		atomLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

		var enc zapcore.Encoder
		if os.Getenv("DAYBLAZER_DEV") != "" {
			enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		} else {
			enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		}

		core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), atomLevel)
		sugar = zap.New(core).Sugar()
	})
}

func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		atomLevel.SetLevel(zapcore.DebugLevel)
	case LevelInfo:
		atomLevel.SetLevel(zapcore.InfoLevel)
	case LevelError:
		atomLevel.SetLevel(zapcore.ErrorLevel)
	default:
		atomLevel.SetLevel(zapcore.InfoLevel)
	}
}

func Debug(msg string, kv ...any) {
	initLogger()
	sugar.Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	initLogger()
	sugar.Infow(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	initLogger()
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	sugar.Errorw(msg, extended...)
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}

package cli

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger writes console-encoded logs to w, normally the progress bar's
// writer on stderr, so stdout only carries the paths of what was written.
func newLogger(w io.Writer, verbose, quiet bool) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	level := zapcore.InfoLevel
	var opts []zap.Option
	if verbose {
		enc = zap.NewDevelopmentEncoderConfig()
		level = zapcore.DebugLevel
		opts = append(opts, zap.Development(), zap.AddCaller(), zap.AddStacktrace(zapcore.WarnLevel))
	}
	if quiet {
		level = zapcore.ErrorLevel
	}
	ws := zapcore.Lock(zapcore.AddSync(w))
	opts = append(opts, zap.ErrorOutput(ws))
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), ws, level), opts...)
}

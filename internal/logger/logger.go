// internal/logger/logger.go
//
// Structured JSON logger (Zap + Lumberjack).
//
// Context
// -------
// Each ingenius binary writes lifecycle and error events to one JSON log
// per day under `<root>/logs/<name>-YYYY-MM-DD.log`, so the web server and
// the operator CLI never interleave.  When running in an interactive TTY
// the same events are teed to stdout.  Rotation, compression, and
// retention are handled by Lumberjack.
//
// Usage
// -----
//
//	log, err := logger.New(logger.Options{Root: root, Name: "web", Tee: tty})
//	if err != nil { … }
//	_ = logger.SetLevel(cfg.Log.Level) // once config is loaded
//
//	ctx = logger.WithContext(ctx, log.With("req_id", id))
//	logger.FromContext(ctx).Warnw("store failed", "err", err)
//
// Notes
// -----
// • ISO-8601 timestamps and lowercase levels.
// • Both cores share one AtomicLevel; SetLevel adjusts them together.
package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the sink.  Name defaults to "ingenius".
type Options struct {
	Root string
	Name string
	Tee  bool
}

var level = zap.NewAtomicLevelAt(zap.InfoLevel)

// New builds the logger and installs it via zap.ReplaceGlobals.
func New(o Options) (*zap.SugaredLogger, error) {
	if o.Name == "" {
		o.Name = "ingenius"
	}
	logDir := filepath.Join(o.Root, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, o.Name+"-"+time.Now().Format("2006-01-02")+".log"),
		MaxSize:    50, // MB
		MaxBackups: 7,
		MaxAge:     14, // days
		Compress:   true,
	})

	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileSink, level),
	}
	if o.Tee {
		console := encCfg
		console.EncodeLevel = zapcore.LowercaseColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.AddSync(os.Stdout), level))
	}

	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.ErrorOutput(fileSink))
	zap.ReplaceGlobals(z)

	s := z.Sugar()
	s.Infow("logger online", "name", o.Name, "tee", o.Tee)
	return s, nil
}

// SetLevel changes the minimum level of every logger built by New.
func SetLevel(name string) error {
	l, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	level.SetLevel(l)
	return nil
}

/*──────────────────────── request-scoped logger ───────────────────────────*/

type ctxKey struct{}

// WithContext returns a copy of ctx carrying l.
func WithContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by WithContext, or zap.S().
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok && l != nil {
		return l
	}
	return zap.S()
}

package overlay

import (
	"context"
	"log/slog"
	"time"
)

// EvaluatorLogEvent describes an evaluation attempt for logging.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Scope    string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

// DecodeLogEvent describes one document applied onto an overlay.
type DecodeLogEvent struct {
	Type     string
	Bytes    int
	Duration time.Duration
	Err      error
}

// DecodeLogger records decode events.
type DecodeLogger interface {
	LogDecode(DecodeLogEvent)
}

// DecodeLoggerFunc adapts a function to DecodeLogger.
type DecodeLoggerFunc func(DecodeLogEvent)

// LogDecode implements DecodeLogger.
func (f DecodeLoggerFunc) LogDecode(event DecodeLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvaluation(EvaluatorLogEvent) {}
func (noopLogger) LogDecode(DecodeLogEvent)        {}

// WithEvaluatorLogger attaches an evaluator logger to the overlay.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithDecodeLogger attaches a decode logger to the overlay.
func WithDecodeLogger(logger DecodeLogger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.decodeLogger = noopLogger{}
			return
		}
		cfg.decodeLogger = logger
	}
}

// SlogLogger satisfies both EvaluatorLogger and DecodeLogger by writing to a
// slog.Logger. Failures are logged at warn level, everything else at debug.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps logger; a nil logger uses slog.Default.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) LogEvaluation(event EvaluatorLogEvent) {
	attrs := []slog.Attr{
		slog.String("engine", event.Engine),
		slog.String("expr", event.Expr),
		slog.String("scope", event.Scope),
		slog.Duration("duration", event.Duration),
	}
	l.log("overlay evaluation", event.Err, attrs)
}

func (l *SlogLogger) LogDecode(event DecodeLogEvent) {
	attrs := []slog.Attr{
		slog.String("type", event.Type),
		slog.Int("bytes", event.Bytes),
		slog.Duration("duration", event.Duration),
	}
	l.log("overlay decode", event.Err, attrs)
}

func (l *SlogLogger) log(msg string, err error, attrs []slog.Attr) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func (o *Overlay[T]) evaluatorLogger() EvaluatorLogger {
	if o.cfg.logger != nil {
		return o.cfg.logger
	}
	return noopLogger{}
}

func (o *Overlay[T]) decodeLogger() DecodeLogger {
	if o.cfg.decodeLogger != nil {
		return o.cfg.decodeLogger
	}
	return noopLogger{}
}

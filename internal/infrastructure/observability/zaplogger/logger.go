package zaplogger

import (
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"go.uber.org/zap"
)

type logger struct{ l *zap.Logger }

// New adapts a zap logger to the observability.Logger port. A nil logger
// falls back to the process-global zap logger.
func New(l *zap.Logger, fixed ...observability.Field) observability.Logger {
	if l == nil {
		l = zap.L()
	}
	if len(fixed) > 0 {
		l = l.With(toZapFields(fixed)...)
	}
	return &logger{l: l}
}

func (z *logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return &logger{l: z.l}
	}
	return &logger{l: z.l.With(toZapFields(fields)...)}
}

func (z *logger) Debug(msg string, fields ...observability.Field) {
	z.l.Debug(msg, toZapFields(fields)...)
}
func (z *logger) Info(msg string, fields ...observability.Field) {
	z.l.Info(msg, toZapFields(fields)...)
}
func (z *logger) Warn(msg string, fields ...observability.Field) {
	z.l.Warn(msg, toZapFields(fields)...)
}
func (z *logger) Error(msg string, fields ...observability.Field) {
	z.l.Error(msg, toZapFields(fields)...)
}

func toZapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		switch v := f.Value.(type) {
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}

package service

import (
	"go.uber.org/zap"

	"github.com/notifyhub/notify-stream/internal/domain"
)

// Sink displays a newly arrived notification to the user.
type Sink interface {
	Show(n domain.Notification)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(domain.Notification)

func (f SinkFunc) Show(n domain.Notification) { f(n) }

// Sinks shows every notification on each sink in order.
type Sinks []Sink

func (s Sinks) Show(n domain.Notification) {
	for _, sink := range s {
		sink.Show(n)
	}
}

// LogSink renders notifications as log lines in the "<title>: <message>"
// form a desktop toast would show.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Show(n domain.Notification) {
	fields := []zap.Field{
		zap.String("notification_id", n.ID),
		zap.String("severity", string(n.Severity)),
		zap.Uint8("priority", n.Priority),
	}
	if n.HasAction() {
		fields = append(fields, zap.String("action_url", *n.ActionURL))
	}

	msg := n.Title + ": " + n.Body
	switch n.Severity {
	case domain.SeverityError:
		s.logger.Error(msg, fields...)
	case domain.SeverityWarning:
		s.logger.Warn(msg, fields...)
	default:
		s.logger.Info(msg, fields...)
	}
}

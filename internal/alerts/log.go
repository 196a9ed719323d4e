package alerts

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender sends alerts to the logger
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the alert
func (s *LogSender) Send(ctx context.Context, payload *AlertPayload) error {
	s.log.WithFields(logrus.Fields{
		"alert_id":   payload.ID,
		"alert_type": payload.Type,
		"severity":   payload.Severity,
		"address":    payload.Address,
		"message":    payload.Message,
	}).Info("Alert generated")
	return nil
}

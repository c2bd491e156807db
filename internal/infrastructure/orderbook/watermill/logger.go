package watermillorderbook

import (
	"github.com/ThreeDotsLabs/watermill"
	log "github.com/sirupsen/logrus"
)

// logger routes watermill logs to logrus.
type logger struct {
	entry *log.Entry
}

func NewLogger() watermill.LoggerAdapter {
	return &logger{log.WithField("module", "orderbook")}
}

func (l *logger) Error(msg string, err error, fields watermill.LogFields) {
	l.with(fields).WithError(err).Error(msg)
}

// watermill info logs are about subscriptions, too chatty for info level.
func (l *logger) Info(msg string, fields watermill.LogFields) {
	l.with(fields).Debug(msg)
}

func (l *logger) Debug(msg string, fields watermill.LogFields) {
	l.with(fields).Debug(msg)
}

func (l *logger) Trace(msg string, fields watermill.LogFields) {
	l.with(fields).Trace(msg)
}

func (l *logger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &logger{l.with(fields)}
}

func (l *logger) with(fields watermill.LogFields) *log.Entry {
	return l.entry.WithFields(log.Fields(fields))
}

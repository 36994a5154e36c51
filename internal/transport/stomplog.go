package transport

import (
	"go.uber.org/zap"
)

// stompLogger routes go-stomp's connection logging into zap. Without it the
// library writes to stderr, underneath the terminal UI.
type stompLogger struct {
	s *zap.SugaredLogger
}

func newStompLogger(log *zap.Logger) stompLogger {
	return stompLogger{s: log.Named("stomp").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l stompLogger) Debugf(format string, value ...interface{})   { l.s.Debugf(format, value...) }
func (l stompLogger) Infof(format string, value ...interface{})    { l.s.Infof(format, value...) }
func (l stompLogger) Warningf(format string, value ...interface{}) { l.s.Warnf(format, value...) }
func (l stompLogger) Errorf(format string, value ...interface{})   { l.s.Errorf(format, value...) }

func (l stompLogger) Debug(message string)   { l.s.Debug(message) }
func (l stompLogger) Info(message string)    { l.s.Info(message) }
func (l stompLogger) Warning(message string) { l.s.Warn(message) }
func (l stompLogger) Error(message string)   { l.s.Error(message) }

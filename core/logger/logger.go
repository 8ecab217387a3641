// Package logger defines the logging contract used by core packages.
// Implementations live in infra/logger.
package logger

// Logger is the logging handle passed explicitly to each component. A
// scheduler instance owns its own handle, so concurrent instances in one
// process never share hidden global log state; give each instance a
// distinct log name or a NopLogger.
type Logger interface {
	Debugf(format string, args ...any)
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

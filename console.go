package luadsp

import "github.com/sirupsen/logrus"

// Console is the host-provided diagnostics sink. Every failure path in the
// bridge emits exactly one human-readable message through it; informational
// notices (loads, rebinds) go to Post.
//
// Implementations must be cheap: a tripped unit calls Error once per fault,
// never once per sample.
type Console interface {
	// Post emits an informational message.
	Post(format string, args ...interface{})

	// Error emits a failure diagnostic.
	Error(format string, args ...interface{})
}

// logConsole is the default Console, routing to the structured logger.
type logConsole struct{}

func (logConsole) Post(format string, args ...interface{}) {
	logrus.Infof(format, args...)
}

func (logConsole) Error(format string, args ...interface{}) {
	logrus.Errorf(format, args...)
}

// DefaultConsole returns a Console backed by the package logger.
func DefaultConsole() Console {
	return logConsole{}
}

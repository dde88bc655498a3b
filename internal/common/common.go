package common

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// Recover logs a panic with its stack. Defer it at the top of any goroutine
// that must not take the process down.
func Recover(logger log.FieldLogger, msg string) {
	if err := recover(); err != nil {
		if logger == nil {
			logger = log.StandardLogger()
		}
		logger.WithField("panic", err).Errorf("%s\n%s", msg, debug.Stack())
	}
}

// WithRecover runs routine and swallows any panic it raises.
func WithRecover(logger log.FieldLogger, routine func(), msg string) {
	defer Recover(logger, msg)
	routine()
}

// RecoverError runs routine and reports a panic as its error, so an errgroup
// member that panics cancels its siblings instead of killing the process.
func RecoverError(logger log.FieldLogger, routine func() error, msg string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if logger == nil {
				logger = log.StandardLogger()
			}
			logger.WithField("panic", p).Errorf("%s\n%s", msg, debug.Stack())
			err = fmt.Errorf("%s: %v", msg, p)
		}
	}()
	return routine()
}

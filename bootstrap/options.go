package bootstrap

import (
	"os"
	"time"

	"github.com/kbukum/capdir/logger"
)

// Option configures the App during creation.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout time.Duration
	signals         []os.Signal
}

// WithLogger sets the application logger. By default it is built from the
// config's Logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithGracefulTimeout bounds the shutdown sequence.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.gracefulTimeout = d }
}

// WithSignals replaces the signals that trigger shutdown.
func WithSignals(sig ...os.Signal) Option {
	return func(o *appOptions) { o.signals = sig }
}

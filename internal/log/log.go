// Package log wraps a process-wide zap logger.
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	mu    sync.RWMutex
	sugar *zap.SugaredLogger
)

// Init builds the process logger. Debug selects zap's development config.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		l, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}
	set(l)
	return nil
}

// UseNop silences logging, mostly for tests.
func UseNop() {
	set(zap.NewNop())
}

func set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugar = l.Sugar()
}

// Logger returns the sugared logger, creating a production one on first use.
func Logger() *zap.SugaredLogger {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s != nil {
		return s
	}
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	set(l)
	return Logger()
}

// With returns a child logger carrying the given key/value pairs.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return Logger().With(keysAndValues...)
}

// Sync flushes buffered entries.
func Sync() {
	_ = Logger().Sync()
}

func Infof(template string, args ...interface{}) { Logger().Infof(template, args...) }

func Infow(msg string, keysAndValues ...interface{}) { Logger().Infow(msg, keysAndValues...) }

func Warnw(msg string, keysAndValues ...interface{}) { Logger().Warnw(msg, keysAndValues...) }

func Errorw(msg string, keysAndValues ...interface{}) { Logger().Errorw(msg, keysAndValues...) }

package logger

import "sync/atomic"

var defLogger atomic.Pointer[Logger]

func init() {
	l := NewSlog(InfoLevel, false)
	defLogger.Store(&l)
}

// GetLogger returns the package default logger. Configs of the bus, the
// peripheral and the master session start out with it.
func GetLogger() Logger {
	return *defLogger.Load()
}

// SetDefault replaces the package default logger. A nil logger is ignored.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defLogger.Store(&l)
}

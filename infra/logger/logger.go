package logger

import (
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/carbonlane/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.NopLogger

var level atomic.Int32

func init() { level.Store(int32(zerolog.InfoLevel)) }

// SetLevel sets the minimum level for loggers created afterwards. Unknown
// names leave the level unchanged and return false.
func SetLevel(name string) bool {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		return false
	}
	level.Store(int32(lvl))
	return true
}

// New returns a Logger for the given component. The output format is
// selected through the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}

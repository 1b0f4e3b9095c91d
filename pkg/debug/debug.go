// Package debug provides global debug tracing flags
package debug

import (
	"fmt"

	"github.com/teslashibe/go-vigil/internal/log"
)

// Enabled controls whether debug logging is active
var Enabled bool

// Analysis controls per-frame tracing of detector output, votes and timer
// state. Very verbose; use --trace-analysis to enable.
var Analysis bool

// Logf logs a formatted message only if debug mode is enabled
func Logf(format string, args ...any) {
	if Enabled {
		log.L().Debug(sprintf(format, args...))
	}
}

// Tracef logs a formatted message only if analysis tracing is enabled
func Tracef(format string, args ...any) {
	if Analysis {
		log.L().Debug(sprintf(format, args...), "trace", "analysis")
	}
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

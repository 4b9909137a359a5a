// Package logging builds the logr.Logger handed to every component.
//
// Output is key/value text produced by funcr. Debug detail is logged at
// V(1) and only shows up with -v; warnings are ordinary Info lines tagged
// severity=warning so they are visible at the default verbosity.
package logging

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// Debug is the verbosity used for progress detail.
const Debug = 1

// New returns a logger writing to w. Lines with a V-level above verbosity are dropped.
func New(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		_, _ = fmt.Fprintln(w, args)
	}, funcr.Options{
		LogTimestamp:    true,
		TimestampFormat: "2006-01-02 15:04:05",
		Verbosity:       verbosity,
	}).WithName("provision")
}

// Warn logs msg as a warning.
func Warn(log logr.Logger, msg string, keysAndValues ...any) {
	log.Info(msg, append([]any{"severity", "warning"}, keysAndValues...)...)
}

package cli

import (
	"io"

	glog "github.com/goliatone/go-logger/glog"
)

// newLogger builds the root console logger for a command. The returned
// BaseLogger is also the provider handing out named child loggers.
func newLogger(w io.Writer, verbose bool) *glog.BaseLogger {
	level := "info"
	if verbose {
		level = "debug"
	}
	return glog.NewLogger(
		glog.WithName("forwarder"),
		glog.WithLevel(level),
		glog.WithLoggerTypeConsole(),
		glog.WithWriter(w),
	)
}

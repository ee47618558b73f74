package logging

import (
	"io"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// New returns a logfmt logger writing to w, filtered at lvl and stamped
// with a UTC timestamp and the caller.
func New(w io.Writer, lvl string) log.Logger {
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(w)
		logger = level.NewFilter(logger, AllowLevel(lvl))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	return logger
}

// AllowLevel maps debug, info, warn, error and none to a filter option.
// Unknown names allow info.
func AllowLevel(s string) level.Option {
	switch strings.ToLower(s) {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	case "none":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}

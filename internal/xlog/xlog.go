// Package xlog builds the zerolog.Logger the demo CLI hands to
// provider.WithLogger and uses for its own startup/shutdown messages.
package xlog

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// New parses level (e.g. "debug", "info", "warn") and returns a
// timestamped logger writing to w, falling back to info level if level
// does not parse.
//
// Grounded on sonroyaalmerol-ldap-dav's internal/logging.New — the only
// example repo in the pack doing structured logging for a CalDAV system.
func New(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

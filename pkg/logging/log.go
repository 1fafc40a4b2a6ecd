package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func SetupLogger() {
	log.Logger = newConsoleLogger(os.Stderr)
}

func GetLogger() zerolog.Logger {
	return log.Logger
}

// NewSessionLogger returns a logger that appends rendered lines to buf so the
// console renderer can display a log tail. When mirror is non-nil (plain mode,
// no terminal UI) the same lines are also written there.
func NewSessionLogger(buf *Buffer, mirror io.Writer) zerolog.Logger {
	var out io.Writer = buf
	if mirror != nil {
		out = io.MultiWriter(buf, mirror)
	}
	return newConsoleLogger(out)
}

func newConsoleLogger(out io.Writer) zerolog.Logger {
	// No color: rendered lines end up in the session log buffer and we don't
	// want to deal with ANSI escape codes there.
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	writer.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	return zerolog.New(writer).With().Timestamp().Logger()
}

package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var (
	output io.Writer = console(os.Stderr)
	level            = zerolog.InfoLevel
)

// Configure selects the sink and minimum level for loggers created afterwards.
// format is "console" or "json".
func Configure(format, lvl string) error {
	parsed, err := zerolog.ParseLevel(strings.ToLower(lvl))
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	if parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	level = parsed

	switch format {
	case "json":
		output = os.Stderr
	case "", "console":
		output = console(os.Stderr)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// New returns a logger tagged with module
func New(module string) zerolog.Logger {
	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("module", module).
		Logger()
}

// Nop returns a disabled logger
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func console(w io.Writer) zerolog.ConsoleWriter {
	out := zerolog.ConsoleWriter{
		Out:           w,
		TimeFormat:    "15:04:05",
		PartsOrder:    []string{"time", "level", "module", "message"},
		FieldsExclude: []string{"module"},
	}

	out.FormatPartValueByName = func(i any, s string) string {
		if s == "module" && i != nil {
			return strings.ToUpper(fmt.Sprintf("%s", i))
		}
		return ""
	}

	return out
}

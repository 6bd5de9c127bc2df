// Package logging sets up zerolog for the server and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures the logger.
type Options struct {
	Level   string    // trace, debug, info, warn, error
	JSON    bool      // plain JSON lines instead of the console writer
	Output  io.Writer // defaults to stderr
	NoColor bool
}

// Setup builds the logger, installs it as the global zerolog logger and
// returns it.
func Setup(opts Options) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		if opts.Level != "" {
			fmt.Fprintf(os.Stderr, "invalid log level %q, defaulting to info\n", opts.Level)
		}
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = out
			w.TimeFormat = time.Kitchen
			w.NoColor = opts.NoColor
		})
	}

	logger := zerolog.New(out).With().Timestamp().Logger().Level(lvl)
	log.Logger = logger
	return logger
}

// RequestLogger logs every HTTP request through logger.
func RequestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogUserAgent: false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			switch {
			case v.Status >= 500:
				event = logger.Error()
			case v.Status >= 400:
				event = logger.Warn()
			}
			if v.Error != nil {
				event = event.Err(v.Error)
			}
			event.
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("client_ip", v.RemoteIP).
				Msg("HTTP request")
			return nil
		},
	})
}

package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/esimov/facemark/internal/config"
)

// Setup configures the global logger: console output on stderr, the configured
// level and, when enabled, a tee into the embedded Logdy UI.
func Setup(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	var (
		out      io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		logdyURL string
	)
	if cfg.LogdyEnabled {
		var w io.Writer
		w, logdyURL = StartLogdy(cfg)
		out = zerolog.MultiLevelWriter(out, w)
	}
	log.Logger = log.Output(out)

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if logdyURL != "" {
		log.Info().Str("url", logdyURL).Msg("Logdy UI available")
	}
}

// NewComponentLogger returns the global logger tagged with the component name.
func NewComponentLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"

	"github.com/esimov/facemark/internal/config"
)

func TestLogging_SetupParsesLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	Setup(&config.Config{LogLevel: "debug"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Setup(&config.Config{LogLevel: "loud"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestLogging_ComponentField(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	logger := NewComponentLogger("session")
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"session"`)
}

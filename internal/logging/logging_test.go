package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, zerolog.InfoLevel, true)
	defer Discard()

	log.Debug().Msg("hidden")
	log.Info().Str("component", "test").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"test"`)
	assert.Contains(t, out, `"message":"shown"`)
}

func TestDiscard(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, zerolog.DebugLevel, true)
	Discard()

	log.Info().Msg("gone")
	assert.Empty(t, buf.String())
}

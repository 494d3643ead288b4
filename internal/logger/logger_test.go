package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"":       zerolog.InfoLevel,
		"trace":  zerolog.TraceLevel,
		"DEBUG":  zerolog.DebugLevel,
		" warn ": zerolog.WarnLevel,
		"error":  zerolog.ErrorLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewZap(t *testing.T) {
	assert.False(t, NewZap(zerolog.InfoLevel).Core().Enabled(-1))
	assert.True(t, NewZap(zerolog.TraceLevel).Core().Enabled(-1))
}

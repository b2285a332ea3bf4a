package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)

	lvl, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetupWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linpredict.log")
	require.NoError(t, Setup(Options{Level: "warn", Path: path}))
	assert.False(t, Logger().Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, SetLevel("debug"))
	assert.True(t, Logger().Core().Enabled(zapcore.DebugLevel))

	assert.Error(t, SetLevel("nope"))
}

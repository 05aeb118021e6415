package common

import (
	"bytes"
	"log"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggersTwice(t *testing.T) {
	require.NoError(t, InitLoggers(ServerConfig{LogLevel: "info"}))
	assert.NotPanics(t, func() {
		require.NoError(t, InitLoggers(ServerConfig{LogLevel: "debug"}))
	})
	assert.Error(t, InitLoggers(ServerConfig{LogLevel: "loud"}))

	// back to the default for the other tests of the package
	require.NoError(t, InitLoggers(ServerConfig{LogLevel: "info"}))
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := CreateLogger("binding").(*dBindLogger)
	l.logger = log.New(&buf, "", 0)

	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "INFO  | binding         | shown 2")

	buf.Reset()
	l.SetLevel(logger.DEBUG)
	l.Debugf("now visible")
	assert.Contains(t, buf.String(), "DEBUG | binding         | now visible")

	buf.Reset()
	l.SetLevel(logger.ERROR)
	l.Warningf("dropped")
	l.Errorf("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

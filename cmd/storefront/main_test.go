package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	previous := log.GetLevel()
	t.Cleanup(func() { log.SetLevel(previous) })

	require.NoError(t, setupLogger("debug"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	require.NoError(t, setupLogger("WARN"))
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	err := setupLogger("chatty")
	require.Error(t, err)
	assert.Equal(t, log.WarnLevel, log.GetLevel(), "invalid level keeps the previous one")
}

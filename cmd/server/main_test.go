package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/landchat/internal/config"
)

func TestNewLogger_ProductionWritesJSON(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer

	logger := newLogger(&config.Config{Env: "production", LogLevel: "info"}, &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Str("port", "8000").Msg("starting landchat server")

	var entry map[string]any
	req.NoError(json.Unmarshal(buf.Bytes(), &entry))
	req.Equal("info", entry["level"])
	req.Equal("starting landchat server", entry["message"])
	req.Equal("8000", entry["port"])
	req.Contains(entry, "time")
}

func TestNewLogger_DevelopmentWritesConsole(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer

	logger := newLogger(&config.Config{Env: "development", LogLevel: "debug"}, &buf)
	logger.Debug().Msg("connected to Redis")

	req.Contains(buf.String(), "connected to Redis")
	req.False(json.Valid(buf.Bytes()))
}

package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubdesk/clubdesk/internal/app"
	"github.com/clubdesk/clubdesk/internal/notify"
	_ "github.com/clubdesk/clubdesk/testing"
)

func TestNewMailerFallsBackToLog(t *testing.T) {
	var buf bytes.Buffer
	m, err := newMailer(&app.Config{}, slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)
	assert.IsType(t, notify.LogNotifier{}, m)
	assert.Contains(t, buf.String(), "SMTP_HOST not set")
}

func TestWorkerSkipsStartupInTestMode(t *testing.T) {
	assert.NotPanics(t, main)
}

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/assist/internal/config"
	"github.com/ChamsBouzaiene/assist/internal/factory"
)

func setupCLI(t *testing.T) *factory.Runtime {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "")
	mgr = config.NewManagerAt(t.TempDir())
	var err error
	cfg, err = mgr.Load()
	require.NoError(t, err)
	logger = zap.NewNop()
	projectID = "cli-project"

	rt, err := openRuntime(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestRunChat(t *testing.T) {
	rt := setupCLI(t)
	input := strings.Join([]string{
		"Users need to export their reports as CSV files",
		"add this as a task",
		"yes",
		"/items",
		"/end",
		"/quit",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), rt, strings.NewReader(input), &out))

	text := out.String()
	assert.Contains(t, text, "Shall I go ahead?")
	assert.Contains(t, text, "Created work item")
	assert.Contains(t, text, "Users need to export their reports as CSV files")
	assert.Contains(t, text, "ended.")
	assert.Contains(t, text, "New session")
}

func TestOpenRuntime_RequiresProject(t *testing.T) {
	setupCLI(t)
	projectID = ""
	_, err := openRuntime(context.Background())
	assert.Error(t, err)
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestSearchRejectsUnknownSortMode(t *testing.T) {
	_, err := run(t, "search", "battery", "--sort", "alphabetical", "--env-file", "does-not-exist.env")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sort mode")
}

func TestSearchWithoutCredentialFails(t *testing.T) {
	for _, k := range []string{"API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "PATENTOS_PROVIDER"} {
		t.Setenv(k, "")
	}
	out, err := run(t, "search", "battery", "--env-file", "does-not-exist.env")
	require.Error(t, err)
	assert.True(t, strings.Contains(out, "Error: No API Key found in environment variables."), out)
}

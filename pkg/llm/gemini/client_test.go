// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package gemini

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixseek/mixseek/pkg/mixerr"
)

// writeADC writes a minimal authorized-user credential file and points
// GOOGLE_APPLICATION_CREDENTIALS at it.
func writeADC(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adc.json")
	creds := `{"type":"authorized_user","client_id":"x.apps.googleusercontent.com","client_secret":"secret","refresh_token":"token"}`
	require.NoError(t, os.WriteFile(path, []byte(creds), 0o600))
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_GENAI_USE_VERTEXAI", "")
	t.Setenv("GOOGLE_API_KEY", "")

	_, err := NewClient(Config{Model: "gemini-2.5-flash"})
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindAuthentication))
}

func TestNewClient_VertexRouting(t *testing.T) {
	t.Setenv("GOOGLE_GENAI_USE_VERTEXAI", "true")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "proj-123")
	t.Setenv("GOOGLE_CLOUD_LOCATION", "europe-west4")
	t.Setenv("GOOGLE_API_KEY", "")
	writeADC(t)

	c, err := NewClient(Config{Model: "gemini-2.5-flash"})
	require.NoError(t, err)

	assert.Equal(t, "https://europe-west4-aiplatform.googleapis.com/v1/projects/proj-123/locations/europe-west4/publishers/google/models", c.baseURL)
	assert.Empty(t, c.apiKey)
}

func TestNewClient_VertexDefaultLocation(t *testing.T) {
	t.Setenv("GOOGLE_GENAI_USE_VERTEXAI", "1")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "proj-123")
	t.Setenv("GOOGLE_CLOUD_LOCATION", "")
	writeADC(t)

	c, err := NewClient(Config{Model: "gemini-2.5-flash"})
	require.NoError(t, err)
	assert.Contains(t, c.baseURL, "us-central1-aiplatform.googleapis.com")
}

func TestNewClient_VertexRequiresProject(t *testing.T) {
	t.Setenv("GOOGLE_GENAI_USE_VERTEXAI", "true")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	_, err := NewClient(Config{Model: "gemini-2.5-flash"})
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindConfiguration))
}

func TestNewClient_VertexMissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_GENAI_USE_VERTEXAI", "true")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "proj-123")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filepath.Join(t.TempDir(), "missing.json"))

	_, err := NewClient(Config{Model: "gemini-2.5-flash"})
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindAuthentication))
}

func TestFunctionNameFromID(t *testing.T) {
	assert.Equal(t, "delegate_to_writer", functionNameFromID("delegate_to_writer-1a2b3c4d"))
	assert.Equal(t, "plain", functionNameFromID("plain"))
}

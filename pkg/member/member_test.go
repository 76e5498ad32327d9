// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package member

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/types"
)

func TestNew_UnknownType(t *testing.T) {
	_, err := New(&config.MemberSpec{AgentName: "x", AgentType: "telepathy"})
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindConfiguration))
}

func TestNew_MissingCredentialsSurfaceAtConstruction(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New(&config.MemberSpec{
		AgentName: "researcher",
		AgentType: "plain",
		Agent:     config.AgentConfig{Model: "claude-sonnet-4-5"},
	})
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindAuthentication))
}

func TestNew_UnsupportedCapabilityCombination(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	_, err := New(&config.MemberSpec{
		AgentName: "searcher",
		AgentType: "web-search",
		Agent:     config.AgentConfig{Model: "gpt-4o"},
	})
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindProviderPermanent))
}

func writePlugin(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell plugin fixtures are posix-only")
	}
	path := filepath.Join(t.TempDir(), "plugin.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestCustomMember_Success(t *testing.T) {
	path := writePlugin(t, `read line; echo '{"content":"plugin says hi"}'`)

	m, err := New(&config.MemberSpec{
		AgentName:  "plug",
		AgentType:  "custom",
		PluginPath: path,
	})
	require.NoError(t, err)
	assert.Equal(t, "custom", m.Type())

	out, usage, err := m.Run(context.Background(), "do a thing")
	require.NoError(t, err)
	assert.Equal(t, "plugin says hi", out)
	assert.Equal(t, types.Usage{Requests: 1}, usage)
}

func TestCustomMember_ErrorField(t *testing.T) {
	path := writePlugin(t, `read line; echo '{"content":"","error":"boom"}'`)

	m, err := New(&config.MemberSpec{AgentName: "plug", AgentType: "custom", PluginPath: path})
	require.NoError(t, err)

	_, _, err = m.Run(context.Background(), "task")
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindProviderPermanent))
	assert.Contains(t, err.Error(), "boom")
}

func TestCustomMember_MalformedOutput(t *testing.T) {
	path := writePlugin(t, `read line; echo 'not json'`)

	m, err := New(&config.MemberSpec{AgentName: "plug", AgentType: "custom", PluginPath: path})
	require.NoError(t, err)

	_, _, err = m.Run(context.Background(), "task")
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindProviderPermanent))
}

func TestCustomMember_NonzeroExit(t *testing.T) {
	path := writePlugin(t, `read line; exit 3`)

	m, err := New(&config.MemberSpec{AgentName: "plug", AgentType: "custom", PluginPath: path})
	require.NoError(t, err)

	_, _, err = m.Run(context.Background(), "task")
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindProviderPermanent))
}

func TestCustomMember_MissingExecutable(t *testing.T) {
	m, err := New(&config.MemberSpec{
		AgentName:  "plug",
		AgentType:  "custom",
		PluginPath: filepath.Join(t.TempDir(), "nope"),
	})
	require.NoError(t, err)

	_, _, err = m.Run(context.Background(), "task")
	require.Error(t, err)
}

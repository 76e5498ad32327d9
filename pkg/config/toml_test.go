// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixseek/mixseek/pkg/mixerr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTeamConfig_Inline(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "team.toml", `
[team]
team_id = "team-a"
team_name = "Team A"

[team.leader]
model = "anthropic:claude-sonnet-4-5"
temperature = 0.7
system_instruction = "lead well"

[[team.members]]
agent_name = "researcher"
agent_type = "web-search"
tool_description = "researches the web"
model = "gemini:gemini-2.5-flash"

[[team.members]]
agent_name = "writer"
agent_type = "plain"
tool_name = "ask_writer"
tool_description = "writes prose"
model = "gpt-4o"
`)

	team, err := LoadTeamConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "team-a", team.TeamID)
	assert.Equal(t, "anthropic:claude-sonnet-4-5", team.Leader.Model)
	require.NotNil(t, team.Leader.Temperature)
	assert.Equal(t, 0.7, *team.Leader.Temperature)
	require.Len(t, team.Members, 2)
	assert.Equal(t, "delegate_to_researcher", team.Members[0].ToolName)
	assert.Equal(t, "ask_writer", team.Members[1].ToolName)

	// Defaults to the member count when unset.
	assert.Equal(t, 2, team.MaxConcurrentMembers)
}

func TestLoadTeamConfig_MemberReference(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "members")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	writeFile(t, sub, "researcher.toml", `
agent_name = "researcher"
agent_type = "plain"
tool_description = "researches"
model = "gpt-4o"
`)
	path := writeFile(t, dir, "team.toml", `
[team]
team_id = "team-a"
team_name = "Team A"

[team.leader]
model = "claude-sonnet-4-5"

[[team.members]]
config = "members/researcher.toml"
`)

	team, err := LoadTeamConfig(path)
	require.NoError(t, err)
	require.Len(t, team.Members, 1)
	assert.Equal(t, "researcher", team.Members[0].AgentName)
	assert.Equal(t, "gpt-4o", team.Members[0].Agent.Model)
}

func TestLoadTeamConfig_ReferenceCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.toml", `config = "b.toml"`)
	writeFile(t, dir, "b.toml", `config = "a.toml"`)
	path := writeFile(t, dir, "team.toml", `
[team]
team_id = "team-a"
team_name = "Team A"

[team.leader]
model = "claude-sonnet-4-5"

[[team.members]]
config = "a.toml"
`)

	_, err := LoadTeamConfig(path)
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindConfiguration))
	assert.Contains(t, err.Error(), "cycle")
}

func TestLoadTeamConfig_MissingFile(t *testing.T) {
	_, err := LoadTeamConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindConfiguration))
}

func TestLoadEvaluatorConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "evaluator.toml", `
default_model = "claude-sonnet-4-5"
timeout_seconds = 30

[[metrics]]
name = "Coverage"
weight = 0.6
system_instruction = "judge coverage"

[[metrics]]
name = "Relevance"
weight = 0.4
model = "gpt-4o"
`)

	cfg, err := LoadEvaluatorConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5", cfg.DefaultModel)
	assert.Equal(t, 3, cfg.MaxRetries) // default
	assert.Equal(t, 30.0, cfg.Timeout.Seconds())
	require.Len(t, cfg.Metrics, 2)
	assert.Equal(t, 0.6, *cfg.Metrics[0].Weight)
	assert.Equal(t, "gpt-4o", cfg.Metrics[1].Model)
}

func TestLoadEvaluatorConfig_BadWeights(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "evaluator.toml", `
default_model = "m"

[[metrics]]
name = "A"
weight = 0.9

[[metrics]]
name = "B"
weight = 0.3
`)
	_, err := LoadEvaluatorConfig(path)
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindConfiguration))
}

func TestLoadJudgmentConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "judgment.toml", `model = "claude-sonnet-4-5"`)

	cfg, err := LoadJudgmentConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 60.0, cfg.Timeout.Seconds())
	assert.Equal(t, 0.0, cfg.Temperature)
}

func TestLoadPromptBuilderConfig_MissingFileIsEmpty(t *testing.T) {
	cfg, err := LoadPromptBuilderConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Template)
}

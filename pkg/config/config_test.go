// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixseek/mixseek/pkg/mixerr"
)

func validSettings() *OrchestratorSettings {
	return &OrchestratorSettings{
		WorkspacePath:     "/tmp/ws",
		PerTeamDeadline:   300 * time.Second,
		MaxRounds:         3,
		MinRounds:         1,
		SubmissionTimeout: 120 * time.Second,
		JudgmentTimeout:   60 * time.Second,
		TeamConfigPaths:   []string{"team.toml"},
	}
}

func TestOrchestratorSettings_Validate(t *testing.T) {
	require.NoError(t, validSettings().Validate())

	tests := []struct {
		name   string
		mutate func(*OrchestratorSettings)
	}{
		{"missing workspace", func(s *OrchestratorSettings) { s.WorkspacePath = "" }},
		{"max rounds over ceiling", func(s *OrchestratorSettings) { s.MaxRounds = 11 }},
		{"max rounds zero", func(s *OrchestratorSettings) { s.MaxRounds = 0 }},
		{"min above max", func(s *OrchestratorSettings) { s.MinRounds = 4 }},
		{"min zero", func(s *OrchestratorSettings) { s.MinRounds = 0 }},
		{"no deadline", func(s *OrchestratorSettings) { s.PerTeamDeadline = 0 }},
		{"no teams", func(s *OrchestratorSettings) { s.TeamConfigPaths = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.True(t, mixerr.Is(err, mixerr.KindConfiguration))
		})
	}
}

func TestAgentConfig_Validate(t *testing.T) {
	a := &AgentConfig{Model: "claude-sonnet-4-5"}
	require.NoError(t, a.Validate("test"))

	a.Model = ""
	require.Error(t, a.Validate("test"))

	bad := 2.5
	a = &AgentConfig{Model: "m", Temperature: &bad}
	require.Error(t, a.Validate("test"))
}

func validTeam() *TeamConfig {
	return &TeamConfig{
		TeamID:               "team-a",
		TeamName:             "Team A",
		MaxConcurrentMembers: 2,
		Leader:               AgentConfig{Model: "claude-sonnet-4-5"},
		Members: []MemberSpec{
			{AgentName: "researcher", AgentType: "plain", ToolDescription: "researches", Agent: AgentConfig{Model: "gpt-4o"}},
			{AgentName: "writer", AgentType: "plain", ToolDescription: "writes", Agent: AgentConfig{Model: "gpt-4o"}},
		},
	}
}

func TestTeamConfig_Validate(t *testing.T) {
	team := validTeam()
	require.NoError(t, team.Validate())

	// Tool names defaulted from agent names.
	assert.Equal(t, "delegate_to_researcher", team.Members[0].ToolName)
	assert.Equal(t, "delegate_to_writer", team.Members[1].ToolName)
}

func TestTeamConfig_DuplicateAgentName(t *testing.T) {
	team := validTeam()
	team.Members[1].AgentName = "researcher"
	err := team.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate agent_name")
}

func TestTeamConfig_DuplicateToolName(t *testing.T) {
	team := validTeam()
	team.Members[0].ToolName = "shared"
	team.Members[1].ToolName = "shared"
	err := team.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tool_name")
}

func TestTeamConfig_TooManyMembers(t *testing.T) {
	team := validTeam()
	team.Members = nil
	for i := 0; i < MaxTeamMembers+1; i++ {
		team.Members = append(team.Members, MemberSpec{
			AgentName:       string(rune('a' + i%26)),
			AgentType:       "plain",
			ToolDescription: "x",
			ToolName:        "t" + string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Agent:           AgentConfig{Model: "m"},
		})
	}
	require.Error(t, team.Validate())
}

func TestMemberSpec_CustomRequiresPluginPath(t *testing.T) {
	m := &MemberSpec{AgentName: "plug", AgentType: "custom", ToolDescription: "d"}
	require.Error(t, m.Validate())

	m.PluginPath = "/usr/local/bin/plug"
	require.NoError(t, m.Validate())
}

func TestMemberSpec_MissingToolDescription(t *testing.T) {
	m := &MemberSpec{AgentName: "a", AgentType: "plain", Agent: AgentConfig{Model: "m"}}
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool_description")
}

func evalConfig(weights ...float64) *EvaluatorConfig {
	cfg := &EvaluatorConfig{
		DefaultModel: "claude-sonnet-4-5",
		Metrics: []MetricSpec{
			{Name: "ClarityCoherence"},
			{Name: "Coverage"},
			{Name: "Relevance"},
		},
	}
	for i := range weights {
		w := weights[i]
		cfg.Metrics[i].Weight = &w
	}
	return cfg
}

func TestEvaluatorConfig_WeightRules(t *testing.T) {
	// All absent: uniform.
	cfg := evalConfig()
	require.NoError(t, cfg.Validate())
	for _, w := range cfg.EffectiveWeights() {
		assert.InDelta(t, 1.0/3.0, w, 1e-9)
	}

	// All present, summing to 1.
	cfg = evalConfig(0.5, 0.3, 0.2)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []float64{0.5, 0.3, 0.2}, cfg.EffectiveWeights())

	// Tolerance honored.
	cfg = evalConfig(0.5, 0.3, 0.2004)
	require.NoError(t, cfg.Validate())

	// Sum off by more than the tolerance.
	cfg = evalConfig(0.5, 0.3, 0.3)
	require.Error(t, cfg.Validate())

	// Partial weights are an error.
	cfg = evalConfig()
	half := 0.5
	cfg.Metrics[0].Weight = &half
	require.Error(t, cfg.Validate())
}

func TestEvaluatorConfig_DuplicateMetric(t *testing.T) {
	cfg := evalConfig()
	cfg.Metrics[1].Name = "ClarityCoherence"
	require.Error(t, cfg.Validate())
}

func TestJudgmentConfig_Validate(t *testing.T) {
	cfg := &JudgmentConfig{Model: "claude-sonnet-4-5"}
	require.NoError(t, cfg.Validate())

	cfg.Model = ""
	require.Error(t, cfg.Validate())
}

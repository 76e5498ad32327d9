// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config produces validated, typed configuration records for the
// execution kernel. Resolution is layered (CLI > env > TOML > default)
// with per-field provenance. Required fields are errors when missing;
// there are no implicit fallbacks.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/mixseek/mixseek/pkg/mixerr"
)

// Limits on orchestrator round bounds.
const (
	MinRoundsFloor = 1
	MaxRoundsCeil  = 10
	MaxTeamMembers = 50
)

// OrchestratorSettings is the validated top-level execution configuration.
type OrchestratorSettings struct {
	WorkspacePath     string
	PerTeamDeadline   time.Duration
	MaxRounds         int
	MinRounds         int
	SubmissionTimeout time.Duration
	JudgmentTimeout   time.Duration

	// TeamConfigPaths are resolved paths of the team TOML files.
	TeamConfigPaths []string

	EvaluatorConfigPath string
	JudgmentConfigPath  string
}

// Validate checks the settings invariants.
func (s *OrchestratorSettings) Validate() error {
	const op = "config.orchestrator"
	if s.WorkspacePath == "" {
		return mixerr.New(mixerr.KindConfiguration, op, "workspace path is required (set --workspace or MIXSEEK_WORKSPACE)")
	}
	if s.MaxRounds < MinRoundsFloor || s.MaxRounds > MaxRoundsCeil {
		return mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("max_rounds must be in [%d, %d], got %d", MinRoundsFloor, MaxRoundsCeil, s.MaxRounds))
	}
	if s.MinRounds < MinRoundsFloor || s.MinRounds > s.MaxRounds {
		return mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("min_rounds must be in [1, max_rounds=%d], got %d", s.MaxRounds, s.MinRounds))
	}
	if s.PerTeamDeadline <= 0 {
		return mixerr.New(mixerr.KindConfiguration, op, "timeout_per_team_seconds must be positive")
	}
	if s.SubmissionTimeout <= 0 {
		return mixerr.New(mixerr.KindConfiguration, op, "submission_timeout_seconds must be positive")
	}
	if s.JudgmentTimeout <= 0 {
		return mixerr.New(mixerr.KindConfiguration, op, "judgment_timeout_seconds must be positive")
	}
	if len(s.TeamConfigPaths) == 0 {
		return mixerr.New(mixerr.KindConfiguration, op, "at least one team is required")
	}
	return nil
}

// AgentConfig configures one LLM-backed agent (leader, evaluator metric,
// or continuation judge).
type AgentConfig struct {
	// Model is the explicit model id, "provider:model" or a bare model
	// name whose provider is inferred by prefix. Never defaulted.
	Model string

	Temperature       *float64
	MaxTokens         int
	SystemInstruction string
}

// Validate checks the agent invariants.
func (a *AgentConfig) Validate(op string) error {
	if a.Model == "" {
		return mixerr.New(mixerr.KindConfiguration, op, "model is required; there is no hidden default model id")
	}
	if a.Temperature != nil && (*a.Temperature < 0 || *a.Temperature > 2) {
		return mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("temperature must be in [0, 2], got %g", *a.Temperature))
	}
	if a.MaxTokens < 0 {
		return mixerr.New(mixerr.KindConfiguration, op, "max_tokens must be non-negative")
	}
	return nil
}

// MemberSpec configures one team member agent.
type MemberSpec struct {
	AgentName string

	// AgentType is one of plain, web-search, code-exec, custom.
	AgentType string

	// ToolName defaults to delegate_to_{agent_name}.
	ToolName string

	// ToolDescription is what the leader's model uses to choose members.
	// Required.
	ToolDescription string

	// PluginPath points at the executable for custom members.
	PluginPath string

	Agent AgentConfig
}

// KnownAgentTypes lists the supported member agent types.
var KnownAgentTypes = map[string]bool{
	"plain":      true,
	"web-search": true,
	"code-exec":  true,
	"custom":     true,
}

// Validate checks the member invariants.
func (m *MemberSpec) Validate() error {
	op := fmt.Sprintf("config.member[%s]", m.AgentName)
	if m.AgentName == "" {
		return mixerr.New(mixerr.KindConfiguration, "config.member", "agent_name is required")
	}
	if !KnownAgentTypes[m.AgentType] {
		return mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("unknown agent_type %q", m.AgentType))
	}
	if m.ToolDescription == "" {
		return mixerr.New(mixerr.KindConfiguration, op, "tool_description is required; the leader selects members by it")
	}
	if m.AgentType == "custom" {
		if m.PluginPath == "" {
			return mixerr.New(mixerr.KindConfiguration, op, "plugin_path is required for custom members")
		}
		return nil
	}
	return m.Agent.Validate(op)
}

// TeamConfig is a fully materialized team: leader plus members, with all
// member config references resolved eagerly at configuration time.
type TeamConfig struct {
	TeamID   string
	TeamName string

	// MaxConcurrentMembers bounds the leader's tool fan-out within a
	// single round. Informational; actual concurrency follows the
	// leader's emitted plan.
	MaxConcurrentMembers int

	Leader  AgentConfig
	Members []MemberSpec
}

// Validate checks the team invariants.
func (t *TeamConfig) Validate() error {
	op := fmt.Sprintf("config.team[%s]", t.TeamID)
	if t.TeamID == "" {
		return mixerr.New(mixerr.KindConfiguration, "config.team", "team_id is required")
	}
	if t.TeamName == "" {
		return mixerr.New(mixerr.KindConfiguration, op, "team_name is required")
	}
	if t.MaxConcurrentMembers <= 0 {
		return mixerr.New(mixerr.KindConfiguration, op, "max_concurrent_members must be positive")
	}
	if err := t.Leader.Validate(op + ".leader"); err != nil {
		return err
	}
	if len(t.Members) > MaxTeamMembers {
		return mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("at most %d members are supported, got %d", MaxTeamMembers, len(t.Members)))
	}
	seen := make(map[string]bool, len(t.Members))
	toolNames := make(map[string]bool, len(t.Members))
	for i := range t.Members {
		m := &t.Members[i]
		if m.ToolName == "" {
			m.ToolName = "delegate_to_" + m.AgentName
		}
		if err := m.Validate(); err != nil {
			return err
		}
		if seen[m.AgentName] {
			return mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("duplicate agent_name %q", m.AgentName))
		}
		if toolNames[m.ToolName] {
			return mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("duplicate tool_name %q", m.ToolName))
		}
		seen[m.AgentName] = true
		toolNames[m.ToolName] = true
	}
	return nil
}

// MetricSpec configures one evaluator metric. Any unset field falls back
// to the evaluator defaults.
type MetricSpec struct {
	Name              string
	Weight            *float64
	Model             string
	SystemInstruction string
	Temperature       *float64
	MaxTokens         int
}

// EvaluatorConfig configures the LLM-as-judge evaluator.
type EvaluatorConfig struct {
	DefaultModel string
	Temperature  float64
	MaxTokens    int
	MaxRetries   int
	Timeout      time.Duration
	Metrics      []MetricSpec
}

// WeightSumTolerance is the permitted deviation of explicit metric
// weights from 1.0.
const WeightSumTolerance = 0.001

// Validate checks the evaluator invariants, including the weight-sum
// rule: weights are either all present and summing to 1±0.001, or all
// absent (assigned uniformly).
func (e *EvaluatorConfig) Validate() error {
	const op = "config.evaluator"
	if e.DefaultModel == "" {
		return mixerr.New(mixerr.KindConfiguration, op, "default_model is required")
	}
	if len(e.Metrics) == 0 {
		return mixerr.New(mixerr.KindConfiguration, op, "at least one metric is required")
	}
	if e.MaxRetries < 0 {
		return mixerr.New(mixerr.KindConfiguration, op, "max_retries must be non-negative")
	}
	withWeight := 0
	sum := 0.0
	names := make(map[string]bool, len(e.Metrics))
	for _, m := range e.Metrics {
		if m.Name == "" {
			return mixerr.New(mixerr.KindConfiguration, op, "metric name is required")
		}
		if names[m.Name] {
			return mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("duplicate metric %q", m.Name))
		}
		names[m.Name] = true
		if m.Weight != nil {
			if *m.Weight < 0 || *m.Weight > 1 {
				return mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("metric %q weight must be in [0, 1], got %g", m.Name, *m.Weight))
			}
			withWeight++
			sum += *m.Weight
		}
	}
	switch withWeight {
	case 0:
		// Uniform assignment.
	case len(e.Metrics):
		if math.Abs(sum-1.0) > WeightSumTolerance {
			return mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("metric weights must sum to 1±%g, got %g", WeightSumTolerance, sum))
		}
	default:
		return mixerr.New(mixerr.KindConfiguration, op, "metric weights must be all present or all absent")
	}
	return nil
}

// EffectiveWeights returns the per-metric weights, uniform when none are
// configured. Call Validate first.
func (e *EvaluatorConfig) EffectiveWeights() []float64 {
	weights := make([]float64, len(e.Metrics))
	uniform := 1.0 / float64(len(e.Metrics))
	for i, m := range e.Metrics {
		if m.Weight != nil {
			weights[i] = *m.Weight
		} else {
			weights[i] = uniform
		}
	}
	return weights
}

// JudgmentConfig configures the continuation judge.
type JudgmentConfig struct {
	Model             string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	SystemInstruction string
}

// Validate checks the judgment invariants.
func (j *JudgmentConfig) Validate() error {
	const op = "config.judgment"
	if j.Model == "" {
		return mixerr.New(mixerr.KindConfiguration, op, "model is required")
	}
	if j.Timeout < 0 {
		return mixerr.New(mixerr.KindConfiguration, op, "timeout_seconds must be non-negative")
	}
	return nil
}

// PromptBuilderConfig configures round prompt assembly.
type PromptBuilderConfig struct {
	// Template is the round template with {{ placeholder }} markers. A
	// missing prompt_builder.toml uses the built-in default.
	Template string

	// ImprovementDirective is appended to every round-2+ prompt.
	ImprovementDirective string
}

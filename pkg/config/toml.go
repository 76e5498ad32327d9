// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mixseek/mixseek/pkg/mixerr"
)

// rawTeamFile mirrors team-*.toml.
type rawTeamFile struct {
	Team rawTeam `toml:"team"`
}

type rawTeam struct {
	TeamID               string      `toml:"team_id"`
	TeamName             string      `toml:"team_name"`
	MaxConcurrentMembers int         `toml:"max_concurrent_members"`
	Leader               rawAgent    `toml:"leader"`
	Members              []rawMember `toml:"members"`
}

type rawAgent struct {
	Model             string   `toml:"model"`
	Temperature       *float64 `toml:"temperature"`
	MaxTokens         int      `toml:"max_tokens"`
	SystemInstruction string   `toml:"system_instruction"`
}

// rawMember is either an inline member definition or a reference to a
// member agent TOML via the config field.
type rawMember struct {
	Config string `toml:"config"`

	AgentName         string   `toml:"agent_name"`
	AgentType         string   `toml:"agent_type"`
	ToolName          string   `toml:"tool_name"`
	ToolDescription   string   `toml:"tool_description"`
	PluginPath        string   `toml:"plugin_path"`
	Model             string   `toml:"model"`
	Temperature       *float64 `toml:"temperature"`
	MaxTokens         int      `toml:"max_tokens"`
	SystemInstruction string   `toml:"system_instruction"`
}

func (r *rawMember) toSpec() MemberSpec {
	return MemberSpec{
		AgentName:       r.AgentName,
		AgentType:       r.AgentType,
		ToolName:        r.ToolName,
		ToolDescription: r.ToolDescription,
		PluginPath:      r.PluginPath,
		Agent: AgentConfig{
			Model:             r.Model,
			Temperature:       r.Temperature,
			MaxTokens:         r.MaxTokens,
			SystemInstruction: r.SystemInstruction,
		},
	}
}

func decodeTOML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return mixerr.Wrapf(mixerr.KindConfiguration, "config.load", err, "reading %s", path)
	}
	if err := toml.Unmarshal(data, v); err != nil {
		return mixerr.Wrapf(mixerr.KindConfiguration, "config.load", err, "parsing %s", path)
	}
	return nil
}

// LoadTeamConfig reads a team TOML, resolves member config references
// eagerly (relative to the referencing file) and validates the
// materialized team. Reference cycles are a configuration error.
func LoadTeamConfig(path string) (*TeamConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, mixerr.Wrapf(mixerr.KindConfiguration, "config.team", err, "resolving %s", path)
	}

	var raw rawTeamFile
	if err := decodeTOML(abs, &raw); err != nil {
		return nil, err
	}

	team := &TeamConfig{
		TeamID:               raw.Team.TeamID,
		TeamName:             raw.Team.TeamName,
		MaxConcurrentMembers: raw.Team.MaxConcurrentMembers,
		Leader: AgentConfig{
			Model:             raw.Team.Leader.Model,
			Temperature:       raw.Team.Leader.Temperature,
			MaxTokens:         raw.Team.Leader.MaxTokens,
			SystemInstruction: raw.Team.Leader.SystemInstruction,
		},
	}
	if team.MaxConcurrentMembers == 0 {
		team.MaxConcurrentMembers = len(raw.Team.Members)
	}
	if team.MaxConcurrentMembers == 0 {
		team.MaxConcurrentMembers = 1
	}

	for i, m := range raw.Team.Members {
		spec, err := resolveMember(&m, filepath.Dir(abs), map[string]bool{abs: true})
		if err != nil {
			return nil, mixerr.Wrapf(mixerr.KindConfiguration, "config.team", err, "member %d of %s", i, path)
		}
		team.Members = append(team.Members, *spec)
	}

	if err := team.Validate(); err != nil {
		return nil, err
	}
	return team, nil
}

// resolveMember follows config references until an inline definition is
// reached. visited guards against reference cycles.
func resolveMember(m *rawMember, dir string, visited map[string]bool) (*MemberSpec, error) {
	if m.Config == "" {
		spec := m.toSpec()
		return &spec, nil
	}

	ref := m.Config
	if !filepath.IsAbs(ref) {
		ref = filepath.Join(dir, ref)
	}
	ref, err := filepath.Abs(ref)
	if err != nil {
		return nil, err
	}
	if visited[ref] {
		return nil, fmt.Errorf("config reference cycle through %s", ref)
	}
	visited[ref] = true

	var next rawMember
	if err := decodeTOML(ref, &next); err != nil {
		return nil, err
	}
	return resolveMember(&next, filepath.Dir(ref), visited)
}

// rawEvaluatorFile mirrors evaluator.toml.
type rawEvaluatorFile struct {
	DefaultModel   string      `toml:"default_model"`
	Temperature    float64     `toml:"temperature"`
	MaxTokens      int         `toml:"max_tokens"`
	MaxRetries     *int        `toml:"max_retries"`
	TimeoutSeconds int         `toml:"timeout_seconds"`
	Metrics        []rawMetric `toml:"metrics"`
}

type rawMetric struct {
	Name              string   `toml:"name"`
	Weight            *float64 `toml:"weight"`
	Model             string   `toml:"model"`
	SystemInstruction string   `toml:"system_instruction"`
	Temperature       *float64 `toml:"temperature"`
	MaxTokens         int      `toml:"max_tokens"`
}

// LoadEvaluatorConfig reads and validates evaluator.toml.
func LoadEvaluatorConfig(path string) (*EvaluatorConfig, error) {
	var raw rawEvaluatorFile
	if err := decodeTOML(path, &raw); err != nil {
		return nil, err
	}

	cfg := &EvaluatorConfig{
		DefaultModel: raw.DefaultModel,
		Temperature:  raw.Temperature,
		MaxTokens:    raw.MaxTokens,
		MaxRetries:   3,
		Timeout:      time.Duration(raw.TimeoutSeconds) * time.Second,
	}
	if raw.MaxRetries != nil {
		cfg.MaxRetries = *raw.MaxRetries
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	for _, m := range raw.Metrics {
		cfg.Metrics = append(cfg.Metrics, MetricSpec{
			Name:              m.Name,
			Weight:            m.Weight,
			Model:             m.Model,
			SystemInstruction: m.SystemInstruction,
			Temperature:       m.Temperature,
			MaxTokens:         m.MaxTokens,
		})
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// rawJudgmentFile mirrors judgment.toml.
type rawJudgmentFile struct {
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	SystemInstruction string  `toml:"system_instruction"`
}

// LoadJudgmentConfig reads and validates judgment.toml.
func LoadJudgmentConfig(path string) (*JudgmentConfig, error) {
	var raw rawJudgmentFile
	if err := decodeTOML(path, &raw); err != nil {
		return nil, err
	}
	cfg := &JudgmentConfig{
		Model:             raw.Model,
		Temperature:       raw.Temperature,
		MaxTokens:         raw.MaxTokens,
		Timeout:           time.Duration(raw.TimeoutSeconds) * time.Second,
		SystemInstruction: raw.SystemInstruction,
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// rawPromptBuilderFile mirrors prompt_builder.toml.
type rawPromptBuilderFile struct {
	Template             string `toml:"template"`
	ImprovementDirective string `toml:"improvement_directive"`
}

// LoadPromptBuilderConfig reads prompt_builder.toml. A missing file is not
// an error: the built-in default template applies.
func LoadPromptBuilderConfig(path string) (*PromptBuilderConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &PromptBuilderConfig{}, nil
	}
	var raw rawPromptBuilderFile
	if err := decodeTOML(path, &raw); err != nil {
		return nil, err
	}
	return &PromptBuilderConfig{
		Template:             raw.Template,
		ImprovementDirective: raw.ImprovementDirective,
	}, nil
}

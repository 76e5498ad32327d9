// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mixseek/mixseek/pkg/mixerr"
)

// Source records where a resolved field's value came from.
type Source string

const (
	SourceCLI     Source = "cli"
	SourceEnv     Source = "env"
	SourceTOML    Source = "toml"
	SourceDefault Source = "default"
)

// Provenance maps settings field names to their value source.
type Provenance map[string]Source

// EnvPrefix is the canonical environment variable prefix. Nested sections
// use a double underscore separator: MIXSEEK_SECTION__FIELD.
const EnvPrefix = "MIXSEEK"

// EnvWorkspace is the canonical workspace variable when the CLI flag is
// not set.
const EnvWorkspace = "MIXSEEK_WORKSPACE"

// CLIOverrides carries explicitly-set CLI flag values. Nil pointers mean
// the flag was not provided.
type CLIOverrides struct {
	Workspace                string
	TimeoutPerTeamSeconds    *int
	MaxRounds                *int
	MinRounds                *int
	SubmissionTimeoutSeconds *int
	JudgmentTimeoutSeconds   *int
}

// Defaults for optional orchestrator fields.
const (
	DefaultPerTeamTimeoutSeconds    = 300
	DefaultMaxRounds                = 3
	DefaultMinRounds                = 1
	DefaultSubmissionTimeoutSeconds = 120
	DefaultJudgmentTimeoutSeconds   = 60
)

// envKey converts a settings field path ("max_rounds", "evaluator.model")
// to its environment variable name (MIXSEEK_MAX_ROUNDS,
// MIXSEEK_EVALUATOR__MODEL).
func envKey(field string) string {
	k := strings.ReplaceAll(field, ".", "__")
	return EnvPrefix + "_" + strings.ToUpper(k)
}

// lookupEnvInt reads an integer env override for field.
func lookupEnvInt(field string) (int, bool, error) {
	raw, ok := os.LookupEnv(envKey(field))
	if !ok || raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, mixerr.Wrapf(mixerr.KindConfiguration, "config.env", err, "%s must be an integer", envKey(field))
	}
	return n, true, nil
}

// resolveInt applies CLI > env > TOML > default precedence for one
// integer field and records its provenance.
func resolveInt(field string, cli *int, v *viper.Viper, def int, prov Provenance) (int, error) {
	if cli != nil {
		prov[field] = SourceCLI
		return *cli, nil
	}
	if n, ok, err := lookupEnvInt(field); err != nil {
		return 0, err
	} else if ok {
		prov[field] = SourceEnv
		return n, nil
	}
	if v != nil && v.IsSet(field) {
		prov[field] = SourceTOML
		return v.GetInt(field), nil
	}
	prov[field] = SourceDefault
	return def, nil
}

// tomlTeamRef mirrors the teams array entries in orchestrator.toml.
type tomlTeamRef struct {
	Config string `mapstructure:"config"`
}

// ResolveOrchestratorSettings loads orchestrator.toml (when tomlPath is
// non-empty) and resolves every field with CLI > env > TOML > default
// precedence. Team config paths are resolved relative to the TOML file.
func ResolveOrchestratorSettings(tomlPath string, cli CLIOverrides) (*OrchestratorSettings, Provenance, error) {
	const op = "config.resolve"
	prov := make(Provenance)

	var v *viper.Viper
	baseDir := "."
	if tomlPath != "" {
		v = viper.New()
		v.SetConfigFile(tomlPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, mixerr.Wrapf(mixerr.KindConfiguration, op, err, "reading %s", tomlPath)
		}
		baseDir = filepath.Dir(tomlPath)
	}

	s := &OrchestratorSettings{}

	// Workspace: CLI flag > MIXSEEK_WORKSPACE > TOML. Never the working
	// directory.
	switch {
	case cli.Workspace != "":
		s.WorkspacePath = cli.Workspace
		prov["workspace_path"] = SourceCLI
	case os.Getenv(EnvWorkspace) != "":
		s.WorkspacePath = os.Getenv(EnvWorkspace)
		prov["workspace_path"] = SourceEnv
	case v != nil && v.IsSet("workspace_path"):
		s.WorkspacePath = v.GetString("workspace_path")
		prov["workspace_path"] = SourceTOML
	}

	var err error
	var n int
	if n, err = resolveInt("timeout_per_team_seconds", cli.TimeoutPerTeamSeconds, v, DefaultPerTeamTimeoutSeconds, prov); err != nil {
		return nil, nil, err
	}
	s.PerTeamDeadline = time.Duration(n) * time.Second

	if s.MaxRounds, err = resolveInt("max_rounds", cli.MaxRounds, v, DefaultMaxRounds, prov); err != nil {
		return nil, nil, err
	}
	if s.MinRounds, err = resolveInt("min_rounds", cli.MinRounds, v, DefaultMinRounds, prov); err != nil {
		return nil, nil, err
	}

	if n, err = resolveInt("submission_timeout_seconds", cli.SubmissionTimeoutSeconds, v, DefaultSubmissionTimeoutSeconds, prov); err != nil {
		return nil, nil, err
	}
	s.SubmissionTimeout = time.Duration(n) * time.Second

	if n, err = resolveInt("judgment_timeout_seconds", cli.JudgmentTimeoutSeconds, v, DefaultJudgmentTimeoutSeconds, prov); err != nil {
		return nil, nil, err
	}
	s.JudgmentTimeout = time.Duration(n) * time.Second

	if v != nil {
		var refs []tomlTeamRef
		if err := v.UnmarshalKey("teams", &refs); err != nil {
			return nil, nil, mixerr.Wrapf(mixerr.KindConfiguration, op, err, "teams array in %s", tomlPath)
		}
		for _, r := range refs {
			if r.Config == "" {
				return nil, nil, mixerr.New(mixerr.KindConfiguration, op, "team entry missing config path")
			}
			p := r.Config
			if !filepath.IsAbs(p) {
				p = filepath.Join(baseDir, p)
			}
			s.TeamConfigPaths = append(s.TeamConfigPaths, p)
		}
		prov["teams"] = SourceTOML

		s.EvaluatorConfigPath = v.GetString("evaluator_config")
		s.JudgmentConfigPath = v.GetString("judgment_config")
	}

	if s.EvaluatorConfigPath == "" {
		s.EvaluatorConfigPath = "evaluator.toml"
		prov["evaluator_config"] = SourceDefault
	} else {
		prov["evaluator_config"] = SourceTOML
	}
	if s.JudgmentConfigPath == "" {
		s.JudgmentConfigPath = "judgment.toml"
		prov["judgment_config"] = SourceDefault
	} else {
		prov["judgment_config"] = SourceTOML
	}
	if !filepath.IsAbs(s.EvaluatorConfigPath) {
		s.EvaluatorConfigPath = filepath.Join(baseDir, s.EvaluatorConfigPath)
	}
	if !filepath.IsAbs(s.JudgmentConfigPath) {
		s.JudgmentConfigPath = filepath.Join(baseDir, s.JudgmentConfigPath)
	}

	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	return s, prov, nil
}

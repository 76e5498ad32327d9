// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"os"
	"path/filepath"

	"github.com/mixseek/mixseek/internal/log"
	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/evaluator"
	"github.com/mixseek/mixseek/pkg/judge"
	"github.com/mixseek/mixseek/pkg/leader"
	"github.com/mixseek/mixseek/pkg/orchestration"
	"github.com/mixseek/mixseek/pkg/prompt"
	"github.com/mixseek/mixseek/pkg/store"
)

// orchestratorTOML returns the workspace orchestrator config path, or
// empty when the file does not exist (defaults then apply).
func orchestratorTOML(workspace string) string {
	path := filepath.Join(workspace, "configs", "orchestrator.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// resolveSettings layers CLI flags over env and the workspace TOML.
func resolveSettings(cli config.CLIOverrides) (*config.OrchestratorSettings, config.Provenance, error) {
	cli.Workspace = firstNonEmpty(cli.Workspace, workspaceFlag)

	workspace := firstNonEmpty(cli.Workspace, os.Getenv(config.EnvWorkspace))
	tomlPath := ""
	if workspace != "" {
		tomlPath = orchestratorTOML(workspace)
	}
	return config.ResolveOrchestratorSettings(tomlPath, cli)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// engine is the fully wired execution stack.
type engine struct {
	settings     *config.OrchestratorSettings
	store        *store.Store
	orchestrator *orchestration.Orchestrator
}

func (e *engine) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// buildEngine wires every component from resolved settings: store,
// prompt builder, per-team leaders and controllers, evaluator, judge.
func buildEngine(settings *config.OrchestratorSettings) (*engine, error) {
	if err := log.InitWorkspace(settings.WorkspacePath); err != nil {
		return nil, err
	}

	evalCfg, err := config.LoadEvaluatorConfig(settings.EvaluatorConfigPath)
	if err != nil {
		return nil, err
	}
	judgeCfg, err := config.LoadJudgmentConfig(settings.JudgmentConfigPath)
	if err != nil {
		return nil, err
	}
	promptCfg, err := config.LoadPromptBuilderConfig(filepath.Join(filepath.Dir(settings.EvaluatorConfigPath), "prompt_builder.toml"))
	if err != nil {
		return nil, err
	}

	scorer, err := evaluator.New(evalCfg)
	if err != nil {
		return nil, err
	}
	continuation, err := judge.New(judgeCfg)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(filepath.Join(settings.WorkspacePath, "mixseek.db"))
	if err != nil {
		return nil, err
	}

	builder := prompt.NewBuilder(promptCfg)

	var runners []*orchestration.TeamRunner
	for _, path := range settings.TeamConfigPaths {
		team, err := config.LoadTeamConfig(path)
		if err != nil {
			db.Close()
			return nil, err
		}
		l, err := leader.New(team)
		if err != nil {
			db.Close()
			return nil, err
		}
		runners = append(runners, &orchestration.TeamRunner{
			Team:       team,
			Controller: orchestration.NewRoundController(team, l, scorer, db, builder, settings),
		})
	}

	orch, err := orchestration.NewOrchestrator(settings, continuation, runners)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &engine{settings: settings, store: db, orchestrator: orch}, nil
}

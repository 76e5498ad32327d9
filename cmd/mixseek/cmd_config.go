// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mixseek/mixseek/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect resolved configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved orchestrator settings with provenance",
	RunE:  runConfigShow,
}

var configTeamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List and validate the configured teams",
	RunE:  runConfigTeams,
}

var configInitCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Write the default configuration files into the workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	configInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing configuration files")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configTeamsCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings, prov, err := resolveSettings(config.CLIOverrides{})
	if err != nil {
		return err
	}

	rows := []struct {
		field string
		value string
	}{
		{"workspace_path", settings.WorkspacePath},
		{"timeout_per_team_seconds", fmt.Sprintf("%d", int(settings.PerTeamDeadline.Seconds()))},
		{"max_rounds", fmt.Sprintf("%d", settings.MaxRounds)},
		{"min_rounds", fmt.Sprintf("%d", settings.MinRounds)},
		{"submission_timeout_seconds", fmt.Sprintf("%d", int(settings.SubmissionTimeout.Seconds()))},
		{"judgment_timeout_seconds", fmt.Sprintf("%d", int(settings.JudgmentTimeout.Seconds()))},
		{"evaluator_config", settings.EvaluatorConfigPath},
		{"judgment_config", settings.JudgmentConfigPath},
	}

	out := cmd.OutOrStdout()
	for _, r := range rows {
		source := prov[r.field]
		if source == "" {
			source = config.SourceDefault
		}
		fmt.Fprintf(out, "%-28s %-24s (%s)\n", r.field, r.value, source)
	}

	fmt.Fprintf(out, "%-28s %d configured\n", "teams", len(settings.TeamConfigPaths))
	for _, p := range settings.TeamConfigPaths {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	return nil
}

func runConfigTeams(cmd *cobra.Command, args []string) error {
	settings, _, err := resolveSettings(config.CLIOverrides{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	paths := append([]string(nil), settings.TeamConfigPaths...)
	sort.Strings(paths)

	for _, path := range paths {
		team, err := config.LoadTeamConfig(path)
		if err != nil {
			fmt.Fprintf(out, "INVALID %s: %s\n", path, err)
			continue
		}
		fmt.Fprintf(out, "%s (%s): leader %s, %d members\n", team.TeamName, team.TeamID, team.Leader.Model, len(team.Members))
		for _, m := range team.Members {
			fmt.Fprintf(out, "  %-16s %-10s %s\n", m.AgentName, m.AgentType, m.ToolName)
		}
	}
	return nil
}

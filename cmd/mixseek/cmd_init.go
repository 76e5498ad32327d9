// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/mixerr"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Scaffold a workspace with starter configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing configuration files")
}

const starterOrchestrator = `# mixseek orchestrator configuration.
# Every value here can be overridden by MIXSEEK_* environment variables
# or CLI flags (CLI > env > this file > defaults).

timeout_per_team_seconds = 300
max_rounds = 3
min_rounds = 1
submission_timeout_seconds = 120
judgment_timeout_seconds = 60

teams = [
    { config = "team-alpha.toml" },
]

evaluator_config = "evaluator.toml"
judgment_config = "judgment.toml"
`

const starterTeam = `[team]
team_id = "team-alpha"
team_name = "Team Alpha"

[team.leader]
model = "anthropic:claude-sonnet-4-5"
system_instruction = """
You lead a small team. Break the task down, delegate the pieces to your
members through the delegation tools, then synthesize their results into
one final submission. Your last message with no tool calls is the
submission."""

[[team.members]]
agent_name = "researcher"
agent_type = "web-search"
tool_description = "Researches a topic on the live web and reports findings with sources."
model = "gemini:gemini-2.5-flash"

[[team.members]]
agent_name = "writer"
agent_type = "plain"
tool_description = "Turns research notes into polished prose."
model = "anthropic:claude-sonnet-4-5"
`

const starterEvaluator = `default_model = "anthropic:claude-sonnet-4-5"
timeout_seconds = 60
max_retries = 3

[[metrics]]
name = "ClarityCoherence"
system_instruction = "You judge the clarity and coherence of a submission: logical flow, structure, absence of contradictions and filler."

[[metrics]]
name = "Coverage"
system_instruction = "You judge how completely a submission addresses the task. Missing a stated requirement caps the score at 60."

[[metrics]]
name = "Relevance"
system_instruction = "You judge how relevant a submission is to the task. Penalize digressions and content answering a different question."
`

const starterJudgment = `model = "anthropic:claude-sonnet-4-5"
timeout_seconds = 60
`

func runInit(cmd *cobra.Command, args []string) error {
	workspace := workspaceFlag
	if len(args) == 1 {
		workspace = args[0]
	}
	if workspace == "" {
		workspace = os.Getenv(config.EnvWorkspace)
	}
	if workspace == "" {
		return mixerr.New(mixerr.KindConfiguration, "init", "workspace directory required: mixseek init <dir>")
	}

	for _, dir := range []string{"configs", "logs", "templates"} {
		if err := os.MkdirAll(filepath.Join(workspace, dir), 0o755); err != nil {
			return err
		}
	}

	files := map[string]string{
		"configs/orchestrator.toml": starterOrchestrator,
		"configs/team-alpha.toml":   starterTeam,
		"configs/evaluator.toml":    starterEvaluator,
		"configs/judgment.toml":     starterJudgment,
	}
	for rel, content := range files {
		path := filepath.Join(workspace, rel)
		if _, err := os.Stat(path); err == nil && !initForce {
			fmt.Fprintf(cmd.OutOrStdout(), "skip %s (exists, use --force)\n", rel)
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", rel)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWorkspace ready. Set provider API keys, then:\n  mixseek -w %s exec \"your prompt\"\n", workspace)
	return nil
}

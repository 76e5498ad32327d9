// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/member"
	"github.com/mixseek/mixseek/pkg/mixerr"
)

var memberCmd = &cobra.Command{
	Use:   "member <team-config.toml> <agent-name> <task>",
	Short: "Run a single team member against a task",
	Long: `Runs one member agent from a team configuration in isolation.
Useful for verifying credentials, capabilities and plugin protocol
before a full execution.`,
	Args: cobra.ExactArgs(3),
	RunE: runMember,
}

func runMember(cmd *cobra.Command, args []string) error {
	team, err := config.LoadTeamConfig(args[0])
	if err != nil {
		return err
	}

	var spec *config.MemberSpec
	for i := range team.Members {
		if team.Members[i].AgentName == args[1] {
			spec = &team.Members[i]
			break
		}
	}
	if spec == nil {
		return mixerr.New(mixerr.KindConfiguration, "member", fmt.Sprintf("no member %q in %s", args[1], args[0]))
	}

	m, err := member.New(spec)
	if err != nil {
		return err
	}

	content, usage, err := m.Run(cmd.Context(), args[2])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", content)
	fmt.Fprintf(out, "\nUsage: %d requests, %d in / %d out tokens\n",
		usage.Requests, usage.InputTokens, usage.OutputTokens)
	return nil
}

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
	"go.uber.org/zap"

	"github.com/mixseek/mixseek/internal/log"
	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/leader"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/store"
	"github.com/mixseek/mixseek/pkg/types"
)

var teamSaveDB bool

var teamCmd = &cobra.Command{
	Use:   "team <team-config.toml> <prompt>",
	Short: "Run a single team for one round, without evaluation",
	Long: `Runs one team's leader round in isolation. Useful for debugging a
team configuration before entering it into an execution. With --save-db
the unscored round is written to the workspace database.`,
	Args: cobra.ExactArgs(2),
	RunE: runTeam,
}

func init() {
	teamCmd.Flags().BoolVar(&teamSaveDB, "save-db", false, "persist the round to the workspace database")
}

func runTeam(cmd *cobra.Command, args []string) error {
	team, err := config.LoadTeamConfig(args[0])
	if err != nil {
		return err
	}

	l, err := leader.New(team)
	if err != nil {
		return err
	}

	rec := leader.NewRecorder()
	ctx := leader.WithRecorder(cmd.Context(), rec)

	result, err := l.Run(ctx, args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Team: %s (%d members)\n\n", team.TeamName, len(team.Members))
	for i, sub := range result.Submissions {
		fmt.Fprintf(out, "[%d] %s (%s): %s\n", i+1, sub.AgentName, sub.AgentType, sub.Status)
	}
	fmt.Fprintf(out, "\nSubmission:\n%s\n", result.Content)
	fmt.Fprintf(out, "\nUsage: %d requests, %d in / %d out tokens\n",
		result.Usage.Requests, result.Usage.InputTokens, result.Usage.OutputTokens)

	if teamSaveDB {
		return saveTeamRound(cmd, team, result)
	}
	return nil
}

// saveTeamRound persists a standalone unscored round under a synthetic
// execution id.
func saveTeamRound(cmd *cobra.Command, team *config.TeamConfig, result *leader.Result) error {
	workspace := firstNonEmpty(workspaceFlag, os.Getenv(config.EnvWorkspace))
	if workspace == "" {
		return mixerr.New(mixerr.KindConfiguration, "team", "--save-db needs a workspace (set --workspace or MIXSEEK_WORKSPACE)")
	}

	db, err := store.Open(filepath.Join(workspace, "mixseek.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	state := &types.RoundState{
		ExecutionID:       "standalone-" + team.TeamID,
		TeamID:            team.TeamID,
		TeamName:          team.TeamName,
		RoundNumber:       1,
		SubmissionContent: result.Content,
		MemberSubmissions: result.Submissions,
		MessageHistory:    result.History,
		Usage:             result.Usage,
	}
	if err := db.SaveAggregation(cmd.Context(), state); err != nil {
		return err
	}
	log.Info("standalone round saved", zap.String("team_id", team.TeamID))
	fmt.Fprintf(cmd.OutOrStdout(), "\nSaved to %s\n", filepath.Join(workspace, "mixseek.db"))
	return nil
}

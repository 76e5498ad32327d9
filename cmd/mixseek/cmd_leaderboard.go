// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/store"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard <execution-id>",
	Short: "Show the leaderboard for an execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeaderboard,
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	workspace := firstNonEmpty(workspaceFlag, os.Getenv(config.EnvWorkspace))
	if workspace == "" {
		return mixerr.New(mixerr.KindConfiguration, "leaderboard", "workspace required (set --workspace or MIXSEEK_WORKSPACE)")
	}

	db, err := store.Open(filepath.Join(workspace, "mixseek.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	ranking, err := db.LeaderboardRanking(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(ranking) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No scored submissions for execution %s\n", args[0])
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-4s %-20s %-7s %-6s %s\n", "Rank", "Team", "Score", "Round", "Excerpt")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for i, e := range ranking {
		excerpt := strings.ReplaceAll(e.SubmissionExcerpt, "\n", " ")
		if len([]rune(excerpt)) > 40 {
			excerpt = string([]rune(excerpt)[:40]) + "…"
		}
		fmt.Fprintf(out, "%-4d %-20s %7.1f %6d %s\n", i+1, e.TeamName, e.Score, e.RoundNumber, excerpt)
	}
	return nil
}

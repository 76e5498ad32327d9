// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/store"
)

var historyCmd = &cobra.Command{
	Use:   "history <execution-id> <team-id>",
	Short: "Show a team's round history for an execution",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	workspace := firstNonEmpty(workspaceFlag, os.Getenv(config.EnvWorkspace))
	if workspace == "" {
		return mixerr.New(mixerr.KindConfiguration, "history", "workspace required (set --workspace or MIXSEEK_WORKSPACE)")
	}

	db, err := store.Open(filepath.Join(workspace, "mixseek.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	history, err := db.LoadRoundHistory(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No rounds for team %s in execution %s\n", args[1], args[0])
		return nil
	}

	out := cmd.OutOrStdout()
	for _, r := range history {
		fmt.Fprintf(out, "Round %d", r.RoundNumber)
		if r.EvaluationScore != nil {
			fmt.Fprintf(out, "  %.1f/100", *r.EvaluationScore)
		} else {
			fmt.Fprint(out, "  unscored")
		}
		fmt.Fprintf(out, "  (%d member submissions, %d requests, %s)\n",
			len(r.MemberSubmissions), r.Usage.Requests, r.ExecutionTime.Round(time.Millisecond))
		for _, m := range r.EvaluationFeedback {
			fmt.Fprintf(out, "    %-20s %6.1f  %s\n", m.Name, m.Score, m.Comment)
		}
	}

	latest, err := db.LatestRound(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nLatest: round %d, completed %s\n", latest.RoundNumber, latest.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

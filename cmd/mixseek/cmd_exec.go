// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/types"
)

var (
	execOutput     string
	execTimeout    int
	execMaxRounds  int
	execMinRounds  int
	execSubTimeout int
	execJudTimeout int
)

var execCmd = &cobra.Command{
	Use:   "exec <prompt>",
	Short: "Run all configured teams against a prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runExec,
}

func init() {
	execCmd.Flags().StringVarP(&execOutput, "output", "o", "text", "output format: text or json")
	execCmd.Flags().IntVar(&execTimeout, "timeout-per-team", 0, "per-team deadline in seconds")
	execCmd.Flags().IntVar(&execMaxRounds, "max-rounds", 0, "maximum rounds per team")
	execCmd.Flags().IntVar(&execMinRounds, "min-rounds", 0, "minimum rounds per team")
	execCmd.Flags().IntVar(&execSubTimeout, "submission-timeout", 0, "leader submission timeout in seconds")
	execCmd.Flags().IntVar(&execJudTimeout, "judgment-timeout", 0, "evaluation and judgment timeout in seconds")
}

// intFlag returns a pointer only when the flag was set, so unset flags
// fall through to env/TOML/default resolution.
func intFlag(cmd *cobra.Command, name string, value int) *int {
	if cmd.Flags().Changed(name) {
		return &value
	}
	return nil
}

func runExec(cmd *cobra.Command, args []string) error {
	settings, _, err := resolveSettings(config.CLIOverrides{
		TimeoutPerTeamSeconds:    intFlag(cmd, "timeout-per-team", execTimeout),
		MaxRounds:                intFlag(cmd, "max-rounds", execMaxRounds),
		MinRounds:                intFlag(cmd, "min-rounds", execMinRounds),
		SubmissionTimeoutSeconds: intFlag(cmd, "submission-timeout", execSubTimeout),
		JudgmentTimeoutSeconds:   intFlag(cmd, "judgment-timeout", execJudTimeout),
	})
	if err != nil {
		return err
	}

	eng, err := buildEngine(settings)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := eng.orchestrator.Execute(ctx, args[0])
	if err != nil {
		return err
	}

	if execOutput == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		printSummary(cmd, summary)
	}

	if summary.CompletedTeams == 0 {
		return fmt.Errorf("no team completed (execution %s)", summary.ExecutionID)
	}
	return nil
}

// printSummary renders the human-readable execution report.
func printSummary(cmd *cobra.Command, s *types.ExecutionSummary) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Execution %s\n", s.ExecutionID)
	fmt.Fprintf(out, "Teams: %d total, %d completed, %d failed\n", s.TotalTeams, s.CompletedTeams, s.FailedTeams)
	fmt.Fprintf(out, "Elapsed: %s\n\n", s.TotalExecutionTime.Round(10*time.Millisecond))

	ids := make([]string, 0, len(s.TeamStatuses))
	for id := range s.TeamStatuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		st := s.TeamStatuses[id]
		fmt.Fprintf(out, "  %-20s %-10s", st.TeamName, st.Status)
		if r := s.TeamResults[id]; r != nil {
			fmt.Fprintf(out, " best %.1f (round %d)", r.Score(), r.RoundNumber)
		} else if st.ErrorMessage != "" {
			fmt.Fprintf(out, " %s", st.ErrorKind)
		}
		fmt.Fprintln(out)
	}

	if best := s.TeamResults[s.BestTeamID]; best != nil {
		fmt.Fprintf(out, "\nWinner: %s (%.1f/100)\n\n%s\n", best.TeamName, best.Score(), best.SubmissionContent)
	} else {
		fmt.Fprintln(out, "\nNo team produced a scored submission.")
	}
}

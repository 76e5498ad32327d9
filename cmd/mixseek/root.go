// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mixseek/mixseek/internal/log"
	"github.com/mixseek/mixseek/pkg/mixerr"
)

// Exit codes: 0 success, 1 execution failure, 2 configuration error.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

var workspaceFlag string

var rootCmd = &cobra.Command{
	Use:   "mixseek",
	Short: "Run competing multi-agent teams against one prompt",
	Long: `mixseek runs multiple agent teams in parallel against a single
prompt. Each team's leader delegates to its members, submissions are
scored by LLM evaluators, and teams iterate until a continuation judge
calls diminishing returns. The best submission across teams wins.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "workspace directory (or MIXSEEK_WORKSPACE)")

	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(teamCmd)
	rootCmd.AddCommand(memberCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(historyCmd)
}

// Execute runs the CLI and maps errors to exit codes.
func Execute() int {
	defer log.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		if mixerr.Is(err, mixerr.KindConfiguration) {
			return exitConfig
		}
		return exitFailed
	}
	return exitOK
}

// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/evaluator"
)

var evaluateFile string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <evaluator.toml> <task> [submission]",
	Short: "Score a submission against a task with the configured metrics",
	Long: `Runs the evaluator in isolation. The submission is the third
argument, or read from --file. Prints each metric's score and comment
plus the weighted overall score.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateFile, "file", "", "read the submission from a file")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadEvaluatorConfig(args[0])
	if err != nil {
		return err
	}

	submission := ""
	switch {
	case evaluateFile != "":
		data, err := os.ReadFile(evaluateFile)
		if err != nil {
			return err
		}
		submission = string(data)
	case len(args) == 3:
		submission = args[2]
	default:
		return fmt.Errorf("provide a submission argument or --file")
	}

	e, err := evaluator.New(cfg)
	if err != nil {
		return err
	}

	result, usage, err := e.Evaluate(cmd.Context(), args[1], submission)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range result.Metrics {
		fmt.Fprintf(out, "%-20s %6.1f  %s\n", m.Name, m.Score, m.Comment)
	}
	fmt.Fprintf(out, "\nOverall: %.1f/100 (%d judge requests)\n", result.OverallScore, usage.Requests)
	return nil
}

// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package judge decides whether a team should run another round. One
// LLM call at temperature zero reads the score trajectory and the
// latest feedback; a judge that cannot produce a verdict fails the
// team.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mixseek/mixseek/internal/log"
	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/llm/factory"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/types"
)

// DefaultSystemInstruction is used when judgment.toml does not override
// it.
const DefaultSystemInstruction = `You decide whether an agent team should spend another improvement round on its submission. Weigh the score trajectory across rounds: steady gains argue for continuing, a plateau or regression argues for stopping. Consider whether the remaining feedback is actionable or marginal polish. Diminishing returns are the normal stopping reason.`

// judgmentPrompt renders the round record for the model.
const judgmentPrompt = `A team has completed round %d. Decide whether another round is worth running.

# Score history

%s

# Latest evaluation feedback

%s

Answer with a single JSON object on its own line:

{"should_continue": <true or false>, "reasoning": "<one or two sentences>", "confidence": <number from 0 to 1>}`

// Verdict is the judge's decision.
type Verdict struct {
	ShouldContinue bool    `json:"should_continue"`
	Reasoning      string  `json:"reasoning"`
	Confidence     float64 `json:"confidence"`
}

// Judge is the continuation judge.
type Judge struct {
	provider types.LLMProvider
	system   string
}

// New builds a Judge from configuration.
func New(cfg *config.JudgmentConfig) (*Judge, error) {
	temp := cfg.Temperature
	provider, err := factory.CreateProvider(cfg.Model, factory.Options{
		Temperature: &temp,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, mixerr.Wrap(mixerr.KindOf(err), "judge.new", err)
	}

	system := cfg.SystemInstruction
	if system == "" {
		system = DefaultSystemInstruction
	}
	return &Judge{provider: provider, system: system}, nil
}

// Decide returns the continuation verdict for a team's history. The
// history is the team's rounds so far, ascending; the last entry is the
// round just completed.
func (j *Judge) Decide(ctx context.Context, history []*types.RoundState) (*Verdict, types.Usage, error) {
	const op = "judge.decide"
	var usage types.Usage

	if len(history) == 0 {
		return nil, usage, mixerr.New(mixerr.KindJudgment, op, "no rounds to judge")
	}
	latest := history[len(history)-1]

	messages := []types.Message{
		{Role: "system", Content: j.system},
		{Role: "user", Content: fmt.Sprintf(judgmentPrompt, latest.RoundNumber, formatScores(history), formatFeedback(latest))},
	}

	resp, err := llm.ChatWithRetry(ctx, j.provider, messages, nil, llm.RetryConfig{Logger: log.Logger()})
	if err != nil {
		// Judge unavailability is fatal to the team, whatever the
		// underlying kind was.
		return nil, usage, mixerr.Wrap(mixerr.KindJudgment, op, err)
	}
	usage.Add(resp.Usage)

	verdict, err := parseVerdict(resp.Content)
	if err != nil {
		return nil, usage, mixerr.Wrap(mixerr.KindJudgment, op, err)
	}

	log.Info("continuation verdict",
		zap.String("team_id", latest.TeamID),
		zap.Int("round", latest.RoundNumber),
		zap.Bool("continue", verdict.ShouldContinue),
		zap.Float64("confidence", verdict.Confidence))
	return verdict, usage, nil
}

// formatScores renders the per-round score trajectory.
func formatScores(history []*types.RoundState) string {
	var sb strings.Builder
	for _, r := range history {
		if r.EvaluationScore != nil {
			fmt.Fprintf(&sb, "- Round %d: %.1f/100\n", r.RoundNumber, *r.EvaluationScore)
		} else {
			fmt.Fprintf(&sb, "- Round %d: unscored\n", r.RoundNumber)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatFeedback renders the latest round's per-metric feedback.
func formatFeedback(r *types.RoundState) string {
	if len(r.EvaluationFeedback) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, m := range r.EvaluationFeedback {
		fmt.Fprintf(&sb, "- %s: %.1f: %s\n", m.Name, m.Score, m.Comment)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// parseVerdict extracts and validates the verdict JSON.
func parseVerdict(content string) (*Verdict, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in judge output")
	}

	var v struct {
		ShouldContinue *bool   `json:"should_continue"`
		Reasoning      string  `json:"reasoning"`
		Confidence     float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("parsing judge output: %w", err)
	}
	if v.ShouldContinue == nil {
		return nil, fmt.Errorf("judge output has no should_continue")
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return nil, fmt.Errorf("confidence %g outside [0, 1]", v.Confidence)
	}
	return &Verdict{
		ShouldContinue: *v.ShouldContinue,
		Reasoning:      v.Reasoning,
		Confidence:     v.Confidence,
	}, nil
}

// extractJSON returns the last balanced top-level JSON object in s.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			if candidate := strings.TrimSpace(rest[:j]); strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	end := strings.LastIndex(s, "}")
	if end < 0 {
		return ""
	}
	depth := 0
	for i := end; i >= 0; i-- {
		switch s[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return s[i : end+1]
			}
		}
	}
	return ""
}

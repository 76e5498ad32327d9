// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package prompt assembles the per-round leader prompt. Round one is
// the raw user prompt; later rounds interpolate the team's own history
// and the cross-team leaderboard into a template.
package prompt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/types"
)

// DefaultTemplate is the built-in round template used when no
// prompt_builder.toml overrides it.
const DefaultTemplate = `# Task

{{ user_prompt }}

# Round

This is round {{ round_number }}. Current time: {{ current_datetime }}.

# Your previous submissions

{{ submission_history }}

# Leaderboard

{{ ranking_table }}

{{ team_position_message }}

# Instructions

{{ improvement_directive }}`

// DefaultImprovementDirective is appended when no directive is
// configured.
const DefaultImprovementDirective = "Study the evaluation feedback above and produce a better submission this round. Address every weakness the evaluators called out, keep what scored well, and do not repeat a previous submission verbatim."

// RankingSource provides the leaderboard snapshot for a round.
type RankingSource interface {
	LeaderboardRanking(ctx context.Context, executionID string) ([]*types.LeaderboardEntry, error)
}

// HistorySource provides a team's own round history.
type HistorySource interface {
	LoadRoundHistory(ctx context.Context, executionID, teamID string) ([]*types.RoundState, error)
}

// Builder assembles round prompts.
type Builder struct {
	template  string
	directive string
	location  *time.Location
	now       func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithLocation sets the timezone used for {{ current_datetime }}.
func WithLocation(loc *time.Location) Option {
	return func(b *Builder) { b.location = loc }
}

// WithNow overrides the clock. Test hook.
func WithNow(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a Builder from configuration. Empty template and
// directive fields fall back to the built-in defaults.
func NewBuilder(cfg *config.PromptBuilderConfig, opts ...Option) *Builder {
	b := &Builder{
		template:  DefaultTemplate,
		directive: DefaultImprovementDirective,
		location:  time.UTC,
		now:       time.Now,
	}
	if cfg != nil {
		if cfg.Template != "" {
			b.template = cfg.Template
		}
		if cfg.ImprovementDirective != "" {
			b.directive = cfg.ImprovementDirective
		}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Input carries everything one round prompt needs.
type Input struct {
	UserPrompt  string
	TeamID      string
	RoundNumber int

	// History is the team's own prior rounds, ascending.
	History []*types.RoundState

	// Ranking is the current cross-team leaderboard, best first.
	Ranking []*types.LeaderboardEntry
}

// Build returns the leader prompt for a round. Round one passes the
// user prompt through untouched so the first attempt is unbiased.
func (b *Builder) Build(in Input) string {
	if in.RoundNumber <= 1 {
		return in.UserPrompt
	}

	vars := map[string]string{
		"user_prompt":           in.UserPrompt,
		"round_number":          fmt.Sprintf("%d", in.RoundNumber),
		"submission_history":    formatHistory(in.History),
		"ranking_table":         formatRanking(in.Ranking, in.TeamID),
		"team_position_message": positionMessage(in.Ranking, in.TeamID),
		"current_datetime":      b.now().In(b.location).Format("2006-01-02 15:04:05 MST"),
		"improvement_directive": b.directive,
	}
	return interpolate(b.template, vars)
}

// interpolate replaces {{ name }} and {{name}} placeholders. Unknown
// placeholders are left intact.
func interpolate(template string, vars map[string]string) string {
	out := template
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{{ "+name+" }}", value)
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}

// formatHistory renders the team's full prior-round record: round,
// score, per-metric feedback and the submission itself.
func formatHistory(history []*types.RoundState) string {
	if len(history) == 0 {
		return "(no previous submissions)"
	}

	var sb strings.Builder
	for i, r := range history {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "## Round %d", r.RoundNumber)
		if r.EvaluationScore != nil {
			fmt.Fprintf(&sb, " (score %.1f/100)", *r.EvaluationScore)
		}
		sb.WriteString("\n")
		for _, m := range r.EvaluationFeedback {
			fmt.Fprintf(&sb, "- %s: %.1f: %s\n", m.Name, m.Score, m.Comment)
		}
		sb.WriteString("\nSubmission:\n")
		sb.WriteString(r.SubmissionContent)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatRanking renders the leaderboard as a markdown table with the
// current team marked.
func formatRanking(ranking []*types.LeaderboardEntry, teamID string) string {
	if len(ranking) == 0 {
		return "(no scored submissions yet)"
	}

	var sb strings.Builder
	sb.WriteString("| Rank | Team | Score | Round |\n")
	sb.WriteString("|------|------|-------|-------|\n")
	for i, e := range ranking {
		marker := ""
		if e.TeamID == teamID {
			marker = " (you)"
		}
		fmt.Fprintf(&sb, "| %d | %s%s | %.1f | %d |\n", i+1, e.TeamName, marker, e.Score, e.RoundNumber)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// positionMessage returns a short motivational line keyed off the
// team's current rank.
func positionMessage(ranking []*types.LeaderboardEntry, teamID string) string {
	rank := 0
	for i, e := range ranking {
		if e.TeamID == teamID {
			rank = i + 1
			break
		}
	}
	switch {
	case rank == 0:
		return "Your team has no scored submission yet. This round is your chance to set the pace."
	case rank == 1:
		return "Congratulations, your team currently holds first place. Defend it: the other teams have seen the bar you set."
	case rank <= 3:
		return fmt.Sprintf("Excellent work, your team is ranked %d. First place is within reach.", rank)
	default:
		return fmt.Sprintf("Your team is currently ranked %d of %d. Study the leaderboard and close the gap.", rank, len(ranking))
	}
}

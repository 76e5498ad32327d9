// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package orchestration runs executions: the orchestrator fans teams
// out in parallel, and a round controller drives each team's
// prompt-leader-evaluate-persist cycle.
package orchestration

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mixseek/mixseek/internal/log"
	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/leader"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/prompt"
	"github.com/mixseek/mixseek/pkg/types"
)

// Store write retry policy. Transient store errors get a short retry
// budget; permanent errors and cancellation never retry.
const (
	storeWriteAttempts = 3
	storeRetryBase     = 100 * time.Millisecond
	storeRetryFactor   = 2
)

// LeaderRunner runs one leader round.
type LeaderRunner interface {
	Run(ctx context.Context, prompt string) (*leader.Result, error)
}

// Scorer evaluates one submission.
type Scorer interface {
	Evaluate(ctx context.Context, task, submission string) (*types.EvaluationResult, types.Usage, error)
}

// RoundStore is the persistence surface the controller needs.
type RoundStore interface {
	SaveAggregation(ctx context.Context, r *types.RoundState) error
	SaveLeaderboardEntry(ctx context.Context, r *types.RoundState) error
	DeleteRound(ctx context.Context, executionID, teamID string, roundNumber int) error
	LoadRoundHistory(ctx context.Context, executionID, teamID string) ([]*types.RoundState, error)
	LeaderboardRanking(ctx context.Context, executionID string) ([]*types.LeaderboardEntry, error)
}

// RoundController runs rounds for one team. It owns the team's round
// history in memory; the store's history read path exists for cold
// resume only.
type RoundController struct {
	team    *config.TeamConfig
	leader  LeaderRunner
	scorer  Scorer
	store   RoundStore
	builder *prompt.Builder

	history []*types.RoundState

	submissionTimeout time.Duration
	judgmentTimeout   time.Duration
}

// NewRoundController wires a controller for one team.
func NewRoundController(
	team *config.TeamConfig,
	l LeaderRunner,
	scorer Scorer,
	store RoundStore,
	builder *prompt.Builder,
	settings *config.OrchestratorSettings,
) *RoundController {
	return &RoundController{
		team:              team,
		leader:            l,
		scorer:            scorer,
		store:             store,
		builder:           builder,
		submissionTimeout: settings.SubmissionTimeout,
		judgmentTimeout:   settings.JudgmentTimeout,
	}
}

// RunRound executes one complete round: build the prompt from the
// in-memory history and the leaderboard snapshot, run the leader under
// the submission timeout, evaluate under the judgment timeout, persist.
// The returned RoundState is the persisted record.
func (c *RoundController) RunRound(ctx context.Context, executionID, userPrompt string, roundNumber int) (*types.RoundState, error) {
	const op = "controller.run_round"
	start := time.Now()

	// Cold resume: a controller picking up mid-execution rebuilds its
	// history from the store once. Within an execution the history
	// lives here and the store is write-only for rounds.
	if c.history == nil && roundNumber > 1 {
		history, err := c.store.LoadRoundHistory(ctx, executionID, c.team.TeamID)
		if err != nil {
			return nil, err
		}
		c.history = history
	}
	ranking, err := c.store.LeaderboardRanking(ctx, executionID)
	if err != nil {
		return nil, err
	}

	roundPrompt := c.builder.Build(prompt.Input{
		UserPrompt:  userPrompt,
		TeamID:      c.team.TeamID,
		RoundNumber: roundNumber,
		History:     c.history,
		Ranking:     ranking,
	})

	log.Info("round started",
		zap.String("execution_id", executionID),
		zap.String("team_id", c.team.TeamID),
		zap.Int("round", roundNumber))

	subCtx, cancelSub := context.WithTimeout(ctx, c.submissionTimeout)
	rec := leader.NewRecorder()
	result, err := c.leader.Run(leader.WithRecorder(subCtx, rec), roundPrompt)
	cancelSub()
	if err != nil {
		return nil, err
	}

	state := &types.RoundState{
		ExecutionID:       executionID,
		TeamID:            c.team.TeamID,
		TeamName:          c.team.TeamName,
		RoundNumber:       roundNumber,
		SubmissionContent: result.Content,
		MemberSubmissions: result.Submissions,
		MessageHistory:    result.History,
		Usage:             result.Usage,
	}
	if len(state.MessageHistory) == 0 {
		state.MessageHistory = json.RawMessage(`{"v":1,"messages":[]}`)
	}

	// The round's usage is the leader plus its members. Evaluator usage
	// stays out of the round record and is only logged.
	evalCtx, cancelEval := context.WithTimeout(ctx, c.judgmentTimeout)
	evaluation, evalUsage, err := c.scorer.Evaluate(evalCtx, userPrompt, result.Content)
	cancelEval()
	if err != nil {
		return nil, err
	}
	state.EvaluationScore = &evaluation.OverallScore
	state.EvaluationFeedback = evaluation.Metrics

	// A deadline that fired between compute and persist fails the round
	// cleanly: no partial row.
	if err := ctx.Err(); err != nil {
		return nil, mixerr.Wrap(mixerr.KindOf(err), op, err)
	}

	state.ExecutionTime = time.Since(start)
	state.CompletedAt = time.Now().UTC()

	if err := c.persistRound(ctx, state); err != nil {
		return nil, err
	}
	c.history = append(c.history, state)

	log.Info("round completed",
		zap.String("team_id", c.team.TeamID),
		zap.Int("round", roundNumber),
		zap.Float64("score", evaluation.OverallScore),
		zap.Int("evaluator_requests", evalUsage.Requests),
		zap.Int("evaluator_tokens", evalUsage.InputTokens+evalUsage.OutputTokens),
		zap.Duration("elapsed", state.ExecutionTime))
	return state, nil
}

// persistRound writes the aggregation row and its leaderboard
// projection. If the leaderboard write fails permanently the orphaned
// aggregation row is removed so history and leaderboard stay
// consistent.
func (c *RoundController) persistRound(ctx context.Context, state *types.RoundState) error {
	if err := withStoreRetry(ctx, func() error {
		return c.store.SaveAggregation(ctx, state)
	}); err != nil {
		return err
	}

	if err := withStoreRetry(ctx, func() error {
		return c.store.SaveLeaderboardEntry(ctx, state)
	}); err != nil {
		if delErr := c.store.DeleteRound(ctx, state.ExecutionID, state.TeamID, state.RoundNumber); delErr != nil {
			log.Error("orphaned round cleanup failed",
				zap.String("team_id", state.TeamID),
				zap.Int("round", state.RoundNumber),
				zap.Error(delErr))
		}
		return err
	}
	return nil
}

// withStoreRetry retries transient store failures with exponential
// backoff.
func withStoreRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := storeRetryBase

	for attempt := 0; attempt < storeWriteAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return mixerr.Wrap(mixerr.KindOf(ctx.Err()), "store.retry", ctx.Err())
			}
			delay *= storeRetryFactor
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !mixerr.IsTransient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

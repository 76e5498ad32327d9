// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mixseek/mixseek/internal/log"
	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/judge"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/types"
)

// ContinuationJudge decides whether a team runs another round.
type ContinuationJudge interface {
	Decide(ctx context.Context, history []*types.RoundState) (*judge.Verdict, types.Usage, error)
}

// TeamRunner is one team's controller plus identity.
type TeamRunner struct {
	Team       *config.TeamConfig
	Controller *RoundController
}

// Orchestrator fans teams out in parallel against one prompt and
// assembles the execution summary.
type Orchestrator struct {
	settings *config.OrchestratorSettings
	judge    ContinuationJudge
	teams    []*TeamRunner
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(settings *config.OrchestratorSettings, j ContinuationJudge, teams []*TeamRunner) (*Orchestrator, error) {
	if len(teams) == 0 {
		return nil, mixerr.New(mixerr.KindConfiguration, "orchestrator.new", "at least one team is required")
	}
	return &Orchestrator{settings: settings, judge: j, teams: teams}, nil
}

// Execute runs every team against the prompt under its own deadline and
// returns the summary. Team failures are isolated: one team's error
// never stops the others.
func (o *Orchestrator) Execute(ctx context.Context, userPrompt string) (*types.ExecutionSummary, error) {
	executionID := uuid.New().String()
	start := time.Now()

	log.Info("execution started",
		zap.String("execution_id", executionID),
		zap.Int("teams", len(o.teams)),
		zap.Int("min_rounds", o.settings.MinRounds),
		zap.Int("max_rounds", o.settings.MaxRounds))

	summary := &types.ExecutionSummary{
		ExecutionID:  executionID,
		UserPrompt:   userPrompt,
		TeamResults:  make(map[string]*types.RoundState),
		TeamStatuses: make(map[string]*types.TeamStatus),
		TotalTeams:   len(o.teams),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, tr := range o.teams {
		status := &types.TeamStatus{
			TeamID:   tr.Team.TeamID,
			TeamName: tr.Team.TeamName,
			Status:   types.TeamPending,
		}
		summary.TeamStatuses[tr.Team.TeamID] = status

		wg.Add(1)
		go func(tr *TeamRunner, status *types.TeamStatus) {
			defer wg.Done()

			teamCtx, cancel := context.WithTimeout(ctx, o.settings.PerTeamDeadline)
			defer cancel()

			best, err := o.runTeam(teamCtx, tr, status, executionID, userPrompt, &mu)

			mu.Lock()
			defer mu.Unlock()
			status.CompletedAt = time.Now().UTC()
			switch {
			case err == nil:
				status.Status = types.TeamCompleted
			// Only the per-team deadline makes a team "timeout". A
			// submission or judgment budget expiry failed one round, and
			// that round's error fails the team.
			case teamCtx.Err() == context.DeadlineExceeded:
				status.Status = types.TeamTimeout
				status.ErrorKind = string(mixerr.KindTimeout)
				status.ErrorMessage = err.Error()
			default:
				status.Status = types.TeamFailed
				status.ErrorKind = string(mixerr.KindOf(err))
				status.ErrorMessage = err.Error()
			}
			// A team that banked at least one successful round keeps it:
			// the best round ranks even when a later round failed.
			if best != nil {
				summary.TeamResults[tr.Team.TeamID] = best
			}
			if err != nil {
				log.Warn("team did not complete",
					zap.String("team_id", tr.Team.TeamID),
					zap.String("status", string(status.Status)),
					zap.Error(err))
			}
		}(tr, status)
	}

	wg.Wait()

	for _, s := range summary.TeamStatuses {
		switch s.Status {
		case types.TeamCompleted:
			summary.CompletedTeams++
		case types.TeamFailed, types.TeamTimeout:
			summary.FailedTeams++
		}
	}
	summary.BestTeamID = bestTeam(summary.TeamResults)
	summary.TotalExecutionTime = time.Since(start)

	log.Info("execution finished",
		zap.String("execution_id", executionID),
		zap.Int("completed", summary.CompletedTeams),
		zap.Int("failed", summary.FailedTeams),
		zap.String("best_team", summary.BestTeamID),
		zap.Duration("elapsed", summary.TotalExecutionTime))
	return summary, nil
}

// runTeam drives one team's round loop. The judge is consulted only
// when the round count sits strictly between the bounds: below
// min_rounds the loop always continues, at max_rounds it always stops.
// On error the best round completed so far is returned alongside it.
func (o *Orchestrator) runTeam(ctx context.Context, tr *TeamRunner, status *types.TeamStatus, executionID, userPrompt string, mu *sync.Mutex) (*types.RoundState, error) {
	mu.Lock()
	status.Status = types.TeamRunning
	status.StartedAt = time.Now().UTC()
	mu.Unlock()

	var best *types.RoundState
	var history []*types.RoundState

	for round := 1; round <= o.settings.MaxRounds; round++ {
		mu.Lock()
		status.CurrentRound = round
		mu.Unlock()

		state, err := tr.Controller.RunRound(ctx, executionID, userPrompt, round)
		if err != nil {
			return best, err
		}
		history = append(history, state)
		if best == nil || state.Score() > best.Score() {
			best = state
		}

		if round >= o.settings.MaxRounds {
			break
		}
		if round < o.settings.MinRounds {
			continue
		}

		verdict, _, err := o.judge.Decide(ctx, history)
		if err != nil {
			return best, err
		}
		if !verdict.ShouldContinue {
			log.Info("team stopping on judge verdict",
				zap.String("team_id", tr.Team.TeamID),
				zap.Int("round", round),
				zap.String("reasoning", verdict.Reasoning))
			break
		}
	}

	return best, nil
}

// bestTeam picks the team whose best round scores highest. Ties resolve
// to the earlier round, then the lexicographically lower team id.
func bestTeam(results map[string]*types.RoundState) string {
	bestID := ""
	var best *types.RoundState
	for id, r := range results {
		if r == nil {
			continue
		}
		if best == nil ||
			r.Score() > best.Score() ||
			(r.Score() == best.Score() && r.RoundNumber < best.RoundNumber) ||
			(r.Score() == best.Score() && r.RoundNumber == best.RoundNumber && id < bestID) {
			best = r
			bestID = id
		}
	}
	return bestID
}

// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "mixseek.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func round(executionID, teamID string, n int, score float64) *types.RoundState {
	sc := score
	return &types.RoundState{
		ExecutionID:       executionID,
		TeamID:            teamID,
		TeamName:          "Team " + teamID,
		RoundNumber:       n,
		SubmissionContent: "submission from " + teamID,
		MemberSubmissions: []types.MemberSubmission{{
			AgentName: "researcher",
			AgentType: "plain",
			Content:   "findings",
			Status:    types.SubmissionSuccess,
		}},
		MessageHistory:  json.RawMessage(`{"v":1,"messages":[]}`),
		EvaluationScore: &sc,
		EvaluationFeedback: []types.MetricScore{
			{Name: "Coverage", Score: score, Comment: "fine"},
		},
		Usage:         types.Usage{InputTokens: 100, OutputTokens: 50, Requests: 3},
		ExecutionTime: 2 * time.Second,
		CompletedAt:   time.Now().UTC(),
	}
}

func TestSaveAndLoadRoundHistory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAggregation(ctx, round("exec-1", "team-a", 1, 60)))
	require.NoError(t, s.SaveAggregation(ctx, round("exec-1", "team-a", 2, 75)))
	require.NoError(t, s.SaveAggregation(ctx, round("exec-1", "team-b", 1, 50)))

	history, err := s.LoadRoundHistory(ctx, "exec-1", "team-a")
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, 1, history[0].RoundNumber)
	assert.Equal(t, 2, history[1].RoundNumber)
	assert.Equal(t, 75.0, history[1].Score())
	require.Len(t, history[0].MemberSubmissions, 1)
	assert.Equal(t, "researcher", history[0].MemberSubmissions[0].AgentName)
	assert.JSONEq(t, `{"v":1,"messages":[]}`, string(history[0].MessageHistory))
	assert.Equal(t, types.Usage{InputTokens: 100, OutputTokens: 50, Requests: 3}, history[0].Usage)
}

func TestSaveAggregation_DuplicateRoundIsPermanent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAggregation(ctx, round("exec-1", "team-a", 1, 60)))

	err := s.SaveAggregation(ctx, round("exec-1", "team-a", 1, 61))
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindStorePermanent))
}

func TestSaveAggregation_NilScorePersistsNull(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	r := round("exec-1", "team-a", 1, 0)
	r.EvaluationScore = nil
	r.EvaluationFeedback = nil
	require.NoError(t, s.SaveAggregation(ctx, r))

	history, err := s.LoadRoundHistory(ctx, "exec-1", "team-a")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].EvaluationScore)
	assert.Equal(t, -1.0, history[0].Score())
}

func TestLatestRound(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	latest, err := s.LatestRound(ctx, "exec-1", "team-a")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.SaveAggregation(ctx, round("exec-1", "team-a", 1, 60)))
	require.NoError(t, s.SaveAggregation(ctx, round("exec-1", "team-a", 2, 70)))

	latest, err = s.LatestRound(ctx, "exec-1", "team-a")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.RoundNumber)
}

func TestLeaderboardRanking(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	save := func(teamID string, n int, score float64) {
		r := round("exec-1", teamID, n, score)
		require.NoError(t, s.SaveLeaderboardEntry(ctx, r))
	}

	save("team-a", 1, 60)
	save("team-a", 2, 80)
	save("team-b", 1, 80) // same best as team-a but earlier round
	save("team-b", 2, 55)
	save("team-c", 1, 90)

	ranking, err := s.LeaderboardRanking(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, ranking, 3)

	assert.Equal(t, "team-c", ranking[0].TeamID)
	assert.Equal(t, 90.0, ranking[0].Score)

	// 80-point tie: team-b scored it in round 1, team-a in round 2.
	assert.Equal(t, "team-b", ranking[1].TeamID)
	assert.Equal(t, 1, ranking[1].RoundNumber)
	assert.Equal(t, "team-a", ranking[2].TeamID)
	assert.Equal(t, 2, ranking[2].RoundNumber)
}

func TestLeaderboardRanking_TeamIDTieBreak(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLeaderboardEntry(ctx, round("exec-1", "team-b", 1, 70)))
	require.NoError(t, s.SaveLeaderboardEntry(ctx, round("exec-1", "team-a", 1, 70)))

	ranking, err := s.LeaderboardRanking(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, ranking, 2)
	assert.Equal(t, "team-a", ranking[0].TeamID)
	assert.Equal(t, "team-b", ranking[1].TeamID)
}

func TestLeaderboardEntry_ExcerptTruncated(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	r := round("exec-1", "team-a", 1, 70)
	long := make([]rune, ExcerptRunes+100)
	for i := range long {
		long[i] = 'あ'
	}
	r.SubmissionContent = string(long)
	require.NoError(t, s.SaveLeaderboardEntry(ctx, r))

	ranking, err := s.LeaderboardRanking(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	assert.Equal(t, ExcerptRunes, len([]rune(ranking[0].SubmissionExcerpt)))
}

func TestSaveLeaderboardEntry_PersistsFullRow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	r := round("exec-1", "team-a", 1, 70)
	require.NoError(t, s.SaveLeaderboardEntry(ctx, r))

	var content, feedback, usage string
	err := s.db.QueryRowContext(ctx, `
		SELECT submission_content, evaluation_feedback, usage_info
		FROM leader_board
		WHERE execution_id = ? AND team_id = ? AND round_number = ?`,
		"exec-1", "team-a", 1).Scan(&content, &feedback, &usage)
	require.NoError(t, err)

	assert.Equal(t, r.SubmissionContent, content)

	var metrics []types.MetricScore
	require.NoError(t, json.Unmarshal([]byte(feedback), &metrics))
	require.Len(t, metrics, 1)
	assert.Equal(t, "Coverage", metrics[0].Name)
	assert.Equal(t, 70.0, metrics[0].Score)

	var u types.Usage
	require.NoError(t, json.Unmarshal([]byte(usage), &u))
	assert.Equal(t, r.Usage, u)
}

func TestSaveLeaderboardEntry_RequiresScore(t *testing.T) {
	s := testStore(t)
	r := round("exec-1", "team-a", 1, 0)
	r.EvaluationScore = nil

	err := s.SaveLeaderboardEntry(context.Background(), r)
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindStorePermanent))
}

func TestDeleteRound(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAggregation(ctx, round("exec-1", "team-a", 1, 60)))
	require.NoError(t, s.DeleteRound(ctx, "exec-1", "team-a", 1))

	history, err := s.LoadRoundHistory(ctx, "exec-1", "team-a")
	require.NoError(t, err)
	assert.Empty(t, history)

	// Deleting clears the slot for a re-insert.
	require.NoError(t, s.SaveAggregation(ctx, round("exec-1", "team-a", 1, 62)))
}

func TestExecutionsAreIsolated(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLeaderboardEntry(ctx, round("exec-1", "team-a", 1, 60)))
	require.NoError(t, s.SaveLeaderboardEntry(ctx, round("exec-2", "team-a", 1, 90)))

	ranking, err := s.LeaderboardRanking(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	assert.Equal(t, 60.0, ranking[0].Score)
}

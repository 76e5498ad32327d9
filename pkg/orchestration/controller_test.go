// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestration

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/leader"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/prompt"
	"github.com/mixseek/mixseek/pkg/types"
)

// memStore is an in-memory RoundStore with injectable failures.
type memStore struct {
	mu      sync.Mutex
	rounds  map[string][]*types.RoundState
	entries []*types.LeaderboardEntry

	saveAggErr   []error // consumed per call
	saveBoardErr []error
	deleted      int
	loads        int
}

func newMemStore() *memStore {
	return &memStore{rounds: make(map[string][]*types.RoundState)}
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (s *memStore) SaveAggregation(ctx context.Context, r *types.RoundState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := popErr(&s.saveAggErr); err != nil {
		return err
	}
	s.rounds[r.TeamID] = append(s.rounds[r.TeamID], r)
	return nil
}

func (s *memStore) SaveLeaderboardEntry(ctx context.Context, r *types.RoundState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := popErr(&s.saveBoardErr); err != nil {
		return err
	}
	s.entries = append(s.entries, &types.LeaderboardEntry{
		ExecutionID: r.ExecutionID,
		TeamID:      r.TeamID,
		TeamName:    r.TeamName,
		RoundNumber: r.RoundNumber,
		Score:       r.Score(),
	})
	return nil
}

func (s *memStore) DeleteRound(ctx context.Context, executionID, teamID string, roundNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted++
	rounds := s.rounds[teamID]
	for i, r := range rounds {
		if r.RoundNumber == roundNumber {
			s.rounds[teamID] = append(rounds[:i], rounds[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memStore) LoadRoundHistory(ctx context.Context, executionID, teamID string) ([]*types.RoundState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	out := append([]*types.RoundState(nil), s.rounds[teamID]...)
	return out, nil
}

func (s *memStore) LeaderboardRanking(ctx context.Context, executionID string) ([]*types.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := make(map[string]*types.LeaderboardEntry)
	for _, e := range s.entries {
		cur, ok := best[e.TeamID]
		if !ok || e.Score > cur.Score {
			best[e.TeamID] = e
		}
	}
	out := make([]*types.LeaderboardEntry, 0, len(best))
	for _, e := range best {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].RoundNumber != out[j].RoundNumber {
			return out[i].RoundNumber < out[j].RoundNumber
		}
		return out[i].TeamID < out[j].TeamID
	})
	return out, nil
}

// fakeLeader returns a canned result. The result's Usage carries the
// leader's two calls plus the single member call, mirroring how the
// real leader folds member usage into its round recorder.
type fakeLeader struct {
	content    string
	err        error
	errOnCall  int // fail from this 1-based call on; 0 fails every call
	calls      int
	delay      time.Duration
	gotPrompts []string
}

func (l *fakeLeader) Run(ctx context.Context, roundPrompt string) (*leader.Result, error) {
	l.calls++
	l.gotPrompts = append(l.gotPrompts, roundPrompt)
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, mixerr.Wrap(mixerr.KindTimeout, "leader.run", ctx.Err())
		}
	}
	if l.err != nil && (l.errOnCall == 0 || l.calls >= l.errOnCall) {
		return nil, l.err
	}
	rec := leader.RecorderFrom(ctx)
	if rec != nil {
		rec.RecordSuccess("researcher", "plain", "member output", types.Usage{Requests: 1})
	}
	return &leader.Result{
		Content: l.content,
		History: json.RawMessage(`{"v":1,"messages":[]}`),
		Usage:   types.Usage{InputTokens: 20, OutputTokens: 10, Requests: 3},
		Submissions: []types.MemberSubmission{
			{AgentName: "researcher", AgentType: "plain", Content: "member output", Status: types.SubmissionSuccess},
		},
	}, nil
}

// fakeScorer returns a fixed score per call.
type fakeScorer struct {
	scores []float64
	calls  int
	err    error
	usage  types.Usage // reported evaluator usage; defaults to 1 request
}

func (s *fakeScorer) Evaluate(ctx context.Context, task, submission string) (*types.EvaluationResult, types.Usage, error) {
	usage := s.usage
	if usage == (types.Usage{}) {
		usage = types.Usage{Requests: 1}
	}
	if s.err != nil {
		return nil, usage, s.err
	}
	score := s.scores[len(s.scores)-1]
	if s.calls < len(s.scores) {
		score = s.scores[s.calls]
	}
	s.calls++
	return &types.EvaluationResult{
		OverallScore: score,
		Metrics:      []types.MetricScore{{Name: "Coverage", Score: score, Comment: "ok"}},
	}, usage, nil
}

func testTeam(id string) *config.TeamConfig {
	return &config.TeamConfig{
		TeamID:               id,
		TeamName:             "Team " + id,
		MaxConcurrentMembers: 1,
		Leader:               config.AgentConfig{Model: "claude-sonnet-4-5"},
	}
}

func testSettings() *config.OrchestratorSettings {
	return &config.OrchestratorSettings{
		WorkspacePath:     "/tmp/ws",
		PerTeamDeadline:   5 * time.Second,
		MaxRounds:         3,
		MinRounds:         1,
		SubmissionTimeout: 2 * time.Second,
		JudgmentTimeout:   2 * time.Second,
		TeamConfigPaths:   []string{"team.toml"},
	}
}

func newController(l LeaderRunner, s Scorer, store RoundStore) *RoundController {
	return NewRoundController(testTeam("team-a"), l, s, store, prompt.NewBuilder(nil), testSettings())
}

func TestRunRound_PersistsAggregationAndLeaderboard(t *testing.T) {
	store := newMemStore()
	c := newController(&fakeLeader{content: "submission"}, &fakeScorer{scores: []float64{72}}, store)

	state, err := c.RunRound(context.Background(), "exec-1", "do it", 1)
	require.NoError(t, err)

	assert.Equal(t, 72.0, state.Score())
	assert.Equal(t, "submission", state.SubmissionContent)
	require.Len(t, state.MemberSubmissions, 1)

	require.Len(t, store.rounds["team-a"], 1)
	require.Len(t, store.entries, 1)
	assert.Equal(t, 72.0, store.entries[0].Score)

	// Leader plus member usage only.
	assert.Equal(t, 3, state.Usage.Requests)
}

func TestRunRound_UsageExcludesEvaluator(t *testing.T) {
	store := newMemStore()
	scorer := &fakeScorer{scores: []float64{70}, usage: types.Usage{InputTokens: 900, OutputTokens: 300, Requests: 5}}
	c := newController(&fakeLeader{content: "submission"}, scorer, store)

	state, err := c.RunRound(context.Background(), "exec-1", "task", 1)
	require.NoError(t, err)

	// The persisted record carries leader + member usage; the
	// evaluator's own consumption stays out of it.
	assert.Equal(t, 3, state.Usage.Requests)
	assert.Equal(t, 20, state.Usage.InputTokens)
	assert.Equal(t, 10, state.Usage.OutputTokens)
	require.Len(t, store.rounds["team-a"], 1)
	assert.Equal(t, 3, store.rounds["team-a"][0].Usage.Requests)
}

func TestRunRound_RoundOnePromptIsRaw(t *testing.T) {
	store := newMemStore()
	l := &fakeLeader{content: "submission"}
	c := newController(l, &fakeScorer{scores: []float64{50}}, store)

	_, err := c.RunRound(context.Background(), "exec-1", "raw prompt", 1)
	require.NoError(t, err)
	require.Len(t, l.gotPrompts, 1)
	assert.Equal(t, "raw prompt", l.gotPrompts[0])
}

func TestRunRound_LaterRoundsSeeHistoryAndRanking(t *testing.T) {
	store := newMemStore()
	l := &fakeLeader{content: "better submission"}
	c := newController(l, &fakeScorer{scores: []float64{60, 75}}, store)

	_, err := c.RunRound(context.Background(), "exec-1", "the task", 1)
	require.NoError(t, err)
	_, err = c.RunRound(context.Background(), "exec-1", "the task", 2)
	require.NoError(t, err)

	require.Len(t, l.gotPrompts, 2)
	round2 := l.gotPrompts[1]
	assert.Contains(t, round2, "the task")
	assert.Contains(t, round2, "better submission")
	assert.Contains(t, round2, "(you)")

	// The controller owns its history in memory: no store reads within
	// one execution.
	assert.Equal(t, 0, store.loads)
}

func TestRunRound_ColdResumeLoadsHistoryOnce(t *testing.T) {
	store := newMemStore()
	score := 60.0
	store.rounds["team-a"] = []*types.RoundState{{
		ExecutionID:       "exec-1",
		TeamID:            "team-a",
		TeamName:          "Team team-a",
		RoundNumber:       1,
		SubmissionContent: "earlier work",
		EvaluationScore:   &score,
	}}

	l := &fakeLeader{content: "resumed"}
	c := newController(l, &fakeScorer{scores: []float64{70, 80}}, store)

	_, err := c.RunRound(context.Background(), "exec-1", "the task", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)
	require.Len(t, l.gotPrompts, 1)
	assert.Contains(t, l.gotPrompts[0], "earlier work")

	// The rebuilt history is held from then on.
	_, err = c.RunRound(context.Background(), "exec-1", "the task", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)
	assert.Contains(t, l.gotPrompts[1], "resumed")
}

func TestRunRound_EvaluatorFailureLeavesNoRow(t *testing.T) {
	store := newMemStore()
	c := newController(
		&fakeLeader{content: "submission"},
		&fakeScorer{err: mixerr.New(mixerr.KindEvaluation, "evaluator.metric[Coverage]", "malformed")},
		store,
	)

	_, err := c.RunRound(context.Background(), "exec-1", "task", 1)
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindEvaluation))
	assert.Empty(t, store.rounds["team-a"])
	assert.Empty(t, store.entries)
}

func TestRunRound_TransientStoreWriteRetried(t *testing.T) {
	store := newMemStore()
	store.saveAggErr = []error{
		mixerr.New(mixerr.KindStoreTransient, "store.save_round", "database is locked"),
	}
	c := newController(&fakeLeader{content: "s"}, &fakeScorer{scores: []float64{50}}, store)

	_, err := c.RunRound(context.Background(), "exec-1", "task", 1)
	require.NoError(t, err)
	require.Len(t, store.rounds["team-a"], 1)
}

func TestRunRound_PermanentLeaderboardFailureCleansOrphan(t *testing.T) {
	store := newMemStore()
	store.saveBoardErr = []error{
		mixerr.New(mixerr.KindStorePermanent, "store.save_leaderboard", "constraint"),
	}
	c := newController(&fakeLeader{content: "s"}, &fakeScorer{scores: []float64{50}}, store)

	_, err := c.RunRound(context.Background(), "exec-1", "task", 1)
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindStorePermanent))
	assert.Equal(t, 1, store.deleted)
	assert.Empty(t, store.rounds["team-a"])
}

func TestRunRound_DeadlineBeforePersistFailsRound(t *testing.T) {
	store := newMemStore()
	c := newController(&fakeLeader{content: "s"}, &fakeScorer{scores: []float64{50}}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RunRound(ctx, "exec-1", "task", 1)
	require.Error(t, err)
	assert.Empty(t, store.rounds["team-a"])
	assert.Empty(t, store.entries)
}

func TestRunRound_SubmissionTimeoutEnforced(t *testing.T) {
	store := newMemStore()
	settings := testSettings()
	settings.SubmissionTimeout = 20 * time.Millisecond
	c := NewRoundController(
		testTeam("team-a"),
		&fakeLeader{content: "s", delay: time.Second},
		&fakeScorer{scores: []float64{50}},
		store,
		prompt.NewBuilder(nil),
		settings,
	)

	_, err := c.RunRound(context.Background(), "exec-1", "task", 1)
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindTimeout))
	assert.Empty(t, store.rounds["team-a"])
}

func TestWithStoreRetry_PermanentNotRetried(t *testing.T) {
	calls := 0
	err := withStoreRetry(context.Background(), func() error {
		calls++
		return mixerr.New(mixerr.KindStorePermanent, "store.save_round", "constraint")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithStoreRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	err := withStoreRetry(context.Background(), func() error {
		calls++
		return mixerr.New(mixerr.KindStoreTransient, "store.save_round", "locked")
	})
	require.Error(t, err)
	assert.Equal(t, storeWriteAttempts, calls)
}

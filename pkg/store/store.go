// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package store persists round results and the leaderboard to SQLite.
// One database file per workspace (mixseek.db); concurrent team
// goroutines share a single *sql.DB with WAL enabled.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mixseek/mixseek/internal/sqlitedriver"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS round_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id TEXT NOT NULL,
	team_id TEXT NOT NULL,
	team_name TEXT NOT NULL,
	round_number INTEGER NOT NULL,
	submission_content TEXT NOT NULL,
	member_submissions TEXT NOT NULL,
	message_history TEXT NOT NULL,
	evaluation_score REAL,
	evaluation_feedback TEXT,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	requests INTEGER NOT NULL DEFAULT 0,
	execution_time_ms INTEGER NOT NULL DEFAULT 0,
	completed_at TIMESTAMP NOT NULL,
	UNIQUE (execution_id, team_id, round_number)
);

CREATE INDEX IF NOT EXISTS idx_round_history_execution
	ON round_history (execution_id, team_id);

CREATE TABLE IF NOT EXISTS leader_board (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id TEXT NOT NULL,
	team_id TEXT NOT NULL,
	team_name TEXT NOT NULL,
	round_number INTEGER NOT NULL,
	score REAL NOT NULL,
	submission_content TEXT NOT NULL,
	submission_excerpt TEXT NOT NULL,
	evaluation_feedback TEXT,
	usage_info TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (execution_id, team_id, round_number)
);

CREATE INDEX IF NOT EXISTS idx_leader_board_execution
	ON leader_board (execution_id);
`

// ExcerptRunes caps the leaderboard submission excerpt length.
const ExcerptRunes = 280

// Store is the SQLite-backed aggregation store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the aggregation database at path and
// applies the schema. WAL mode allows concurrent team writers.
func Open(path string) (*Store, error) {
	const op = "store.open"

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, mixerr.Wrap(mixerr.KindStorePermanent, op, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, classify(op, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, classify(op, err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// classify maps a sqlite error to a transient or permanent store error.
// Lock contention and busy signals are retryable; constraint violations
// and schema errors are not.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return mixerr.Wrap(mixerr.KindCancelled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return mixerr.Wrap(mixerr.KindTimeout, op, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return mixerr.Wrap(mixerr.KindStoreTransient, op, err)
	}
	return mixerr.Wrap(mixerr.KindStorePermanent, op, err)
}

// excerpt truncates s to ExcerptRunes runes.
func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= ExcerptRunes {
		return s
	}
	return string(runes[:ExcerptRunes])
}

// SaveAggregation inserts one completed round into round_history. A
// duplicate (execution_id, team_id, round_number) is a permanent error.
func (s *Store) SaveAggregation(ctx context.Context, r *types.RoundState) error {
	const op = "store.save_round"

	members, err := json.Marshal(r.MemberSubmissions)
	if err != nil {
		return mixerr.Wrap(mixerr.KindStorePermanent, op, err)
	}
	feedback, err := json.Marshal(r.EvaluationFeedback)
	if err != nil {
		return mixerr.Wrap(mixerr.KindStorePermanent, op, err)
	}

	history := r.MessageHistory
	if len(history) == 0 {
		history = json.RawMessage(`{"v":1,"messages":[]}`)
	}

	var score any
	if r.EvaluationScore != nil {
		score = *r.EvaluationScore
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO round_history (
			execution_id, team_id, team_name, round_number,
			submission_content, member_submissions, message_history,
			evaluation_score, evaluation_feedback,
			input_tokens, output_tokens, requests,
			execution_time_ms, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ExecutionID, r.TeamID, r.TeamName, r.RoundNumber,
		r.SubmissionContent, string(members), string(history),
		score, string(feedback),
		r.Usage.InputTokens, r.Usage.OutputTokens, r.Usage.Requests,
		r.ExecutionTime.Milliseconds(), r.CompletedAt.UTC(),
	)
	return classify(op, err)
}

// SaveLeaderboardEntry inserts the leaderboard row for a scored round:
// full submission text plus the excerpt used as the ranking projection,
// evaluation feedback and usage as JSON.
func (s *Store) SaveLeaderboardEntry(ctx context.Context, r *types.RoundState) error {
	const op = "store.save_leaderboard"

	if r.EvaluationScore == nil {
		return mixerr.New(mixerr.KindStorePermanent, op, "round has no evaluation score")
	}

	feedback, err := json.Marshal(r.EvaluationFeedback)
	if err != nil {
		return mixerr.Wrap(mixerr.KindStorePermanent, op, err)
	}
	usage, err := json.Marshal(r.Usage)
	if err != nil {
		return mixerr.Wrap(mixerr.KindStorePermanent, op, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leader_board (
			execution_id, team_id, team_name, round_number,
			score, submission_content, submission_excerpt,
			evaluation_feedback, usage_info, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ExecutionID, r.TeamID, r.TeamName, r.RoundNumber,
		*r.EvaluationScore, r.SubmissionContent, excerpt(r.SubmissionContent),
		string(feedback), string(usage), time.Now().UTC(),
	)
	return classify(op, err)
}

// DeleteRound removes a round_history row. Used to undo an aggregation
// whose leaderboard projection failed permanently.
func (s *Store) DeleteRound(ctx context.Context, executionID, teamID string, roundNumber int) error {
	const op = "store.delete_round"
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM round_history WHERE execution_id = ? AND team_id = ? AND round_number = ?`,
		executionID, teamID, roundNumber)
	return classify(op, err)
}

// LoadRoundHistory returns one team's rounds within an execution,
// ordered by round number ascending.
func (s *Store) LoadRoundHistory(ctx context.Context, executionID, teamID string) ([]*types.RoundState, error) {
	const op = "store.load_history"

	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, team_id, team_name, round_number,
			submission_content, member_submissions, message_history,
			evaluation_score, evaluation_feedback,
			input_tokens, output_tokens, requests,
			execution_time_ms, completed_at
		FROM round_history
		WHERE execution_id = ? AND team_id = ?
		ORDER BY round_number ASC`,
		executionID, teamID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []*types.RoundState
	for rows.Next() {
		r := &types.RoundState{}
		var members, history, feedback string
		var score sql.NullFloat64
		var execMs int64

		if err := rows.Scan(
			&r.ExecutionID, &r.TeamID, &r.TeamName, &r.RoundNumber,
			&r.SubmissionContent, &members, &history,
			&score, &feedback,
			&r.Usage.InputTokens, &r.Usage.OutputTokens, &r.Usage.Requests,
			&execMs, &r.CompletedAt,
		); err != nil {
			return nil, classify(op, err)
		}

		if err := json.Unmarshal([]byte(members), &r.MemberSubmissions); err != nil {
			return nil, mixerr.Wrapf(mixerr.KindStorePermanent, op, err, "member_submissions for %s round %d", r.TeamID, r.RoundNumber)
		}
		if feedback != "" && feedback != "null" {
			if err := json.Unmarshal([]byte(feedback), &r.EvaluationFeedback); err != nil {
				return nil, mixerr.Wrapf(mixerr.KindStorePermanent, op, err, "evaluation_feedback for %s round %d", r.TeamID, r.RoundNumber)
			}
		}
		r.MessageHistory = json.RawMessage(history)
		if score.Valid {
			v := score.Float64
			r.EvaluationScore = &v
		}
		r.ExecutionTime = time.Duration(execMs) * time.Millisecond
		out = append(out, r)
	}
	return out, classify(op, rows.Err())
}

// LatestRound returns a team's most recent round, or nil when the team
// has none. Resume uses it to pick up mid-execution.
func (s *Store) LatestRound(ctx context.Context, executionID, teamID string) (*types.RoundState, error) {
	history, err := s.LoadRoundHistory(ctx, executionID, teamID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	return history[len(history)-1], nil
}

// LeaderboardRanking returns each team's best entry for an execution,
// ordered best-first. Ties on score resolve to the earlier round, then
// the lexicographically lower team id.
func (s *Store) LeaderboardRanking(ctx context.Context, executionID string) ([]*types.LeaderboardEntry, error) {
	const op = "store.ranking"

	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, team_id, team_name, round_number, score, submission_excerpt
		FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY team_id
				ORDER BY score DESC, round_number ASC
			) AS rn
			FROM leader_board
			WHERE execution_id = ?
		)
		WHERE rn = 1
		ORDER BY score DESC, round_number ASC, team_id ASC`,
		executionID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []*types.LeaderboardEntry
	for rows.Next() {
		e := &types.LeaderboardEntry{}
		if err := rows.Scan(&e.ExecutionID, &e.TeamID, &e.TeamName, &e.RoundNumber, &e.Score, &e.SubmissionExcerpt); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, e)
	}
	return out, classify(op, rows.Err())
}

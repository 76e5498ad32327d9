// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package leader

import (
	"context"
	"sync"
	"time"

	"github.com/mixseek/mixseek/pkg/types"
)

// Recorder collects member submissions for one round, in invocation
// order, plus the usage they consumed. Round scoped: a fresh Recorder
// is minted per round and travels on the context so the delegation
// tools never outlive their round.
type Recorder struct {
	mu          sync.Mutex
	submissions []types.MemberSubmission
	usage       types.Usage
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordSuccess appends a successful member submission.
func (r *Recorder) RecordSuccess(agentName, agentType, content string, usage types.Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, types.MemberSubmission{
		AgentName: agentName,
		AgentType: agentType,
		Content:   content,
		Status:    types.SubmissionSuccess,
		Usage:     usage,
		Timestamp: time.Now().UTC(),
	})
	r.usage.Add(usage)
}

// RecordFailure appends a failed member submission.
func (r *Recorder) RecordFailure(agentName, agentType, kind, message string, usage types.Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, types.MemberSubmission{
		AgentName:    agentName,
		AgentType:    agentType,
		Status:       types.SubmissionFailure,
		ErrorKind:    kind,
		ErrorMessage: message,
		Usage:        usage,
		Timestamp:    time.Now().UTC(),
	})
	r.usage.Add(usage)
}

// AddUsage accumulates non-member usage (the leader's own calls).
func (r *Recorder) AddUsage(usage types.Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage.Add(usage)
}

// Submissions returns a copy of the recorded submissions in order.
func (r *Recorder) Submissions() []types.MemberSubmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.MemberSubmission, len(r.submissions))
	copy(out, r.submissions)
	return out
}

// Usage returns the accumulated usage.
func (r *Recorder) Usage() types.Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}

type recorderKey struct{}

// WithRecorder attaches a recorder to the context.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// RecorderFrom extracts the round's recorder, or nil.
func RecorderFrom(ctx context.Context) *Recorder {
	r, _ := ctx.Value(recorderKey{}).(*Recorder)
	return r
}

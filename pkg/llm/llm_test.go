// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/tools"
	"github.com/mixseek/mixseek/pkg/types"
)

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, mixerr.KindAuthentication, ClassifyStatus(401))
	assert.Equal(t, mixerr.KindAuthentication, ClassifyStatus(403))
	assert.Equal(t, mixerr.KindProviderTransient, ClassifyStatus(429))
	assert.Equal(t, mixerr.KindProviderTransient, ClassifyStatus(500))
	assert.Equal(t, mixerr.KindProviderTransient, ClassifyStatus(529))
	assert.Equal(t, mixerr.KindProviderPermanent, ClassifyStatus(400))
	assert.Equal(t, mixerr.KindProviderPermanent, ClassifyStatus(404))
}

func TestWrapTransport(t *testing.T) {
	assert.True(t, mixerr.Is(WrapTransport("p", "op", context.Canceled), mixerr.KindCancelled))
	assert.True(t, mixerr.Is(WrapTransport("p", "op", context.DeadlineExceeded), mixerr.KindTimeout))
	assert.Nil(t, WrapTransport("p", "op", nil))
}

// flakyProvider fails transiently n times, then succeeds.
type flakyProvider struct {
	failures int
	calls    int
}

func (p *flakyProvider) Chat(ctx context.Context, messages []types.Message, tls []tools.Tool) (*types.LLMResponse, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, mixerr.New(mixerr.KindProviderTransient, "test.chat", "HTTP 429")
	}
	return &types.LLMResponse{Content: "ok", Usage: types.Usage{Requests: 1}}, nil
}

func (p *flakyProvider) Name() string  { return "flaky" }
func (p *flakyProvider) Model() string { return "flaky-1" }

func fastRetry() RetryConfig {
	three := 3
	return RetryConfig{MaxRetries: &three, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestChatWithRetry_RecoversFromTransient(t *testing.T) {
	p := &flakyProvider{failures: 2}
	resp, err := ChatWithRetry(context.Background(), p, nil, nil, fastRetry())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, p.calls)
}

func TestChatWithRetry_ExhaustsBudget(t *testing.T) {
	p := &flakyProvider{failures: 100}
	_, err := ChatWithRetry(context.Background(), p, nil, nil, fastRetry())
	require.Error(t, err)
	assert.Equal(t, 4, p.calls)
	assert.True(t, mixerr.Is(err, mixerr.KindProviderTransient))
}

// permanentProvider always fails permanently.
type permanentProvider struct{ calls int }

func (p *permanentProvider) Chat(ctx context.Context, messages []types.Message, tls []tools.Tool) (*types.LLMResponse, error) {
	p.calls++
	return nil, mixerr.New(mixerr.KindAuthentication, "test.chat", "bad key")
}

func (p *permanentProvider) Name() string  { return "perm" }
func (p *permanentProvider) Model() string { return "perm-1" }

func TestChatWithRetry_ZeroDisablesRetries(t *testing.T) {
	p := &flakyProvider{failures: 100}
	zero := 0
	cfg := fastRetry()
	cfg.MaxRetries = &zero

	_, err := ChatWithRetry(context.Background(), p, nil, nil, cfg)
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestChatWithRetry_NilDefaultsToThree(t *testing.T) {
	p := &flakyProvider{failures: 100}
	cfg := fastRetry()
	cfg.MaxRetries = nil

	_, err := ChatWithRetry(context.Background(), p, nil, nil, cfg)
	require.Error(t, err)
	assert.Equal(t, 4, p.calls)
}

func TestChatWithRetry_NoRetryOnTerminal(t *testing.T) {
	p := &permanentProvider{}
	_, err := ChatWithRetry(context.Background(), p, nil, nil, fastRetry())
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
	assert.True(t, mixerr.Is(err, mixerr.KindAuthentication))
}

func TestChatWithRetry_CancelledDuringBackoff(t *testing.T) {
	p := &flakyProvider{failures: 100}
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastRetry()
	cfg.InitialBackoff = time.Second
	cancel()

	_, err := ChatWithRetry(ctx, p, nil, nil, cfg)
	require.Error(t, err)
	assert.True(t, mixerr.Is(err, mixerr.KindCancelled))
}

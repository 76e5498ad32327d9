// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package llm provides shared helpers for provider clients: HTTP status
// classification and transient-error retry with exponential backoff.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/tools"
	"github.com/mixseek/mixseek/pkg/types"
)

// ClassifyStatus maps an HTTP status code from a provider to an error
// kind. 401/403 are authentication failures; 429 and 5xx are transient;
// remaining 4xx are permanent schema or argument errors.
func ClassifyStatus(status int) mixerr.Kind {
	switch {
	case status == 401 || status == 403:
		return mixerr.KindAuthentication
	case status == 429 || status >= 500:
		return mixerr.KindProviderTransient
	case status >= 400:
		return mixerr.KindProviderPermanent
	default:
		return ""
	}
}

// WrapTransport classifies a transport-level error from an HTTP round
// trip. Context cancellation and deadline expiry keep their own kinds;
// everything else on the wire is transient.
func WrapTransport(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return &mixerr.Error{Kind: mixerr.KindCancelled, Op: op, Provider: provider, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &mixerr.Error{Kind: mixerr.KindTimeout, Op: op, Provider: provider, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &mixerr.Error{Kind: mixerr.KindProviderTransient, Op: op, Provider: provider, Err: err}
	}
	return &mixerr.Error{Kind: mixerr.KindProviderTransient, Op: op, Provider: provider, Err: err}
}

// RetryConfig controls ChatWithRetry.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt. Nil
	// means the default of 3; an explicit zero disables retries.
	MaxRetries *int

	// InitialBackoff is the first retry delay. Default 1s.
	InitialBackoff time.Duration

	// Multiplier grows the delay each attempt. Default 2.
	Multiplier float64

	// MaxBackoff caps the delay. Default 8s.
	MaxBackoff time.Duration

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

func (c *RetryConfig) defaults() {
	if c.MaxRetries == nil {
		three := 3
		c.MaxRetries = &three
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 8 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// ChatWithRetry calls provider.Chat, retrying transient failures with
// exponential backoff. Authentication errors, permanent errors,
// cancellation and timeouts are returned immediately.
func ChatWithRetry(ctx context.Context, provider types.LLMProvider, messages []types.Message, tls []tools.Tool, cfg RetryConfig) (*types.LLMResponse, error) {
	cfg.defaults()

	var lastErr error
	backoff := cfg.InitialBackoff
	maxRetries := *cfg.MaxRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			cfg.Logger.Info("retrying LLM call",
				zap.String("provider", provider.Name()),
				zap.String("model", provider.Model()),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, WrapTransport(provider.Name(), "llm.chat", ctx.Err())
			}
			backoff = time.Duration(float64(backoff) * cfg.Multiplier)
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}

		resp, err := provider.Chat(ctx, messages, tls)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !mixerr.IsTransient(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("llm call failed after %d attempts: %w", maxRetries+1, lastErr)
}

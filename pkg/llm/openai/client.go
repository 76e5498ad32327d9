// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package openai implements the LLMProvider interface for the OpenAI
// chat completions API and for OpenAI-compatible endpoints (xAI Grok).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/tools"
	"github.com/mixseek/mixseek/pkg/types"
)

const (
	// DefaultEndpoint is the OpenAI chat completions endpoint.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	// GrokEndpoint is the xAI OpenAI-compatible endpoint.
	GrokEndpoint = "https://api.x.ai/v1/chat/completions"
	// DefaultMaxTokens is the default maximum tokens per request.
	DefaultMaxTokens = 4096
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 120 * time.Second
)

// Client implements types.LLMProvider against a chat completions
// endpoint. The provider name distinguishes openai from grok.
type Client struct {
	name        string
	apiKey      string
	model       string
	endpoint    string
	httpClient  *http.Client
	maxTokens   int
	temperature *float64
}

// Config holds configuration for the client.
type Config struct {
	APIKey      string
	Model       string
	Endpoint    string
	Timeout     time.Duration
	MaxTokens   int
	Temperature *float64

	// Capability must be plain: neither OpenAI nor Grok exposes a
	// provider-native search or execution tool through this API surface.
	Capability types.Capability
}

// NewClient creates a client against the OpenAI API using
// OPENAI_API_KEY.
func NewClient(config Config) (*Client, error) {
	return newClient("openai", "OPENAI_API_KEY", DefaultEndpoint, config)
}

// NewGrokClient creates a client against the xAI API using
// GROK_API_KEY.
func NewGrokClient(config Config) (*Client, error) {
	return newClient("grok", "GROK_API_KEY", GrokEndpoint, config)
}

func newClient(name, keyVar, defaultEndpoint string, config Config) (*Client, error) {
	op := name + ".new"

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(keyVar)
	}
	if apiKey == "" {
		return nil, &mixerr.Error{
			Kind:     mixerr.KindAuthentication,
			Op:       op,
			Provider: name,
			Message:  keyVar + " is not set",
		}
	}
	if config.Model == "" {
		return nil, mixerr.New(mixerr.KindConfiguration, op, "model id is required")
	}
	if config.Capability != "" && config.Capability != types.CapabilityPlain {
		return nil, &mixerr.Error{
			Kind:     mixerr.KindProviderPermanent,
			Op:       op,
			Provider: name,
			Message:  fmt.Sprintf("capability %q is not supported", config.Capability),
		}
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}

	return &Client{
		name:        name,
		apiKey:      apiKey,
		model:       config.Model,
		endpoint:    config.Endpoint,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}, nil
}

// Name returns the provider name, "openai" or "grok".
func (c *Client) Name() string {
	return c.name
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation and returns the response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, tls []tools.Tool) (*types.LLMResponse, error) {
	apiMessages, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}

	req := &ChatRequest{
		Model:       c.model,
		Messages:    apiMessages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	apiTools, err := convertTools(tls)
	if err != nil {
		return nil, err
	}
	req.Tools = apiTools

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, err
	}
	return convertResponse(resp)
}

// convertMessages converts kernel messages to chat completions format.
func convertMessages(messages []types.Message) ([]Message, error) {
	var api []Message
	for _, msg := range messages {
		switch msg.Role {
		case "system", "user":
			api = append(api, Message{Role: msg.Role, Content: msg.Content})

		case "assistant":
			m := Message{Role: "assistant", Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Input)
				if err != nil {
					return nil, fmt.Errorf("marshaling tool arguments for %s: %w", tc.Name, err)
				}
				m.ToolCalls = append(m.ToolCalls, ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			api = append(api, m)

		case "tool":
			api = append(api, Message{
				Role:       "tool",
				Content:    msg.Content,
				ToolCallID: msg.ToolUseID,
			})

		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	return api, nil
}

// convertTools converts kernel tools to function tool definitions.
func convertTools(tls []tools.Tool) ([]Tool, error) {
	var api []Tool
	for _, t := range tls {
		schema, err := t.InputSchema().ToJSON()
		if err != nil {
			return nil, fmt.Errorf("marshaling schema for tool %s: %w", t.Name(), err)
		}
		api = append(api, Tool{
			Type: "function",
			Function: Function{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  schema,
			},
		})
	}
	return api, nil
}

// convertResponse converts a chat completions response to the kernel
// format.
func convertResponse(resp *ChatResponse) (*types.LLMResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, mixerr.New(mixerr.KindProviderPermanent, "openai.chat", "response has no choices")
	}
	choice := resp.Choices[0]

	out := &types.LLMResponse{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: types.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			Requests:     1,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		input := map[string]any{}
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
		}
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	return out, nil
}

// callAPI performs one HTTP round trip with status classification.
func (c *Client) callAPI(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	op := c.name + ".chat"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, llm.WrapTransport(c.name, op, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, llm.WrapTransport(c.name, op, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &mixerr.Error{
			Kind:     llm.ClassifyStatus(httpResp.StatusCode),
			Op:       op,
			Provider: c.name,
			Message:  fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode, msg),
		}
	}

	var resp ChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &mixerr.Error{
			Kind:     mixerr.KindProviderPermanent,
			Op:       op,
			Provider: c.name,
			Message:  "unparseable response body",
			Err:      err,
		}
	}
	return &resp, nil
}

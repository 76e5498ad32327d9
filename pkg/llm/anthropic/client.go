// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package anthropic implements the LLMProvider interface for Anthropic's
// Claude Messages API.
package anthropic

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
	// DefaultEndpoint is the Anthropic Messages API endpoint.
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	// DefaultMaxTokens is the default maximum tokens per request.
	DefaultMaxTokens = 4096
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 120 * time.Second

	apiVersion = "2023-06-01"
)

// Client implements types.LLMProvider for Anthropic.
type Client struct {
	apiKey      string
	model       string
	endpoint    string
	httpClient  *http.Client
	maxTokens   int
	temperature *float64
	webSearch   bool
}

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey      string
	Model       string
	Endpoint    string // Default: DefaultEndpoint
	Timeout     time.Duration
	MaxTokens   int
	Temperature *float64

	// Capability enables a provider-native member capability. Anthropic
	// supports web search via a server tool; code execution is not
	// available through this client.
	Capability types.Capability
}

// NewClient creates a new Anthropic client. Missing credentials are a
// typed authentication error, never a mock fallback.
func NewClient(config Config) (*Client, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, &mixerr.Error{
			Kind:     mixerr.KindAuthentication,
			Op:       "anthropic.new",
			Provider: "anthropic",
			Message:  "ANTHROPIC_API_KEY is not set",
		}
	}
	if config.Model == "" {
		return nil, mixerr.New(mixerr.KindConfiguration, "anthropic.new", "model id is required")
	}
	if config.Endpoint == "" {
		if env := os.Getenv("ANTHROPIC_API_ENDPOINT"); env != "" {
			config.Endpoint = env
		} else {
			config.Endpoint = DefaultEndpoint
		}
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}

	webSearch := false
	switch config.Capability {
	case "", types.CapabilityPlain:
	case types.CapabilityWebSearch:
		webSearch = true
	default:
		return nil, &mixerr.Error{
			Kind:     mixerr.KindProviderPermanent,
			Op:       "anthropic.new",
			Provider: "anthropic",
			Message:  fmt.Sprintf("capability %q is not supported", config.Capability),
		}
	}

	return &Client{
		apiKey:      apiKey,
		model:       config.Model,
		endpoint:    config.Endpoint,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		webSearch:   webSearch,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "anthropic"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to Claude and returns the response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, tls []tools.Tool) (*types.LLMResponse, error) {
	system, apiMessages, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}

	req := &MessagesRequest{
		Model:       c.model,
		Messages:    apiMessages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		System:      system,
	}

	apiTools, err := convertTools(tls)
	if err != nil {
		return nil, err
	}
	if c.webSearch {
		apiTools = append(apiTools, Tool{
			Type:    "web_search_20250305",
			Name:    "web_search",
			MaxUses: 5,
		})
	}
	if len(apiTools) > 0 {
		req.Tools = apiTools
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, err
	}
	return convertResponse(resp), nil
}

// convertMessages converts kernel messages to Anthropic format. System
// messages are extracted: the Messages API wants them in a separate field.
func convertMessages(messages []types.Message) (string, []Message, error) {
	var system string
	var api []Message

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content

		case "user":
			api = append(api, Message{
				Role:    "user",
				Content: []ContentBlock{{Type: "text", Text: msg.Content}},
			})

		case "assistant":
			var blocks []ContentBlock
			if msg.Content != "" {
				blocks = append(blocks, ContentBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input, err := json.Marshal(tc.Input)
				if err != nil {
					return "", nil, fmt.Errorf("marshaling tool input for %s: %w", tc.Name, err)
				}
				blocks = append(blocks, ContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: input,
				})
			}
			api = append(api, Message{Role: "assistant", Content: blocks})

		case "tool":
			// Tool results travel in a user turn.
			api = append(api, Message{
				Role: "user",
				Content: []ContentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolUseID,
					Content:   msg.Content,
				}},
			})

		default:
			return "", nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}

	return system, api, nil
}

// convertTools converts kernel tools to Anthropic tool definitions.
func convertTools(tls []tools.Tool) ([]Tool, error) {
	var api []Tool
	for _, t := range tls {
		schema, err := t.InputSchema().ToJSON()
		if err != nil {
			return nil, fmt.Errorf("marshaling schema for tool %s: %w", t.Name(), err)
		}
		api = append(api, Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: schema,
		})
	}
	return api, nil
}

// convertResponse converts an Anthropic response to the kernel format.
func convertResponse(resp *MessagesResponse) *types.LLMResponse {
	out := &types.LLMResponse{
		StopReason: resp.StopReason,
		Usage: types.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			Requests:     1,
		},
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if out.Content != "" {
				out.Content += "\n"
			}
			out.Content += block.Text
		case "tool_use":
			input := map[string]any{}
			if len(block.Input) > 0 {
				// Truncated tool inputs from max_tokens cutoffs decode to
				// an empty map rather than failing the whole response.
				_ = json.Unmarshal(block.Input, &input)
			}
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	return out
}

// callAPI performs one HTTP round trip with status classification.
func (c *Client) callAPI(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	const op = "anthropic.chat"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, llm.WrapTransport("anthropic", op, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, llm.WrapTransport("anthropic", op, err)
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
			Provider: "anthropic",
			Message:  fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode, msg),
		}
	}

	var resp MessagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &mixerr.Error{
			Kind:     mixerr.KindProviderPermanent,
			Op:       op,
			Provider: "anthropic",
			Message:  "unparseable response body",
			Err:      err,
		}
	}
	return &resp, nil
}

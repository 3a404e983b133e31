package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"feedpulse/internal/platform/config"
	"feedpulse/internal/platform/observability"
)

// ErrCircuitBreakerOpen indicates the circuit breaker is open.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// ErrNoResultsExtracted indicates no results could be extracted from the model response.
var ErrNoResultsExtracted = errors.New("failed to extract any results from LLM response")

type openaiClient struct {
	cfg         *config.Config
	client      *openai.Client
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter

	// Circuit breaker state
	consecutiveFailures int
	circuitOpenUntil    time.Time
	mu                  sync.Mutex
}

// NewOpenAI creates a client for any OpenAI-compatible chat-completions
// endpoint; the base URL defaults to DeepSeek's.
func NewOpenAI(cfg *config.Config, logger *zerolog.Logger) Client {
	clientCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		clientCfg.BaseURL = cfg.LLMBaseURL
	}

	return &openaiClient{
		cfg:         cfg,
		client:      openai.NewClientWithConfig(clientCfg),
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPS)), rateLimiterBurst),
	}
}

func (c *openaiClient) checkCircuit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Before(c.circuitOpenUntil) {
		return fmt.Errorf("%w until %v", ErrCircuitBreakerOpen, c.circuitOpenUntil)
	}

	return nil
}

func (c *openaiClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
}

func (c *openaiClient) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	if c.consecutiveFailures >= circuitBreakerThreshold {
		c.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		c.logger.Warn().
			Int("consecutive_failures", c.consecutiveFailures).
			Time("open_until", c.circuitOpenUntil).
			Msg("Circuit breaker opened")
	}
}

func (c *openaiClient) LabelItems(ctx context.Context, requests []LabelRequest) ([]LabelResult, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	if err := c.checkCircuit(); err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf(errRateLimiter, err)
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.LLMModel,
		MaxTokens: c.cfg.LLMMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: labelSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildLabelUserPrompt(requests),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	observability.LLMRequestDuration.WithLabelValues(operationLabel).Observe(time.Since(start).Seconds())

	if err != nil {
		c.recordFailure()

		return nil, fmt.Errorf(errChatCompletion, err)
	}

	c.recordSuccess()

	content := resp.Choices[0].Message.Content
	c.logger.Debug().Str("content", content).Msg("LLM label response")

	results, err := c.parseLabelJSON(content)
	if err != nil {
		return nil, err
	}

	return c.alignResults(results, requests), nil
}

// parseLabelJSON accepts the documented wrapper shape, a bare array, or
// an array nested under any key. Models drift between these even with a
// JSON response format.
func (c *openaiClient) parseLabelJSON(content string) ([]LabelResult, error) {
	if results := tryParseWrapper(content); len(results) > 0 {
		return results, nil
	}

	if results := tryParseArray(content); len(results) > 0 {
		return results, nil
	}

	if results := tryFindArrayInJSON(content); len(results) > 0 {
		return results, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNoResultsExtracted, content)
}

func tryParseWrapper(content string) []LabelResult {
	var wrapper struct {
		Results []LabelResult `json:"results"`
	}

	if err := json.Unmarshal([]byte(content), &wrapper); err == nil {
		return wrapper.Results
	}

	return nil
}

func tryParseArray(content string) []LabelResult {
	var results []LabelResult

	if err := json.Unmarshal([]byte(content), &results); err == nil {
		return results
	}

	return nil
}

func tryFindArrayInJSON(content string) []LabelResult {
	var raw map[string]interface{}

	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil
	}

	for _, v := range raw {
		arr, ok := v.([]interface{})
		if !ok || len(arr) == 0 {
			continue
		}

		arrBytes, _ := json.Marshal(v) //nolint:errchkjson // marshaling interface{} from parsed JSON, cannot fail

		var results []LabelResult
		if err := json.Unmarshal(arrBytes, &results); err == nil && len(results) > 0 {
			return results
		}
	}

	return nil
}

// alignResults matches results to requests by echoed id, falling back to
// positional order when the model dropped or rewrote ids.
func (c *openaiClient) alignResults(results []LabelResult, requests []LabelRequest) []LabelResult {
	byID := make(map[string]LabelResult, len(results))
	for _, res := range results {
		if res.ID != "" {
			byID[res.ID] = res
		}
	}

	if len(byID) == len(requests) {
		aligned := make([]LabelResult, 0, len(requests))

		allFound := true

		for _, req := range requests {
			res, ok := byID[req.ID]
			if !ok {
				allFound = false

				break
			}

			aligned = append(aligned, res)
		}

		if allFound {
			return aligned
		}
	}

	c.logger.Warn().
		Int("results", len(results)).
		Int("requests", len(requests)).
		Msg("LLM results missing ids, assuming positional order")

	aligned := make([]LabelResult, 0, len(results))

	for i, res := range results {
		if i >= len(requests) {
			break
		}

		res.ID = requests[i].ID
		aligned = append(aligned, res)
	}

	return aligned
}

func (c *openaiClient) Summarize(ctx context.Context, request SummaryRequest) (string, error) {
	if err := c.checkCircuit(); err != nil {
		return "", err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf(errRateLimiter, err)
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.LLMModel,
		MaxTokens: c.cfg.LLMMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: summarySystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildSummaryUserPrompt(request),
			},
		},
	})

	observability.LLMRequestDuration.WithLabelValues(operationSummarize).Observe(time.Since(start).Seconds())

	if err != nil {
		c.recordFailure()

		return "", fmt.Errorf(errChatCompletion, err)
	}

	c.recordSuccess()

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

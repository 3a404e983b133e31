package llm

import "time"

const (
	mockAPIKey = "mock"

	rateLimiterBurst = 5

	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 1 * time.Minute

	errRateLimiter    = "rate limiter wait: %w"
	errChatCompletion = "chat completion: %w"

	operationLabel     = "label"
	operationSummarize = "summarize"
)

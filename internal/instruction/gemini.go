// File: internal/instruction/gemini.go
package instruction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/config"
)

const systemPrompt = `You are a UX testing agent driving a real browser like a human tester would.
You receive the current page state, the persona you are playing, and your recent actions.
Reply with exactly one JSON object and nothing else:
{"action": "<click|type|scroll|hover|wait|navigate|extract|analyze|script|stop>",
 "target": "<css selector or description>", "value": "<text to type or url>",
 "reason": "<one sentence>", "confidence": <0.0-1.0>}
Prefer elements listed in the page state. Reply {"action":"stop"} when the flow is exhausted.`

// GeminiSource implements schemas.InstructionSource against the Gemini
// generateContent REST API. Calls are rate limited and retried on transient
// failures; malformed responses surface as errors for the decision engine's
// fail-soft handling, never as panics.
type GeminiSource struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	cfg        config.LLMConfig
}

// -- Gemini API request/response structures (internal to this file) --

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiSource initializes the source.
func NewGeminiSource(cfg config.LLMConfig, logger *zap.Logger) (*GeminiSource, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set UXPROBE_LLM_API_KEY)")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	return &GeminiSource{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rpm/60.0), 1),
		logger:  logger.Named("instruction.gemini"),
	}, nil
}

// NextInstruction implements schemas.InstructionSource.
func (s *GeminiSource) NextInstruction(ctx context.Context, req schemas.InstructionRequest) (*schemas.Instruction, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	userPrompt, err := json.MarshalToString(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode instruction context: %w", err)
	}

	body, err := json.Marshal(s.buildRequestPayload(userPrompt))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 90 * time.Second
	b.MaxInterval = 15 * time.Second

	var responseText string
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", s.apiKey)

		start := time.Now()
		resp, err := s.httpClient.Do(httpReq)
		if err != nil {
			s.logger.Warn("Network error calling instruction source, retrying", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return s.handleAPIError(resp.StatusCode, respBody)
		}

		var payload geminiResponsePayload
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini returned no usable candidates"))
		}

		s.logger.Debug("Instruction generated",
			zap.Duration("duration", time.Since(start)),
			zap.Int("total_tokens", payload.UsageMetadata.TotalTokenCount),
		)
		responseText = payload.Candidates[0].Content.Parts[0].Text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	inst, err := Parse(responseText)
	if err != nil {
		return nil, fmt.Errorf("instruction source returned malformed payload: %w", err)
	}
	return inst, nil
}

// Close implements schemas.InstructionSource.
func (s *GeminiSource) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *GeminiSource) buildRequestPayload(userPrompt string) geminiRequestPayload {
	return geminiRequestPayload{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      s.cfg.Temperature,
			ResponseMimeType: "application/json",
			MaxOutputTokens:  s.cfg.MaxTokens,
		},
	}
}

func (s *GeminiSource) handleAPIError(statusCode int, body []byte) error {
	err := fmt.Errorf("gemini API error: status %d, body: %s", statusCode, string(body))
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient, retry.
	default:
		s.logger.Error("Instruction source returned permanent error", zap.Int("status", statusCode))
		return backoff.Permanent(err)
	}
}

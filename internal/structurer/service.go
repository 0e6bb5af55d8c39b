// Package structurer drives the LLM-backed stages: partitioning reordered
// text into problems, structuring problem text into records, structuring
// consecutive blocks, and parsing answer-key tables. All join keys are
// derived from rules here, never delegated to the model.
package structurer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/mkobayashi/examforge/internal/providers"
)

// Config tunes the service's retry and pacing behavior.
type Config struct {
	Model          string
	Temperature    float64
	MaxRetries     int
	RateLimitDelay time.Duration
}

// Service wraps an LLMClient with pacing, bounded retries, and schema
// validation of model output.
type Service struct {
	client providers.LLMClient
	pacer  *providers.Pacer
	cfg    Config
	log    *slog.Logger
}

// NewService creates a structuring service.
func NewService(client providers.LLMClient, cfg Config, log *slog.Logger) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		client: client,
		pacer:  providers.NewPacer(cfg.RateLimitDelay),
		cfg:    cfg,
		log:    log,
	}
}

// callJSON sends a prompt and returns the model's output parsed as JSON and
// validated against schema. Each attempt waits on the pacer first so
// retries are paced the same as fresh requests. The error after exhausted
// retries is the last attempt's error.
func (s *Service) callJSON(ctx context.Context, schema *responseSchema, system, user string) (json.RawMessage, error) {
	var parsed json.RawMessage

	err := retry.Do(
		func() error {
			if err := s.pacer.Wait(ctx); err != nil {
				return err
			}

			result, err := s.client.Chat(ctx, &providers.ChatRequest{
				Messages: []providers.Message{
					{Role: "system", Content: system},
					{Role: "user", Content: user},
				},
				Model:       s.cfg.Model,
				Temperature: s.cfg.Temperature,
			})
			if err != nil {
				return err
			}

			raw, err := ExtractJSON(result.Content)
			if err != nil {
				return fmt.Errorf("%s: %w", schema.name, err)
			}
			if err := schema.validate(raw); err != nil {
				return err
			}
			parsed = raw
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.cfg.MaxRetries)),
		retry.Delay(s.cfg.RateLimitDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn("LLM call failed, retrying",
				"schema", schema.name, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("LLM call for %s failed after %d attempts: %w",
			schema.name, s.cfg.MaxRetries, err)
	}
	return parsed, nil
}

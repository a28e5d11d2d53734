package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy defines retry and backoff behavior for transient errors.
type RetryPolicy struct {
	MaxRetries    int
	BaseBackoffMs int
	MaxBackoffMs  int
}

// DefaultRetryPolicy matches the defaults applied to pipeline config files.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseBackoffMs: 200, MaxBackoffMs: 2000}
}

// Target is one adapter/model pair in a call chain.
type Target struct {
	Adapter Adapter
	Model   string
}

// PolicyAdapter retries transient failures with exponential backoff and then walks an
// ordered fallback chain. The chain's first target is the primary.
type PolicyAdapter struct {
	targets []Target
	retry   RetryPolicy
	logger  *slog.Logger
}

// NewPolicyAdapter wraps a primary target and optional fallbacks.
func NewPolicyAdapter(primary Target, retry RetryPolicy, logger *slog.Logger, fallbacks ...Target) (*PolicyAdapter, error) {
	if primary.Adapter == nil {
		return nil, fmt.Errorf("primary adapter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	targets := append([]Target{primary}, fallbacks...)
	return &PolicyAdapter{targets: targets, retry: retry, logger: logger}, nil
}

// Name returns the primary adapter's name.
func (p *PolicyAdapter) Name() string {
	return p.targets[0].Adapter.Name()
}

// Models returns the primary model first, then the primary adapter's catalog.
func (p *PolicyAdapter) Models() []string {
	primary := p.targets[0]
	if primary.Model == "" {
		return primary.Adapter.Models()
	}
	return append([]string{primary.Model}, primary.Adapter.Models()...)
}

// Complete runs the request through the chain. A request model overrides the primary
// target's model only; fallbacks always use their own.
func (p *PolicyAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for idx, target := range p.targets {
		if target.Adapter == nil {
			continue
		}
		call := req
		call.Model = target.Model
		if idx == 0 && req.Model != "" {
			call.Model = req.Model
		}

		for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
			resp, err := target.Adapter.Complete(ctx, call)
			if err == nil {
				if idx > 0 || attempt > 0 {
					p.logger.Info("completion recovered",
						slog.String("adapter", target.Adapter.Name()),
						slog.String("model", call.Model),
						slog.Int("retries", attempt),
						slog.Bool("fallback_used", idx > 0),
					)
				}
				return resp, nil
			}

			lastErr = err
			if !IsTransient(err) || attempt == p.retry.MaxRetries {
				p.logger.Warn("completion failed",
					slog.String("adapter", target.Adapter.Name()),
					slog.String("model", call.Model),
					slog.Int("retries", attempt),
					slog.String("error", err.Error()),
				)
				break
			}

			backoff := computeBackoff(p.retry.BaseBackoffMs, p.retry.MaxBackoffMs, attempt)
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil, err
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("adapter call failed")
	}
	return nil, lastErr
}

func computeBackoff(baseMs, maxMs, attempt int) time.Duration {
	backoff := time.Duration(baseMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= time.Duration(maxMs)*time.Millisecond {
			return time.Duration(maxMs) * time.Millisecond
		}
	}
	if backoff > time.Duration(maxMs)*time.Millisecond {
		return time.Duration(maxMs) * time.Millisecond
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

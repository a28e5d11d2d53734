package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/zen-systems/triage/pkg/adapter"
	"github.com/zen-systems/triage/pkg/config"
)

// Cost is an estimated spend for some usage.
type Cost struct {
	Currency   string  `json:"currency"`
	Amount     float64 `json:"amount"`
	IsEstimate bool    `json:"is_estimate"`
}

// UsageReport summarizes every completion a Service made.
type UsageReport struct {
	Currency    string                   `json:"currency"`
	TotalAmount float64                  `json:"total_amount"`
	TotalUsage  adapter.Usage            `json:"total_usage"`
	ByRole      map[string]adapter.Usage `json:"by_role"`
	Calls       []adapter.CallReport     `json:"calls"`
	Failures    int                      `json:"failures"`
}

// usageTracker collects call reports from metered adapters. Safe for concurrent use.
type usageTracker struct {
	mu          sync.Mutex
	pricing     config.PricingConfig
	calls       []adapter.CallReport
	totalUsage  adapter.Usage
	totalAmount float64
	byRole      map[string]adapter.Usage
	failures    int
}

func newUsageTracker(pricing config.PricingConfig) *usageTracker {
	return &usageTracker{pricing: pricing, byRole: make(map[string]adapter.Usage)}
}

func (t *usageTracker) record(report adapter.CallReport) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, report)
	if report.Error != "" {
		t.failures++
		return
	}
	t.totalUsage = addUsage(t.totalUsage, report.Usage)
	t.byRole[report.Role] = addUsage(t.byRole[report.Role], report.Usage)
	if cost, ok := estimateCost(t.pricing, report.Adapter, report.Model, report.Usage); ok {
		t.totalAmount += cost.Amount
	}
}

func (t *usageTracker) report() UsageReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	byRole := make(map[string]adapter.Usage, len(t.byRole))
	for k, v := range t.byRole {
		byRole[k] = v
	}
	return UsageReport{
		Currency:    "USD",
		TotalAmount: t.totalAmount,
		TotalUsage:  t.totalUsage,
		ByRole:      byRole,
		Calls:       append([]adapter.CallReport(nil), t.calls...),
		Failures:    t.failures,
	}
}

// meteredAdapter reports every call to a usageTracker under a pipeline role.
type meteredAdapter struct {
	adapter.Adapter
	role    string
	tracker *usageTracker
}

func (m *meteredAdapter) Complete(ctx context.Context, req adapter.Request) (*adapter.Response, error) {
	start := time.Now()
	resp, err := m.Adapter.Complete(ctx, req)

	report := adapter.CallReport{
		Role:           m.role,
		Adapter:        m.Adapter.Name(),
		Model:          adapter.ModelOrDefault(m.Adapter, req.Model),
		DurationMillis: time.Since(start).Milliseconds(),
	}
	if err != nil {
		report.Error = err.Error()
	} else {
		report.Adapter = resp.Adapter
		report.Model = resp.Model
		report.Usage = normalizeUsage(resp.Usage)
	}
	m.tracker.record(report)
	return resp, err
}

func normalizeUsage(u *adapter.Usage) adapter.Usage {
	if u == nil {
		return adapter.Usage{}
	}
	usage := *u
	if usage.TotalTokens == 0 && (usage.PromptTokens > 0 || usage.CompletionTokens > 0) {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

func estimateCost(pricing config.PricingConfig, adapterName, model string, usage adapter.Usage) (Cost, bool) {
	entry, ok := pricingFor(pricing, adapterName, model)
	if !ok {
		return Cost{Currency: "USD"}, false
	}

	promptCost := (float64(usage.PromptTokens) / 1000.0) * entry.PromptPer1K
	completionCost := (float64(usage.CompletionTokens) / 1000.0) * entry.CompletionPer1K
	return Cost{
		Currency:   "USD",
		Amount:     promptCost + completionCost,
		IsEstimate: true,
	}, true
}

func pricingFor(pricing config.PricingConfig, adapterName, model string) (config.ModelPricing, bool) {
	if pricing == nil {
		return config.ModelPricing{}, false
	}
	if adapterPricing, ok := pricing[adapterName]; ok {
		if entry, ok := adapterPricing[model]; ok {
			return entry, true
		}
		if entry, ok := adapterPricing["default"]; ok {
			return entry, true
		}
	}
	return config.ModelPricing{}, false
}

func addUsage(a adapter.Usage, b adapter.Usage) adapter.Usage {
	return adapter.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}

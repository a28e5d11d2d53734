// Package pipeline assembles the triage components from configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/triage/pkg/adapter"
	"github.com/zen-systems/triage/pkg/config"
	"github.com/zen-systems/triage/pkg/drafter"
	"github.com/zen-systems/triage/pkg/embedding"
	"github.com/zen-systems/triage/pkg/evaluator"
	"github.com/zen-systems/triage/pkg/gate"
	"github.com/zen-systems/triage/pkg/patterns"
	"github.com/zen-systems/triage/pkg/router"
	"github.com/zen-systems/triage/pkg/schema"
	"github.com/zen-systems/triage/pkg/vectorstore"
)

// Pipeline roles, as recorded in usage reports.
const (
	RoleEvaluator  = "evaluator"
	RoleArbiter    = "arbiter"
	RoleDrafter    = "drafter"
	RoleValidator  = "validator"
	RoleSummarizer = "summarizer"
	RoleDetector   = "detector"
)

// Options overrides what New would otherwise build from configuration.
type Options struct {
	// Offline routes every role to the mock adapter and uses fallback embeddings.
	Offline  bool
	Logger   *slog.Logger
	Registry *adapter.Registry
	Embedder embedding.Embedder
	Backend  vectorstore.Backend
}

// Service is the assembled triage pipeline.
type Service struct {
	cfg      *config.PipelineConfig
	logger   *slog.Logger
	usage    *usageTracker
	emb      *embedding.Generator
	store    *vectorstore.Store
	router   *router.Router
	drafter  *drafter.Drafter
	analyzer *patterns.Analyzer

	closeOnce sync.Once
	closeErr  error
}

// IndexReport summarizes a batch Index call.
type IndexReport struct {
	Indexed  int      `json:"indexed"`
	Degraded int      `json:"degraded"`
	Failed   []string `json:"failed,omitempty"`
}

// New builds a Service from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	pcfg := cfg.Pipeline
	if pcfg == nil {
		pcfg = config.DefaultPipelineConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scheme, err := idScheme(pcfg.IDScheme)
	if err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = adapter.NewRegistry(adapter.Credentials{
			AnthropicAPIKey: cfg.AnthropicAPIKey,
			OpenAIAPIKey:    cfg.OpenAIAPIKey,
			GoogleAPIKey:    cfg.GoogleAPIKey,
			DeepSeekAPIKey:  cfg.DeepSeekAPIKey,
			OllamaHost:      cfg.OllamaHost,
		}, logger)
	}
	aliases, err := config.LoadAliasesFromDir(cfg.ConfigDir)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:    pcfg,
		logger: logger,
		usage:  newUsageTracker(pcfg.Pricing),
	}
	b := &roleBuilder{
		cfg:      pcfg,
		registry: registry,
		aliases:  aliases,
		offline:  opts.Offline,
		usage:    s.usage,
		logger:   logger,
	}

	roles := map[string]config.RouteTarget{
		RoleEvaluator:  pcfg.Roles.Evaluator,
		RoleArbiter:    pcfg.Roles.Arbiter,
		RoleDrafter:    pcfg.Roles.Drafter,
		RoleValidator:  pcfg.Roles.Validator,
		RoleSummarizer: pcfg.Roles.Summarizer,
		RoleDetector:   pcfg.Roles.Detector,
	}
	built := make(map[string]roleAdapter, len(roles))
	for role, target := range roles {
		ra, err := b.build(role, target)
		if err != nil {
			return nil, err
		}
		built[role] = ra
	}

	s.emb = embedding.NewGenerator(b.embedder(cfg, opts), pcfg.Embedding.Dimension, logger)

	backend := opts.Backend
	if backend == nil {
		backend, err = openBackend(pcfg.Store, logger)
		if err != nil {
			return nil, err
		}
	}
	s.store, err = vectorstore.New(ctx, backend, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	timeout := pcfg.CallTimeout()

	eval := built[RoleEvaluator]
	ev := evaluator.New(eval.adapter, eval.model,
		evaluator.WithTimeout(timeout),
		evaluator.WithPrecedentLimit(pcfg.PrecedentLimit),
		evaluator.WithLogger(logger),
	)
	arb := built[RoleArbiter]
	arbiter := router.NewArbiter(arb.adapter, pcfg.DefaultDepartment,
		router.WithModel(arb.model),
		router.WithIDScheme(scheme),
		router.WithTimeout(timeout),
		router.WithLogger(logger),
	)
	s.router = router.NewRouter(s.emb, s.store, evaluator.NewPanel(ev, logger), arbiter,
		router.WithPrecedentLimit(pcfg.PrecedentLimit),
		router.WithRouterLogger(logger),
	)

	val := built[RoleValidator]
	draft := built[RoleDrafter]
	s.drafter = drafter.New(draft.adapter, draft.model,
		drafter.NewValidator(val.adapter, val.model, timeout),
		drafter.WithExamples(s.store, s.emb, pcfg.DraftExampleLimit),
		drafter.WithToneRules(drafter.DefaultToneRules().Merge(pcfg.ToneRules)),
		drafter.WithGates(draftGates(pcfg.Gates)...),
		drafter.WithTimeout(timeout),
		drafter.WithLogger(logger),
	)

	sum := built[RoleSummarizer]
	det := built[RoleDetector]
	s.analyzer = patterns.NewAnalyzer(sum.adapter, sum.model,
		patterns.WithDetector(det.adapter, det.model),
		patterns.WithMisuseContexts(patterns.DefaultMisuseContexts().Merge(pcfg.MisuseContexts)),
		patterns.WithMaxParallel(pcfg.MaxParallel),
		patterns.WithTimeout(timeout),
		patterns.WithLogger(logger),
	)

	logger.Info("triage pipeline ready",
		slog.Bool("offline", opts.Offline),
		slog.String("embedding_model", s.emb.Model()),
		slog.Int("dimension", s.emb.Dimension()),
		slog.String("id_scheme", pcfg.IDScheme),
	)
	return s, nil
}

// Index embeds and stores a batch of historical tickets. Individual failures are logged
// and reported; they never abort the batch.
func (s *Service) Index(ctx context.Context, tickets []schema.Ticket) (IndexReport, error) {
	var (
		mu     sync.Mutex
		report IndexReport
	)
	start := time.Now()

	limit := s.cfg.MaxParallel
	if limit <= 0 {
		limit = patterns.DefaultMaxParallel
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, t := range tickets {
		g.Go(func() error {
			tier, err := s.indexOne(gctx, t)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("ticket not indexed",
					slog.String("ticket", t.ID),
					slog.String("error", err.Error()),
				)
				report.Failed = append(report.Failed, t.ID)
				return nil
			}
			report.Indexed++
			if tier != vectorstore.TierFull {
				report.Degraded++
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.logger.Info("tickets indexed",
		slog.Int("indexed", report.Indexed),
		slog.Int("degraded", report.Degraded),
		slog.Int("failed", len(report.Failed)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return report, nil
}

func (s *Service) indexOne(ctx context.Context, t schema.Ticket) (vectorstore.Tier, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	vec, err := s.emb.Embed(ctx, embedding.TicketText(t))
	if err != nil {
		return "", err
	}
	return s.store.Upsert(ctx, t.ID, vec, t)
}

// Route assigns ticket to one of departments.
func (s *Service) Route(ctx context.Context, ticket schema.Ticket, departments []schema.Department) (*router.Result, error) {
	return s.router.Route(ctx, ticket, departments)
}

// Draft produces a validated reply for ticket on behalf of department. Attempts at or
// below zero use the configured maximum.
func (s *Service) Draft(ctx context.Context, ticket schema.Ticket, department string, attempts int) (schema.DraftResponse, error) {
	if attempts <= 0 {
		attempts = s.cfg.MaxDraftAttempts
	}
	return s.drafter.Draft(ctx, ticket, department, attempts)
}

// Analyze runs batch pattern detection over tickets for department.
func (s *Service) Analyze(ctx context.Context, tickets []schema.Ticket, department string) (schema.PatternReport, error) {
	return s.analyzer.Analyze(ctx, tickets, department)
}

// Similar returns the k stored tickets closest to text that pass filter.
func (s *Service) Similar(ctx context.Context, text string, filter vectorstore.Filter, k int) ([]vectorstore.Match, error) {
	vec, err := s.emb.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.store.Query(ctx, vec, filter, k)
}

// Usage reports every completion made so far.
func (s *Service) Usage() UsageReport {
	return s.usage.report()
}

// Close releases the vector store. It is safe to call more than once.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.store.Close()
	})
	return s.closeErr
}

func draftGates(cfg config.GateConfig) []gate.Gate {
	if cfg.Disabled {
		return nil
	}
	return []gate.Gate{
		gate.NewPlaceholderGate(),
		gate.NewBoilerplateGate(cfg.BannedPhrases...),
		gate.NewLengthGate(cfg.MinLength, cfg.MaxLength),
	}
}

func idScheme(name string) (schema.IDScheme, error) {
	switch name {
	case "", "uuid":
		return schema.UUIDScheme, nil
	case "any":
		return schema.AnyNonEmpty, nil
	default:
		return nil, fmt.Errorf("unknown id scheme: %s", name)
	}
}

func openBackend(cfg config.StoreConfig, logger *slog.Logger) (vectorstore.Backend, error) {
	if cfg.InMemory {
		return vectorstore.NewMemoryBackend(cfg.MaxRecordBytes), nil
	}
	return vectorstore.OpenBadger(vectorstore.BadgerOptions{
		Path:           cfg.Path,
		MaxRecordBytes: cfg.MaxRecordBytes,
		Logger:         logger,
	})
}

type roleAdapter struct {
	adapter adapter.Adapter
	model   string
}

type roleBuilder struct {
	cfg      *config.PipelineConfig
	registry *adapter.Registry
	aliases  *config.ModelAliases
	offline  bool
	usage    *usageTracker
	logger   *slog.Logger
}

// build resolves a role to a retrying, metered adapter with its fallback chain.
func (b *roleBuilder) build(role string, target config.RouteTarget) (roleAdapter, error) {
	target = b.cfg.Resolve(target)
	if b.offline {
		target = config.RouteTarget{Adapter: "mock", Model: "mock-1"}
	}
	target.Model = b.aliases.Resolve(target.Model)

	primary, err := b.target(target)
	if err != nil {
		return roleAdapter{}, fmt.Errorf("%s: %w", role, err)
	}

	var fallbacks []adapter.Target
	if !b.offline {
		for _, fb := range b.cfg.ChainFor(target) {
			fb.Model = b.aliases.Resolve(fb.Model)
			t, err := b.target(fb)
			if err != nil {
				b.logger.Warn("fallback target skipped",
					slog.String("role", role),
					slog.String("adapter", fb.Adapter),
					slog.String("error", err.Error()),
				)
				continue
			}
			fallbacks = append(fallbacks, t)
		}
	}

	retry := adapter.RetryPolicy{
		MaxRetries:    b.cfg.Retry.MaxRetries,
		BaseBackoffMs: b.cfg.Retry.BaseBackoffMs,
		MaxBackoffMs:  b.cfg.Retry.MaxBackoffMs,
	}
	if role == RoleDrafter {
		// Each draft attempt is one generation call; the drafter loop does the retrying.
		retry.MaxRetries = 0
	}
	policy, err := adapter.NewPolicyAdapter(primary, retry, b.logger, fallbacks...)
	if err != nil {
		return roleAdapter{}, fmt.Errorf("%s: %w", role, err)
	}
	return roleAdapter{
		adapter: &meteredAdapter{Adapter: policy, role: role, tracker: b.usage},
		model:   target.Model,
	}, nil
}

func (b *roleBuilder) target(t config.RouteTarget) (adapter.Target, error) {
	a, err := b.registry.MustGet(t.Adapter)
	if err != nil {
		return adapter.Target{}, err
	}
	if t.Adapter != "mock" {
		if err := b.aliases.ValidateModel(t.Adapter, t.Model); err != nil {
			b.logger.Warn("model not in provider list",
				slog.String("adapter", t.Adapter),
				slog.String("model", t.Model),
				slog.String("error", err.Error()),
			)
		}
	}
	return adapter.Target{Adapter: a, Model: t.Model}, nil
}

// embedder returns the configured provider, or nil for fallback embeddings.
func (b *roleBuilder) embedder(cfg *config.Config, opts Options) embedding.Embedder {
	if opts.Embedder != nil {
		return opts.Embedder
	}
	if opts.Offline {
		return nil
	}
	e, err := embedding.New(embedding.Config{
		Provider:     b.cfg.Embedding.Provider,
		Model:        b.cfg.Embedding.Model,
		Dimension:    b.cfg.Embedding.Dimension,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		GoogleAPIKey: cfg.GoogleAPIKey,
		OllamaHost:   cfg.OllamaHost,
	})
	if err != nil {
		b.logger.Warn("embedding provider unavailable, using fallback vectors",
			slog.String("provider", b.cfg.Embedding.Provider),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return e
}

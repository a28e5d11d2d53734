package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zen-systems/triage/pkg/embedding"
	"github.com/zen-systems/triage/pkg/evaluator"
	"github.com/zen-systems/triage/pkg/schema"
	"github.com/zen-systems/triage/pkg/vectorstore"
)

// DefaultPrecedentLimit is how many similar tickets each department sees.
const DefaultPrecedentLimit = 5

// Router runs the full routing flow for one ticket: embed, store, gather precedent per
// department, evaluate, arbitrate.
type Router struct {
	embedder       *embedding.Generator
	store          *vectorstore.Store
	panel          *evaluator.Panel
	arbiter        *Arbiter
	precedentLimit int
	logger         *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithPrecedentLimit sets how many similar tickets are retrieved per department.
func WithPrecedentLimit(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.precedentLimit = min(n, evaluator.MaxPrecedentLimit)
		}
	}
}

// WithRouterLogger sets the logger.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter wires the routing components together.
func NewRouter(emb *embedding.Generator, store *vectorstore.Store, panel *evaluator.Panel, arbiter *Arbiter, opts ...RouterOption) *Router {
	r := &Router{
		embedder:       emb,
		store:          store,
		panel:          panel,
		arbiter:        arbiter,
		precedentLimit: DefaultPrecedentLimit,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is a routing decision together with the opinions it was built from.
type Result struct {
	Decision schema.RoutingDecision `json:"decision"`
	Opinions []evaluator.Opinion    `json:"-"`
}

// Route produces a decision for ticket. Only an invalid ticket or an unusable department
// list is an error; every service failure degrades inside the flow.
func (r *Router) Route(ctx context.Context, ticket schema.Ticket, departments []schema.Department) (*Result, error) {
	if err := ticket.Validate(); err != nil {
		return nil, err
	}
	if len(departments) == 0 {
		return nil, ErrNoDepartments
	}
	start := time.Now()

	vec, err := r.embedder.Embed(ctx, embedding.TicketText(ticket))
	if err != nil {
		return nil, fmt.Errorf("embed ticket: %w", err)
	}
	if _, err := r.store.Upsert(ctx, ticket.ID, vec, ticket); err != nil {
		r.logger.Warn("live ticket not stored",
			slog.String("ticket", ticket.ID),
			slog.String("error", err.Error()),
		)
	}

	precedent := func(ctx context.Context, dept schema.Department) ([]schema.Ticket, error) {
		matches, err := r.store.Query(ctx, vec, vectorstore.Filter{
			Owner:       dept,
			ExcludeKeys: []string{ticket.ID},
		}, r.precedentLimit)
		if err != nil {
			return nil, err
		}
		out := make([]schema.Ticket, len(matches))
		for i, m := range matches {
			out[i] = m.Record.Metadata
		}
		return out, nil
	}

	opinions := r.panel.EvaluateAll(ctx, ticket, departments, precedent)
	decision, err := r.arbiter.Decide(ctx, ticket, departments, evaluator.Evaluations(opinions))
	if err != nil {
		return nil, err
	}

	r.logger.Info("ticket routed",
		slog.String("ticket", ticket.ID),
		slog.String("department", decision.DepartmentName),
		slog.Int("confidence", decision.Confidence),
		slog.String("path", string(decision.Path)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return &Result{Decision: decision, Opinions: opinions}, nil
}

package evaluator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/triage/pkg/schema"
)

// PrecedentFunc returns the precedent tickets for one department.
type PrecedentFunc func(ctx context.Context, dept schema.Department) ([]schema.Ticket, error)

// Opinion is one department's result. Evaluation is nil when the department abstained.
type Opinion struct {
	Department schema.Department
	Evaluation *schema.Evaluation
	Err        error
}

// Panel runs one evaluator per department.
type Panel struct {
	evaluator *Evaluator
	logger    *slog.Logger
}

// NewPanel creates a panel over a shared evaluator.
func NewPanel(e *Evaluator, logger *slog.Logger) *Panel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{evaluator: e, logger: logger}
}

// EvaluateAll evaluates ticket for every department concurrently and waits for all of them.
// Opinions come back in department order. A failed precedent lookup or evaluation is an
// abstention and never cancels the others.
func (p *Panel) EvaluateAll(ctx context.Context, ticket schema.Ticket, depts []schema.Department, precedent PrecedentFunc) []Opinion {
	opinions := make([]Opinion, len(depts))
	start := time.Now()

	var g errgroup.Group
	for i, dept := range depts {
		opinions[i].Department = dept
		g.Go(func() error {
			var examples []schema.Ticket
			if precedent != nil {
				found, err := precedent(ctx, dept)
				if err != nil {
					p.logger.Warn("precedent lookup failed",
						slog.String("department", dept.Name),
						slog.String("error", err.Error()),
					)
				}
				examples = found
			}

			eval, err := p.evaluator.Evaluate(ctx, dept, ticket, examples)
			if err != nil {
				p.logger.Warn("department abstained",
					slog.String("ticket", ticket.ID),
					slog.String("department", dept.Name),
					slog.String("error", err.Error()),
				)
				opinions[i].Err = err
				return nil
			}
			opinions[i].Evaluation = eval
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Debug("panel complete",
		slog.String("ticket", ticket.ID),
		slog.Int("departments", len(depts)),
		slog.Int("abstained", countAbstained(opinions)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return opinions
}

// Evaluations returns each opinion's evaluation in department order, nil for abstentions.
func Evaluations(opinions []Opinion) []*schema.Evaluation {
	out := make([]*schema.Evaluation, len(opinions))
	for i, o := range opinions {
		out[i] = o.Evaluation
	}
	return out
}

func countAbstained(opinions []Opinion) int {
	n := 0
	for _, o := range opinions {
		if o.Evaluation == nil {
			n++
		}
	}
	return n
}

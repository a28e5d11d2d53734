// Package patterns looks across a batch of tickets for repeated work and misuse.
package patterns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/triage/pkg/adapter"
	"github.com/zen-systems/triage/pkg/schema"
)

// ErrEmptyBatch is returned when there are no tickets to analyze.
var ErrEmptyBatch = errors.New("empty ticket batch")

const (
	// DefaultMaxParallel bounds concurrent summary calls.
	DefaultMaxParallel = 8

	rationaleUnparsed    = "could not parse"
	rationaleUnavailable = "detector unavailable"
)

const (
	microSystemPrompt = `Summarize the help-desk ticket in ONE sentence of at most 25 words. Return only the sentence.`
	macroSystemPrompt = `You read one-line summaries of help-desk tickets from one department.
Write a short paragraph describing the recurring themes, who is affected, and how often each theme appears.`
	repetitionSystemPrompt = `You look for repetitive help-desk work that automation or self-service could remove.
Return ONLY JSON: {"detected": true|false, "rationale": "..."}`
	misuseSystemPrompt = `You look for misuse of the help desk: security or policy violations hidden in requests.
Return ONLY JSON: {"detected": true|false, "rationale": "..."}`
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithDetector uses a separate adapter and model for the two detectors.
func WithDetector(a adapter.Adapter, model string) Option {
	return func(an *Analyzer) {
		an.detector = a
		an.detectorModel = model
	}
}

// WithMisuseContexts replaces the misuse context table.
func WithMisuseContexts(m MisuseContexts) Option {
	return func(an *Analyzer) {
		if len(m) > 0 {
			an.contexts = m
		}
	}
}

// WithMaxParallel bounds concurrent summary calls.
func WithMaxParallel(n int) Option {
	return func(an *Analyzer) {
		if n > 0 {
			an.maxParallel = n
		}
	}
}

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(an *Analyzer) { an.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(an *Analyzer) {
		if l != nil {
			an.logger = l
		}
	}
}

// Analyzer runs the batch pipeline: per-ticket summaries, one macro summary, then the
// repetition and misuse detectors.
type Analyzer struct {
	summarizer      adapter.Adapter
	summarizerModel string
	detector        adapter.Adapter
	detectorModel   string
	contexts        MisuseContexts
	maxParallel     int
	timeout         time.Duration
	logger          *slog.Logger
}

// NewAnalyzer creates an analyzer. The summarizer also serves as detector unless
// WithDetector is given.
func NewAnalyzer(summarizer adapter.Adapter, model string, opts ...Option) *Analyzer {
	a := &Analyzer{
		summarizer:      summarizer,
		summarizerModel: model,
		detector:        summarizer,
		detectorModel:   model,
		contexts:        DefaultMisuseContexts(),
		maxParallel:     DefaultMaxParallel,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze produces a report for the batch. Only an empty batch or an invalid ticket is an
// error; every failed call degrades to a local default.
func (a *Analyzer) Analyze(ctx context.Context, tickets []schema.Ticket, department string) (schema.PatternReport, error) {
	if len(tickets) == 0 {
		return schema.PatternReport{}, ErrEmptyBatch
	}
	for i := range tickets {
		if err := tickets[i].Validate(); err != nil {
			return schema.PatternReport{}, fmt.Errorf("ticket %d: %w", i, err)
		}
	}
	start := time.Now()

	micro := a.summarizeAll(ctx, tickets)
	macro := a.macroSummary(ctx, micro, department)

	var repetition, misuse schema.Detection
	var g errgroup.Group
	g.Go(func() error {
		repetition = a.detect(ctx, "repetition", repetitionSystemPrompt, repetitionPrompt(macro, len(tickets)))
		return nil
	})
	g.Go(func() error {
		misuse = a.detect(ctx, "misuse", misuseSystemPrompt, misusePrompt(macro, department, a.contexts.For(department)))
		return nil
	})
	_ = g.Wait()

	a.logger.Info("pattern analysis complete",
		slog.String("department", department),
		slog.Int("tickets", len(tickets)),
		slog.Bool("repetition", repetition.Detected),
		slog.Bool("misuse", misuse.Detected),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return schema.PatternReport{
		MicroSummaries: micro,
		MacroSummary:   macro,
		Repetition:     repetition,
		Misuse:         misuse,
		DepartmentName: department,
	}, nil
}

// summarizeAll returns one summary per ticket in input order. A failed summary is replaced
// by the ticket title.
func (a *Analyzer) summarizeAll(ctx context.Context, tickets []schema.Ticket) []string {
	out := make([]string, len(tickets))

	var g errgroup.Group
	g.SetLimit(a.maxParallel)
	for i, t := range tickets {
		g.Go(func() error {
			summary, err := a.summarize(ctx, t)
			if err != nil {
				a.logger.Warn("ticket summary failed, using title",
					slog.String("ticket", t.ID),
					slog.String("error", err.Error()),
				)
				summary = strings.TrimSpace(t.Title)
			}
			out[i] = summary
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (a *Analyzer) summarize(ctx context.Context, t schema.Ticket) (string, error) {
	prompt := fmt.Sprintf("Title: %s\nDescription: %s", t.Title, t.Description)
	if t.Category != "" {
		prompt += "\nCategory: " + t.Category
	}
	text, err := a.complete(ctx, a.summarizer, a.summarizerModel, microSystemPrompt, prompt, false)
	if err != nil {
		return "", err
	}
	line := firstLine(text)
	if line == "" {
		return "", fmt.Errorf("empty summary")
	}
	return line, nil
}

// macroSummary condenses the micro summaries. On failure it returns them joined.
func (a *Analyzer) macroSummary(ctx context.Context, micro []string, department string) string {
	joined := joinSummaries(micro)
	prompt := fmt.Sprintf("Department: %s\nTicket summaries:\n%s", department, joined)

	text, err := a.complete(ctx, a.summarizer, a.summarizerModel, macroSystemPrompt, prompt, false)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("empty macro summary")
	}
	if err != nil {
		a.logger.Warn("macro summary failed, using joined summaries", slog.String("error", err.Error()))
		return joined
	}
	return strings.TrimSpace(text)
}

type detectionPayload struct {
	Detected  *bool  `json:"detected"`
	Rationale string `json:"rationale"`
}

func (a *Analyzer) detect(ctx context.Context, name, system, prompt string) schema.Detection {
	text, err := a.complete(ctx, a.detector, a.detectorModel, system, prompt, true)
	if err != nil {
		a.logger.Warn("detector call failed", slog.String("detector", name), slog.String("error", err.Error()))
		return schema.Detection{Detected: false, Rationale: rationaleUnavailable}
	}
	var p detectionPayload
	if err := schema.DecodeJSON(text, &p); err != nil || p.Detected == nil {
		a.logger.Warn("detector output malformed", slog.String("detector", name))
		return schema.Detection{Detected: false, Rationale: rationaleUnparsed}
	}
	return schema.Detection{Detected: *p.Detected, Rationale: strings.TrimSpace(p.Rationale)}
}

func (a *Analyzer) complete(ctx context.Context, ad adapter.Adapter, model, system, prompt string, jsonMode bool) (string, error) {
	if ad == nil {
		return "", fmt.Errorf("no adapter configured")
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	resp, err := ad.Complete(ctx, adapter.Request{Model: model, System: system, Prompt: prompt, JSON: jsonMode})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func repetitionPrompt(macro string, n int) string {
	return fmt.Sprintf("Summary of %d recent tickets:\n%s\n\nIs there repetitive work here that automation or self-service could handle?", n, macro)
}

func misusePrompt(macro, department, misuseContext string) string {
	return fmt.Sprintf("Department: %s\nWhat misuse looks like here: %s\n\nSummary of recent tickets:\n%s\n\nDo these tickets show misuse?", department, misuseContext, macro)
}

func joinSummaries(micro []string) string {
	var sb strings.Builder
	for i, s := range micro {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, s))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

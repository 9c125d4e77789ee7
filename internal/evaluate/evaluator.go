package evaluate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docassess/internal/doctree"
	"github.com/dgallion1/docassess/internal/genext"
	"github.com/dgallion1/docassess/internal/loader"
	"github.com/dgallion1/docassess/internal/rubric"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/dgallion1/docassess/internal/evaluate")

// Finding is the verdict for one rule. Field names are what the job
// service expects.
type Finding struct {
	SectionName string `json:"section_name"`
	Summary     string `json:"summary"`
	Score       int    `json:"score"`
	Details     string `json:"details"`
}

// ChatClient is the part of the LLM gateway client the evaluator needs.
type ChatClient interface {
	Chat(ctx context.Context, req genext.ChatRequest) (*genext.ChatResponse, error)
}

type Options struct {
	Model       genext.Model
	Temperature float64
	MaxTokens   int
}

func DefaultOptions() Options {
	return Options{
		Model:       genext.ModelGPT4o,
		Temperature: 0.2,
		MaxTokens:   400,
	}
}

// Evaluator scores a document tree against rubric rules, one LLM call per
// rule, in order.
type Evaluator struct {
	client ChatClient
	opts   Options
	log    *slog.Logger

	// OnRule, if set, is called after each finding with the number of
	// rules done so far and the total.
	OnRule func(done, total int)
}

func NewEvaluator(client ChatClient, opts Options, log *slog.Logger) *Evaluator {
	def := DefaultOptions()
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	return &Evaluator{client: client, opts: opts, log: log}
}

// Evaluate returns one finding per rule. The first LLM error aborts the
// whole evaluation and no findings are returned.
func (e *Evaluator) Evaluate(ctx context.Context, tree *doctree.Tree, rules []rubric.Rule) ([]Finding, error) {
	var document string
	findings := make([]Finding, 0, len(rules))

	for i, rule := range rules {
		var scope string
		if rule.SectionText == "" {
			if document == "" {
				document = tree.Render()
			}
			scope = document
		} else {
			scope = Scope(tree, rule.SectionText)
		}

		f, err := e.evaluateRule(ctx, rule, scope)
		if err != nil {
			return nil, fmt.Errorf("evaluate rule %s: %w", rule.ID, err)
		}
		findings = append(findings, f)
		if e.OnRule != nil {
			e.OnRule(i+1, len(rules))
		}
	}
	return findings, nil
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule rubric.Rule, scope string) (Finding, error) {
	ctx, span := tracer.Start(ctx, "evaluate_rule")
	defer span.End()
	span.SetAttributes(
		attribute.String("rule_id", rule.ID),
		attribute.String("section_text", rule.SectionText),
	)

	log := e.log.With("rule_id", rule.ID, "section", rule.SectionText)
	log.Info("evaluating rule", "scope_tokens", EstimateTokens(scope))

	resp, err := e.client.Chat(ctx, genext.ChatRequest{
		System:              SystemPrompt(rule.Render()),
		Question:            Question(scope),
		Model:               e.opts.Model,
		Temperature:         e.opts.Temperature,
		MaxCompletionTokens: e.opts.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		return Finding{}, err
	}

	answer := resp.Completion
	score := ExtractScore(log, answer)
	span.SetAttributes(attribute.Int("score", score))
	log.Info("rule evaluated", "score", score)

	return Finding{
		SectionName: rule.SectionText,
		Summary:     fmt.Sprintf("Score: %d for section %s", score, rule.SectionText),
		Score:       score,
		Details:     answer,
	}, nil
}

// PerformEvaluation loads the document and rubric from disk and evaluates
// every rule.
func (e *Evaluator) PerformEvaluation(ctx context.Context, documentPath, rubricPath string, lopts loader.Options) ([]Finding, error) {
	tree, err := loader.Load(documentPath, lopts)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	rb, err := rubric.LoadFile(rubricPath)
	if err != nil {
		return nil, fmt.Errorf("load rubric: %w", err)
	}
	rules := rb.Rules()
	e.log.Info("starting evaluation", "document", documentPath, "rules", len(rules), "nodes", tree.Len())
	return e.Evaluate(ctx, tree, rules)
}

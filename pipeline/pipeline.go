package pipeline

import (
	"context"
	"fmt"
	"time"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pkg/logger"
)

// Pipeline runs a rule set over a tree, one rule at a time.
// Findings are appended in rule order, then in the order each rule
// returned them. A fatal finding ends the run.
type Pipeline struct {
	rules   *RuleSet
	metrics *tv.Metrics
	options *PipelineOptions
}

// PipelineOptions configures pipeline behavior.
type PipelineOptions struct {
	// RuleTimeout is the maximum time for a single rule (0 = no timeout)
	RuleTimeout time.Duration

	// CollectMetrics enables per-rule timing
	CollectMetrics bool
}

// DefaultPipelineOptions returns sensible defaults.
func DefaultPipelineOptions() *PipelineOptions {
	return &PipelineOptions{
		RuleTimeout:    0,
		CollectMetrics: true,
	}
}

// NewPipeline creates a pipeline over the rule set.
func NewPipeline(rules *RuleSet, opts *PipelineOptions) *Pipeline {
	if rules == nil {
		rules = NewRuleSet()
	}
	if opts == nil {
		opts = DefaultPipelineOptions()
	}
	return &Pipeline{
		rules:   rules,
		metrics: tv.NewMetrics(),
		options: opts,
	}
}

// Execute runs every enabled rule that applies to pctx.Pass and returns
// pctx.Result (created if nil). Execute never panics because of a rule:
// a rule error or panic becomes a RULE_ERROR finding and the run continues.
func (p *Pipeline) Execute(ctx context.Context, pctx *Context) *tv.Result {
	if pctx.Result == nil {
		pctx.Result = tv.NewResult(tv.ModeFull)
	}
	if pctx.Metrics == nil && p.options.CollectMetrics {
		pctx.Metrics = p.metrics
	}

	for _, rule := range p.rules.Rules() {
		if err := ctx.Err(); err != nil {
			logger.Debug("validation cancelled", "rule", rule.ID(), "err", err)
			break
		}
		if !pctx.Settings.Enabled(rule.SettingKey()) {
			continue
		}
		if !rule.Scope().Includes(pctx.Pass) {
			continue
		}

		findings := p.executeRule(ctx, pctx, rule)
		pctx.Result.AddAll(findings)

		if hasFatal(findings) {
			break
		}
	}

	return pctx.Result
}

// executeRule runs a single rule with timing and recovery.
func (p *Pipeline) executeRule(ctx context.Context, pctx *Context, rule Rule) (findings []tv.Finding) {
	ruleCtx := ctx
	if p.options.RuleTimeout > 0 {
		var cancel context.CancelFunc
		ruleCtx, cancel = context.WithTimeout(ctx, p.options.RuleTimeout)
		defer cancel()
	}

	start := time.Now()
	failed := false
	defer func() {
		if r := recover(); r != nil {
			failed = true
			logger.Error("rule panicked", "rule", rule.ID(), "panic", r)
			findings = append(findings, ruleError(rule, fmt.Errorf("panic: %v", r)))
		}
		if p.options.CollectMetrics && pctx.Metrics != nil {
			pctx.Metrics.RecordRule(rule.ID(), time.Since(start), len(findings), failed)
		}
	}()

	found, err := rule.Validate(ruleCtx, pctx)
	findings = stamp(found, rule.ID())
	if err != nil {
		failed = true
		logger.Warn("rule failed", "rule", rule.ID(), "pass", pctx.Pass, "err", err)
		findings = append(findings, ruleError(rule, err))
	}
	return findings
}

func ruleError(rule Rule, err error) tv.Finding {
	return tv.NewFinding(tv.CodeRuleError).
		Message(fmt.Sprintf("Não foi possível executar a regra %s: %v", rule.ID(), err)).
		Rule(rule.ID()).
		Build()
}

// stamp fills in the rule ID on findings that do not carry one.
func stamp(findings []tv.Finding, id string) []tv.Finding {
	for i := range findings {
		if findings[i].Rule == "" {
			findings[i].Rule = id
		}
	}
	return findings
}

func hasFatal(findings []tv.Finding) bool {
	for _, f := range findings {
		if f.IsFatal() {
			return true
		}
	}
	return false
}

// Metrics returns the pipeline metrics.
func (p *Pipeline) Metrics() *tv.Metrics {
	return p.metrics
}

// SetMetrics sets the metrics collector.
func (p *Pipeline) SetMetrics(m *tv.Metrics) {
	p.metrics = m
}

// Rules returns the rule set.
func (p *Pipeline) Rules() *RuleSet {
	return p.rules
}

// RuleCount returns the number of enabled rules.
func (p *Pipeline) RuleCount() int {
	return p.rules.Len()
}

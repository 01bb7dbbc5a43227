package pipeline

import (
	"context"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/tree"
)

// Rule is a single validation check run by the pipeline.
//
// Rules should be:
// - Stateless: all per-call state lives in the Context
// - Thread-safe: multiple goroutines may call Validate concurrently
// - Deterministic: the same tree always yields the same findings in the same order
type Rule interface {
	// ID returns the stable identifier of the rule.
	ID() string

	// Description is a short human readable summary.
	Description() string

	// SettingKey names the toggle that disables the rule, or "" when the
	// rule always runs.
	SettingKey() string

	// Stage determines execution order (lower runs first).
	Stage() Stage

	// Scope tells which passes the rule runs in.
	Scope() Scope

	// Validate inspects pctx.Tree and returns its findings. An error means the
	// rule could not complete (e.g. the reference store is unavailable).
	Validate(ctx context.Context, pctx *Context) ([]tv.Finding, error)
}

// Stage defines the order in which rules run.
type Stage int

const (
	// StageStructural for root/header/body shape checks
	StageStructural Stage = 100

	// StageFormat for value format and version checks
	StageFormat Stage = 200

	// StageReference for checks against reference tables
	StageReference Stage = 500

	// StageBusiness for domain rules that assume a well formed document
	StageBusiness Stage = 800
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageStructural:
		return "structural"
	case StageFormat:
		return "format"
	case StageReference:
		return "reference"
	case StageBusiness:
		return "business"
	default:
		return "custom"
	}
}

// Pass identifies what kind of tree a pipeline execution is looking at.
type Pass int

const (
	// PassDocument is a whole document parsed in one piece.
	PassDocument Pass = iota
	// PassEnvelope is the streamed document with every guide removed.
	PassEnvelope
	// PassGuide is one guide extracted from a streamed document.
	PassGuide
	// PassSummary runs once after every guide and the envelope of a
	// streamed document. It has no tree, only the Facts noted before.
	PassSummary
)

// String returns the pass name.
func (p Pass) String() string {
	switch p {
	case PassDocument:
		return "document"
	case PassEnvelope:
		return "envelope"
	case PassGuide:
		return "guide"
	case PassSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// Scope selects the passes a rule runs in. Every scope includes PassDocument.
type Scope int

const (
	// ScopeAll runs on whole documents, the streamed envelope and each
	// streamed guide.
	ScopeAll Scope = iota
	// ScopeDocument runs on whole documents and on the streamed envelope.
	ScopeDocument
	// ScopeGuide runs on whole documents and on each streamed guide.
	ScopeGuide
	// ScopeWhole runs in every pass, the summary included. Such rules
	// report on whole documents; in a stream they note Facts in the
	// envelope and guide passes and report in the summary pass.
	ScopeWhole
)

// Includes reports whether the scope covers the pass.
func (s Scope) Includes(p Pass) bool {
	switch s {
	case ScopeDocument:
		return p == PassDocument || p == PassEnvelope
	case ScopeGuide:
		return p == PassDocument || p == PassGuide
	case ScopeWhole:
		return true
	default:
		return p != PassSummary
	}
}

// Meta carries the descriptive part of a Rule. Concrete rules embed it and
// only implement Validate.
type Meta struct {
	RuleID    string
	Desc      string
	Setting   string
	RuleStage Stage
	RuleScope Scope
}

// ID returns the rule ID.
func (m Meta) ID() string { return m.RuleID }

// Description returns the rule description.
func (m Meta) Description() string { return m.Desc }

// SettingKey returns the toggle name.
func (m Meta) SettingKey() string { return m.Setting }

// Stage returns the rule stage.
func (m Meta) Stage() Stage { return m.RuleStage }

// Scope returns the rule scope.
func (m Meta) Scope() Scope { return m.RuleScope }

// Func is the signature of a rule body.
type Func func(ctx context.Context, pctx *Context) ([]tv.Finding, error)

// RuleFunc is a Rule backed by a function.
// Useful for simple rules that don't need a full struct.
type RuleFunc struct {
	Meta
	fn Func
}

// NewRuleFunc creates a Rule from a function.
func NewRuleFunc(meta Meta, fn Func) Rule {
	return &RuleFunc{Meta: meta, fn: fn}
}

// Validate calls the wrapped function.
func (r *RuleFunc) Validate(ctx context.Context, pctx *Context) ([]tv.Finding, error) {
	return r.fn(ctx, pctx)
}

// Predicate decides whether a dependency rule applies to a tree.
type Predicate func(root *tree.Node) bool

// DependencyRule runs its validation only when its predicate holds.
type DependencyRule struct {
	Meta
	when Predicate
	fn   Func
}

// NewDependencyRule creates a rule whose body runs only when the predicate
// holds for the current tree. A nil predicate always holds.
func NewDependencyRule(meta Meta, when Predicate, fn Func) Rule {
	return &DependencyRule{Meta: meta, when: when, fn: fn}
}

// When wraps an existing rule with a predicate, keeping its metadata.
func When(rule Rule, when Predicate) Rule {
	return &DependencyRule{
		Meta: Meta{
			RuleID:    rule.ID(),
			Desc:      rule.Description(),
			Setting:   rule.SettingKey(),
			RuleStage: rule.Stage(),
			RuleScope: rule.Scope(),
		},
		when: when,
		fn:   rule.Validate,
	}
}

// Validate runs the body if the predicate holds.
func (r *DependencyRule) Validate(ctx context.Context, pctx *Context) ([]tv.Finding, error) {
	if r.when != nil && !r.when(pctx.Tree) {
		return nil, nil
	}
	return r.fn(ctx, pctx)
}

// CompositeRule runs several rules under one ID.
type CompositeRule struct {
	Meta
	rules []Rule
}

// NewCompositeRule creates a rule that runs sub-rules sequentially and
// concatenates their findings. It stops at the first error.
func NewCompositeRule(meta Meta, rules ...Rule) Rule {
	return &CompositeRule{Meta: meta, rules: rules}
}

// Validate runs all sub-rules sequentially.
func (r *CompositeRule) Validate(ctx context.Context, pctx *Context) ([]tv.Finding, error) {
	var all []tv.Finding
	for _, rule := range r.rules {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		if !pctx.Settings.Enabled(rule.SettingKey()) || !rule.Scope().Includes(pctx.Pass) {
			continue
		}
		findings, err := rule.Validate(ctx, pctx)
		all = append(all, findings...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

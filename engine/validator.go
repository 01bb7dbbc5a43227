// Package engine provides the main TISS validation engine.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
	"github.com/tissguard/validator/pkg/logger"
	"github.com/tissguard/validator/rules"
	"github.com/tissguard/validator/stream"
	"github.com/tissguard/validator/terminology"
	"github.com/tissguard/validator/tree"
)

// Validator is the main TISS document validator.
// It owns the rule set and decides, per input, between the whole-document
// path and the chunked stream path. A Validator is safe for concurrent use.
type Validator struct {
	// Configuration
	options *tv.Options

	// Reference table
	store terminology.Store

	// Pipeline
	rules *pipeline.RuleSet
	pipe  *pipeline.Pipeline
	proc  *stream.Processor

	// Metrics
	metrics *tv.Metrics
}

// New creates a Validator with the built-in rules. A nil store disables
// reference lookups; format checks still run.
func New(store terminology.Store, opts ...tv.Option) *Validator {
	options := tv.Apply(opts...)

	v := &Validator{
		options: options,
		store:   store,
		rules:   rules.Default(store),
		metrics: tv.NewMetrics(),
	}
	v.buildPipeline()
	return v
}

// buildPipeline constructs the validation pipeline based on options.
func (v *Validator) buildPipeline() {
	v.pipe = pipeline.NewPipeline(v.rules, &pipeline.PipelineOptions{
		CollectMetrics: v.options.CollectMetrics,
	})
	v.pipe.SetMetrics(v.metrics)
	v.proc = stream.NewProcessor(v.pipe, v.options)
}

// Register adds extra rules, such as compiled declarative rules, after the
// built-in ones of the same stage.
func (v *Validator) Register(extra ...pipeline.Rule) error {
	for _, r := range extra {
		if err := v.rules.Register(r); err != nil {
			return fmt.Errorf("engine: register rule: %w", err)
		}
	}
	return nil
}

// LoadRules compiles the declarative rule file at path and registers it.
func (v *Validator) LoadRules(path string) (int, error) {
	defs, err := rules.LoadDeclarative(path)
	if err != nil {
		return 0, err
	}
	compiled, err := rules.CompileDeclarative(defs)
	if err != nil {
		return 0, fmt.Errorf("engine: compile %s: %w", path, err)
	}
	if err := v.Register(compiled...); err != nil {
		return 0, err
	}
	logger.Info("declarative rules loaded", "path", path, "rules", len(compiled))
	return len(compiled), nil
}

// ValidateString validates an already decoded document as a whole.
// It never returns nil: a document that cannot be parsed yields a single
// PARSE_ERROR finding.
func (v *Validator) ValidateString(ctx context.Context, text string, settings tv.Settings) *tv.Result {
	start := time.Now()

	root, err := tree.Parse(text)
	if err != nil {
		return v.parseFailure(start, err)
	}
	return v.validateTree(ctx, start, root, settings)
}

// ValidateTree validates a document that is already normalized.
func (v *Validator) ValidateTree(ctx context.Context, root *tree.Node, settings tv.Settings) *tv.Result {
	return v.validateTree(ctx, time.Now(), root, settings)
}

func (v *Validator) validateTree(ctx context.Context, start time.Time, root *tree.Node, settings tv.Settings) *tv.Result {
	pctx := v.context(root, settings)
	result := v.pipe.Execute(ctx, pctx)
	pctx.Release()

	if err := ctx.Err(); err != nil {
		result.Add(tv.NewFinding(tv.CodeStreamReadError).
			Message(fmt.Sprintf("Validação interrompida: %v", err)).
			Build())
	}
	return v.done(start, result)
}

// ValidateBytes validates raw document bytes. Inputs larger than
// LargeFileThreshold are streamed; smaller ones are decoded following the
// prolog and validated as a whole.
func (v *Validator) ValidateBytes(ctx context.Context, data []byte, settings tv.Settings) *tv.Result {
	if int64(len(data)) > v.options.LargeFileThreshold {
		return v.ValidateReader(ctx, bytes.NewReader(data), int64(len(data)), settings, nil)
	}

	start := time.Now()
	text, err := stream.Decode(data, v.options.FallbackEncoding)
	if err != nil {
		return v.parseFailure(start, err)
	}
	root, err := tree.Parse(text)
	if err != nil {
		return v.parseFailure(start, err)
	}
	return v.validateTree(ctx, start, root, settings)
}

// ValidateReader streams r guide by guide. size is the total number of
// bytes expected, used only for progress; pass 0 when unknown.
func (v *Validator) ValidateReader(ctx context.Context, r io.Reader, size int64, settings tv.Settings, progress stream.ProgressFunc) *tv.Result {
	start := time.Now()

	base := v.context(nil, settings)
	result := v.proc.Process(ctx, r, size, base, progress)
	base.Release()

	return v.done(start, result)
}

// ValidateFile validates the file at path, streaming it when it is larger
// than LargeFileThreshold. An unreadable file yields a STREAM_READ_ERROR
// finding.
func (v *Validator) ValidateFile(ctx context.Context, path string, settings tv.Settings, progress stream.ProgressFunc) *tv.Result {
	f, err := os.Open(path)
	if err != nil {
		return v.readFailure(time.Now(), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return v.readFailure(time.Now(), err)
	}

	if info.Size() > v.options.LargeFileThreshold {
		logger.Info("large file, validating in stream mode", "path", path, "bytes", info.Size())
		return v.ValidateReader(ctx, f, info.Size(), settings, progress)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return v.readFailure(time.Now(), err)
	}
	result := v.ValidateBytes(ctx, data, settings)
	if progress != nil {
		progress(1)
	}
	return result
}

// SelfTest runs the rule self-test and checks that both validation paths
// agree on a known sample.
func (v *Validator) SelfTest(ctx context.Context) *rules.Report {
	now := v.now()
	report := rules.SelfTest(ctx, now)

	sample := SampleDocument(now)
	checker := New(nil, tv.WithClock(func() time.Time { return now }), tv.WithMetrics(false))
	full := checker.ValidateString(ctx, sample, tv.DefaultSettings())
	report.Add("ENGINE", "documento de exemplo é válido", full.Valid)

	streamed := checker.ValidateReader(ctx, bytes.NewReader([]byte(sample)), int64(len(sample)), tv.DefaultSettings(), nil)
	report.Add("ENGINE", "modo stream concorda com o modo completo",
		streamed.Valid == full.Valid && streamed.Chunks > 0)

	logger.Debug("self-test finished", "passed", report.Passed, "failed", report.Failed)
	return report
}

// Metrics returns the validator's metrics.
func (v *Validator) Metrics() *tv.Metrics {
	return v.metrics
}

// Options returns the validator's options.
func (v *Validator) Options() *tv.Options {
	return v.options
}

// Store returns the reference table, which may be nil.
func (v *Validator) Store() terminology.Store {
	return v.store
}

// Rules returns the IDs of the registered rules in execution order.
func (v *Validator) Rules() []string {
	return v.rules.IDs()
}

// Close releases resources held by the validator.
func (v *Validator) Close() error {
	// The store is owned by the caller
	return nil
}

func (v *Validator) context(root *tree.Node, settings tv.Settings) *pipeline.Context {
	pctx := pipeline.AcquireContext()
	pctx.Tree = root
	pctx.Pass = pipeline.PassDocument
	pctx.Settings = settings
	pctx.Now = v.now()
	pctx.Options = v.options
	if v.options.CollectMetrics {
		pctx.Metrics = v.metrics
	}
	return pctx
}

func (v *Validator) now() time.Time {
	if v.options.Clock != nil {
		return v.options.Clock()
	}
	return time.Now()
}

func (v *Validator) done(start time.Time, result *tv.Result) *tv.Result {
	result.Finalize()
	result.Duration = time.Since(start)
	if v.options.CollectMetrics {
		v.metrics.RecordValidation(result.Duration, result)
	}
	return result
}

func (v *Validator) parseFailure(start time.Time, err error) *tv.Result {
	logger.Debug("document parse failed", "err", err)
	if v.options.CollectMetrics {
		v.metrics.RecordParseFailure()
	}
	return v.done(start, tv.ParseFailure(tv.ModeFull, err))
}

func (v *Validator) readFailure(start time.Time, err error) *tv.Result {
	logger.Warn("document read failed", "err", err)
	result := tv.NewResult(tv.ModeFull)
	result.Add(tv.NewFinding(tv.CodeStreamReadError).
		Message(fmt.Sprintf("Erro ao ler o arquivo: %v", err)).
		Build())
	return v.done(start, result)
}

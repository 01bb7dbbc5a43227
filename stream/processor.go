package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/transform"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
	"github.com/tissguard/validator/pkg/logger"
	"github.com/tissguard/validator/pool"
	"github.com/tissguard/validator/tree"
)

// ProgressFunc receives the fraction of the input consumed so far, in [0, 1].
type ProgressFunc func(fraction float64)

// ChunkResult is the outcome of one streamed unit: a guide, or the envelope
// once the input is exhausted.
type ChunkResult struct {
	// Index is the 1-based position of the guide in the document (0 for the envelope)
	Index int

	// Name is the guide element name as written, prefix included
	Name string

	// Envelope marks the final result for the text outside guides
	Envelope bool

	// Validated is false when the chunk could not be parsed or was dropped
	Validated bool

	// Findings reported for this chunk
	Findings []tv.Finding
}

// Processor validates large documents guide by guide.
type Processor struct {
	pipeline   *pipeline.Pipeline
	opts       *tv.Options
	windows    *pool.WindowPool
	bufferSize int
}

// NewProcessor creates a processor running guides and the envelope through p.
// A nil opts uses tv.DefaultOptions.
func NewProcessor(p *pipeline.Pipeline, opts *tv.Options) *Processor {
	if opts == nil {
		opts = tv.DefaultOptions()
	}
	window := opts.WindowSize
	if window <= 0 {
		window = tv.DefaultWindowSize
	}
	return &Processor{
		pipeline:   p,
		opts:       opts,
		windows:    pool.NewWindowPool(window),
		bufferSize: 16,
	}
}

// WithBufferSize sets the channel buffer size used by Stream.
func (p *Processor) WithBufferSize(size int) *Processor {
	if size > 0 {
		p.bufferSize = size
	}
	return p
}

// WindowSize returns the number of decoded bytes read per window.
func (p *Processor) WindowSize() int {
	return p.windows.Size()
}

// Process validates r and returns the merged result. size is the total
// input size in bytes, used for progress; a non-positive size only reports
// completion. base supplies settings, clock, options and metrics.
func (p *Processor) Process(ctx context.Context, r io.Reader, size int64, base *pipeline.Context, progress ProgressFunc) *tv.Result {
	return Aggregate(p.Stream(ctx, r, size, base, progress))
}

// Stream validates r in the background and emits one ChunkResult per guide,
// in document order, followed by the envelope result. The channel is closed
// when processing ends; callers must drain it.
func (p *Processor) Stream(ctx context.Context, r io.Reader, size int64, base *pipeline.Context, progress ProgressFunc) <-chan *ChunkResult {
	out := make(chan *ChunkResult, p.bufferSize)
	if base == nil {
		base = pipeline.NewContext(nil, nil)
		base.Options = p.opts
	}

	go func() {
		defer close(out)
		s := &session{
			proc:     p,
			base:     base,
			out:      out,
			facts:    pipeline.NewFacts(),
			tailSize: positive(p.opts.TailSize, tv.DefaultTailSize),
			envLimit: positive(p.opts.EnvelopeLimit, tv.DefaultEnvelopeLimit),
		}
		s.run(ctx, r, size, progress)
	}()
	return out
}

// Aggregate merges chunk results into a single stream-mode result: envelope
// findings first, then guide findings in document order. A fatal envelope
// finding (no TISS root) discards the guide findings, as a whole-document
// run would stop at it.
func Aggregate(results <-chan *ChunkResult) *tv.Result {
	res := tv.NewResult(tv.ModeStream)

	var (
		envelope *ChunkResult
		guides   []tv.Finding
	)
	for cr := range results {
		if cr.Envelope {
			envelope = cr
			continue
		}
		if cr.Validated {
			res.Chunks++
		}
		guides = append(guides, cr.Findings...)
	}

	if envelope != nil {
		res.AddAll(envelope.Findings)
		for _, f := range envelope.Findings {
			if f.IsFatal() {
				return res.Finalize()
			}
		}
	}
	res.AddAll(guides)
	return res.Finalize()
}

// session holds the state of one Stream call.
type session struct {
	proc *Processor
	base *pipeline.Context
	out  chan<- *ChunkResult

	facts *pipeline.Facts

	pending   string
	skip      string // close tag of a dropped guide still being read
	envelope  strings.Builder
	truncated bool
	guides    int

	tailSize int
	envLimit int
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (s *session) run(ctx context.Context, r io.Reader, size int64, progress ProgressFunc) {
	window := s.proc.WindowSize()

	counter := &countingReader{r: r}
	br := bufio.NewReaderSize(counter, window)
	head, _ := br.Peek(window)
	enc, label := ResolveEncoding(head, s.proc.opts.FallbackEncoding)
	logger.Debug("stream validation started", "bytes", size, "charset", label, "window", window)

	dr := transform.NewReader(br, enc.NewDecoder())
	buf := s.proc.windows.Acquire()
	defer s.proc.windows.Release(buf)

	first := true
	for {
		if err := ctx.Err(); err != nil {
			s.fail(fmt.Sprintf("Validação interrompida: %v", err))
			return
		}

		n, err := io.ReadFull(dr, *buf)
		if n > 0 {
			text := string((*buf)[:n])
			if first {
				text = strings.TrimPrefix(text, "\uFEFF")
				first = false
			}
			s.pending += text
			s.scan(ctx)
			s.trim()
			if progress != nil && size > 0 {
				progress(min(1, float64(counter.n)/float64(size)))
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			s.fail(fmt.Sprintf("Erro ao ler o arquivo: %v", err))
			return
		}
	}

	s.finish(ctx)
	if progress != nil {
		progress(1)
	}
}

// scan validates every complete guide in the buffer and moves the text
// between guides to the envelope. An incomplete guide stays buffered.
func (s *session) scan(ctx context.Context) {
	pos := 0
	if s.skip != "" {
		k := strings.Index(s.pending, s.skip)
		if k < 0 {
			s.pending = tail(s.pending, max(s.tailSize, len(s.skip)))
			return
		}
		pos = k + len(s.skip)
		s.skip = ""
	}

	for {
		sp, ok := nextGuide(s.pending, pos)
		if !ok {
			s.appendEnvelope(s.pending[pos:])
			pos = len(s.pending)
			break
		}
		s.appendEnvelope(s.pending[pos:sp.start])
		pos = sp.start
		if !sp.complete {
			break
		}
		s.validateGuide(ctx, sp.qname, s.pending[sp.start:sp.end])
		pos = sp.end
	}
	s.pending = s.pending[pos:]
}

// trim bounds the buffer. A guide still open after twice the window size
// is dropped: a finding is reported and only a short tail is kept so its
// close tag can be found.
func (s *session) trim() {
	limit := 2 * s.proc.WindowSize()
	if s.skip != "" || len(s.pending) <= limit {
		return
	}

	sp, _ := nextGuide(s.pending, 0)
	s.guides++
	logger.Warn("stream buffer over limit, dropping guide",
		"guide", sp.qname, "index", s.guides, "buffered", len(s.pending), "tail", s.tailSize)

	s.out <- &ChunkResult{
		Index: s.guides,
		Name:  sp.qname,
		Findings: []tv.Finding{
			tv.NewFinding(tv.CodeChunkParseError).
				Message(fmt.Sprintf("A guia %d (<%s>) excede %d bytes e não foi validada.", s.guides, sp.qname, limit)).
				Build(),
		},
	}
	if sp.qname != "" {
		s.skip = "</" + sp.qname + ">"
	}
	s.pending = tail(s.pending, s.tailSize)
}

func (s *session) validateGuide(ctx context.Context, qname, text string) {
	s.guides++
	cr := &ChunkResult{Index: s.guides, Name: qname}

	root, err := tree.Parse(text)
	if err != nil {
		logger.Debug("guide parse failed", "guide", qname, "index", s.guides, "err", err)
		cr.Findings = []tv.Finding{
			tv.NewFinding(tv.CodeChunkParseError).
				Message(fmt.Sprintf("Falha ao interpretar a guia %d (<%s>): %v", s.guides, qname, err)).
				Build(),
		}
		s.out <- cr
		return
	}

	res := s.execute(ctx, root, pipeline.PassGuide)
	if m := s.metrics(); m != nil {
		m.RecordChunk()
	}
	cr.Validated = true
	cr.Findings = res.Findings
	s.out <- cr
}

func (s *session) appendEnvelope(text string) {
	if s.truncated || text == "" {
		return
	}
	if s.envelope.Len()+len(text) > s.envLimit {
		s.truncated = true
		s.envelope.Reset()
		logger.Warn("stream envelope over limit, skipping document checks", "limit", s.envLimit)
		return
	}
	s.envelope.WriteString(text)
}

// finish flushes the buffer into the envelope and validates it, then runs
// the summary pass over the facts noted by every guide and the envelope.
func (s *session) finish(ctx context.Context) {
	if s.skip == "" {
		s.appendEnvelope(s.pending)
	}
	s.pending = ""

	cr := &ChunkResult{Envelope: true}
	defer func() { s.out <- cr }()

	if s.truncated {
		cr.Findings = []tv.Finding{
			tv.NewFinding(tv.CodeEnvelopeTrunc).
				Message(fmt.Sprintf("O conteúdo fora das guias excede %d caracteres; as verificações de estrutura e versão não foram executadas.", s.envLimit)).
				Build(),
		}
	} else {
		root, err := tree.Parse(s.envelope.String())
		s.envelope.Reset()
		if errors.Is(err, tv.ErrEmptyInput) && s.guides > 0 {
			// every element was a guide: there is no TISS root
			root, err = tree.Map(), nil
		}
		if err != nil {
			cr.Findings = tv.ParseFailure(tv.ModeStream, err).Findings
			return
		}

		res := s.execute(ctx, root, pipeline.PassEnvelope)
		cr.Validated = true
		cr.Findings = res.Findings
		if res.HasFatal() {
			return
		}
	}

	summary := s.execute(ctx, nil, pipeline.PassSummary)
	cr.Findings = append(cr.Findings, summary.Findings...)
}

func (s *session) execute(ctx context.Context, root *tree.Node, pass pipeline.Pass) *tv.Result {
	pctx := s.base.Derive(root, pass)
	pctx.Facts = s.facts
	pctx.Result = tv.NewResult(tv.ModeStream)
	res := s.proc.pipeline.Execute(ctx, pctx)
	pctx.Release()
	return res
}

// fail reports an input failure. Nothing else is validated afterwards.
func (s *session) fail(msg string) {
	logger.Warn("stream validation aborted", "reason", msg, "guides", s.guides)
	s.out <- &ChunkResult{
		Index: -1,
		Findings: []tv.Finding{
			tv.NewFinding(tv.CodeStreamReadError).Message(msg).Build(),
		},
	}
}

func (s *session) metrics() *tv.Metrics {
	if s.base.Metrics != nil {
		return s.base.Metrics
	}
	return s.proc.pipeline.Metrics()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func positive(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

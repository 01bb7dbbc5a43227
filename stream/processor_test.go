package stream

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
	"github.com/tissguard/validator/rules"
	"github.com/tissguard/validator/tree"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func guide(number, code, date, amount string) string {
	return `<ans:guiaSP-SADT><ans:cabecalhoGuia><ans:numeroGuiaPrestador>` + number +
		`</ans:numeroGuiaPrestador></ans:cabecalhoGuia><ans:dataExecucao>` + date +
		`</ans:dataExecucao><ans:codigoProcedimento>` + code +
		`</ans:codigoProcedimento><ans:valorTotal>` + amount + `</ans:valorTotal></ans:guiaSP-SADT>`
}

func document(version string, guides ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="ISO-8859-1"?>` + "\n")
	b.WriteString(`<ans:mensagemTISS xmlns:ans="http://www.ans.gov.br/padroes/tiss/schemas">`)
	b.WriteString(`<ans:cabecalho><ans:identificacaoTransacao><ans:tipoTransacao>ENVIO_LOTE_GUIAS</ans:tipoTransacao>`)
	b.WriteString(`</ans:identificacaoTransacao><ans:origem>1</ans:origem><ans:destino>2</ans:destino>`)
	b.WriteString(`<ans:padrao>` + version + `</ans:padrao></ans:cabecalho>`)
	b.WriteString(`<ans:prestadorParaOperadora><ans:loteGuias><ans:numeroLote>1</ans:numeroLote><ans:guiasTISS>`)
	for _, g := range guides {
		b.WriteString(g)
	}
	b.WriteString(`</ans:guiasTISS></ans:loteGuias></ans:prestadorParaOperadora></ans:mensagemTISS>`)
	return b.String()
}

func newProcessor(opts *tv.Options) (*Processor, *pipeline.Pipeline) {
	p := pipeline.NewPipeline(rules.Default(nil), nil)
	return NewProcessor(p, opts), p
}

func baseContext(opts *tv.Options) *pipeline.Context {
	pctx := pipeline.NewContext(nil, tv.DefaultSettings())
	pctx.Now = testNow
	pctx.Options = opts
	return pctx
}

func smallWindows() *tv.Options {
	return tv.Apply(tv.WithWindowSize(300), tv.WithTailSize(100))
}

func process(t *testing.T, doc string, opts *tv.Options) *tv.Result {
	t.Helper()
	proc, _ := newProcessor(opts)
	return proc.Process(context.Background(), strings.NewReader(doc), int64(len(doc)), baseContext(opts), nil)
}

func fullResult(t *testing.T, doc string) *tv.Result {
	t.Helper()
	p := pipeline.NewPipeline(rules.Default(nil), nil)
	root, err := tree.Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	pctx := pipeline.NewContext(root, tv.DefaultSettings())
	pctx.Now = testNow
	return p.Execute(context.Background(), pctx).Finalize()
}

func TestProcessor_ValidDocument(t *testing.T) {
	doc := document("4.01.00",
		guide("1", "10101012", "2024-06-01", "10.00"),
		guide("2", "40301010", "2024-06-02", "20.00"),
		guide("3", "40304361", "2024-06-03", "0.00"),
	)
	res := process(t, doc, smallWindows())
	if !res.Valid {
		t.Fatalf("Valid = false; findings = %v", res.Findings)
	}
	if res.Chunks != 3 {
		t.Errorf("Chunks = %d; want 3", res.Chunks)
	}
	if res.Mode != tv.ModeStream {
		t.Errorf("Mode = %s; want %s", res.Mode, tv.ModeStream)
	}
	if res.Message != tv.MessageValid {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestProcessor_EquivalentToFullDocument(t *testing.T) {
	doc := document("3.02.00",
		guide("1", "123", "2024-06-01", "10.00"),
		guide("2", "10101012", "2024-07-20", "-5.00"),
		guide("3", "40301010", "2024-06-02", "1,00"),
	)
	want := fullResult(t, doc).Codes()

	for _, opts := range []*tv.Options{smallWindows(), tv.DefaultOptions()} {
		got := process(t, doc, opts).Codes()
		if !slices.Equal(got, want) {
			t.Errorf("window %d: codes = %v; want %v", opts.WindowSize, got, want)
		}
	}
	if !slices.Contains(want, tv.CodeVersionObsolete) || !slices.Contains(want, tv.CodeTussFormat) {
		t.Errorf("full codes = %v; fixture should trigger version and format findings", want)
	}
}

func TestProcessor_EnvelopeFindingsFirst(t *testing.T) {
	doc := document("3.02.00", guide("1", "123", "2024-06-01", "10.00"))
	res := process(t, doc, smallWindows())
	if len(res.Findings) != 2 {
		t.Fatalf("findings = %v; want 2", res.Findings)
	}
	if res.Findings[0].Code != tv.CodeVersionObsolete || res.Findings[1].Code != tv.CodeTussFormat {
		t.Errorf("order = %s, %s", res.Findings[0].Code, res.Findings[1].Code)
	}
}

func TestProcessor_RootMissing(t *testing.T) {
	doc := `<outro><guiasTISS>` + guide("1", "123", "2099-01-01", "-1") + `</guiasTISS></outro>`
	res := process(t, doc, smallWindows())
	if len(res.Findings) != 1 || res.Findings[0].Code != tv.CodeRootMissing {
		t.Errorf("findings = %v; want only %s", res.Findings, tv.CodeRootMissing)
	}
}

func TestProcessor_OnlyGuides(t *testing.T) {
	res := process(t, guide("1", "10101012", "2024-06-01", "1"), smallWindows())
	if len(res.Findings) != 1 || res.Findings[0].Code != tv.CodeRootMissing {
		t.Errorf("findings = %v; want only %s", res.Findings, tv.CodeRootMissing)
	}
}

func TestProcessor_MalformedGuideContinues(t *testing.T) {
	bad := `<ans:guiaConsulta><ans:a><ans:b></ans:a></ans:guiaConsulta>`
	doc := document("4.01.00",
		guide("1", "10101012", "2024-06-01", "1"),
		bad,
		guide("3", "123", "2024-06-01", "1"),
	)
	res := process(t, doc, smallWindows())
	if res.CountCode(tv.CodeChunkParseError) != 1 {
		t.Errorf("findings = %v; want one %s", res.Findings, tv.CodeChunkParseError)
	}
	if res.CountCode(tv.CodeTussFormat) != 1 {
		t.Errorf("guide after the malformed one was not validated: %v", res.Findings)
	}
	if res.Chunks != 2 {
		t.Errorf("Chunks = %d; want 2", res.Chunks)
	}
}

func TestProcessor_OversizedGuideDropped(t *testing.T) {
	huge := `<ans:guiaSP-SADT><ans:observacao>` + strings.Repeat("x", 3000) +
		`</ans:observacao><ans:codigoProcedimento>1</ans:codigoProcedimento></ans:guiaSP-SADT>`
	doc := document("4.01.00",
		guide("1", "10101012", "2024-06-01", "1"),
		huge,
		guide("3", "123", "2024-06-01", "1"),
	)
	res := process(t, doc, smallWindows())
	if res.CountCode(tv.CodeChunkParseError) != 1 {
		t.Errorf("findings = %v; want one %s", res.Findings, tv.CodeChunkParseError)
	}
	if res.CountCode(tv.CodeTussFormat) != 1 {
		t.Errorf("findings = %v; want only the third guide's format error", res.Findings)
	}
	if res.CountCode(tv.CodeParseError) != 0 {
		t.Errorf("envelope should stay well formed: %v", res.Findings)
	}
	if res.Chunks != 2 {
		t.Errorf("Chunks = %d; want 2", res.Chunks)
	}
}

func TestProcessor_EnvelopeTruncated(t *testing.T) {
	opts := smallWindows()
	opts.EnvelopeLimit = 100
	doc := document("4.01.00", guide("1", "123", "2024-06-01", "1"))
	res := process(t, doc, opts)
	if res.CountCode(tv.CodeEnvelopeTrunc) != 1 {
		t.Errorf("findings = %v; want %s", res.Findings, tv.CodeEnvelopeTrunc)
	}
	if res.CountCode(tv.CodeTussFormat) != 1 {
		t.Errorf("guides must still be validated: %v", res.Findings)
	}
}

func TestProcessor_UnclosedGuideAtEOF(t *testing.T) {
	doc := document("4.01.00", guide("1", "10101012", "2024-06-01", "1"))
	doc = doc[:strings.LastIndex(doc, "<ans:guiaSP-SADT>")+40]
	res := process(t, doc, smallWindows())
	if res.CountCode(tv.CodeParseError) != 1 {
		t.Errorf("findings = %v; want %s", res.Findings, tv.CodeParseError)
	}
}

func TestProcessor_Latin1(t *testing.T) {
	g := "<ans:guiaConsulta><ans:numeroGuiaPrestador>1</ans:numeroGuiaPrestador>" +
		"<ans:observacao>Cl\xednica S\xe3o Jo\xe3o</ans:observacao></ans:guiaConsulta>"
	doc := document("4.01.00", g)
	res := process(t, doc, smallWindows())
	if !res.Valid {
		t.Errorf("findings = %v; want none", res.Findings)
	}
}

func TestProcessor_Progress(t *testing.T) {
	var guides []string
	for i := 0; i < 20; i++ {
		guides = append(guides, guide("1", "10101012", "2024-06-01", "1"))
	}
	doc := document("4.01.00", guides...)
	opts := smallWindows()
	proc, _ := newProcessor(opts)

	var got []float64
	proc.Process(context.Background(), strings.NewReader(doc), int64(len(doc)), baseContext(opts), func(f float64) {
		got = append(got, f)
	})
	if len(got) < 3 {
		t.Fatalf("progress events = %d; want several", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Errorf("progress went backwards: %v", got)
			break
		}
	}
	if got[len(got)-1] != 1 {
		t.Errorf("last progress = %v; want 1", got[len(got)-1])
	}
}

func TestProcessor_ReadError(t *testing.T) {
	doc := document("4.01.00", guide("1", "123", "2024-06-01", "1"), guide("2", "123", "2024-06-01", "1"))
	r := io.MultiReader(strings.NewReader(doc[:len(doc)/2]), iotest.ErrReader(errors.New("disk gone")))
	opts := smallWindows()
	proc, _ := newProcessor(opts)
	res := proc.Process(context.Background(), r, int64(len(doc)), baseContext(opts), nil)
	if res.CountCode(tv.CodeStreamReadError) != 1 {
		t.Errorf("findings = %v; want %s", res.Findings, tv.CodeStreamReadError)
	}
	if res.Valid {
		t.Error("Valid = true after a read error")
	}
}

func TestProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc := document("4.01.00", guide("1", "10101012", "2024-06-01", "1"))
	opts := smallWindows()
	proc, _ := newProcessor(opts)
	res := proc.Process(ctx, strings.NewReader(doc), int64(len(doc)), baseContext(opts), nil)
	if res.CountCode(tv.CodeStreamReadError) != 1 {
		t.Errorf("findings = %v; want %s", res.Findings, tv.CodeStreamReadError)
	}
}

func TestProcessor_Stream(t *testing.T) {
	doc := document("4.01.00", guide("1", "10101012", "2024-06-01", "1"), guide("2", "123", "2024-06-01", "1"))
	opts := smallWindows()
	proc, _ := newProcessor(opts)

	var results []*ChunkResult
	for cr := range proc.Stream(context.Background(), strings.NewReader(doc), int64(len(doc)), baseContext(opts), nil) {
		results = append(results, cr)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d; want 2 guides and the envelope", len(results))
	}
	if results[0].Index != 1 || results[1].Index != 2 {
		t.Errorf("indexes = %d, %d", results[0].Index, results[1].Index)
	}
	if results[0].Name != "ans:guiaSP-SADT" {
		t.Errorf("Name = %q", results[0].Name)
	}
	if len(results[1].Findings) != 1 || results[1].Findings[0].Code != tv.CodeTussFormat {
		t.Errorf("guide 2 findings = %v", results[1].Findings)
	}
	if !results[2].Envelope || len(results[2].Findings) != 0 {
		t.Errorf("envelope = %+v", results[2])
	}
}

func TestProcessor_RecordsChunks(t *testing.T) {
	doc := document("4.01.00", guide("1", "10101012", "2024-06-01", "1"), guide("2", "10101012", "2024-06-01", "1"))
	opts := smallWindows()
	proc, _ := newProcessor(opts)
	base := baseContext(opts)
	base.Metrics = tv.NewMetrics()
	proc.Process(context.Background(), strings.NewReader(doc), int64(len(doc)), base, nil)
	if base.Metrics.ChunksTotal() != 2 {
		t.Errorf("ChunksTotal() = %d; want 2", base.Metrics.ChunksTotal())
	}
}

func TestProcessor_WholeDocumentRules(t *testing.T) {
	exam := func(number, extra string) string {
		return `<ans:guiaSP-SADT><ans:cabecalhoGuia><ans:numeroGuiaPrestador>` + number +
			`</ans:numeroGuiaPrestador></ans:cabecalhoGuia><ans:tipoAtendimento>05</ans:tipoAtendimento>` +
			extra + `</ans:guiaSP-SADT>`
	}
	tests := []struct {
		name string
		doc  string
		code string
		want int
	}{
		{"every guide numbered", document("4.01.00", guide("1", "10101012", "2024-06-01", "1")), tv.CodeGuideNumberMissing, 0},
		{"blank number", document("4.01.00", guide(" ", "10101012", "2024-06-01", "1")), tv.CodeGuideNumberMissing, 1},
		{"no guides", document("4.01.00"), tv.CodeGuideNumberMissing, 1},
		{"one guide numbered", document("4.01.00",
			guide("1", "10101012", "2024-06-01", "1"),
			guide("", "10101012", "2024-06-01", "1")), tv.CodeGuideNumberMissing, 0},
		{"exam without indication", document("4.01.00", exam("1", "")), tv.CodeClinicalIndicationMissing, 1},
		{"indication in another guide", document("4.01.00",
			exam("1", ""),
			exam("2", `<ans:indicacaoClinica>dor</ans:indicacaoClinica>`)), tv.CodeClinicalIndicationMissing, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := process(t, tt.doc, smallWindows())
			if got := res.CountCode(tt.code); got != tt.want {
				t.Errorf("%s = %d; want %d (findings %v)", tt.code, got, tt.want, res.Codes())
			}
			if full := fullResult(t, tt.doc); full.CountCode(tt.code) != tt.want {
				t.Errorf("full %s = %d; want %d", tt.code, full.CountCode(tt.code), tt.want)
			}
		})
	}
}

func TestProcessor_StripsByteOrderMark(t *testing.T) {
	doc := "\uFEFF" + document("4.01.00", guide("1", "10101012", "2024-06-01", "1"))
	res := process(t, doc, smallWindows())
	if !res.Valid {
		t.Errorf("findings = %v; want none", res.Codes())
	}
}

func TestProcessor_WhitespaceInCloseTag(t *testing.T) {
	g := strings.Replace(guide("1", "123", "2024-06-01", "1"), "</ans:guiaSP-SADT>", "</ans:guiaSP-SADT\n >", 1)
	doc := document("4.01.00", g, guide("2", "10101012", "2024-06-01", "1"))
	res := process(t, doc, smallWindows())
	if res.Chunks != 2 {
		t.Errorf("Chunks = %d; want 2", res.Chunks)
	}
	if got := res.Codes(); !slices.Equal(got, []string{tv.CodeTussFormat}) {
		t.Errorf("codes = %v; want [%s]", got, tv.CodeTussFormat)
	}
}

func TestProcessor_WithBufferSize(t *testing.T) {
	doc := document("4.01.00", guide("1", "10101012", "2024-06-01", "1"), guide("2", "10101012", "2024-06-01", "1"))
	opts := smallWindows()
	proc, _ := newProcessor(opts)
	if proc.WithBufferSize(0) != proc {
		t.Fatal("WithBufferSize() should return the processor")
	}

	ch := proc.WithBufferSize(1).Stream(context.Background(), strings.NewReader(doc), int64(len(doc)), baseContext(opts), nil)
	if cap(ch) != 1 {
		t.Errorf("cap = %d; want 1", cap(ch))
	}
	if res := Aggregate(ch); !res.Valid || res.Chunks != 2 {
		t.Errorf("Valid = %v, Chunks = %d; want valid with 2 chunks", res.Valid, res.Chunks)
	}
	if proc.WindowSize() != opts.WindowSize {
		t.Errorf("WindowSize() = %d; want %d", proc.WindowSize(), opts.WindowSize)
	}
}

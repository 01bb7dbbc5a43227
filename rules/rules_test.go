package rules

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
	"github.com/tissguard/validator/terminology"
	"github.com/tissguard/validator/tree"
)

const validDoc = `<?xml version="1.0" encoding="UTF-8"?>
<ans:mensagemTISS xmlns:ans="http://www.ans.gov.br/padroes/tiss/schemas">
  <ans:cabecalho>
    <ans:identificacaoTransacao><ans:tipoTransacao>ENVIO_LOTE_GUIAS</ans:tipoTransacao></ans:identificacaoTransacao>
    <ans:origem><ans:codigoPrestadorNaOperadora>123</ans:codigoPrestadorNaOperadora></ans:origem>
    <ans:destino><ans:registroANS>000001</ans:registroANS></ans:destino>
    <ans:padrao>4.01.00</ans:padrao>
  </ans:cabecalho>
  <ans:prestadorParaOperadora>
    <ans:loteGuias>
      <ans:guiasTISS>
        <ans:guiaSP-SADT>
          <ans:cabecalhoGuia><ans:numeroGuiaPrestador>0001</ans:numeroGuiaPrestador></ans:cabecalhoGuia>
          <ans:dadosAtendimento><ans:tipoAtendimento>04</ans:tipoAtendimento></ans:dadosAtendimento>
          <ans:procedimentosExecutados>
            <ans:procedimentoExecutado>
              <ans:dataExecucao>2024-03-10</ans:dataExecucao>
              <ans:procedimento><ans:codigoTabela>22</ans:codigoTabela><ans:codigoProcedimento>10101012</ans:codigoProcedimento></ans:procedimento>
              <ans:valorTotal>150.00</ans:valorTotal>
            </ans:procedimentoExecutado>
          </ans:procedimentosExecutados>
        </ans:guiaSP-SADT>
      </ans:guiasTISS>
    </ans:loteGuias>
  </ans:prestadorParaOperadora>
</ans:mensagemTISS>`

var testNow = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func parse(t *testing.T, doc string) *tree.Node {
	t.Helper()
	root, err := tree.Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return root
}

func run(t *testing.T, rule pipeline.Rule, root *tree.Node) []tv.Finding {
	t.Helper()
	pctx := pipeline.NewContext(root, tv.DefaultSettings())
	pctx.Now = testNow
	findings, err := rule.Validate(context.Background(), pctx)
	if err != nil {
		t.Fatalf("%s.Validate() error = %v", rule.ID(), err)
	}
	return findings
}

func codes(findings []tv.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Code
	}
	return out
}

func TestStructureRule(t *testing.T) {
	rule := NewStructureRule()

	t.Run("valid document", func(t *testing.T) {
		if got := run(t, rule, parse(t, validDoc)); len(got) != 0 {
			t.Errorf("findings = %v; want none", codes(got))
		}
	})

	t.Run("root missing is fatal and alone", func(t *testing.T) {
		got := run(t, rule, parse(t, `<outro><cabecalho/></outro>`))
		if len(got) != 1 || got[0].Code != tv.CodeRootMissing {
			t.Fatalf("findings = %v; want [%s]", codes(got), tv.CodeRootMissing)
		}
		if !got[0].IsFatal() {
			t.Error("ROOT_TAG_MISSING should be fatal")
		}
	})

	t.Run("header and body missing", func(t *testing.T) {
		got := run(t, rule, parse(t, `<mensagemTISS><outro/></mensagemTISS>`))
		want := []string{tv.CodeHeaderMissing, tv.CodeBodyMissing}
		if strings.Join(codes(got), ",") != strings.Join(want, ",") {
			t.Errorf("findings = %v; want %v", codes(got), want)
		}
	})

	t.Run("one finding per missing header field", func(t *testing.T) {
		got := run(t, rule, parse(t, `<mensagemTISS><cabecalho><origem/></cabecalho><prestadorParaOperadora/></mensagemTISS>`))
		if len(got) != 3 {
			t.Fatalf("findings = %v; want 3", codes(got))
		}
		for _, f := range got {
			if f.Code != tv.CodeHeaderFieldMissing {
				t.Errorf("Code = %s; want %s", f.Code, tv.CodeHeaderFieldMissing)
			}
			if f.Location != "mensagemTISS > cabecalho" {
				t.Errorf("Location = %q", f.Location)
			}
		}
	})

	t.Run("prefixed keys in hand built trees", func(t *testing.T) {
		root := tree.Map(tree.F("ans:mensagemTISS", tree.Map(
			tree.F("ans:cabecalho", tree.Map(
				tree.F("ans:identificacaoTransacao", tree.Text("x")),
				tree.F("ans:origem", tree.Text("x")),
				tree.F("ans:destino", tree.Text("x")),
				tree.F("ans:padrao", tree.Text("4.01.00")),
			)),
			tree.F("ans:operadoraParaPrestador", tree.Map()),
		)))
		if got := run(t, rule, root); len(got) != 0 {
			t.Errorf("findings = %v; want none", codes(got))
		}
	})
}

func TestCodeFormatRule(t *testing.T) {
	rule := NewCodeFormatRule()
	tests := []struct {
		value string
		want  int
	}{
		{"10101012", 0},
		{"123", 1},
		{"1010101", 1},
		{"101010123", 1},
		{"1010101A", 1},
		{"", 1},
		{"１０１０１０１２", 1},
	}
	for _, tt := range tests {
		root := tree.Map(tree.F("procedimento", tree.Map(tree.F("codigoProcedimento", tree.Text(tt.value)))))
		got := run(t, rule, root)
		if len(got) != tt.want {
			t.Errorf("value %q: findings = %d; want %d", tt.value, len(got), tt.want)
			continue
		}
		if tt.want == 1 {
			if got[0].Code != tv.CodeTussFormat {
				t.Errorf("Code = %s; want %s", got[0].Code, tv.CodeTussFormat)
			}
			if got[0].Location != "procedimento > codigoProcedimento" {
				t.Errorf("Location = %q", got[0].Location)
			}
		}
	}
}

func TestCodeFormatRule_IgnoresTableIdentifier(t *testing.T) {
	if got := run(t, NewCodeFormatRule(), parse(t, validDoc)); len(got) != 0 {
		t.Errorf("findings = %v; codigoTabela must not be checked", codes(got))
	}
}

func TestCodeFormatRule_Sequence(t *testing.T) {
	doc := `<r><p><codigoProcedimento>1</codigoProcedimento></p><p><codigoProcedimento>10101012</codigoProcedimento></p><p><codigoProcedimento>2</codigoProcedimento></p></r>`
	got := run(t, NewCodeFormatRule(), parse(t, doc))
	if len(got) != 2 {
		t.Fatalf("findings = %d; want 2", len(got))
	}
	if got[0].Location != "r > p[1] > codigoProcedimento" || got[1].Location != "r > p[3] > codigoProcedimento" {
		t.Errorf("locations = %q, %q", got[0].Location, got[1].Location)
	}
}

type failingStore struct {
	terminology.Store
	count int
	err   error
}

func (s *failingStore) Count(context.Context) (int, error) { return s.count, nil }
func (s *failingStore) Exists(context.Context, string) (bool, error) { return false, s.err }

func TestReferenceRule(t *testing.T) {
	ctx := context.Background()
	doc := `<r><p><codigoProcedimento>99999999</codigoProcedimento></p><p><codigoProcedimento>10101012</codigoProcedimento></p><p><codigoProcedimento>88888888</codigoProcedimento></p><p><codigoProcedimento>99999999</codigoProcedimento></p><p><codigoProcedimento>abc</codigoProcedimento></p></r>`

	t.Run("empty store reports nothing", func(t *testing.T) {
		rule := NewReferenceRule(terminology.NewMemoryStore())
		if got := run(t, rule, parse(t, doc)); len(got) != 0 {
			t.Errorf("findings = %v; want none", codes(got))
		}
	})

	t.Run("absent codes", func(t *testing.T) {
		store := terminology.NewMemoryStore()
		if _, err := store.BulkReplace(ctx, terminology.CommonProcedures()); err != nil {
			t.Fatal(err)
		}
		got := run(t, NewReferenceRule(store), parse(t, doc))
		if len(got) != 3 {
			t.Fatalf("findings = %v; want 3", codes(got))
		}
		wantLocs := []string{
			"r > p[1] > codigoProcedimento",
			"r > p[3] > codigoProcedimento",
			"r > p[4] > codigoProcedimento",
		}
		for i, f := range got {
			if f.Code != tv.CodeTussNotFound {
				t.Errorf("Code = %s; want %s", f.Code, tv.CodeTussNotFound)
			}
			if f.Location != wantLocs[i] {
				t.Errorf("Location[%d] = %q; want %q", i, f.Location, wantLocs[i])
			}
		}
	})

	t.Run("deterministic under concurrency", func(t *testing.T) {
		store := terminology.NewMemoryStore()
		_, _ = store.BulkReplace(ctx, terminology.CommonProcedures())
		rule := NewReferenceRule(store)
		root := parse(t, doc)
		first := run(t, rule, root)
		for i := 0; i < 20; i++ {
			again := run(t, rule, root)
			if len(again) != len(first) {
				t.Fatalf("run %d: %d findings; want %d", i, len(again), len(first))
			}
			for j := range again {
				if again[j] != first[j] {
					t.Fatalf("run %d: finding %d = %v; want %v", i, j, again[j], first[j])
				}
			}
		}
	})

	t.Run("store error", func(t *testing.T) {
		rule := NewReferenceRule(&failingStore{count: 1, err: errors.New("boom")})
		pctx := pipeline.NewContext(parse(t, doc), nil)
		if _, err := rule.Validate(ctx, pctx); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("records lookups", func(t *testing.T) {
		store := terminology.NewMemoryStore()
		_, _ = store.BulkReplace(ctx, terminology.CommonProcedures())
		pctx := pipeline.NewContext(parse(t, doc), nil)
		pctx.Metrics = tv.NewMetrics()
		if _, err := NewReferenceRule(store).Validate(ctx, pctx); err != nil {
			t.Fatal(err)
		}
		if pctx.Metrics.LookupHits() != 1 || pctx.Metrics.LookupMisses() != 2 {
			t.Errorf("hits/misses = %d/%d; want 1/2", pctx.Metrics.LookupHits(), pctx.Metrics.LookupMisses())
		}
	})
}

func TestGuideNumberRule(t *testing.T) {
	rule := NewGuideNumberRule()
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{"present", `<g><numeroGuiaPrestador>123</numeroGuiaPrestador></g>`, 0},
		{"absent", `<g><outro>1</outro></g>`, 1},
		{"blank", `<g><numeroGuiaPrestador>   </numeroGuiaPrestador></g>`, 1},
		{"all blank", `<g><a><numeroGuiaPrestador/></a><a><numeroGuiaPrestador/></a></g>`, 1},
		{"one filled", `<g><a><numeroGuiaPrestador/></a><a><numeroGuiaPrestador>9</numeroGuiaPrestador></a></g>`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(t, rule, parse(t, tt.doc))
			if len(got) != tt.want {
				t.Fatalf("findings = %v; want %d", codes(got), tt.want)
			}
			if tt.want == 1 && got[0].Code != tv.CodeGuideNumberMissing {
				t.Errorf("Code = %s; want %s", got[0].Code, tv.CodeGuideNumberMissing)
			}
		})
	}
	if !rule.Scope().Includes(pipeline.PassSummary) {
		t.Error("guide number rule must run in the summary pass")
	}
}

// runPasses validates each tree in guide pass, then runs the summary pass
// over the shared facts, the way a streamed document is checked.
func runPasses(t *testing.T, rule pipeline.Rule, guides ...*tree.Node) []tv.Finding {
	t.Helper()
	facts := pipeline.NewFacts()
	for _, g := range guides {
		pctx := pipeline.NewContext(g, tv.DefaultSettings())
		pctx.Pass = pipeline.PassGuide
		pctx.Facts = facts
		found, err := rule.Validate(context.Background(), pctx)
		if err != nil {
			t.Fatalf("%s.Validate(guide) error = %v", rule.ID(), err)
		}
		if len(found) != 0 {
			t.Fatalf("guide pass findings = %v; want none", codes(found))
		}
	}
	pctx := pipeline.NewContext(nil, tv.DefaultSettings())
	pctx.Pass = pipeline.PassSummary
	pctx.Facts = facts
	found, err := rule.Validate(context.Background(), pctx)
	if err != nil {
		t.Fatalf("%s.Validate(summary) error = %v", rule.ID(), err)
	}
	return found
}

func TestGuideNumberRule_Passes(t *testing.T) {
	numbered := parse(t, `<g><numeroGuiaPrestador>1</numeroGuiaPrestador></g>`)
	blank := parse(t, `<g><numeroGuiaPrestador/></g>`)
	tests := []struct {
		name   string
		guides []*tree.Node
		want   int
	}{
		{"no guides", nil, 1},
		{"one numbered", []*tree.Node{blank, numbered}, 0},
		{"all blank", []*tree.Node{blank, blank}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runPasses(t, NewGuideNumberRule(), tt.guides...)
			if len(got) != tt.want {
				t.Errorf("findings = %v; want %d", codes(got), tt.want)
			}
		})
	}

	got := runPasses(t, NewGuideNumberRule(), blank)
	if len(got) == 1 && got[0].Location != "g > numeroGuiaPrestador" {
		t.Errorf("Location = %q; want the first blank number", got[0].Location)
	}
}

func TestFutureDateRule(t *testing.T) {
	rule := NewFutureDateRule()
	tests := []struct {
		value string
		want  int
	}{
		{"2024-06-15", 0},
		{"2024-06-20", 1},
		{"2024-06-16", 1},
		{"2024-06-14", 0},
		{"20/06/2024", 1},
		{"15/06/2024", 0},
		{"2024-06-15T23:59:59Z", 0},
		{"2024-06-16T00:00:00Z", 1},
		{"2024-06-15T23:30:00-03:00", 0},
		{"2024-06-16T01:00:00+09:00", 1},
		{"not a date", 0},
		{"", 0},
	}
	for _, tt := range tests {
		root := tree.Map(tree.F("dataAtendimento", tree.Text(tt.value)))
		got := run(t, rule, root)
		if len(got) != tt.want {
			t.Errorf("value %q: findings = %d; want %d", tt.value, len(got), tt.want)
			continue
		}
		if tt.want == 1 && got[0].Code != tv.CodeDateFuture {
			t.Errorf("Code = %s; want %s", got[0].Code, tv.CodeDateFuture)
		}
	}
	if rule.SettingKey() != tv.SettingCheckFutureDates {
		t.Errorf("SettingKey() = %q", rule.SettingKey())
	}
}

func TestAmountRule(t *testing.T) {
	rule := NewAmountRule()
	tests := []struct {
		value string
		want  int
	}{
		{"150.00", 0},
		{"0.00", 0},
		{"0", 0},
		{"-50.00", 1},
		{"-0,01", 1},
		{"-1.234,56", 1},
		{"1.234,56", 0},
		{"abc", 0},
		{"", 0},
	}
	for _, tt := range tests {
		root := tree.Map(tree.F("valorGlosa", tree.Text(tt.value)))
		got := run(t, rule, root)
		if len(got) != tt.want {
			t.Errorf("value %q: findings = %d; want %d", tt.value, len(got), tt.want)
			continue
		}
		if tt.want == 1 && got[0].Code != tv.CodeFinancialNegative {
			t.Errorf("Code = %s; want %s", got[0].Code, tv.CodeFinancialNegative)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234.56", "1234.56"},
		{"1234,56", "1234.56"},
		{"1.234,56", "1234.56"},
		{" -7 ", "-7"},
	}
	for _, tt := range tests {
		got, ok := parseAmount(tt.in)
		if !ok {
			t.Errorf("parseAmount(%q) failed", tt.in)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("parseAmount(%q) = %s; want %s", tt.in, got.String(), tt.want)
		}
	}
}

func TestVersionRule(t *testing.T) {
	rule := NewVersionRule()
	tests := []struct {
		name string
		root *tree.Node
		want string
	}{
		{"current", tree.Map(tree.F("padrao", tree.Text("4.01.00"))), ""},
		{"deprecated", tree.Map(tree.F("padrao", tree.Text("3.02.00"))), tv.CodeVersionObsolete},
		{"unknown recent", tree.Map(tree.F("padrao", tree.Text("5.00.00"))), ""},
		{"unknown old", tree.Map(tree.F("padrao", tree.Text("2.01.03"))), tv.CodeVersionObsolete},
		{"non numeric", tree.Map(tree.F("padrao", tree.Text("v4"))), tv.CodeVersionObsolete},
		{"missing", tree.Map(tree.F("outro", tree.Text("x"))), tv.CodeVersionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(t, rule, tt.root)
			if tt.want == "" {
				if len(got) != 0 {
					t.Errorf("findings = %v; want none", codes(got))
				}
				return
			}
			if len(got) != 1 || got[0].Code != tt.want {
				t.Errorf("findings = %v; want [%s]", codes(got), tt.want)
			}
		})
	}
}

func TestVersionRule_DeprecationDate(t *testing.T) {
	got := run(t, NewVersionRule(), tree.Map(tree.F("padrao", tree.Text("3.02.00"))))
	if len(got) != 1 || !strings.Contains(got[0].Message, "2020-12-31") {
		t.Errorf("findings = %v; want message with deprecation date", got)
	}
}

func TestClinicalIndicationRule(t *testing.T) {
	rule := NewClinicalIndicationRule()
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{"exam without indication", `<g><tipoAtendimento>05</tipoAtendimento></g>`, 1},
		{"exam with blank indication", `<g><tipoAtendimento>05</tipoAtendimento><indicacaoClinica> </indicacaoClinica></g>`, 1},
		{"exam with indication", `<g><tipoAtendimento>05</tipoAtendimento><indicacaoClinica>dor</indicacaoClinica></g>`, 0},
		{"not an exam", `<g><tipoAtendimento>04</tipoAtendimento></g>`, 0},
		{"no type", `<g/>`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(t, rule, parse(t, tt.doc))
			if len(got) != tt.want {
				t.Fatalf("findings = %v; want %d", codes(got), tt.want)
			}
			if tt.want == 1 && got[0].Code != tv.CodeClinicalIndicationMissing {
				t.Errorf("Code = %s", got[0].Code)
			}
		})
	}
}

func TestClinicalIndicationRule_Passes(t *testing.T) {
	exam := parse(t, `<g><tipoAtendimento>05</tipoAtendimento></g>`)
	indication := parse(t, `<g><indicacaoClinica>dor</indicacaoClinica></g>`)
	other := parse(t, `<g><tipoAtendimento>04</tipoAtendimento></g>`)
	tests := []struct {
		name   string
		guides []*tree.Node
		want   int
	}{
		{"exam alone", []*tree.Node{exam}, 1},
		{"indication in another guide", []*tree.Node{exam, indication}, 0},
		{"no exam", []*tree.Node{other}, 0},
		{"no guides", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runPasses(t, NewClinicalIndicationRule(), tt.guides...)
			if len(got) != tt.want {
				t.Errorf("findings = %v; want %d", codes(got), tt.want)
			}
		})
	}
}

func TestDefault_Order(t *testing.T) {
	rs := Default(terminology.NewMemoryStore())
	want := []string{
		"STRUCTURE",
		"TISS_VERSION",
		"TUSS_FORMAT",
		"TUSS_REFERENCE",
		"CLINICAL_INDICATION",
		"GUIDE_NUMBER",
		"FUTURE_DATE",
		"AMOUNT",
	}
	got := rs.IDs()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("IDs() = %v; want %v", got, want)
	}
}

func TestDefault_ValidDocument(t *testing.T) {
	store := terminology.NewMemoryStore()
	_, _ = store.BulkReplace(context.Background(), terminology.CommonProcedures())
	p := pipeline.NewPipeline(Default(store), nil)

	pctx := pipeline.NewContext(parse(t, validDoc), tv.DefaultSettings())
	pctx.Now = testNow
	res := p.Execute(context.Background(), pctx).Finalize()
	if !res.Valid {
		t.Errorf("Valid = false; findings = %v", res.Findings)
	}
	if res.Message != tv.MessageValid {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestDefault_RootMissingStops(t *testing.T) {
	p := pipeline.NewPipeline(Default(nil), nil)
	pctx := pipeline.NewContext(parse(t, `<foo><dataAtendimento>2999-01-01</dataAtendimento></foo>`), nil)
	res := p.Execute(context.Background(), pctx)
	if len(res.Findings) != 1 || res.Findings[0].Code != tv.CodeRootMissing {
		t.Errorf("findings = %v; want only ROOT_TAG_MISSING", codes(res.Findings))
	}
}

func TestDefault_Toggles(t *testing.T) {
	p := pipeline.NewPipeline(Default(nil), nil)
	doc := strings.Replace(validDoc, "150.00", "-1.00", 1)
	doc = strings.Replace(doc, "2024-03-10", "2099-01-01", 1)

	pctx := pipeline.NewContext(parse(t, doc), tv.DefaultSettings())
	pctx.Now = testNow
	res := p.Execute(context.Background(), pctx)
	if res.CountCode(tv.CodeFinancialNegative) != 1 || res.CountCode(tv.CodeDateFuture) != 1 {
		t.Fatalf("findings = %v", codes(res.Findings))
	}

	off := tv.Settings{tv.SettingCheckFutureDates: false, tv.SettingCheckNegativeValues: false}
	pctx = pipeline.NewContext(parse(t, doc), off)
	pctx.Now = testNow
	res = p.Execute(context.Background(), pctx)
	if len(res.Findings) != 0 {
		t.Errorf("findings = %v; want none with toggles off", codes(res.Findings))
	}
}

func TestSelfTest(t *testing.T) {
	report := SelfTest(context.Background(), testNow)
	if !report.OK() {
		for _, c := range report.Checks {
			if !c.Passed {
				t.Errorf("self-test %s: %s failed", c.Rule, c.Description)
			}
		}
	}
	if report.Passed != len(report.Checks) {
		t.Errorf("Passed = %d; want %d", report.Passed, len(report.Checks))
	}
}

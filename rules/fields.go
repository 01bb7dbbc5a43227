package rules

import (
	"regexp"
	"strings"

	"github.com/tissguard/validator/tree"
	"github.com/tissguard/validator/walker"
)

// Field names inspected by the rules.
var (
	// CodeFields hold TUSS procedure codes. codigoTabela is not listed: it
	// carries the 2-digit table identifier ("22"), not a code.
	CodeFields = []string{"codigoProcedimento"}

	// DateFields hold service dates that must not be in the future.
	DateFields = []string{
		"dataAtendimento",
		"dataExecucao",
		"dataRealizacao",
		"dataEmissao",
		"dataSolicitacao",
	}

	// AmountFields hold monetary values.
	AmountFields = []string{
		"valorTotal",
		"valorTotalGeral",
		"valorProcessado",
		"valorLiberado",
		"valorApresentado",
		"valorGlosa",
		"valorUnitario",
		"valorProcedimentos",
	}
)

// Structure of a TISS message.
var (
	RootNames    = []string{"mensagemTISS"}
	HeaderNames  = []string{"cabecalho"}
	HeaderFields = []string{"identificacaoTransacao", "origem", "destino", "padrao"}
	BodyNames    = []string{"prestadorParaOperadora", "operadoraParaPrestador"}
)

const (
	fieldGuideNumber = "numeroGuiaPrestador"
	fieldVersion     = "padrao"
	fieldServiceType = "tipoAtendimento"
	fieldIndication  = "indicacaoClinica"
	serviceTypeExam  = "05"
	namespacePrefix  = "ans:"
)

// child returns the first of names present in n, bare or with the ans:
// prefix. Trees from tree.Parse never carry prefixes; trees built by hand
// may.
func child(n *tree.Node, names ...string) (*tree.Node, string, bool) {
	for _, name := range names {
		if v, ok := n.Field(name); ok {
			return v, name, true
		}
		if v, ok := n.Field(namespacePrefix + name); ok {
			return v, name, true
		}
	}
	return nil, "", false
}

// findAll locates names bare and prefixed, in document order.
func findAll(root *tree.Node, names ...string) []walker.Hit {
	all := make([]string, 0, 2*len(names))
	for _, n := range names {
		all = append(all, n, namespacePrefix+n)
	}
	return walker.FindAny(root, all...)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

var codeRegex = regexp.MustCompile(`^[0-9]{8}$`)

// isCode reports whether s is exactly eight ASCII digits.
func isCode(s string) bool {
	return codeRegex.MatchString(s)
}

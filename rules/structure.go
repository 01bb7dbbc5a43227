package rules

import (
	"context"
	"fmt"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
	"github.com/tissguard/validator/pool"
)

// StructureRule checks the logical shape of a TISS message:
// - The document element is <mensagemTISS>
// - It has a <cabecalho> carrying the mandatory header fields
// - It has a message body (prestadorParaOperadora or operadoraParaPrestador)
//
// A missing root is fatal; the remaining checks accumulate independently.
type StructureRule struct {
	pipeline.Meta
}

// NewStructureRule creates the structure rule.
func NewStructureRule() *StructureRule {
	return &StructureRule{
		Meta: pipeline.Meta{
			RuleID:    "STRUCTURE",
			Desc:      "Verifica a integridade estrutural básica do XML (schema lógico).",
			RuleStage: pipeline.StageStructural,
			RuleScope: pipeline.ScopeDocument,
		},
	}
}

// Validate performs the structure checks.
func (r *StructureRule) Validate(_ context.Context, pctx *pipeline.Context) ([]tv.Finding, error) {
	root, rootName, ok := child(pctx.Tree, RootNames...)
	if !ok {
		return []tv.Finding{
			tv.Fatal(tv.CodeRootMissing).
				Message("Tag raiz <mensagemTISS> não encontrada. O arquivo não parece ser um XML TISS.").
				Build(),
		}, nil
	}

	var findings []tv.Finding

	header, headerName, ok := child(root, HeaderNames...)
	if !ok {
		findings = append(findings, tv.NewFinding(tv.CodeHeaderMissing).
			Message("Tag <cabecalho> é obrigatória.").
			At(rootName).
			Build())
	} else {
		loc := pool.JoinPath(rootName, headerName)
		for _, field := range HeaderFields {
			if _, _, found := child(header, field); found {
				continue
			}
			findings = append(findings, tv.NewFinding(tv.CodeHeaderFieldMissing).
				Message(fmt.Sprintf("Campo obrigatório <%s> ausente no cabeçalho.", field)).
				At(loc).
				Build())
		}
	}

	if _, _, ok := child(root, BodyNames...); !ok {
		findings = append(findings, tv.NewFinding(tv.CodeBodyMissing).
			Message("Nenhum corpo de mensagem identificado (ex: prestadorParaOperadora).").
			At(rootName).
			Build())
	}

	return findings, nil
}

package rules

import (
	"context"
	"fmt"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
)

// CodeFormatRule checks that every procedure code is exactly eight digits.
type CodeFormatRule struct {
	pipeline.Meta
	fields []string
}

// NewCodeFormatRule creates the format rule over CodeFields.
func NewCodeFormatRule() *CodeFormatRule {
	return &CodeFormatRule{
		Meta: pipeline.Meta{
			RuleID:    "TUSS_FORMAT",
			Desc:      "Verifica se os códigos TUSS possuem 8 dígitos numéricos.",
			RuleStage: pipeline.StageFormat,
			RuleScope: pipeline.ScopeAll,
		},
		fields: CodeFields,
	}
}

// Validate reports one finding per malformed occurrence, in document order.
func (r *CodeFormatRule) Validate(ctx context.Context, pctx *pipeline.Context) ([]tv.Finding, error) {
	var findings []tv.Finding
	for _, hit := range findAll(pctx.Tree, r.fields...) {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		if isCode(hit.Value) {
			continue
		}
		findings = append(findings, tv.NewFinding(tv.CodeTussFormat).
			Message(fmt.Sprintf("Código '%s' inválido. Deve ter 8 dígitos.", hit.Value)).
			At(hit.Location()).
			Build())
	}
	return findings, nil
}

package rules

import (
	"context"
	"strings"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
	"github.com/tissguard/validator/tree"
	"github.com/tissguard/validator/walker"
)

// Facts noted by the clinical indication rule in a streamed document.
const (
	factExam       = "exam"
	factIndication = "indication"
)

// ClinicalIndicationRule requires a clinical indication on exam requests
// (tipoAtendimento 05). Both the exam type and the indication may sit in
// any guide, so a stream decides in the summary pass.
type ClinicalIndicationRule struct {
	pipeline.Meta
	whole pipeline.Rule
}

// NewClinicalIndicationRule creates the clinical indication rule.
func NewClinicalIndicationRule() pipeline.Rule {
	meta := pipeline.Meta{
		RuleID:    "CLINICAL_INDICATION",
		Desc:      "Exige indicação clínica para exames (tipo 05).",
		RuleStage: pipeline.StageBusiness,
		RuleScope: pipeline.ScopeWhole,
	}
	return &ClinicalIndicationRule{
		Meta:  meta,
		whole: pipeline.NewDependencyRule(meta, isExam, requireIndication),
	}
}

// Validate checks whole documents directly and streamed ones through Facts.
func (r *ClinicalIndicationRule) Validate(ctx context.Context, pctx *pipeline.Context) ([]tv.Finding, error) {
	switch pctx.Pass {
	case pipeline.PassSummary:
		if !pctx.Facts.Has(factExam) || pctx.Facts.Has(factIndication) {
			return nil, nil
		}
		return []tv.Finding{indicationMissing()}, nil

	case pipeline.PassGuide, pipeline.PassEnvelope:
		if isExam(pctx.Tree) {
			pctx.Facts.Note(factExam, "")
		}
		if hasValue(findAll(pctx.Tree, fieldIndication)) {
			pctx.Facts.Note(factIndication, "")
		}
		return nil, nil
	}
	return r.whole.Validate(ctx, pctx)
}

func isExam(root *tree.Node) bool {
	for _, hit := range findAll(root, fieldServiceType) {
		if strings.TrimSpace(hit.Value) == serviceTypeExam {
			return true
		}
	}
	return false
}

func requireIndication(_ context.Context, pctx *pipeline.Context) ([]tv.Finding, error) {
	if hasValue(findAll(pctx.Tree, fieldIndication)) {
		return nil, nil
	}
	return []tv.Finding{indicationMissing()}, nil
}

func indicationMissing() tv.Finding {
	return tv.NewFinding(tv.CodeClinicalIndicationMissing).
		Message("Para exames (tipo 05), a indicação clínica é obrigatória.").
		Build()
}

func hasValue(hits []walker.Hit) bool {
	for _, hit := range hits {
		if !isBlank(hit.Value) {
			return true
		}
	}
	return false
}

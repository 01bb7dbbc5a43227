package rules

import (
	"context"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
)

// Facts noted by the guide number rule in a streamed document.
const (
	factGuideNumber      = "guideNumber"
	factGuideNumberBlank = "guideNumberBlank"
)

// GuideNumberRule requires at least one non-blank <numeroGuiaPrestador>
// anywhere in the document. In a stream, guides and the envelope only note
// what they hold and the finding is decided in the summary pass.
type GuideNumberRule struct {
	pipeline.Meta
}

// NewGuideNumberRule creates the guide number rule.
func NewGuideNumberRule() *GuideNumberRule {
	return &GuideNumberRule{
		Meta: pipeline.Meta{
			RuleID:    "GUIDE_NUMBER",
			Desc:      "Verifica se o número da guia do prestador está presente.",
			RuleStage: pipeline.StageBusiness,
			RuleScope: pipeline.ScopeWhole,
		},
	}
}

// Validate reports a single finding when every guide number is missing or blank.
func (r *GuideNumberRule) Validate(_ context.Context, pctx *pipeline.Context) ([]tv.Finding, error) {
	switch pctx.Pass {
	case pipeline.PassSummary:
		if pctx.Facts.Has(factGuideNumber) {
			return nil, nil
		}
		loc, blank := pctx.Facts.Get(factGuideNumberBlank)
		return []tv.Finding{guideNumberMissing(blank, loc)}, nil

	case pipeline.PassGuide, pipeline.PassEnvelope:
		hits := findAll(pctx.Tree, fieldGuideNumber)
		if hasValue(hits) {
			pctx.Facts.Note(factGuideNumber, "")
		} else if len(hits) > 0 {
			pctx.Facts.Note(factGuideNumberBlank, hits[0].Location())
		}
		return nil, nil
	}

	hits := findAll(pctx.Tree, fieldGuideNumber)
	if hasValue(hits) {
		return nil, nil
	}
	if len(hits) == 0 {
		return []tv.Finding{guideNumberMissing(false, "")}, nil
	}
	return []tv.Finding{guideNumberMissing(true, hits[0].Location())}, nil
}

func guideNumberMissing(blank bool, loc string) tv.Finding {
	b := tv.NewFinding(tv.CodeGuideNumberMissing)
	if blank {
		b.Message("Número da guia em branco.").At(loc)
	} else {
		b.Message("Número da guia do prestador <numeroGuiaPrestador> ausente.")
	}
	return b.Build()
}

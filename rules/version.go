package rules

import (
	"context"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
)

// VersionRule applies the TISS version policy to the first <padrao>.
type VersionRule struct {
	pipeline.Meta
}

// NewVersionRule creates the version rule.
func NewVersionRule() *VersionRule {
	return &VersionRule{
		Meta: pipeline.Meta{
			RuleID:    "TISS_VERSION",
			Desc:      "Verifica a versão do padrão TISS no arquivo.",
			RuleStage: pipeline.StageFormat,
			RuleScope: pipeline.ScopeDocument,
		},
	}
}

// Validate reports a missing or obsolete version.
func (r *VersionRule) Validate(_ context.Context, pctx *pipeline.Context) ([]tv.Finding, error) {
	hits := findAll(pctx.Tree, fieldVersion)
	if len(hits) == 0 || isBlank(hits[0].Value) {
		return []tv.Finding{
			tv.NewFinding(tv.CodeVersionNotFound).
				Message("Não foi possível identificar a versão do padrão TISS no arquivo (Tag <padrao> ausente).").
				Build(),
		}, nil
	}

	hit := hits[0]
	status := tv.VersionStatusOf(hit.Value)
	if status.Valid {
		return nil, nil
	}
	return []tv.Finding{
		tv.NewFinding(tv.CodeVersionObsolete).
			Message(status.Message).
			At(hit.Location()).
			Build(),
	}, nil
}

package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
)

// AmountRule rejects negative monetary values. Zero is accepted: denied
// items legitimately carry valorLiberado 0.00.
type AmountRule struct {
	pipeline.Meta
	fields []string
}

// NewAmountRule creates the amount rule, toggled by checkNegativeValues.
func NewAmountRule() *AmountRule {
	return &AmountRule{
		Meta: pipeline.Meta{
			RuleID:    "AMOUNT",
			Desc:      "Verifica se existem valores monetários negativos.",
			Setting:   tv.SettingCheckNegativeValues,
			RuleStage: pipeline.StageBusiness,
			RuleScope: pipeline.ScopeAll,
		},
		fields: AmountFields,
	}
}

// Validate reports one finding per negative value, in document order.
func (r *AmountRule) Validate(_ context.Context, pctx *pipeline.Context) ([]tv.Finding, error) {
	var findings []tv.Finding
	for _, hit := range findAll(pctx.Tree, r.fields...) {
		v, ok := parseAmount(hit.Value)
		if !ok || !v.IsNegative() {
			continue
		}
		findings = append(findings, tv.NewFinding(tv.CodeFinancialNegative).
			Message(fmt.Sprintf("Valor monetário inválido (%s).", v.String())).
			At(hit.Location()).
			Build())
	}
	return findings, nil
}

// parseAmount reads "1234.56", "1234,56" and "1.234,56".
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

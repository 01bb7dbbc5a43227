package rules

import (
	"github.com/tissguard/validator/pipeline"
	"github.com/tissguard/validator/terminology"
)

// Default returns the standard rule set. A nil store disables the
// reference rule's lookups.
func Default(store terminology.Store) *pipeline.RuleSet {
	return pipeline.NewRuleSet().MustRegister(
		NewStructureRule(),
		NewVersionRule(),
		NewCodeFormatRule(),
		NewReferenceRule(store),
		NewClinicalIndicationRule(),
		NewGuideNumberRule(),
		NewFutureDateRule(),
		NewAmountRule(),
	)
}

// Package rules implements the TISS validation rules run by the pipeline.
//
// Rules are registered in a pipeline.RuleSet and ordered by stage:
//
//	StageStructural  STRUCTURE             root, header and body presence
//	StageFormat      TISS_VERSION          version policy of <padrao>
//	StageFormat      TUSS_FORMAT           8-digit procedure codes
//	StageReference   TUSS_REFERENCE        procedure codes exist in the TUSS table
//	StageBusiness    CLINICAL_INDICATION   exams (type 05) carry a clinical indication
//	StageBusiness    GUIDE_NUMBER          guides carry a provider guide number
//	StageBusiness    FUTURE_DATE           service dates are not in the future
//	StageBusiness    AMOUNT                monetary values are not negative
//
// Default builds the standard rule set. Declarative rules written as CEL
// conditions can be appended with CompileDeclarative.
package rules

package rules

import (
	"context"
	"time"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
	"github.com/tissguard/validator/terminology"
	"github.com/tissguard/validator/tree"
)

// Check is the outcome of one self-test assertion.
type Check struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
	Passed      bool   `json:"passed"`
}

// Report summarizes a self-test run.
type Report struct {
	Checks []Check `json:"checks"`
	Passed int     `json:"passed"`
	Failed int     `json:"failed"`
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// Add records a check.
func (r *Report) Add(rule, desc string, passed bool) {
	r.Checks = append(r.Checks, Check{Rule: rule, Description: desc, Passed: passed})
	if passed {
		r.Passed++
	} else {
		r.Failed++
	}
}

type selfCase struct {
	rule  pipeline.Rule
	desc  string
	doc   *tree.Node
	wants bool
}

// SelfTest runs each built-in rule against small known trees and reports
// whether it flags what it should. now is the reference day for the date
// rule.
func SelfTest(ctx context.Context, now time.Time) *Report {
	store := terminology.NewMemoryStore()
	_, _ = store.BulkReplace(ctx, terminology.CommonProcedures())

	proc := func(code string) *tree.Node {
		return tree.Map(tree.F("guia", tree.Map(tree.F("procedimento",
			tree.Map(tree.F("codigoProcedimento", tree.Text(code)))))))
	}
	future := now.AddDate(0, 0, 5).Format(time.DateOnly)

	cases := []selfCase{
		{NewCodeFormatRule(), "detecta código com 3 dígitos", proc("123"), true},
		{NewCodeFormatRule(), "aceita código com 8 dígitos", proc("10101012"), false},
		{NewReferenceRule(store), "detecta código fora da tabela", proc("99999999"), true},
		{NewReferenceRule(store), "aceita código da tabela", proc("10101012"), false},
		{NewGuideNumberRule(), "detecta guia sem número", tree.Map(tree.F("guia", tree.Map())), true},
		{NewGuideNumberRule(), "aceita guia com número",
			tree.Map(tree.F("numeroGuiaPrestador", tree.Text("123456"))), false},
		{NewAmountRule(), "bloqueia valor negativo", tree.Map(tree.F("valorTotal", tree.Text("-50.00"))), true},
		{NewAmountRule(), "aceita valor zero", tree.Map(tree.F("valorGlosa", tree.Text("0.00"))), false},
		{NewFutureDateRule(), "bloqueia data futura", tree.Map(tree.F("dataAtendimento", tree.Text(future))), true},
		{NewFutureDateRule(), "aceita data de hoje",
			tree.Map(tree.F("dataAtendimento", tree.Text(now.Format(time.DateOnly)))), false},
		{NewVersionRule(), "detecta versão obsoleta", tree.Map(tree.F("padrao", tree.Text("3.02.00"))), true},
		{NewVersionRule(), "aceita versão vigente", tree.Map(tree.F("padrao", tree.Text("4.01.00"))), false},
		{NewStructureRule(), "detecta raiz ausente", tree.Map(tree.F("outro", tree.Map())), true},
	}

	report := &Report{}
	for _, c := range cases {
		pctx := pipeline.AcquireContext()
		pctx.Tree = c.doc
		pctx.Settings = tv.DefaultSettings()
		pctx.Now = now
		pctx.Options = tv.DefaultOptions()

		findings, err := c.rule.Validate(ctx, pctx)
		pctx.Release()
		report.Add(c.rule.ID(), c.desc, err == nil && (len(findings) > 0) == c.wants)
	}
	return report
}

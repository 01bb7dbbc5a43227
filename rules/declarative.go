package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
	"github.com/tissguard/validator/pkg/logger"
	"github.com/tissguard/validator/tree"
)

// Declarative is a conditional rule described as data. When Condition
// holds, every field in RequiredFields must have a non-blank value.
//
// Condition is a CEL expression over two variables:
//
//	fields  map(string, list(string))  every value of each watched field
//	value   map(string, string)        the first value of each watched field
//
// The watched fields are Watch, RequiredFields and every field the
// condition selects by name (value.x or value['x']). For example:
//
//	id: GUIA_SADT_CID
//	condition: value.tipoAtendimento == '05' && size(fields.codigoProcedimento) > 0
//	watch: [tipoAtendimento, codigoProcedimento]
//	requiredFields: [cid]
type Declarative struct {
	ID             string   `yaml:"id" json:"id"`
	Description    string   `yaml:"description" json:"description"`
	Condition      string   `yaml:"condition" json:"condition"`
	Watch          []string `yaml:"watch" json:"watch"`
	RequiredFields []string `yaml:"requiredFields" json:"requiredFields"`
	Message        string   `yaml:"message" json:"message"`
}

// ParseDeclarative reads a YAML (or JSON) list of declarative rules.
func ParseDeclarative(data []byte) ([]Declarative, error) {
	var defs []Declarative
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse declarative rules: %w", err)
	}
	return defs, nil
}

// LoadDeclarative reads declarative rules from a file.
func LoadDeclarative(path string) ([]Declarative, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read declarative rules: %w", err)
	}
	return ParseDeclarative(data)
}

// CompileDeclarative compiles every definition into a business-stage
// dependency rule. All compile errors are returned together.
func CompileDeclarative(defs []Declarative) ([]pipeline.Rule, error) {
	env, err := cel.NewEnv(
		cel.Variable("fields", cel.MapType(cel.StringType, cel.ListType(cel.StringType))),
		cel.Variable("value", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}

	var (
		out  []pipeline.Rule
		errs []error
	)
	for _, def := range defs {
		rule, err := compileOne(env, def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rule)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func compileOne(env *cel.Env, def Declarative) (pipeline.Rule, error) {
	if strings.TrimSpace(def.ID) == "" {
		return nil, errors.New("declarative rule without id")
	}
	if len(def.RequiredFields) == 0 {
		return nil, fmt.Errorf("rule %s: no required fields", def.ID)
	}

	watched := watchedFields(def)
	var when pipeline.Predicate
	if cond := strings.TrimSpace(def.Condition); cond != "" {
		ast, iss := env.Compile(cond)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("rule %s: %w", def.ID, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %s: condition must be boolean, got %s", def.ID, ast.OutputType())
		}
		watched = appendUnique(watched, selectedFields(ast.NativeRep().Expr())...)
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", def.ID, err)
		}
		when = func(root *tree.Node) bool {
			out, _, err := prg.Eval(activation(root, watched))
			if err != nil {
				logger.Debug("declarative condition failed", "rule", def.ID, "err", err)
				return false
			}
			b, ok := out.Value().(bool)
			return ok && b
		}
	}

	meta := pipeline.Meta{
		RuleID:    def.ID,
		Desc:      def.Description,
		RuleStage: pipeline.StageBusiness,
		RuleScope: pipeline.ScopeAll,
	}
	return pipeline.NewDependencyRule(meta, when, requireFields(def)), nil
}

func watchedFields(def Declarative) []string {
	out := appendUnique(nil, def.Watch...)
	return appendUnique(out, def.RequiredFields...)
}

func appendUnique(dst []string, names ...string) []string {
	for _, n := range names {
		if n == "" || slices.Contains(dst, n) {
			continue
		}
		dst = append(dst, n)
	}
	return dst
}

// selectedFields lists the field names a condition reads from the fields
// or value maps with a constant key. Dynamic keys fall back to the
// declared watch list.
func selectedFields(expr celast.Expr) []string {
	var out []string
	celast.PostOrderVisit(expr, celast.NewExprVisitor(func(e celast.Expr) {
		switch e.Kind() {
		case celast.SelectKind:
			sel := e.AsSelect()
			if isInputVar(sel.Operand()) {
				out = append(out, sel.FieldName())
			}
		case celast.CallKind:
			call := e.AsCall()
			if call.FunctionName() != operators.Index || len(call.Args()) != 2 {
				return
			}
			key := call.Args()[1]
			if !isInputVar(call.Args()[0]) || key.Kind() != celast.LiteralKind {
				return
			}
			if name, ok := key.AsLiteral().Value().(string); ok {
				out = append(out, name)
			}
		}
	}))
	return out
}

func isInputVar(e celast.Expr) bool {
	if e.Kind() != celast.IdentKind {
		return false
	}
	name := e.AsIdent()
	return name == "fields" || name == "value"
}

// activation binds every watched field, present or not, so conditions can
// select any of them without a missing-key error.
func activation(root *tree.Node, watched []string) map[string]any {
	fields := make(map[string]any, len(watched))
	first := make(map[string]string, len(watched))
	for _, name := range watched {
		hits := findAll(root, name)
		values := make([]string, len(hits))
		for i, h := range hits {
			values[i] = strings.TrimSpace(h.Value)
		}
		fields[name] = values
		if len(values) > 0 {
			first[name] = values[0]
		} else {
			first[name] = ""
		}
	}
	return map[string]any{"fields": fields, "value": first}
}

func requireFields(def Declarative) pipeline.Func {
	return func(_ context.Context, pctx *pipeline.Context) ([]tv.Finding, error) {
		var findings []tv.Finding
		for _, field := range def.RequiredFields {
			if hasValue(findAll(pctx.Tree, field)) {
				continue
			}
			msg := def.Message
			if msg == "" {
				msg = fmt.Sprintf("Campo obrigatório <%s> ausente.", field)
			}
			findings = append(findings, tv.NewFinding(tv.CodeRequiredFieldMissing).
				Message(msg).
				Build())
		}
		return findings, nil
	}
}

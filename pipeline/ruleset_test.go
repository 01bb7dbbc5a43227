package pipeline

import (
	"reflect"
	"testing"
	"time"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/tree"
)

func TestRuleSet_Order(t *testing.T) {
	set := NewRuleSet(
		newMock("business1", StageBusiness),
		newMock("format1", StageFormat),
		newMock("structure", StageStructural),
		newMock("business2", StageBusiness),
		newMock("format2", StageFormat),
		newMock("reference", StageReference),
	)

	want := []string{"structure", "format1", "format2", "reference", "business1", "business2"}
	if got := set.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v; want %v", got, want)
	}
}

func TestRuleSet_Duplicate(t *testing.T) {
	set := NewRuleSet(newMock("a", StageFormat))
	if err := set.Register(newMock("a", StageBusiness)); err == nil {
		t.Error("Register() of duplicate id should fail")
	}
	if err := set.Register(nil); err == nil {
		t.Error("Register(nil) should fail")
	}
	if set.Len() != 1 {
		t.Errorf("Len() = %d; want 1", set.Len())
	}
}

func TestRuleSet_MustRegisterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustRegister() with duplicate id should panic")
		}
	}()
	NewRuleSet().MustRegister(newMock("a", StageFormat), newMock("a", StageFormat))
}

func TestRuleSet_EnableDisable(t *testing.T) {
	set := NewRuleSet(newMock("a", StageFormat), newMock("b", StageFormat))

	set.Disable("a")
	if got := set.IDs(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("IDs() after Disable = %v; want [b]", got)
	}
	if _, ok := set.Get("a"); !ok {
		t.Error("disabled rule should still be registered")
	}

	set.Enable("a")
	if got := set.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("IDs() after Enable = %v; want [a b]", got)
	}
}

func TestRuleSet_Groups(t *testing.T) {
	set := NewRuleSet(
		newMock("s", StageStructural),
		newMock("f1", StageFormat),
		newMock("f2", StageFormat),
		newMock("b", StageBusiness),
	)

	groups := set.Groups()
	if len(groups) != 3 {
		t.Fatalf("len(Groups()) = %d; want 3", len(groups))
	}
	if groups[1].Stage != StageFormat || len(groups[1].Rules) != 2 {
		t.Errorf("groups[1] = %v with %d rules; want format with 2", groups[1].Stage, len(groups[1].Rules))
	}
}

func TestStage_String(t *testing.T) {
	tests := map[Stage]string{
		StageStructural: "structural",
		StageFormat:     "format",
		StageReference:  "reference",
		StageBusiness:   "business",
		Stage(42):       "custom",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Stage(%d).String() = %q; want %q", int(s), got, want)
		}
	}
}

func TestContext_AcquireRelease(t *testing.T) {
	pctx := AcquireContext()
	pctx.Tree = tree.Text("x")
	pctx.Result = tv.NewResult(tv.ModeFull)
	pctx.Release()

	again := AcquireContext()
	defer again.Release()
	if again.Tree != nil || again.Result != nil {
		t.Error("acquired context should be reset")
	}
}

func TestContext_Derive(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	parent := newContext()
	parent.Now = now
	parent.Metrics = tv.NewMetrics()

	guide := tree.Map(tree.F("guiaConsulta", tree.Map()))
	child := parent.Derive(guide, PassGuide)
	defer child.Release()

	if child.Tree != guide || child.Pass != PassGuide {
		t.Error("Derive() should set tree and pass")
	}
	if !child.Now.Equal(now) || child.Metrics != parent.Metrics || child.Options != parent.Options {
		t.Error("Derive() should share clock, metrics and options")
	}
	if child.Result != nil {
		t.Error("Derive() must not share the result")
	}
}

func TestContext_Clock(t *testing.T) {
	fixed := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	pctx := &Context{Options: tv.Apply(tv.WithClock(func() time.Time { return fixed }))}
	if got := pctx.Clock(); !got.Equal(fixed) {
		t.Errorf("Clock() = %v; want %v", got, fixed)
	}

	pctx.Now = fixed.Add(time.Hour)
	if got := pctx.Clock(); !got.Equal(fixed.Add(time.Hour)) {
		t.Errorf("Clock() = %v; want Now to win", got)
	}
}

func TestContext_LookupConcurrency(t *testing.T) {
	if got := (&Context{}).LookupConcurrency(); got != 1 {
		t.Errorf("LookupConcurrency() without options = %d; want 1", got)
	}
	pctx := &Context{Options: tv.Apply(tv.WithLookupConcurrency(7))}
	if got := pctx.LookupConcurrency(); got != 7 {
		t.Errorf("LookupConcurrency() = %d; want 7", got)
	}
}

func TestScope_Includes(t *testing.T) {
	tests := []struct {
		scope Scope
		pass  Pass
		want  bool
	}{
		{ScopeAll, PassEnvelope, true},
		{ScopeDocument, PassDocument, true},
		{ScopeDocument, PassEnvelope, true},
		{ScopeDocument, PassGuide, false},
		{ScopeGuide, PassDocument, true},
		{ScopeGuide, PassGuide, true},
		{ScopeGuide, PassEnvelope, false},
		{ScopeAll, PassSummary, false},
		{ScopeDocument, PassSummary, false},
		{ScopeWhole, PassSummary, true},
		{ScopeWhole, PassGuide, true},
	}
	for _, tt := range tests {
		if got := tt.scope.Includes(tt.pass); got != tt.want {
			t.Errorf("Scope(%d).Includes(%v) = %v; want %v", tt.scope, tt.pass, got, tt.want)
		}
	}
}

func TestFacts(t *testing.T) {
	f := NewFacts()
	f.Note("k", "first")
	f.Note("k", "second")
	if v, ok := f.Get("k"); !ok || v != "first" {
		t.Errorf("Get(k) = %q, %v; want first, true", v, ok)
	}
	if f.Has("other") {
		t.Error("Has(other) = true; want false")
	}

	var nilFacts *Facts
	nilFacts.Note("k", "v")
	if nilFacts.Has("k") {
		t.Error("nil Facts must hold nothing")
	}
}

func TestContext_DeriveSharesFacts(t *testing.T) {
	parent := NewContext(nil, nil)
	parent.Facts = NewFacts()
	child := parent.Derive(nil, PassSummary)
	defer child.Release()
	child.Facts.Note("seen", "")
	if !parent.Facts.Has("seen") {
		t.Error("derived context must share Facts")
	}
}

package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
)

// Accepted date layouts. Date-only layouts are read in the clock's zone.
var dateLayouts = []string{
	time.DateOnly,
	"02/01/2006",
}

// FutureDateRule rejects service dates after the end of today.
// Unparseable dates are left to schema validation and ignored here.
type FutureDateRule struct {
	pipeline.Meta
	fields []string
}

// NewFutureDateRule creates the future date rule, toggled by
// checkFutureDates.
func NewFutureDateRule() *FutureDateRule {
	return &FutureDateRule{
		Meta: pipeline.Meta{
			RuleID:    "FUTURE_DATE",
			Desc:      "Impede o envio de procedimentos com data futura.",
			Setting:   tv.SettingCheckFutureDates,
			RuleStage: pipeline.StageBusiness,
			RuleScope: pipeline.ScopeAll,
		},
		fields: DateFields,
	}
}

// Validate reports one finding per future date, in document order.
func (r *FutureDateRule) Validate(_ context.Context, pctx *pipeline.Context) ([]tv.Finding, error) {
	now := pctx.Clock()
	today := calendarDay(now)

	var findings []tv.Finding
	for _, hit := range findAll(pctx.Tree, r.fields...) {
		t, ok := parseDate(hit.Value, now.Location())
		if !ok || !calendarDay(t).After(today) {
			continue
		}
		findings = append(findings, tv.NewFinding(tv.CodeDateFuture).
			Message(fmt.Sprintf("A data %s não pode ser futura.", hit.Value)).
			At(hit.Location()).
			Build())
	}
	return findings, nil
}

// calendarDay keeps only the date of t as read in its own zone, so an
// RFC3339 value is judged by the day its sender wrote.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// RuleSet holds rules in execution order: stage first, then registration
// order within a stage. It is safe for concurrent use.
type RuleSet struct {
	mu       sync.RWMutex
	entries  []*entry
	ordered  []Rule
	disabled map[string]bool
	seq      int
}

type entry struct {
	rule Rule
	seq  int
}

// NewRuleSet creates a rule set with the given rules registered in order.
func NewRuleSet(rules ...Rule) *RuleSet {
	s := &RuleSet{disabled: make(map[string]bool)}
	for _, r := range rules {
		_ = s.Register(r)
	}
	return s
}

// Register adds a rule. IDs must be unique within the set.
func (s *RuleSet) Register(rule Rule) error {
	if rule == nil {
		return fmt.Errorf("pipeline: nil rule")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.rule.ID() == rule.ID() {
			return fmt.Errorf("pipeline: duplicate rule id %q", rule.ID())
		}
	}
	s.entries = append(s.entries, &entry{rule: rule, seq: s.seq})
	s.seq++
	s.rebuild()
	return nil
}

// MustRegister is like Register but panics on error.
func (s *RuleSet) MustRegister(rules ...Rule) *RuleSet {
	for _, r := range rules {
		if err := s.Register(r); err != nil {
			panic(err)
		}
	}
	return s
}

// Enable re-enables a rule disabled with Disable.
func (s *RuleSet) Enable(id string) {
	s.mu.Lock()
	delete(s.disabled, id)
	s.rebuild()
	s.mu.Unlock()
}

// Disable removes a rule from execution without unregistering it.
func (s *RuleSet) Disable(id string) {
	s.mu.Lock()
	s.disabled[id] = true
	s.rebuild()
	s.mu.Unlock()
}

// Get returns a rule by ID.
func (s *RuleSet) Get(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.rule.ID() == id {
			return e.rule, true
		}
	}
	return nil, false
}

// Rules returns the enabled rules in execution order.
func (s *RuleSet) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// IDs returns the enabled rule IDs in execution order.
func (s *RuleSet) IDs() []string {
	rules := s.Rules()
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID()
	}
	return ids
}

// Len returns the number of enabled rules.
func (s *RuleSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// StageGroup lists the enabled rules of one stage.
type StageGroup struct {
	Stage Stage
	Rules []Rule
}

// Groups returns the enabled rules grouped by stage, in execution order.
func (s *RuleSet) Groups() []StageGroup {
	var groups []StageGroup
	for _, r := range s.Rules() {
		if n := len(groups); n > 0 && groups[n-1].Stage == r.Stage() {
			groups[n-1].Rules = append(groups[n-1].Rules, r)
			continue
		}
		groups = append(groups, StageGroup{Stage: r.Stage(), Rules: []Rule{r}})
	}
	return groups
}

// rebuild must be called with mu held.
func (s *RuleSet) rebuild() {
	enabled := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !s.disabled[e.rule.ID()] {
			enabled = append(enabled, e)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].rule.Stage() != enabled[j].rule.Stage() {
			return enabled[i].rule.Stage() < enabled[j].rule.Stage()
		}
		return enabled[i].seq < enabled[j].seq
	})
	s.ordered = make([]Rule, len(enabled))
	for i, e := range enabled {
		s.ordered[i] = e.rule
	}
}

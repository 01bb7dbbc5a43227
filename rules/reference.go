package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pipeline"
	"github.com/tissguard/validator/pool"
	"github.com/tissguard/validator/terminology"
	"github.com/tissguard/validator/walker"
)

var codeSets = pool.NewSetPool[string](32)

// ReferenceRule checks that well-formed procedure codes exist in the TUSS
// table. It reports nothing while the table is empty, so a fresh install
// does not flag every code.
type ReferenceRule struct {
	pipeline.Meta
	store  terminology.Store
	fields []string
}

// NewReferenceRule creates the reference rule backed by store.
func NewReferenceRule(store terminology.Store) *ReferenceRule {
	return &ReferenceRule{
		Meta: pipeline.Meta{
			RuleID:    "TUSS_REFERENCE",
			Desc:      "Valida se os códigos TUSS existem na tabela vigente.",
			RuleStage: pipeline.StageReference,
			RuleScope: pipeline.ScopeAll,
		},
		store:  store,
		fields: CodeFields,
	}
}

// Validate looks up every distinct code concurrently and reports absent
// ones sorted by location, then code.
func (r *ReferenceRule) Validate(ctx context.Context, pctx *pipeline.Context) ([]tv.Finding, error) {
	if r.store == nil {
		return nil, nil
	}

	var hits []walker.Hit
	for _, hit := range findAll(pctx.Tree, r.fields...) {
		if isCode(hit.Value) {
			hits = append(hits, hit)
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count reference codes: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	seen := codeSets.Acquire()
	defer codeSets.Release(seen)
	codes := make([]string, 0, len(hits))
	for _, hit := range hits {
		if _, dup := seen[hit.Value]; dup {
			continue
		}
		seen[hit.Value] = struct{}{}
		codes = append(codes, hit.Value)
	}

	missing, err := r.lookup(ctx, pctx, codes)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return nil, nil
	}

	var findings []tv.Finding
	for _, hit := range hits {
		if _, absent := missing[hit.Value]; !absent {
			continue
		}
		findings = append(findings, tv.NewFinding(tv.CodeTussNotFound).
			Message(fmt.Sprintf("O código TUSS %s não foi encontrado na tabela local.", hit.Value)).
			At(hit.Location()).
			Build())
	}
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Location != findings[j].Location {
			return findings[i].Location < findings[j].Location
		}
		return findings[i].Message < findings[j].Message
	})
	return findings, nil
}

// lookup queries the store for every code and returns the absent ones. All
// lookups finish before it returns; the first store error cancels the rest.
func (r *ReferenceRule) lookup(ctx context.Context, pctx *pipeline.Context, codes []string) (map[string]struct{}, error) {
	var (
		mu      sync.Mutex
		missing = make(map[string]struct{})
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pctx.LookupConcurrency())
	for _, code := range codes {
		g.Go(func() error {
			ok, err := r.store.Exists(gctx, code)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", code, err)
			}
			pctx.RecordLookup(ok)
			if !ok {
				mu.Lock()
				missing[code] = struct{}{}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return missing, nil
}

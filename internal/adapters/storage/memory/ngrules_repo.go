package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cattery-breeding/internal/domain/ngrules"
)

type ruleRepo struct {
	mu   sync.RWMutex
	byID map[string]ngrules.Rule
	now  func() time.Time
}

func NewNGRuleRepo() ngrules.Repository {
	return &ruleRepo{
		byID: make(map[string]ngrules.Rule),
		now:  time.Now,
	}
}

func (r *ruleRepo) List(ctx context.Context, activeOnly bool) ([]ngrules.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ngrules.Rule, 0, len(r.byID))
	for _, rule := range r.byID {
		if activeOnly && !rule.Active {
			continue
		}
		out = append(out, cloneRule(rule))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ruleRepo) Create(ctx context.Context, rule ngrules.Rule) (ngrules.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rule.ID == "" {
		return ngrules.Rule{}, errors.New("rule id required")
	}
	if _, exists := r.byID[rule.ID]; exists {
		return ngrules.Rule{}, errors.New("rule already exists")
	}
	now := r.now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	r.byID[rule.ID] = cloneRule(rule)
	return cloneRule(rule), nil
}

func (r *ruleRepo) Update(ctx context.Context, id string, p ngrules.Patch) (ngrules.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return ngrules.Rule{}, ngrules.ErrNotFound
	}
	next := p.Apply(cur)
	next.UpdatedAt = r.now().UTC()
	r.byID[id] = cloneRule(next)
	return cloneRule(next), nil
}

func (r *ruleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ngrules.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func cloneRule(r ngrules.Rule) ngrules.Rule {
	r.MaleConditions = append([]string(nil), r.MaleConditions...)
	r.FemaleConditions = append([]string(nil), r.FemaleConditions...)
	r.MaleNames = append([]string(nil), r.MaleNames...)
	r.FemaleNames = append([]string(nil), r.FemaleNames...)
	if r.GenerationLimit != nil {
		n := *r.GenerationLimit
		r.GenerationLimit = &n
	}
	return r
}

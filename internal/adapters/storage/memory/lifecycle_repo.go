package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cattery-breeding/internal/domain/lifecycle"
)

// -------------------------
// Pregnancy checks
// -------------------------

type checkRepo struct {
	mu   sync.RWMutex
	byID map[string]lifecycle.PregnancyCheck
}

func NewPregnancyCheckRepo() lifecycle.PregnancyCheckRepository {
	return &checkRepo{byID: make(map[string]lifecycle.PregnancyCheck)}
}

func (r *checkRepo) List(ctx context.Context) ([]lifecycle.PregnancyCheck, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]lifecycle.PregnancyCheck, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckDate.Before(out[j].CheckDate)
	})
	return out, nil
}

func (r *checkRepo) Create(ctx context.Context, c lifecycle.PregnancyCheck) (lifecycle.PregnancyCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		return lifecycle.PregnancyCheck{}, errors.New("pregnancy check id required")
	}
	if _, exists := r.byID[c.ID]; exists {
		return lifecycle.PregnancyCheck{}, errors.New("pregnancy check already exists")
	}
	r.byID[c.ID] = c
	return c, nil
}

func (r *checkRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return lifecycle.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// -------------------------
// Birth plans
// -------------------------

type planRepo struct {
	mu   sync.RWMutex
	byID map[string]lifecycle.BirthPlan
	now  func() time.Time
}

func NewBirthPlanRepo() lifecycle.BirthPlanRepository {
	return &planRepo{byID: make(map[string]lifecycle.BirthPlan), now: time.Now}
}

func (r *planRepo) List(ctx context.Context) ([]lifecycle.BirthPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]lifecycle.BirthPlan, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpectedBirthDate.Before(out[j].ExpectedBirthDate)
	})
	return out, nil
}

func (r *planRepo) Create(ctx context.Context, p lifecycle.BirthPlan) (lifecycle.BirthPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		return lifecycle.BirthPlan{}, errors.New("birth plan id required")
	}
	if _, exists := r.byID[p.ID]; exists {
		return lifecycle.BirthPlan{}, errors.New("birth plan already exists")
	}
	r.byID[p.ID] = p
	return p, nil
}

func (r *planRepo) Update(ctx context.Context, id string, patch lifecycle.BirthPlanPatch) (lifecycle.BirthPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return lifecycle.BirthPlan{}, lifecycle.ErrNotFound
	}
	next := patch.Apply(cur)
	next.UpdatedAt = r.now().UTC()
	r.byID[id] = next
	return next, nil
}

func (r *planRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return lifecycle.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *planRepo) Complete(ctx context.Context, id string, at time.Time) (lifecycle.BirthPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return lifecycle.BirthPlan{}, lifecycle.ErrNotFound
	}
	if cur.CompletedAt != nil {
		return cur, nil
	}
	at = at.UTC()
	cur.CompletedAt = &at
	cur.UpdatedAt = at
	r.byID[id] = cur
	return cur, nil
}

// -------------------------
// Kitten dispositions
// -------------------------

type dispositionRepo struct {
	mu    sync.RWMutex
	byID  map[string]lifecycle.KittenDisposition
	order []string
}

func NewDispositionRepo() lifecycle.DispositionRepository {
	return &dispositionRepo{byID: make(map[string]lifecycle.KittenDisposition)}
}

func (r *dispositionRepo) Create(ctx context.Context, d lifecycle.KittenDisposition) (lifecycle.KittenDisposition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.ID == "" {
		return lifecycle.KittenDisposition{}, errors.New("disposition id required")
	}
	if _, exists := r.byID[d.ID]; exists {
		return lifecycle.KittenDisposition{}, errors.New("disposition already exists")
	}
	// Igual que UNIQUE (birth_record_id, kitten_id) en Postgres.
	if d.KittenID != "" {
		for _, id := range r.order {
			if o := r.byID[id]; o.BirthRecordID == d.BirthRecordID && o.KittenID == d.KittenID {
				return lifecycle.KittenDisposition{}, lifecycle.ErrDuplicateDisposition
			}
		}
	}
	r.byID[d.ID] = d
	r.order = append(r.order, d.ID)
	return d, nil
}

func (r *dispositionRepo) ListByBirthPlan(ctx context.Context, birthRecordID string) ([]lifecycle.KittenDisposition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]lifecycle.KittenDisposition, 0)
	for _, id := range r.order {
		if d := r.byID[id]; d.BirthRecordID == birthRecordID {
			out = append(out, d)
		}
	}
	return out, nil
}

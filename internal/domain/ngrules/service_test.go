package ngrules

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/platform/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	mu    sync.Mutex
	items []Rule
	fail  error
}

func (r *testRepo) List(ctx context.Context, activeOnly bool) ([]Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Rule, 0, len(r.items))
	for _, it := range r.items {
		if activeOnly && !it.Active {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *testRepo) Create(ctx context.Context, rule Rule) (Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return Rule{}, r.fail
	}
	r.items = append(r.items, rule)
	return rule, nil
}

func (r *testRepo) Update(ctx context.Context, id string, p Patch) (Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return Rule{}, r.fail
	}
	for i, it := range r.items {
		if it.ID == id {
			r.items[i] = p.Apply(it)
			return r.items[i], nil
		}
	}
	return Rule{}, ErrNotFound
}

func (r *testRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	for i, it := range r.items {
		if it.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type testAnimals map[string]animals.Animal

func (a testAnimals) GetByID(ctx context.Context, id string) (animals.Animal, error) {
	an, ok := a[id]
	if !ok {
		return animals.Animal{}, animals.ErrNotFound
	}
	return an, nil
}

func newTestService(repo *testRepo) (*Service, *metrics.Recorder) {
	rec := metrics.New(prometheus.NewRegistry())
	lookup := testAnimals{
		"m1": {ID: "m1", Name: "Zeus", Gender: animals.GenderMale, Tags: []string{"A"}},
		"f1": {ID: "f1", Name: "Mia", Gender: animals.GenderFemale, Tags: []string{"Y"}},
	}
	return NewService(repo, lookup, nil, rec), rec
}

// -------------------------
// Tests
// -------------------------

func TestService_CreateAndEvaluate(t *testing.T) {
	svc, _ := newTestService(&testRepo{})
	ctx := context.Background()

	r, err := svc.Create(ctx, CreateInput{
		Name:             "no A x Y",
		Type:             TypeTagCombination,
		Active:           true,
		MaleConditions:   []string{"A"},
		FemaleConditions: []string{"Y"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, r.ID)

	v, male, female, err := svc.EvaluateIDs(ctx, "m1", "f1")
	require.NoError(t, err)
	require.True(t, v.Flagged)
	require.Equal(t, r.ID, v.Matched.ID)
	require.Equal(t, "Zeus", male.Name)
	require.Equal(t, "Mia", female.Name)

	_, err = svc.SetActive(ctx, r.ID, false)
	require.NoError(t, err)

	v, _, _, err = svc.EvaluateIDs(ctx, "m1", "f1")
	require.NoError(t, err)
	require.False(t, v.Flagged)
}

func TestService_CreateRollsBackOnRemoteFailure(t *testing.T) {
	repo := &testRepo{}
	svc, rec := newTestService(repo)
	ctx := context.Background()

	require.NoError(t, svc.Refresh(ctx))
	repo.fail = errors.New("boom")

	_, err := svc.Create(ctx, CreateInput{
		Name:             "x",
		Type:             TypeTagCombination,
		Active:           true,
		MaleConditions:   []string{"A"},
		FemaleConditions: []string{"Y"},
	})
	require.ErrorIs(t, err, ErrRemote)

	items, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Empty(t, items)

	mr := httptest.NewRecorder()
	rec.Handler().ServeHTTP(mr, httptest.NewRequest("GET", "/metrics", nil))
	require.Contains(t, mr.Body.String(), `breeding_rollbacks_total{collection="ng_rules"} 1`)
}

func TestService_UpdateAndDeleteRollBack(t *testing.T) {
	repo := &testRepo{}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	r, err := svc.Create(ctx, CreateInput{
		Name:             "keep",
		Type:             TypeTagCombination,
		Active:           true,
		MaleConditions:   []string{"A"},
		FemaleConditions: []string{"Y"},
	})
	require.NoError(t, err)

	repo.fail = errors.New("offline")

	_, err = svc.SetActive(ctx, r.ID, false)
	require.ErrorIs(t, err, ErrRemote)

	err = svc.Delete(ctx, r.ID)
	require.ErrorIs(t, err, ErrRemote)

	items, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, items[0].Active)
}

func TestService_SeesRulesWrittenAfterLoad(t *testing.T) {
	repo := &testRepo{}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	items, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Empty(t, items)

	repo.items = append(repo.items, Rule{ID: "ext-1", Name: "ext", Type: TypeIndividualProhibition, MaleNames: []string{"Zeus"}, FemaleNames: []string{"Mia"}})

	// Un id desconocido localmente se busca en el remoto.
	r, err := svc.SetActive(ctx, "ext-1", true)
	require.NoError(t, err)
	require.True(t, r.Active)

	v, _, _, err := svc.EvaluateIDs(ctx, "m1", "f1")
	require.NoError(t, err)
	require.True(t, v.Flagged)

	repo.items = append(repo.items, Rule{ID: "ext-2", Name: "ext2", Type: TypeGenerationLimit})
	require.NoError(t, svc.Refresh(ctx))
	items, err = svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.ErrorIs(t, svc.Delete(ctx, "missing"), ErrNotFound)
}

func TestService_UpdateRejectsPayloadOfOtherType(t *testing.T) {
	svc, _ := newTestService(&testRepo{})
	ctx := context.Background()

	r, err := svc.Create(ctx, CreateInput{
		Name:             "tags",
		Type:             TypeTagCombination,
		Active:           true,
		MaleConditions:   []string{"A"},
		FemaleConditions: []string{"Y"},
	})
	require.NoError(t, err)

	names := []string{"Zeus"}
	_, err = svc.Update(ctx, r.ID, Patch{MaleNames: &names})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Update(ctx, "missing", Patch{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_EvaluateRejectsSameGender(t *testing.T) {
	svc, _ := newTestService(&testRepo{})
	_, _, _, err := svc.EvaluateIDs(context.Background(), "f1", "m1")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, _, _, err = svc.EvaluateIDs(context.Background(), "nope", "f1")
	require.ErrorIs(t, err, animals.ErrNotFound)
}

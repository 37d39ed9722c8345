package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cattery-breeding/internal/domain/animals"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"
)

// -------------------------
// Test store (in-memory)
// -------------------------

type testStore struct {
	mu      sync.Mutex
	byScope map[string]State
	saves   int
	failErr error
	loadErr error
}

func newTestStore() *testStore {
	return &testStore{byScope: map[string]State{}}
}

func (s *testStore) Load(ctx context.Context, scope string) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return State{}, false, s.loadErr
	}
	st, ok := s.byScope[scope]
	return st, ok, nil
}

func (s *testStore) Save(ctx context.Context, scope string, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.saves++
	s.byScope[scope] = st
	return nil
}

func day(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

var (
	zeus = animals.Ref{ID: "m1", Name: "Zeus"}
	ares = animals.Ref{ID: "m2", Name: "Ares"}
	mia  = animals.Ref{ID: "f1", Name: "Mia"}
	ana  = animals.Ref{ID: "f2", Name: "Ana"}
)

func hydratedEngine(t *testing.T) (*Engine, *testStore) {
	t.Helper()
	store := newTestStore()
	e := NewEngine("dev-1", store, nil)
	require.NoError(t, e.Hydrate(context.Background()))
	return e, store
}

// -------------------------
// Tests
// -------------------------

func TestCreateWindow_WritesContiguousEntries(t *testing.T) {
	ctx := context.Background()
	start := day(t, "2025-01-30")

	for d := MinDuration; d <= MaxDuration; d++ {
		e, _ := hydratedEngine(t)

		w, err := e.CreateWindow(ctx, zeus, mia, start, d)
		require.NoError(t, err)
		require.Len(t, w.Entries, d)

		all := e.Entries(start, start.AddDays(10))
		require.Len(t, all, d)
		for i, it := range all {
			require.Equal(t, i, it.DayIndex)
			require.Equal(t, start.AddDays(i), it.Date)
			require.Equal(t, "f1", it.FemaleID)
			require.Equal(t, d, it.Duration)
			require.False(t, it.IsHistory)
		}
	}
}

func TestCreateWindow_RejectsDurationOutOfRange(t *testing.T) {
	e, _ := hydratedEngine(t)
	_, err := e.CreateWindow(context.Background(), zeus, mia, day(t, "2025-01-01"), 0)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.CreateWindow(context.Background(), zeus, mia, day(t, "2025-01-01"), 8)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestResizeWindow_LeavesExactlyNewDuration(t *testing.T) {
	ctx := context.Background()
	e, _ := hydratedEngine(t)
	start := day(t, "2025-03-10")

	_, err := e.CreateWindow(ctx, zeus, mia, start, 5)
	require.NoError(t, err)
	// celda ajena fuera del rango: no debe tocarse
	_, err = e.CreateWindow(ctx, zeus, ana, start.AddDays(6), 1)
	require.NoError(t, err)

	// se puede redimensionar desde cualquier día de la ventana
	w, err := e.ResizeWindow(ctx, EntryKey{MaleID: "m1", Date: start.AddDays(3)}, ResizeInput{Duration: 2})
	require.NoError(t, err)
	require.Equal(t, start, w.Start)
	require.Len(t, w.Entries, 2)

	got := e.Entries(start, start.AddDays(4))
	require.Len(t, got, 2)
	for _, it := range got {
		require.Equal(t, 2, it.Duration)
	}

	other, ok := e.Entry(EntryKey{MaleID: "m1", Date: start.AddDays(6)})
	require.True(t, ok)
	require.Equal(t, "f2", other.FemaleID)
}

func TestResizeWindow_ChangesFemale(t *testing.T) {
	ctx := context.Background()
	e, _ := hydratedEngine(t)
	start := day(t, "2025-03-10")

	_, err := e.CreateWindow(ctx, zeus, mia, start, 3)
	require.NoError(t, err)

	w, err := e.ResizeWindow(ctx, EntryKey{MaleID: "m1", Date: start}, ResizeInput{Duration: 4, Female: &ana})
	require.NoError(t, err)
	require.Equal(t, "f2", w.Female.ID)
	require.Len(t, e.Entries(start, start.AddDays(10)), 4)
}

func TestDeleteWindow_RemovesOnlyItsEntries(t *testing.T) {
	ctx := context.Background()
	e, _ := hydratedEngine(t)
	start := day(t, "2025-03-10")

	_, err := e.CreateWindow(ctx, zeus, mia, start, 3)
	require.NoError(t, err)
	_, err = e.CreateWindow(ctx, ares, mia, start, 3)
	require.NoError(t, err)
	_, err = e.RecordMatingCheck(ctx, "m1", "f1", start)
	require.NoError(t, err)

	w, err := e.DeleteWindow(ctx, EntryKey{MaleID: "m1", Date: start.AddDays(2)})
	require.NoError(t, err)
	require.Len(t, w.Entries, 3)

	left := e.Entries(start, start.AddDays(5))
	require.Len(t, left, 3)
	for _, it := range left {
		require.Equal(t, "m2", it.MaleID)
	}

	// el contador queda huérfano pero se conserva
	require.Equal(t, 1, e.MatingChecks("m1", "f1", start))

	_, err = e.DeleteWindow(ctx, EntryKey{MaleID: "m1", Date: start})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConvertWindowToHistory_IsWindowScoped(t *testing.T) {
	ctx := context.Background()
	e, _ := hydratedEngine(t)
	first := day(t, "2025-02-01")
	second := day(t, "2025-02-20")

	_, err := e.CreateWindow(ctx, zeus, mia, first, 2)
	require.NoError(t, err)
	_, err = e.CreateWindow(ctx, zeus, mia, second, 2)
	require.NoError(t, err)

	w, err := e.ConvertWindowToHistory(ctx, EntryKey{MaleID: "m1", Date: first.AddDays(1)}, "success")
	require.NoError(t, err)
	for _, it := range w.Entries {
		require.True(t, it.IsHistory)
		require.Equal(t, "success", it.Result)
	}

	// misma pareja, otra ventana: intacta
	for _, it := range e.Entries(second, second.AddDays(1)) {
		require.False(t, it.IsHistory)
		require.Empty(t, it.Result)
	}

	_, err = e.ResizeWindow(ctx, EntryKey{MaleID: "m1", Date: first}, ResizeInput{Duration: 3})
	require.ErrorIs(t, err, ErrBadState)
}

func TestConflicts_OnlyOtherRosterMalesActiveEntries(t *testing.T) {
	ctx := context.Background()
	e, _ := hydratedEngine(t)
	start := day(t, "2025-04-01")

	require.NoError(t, e.AddToRoster(ctx, zeus))
	require.NoError(t, e.AddToRoster(ctx, ares))

	_, err := e.CreateWindow(ctx, ares, mia, start.AddDays(1), 2)
	require.NoError(t, err)

	c := e.Conflicts("m1", "f1", start, 3)
	require.Len(t, c, 2)
	require.Equal(t, "m2", c[0].MaleID)

	require.Empty(t, e.Conflicts("m1", "f2", start, 3))
	require.Empty(t, e.Conflicts("m2", "f1", start, 3))

	_, err = e.ConvertWindowToHistory(ctx, EntryKey{MaleID: "m2", Date: start.AddDays(1)}, "")
	require.NoError(t, err)
	require.Empty(t, e.Conflicts("m1", "f1", start, 3))
}

func TestRecordMatingCheck_Accumulates(t *testing.T) {
	ctx := context.Background()
	e, _ := hydratedEngine(t)
	d := day(t, "2025-01-05")

	n, err := e.RecordMatingCheck(ctx, "m1", "f1", d)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = e.RecordMatingCheck(ctx, "m1", "f1", d)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Equal(t, 2, e.MatingChecks("m1", "f1", d))
	require.Equal(t, 2, e.MatingChecks("m1", "f1", d))
	require.Equal(t, 0, e.MatingChecks("m1", "f1", d.AddDays(1)))
}

func TestHydrationGuard_NoWritesBeforeLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	store.byScope["dev-1"] = State{
		Roster:          []animals.Ref{zeus},
		DefaultDuration: 5,
		Entries: []Entry{
			{MaleID: "m1", MaleName: "Zeus", FemaleID: "f1", FemaleName: "Mia", Date: day(t, "2025-01-01"), Duration: 1},
		},
	}

	e := NewEngine("dev-1", store, nil)
	// antes de hidratar: muta en memoria pero no escribe
	require.NoError(t, e.SetDefaultDuration(ctx, 2))
	require.Equal(t, 0, store.saves)
	require.Equal(t, 5, store.byScope["dev-1"].DefaultDuration)

	require.NoError(t, e.Hydrate(ctx))
	require.Equal(t, 5, e.DefaultDuration())
	require.Equal(t, []animals.Ref{zeus}, e.Roster())
	_, ok := e.Entry(EntryKey{MaleID: "m1", Date: day(t, "2025-01-01")})
	require.True(t, ok)

	require.NoError(t, e.SetDefaultDuration(ctx, 4))
	require.Equal(t, 1, store.saves)
	require.Equal(t, 4, store.byScope["dev-1"].DefaultDuration)
}

func TestHydrate_FailureKeepsGuardClosed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	store.loadErr = errors.New("disk")

	e := NewEngine("dev-1", store, nil)
	require.ErrorIs(t, e.Hydrate(ctx), ErrLocalStore)
	require.False(t, e.Hydrated())

	_, err := e.CreateWindow(ctx, zeus, mia, day(t, "2025-01-01"), 1)
	require.NoError(t, err)
	require.Equal(t, 0, store.saves)
}

func TestMutation_RestoresOnSaveFailure(t *testing.T) {
	ctx := context.Background()
	e, store := hydratedEngine(t)
	start := day(t, "2025-05-01")

	_, err := e.CreateWindow(ctx, zeus, mia, start, 2)
	require.NoError(t, err)

	store.failErr = errors.New("quota")
	_, err = e.ResizeWindow(ctx, EntryKey{MaleID: "m1", Date: start}, ResizeInput{Duration: 6})
	require.ErrorIs(t, err, ErrLocalStore)

	got := e.Entries(start, start.AddDays(10))
	require.Len(t, got, 2)

	_, err = e.RecordMatingCheck(ctx, "m1", "f1", start)
	require.ErrorIs(t, err, ErrLocalStore)
	require.Equal(t, 0, e.MatingChecks("m1", "f1", start))
}

func TestRoster_AddRemove(t *testing.T) {
	ctx := context.Background()
	e, _ := hydratedEngine(t)

	require.NoError(t, e.AddToRoster(ctx, zeus))
	require.NoError(t, e.AddToRoster(ctx, animals.Ref{ID: "m1", Name: "Zeus II"}))
	require.Len(t, e.Roster(), 1)
	require.Equal(t, "Zeus II", e.Roster()[0].Name)

	require.NoError(t, e.RemoveFromRoster(ctx, "m1"))
	require.Empty(t, e.Roster())
	require.ErrorIs(t, e.RemoveFromRoster(ctx, "m1"), ErrNotFound)
}

func TestView_RangeCoversMonth(t *testing.T) {
	ctx := context.Background()
	e, _ := hydratedEngine(t)

	require.ErrorIs(t, e.SetView(ctx, CalendarView{Year: 2024, Month: 13}), ErrInvalidInput)
	require.NoError(t, e.SetView(ctx, CalendarView{Year: 2024, Month: 2}))

	from, to := e.View().Range()
	require.Equal(t, day(t, "2024-02-01"), from)
	require.Equal(t, day(t, "2024-02-29"), to)
}

func TestManager_HydratesOncePerScope(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	m := NewManager(store, nil)

	a, err := m.Engine(ctx, "dev-1")
	require.NoError(t, err)
	b, err := m.Engine(ctx, "dev-1")
	require.NoError(t, err)
	require.Same(t, a, b)

	c, err := m.Engine(ctx, "dev-2")
	require.NoError(t, err)
	require.NotSame(t, a, c)

	_, err = m.Engine(ctx, " ")
	require.ErrorIs(t, err, ErrInvalidInput)
}

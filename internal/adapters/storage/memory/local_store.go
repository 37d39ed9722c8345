package memory

import (
	"context"
	"sync"

	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/domain/schedule"
)

// localStore guarda el estado del calendario por scope en memoria. Sirve
// para dev y tests; se pierde al reiniciar.
type localStore struct {
	mu      sync.RWMutex
	byScope map[string]schedule.State
}

func NewLocalStore() schedule.LocalStore {
	return &localStore{byScope: make(map[string]schedule.State)}
}

func (s *localStore) Load(ctx context.Context, scope string) (schedule.State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byScope[scope]
	if !ok {
		return schedule.State{}, false, nil
	}
	return cloneState(st), true, nil
}

func (s *localStore) Save(ctx context.Context, scope string, st schedule.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byScope[scope] = cloneState(st)
	return nil
}

func cloneState(st schedule.State) schedule.State {
	st.Roster = append([]animals.Ref(nil), st.Roster...)
	st.Entries = append([]schedule.Entry(nil), st.Entries...)
	st.Tally = append([]schedule.TallyCount(nil), st.Tally...)
	return st
}

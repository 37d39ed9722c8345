package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cattery-breeding/internal/platform/logger"
)

// Manager mantiene un Engine por scope (dispositivo u operador),
// hidratado una vez desde el LocalStore.
type Manager struct {
	mu      sync.Mutex
	store   LocalStore
	log     logger.Logger
	engines map[string]*Engine
}

func NewManager(store LocalStore, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		store:   store,
		log:     log,
		engines: map[string]*Engine{},
	}
}

// Engine devuelve el motor del scope, hidratándolo en el primer uso.
// Si la hidratación falla, el motor no queda cacheado.
func (m *Manager) Engine(ctx context.Context, scope string) (*Engine, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, fmt.Errorf("%w: scope required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.engines[scope]; ok {
		return e, nil
	}

	e := NewEngine(scope, m.store, m.log)
	if err := e.Hydrate(ctx); err != nil {
		return nil, err
	}
	m.engines[scope] = e
	return e, nil
}

// Package speculative implementa el patrón "aplicar local, confirmar remoto,
// compensar si falla" sobre una colección en memoria.
//
// La restauración es por snapshot: se copia la colección antes de mutarla y,
// si el commit remoto falla, se reemplaza entera por esa copia. Las
// mutaciones de una colección se serializan, así que el snapshot nunca
// contiene menos que lo que otro Run ya confirmó.
package speculative

import (
	"context"
	"sync"
)

// Collection es una lista local observable. mu protege la lista y se
// suelta durante el commit remoto para que el cambio optimista sea
// visible; wmu se sostiene de Apply a restore y ordena a los escritores.
type Collection[T any] struct {
	wmu   sync.Mutex
	mu    sync.RWMutex
	items []T
}

func NewCollection[T any](items []T) *Collection[T] {
	c := &Collection[T]{}
	c.items = clone(items)
	return c
}

// Snapshot devuelve una copia de la lista actual.
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.items)
}

// Replace reemplaza la lista completa (p.ej. tras un List remoto).
// Espera a que termine cualquier Run en curso.
func (c *Collection[T]) Replace(items []T) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = clone(items)
}

// Len devuelve la cantidad de elementos actuales.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Find devuelve el primer elemento que cumple match.
func (c *Collection[T]) Find(match func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if match(it) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Change describe una mutación especulativa.
type Change[T any, R any] struct {
	// Apply muta la lista local antes del commit. Recibe una copia.
	Apply func(items []T) []T

	// Commit es la llamada remota.
	Commit func(ctx context.Context) (R, error)

	// Settle (opcional) ajusta la lista con el resultado remoto,
	// p.ej. reemplazar un placeholder por el registro con id real.
	Settle func(items []T, res R) []T

	// OnRollback (opcional) se invoca después de restaurar el snapshot.
	OnRollback func(err error)
}

// Run aplica ch sobre c. Si Commit falla, c vuelve al snapshot previo y se
// devuelve el error del commit sin envolver. Commit no debe llamar a Run
// ni a Replace sobre la misma colección.
func Run[T any, R any](ctx context.Context, c *Collection[T], ch Change[T, R]) (R, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.mu.Lock()
	before := clone(c.items)
	if ch.Apply != nil {
		c.items = ch.Apply(clone(c.items))
	}
	c.mu.Unlock()

	res, err := ch.Commit(ctx)
	if err != nil {
		c.mu.Lock()
		c.items = before
		c.mu.Unlock()
		if ch.OnRollback != nil {
			ch.OnRollback(err)
		}
		return res, err
	}

	if ch.Settle != nil {
		c.mu.Lock()
		c.items = ch.Settle(clone(c.items), res)
		c.mu.Unlock()
	}
	return res, nil
}

func clone[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

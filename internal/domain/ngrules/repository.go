package ngrules

import "context"

// Repository es el gateway remoto de reglas NG.
type Repository interface {
	List(ctx context.Context, activeOnly bool) ([]Rule, error)
	Create(ctx context.Context, r Rule) (Rule, error)
	Update(ctx context.Context, id string, p Patch) (Rule, error)
	Delete(ctx context.Context, id string) error
}

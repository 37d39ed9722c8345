package animals

import "context"

type Repository interface {
	Create(ctx context.Context, a Animal) error
	GetByID(ctx context.Context, id string) (Animal, error)
	List(ctx context.Context, filter ListFilter) ([]Animal, error)
}

type ListFilter struct {
	Gender      Gender // vacío = todos
	InHouseOnly bool
	MotherID    string
}

// Matches aplica el filtro en memoria (repos sin query propia).
func (f ListFilter) Matches(a Animal) bool {
	if f.Gender != "" && a.Gender != f.Gender {
		return false
	}
	if f.InHouseOnly && !a.IsInHouse {
		return false
	}
	if f.MotherID != "" && a.MotherID != f.MotherID {
		return false
	}
	return true
}

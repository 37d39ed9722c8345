package lifecycle

import (
	"context"
	"time"

	"cattery-breeding/internal/domain/animals"
)

// Puertos del gateway de persistencia remota. Son autoritativos en el
// servidor, a diferencia del calendario local.

type PregnancyCheckRepository interface {
	List(ctx context.Context) ([]PregnancyCheck, error)
	Create(ctx context.Context, c PregnancyCheck) (PregnancyCheck, error)
	Delete(ctx context.Context, id string) error
}

type BirthPlanRepository interface {
	List(ctx context.Context) ([]BirthPlan, error)
	Create(ctx context.Context, p BirthPlan) (BirthPlan, error)
	Update(ctx context.Context, id string, patch BirthPlanPatch) (BirthPlan, error)
	Delete(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, at time.Time) (BirthPlan, error)
}

type DispositionRepository interface {
	Create(ctx context.Context, d KittenDisposition) (KittenDisposition, error)
	ListByBirthPlan(ctx context.Context, birthRecordID string) ([]KittenDisposition, error)
}

// AnimalGateway: lectura del registro y alta de gatitos.
type AnimalGateway interface {
	GetByID(ctx context.Context, id string) (animals.Animal, error)
	List(ctx context.Context, f animals.ListFilter) ([]animals.Animal, error)
	Create(ctx context.Context, in animals.CreateInput) (animals.Animal, error)
}

// Gateway agrupa los puertos que usa la máquina de estados.
type Gateway struct {
	Checks       PregnancyCheckRepository
	Plans        BirthPlanRepository
	Dispositions DispositionRepository
	Animals      AnimalGateway
}

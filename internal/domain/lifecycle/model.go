package lifecycle

import (
	"time"

	"cattery-breeding/internal/domain/animals"

	"cloud.google.com/go/civil"
)

// Plazos del ciclo, en días.
const (
	PregnancyCheckAfterDays = 21
	BirthAfterCheckDays     = 45
)

type PregnancyCheck struct {
	ID       string
	MotherID string
	FatherID string

	MatingDate *civil.Date
	CheckDate  civil.Date

	Status PregnancyStatus
	Notes  string

	CreatedAt time.Time
}

type BirthPlan struct {
	ID       string
	MotherID string
	FatherID string

	MatingDate        *civil.Date
	ExpectedBirthDate civil.Date
	ActualBirthDate   *civil.Date

	Status          BirthStatus
	ExpectedKittens *int
	ActualKittens   *int
	Notes           string

	// CompletedAt cierra la crianza; irreversible.
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Raising: nacido y sin cerrar.
func (p BirthPlan) Raising() bool {
	return p.Status == BirthBorn && p.CompletedAt == nil
}

// BirthPlanPatch es una actualización parcial; nil = no tocar.
type BirthPlanPatch struct {
	Status          *BirthStatus
	ActualBirthDate *civil.Date
	ActualKittens   *int
	ExpectedKittens *int
	Notes           *string
}

// Apply devuelve b con los campos del patch aplicados.
func (p BirthPlanPatch) Apply(b BirthPlan) BirthPlan {
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.ActualBirthDate != nil {
		d := *p.ActualBirthDate
		b.ActualBirthDate = &d
	}
	if p.ActualKittens != nil {
		n := *p.ActualKittens
		b.ActualKittens = &n
	}
	if p.ExpectedKittens != nil {
		n := *p.ExpectedKittens
		b.ExpectedKittens = &n
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
	return b
}

type SaleInfo struct {
	Buyer    string
	Price    *int64
	SaleDate *civil.Date
	Notes    string
}

// KittenDisposition registra el destino de un gatito. Solo se llenan los
// campos de su Disposition.
type KittenDisposition struct {
	ID            string
	BirthRecordID string
	KittenID      string

	Name   string
	Gender animals.Gender

	Disposition Disposition

	TrainingStartDate *civil.Date
	Sale              *SaleInfo
	DeathDate         *civil.Date
	DeathReason       string

	Notes     string
	CreatedAt time.Time
}

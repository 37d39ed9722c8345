package animals

import (
	"time"

	"cloud.google.com/go/civil"
)

// Gender del animal.
// @Enum MALE, FEMALE
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Animal es la vista del registro de animales que usa el motor de cría.
// El registro es externo: desde acá solo se lee, salvo al dar de alta gatitos.
type Animal struct {
	ID   string
	Name string

	Gender    Gender
	BirthDate *civil.Date // puede faltar => edad 0

	Tags      []string
	IsInHouse bool

	MotherID string
	FatherID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAnyTag indica si el animal tiene al menos uno de los tags dados.
func (a Animal) HasAnyTag(tags []string) bool {
	if len(a.Tags) == 0 || len(tags) == 0 {
		return false
	}
	own := make(map[string]struct{}, len(a.Tags))
	for _, t := range a.Tags {
		own[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := own[t]; ok {
			return true
		}
	}
	return false
}

// Ref es la referencia mínima (id + nombre) que guardan el calendario y las notas.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (a Animal) Ref() Ref {
	return Ref{ID: a.ID, Name: a.Name}
}

package animals

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("animal not found")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Today devuelve la fecha civil actual según el reloj del servicio.
func (s *Service) Today() civil.Date {
	return civil.DateOf(s.now())
}

type CreateInput struct {
	Name      string
	Gender    Gender
	BirthDate *civil.Date
	Tags      []string
	IsInHouse bool
	MotherID  string
	FatherID  string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Animal, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Animal{}, ErrInvalidInput
	}
	if !in.Gender.Valid() {
		return Animal{}, ErrInvalidInput
	}

	now := s.now()
	a := Animal{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Gender:    in.Gender,
		BirthDate: in.BirthDate,
		Tags:      normalizeTags(in.Tags),
		IsInHouse: in.IsInHouse,
		MotherID:  strings.TrimSpace(in.MotherID),
		FatherID:  strings.TrimSpace(in.FatherID),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return Animal{}, err
	}
	return a, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Animal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Animal{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Animal, error) {
	return s.repo.List(ctx, filter)
}

// EligibleSires lista los machos que pueden entrar al roster hoy.
func (s *Service) EligibleSires(ctx context.Context) ([]Animal, error) {
	items, err := s.repo.List(ctx, ListFilter{Gender: GenderMale, InHouseOnly: true})
	if err != nil {
		return nil, err
	}
	today := s.Today()
	return filterByName(items, func(a Animal) bool { return SireEligibility(a, today).Eligible }), nil
}

// AvailableDams lista las hembras disponibles para una nueva ventana.
func (s *Service) AvailableDams(ctx context.Context) ([]Animal, error) {
	items, err := s.repo.List(ctx, ListFilter{Gender: GenderFemale, InHouseOnly: true})
	if err != nil {
		return nil, err
	}
	today := s.Today()
	return filterByName(items, func(a Animal) bool { return DamEligibility(a, today).Eligible }), nil
}

func filterByName(items []Animal, keep func(Animal) bool) []Animal {
	out := make([]Animal, 0, len(items))
	for _, a := range items {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// normalizeTags recorta y deduplica conservando el orden.
func normalizeTags(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, raw := range in {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Package registry habla con el registro de animales remoto. El registro es
// dueño de los animales; el motor de cría solo lee y da de alta gatitos.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/platform/httpclient"

	"cloud.google.com/go/civil"
)

var ErrUpstream = errors.New("animal registry error")

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Repo implementa animals.Repository sobre el registro remoto.
type Repo struct {
	http *httpclient.Client
}

func New(cfg Config) (*Repo, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("registry base url required")
	}
	hc, err := httpclient.New(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	hc.WithHeader("X-Api-Key", strings.TrimSpace(cfg.APIKey))
	return &Repo{http: hc}, nil
}

// animalDTO es el formato del registro.
type animalDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Gender    string    `json:"gender"`
	BirthDate string    `json:"birth_date,omitempty"`
	Tags      []string  `json:"tags"`
	IsInHouse bool      `json:"is_in_house"`
	MotherID  string    `json:"mother_id,omitempty"`
	FatherID  string    `json:"father_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Repo) Create(ctx context.Context, a animals.Animal) error {
	if err := r.http.DoJSON(ctx, http.MethodPost, "/animals", nil, toDTO(a), nil); err != nil {
		return fmt.Errorf("%w: create: %v", ErrUpstream, err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (animals.Animal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return animals.Animal{}, animals.ErrNotFound
	}

	var out animalDTO
	err := r.http.DoJSON(ctx, http.MethodGet, "/animals/"+url.PathEscape(id), nil, nil, &out)
	if httpclient.StatusOf(err) == http.StatusNotFound {
		return animals.Animal{}, animals.ErrNotFound
	}
	if err != nil {
		return animals.Animal{}, fmt.Errorf("%w: get %s: %v", ErrUpstream, id, err)
	}
	return fromDTO(out)
}

func (r *Repo) List(ctx context.Context, filter animals.ListFilter) ([]animals.Animal, error) {
	q := url.Values{}
	if filter.Gender != "" {
		q.Set("gender", string(filter.Gender))
	}
	if filter.InHouseOnly {
		q.Set("in_house", "true")
	}
	if filter.MotherID != "" {
		q.Set("mother_id", filter.MotherID)
	}
	path := "/animals"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []animalDTO
	if err := r.http.DoJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrUpstream, err)
	}

	items := make([]animals.Animal, 0, len(out))
	for _, dto := range out {
		a, err := fromDTO(dto)
		if err != nil {
			return nil, err
		}
		// el registro puede ignorar filtros que no conoce
		if filter.Matches(a) {
			items = append(items, a)
		}
	}
	return items, nil
}

func toDTO(a animals.Animal) animalDTO {
	dto := animalDTO{
		ID:        a.ID,
		Name:      a.Name,
		Gender:    string(a.Gender),
		Tags:      a.Tags,
		IsInHouse: a.IsInHouse,
		MotherID:  a.MotherID,
		FatherID:  a.FatherID,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.BirthDate != nil {
		dto.BirthDate = a.BirthDate.String()
	}
	return dto
}

func fromDTO(dto animalDTO) (animals.Animal, error) {
	a := animals.Animal{
		ID:        dto.ID,
		Name:      dto.Name,
		Gender:    animals.Gender(strings.ToUpper(strings.TrimSpace(dto.Gender))),
		Tags:      dto.Tags,
		IsInHouse: dto.IsInHouse,
		MotherID:  dto.MotherID,
		FatherID:  dto.FatherID,
		CreatedAt: dto.CreatedAt,
		UpdatedAt: dto.UpdatedAt,
	}
	if raw := strings.TrimSpace(dto.BirthDate); raw != "" {
		// acepta fecha sola o timestamp completo
		if len(raw) > 10 {
			raw = raw[:10]
		}
		d, err := civil.ParseDate(raw)
		if err != nil {
			return animals.Animal{}, fmt.Errorf("%w: animal %s birth_date %q", ErrUpstream, dto.ID, dto.BirthDate)
		}
		a.BirthDate = &d
	}
	return a, nil
}

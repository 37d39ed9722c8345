package ngrules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/platform/logger"
	"cattery-breeding/internal/platform/metrics"
	"cattery-breeding/internal/platform/speculative"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("rule not found")
	ErrRemote       = errors.New("remote rule store failed")
)

// AnimalLookup evita importar el servicio concreto de animales.
type AnimalLookup interface {
	GetByID(ctx context.Context, id string) (animals.Animal, error)
}

// Service mantiene la lista local de reglas y la sincroniza con el
// gateway remoto de forma optimista: el cambio se ve al instante y se
// revierte si el remoto falla.
type Service struct {
	repo    Repository
	animals AnimalLookup
	log     logger.Logger
	metrics *metrics.Recorder
	now     func() time.Time

	rules  *speculative.Collection[Rule]
	loadMu sync.Mutex
	loaded bool
}

func NewService(repo Repository, lookup AnimalLookup, log logger.Logger, rec *metrics.Recorder) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:    repo,
		animals: lookup,
		log:     log.With(map[string]any{"component": "ngrules"}),
		metrics: rec,
		now:     time.Now,
		rules:   speculative.NewCollection[Rule](nil),
	}
}

// Refresh recarga la lista local desde el remoto.
func (s *Service) Refresh(ctx context.Context) error {
	items, err := s.repo.List(ctx, false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemote, err)
	}
	s.rules.Replace(items)

	s.loadMu.Lock()
	s.loaded = true
	s.loadMu.Unlock()
	return nil
}

func (s *Service) ensureLoaded(ctx context.Context) error {
	s.loadMu.Lock()
	loaded := s.loaded
	s.loadMu.Unlock()
	if loaded {
		return nil
	}
	return s.Refresh(ctx)
}

// List devuelve la vista local, en el orden del remoto.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Rule, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	items := s.rules.Snapshot()
	if !activeOnly {
		return items, nil
	}
	out := make([]Rule, 0, len(items))
	for _, r := range items {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

type CreateInput struct {
	Name             string
	Type             RuleType
	Active           bool
	Description      string
	MaleConditions   []string
	FemaleConditions []string
	MaleNames        []string
	FemaleNames      []string
	GenerationLimit  *int
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Rule, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return Rule{}, err
	}

	now := s.now().UTC()
	r, err := normalize(Rule{
		ID:               uuid.NewString(),
		Name:             in.Name,
		Type:             in.Type,
		Active:           in.Active,
		Description:      strings.TrimSpace(in.Description),
		MaleConditions:   in.MaleConditions,
		FemaleConditions: in.FemaleConditions,
		MaleNames:        in.MaleNames,
		FemaleNames:      in.FemaleNames,
		GenerationLimit:  in.GenerationLimit,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return Rule{}, err
	}

	saved, err := speculative.Run(ctx, s.rules, speculative.Change[Rule, Rule]{
		Apply: func(items []Rule) []Rule {
			return append(items, r)
		},
		Commit: func(ctx context.Context) (Rule, error) {
			return s.repo.Create(ctx, r)
		},
		Settle: func(items []Rule, saved Rule) []Rule {
			return replaceByID(items, r.ID, saved)
		},
		OnRollback: s.rolledBack("create", r.ID),
	})
	return saved, wrapRemote(err)
}

func (s *Service) Update(ctx context.Context, id string, p Patch) (Rule, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Rule{}, ErrNotFound
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return Rule{}, err
	}

	current, err := s.findRule(ctx, id)
	if err != nil {
		return Rule{}, err
	}
	next, err := normalize(p.Apply(current))
	if err != nil {
		return Rule{}, err
	}
	next.UpdatedAt = s.now().UTC()

	saved, err := speculative.Run(ctx, s.rules, speculative.Change[Rule, Rule]{
		Apply: func(items []Rule) []Rule {
			return replaceByID(items, id, next)
		},
		Commit: func(ctx context.Context) (Rule, error) {
			return s.repo.Update(ctx, id, p)
		},
		Settle: func(items []Rule, saved Rule) []Rule {
			return replaceByID(items, id, saved)
		},
		OnRollback: s.rolledBack("update", id),
	})
	return saved, wrapRemote(err)
}

// SetActive activa o desactiva una regla.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (Rule, error) {
	return s.Update(ctx, id, Patch{Active: &active})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNotFound
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	if _, err := s.findRule(ctx, id); err != nil {
		return err
	}

	_, err := speculative.Run(ctx, s.rules, speculative.Change[Rule, struct{}]{
		Apply: func(items []Rule) []Rule {
			out := items[:0]
			for _, r := range items {
				if r.ID != id {
					out = append(out, r)
				}
			}
			return out
		},
		Commit: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.Delete(ctx, id)
		},
		OnRollback: s.rolledBack("delete", id),
	})
	return wrapRemote(err)
}

// EvaluatePair evalúa un par ya resuelto contra las reglas activas locales.
func (s *Service) EvaluatePair(ctx context.Context, male, female animals.Animal) (Verdict, error) {
	active, err := s.List(ctx, true)
	if err != nil {
		return Verdict{}, err
	}
	v := Evaluate(male, female, active)

	outcome := string(OutcomeClear)
	if v.Flagged {
		outcome = string(OutcomeFlagged)
		s.log.Debug("pairing flagged", map[string]any{
			"male_id":   male.ID,
			"female_id": female.ID,
			"rule_id":   v.Matched.ID,
		})
	}
	s.metrics.PairingCheck(outcome)
	return v, nil
}

// EvaluateIDs resuelve ambos animales y evalúa el par.
func (s *Service) EvaluateIDs(ctx context.Context, maleID, femaleID string) (Verdict, animals.Animal, animals.Animal, error) {
	male, err := s.animals.GetByID(ctx, strings.TrimSpace(maleID))
	if err != nil {
		return Verdict{}, animals.Animal{}, animals.Animal{}, err
	}
	female, err := s.animals.GetByID(ctx, strings.TrimSpace(femaleID))
	if err != nil {
		return Verdict{}, animals.Animal{}, animals.Animal{}, err
	}
	if male.Gender != animals.GenderMale || female.Gender != animals.GenderFemale {
		return Verdict{}, animals.Animal{}, animals.Animal{}, fmt.Errorf("%w: expected a male and a female", ErrInvalidInput)
	}
	v, err := s.EvaluatePair(ctx, male, female)
	return v, male, female, err
}

// findRule busca en la vista local y, si no está, recarga una vez:
// otra instancia pudo haberla creado.
func (s *Service) findRule(ctx context.Context, id string) (Rule, error) {
	match := func(r Rule) bool { return r.ID == id }
	if r, ok := s.rules.Find(match); ok {
		return r, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return Rule{}, err
	}
	r, ok := s.rules.Find(match)
	if !ok {
		return Rule{}, ErrNotFound
	}
	return r, nil
}

func (s *Service) rolledBack(op, id string) func(error) {
	return func(err error) {
		s.metrics.Rollback("ng_rules")
		s.log.Warn("rule change rolled back", map[string]any{
			"op":      op,
			"rule_id": id,
			"error":   err,
		})
	}
}

// wrapRemote mantiene ErrNotFound del remoto y envuelve el resto.
func wrapRemote(err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrRemote, err)
}

func replaceByID(items []Rule, id string, r Rule) []Rule {
	for i := range items {
		if items[i].ID == id {
			items[i] = r
			return items
		}
	}
	return append(items, r)
}

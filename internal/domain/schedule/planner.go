package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/domain/gaps"
	"cattery-breeding/internal/domain/ngrules"
	"cattery-breeding/internal/platform/logger"

	"cloud.google.com/go/civil"
)

// ErrBlocked: la propuesta tiene bloqueos y no se pidió override
// (o alguno no admite override).
var ErrBlocked = errors.New("pairing blocked")

// AnimalLookup evita importar el servicio concreto de animales.
type AnimalLookup interface {
	GetByID(ctx context.Context, id string) (animals.Animal, error)
}

// PairChecker evalúa un par contra las reglas NG activas.
type PairChecker interface {
	EvaluatePair(ctx context.Context, male, female animals.Animal) (ngrules.Verdict, error)
}

// BlockerKind clasifica por qué no se puede crear la ventana sin confirmación.
type BlockerKind string

const (
	BlockerNotInRoster    BlockerKind = "not_in_roster"
	BlockerSireIneligible BlockerKind = "sire_ineligible"
	BlockerDamUnavailable BlockerKind = "dam_unavailable"
	BlockerNGRule         BlockerKind = "ng_rule"
	BlockerDoubleBooking  BlockerKind = "double_booking"
)

type Blocker struct {
	Kind    BlockerKind `json:"kind"`
	Message string      `json:"message"`
	// Overridable: el operador puede confirmar y seguir igual.
	Overridable bool `json:"overridable"`
}

// Proposal es el resultado de los chequeos previos a crear una ventana.
type Proposal struct {
	Male      animals.Ref     `json:"male"`
	Female    animals.Ref     `json:"female"`
	Start     civil.Date      `json:"start" swaggertype:"string"`
	Duration  int             `json:"duration"`
	Blockers  []Blocker       `json:"blockers"`
	Verdict   ngrules.Verdict `json:"-"`
	Conflicts []Entry         `json:"conflicts"`
	Gaps      []gaps.Gap      `json:"gaps"`
}

// Allowed indica si la ventana puede crearse con (o sin) override.
func (p Proposal) Allowed(override bool) bool {
	for _, b := range p.Blockers {
		if !b.Overridable || !override {
			return false
		}
	}
	return true
}

type PlanInput struct {
	MaleID   string
	FemaleID string
	Start    civil.Date
	// Duration 0 => duración por defecto del motor.
	Duration int
}

// Planner hace, en orden, los chequeos que el motor no hace: roster y
// elegibilidad del macho, disponibilidad de la hembra, reglas NG y doble
// reserva de la hembra con otros machos.
type Planner struct {
	animals AnimalLookup
	rules   PairChecker
	log     logger.Logger
	now     func() time.Time
}

func NewPlanner(lookup AnimalLookup, rules PairChecker, log logger.Logger) *Planner {
	if log == nil {
		log = logger.Nop()
	}
	return &Planner{
		animals: lookup,
		rules:   rules,
		log:     log.With(map[string]any{"component": "planner"}),
		now:     time.Now,
	}
}

func (p *Planner) Plan(ctx context.Context, eng *Engine, in PlanInput) (Proposal, error) {
	if !in.Start.IsValid() {
		return Proposal{}, fmt.Errorf("%w: invalid start date", ErrInvalidInput)
	}
	duration := in.Duration
	if duration == 0 {
		duration = eng.DefaultDuration()
	}
	if err := checkDuration(duration); err != nil {
		return Proposal{}, err
	}

	male, err := p.animals.GetByID(ctx, strings.TrimSpace(in.MaleID))
	if err != nil {
		return Proposal{}, err
	}
	female, err := p.animals.GetByID(ctx, strings.TrimSpace(in.FemaleID))
	if err != nil {
		return Proposal{}, err
	}

	today := civil.DateOf(p.now())
	prop := Proposal{
		Male:      male.Ref(),
		Female:    female.Ref(),
		Start:     in.Start,
		Duration:  duration,
		Blockers:  make([]Blocker, 0),
		Conflicts: make([]Entry, 0),
		Gaps:      make([]gaps.Gap, 0),
	}

	if !eng.InRoster(male.ID) {
		prop.Blockers = append(prop.Blockers, Blocker{Kind: BlockerNotInRoster, Message: male.Name + " is not in the roster"})
	}
	if sire := animals.SireEligibility(male, today); !sire.Eligible {
		prop.Blockers = append(prop.Blockers, Blocker{Kind: BlockerSireIneligible, Message: describe(sire)})
	}
	dam := animals.DamEligibility(female, today)
	if !dam.Eligible {
		prop.Blockers = append(prop.Blockers, Blocker{Kind: BlockerDamUnavailable, Message: describe(dam)})
	}
	for _, c := range dam.Gaps() {
		if c == animals.CheckPostpartumRest {
			prop.Gaps = append(prop.Gaps, gaps.PostpartumRest)
		}
	}

	// Las reglas solo tienen sentido para un par macho/hembra.
	if male.Gender == animals.GenderMale && female.Gender == animals.GenderFemale {
		v, err := p.rules.EvaluatePair(ctx, male, female)
		if err != nil {
			return Proposal{}, err
		}
		prop.Verdict = v
		if v.Flagged {
			prop.Blockers = append(prop.Blockers, Blocker{
				Kind:        BlockerNGRule,
				Message:     fmt.Sprintf("NG rule %q: %s", v.Matched.Name, v.Reason),
				Overridable: true,
			})
		}
		if len(v.Gaps) > 0 {
			prop.Gaps = append(prop.Gaps, gaps.GenerationLimit)
		}
	}

	prop.Conflicts = eng.Conflicts(male.ID, female.ID, in.Start, duration)
	if len(prop.Conflicts) > 0 {
		prop.Blockers = append(prop.Blockers, Blocker{
			Kind:        BlockerDoubleBooking,
			Message:     fmt.Sprintf("%s is already scheduled with %s on %s", female.Name, prop.Conflicts[0].MaleName, prop.Conflicts[0].Date),
			Overridable: true,
		})
	}

	return prop, nil
}

// Schedule planifica y, si está permitido, crea la ventana. Con bloqueos
// devuelve la propuesta junto a ErrBlocked para que el operador decida.
func (p *Planner) Schedule(ctx context.Context, eng *Engine, in PlanInput, override bool) (Window, Proposal, error) {
	prop, err := p.Plan(ctx, eng, in)
	if err != nil {
		return Window{}, Proposal{}, err
	}
	if !prop.Allowed(override) {
		return Window{}, prop, ErrBlocked
	}

	w, err := eng.CreateWindow(ctx, prop.Male, prop.Female, prop.Start, prop.Duration)
	if err != nil {
		return Window{}, prop, err
	}
	if len(prop.Blockers) > 0 {
		p.log.Info("window created over warnings", map[string]any{
			"scope":     eng.Scope(),
			"male_id":   prop.Male.ID,
			"female_id": prop.Female.ID,
			"start":     prop.Start.String(),
			"blockers":  len(prop.Blockers),
		})
	}
	return w, prop, nil
}

// Reassign cambia duración y/o hembra de una ventana existente, con los
// mismos chequeos que una ventana nueva cuando cambia la hembra.
func (p *Planner) Reassign(ctx context.Context, eng *Engine, key EntryKey, duration int, femaleID string, override bool) (Window, Proposal, error) {
	cur, ok := eng.Entry(key)
	if !ok {
		return Window{}, Proposal{}, ErrNotFound
	}
	if duration == 0 {
		duration = cur.Duration
	}
	femaleID = strings.TrimSpace(femaleID)
	if femaleID == "" || femaleID == cur.FemaleID {
		w, err := eng.ResizeWindow(ctx, key, ResizeInput{Duration: duration})
		return w, Proposal{}, err
	}

	prop, err := p.Plan(ctx, eng, PlanInput{MaleID: cur.MaleID, FemaleID: femaleID, Start: cur.WindowStart(), Duration: duration})
	if err != nil {
		return Window{}, Proposal{}, err
	}
	if !prop.Allowed(override) {
		return Window{}, prop, ErrBlocked
	}
	female := prop.Female
	w, err := eng.ResizeWindow(ctx, key, ResizeInput{Duration: prop.Duration, Female: &female})
	return w, prop, err
}

// EnlistSire agrega un macho al roster si cumple el gate de roster.
func (p *Planner) EnlistSire(ctx context.Context, eng *Engine, maleID string) (animals.Ref, error) {
	male, err := p.animals.GetByID(ctx, strings.TrimSpace(maleID))
	if err != nil {
		return animals.Ref{}, err
	}
	if e := animals.SireEligibility(male, civil.DateOf(p.now())); !e.Eligible {
		return animals.Ref{}, fmt.Errorf("%w: %s", ErrInvalidInput, describe(e))
	}
	if err := eng.AddToRoster(ctx, male.Ref()); err != nil {
		return animals.Ref{}, err
	}
	return male.Ref(), nil
}

func describe(e animals.Eligibility) string {
	parts := make([]string, 0)
	for _, c := range e.Failed() {
		if c.Detail != "" {
			parts = append(parts, c.Detail)
		} else {
			parts = append(parts, string(c.Check))
		}
	}
	return strings.Join(parts, "; ")
}

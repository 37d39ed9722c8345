package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/domain/gaps"
	"cattery-breeding/internal/domain/schedule"
	"cattery-breeding/internal/platform/logger"
	"cattery-breeding/internal/platform/metrics"
	"cattery-breeding/internal/platform/speculative"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrBadState     = errors.New("invalid state")
	ErrRemote       = errors.New("remote persistence failed")

	// ErrCleanupPending: el BirthPlan quedó creado pero el chequeo de
	// preñez no se pudo borrar. El operador recarga (Refresh) y lo
	// descarta con DenyPregnancy.
	ErrCleanupPending = errors.New("pregnancy check cleanup pending")

	// ErrDuplicateDisposition lo devuelven los repos cuando el gatito ya
	// tiene destino en ese plan.
	ErrDuplicateDisposition = errors.New("kitten already has a disposition")
)

// Calendar es la parte del motor de calendario que usa el resultado de una ventana.
type Calendar interface {
	Entry(key schedule.EntryKey) (schedule.Entry, bool)
	ConvertWindowToHistory(ctx context.Context, key schedule.EntryKey, result string) (schedule.Window, error)
}

// Service es la máquina de estados del ciclo de cría. Las listas locales
// de chequeos y planes se actualizan antes de la llamada remota y vuelven
// a la copia previa si esa llamada falla.
type Service struct {
	gw      Gateway
	log     logger.Logger
	metrics *metrics.Recorder
	now     func() time.Time

	checks *speculative.Collection[PregnancyCheck]
	plans  *speculative.Collection[BirthPlan]

	loadMu sync.Mutex
	loaded bool
}

func NewService(gw Gateway, log logger.Logger, rec *metrics.Recorder) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		gw:      gw,
		log:     log.With(map[string]any{"component": "lifecycle"}),
		metrics: rec,
		now:     time.Now,
		checks:  speculative.NewCollection[PregnancyCheck](nil),
		plans:   speculative.NewCollection[BirthPlan](nil),
	}
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now())
}

// Refresh recarga chequeos y planes desde el remoto.
func (s *Service) Refresh(ctx context.Context) error {
	checks, err := s.gw.Checks.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: list pregnancy checks: %v", ErrRemote, err)
	}
	plans, err := s.gw.Plans.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: list birth plans: %v", ErrRemote, err)
	}
	s.checks.Replace(checks)
	s.plans.Replace(plans)

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

// -------------------------
// Resultado de la ventana
// -------------------------

type OutcomeResult struct {
	Window schedule.Window
	// Check solo con éxito.
	Check *PregnancyCheck
}

// RecordOutcome cierra una ventana en su último día. Con éxito crea
// primero el chequeo de preñez y después pasa la ventana a historial;
// si el chequeo falla la ventana no cambia, y si falla el paso a
// historial el chequeo recién creado se borra.
func (s *Service) RecordOutcome(ctx context.Context, cal Calendar, key schedule.EntryKey, outcome Outcome) (OutcomeResult, error) {
	if !outcome.Valid() {
		return OutcomeResult{}, fmt.Errorf("%w: outcome must be success or failure", ErrInvalidInput)
	}

	entry, ok := cal.Entry(key)
	if !ok {
		return OutcomeResult{}, ErrNotFound
	}
	if entry.IsHistory {
		return OutcomeResult{}, fmt.Errorf("%w: window already closed", ErrBadState)
	}
	if !entry.IsLastDay() {
		return OutcomeResult{}, fmt.Errorf("%w: outcome is recorded on the last day of the window", ErrBadState)
	}

	var (
		res    OutcomeResult
		opened bool
	)
	if outcome == OutcomeSuccess {
		in := OpenCheckInput{
			MotherID:   entry.FemaleID,
			FatherID:   entry.MaleID,
			SireName:   entry.MaleName,
			MatingDate: entry.WindowStart(),
		}
		c, found, err := s.suspectedCheckFor(ctx, in)
		if err != nil {
			return OutcomeResult{}, err
		}
		if !found {
			if c, err = s.OpenPregnancyCheck(ctx, in); err != nil {
				return OutcomeResult{}, err
			}
			opened = true
		}
		res.Check = &c
	}

	w, err := cal.ConvertWindowToHistory(ctx, key, string(outcome))
	s.metrics.Transition("window_"+string(outcome), err)
	if err != nil {
		s.log.Warn("window not moved to history", map[string]any{
			"male_id": key.MaleID,
			"date":    key.Date.String(),
			"error":   err,
		})
		if opened {
			if derr := s.removeCheck(ctx, res.Check.ID, "outcome_compensation"); derr != nil {
				// Queda el chequeo; el reintento lo reutiliza.
				s.log.Error("pregnancy check left after failed outcome", map[string]any{
					"check_id": res.Check.ID,
					"error":    derr,
				})
			}
		}
		return OutcomeResult{}, err
	}
	res.Window = w
	return res, nil
}

// suspectedCheckFor busca un chequeo SUSPECTED de la misma monta.
func (s *Service) suspectedCheckFor(ctx context.Context, in OpenCheckInput) (PregnancyCheck, bool, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return PregnancyCheck{}, false, err
	}
	c, ok := s.checks.Find(func(c PregnancyCheck) bool {
		return c.Status == PregnancySuspected &&
			c.MotherID == in.MotherID &&
			c.FatherID == in.FatherID &&
			c.MatingDate != nil && *c.MatingDate == in.MatingDate
	})
	return c, ok, nil
}

// -------------------------
// Chequeo de preñez
// -------------------------

type OpenCheckInput struct {
	MotherID   string
	FatherID   string
	SireName   string
	MatingDate civil.Date
	Notes      string
}

// OpenPregnancyCheck crea un chequeo SUSPECTED a 21 días de la monta.
func (s *Service) OpenPregnancyCheck(ctx context.Context, in OpenCheckInput) (PregnancyCheck, error) {
	if strings.TrimSpace(in.MotherID) == "" || !in.MatingDate.IsValid() {
		return PregnancyCheck{}, fmt.Errorf("%w: mother and mating date required", ErrInvalidInput)
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return PregnancyCheck{}, err
	}

	mating := in.MatingDate
	notes := strings.TrimSpace(in.Notes)
	if sire := strings.TrimSpace(in.SireName); sire != "" {
		notes = strings.TrimSpace("Sire: " + sire + "\n" + notes)
	}

	c := PregnancyCheck{
		ID:         uuid.NewString(),
		MotherID:   strings.TrimSpace(in.MotherID),
		FatherID:   strings.TrimSpace(in.FatherID),
		MatingDate: &mating,
		CheckDate:  mating.AddDays(PregnancyCheckAfterDays),
		Status:     PregnancySuspected,
		Notes:      notes,
		CreatedAt:  s.now().UTC(),
	}

	saved, err := speculative.Run(ctx, s.checks, speculative.Change[PregnancyCheck, PregnancyCheck]{
		Apply: func(items []PregnancyCheck) []PregnancyCheck {
			return append(items, c)
		},
		Commit: func(ctx context.Context) (PregnancyCheck, error) {
			return s.gw.Checks.Create(ctx, c)
		},
		Settle: func(items []PregnancyCheck, saved PregnancyCheck) []PregnancyCheck {
			return replaceCheck(items, c.ID, saved)
		},
		OnRollback: s.rolledBack("pregnancy_checks", "open_check", c.ID),
	})
	s.metrics.Transition("open_check", err)
	if err != nil {
		return PregnancyCheck{}, fmt.Errorf("%w: create pregnancy check: %v", ErrRemote, err)
	}

	s.log.Info("pregnancy check opened", map[string]any{
		"check_id":   saved.ID,
		"mother_id":  saved.MotherID,
		"check_date": saved.CheckDate.String(),
	})
	return saved, nil
}

func (s *Service) ListChecks(ctx context.Context) ([]PregnancyCheck, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	items := s.checks.Snapshot()
	sort.SliceStable(items, func(i, j int) bool { return items[i].CheckDate.Before(items[j].CheckDate) })
	return items, nil
}

type ConfirmInput struct {
	ExpectedKittens *int
	Notes           string
}

// ConfirmOutcome: Plan siempre es válido si err == nil. CleanupErr
// (envuelve ErrCleanupPending) indica que el chequeo sigue existiendo.
type ConfirmOutcome struct {
	Plan       BirthPlan
	CleanupErr error
}

// ConfirmPregnancy crea el BirthPlan (parto a 45 días del chequeo) y
// después borra el chequeo. Si el borrado falla, el plan se conserva.
func (s *Service) ConfirmPregnancy(ctx context.Context, checkID string, in ConfirmInput) (ConfirmOutcome, error) {
	c, err := s.findCheck(ctx, checkID)
	if err != nil {
		return ConfirmOutcome{}, err
	}
	if !c.Stage().CanTransitionTo(StageBirthPlanned) {
		return ConfirmOutcome{}, fmt.Errorf("%w: check is %s", ErrBadState, c.Status)
	}
	if in.ExpectedKittens != nil && *in.ExpectedKittens < 0 {
		return ConfirmOutcome{}, fmt.Errorf("%w: expected kittens must be >= 0", ErrInvalidInput)
	}

	now := s.now().UTC()
	notes := strings.TrimSpace(in.Notes)
	if notes == "" {
		notes = c.Notes
	}
	p := BirthPlan{
		ID:                uuid.NewString(),
		MotherID:          c.MotherID,
		FatherID:          c.FatherID,
		MatingDate:        c.MatingDate,
		ExpectedBirthDate: c.CheckDate.AddDays(BirthAfterCheckDays),
		Status:            BirthExpected,
		ExpectedKittens:   in.ExpectedKittens,
		Notes:             notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	plan, err := speculative.Run(ctx, s.plans, speculative.Change[BirthPlan, BirthPlan]{
		Apply: func(items []BirthPlan) []BirthPlan {
			return append(items, p)
		},
		Commit: func(ctx context.Context) (BirthPlan, error) {
			return s.gw.Plans.Create(ctx, p)
		},
		Settle: func(items []BirthPlan, saved BirthPlan) []BirthPlan {
			return replacePlan(items, p.ID, saved)
		},
		OnRollback: s.rolledBack("birth_plans", "confirm_pregnancy", p.ID),
	})
	if err != nil {
		s.metrics.Transition("confirm_pregnancy", err)
		return ConfirmOutcome{}, fmt.Errorf("%w: create birth plan: %v", ErrRemote, err)
	}

	out := ConfirmOutcome{Plan: plan}
	if err := s.removeCheck(ctx, c.ID, "confirm_pregnancy"); err != nil {
		out.CleanupErr = fmt.Errorf("%w: check %s: %v", ErrCleanupPending, c.ID, err)
		s.log.Warn("birth plan kept, pregnancy check not removed", map[string]any{
			"plan_id":  plan.ID,
			"check_id": c.ID,
			"error":    err,
		})
	}
	s.metrics.Transition("confirm_pregnancy", nil)
	return out, nil
}

// DenyPregnancy borra el chequeo sin dejar otro registro.
func (s *Service) DenyPregnancy(ctx context.Context, checkID string) error {
	c, err := s.findCheck(ctx, checkID)
	if err != nil {
		return err
	}
	if !c.Stage().CanTransitionTo(StageClosed) {
		return fmt.Errorf("%w: check is %s", ErrBadState, c.Status)
	}
	err = s.removeCheck(ctx, c.ID, "deny_pregnancy")
	s.metrics.Transition("deny_pregnancy", err)
	if err != nil {
		return fmt.Errorf("%w: delete pregnancy check: %v", ErrRemote, err)
	}
	return nil
}

func (s *Service) removeCheck(ctx context.Context, id, op string) error {
	_, err := speculative.Run(ctx, s.checks, speculative.Change[PregnancyCheck, struct{}]{
		Apply: func(items []PregnancyCheck) []PregnancyCheck {
			out := items[:0]
			for _, it := range items {
				if it.ID != id {
					out = append(out, it)
				}
			}
			return out
		},
		Commit: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.gw.Checks.Delete(ctx, id)
		},
		OnRollback: s.rolledBack("pregnancy_checks", op, id),
	})
	return err
}

// -------------------------
// Plan de parto
// -------------------------

type PlanFilter struct {
	// RaisingOnly: BORN sin completar.
	RaisingOnly bool
	MotherID    string
}

func (s *Service) ListPlans(ctx context.Context, f PlanFilter) ([]BirthPlan, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	items := s.plans.Snapshot()
	out := make([]BirthPlan, 0, len(items))
	for _, p := range items {
		if f.RaisingOnly && !p.Raising() {
			continue
		}
		if f.MotherID != "" && p.MotherID != f.MotherID {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpectedBirthDate.Before(out[j].ExpectedBirthDate) })
	return out, nil
}

type BirthInput struct {
	BirthDate  civil.Date
	BirthCount int
	DeathCount int
	Notes      *string
}

// BirthOutcome: KittenErr != nil indica altas parciales; el plan ya
// quedó en BORN y no se revierte.
type BirthOutcome struct {
	Plan      BirthPlan
	Kittens   []animals.Animal
	LiveCount int
	KittenErr error
	Gaps      []gaps.Gap
}

// RecordBirth pasa el plan a BORN y da de alta liveCount gatitos en
// paralelo, nombrados <madre>-1..N. El sexo de cada gatito no se captura.
func (s *Service) RecordBirth(ctx context.Context, planID string, in BirthInput) (BirthOutcome, error) {
	if in.BirthCount < 0 || in.DeathCount < 0 {
		return BirthOutcome{}, fmt.Errorf("%w: counts must be >= 0", ErrInvalidInput)
	}
	if !in.BirthDate.IsValid() {
		return BirthOutcome{}, fmt.Errorf("%w: invalid birth date", ErrInvalidInput)
	}

	p, err := s.findPlan(ctx, planID)
	if err != nil {
		return BirthOutcome{}, err
	}
	if !p.Stage().CanTransitionTo(StageBorn) {
		return BirthOutcome{}, fmt.Errorf("%w: plan is %s", ErrBadState, p.Stage())
	}

	mother, err := s.gw.Animals.GetByID(ctx, p.MotherID)
	if err != nil {
		return BirthOutcome{}, err
	}

	born := BirthBorn
	birthDate := in.BirthDate
	count := in.BirthCount
	patch := BirthPlanPatch{Status: &born, ActualBirthDate: &birthDate, ActualKittens: &count, Notes: in.Notes}
	next := patch.Apply(p)
	next.UpdatedAt = s.now().UTC()

	plan, err := speculative.Run(ctx, s.plans, speculative.Change[BirthPlan, BirthPlan]{
		Apply: func(items []BirthPlan) []BirthPlan {
			return replacePlan(items, p.ID, next)
		},
		Commit: func(ctx context.Context) (BirthPlan, error) {
			return s.gw.Plans.Update(ctx, p.ID, patch)
		},
		Settle: func(items []BirthPlan, saved BirthPlan) []BirthPlan {
			return replacePlan(items, p.ID, saved)
		},
		OnRollback: s.rolledBack("birth_plans", "record_birth", p.ID),
	})
	if err != nil {
		s.metrics.Transition("record_birth", err)
		return BirthOutcome{}, fmt.Errorf("%w: update birth plan: %v", ErrRemote, err)
	}

	live := in.BirthCount - in.DeathCount
	if live < 0 {
		live = 0
	}

	kittens, failed := s.createKittens(ctx, mother, plan, birthDate, live)

	out := BirthOutcome{
		Plan:      plan,
		Kittens:   kittens,
		LiveCount: live,
		Gaps:      []gaps.Gap{gaps.KittenSex},
	}
	if failed > 0 {
		out.KittenErr = fmt.Errorf("%w: %d of %d kitten records failed", ErrRemote, failed, live)
		s.log.Warn("kitten records partially created", map[string]any{
			"plan_id": plan.ID,
			"created": len(kittens),
			"failed":  failed,
		})
	}
	s.metrics.Transition("record_birth", nil)
	return out, nil
}

// createKittens lanza las altas sin orden ni cancelación: una falla no
// frena a las demás.
func (s *Service) createKittens(ctx context.Context, mother animals.Animal, plan BirthPlan, birthDate civil.Date, n int) ([]animals.Animal, int) {
	created := make([]*animals.Animal, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			bd := birthDate
			a, err := s.gw.Animals.Create(ctx, animals.CreateInput{
				Name:      fmt.Sprintf("%s-%d", mother.Name, i+1),
				Gender:    animals.GenderMale,
				BirthDate: &bd,
				IsInHouse: true,
				MotherID:  plan.MotherID,
				FatherID:  plan.FatherID,
			})
			if err != nil {
				s.log.Warn("kitten record failed", map[string]any{"plan_id": plan.ID, "seq": i + 1, "error": err})
				return err
			}
			created[i] = &a
			return nil
		})
	}
	_ = g.Wait()

	out := make([]animals.Animal, 0, n)
	for _, a := range created {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, n - len(out)
}

// CancelBirthPlan: no hubo parto; el plan se borra.
func (s *Service) CancelBirthPlan(ctx context.Context, planID string) error {
	p, err := s.findPlan(ctx, planID)
	if err != nil {
		return err
	}
	if p.Stage() != StageBirthPlanned {
		return fmt.Errorf("%w: plan is %s", ErrBadState, p.Stage())
	}

	_, err = speculative.Run(ctx, s.plans, speculative.Change[BirthPlan, struct{}]{
		Apply: func(items []BirthPlan) []BirthPlan {
			out := items[:0]
			for _, it := range items {
				if it.ID != p.ID {
					out = append(out, it)
				}
			}
			return out
		},
		Commit: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.gw.Plans.Delete(ctx, p.ID)
		},
		OnRollback: s.rolledBack("birth_plans", "cancel_birth_plan", p.ID),
	})
	s.metrics.Transition("cancel_birth_plan", err)
	if err != nil {
		return fmt.Errorf("%w: delete birth plan: %v", ErrRemote, err)
	}
	return nil
}

// CompleteBirth cierra la crianza. Irreversible; las disposiciones siguen
// siendo posibles.
func (s *Service) CompleteBirth(ctx context.Context, planID string) (BirthPlan, error) {
	p, err := s.findPlan(ctx, planID)
	if err != nil {
		return BirthPlan{}, err
	}
	if !p.Stage().CanTransitionTo(StageCompleted) {
		return BirthPlan{}, fmt.Errorf("%w: plan is %s", ErrBadState, p.Stage())
	}

	at := s.now().UTC()
	next := p
	next.CompletedAt = &at
	next.UpdatedAt = at

	plan, err := speculative.Run(ctx, s.plans, speculative.Change[BirthPlan, BirthPlan]{
		Apply: func(items []BirthPlan) []BirthPlan {
			return replacePlan(items, p.ID, next)
		},
		Commit: func(ctx context.Context) (BirthPlan, error) {
			return s.gw.Plans.Complete(ctx, p.ID, at)
		},
		Settle: func(items []BirthPlan, saved BirthPlan) []BirthPlan {
			return replacePlan(items, p.ID, saved)
		},
		OnRollback: s.rolledBack("birth_plans", "complete_birth", p.ID),
	})
	s.metrics.Transition("complete_birth", err)
	if err != nil {
		return BirthPlan{}, fmt.Errorf("%w: complete birth plan: %v", ErrRemote, err)
	}
	return plan, nil
}

// -------------------------
// Disposición de gatitos
// -------------------------

type DisposeInput struct {
	KittenID    string
	Name        string
	Gender      animals.Gender
	Disposition Disposition

	TrainingStartDate *civil.Date
	Sale              *SaleInfo
	DeathDate         *civil.Date
	DeathReason       string

	Notes string
}

// DisposeKitten registra el destino de un gatito. Requiere un plan BORN
// de su madre (el de parto más reciente); sin plan no se crea nada.
func (s *Service) DisposeKitten(ctx context.Context, in DisposeInput) (KittenDisposition, error) {
	if !in.Disposition.Valid() {
		return KittenDisposition{}, fmt.Errorf("%w: unknown disposition %q", ErrInvalidInput, in.Disposition)
	}
	if err := checkDispositionFields(in); err != nil {
		return KittenDisposition{}, err
	}
	kittenID := strings.TrimSpace(in.KittenID)
	if kittenID == "" {
		return KittenDisposition{}, fmt.Errorf("%w: kitten id required", ErrInvalidInput)
	}

	kitten, err := s.gw.Animals.GetByID(ctx, kittenID)
	if err != nil {
		return KittenDisposition{}, err
	}
	plan, err := s.bornPlanOf(ctx, kitten.MotherID)
	if err != nil {
		return KittenDisposition{}, err
	}

	existing, err := s.gw.Dispositions.ListByBirthPlan(ctx, plan.ID)
	if err != nil {
		return KittenDisposition{}, fmt.Errorf("%w: list dispositions: %v", ErrRemote, err)
	}
	for _, d := range existing {
		if d.KittenID == kitten.ID {
			return KittenDisposition{}, fmt.Errorf("%w: kitten already has a disposition", ErrBadState)
		}
	}

	d := KittenDisposition{
		ID:                uuid.NewString(),
		BirthRecordID:     plan.ID,
		KittenID:          kitten.ID,
		Name:              firstNonEmpty(strings.TrimSpace(in.Name), kitten.Name),
		Gender:            in.Gender,
		Disposition:       in.Disposition,
		TrainingStartDate: in.TrainingStartDate,
		Sale:              in.Sale,
		DeathDate:         in.DeathDate,
		DeathReason:       strings.TrimSpace(in.DeathReason),
		Notes:             strings.TrimSpace(in.Notes),
		CreatedAt:         s.now().UTC(),
	}
	if !d.Gender.Valid() {
		d.Gender = kitten.Gender
	}
	today := s.today()
	switch d.Disposition {
	case DispositionTraining:
		if d.TrainingStartDate == nil {
			d.TrainingStartDate = &today
		}
	case DispositionDeceased:
		if d.DeathDate == nil {
			d.DeathDate = &today
		}
	}

	saved, err := s.gw.Dispositions.Create(ctx, d)
	s.metrics.Transition("dispose_kitten", err)
	if errors.Is(err, ErrDuplicateDisposition) {
		return KittenDisposition{}, fmt.Errorf("%w: %v", ErrBadState, err)
	}
	if err != nil {
		return KittenDisposition{}, fmt.Errorf("%w: create disposition: %v", ErrRemote, err)
	}
	s.log.Info("kitten disposed", map[string]any{
		"kitten_id":   kitten.ID,
		"plan_id":     plan.ID,
		"disposition": string(saved.Disposition),
	})
	return saved, nil
}

func (s *Service) ListDispositions(ctx context.Context, planID string) ([]KittenDisposition, error) {
	if _, err := s.findPlan(ctx, planID); err != nil {
		return nil, err
	}
	items, err := s.gw.Dispositions.ListByBirthPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("%w: list dispositions: %v", ErrRemote, err)
	}
	return items, nil
}

// RaisingKitten es un gatito visible para disposición.
type RaisingKitten struct {
	Animal      animals.Animal
	AgeMonths   int
	Disposition *KittenDisposition
}

type RaisingGroup struct {
	Plan    BirthPlan
	Mother  animals.Ref
	Kittens []RaisingKitten
}

// Raising lista, por plan BORN sin completar, los hijos de la madre con
// 3 meses o menos. Cada gatito va a un solo plan: el de su madre con
// parto más reciente no posterior a su nacimiento.
func (s *Service) Raising(ctx context.Context) ([]RaisingGroup, error) {
	plans, err := s.ListPlans(ctx, PlanFilter{RaisingOnly: true})
	if err != nil {
		return nil, err
	}
	born, err := s.ListPlans(ctx, PlanFilter{})
	if err != nil {
		return nil, err
	}
	byMother := make(map[string][]BirthPlan)
	for _, p := range born {
		if p.Status == BirthBorn {
			byMother[p.MotherID] = append(byMother[p.MotherID], p)
		}
	}

	today := s.today()
	out := make([]RaisingGroup, 0, len(plans))
	for _, p := range plans {
		kids, err := s.gw.Animals.List(ctx, animals.ListFilter{MotherID: p.MotherID})
		if err != nil {
			return nil, err
		}
		disposed, err := s.gw.Dispositions.ListByBirthPlan(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: list dispositions: %v", ErrRemote, err)
		}
		byKitten := make(map[string]KittenDisposition, len(disposed))
		for _, d := range disposed {
			byKitten[d.KittenID] = d
		}

		g := RaisingGroup{Plan: p, Kittens: make([]RaisingKitten, 0, len(kids))}
		if mother, err := s.gw.Animals.GetByID(ctx, p.MotherID); err == nil {
			g.Mother = mother.Ref()
		} else {
			g.Mother = animals.Ref{ID: p.MotherID}
		}
		for _, k := range kids {
			if !animals.WithinRaisingAge(k, today) {
				continue
			}
			if owner, ok := litterOf(k, byMother[p.MotherID]); !ok || owner.ID != p.ID {
				continue
			}
			rk := RaisingKitten{Animal: k, AgeMonths: animals.AgeInMonths(k.BirthDate, today)}
			if d, ok := byKitten[k.ID]; ok {
				rk.Disposition = &d
			}
			g.Kittens = append(g.Kittens, rk)
		}
		out = append(out, g)
	}
	return out, nil
}

// -------------------------
// Internos
// -------------------------

func (s *Service) findCheck(ctx context.Context, id string) (PregnancyCheck, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return PregnancyCheck{}, ErrNotFound
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return PregnancyCheck{}, err
	}
	match := func(c PregnancyCheck) bool { return c.ID == id }
	if c, ok := s.checks.Find(match); ok {
		return c, nil
	}
	// Puede haberlo escrito otra instancia después de la última carga.
	if err := s.Refresh(ctx); err != nil {
		return PregnancyCheck{}, err
	}
	c, ok := s.checks.Find(match)
	if !ok {
		return PregnancyCheck{}, ErrNotFound
	}
	return c, nil
}

func (s *Service) findPlan(ctx context.Context, id string) (BirthPlan, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return BirthPlan{}, ErrNotFound
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return BirthPlan{}, err
	}
	match := func(p BirthPlan) bool { return p.ID == id }
	if p, ok := s.plans.Find(match); ok {
		return p, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return BirthPlan{}, err
	}
	p, ok := s.plans.Find(match)
	if !ok {
		return BirthPlan{}, ErrNotFound
	}
	return p, nil
}

// bornPlanOf elige el plan BORN de la madre con parto más reciente.
func (s *Service) bornPlanOf(ctx context.Context, motherID string) (BirthPlan, error) {
	if strings.TrimSpace(motherID) == "" {
		return BirthPlan{}, fmt.Errorf("%w: kitten has no mother on record", ErrNotFound)
	}
	plans, err := s.ListPlans(ctx, PlanFilter{MotherID: motherID})
	if err != nil {
		return BirthPlan{}, err
	}

	var best *BirthPlan
	for i := range plans {
		p := plans[i]
		if p.Status != BirthBorn {
			continue
		}
		if best == nil || laterBirth(p, *best) {
			best = &p
		}
	}
	if best == nil {
		return BirthPlan{}, fmt.Errorf("%w: no born birth plan for mother %s", ErrNotFound, motherID)
	}
	return *best, nil
}

// litterOf elige, entre los planes BORN de la madre, el de parto más
// reciente que no sea posterior al nacimiento del gatito.
func litterOf(kitten animals.Animal, plans []BirthPlan) (BirthPlan, bool) {
	var best *BirthPlan
	for i := range plans {
		p := plans[i]
		if p.ActualBirthDate == nil {
			continue
		}
		if kitten.BirthDate != nil && p.ActualBirthDate.After(*kitten.BirthDate) {
			continue
		}
		if best == nil || laterBirth(p, *best) {
			best = &p
		}
	}
	if best == nil {
		return BirthPlan{}, false
	}
	return *best, true
}

func laterBirth(a, b BirthPlan) bool {
	if a.ActualBirthDate == nil {
		return false
	}
	if b.ActualBirthDate == nil {
		return true
	}
	return a.ActualBirthDate.After(*b.ActualBirthDate)
}

func checkDispositionFields(in DisposeInput) error {
	training := in.TrainingStartDate != nil
	sale := in.Sale != nil
	death := in.DeathDate != nil || strings.TrimSpace(in.DeathReason) != ""

	switch in.Disposition {
	case DispositionTraining:
		if sale || death {
			return fmt.Errorf("%w: training disposition carries sale or death fields", ErrInvalidInput)
		}
	case DispositionSale:
		if training || death {
			return fmt.Errorf("%w: sale disposition carries training or death fields", ErrInvalidInput)
		}
		if in.Sale != nil && in.Sale.Price != nil && *in.Sale.Price < 0 {
			return fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
		}
	case DispositionDeceased:
		if training || sale {
			return fmt.Errorf("%w: deceased disposition carries training or sale fields", ErrInvalidInput)
		}
	}
	return nil
}

func (s *Service) rolledBack(collection, op, id string) func(error) {
	return func(err error) {
		s.metrics.Rollback(collection)
		s.log.Warn("lifecycle change rolled back", map[string]any{
			"collection": collection,
			"op":         op,
			"id":         id,
			"error":      err,
		})
	}
}

func replaceCheck(items []PregnancyCheck, id string, c PregnancyCheck) []PregnancyCheck {
	for i := range items {
		if items[i].ID == id {
			items[i] = c
			return items
		}
	}
	return append(items, c)
}

func replacePlan(items []BirthPlan, id string, p BirthPlan) []BirthPlan {
	for i := range items {
		if items[i].ID == id {
			items[i] = p
			return items
		}
	}
	return append(items, p)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

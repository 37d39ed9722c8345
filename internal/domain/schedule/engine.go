package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/platform/logger"

	"cloud.google.com/go/civil"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("schedule entry not found")
	ErrBadState     = errors.New("invalid state")
	ErrLocalStore   = errors.New("local store failed")
)

// Engine es el dueño del calendario de un dispositivo: grilla, roster,
// duración por defecto, mes seleccionado y contadores de chequeo.
// Los llamadores no tocan los mapas; solo usan estas operaciones.
//
// Las mutaciones se serializan con mu, incluida la escritura local, así
// que dos acciones del operador nunca se intercalan.
type Engine struct {
	mu    sync.Mutex
	scope string
	store LocalStore
	log   logger.Logger

	// hasta que Hydrate termina, persist no escribe: un estado vacío
	// no puede pisar lo que ya estaba guardado.
	hydrated bool

	roster          []animals.Ref
	defaultDuration int
	view            CalendarView
	entries         map[EntryKey]Entry
	tally           map[TallyKey]int
}

func NewEngine(scope string, store LocalStore, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		scope:           scope,
		store:           store,
		log:             log.With(map[string]any{"component": "schedule", "scope": scope}),
		defaultDuration: DefaultDuration,
		entries:         map[EntryKey]Entry{},
		tally:           map[TallyKey]int{},
	}
}

func (e *Engine) Scope() string { return e.scope }

// Hydrate carga el estado guardado una sola vez. Si falla, el motor
// sigue sin escribir hasta que un Hydrate posterior funcione.
func (e *Engine) Hydrate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hydrated {
		return nil
	}

	st, ok, err := e.store.Load(ctx, e.scope)
	if err != nil {
		return fmt.Errorf("%w: load: %v", ErrLocalStore, err)
	}
	if ok {
		e.restore(st)
	}
	e.hydrated = true

	e.log.Debug("calendar hydrated", map[string]any{
		"found":   ok,
		"entries": len(e.entries),
		"roster":  len(e.roster),
	})
	return nil
}

func (e *Engine) Hydrated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hydrated
}

// -------------------------
// Ventanas
// -------------------------

// CreateWindow escribe duration entradas consecutivas desde start.
// No valida elegibilidad, reglas NG ni doble reserva: eso lo hace el
// Planner antes de llamar. Una celda ocupada se sobrescribe.
func (e *Engine) CreateWindow(ctx context.Context, male, female animals.Ref, start civil.Date, duration int) (Window, error) {
	if strings.TrimSpace(male.ID) == "" || strings.TrimSpace(female.ID) == "" {
		return Window{}, fmt.Errorf("%w: male and female required", ErrInvalidInput)
	}
	if !start.IsValid() {
		return Window{}, fmt.Errorf("%w: invalid start date", ErrInvalidInput)
	}
	if err := checkDuration(duration); err != nil {
		return Window{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var w Window
	err := e.mutate(ctx, func() error {
		w = e.writeWindow(male, female, start, duration)
		return nil
	})
	return w, err
}

type ResizeInput struct {
	Duration int
	// Female reemplaza a la hembra de la ventana si no es nil.
	Female *animals.Ref
}

// ResizeWindow borra las entradas de la ventana que contiene key y la
// vuelve a crear con la nueva duración (y opcionalmente otra hembra).
// Celdas fuera de ambos rangos no se tocan.
func (e *Engine) ResizeWindow(ctx context.Context, key EntryKey, in ResizeInput) (Window, error) {
	if err := checkDuration(in.Duration); err != nil {
		return Window{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.entries[key]
	if !ok {
		return Window{}, ErrNotFound
	}
	if cur.IsHistory {
		return Window{}, fmt.Errorf("%w: history entries are read-only", ErrBadState)
	}

	male := animals.Ref{ID: cur.MaleID, Name: cur.MaleName}
	female := animals.Ref{ID: cur.FemaleID, Name: cur.FemaleName}
	if in.Female != nil {
		if strings.TrimSpace(in.Female.ID) == "" {
			return Window{}, fmt.Errorf("%w: female id required", ErrInvalidInput)
		}
		female = *in.Female
	}
	start := cur.WindowStart()

	var w Window
	err := e.mutate(ctx, func() error {
		e.clearRange(cur.MaleID, start, cur.Duration)
		w = e.writeWindow(male, female, start, in.Duration)
		return nil
	})
	return w, err
}

// DeleteWindow borra las entradas dayIndex 0..duration-1 desde el inicio
// recalculado. Los contadores de esos días quedan huérfanos.
func (e *Engine) DeleteWindow(ctx context.Context, key EntryKey) (Window, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.entries[key]
	if !ok {
		return Window{}, ErrNotFound
	}
	w := e.windowOf(cur)

	err := e.mutate(ctx, func() error {
		e.clearRange(cur.MaleID, w.Start, cur.Duration)
		return nil
	})
	return w, err
}

// ConvertWindowToHistory marca como historial las entradas de la ventana
// que contiene key (y solo esa). result vacío = sin resultado.
func (e *Engine) ConvertWindowToHistory(ctx context.Context, key EntryKey, result string) (Window, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.entries[key]
	if !ok {
		return Window{}, ErrNotFound
	}
	w := e.windowOf(cur)

	err := e.mutate(ctx, func() error {
		for _, it := range w.Entries {
			if it.IsHistory {
				continue
			}
			it.IsHistory = true
			it.Result = result
			e.entries[it.Key()] = it
		}
		return nil
	})
	if err != nil {
		return Window{}, err
	}
	return e.windowOf(e.entries[key]), nil
}

// Conflicts busca, entre los otros machos del roster, entradas activas
// con la misma hembra en los días candidatos. Es solo un aviso.
func (e *Engine) Conflicts(maleID, femaleID string, start civil.Date, duration int) []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Entry, 0)
	for _, m := range e.roster {
		if m.ID == maleID {
			continue
		}
		for i := 0; i < duration; i++ {
			it, ok := e.entries[EntryKey{MaleID: m.ID, Date: start.AddDays(i)}]
			if !ok || it.IsHistory || it.FemaleID != femaleID {
				continue
			}
			out = append(out, it)
		}
	}
	sortEntries(out)
	return out
}

// -------------------------
// Lectura
// -------------------------

func (e *Engine) Entry(key EntryKey) (Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	it, ok := e.entries[key]
	return it, ok
}

// Window devuelve la ventana que contiene key.
func (e *Engine) Window(key EntryKey) (Window, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	it, ok := e.entries[key]
	if !ok {
		return Window{}, false
	}
	return e.windowOf(it), true
}

// Entries devuelve las entradas entre from y to (inclusive), ordenadas.
func (e *Engine) Entries(from, to civil.Date) []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Entry, 0)
	for _, it := range e.entries {
		if it.Date.Before(from) || it.Date.After(to) {
			continue
		}
		out = append(out, it)
	}
	sortEntries(out)
	return out
}

// -------------------------
// Contador de chequeos
// -------------------------

// RecordMatingCheck suma uno al contador del día y devuelve el total.
func (e *Engine) RecordMatingCheck(ctx context.Context, maleID, femaleID string, date civil.Date) (int, error) {
	if strings.TrimSpace(maleID) == "" || strings.TrimSpace(femaleID) == "" || !date.IsValid() {
		return 0, fmt.Errorf("%w: male, female and date required", ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	k := TallyKey{MaleID: maleID, FemaleID: femaleID, Date: date}
	var n int
	err := e.mutate(ctx, func() error {
		e.tally[k]++
		n = e.tally[k]
		return nil
	})
	return n, err
}

func (e *Engine) MatingChecks(maleID, femaleID string, date civil.Date) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tally[TallyKey{MaleID: maleID, FemaleID: femaleID, Date: date}]
}

// -------------------------
// Roster y preferencias
// -------------------------

func (e *Engine) Roster() []animals.Ref {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]animals.Ref, len(e.roster))
	copy(out, e.roster)
	return out
}

func (e *Engine) InRoster(maleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rosterIndex(maleID) >= 0
}

// AddToRoster agrega un macho; si ya estaba, actualiza el nombre.
func (e *Engine) AddToRoster(ctx context.Context, male animals.Ref) error {
	if strings.TrimSpace(male.ID) == "" {
		return fmt.Errorf("%w: male id required", ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.mutate(ctx, func() error {
		if i := e.rosterIndex(male.ID); i >= 0 {
			e.roster[i] = male
			return nil
		}
		e.roster = append(e.roster, male)
		return nil
	})
}

// RemoveFromRoster saca al macho del roster. Sus entradas quedan en la grilla.
func (e *Engine) RemoveFromRoster(ctx context.Context, maleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.rosterIndex(maleID)
	if i < 0 {
		return ErrNotFound
	}
	return e.mutate(ctx, func() error {
		e.roster = append(e.roster[:i], e.roster[i+1:]...)
		return nil
	})
}

func (e *Engine) DefaultDuration() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaultDuration
}

func (e *Engine) SetDefaultDuration(ctx context.Context, d int) error {
	if err := checkDuration(d); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mutate(ctx, func() error {
		e.defaultDuration = d
		return nil
	})
}

// View devuelve el mes seleccionado; vacío si nunca se eligió.
func (e *Engine) View() CalendarView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

func (e *Engine) SetView(ctx context.Context, v CalendarView) error {
	if !v.Valid() {
		return fmt.Errorf("%w: invalid year/month", ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mutate(ctx, func() error {
		e.view = v
		return nil
	})
}

// State devuelve una copia del estado completo.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// -------------------------
// Internos (requieren mu)
// -------------------------

// mutate aplica fn y escribe el estado. Si la escritura falla, el estado
// en memoria vuelve a la copia previa.
func (e *Engine) mutate(ctx context.Context, fn func() error) error {
	before := e.stateLocked()
	if err := fn(); err != nil {
		e.restore(before)
		return err
	}
	if err := e.persist(ctx); err != nil {
		e.restore(before)
		e.log.Warn("calendar change rolled back", map[string]any{"error": err})
		return err
	}
	return nil
}

func (e *Engine) persist(ctx context.Context) error {
	if !e.hydrated {
		e.log.Debug("write skipped before hydration", nil)
		return nil
	}
	if err := e.store.Save(ctx, e.scope, e.stateLocked()); err != nil {
		return fmt.Errorf("%w: save: %v", ErrLocalStore, err)
	}
	return nil
}

func (e *Engine) writeWindow(male, female animals.Ref, start civil.Date, duration int) Window {
	w := Window{Male: male, Female: female, Start: start, Duration: duration, Entries: make([]Entry, 0, duration)}
	for i := 0; i < duration; i++ {
		it := Entry{
			MaleID:     male.ID,
			MaleName:   male.Name,
			FemaleID:   female.ID,
			FemaleName: female.Name,
			Date:       start.AddDays(i),
			Duration:   duration,
			DayIndex:   i,
		}
		e.entries[it.Key()] = it
		w.Entries = append(w.Entries, it)
	}
	return w
}

func (e *Engine) clearRange(maleID string, start civil.Date, n int) {
	for i := 0; i < n; i++ {
		delete(e.entries, EntryKey{MaleID: maleID, Date: start.AddDays(i)})
	}
}

// windowOf arma la ventana de it con las entradas que siguen siendo del
// mismo par y duración.
func (e *Engine) windowOf(it Entry) Window {
	start := it.WindowStart()
	w := Window{
		Male:     animals.Ref{ID: it.MaleID, Name: it.MaleName},
		Female:   animals.Ref{ID: it.FemaleID, Name: it.FemaleName},
		Start:    start,
		Duration: it.Duration,
		Entries:  make([]Entry, 0, it.Duration),
	}
	for i := 0; i < it.Duration; i++ {
		other, ok := e.entries[EntryKey{MaleID: it.MaleID, Date: start.AddDays(i)}]
		if !ok || other.FemaleID != it.FemaleID || other.Duration != it.Duration || other.DayIndex != i {
			continue
		}
		w.Entries = append(w.Entries, other)
	}
	return w
}

func (e *Engine) rosterIndex(maleID string) int {
	for i, m := range e.roster {
		if m.ID == maleID {
			return i
		}
	}
	return -1
}

func (e *Engine) stateLocked() State {
	st := State{
		Roster:          make([]animals.Ref, len(e.roster)),
		DefaultDuration: e.defaultDuration,
		View:            e.view,
		Entries:         make([]Entry, 0, len(e.entries)),
		Tally:           make([]TallyCount, 0, len(e.tally)),
	}
	copy(st.Roster, e.roster)
	for _, it := range e.entries {
		st.Entries = append(st.Entries, it)
	}
	sortEntries(st.Entries)
	for k, n := range e.tally {
		st.Tally = append(st.Tally, TallyCount{TallyKey: k, Count: n})
	}
	return st
}

func (e *Engine) restore(st State) {
	e.roster = make([]animals.Ref, len(st.Roster))
	copy(e.roster, st.Roster)

	e.defaultDuration = st.DefaultDuration
	if checkDuration(e.defaultDuration) != nil {
		e.defaultDuration = DefaultDuration
	}
	e.view = st.View

	e.entries = make(map[EntryKey]Entry, len(st.Entries))
	for _, it := range st.Entries {
		e.entries[it.Key()] = it
	}
	e.tally = make(map[TallyKey]int, len(st.Tally))
	for _, t := range st.Tally {
		e.tally[t.TallyKey] = t.Count
	}
}

func checkDuration(d int) error {
	if d < MinDuration || d > MaxDuration {
		return fmt.Errorf("%w: duration must be between %d and %d", ErrInvalidInput, MinDuration, MaxDuration)
	}
	return nil
}

package schedule

import (
	"sort"
	"time"

	"cattery-breeding/internal/domain/animals"

	"cloud.google.com/go/civil"
)

const (
	MinDuration     = 1
	MaxDuration     = 7
	DefaultDuration = 3
)

// EntryKey identifica una celda del calendario: a lo sumo una entrada por macho y día.
type EntryKey struct {
	MaleID string     `json:"male_id"`
	Date   civil.Date `json:"date"`
}

// Entry es un día de una ventana de monta.
type Entry struct {
	MaleID     string     `json:"male_id"`
	MaleName   string     `json:"male_name"`
	FemaleID   string     `json:"female_id"`
	FemaleName string     `json:"female_name"`
	Date       civil.Date `json:"date" swaggertype:"string"`
	Duration   int        `json:"duration"`
	DayIndex   int        `json:"day_index"`
	IsHistory  bool       `json:"is_history"`
	Result     string     `json:"result,omitempty"`
}

func (e Entry) Key() EntryKey {
	return EntryKey{MaleID: e.MaleID, Date: e.Date}
}

// WindowStart recalcula el primer día de la ventana a partir de la posición.
func (e Entry) WindowStart() civil.Date {
	return e.Date.AddDays(-e.DayIndex)
}

// IsLastDay indica si la entrada es el último día de su ventana.
func (e Entry) IsLastDay() bool {
	return e.DayIndex == e.Duration-1
}

// Window es la vista lógica de una ventana: entradas contiguas de un par.
type Window struct {
	Male     animals.Ref `json:"male"`
	Female   animals.Ref `json:"female"`
	Start    civil.Date  `json:"start" swaggertype:"string"`
	Duration int         `json:"duration"`
	Entries  []Entry     `json:"entries"`
}

func (w Window) End() civil.Date {
	return w.Start.AddDays(w.Duration - 1)
}

// TallyKey identifica un contador de chequeos de monta.
type TallyKey struct {
	MaleID   string     `json:"male_id"`
	FemaleID string     `json:"female_id"`
	Date     civil.Date `json:"date"`
}

type TallyCount struct {
	TallyKey
	Count int `json:"count"`
}

// CalendarView es el año/mes seleccionado en la grilla.
type CalendarView struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func (v CalendarView) Valid() bool {
	return v.Year >= 1900 && v.Year <= 9999 && v.Month >= time.January && v.Month <= time.December
}

// Range devuelve el primer y último día del mes seleccionado.
func (v CalendarView) Range() (civil.Date, civil.Date) {
	first := civil.Date{Year: v.Year, Month: v.Month, Day: 1}
	last := civil.DateOf(time.Date(v.Year, v.Month+1, 0, 0, 0, 0, 0, time.UTC))
	return first, last
}

// State es lo que se guarda en el almacenamiento local del dispositivo.
type State struct {
	Roster          []animals.Ref `json:"roster"`
	DefaultDuration int           `json:"default_duration"`
	View            CalendarView  `json:"view"`
	Entries         []Entry       `json:"entries"`
	Tally           []TallyCount  `json:"tally"`
}

func sortEntries(items []Entry) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].MaleID < items[j].MaleID
	})
}

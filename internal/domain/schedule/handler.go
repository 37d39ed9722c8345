package schedule

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/domain/gaps"
	"cattery-breeding/internal/domain/ngrules"
	"cattery-breeding/internal/middleware"
	"cattery-breeding/internal/platform/textclean"
	"cattery-breeding/internal/platform/validate"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, mgr *Manager, planner *Planner) {
	r.Route("/calendar", func(cr chi.Router) {
		cr.Get("/", calendarStateHandler(mgr))
		cr.Get("/entries", listEntriesHandler(mgr))

		cr.Get("/roster", listRosterHandler(mgr))
		cr.Post("/roster", addToRosterHandler(mgr, planner))
		cr.Delete("/roster/{maleID}", removeFromRosterHandler(mgr))

		cr.Put("/preferences/duration", setDefaultDurationHandler(mgr))
		cr.Put("/view", setViewHandler(mgr))

		cr.Post("/plan", planWindowHandler(mgr, planner))
		cr.Post("/windows", createWindowHandler(mgr, planner))
		cr.Route("/windows/{maleID}/{date}", func(wr chi.Router) {
			wr.Get("/", getWindowHandler(mgr))
			wr.Patch("/", reassignWindowHandler(mgr, planner))
			wr.Delete("/", deleteWindowHandler(mgr))
			wr.Post("/history", convertToHistoryHandler(mgr))
		})

		cr.Get("/checks", getMatingChecksHandler(mgr))
		cr.Post("/checks", recordMatingCheckHandler(mgr))
	})
}

type calendarStateResponse struct {
	Scope           string        `json:"scope"`
	Roster          []animals.Ref `json:"roster"`
	DefaultDuration int           `json:"default_duration"`
	View            CalendarView  `json:"view"`
	Gaps            []gaps.Gap    `json:"gaps"`
}

type planRequest struct {
	MaleID   string `json:"male_id" validate:"required"`
	FemaleID string `json:"female_id" validate:"required"`
	Start    string `json:"start" validate:"required"` // YYYY-MM-DD
	Duration int    `json:"duration" validate:"omitempty,min=1,max=7"`
	Override bool   `json:"override"`
}

type reassignRequest struct {
	Duration int    `json:"duration" validate:"omitempty,min=1,max=7"`
	FemaleID string `json:"female_id"`
	Override bool   `json:"override"`
}

type rosterRequest struct {
	MaleID string `json:"male_id" validate:"required"`
}

type durationRequest struct {
	Duration int `json:"duration" validate:"required,min=1,max=7"`
}

type viewRequest struct {
	Year  int `json:"year" validate:"required,min=1900,max=9999"`
	Month int `json:"month" validate:"required,min=1,max=12"`
}

type historyRequest struct {
	Result string `json:"result" validate:"max=500"`
}

type checkRequest struct {
	MaleID   string `json:"male_id" validate:"required"`
	FemaleID string `json:"female_id" validate:"required"`
	Date     string `json:"date" validate:"required"`
}

type checkResponse struct {
	MaleID   string     `json:"male_id"`
	FemaleID string     `json:"female_id"`
	Date     civil.Date `json:"date" swaggertype:"string"`
	Count    int        `json:"count"`
}

type blockedResponse struct {
	Error    string   `json:"error"`
	Proposal Proposal `json:"proposal"`
}

type windowWriteResponse struct {
	Window   Window    `json:"window"`
	Proposal *Proposal `json:"proposal,omitempty"`
}

// calendarStateHandler godoc
// @Summary Estado del calendario local
// @Description Roster, duración por defecto y mes seleccionado del dispositivo (header X-Device-ID; si falta, el operador).
// @Tags calendar
// @Produce json
// @Param X-Device-ID header string false "Dispositivo"
// @Success 200 {object} calendarStateResponse
// @Failure 401 {string} string "unauthorized"
// @Router /calendar [get]
func calendarStateHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		st := eng.State()
		writeJSON(w, http.StatusOK, calendarStateResponse{
			Scope:           eng.Scope(),
			Roster:          st.Roster,
			DefaultDuration: st.DefaultDuration,
			View:            st.View,
			Gaps:            []gaps.Gap{gaps.CrossDeviceSync},
		})
	}
}

// listEntriesHandler godoc
// @Summary Listar entradas del calendario
// @Description Rango por from/to (YYYY-MM-DD); si no vienen, el mes seleccionado o el mes actual.
// @Tags calendar
// @Produce json
// @Param from query string false "Desde (YYYY-MM-DD)"
// @Param to query string false "Hasta (YYYY-MM-DD)"
// @Success 200 {array} Entry
// @Failure 400 {string} string "invalid range"
// @Router /calendar/entries [get]
func listEntriesHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}

		q := r.URL.Query()
		var from, to civil.Date
		if q.Get("from") != "" || q.Get("to") != "" {
			var err1, err2 error
			from, err1 = civil.ParseDate(strings.TrimSpace(q.Get("from")))
			to, err2 = civil.ParseDate(strings.TrimSpace(q.Get("to")))
			if err1 != nil || err2 != nil || to.Before(from) {
				http.Error(w, "invalid range", http.StatusBadRequest)
				return
			}
		} else {
			v := eng.View()
			if !v.Valid() {
				now := time.Now()
				v = CalendarView{Year: now.Year(), Month: now.Month()}
			}
			from, to = v.Range()
		}

		writeJSON(w, http.StatusOK, eng.Entries(from, to))
	}
}

// listRosterHandler godoc
// @Summary Listar machos activos (roster)
// @Tags calendar
// @Produce json
// @Success 200 {array} animals.Ref
// @Router /calendar/roster [get]
func listRosterHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, eng.Roster())
	}
}

// addToRosterHandler godoc
// @Summary Agregar macho al roster
// @Description Solo machos en casa con 10 meses o más.
// @Tags calendar
// @Accept json
// @Produce json
// @Param payload body rosterRequest true "Macho"
// @Success 201 {object} animals.Ref
// @Failure 400 {string} string "no elegible"
// @Failure 404 {string} string "animal not found"
// @Router /calendar/roster [post]
func addToRosterHandler(mgr *Manager, planner *Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rosterRequest
		if !decode(w, r, &req) {
			return
		}
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		ref, err := planner.EnlistSire(r.Context(), eng, req.MaleID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ref)
	}
}

// removeFromRosterHandler godoc
// @Summary Quitar macho del roster
// @Description Sus entradas quedan en la grilla.
// @Tags calendar
// @Param maleID path string true "Macho"
// @Success 204
// @Failure 404 {string} string "not found"
// @Router /calendar/roster/{maleID} [delete]
func removeFromRosterHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		if err := eng.RemoveFromRoster(r.Context(), chi.URLParam(r, "maleID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// setDefaultDurationHandler godoc
// @Summary Cambiar duración por defecto de las ventanas
// @Tags calendar
// @Accept json
// @Param payload body durationRequest true "Duración (1 a 7)"
// @Success 204
// @Failure 400 {string} string "validación"
// @Router /calendar/preferences/duration [put]
func setDefaultDurationHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req durationRequest
		if !decode(w, r, &req) {
			return
		}
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		if err := eng.SetDefaultDuration(r.Context(), req.Duration); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// setViewHandler godoc
// @Summary Cambiar mes seleccionado
// @Tags calendar
// @Accept json
// @Param payload body viewRequest true "Año y mes"
// @Success 204
// @Failure 400 {string} string "validación"
// @Router /calendar/view [put]
func setViewHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req viewRequest
		if !decode(w, r, &req) {
			return
		}
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		if err := eng.SetView(r.Context(), CalendarView{Year: req.Year, Month: time.Month(req.Month)}); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// planWindowHandler godoc
// @Summary Chequear un emparejamiento antes de crear la ventana
// @Description Roster, elegibilidad, reglas NG y doble reserva de la hembra. No modifica nada.
// @Tags calendar
// @Accept json
// @Produce json
// @Param payload body planRequest true "Par y fechas"
// @Success 200 {object} Proposal
// @Failure 400 {string} string "validación"
// @Failure 404 {string} string "animal not found"
// @Router /calendar/plan [post]
func planWindowHandler(mgr *Manager, planner *Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planRequest
		if !decode(w, r, &req) {
			return
		}
		in, ok := toPlanInput(w, req)
		if !ok {
			return
		}
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		prop, err := planner.Plan(r.Context(), eng, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prop)
	}
}

// createWindowHandler godoc
// @Summary Crear ventana de monta
// @Description Si hay bloqueos responde 409 con la propuesta; con override=true se crean igual los que lo admiten (regla NG, doble reserva).
// @Tags calendar
// @Accept json
// @Produce json
// @Param payload body planRequest true "Par, inicio y duración"
// @Success 201 {object} windowWriteResponse
// @Failure 400 {string} string "validación"
// @Failure 404 {string} string "animal not found"
// @Failure 409 {object} blockedResponse
// @Router /calendar/windows [post]
func createWindowHandler(mgr *Manager, planner *Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planRequest
		if !decode(w, r, &req) {
			return
		}
		in, ok := toPlanInput(w, req)
		if !ok {
			return
		}
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}

		win, prop, err := planner.Schedule(r.Context(), eng, in, req.Override)
		if err != nil {
			if errors.Is(err, ErrBlocked) {
				writeJSON(w, http.StatusConflict, blockedResponse{Error: err.Error(), Proposal: prop})
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, windowWriteResponse{Window: win, Proposal: &prop})
	}
}

// getWindowHandler godoc
// @Summary Ver la ventana que contiene una celda
// @Tags calendar
// @Produce json
// @Param maleID path string true "Macho"
// @Param date path string true "Día (YYYY-MM-DD)"
// @Success 200 {object} Window
// @Failure 404 {string} string "not found"
// @Router /calendar/windows/{maleID}/{date} [get]
func getWindowHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := entryKey(w, r)
		if !ok {
			return
		}
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		win, found := eng.Window(key)
		if !found {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, win)
	}
}

// reassignWindowHandler godoc
// @Summary Cambiar duración y/o hembra de una ventana
// @Description Borra la ventana y la vuelve a crear desde el mismo inicio.
// @Tags calendar
// @Accept json
// @Produce json
// @Param maleID path string true "Macho"
// @Param date path string true "Cualquier día de la ventana (YYYY-MM-DD)"
// @Param payload body reassignRequest true "Nueva duración / hembra"
// @Success 200 {object} windowWriteResponse
// @Failure 404 {string} string "not found"
// @Failure 409 {object} blockedResponse
// @Router /calendar/windows/{maleID}/{date} [patch]
func reassignWindowHandler(mgr *Manager, planner *Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := entryKey(w, r)
		if !ok {
			return
		}
		var req reassignRequest
		if !decode(w, r, &req) {
			return
		}
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}

		win, prop, err := planner.Reassign(r.Context(), eng, key, req.Duration, req.FemaleID, req.Override)
		if err != nil {
			if errors.Is(err, ErrBlocked) {
				writeJSON(w, http.StatusConflict, blockedResponse{Error: err.Error(), Proposal: prop})
				return
			}
			writeError(w, err)
			return
		}
		out := windowWriteResponse{Window: win}
		if prop.Male.ID != "" {
			out.Proposal = &prop
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// deleteWindowHandler godoc
// @Summary Eliminar ventana
// @Tags calendar
// @Param maleID path string true "Macho"
// @Param date path string true "Cualquier día de la ventana (YYYY-MM-DD)"
// @Success 204
// @Failure 404 {string} string "not found"
// @Router /calendar/windows/{maleID}/{date} [delete]
func deleteWindowHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := entryKey(w, r)
		if !ok {
			return
		}
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		if _, err := eng.DeleteWindow(r.Context(), key); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// convertToHistoryHandler godoc
// @Summary Pasar una ventana a historial sin resultado de preñez
// @Description Para éxito/fracaso usar /lifecycle/outcomes, que además crea el chequeo de preñez.
// @Tags calendar
// @Accept json
// @Produce json
// @Param maleID path string true "Macho"
// @Param date path string true "Cualquier día de la ventana (YYYY-MM-DD)"
// @Param payload body historyRequest false "Resultado libre (vacío = sin resultado)"
// @Success 200 {object} Window
// @Failure 404 {string} string "not found"
// @Router /calendar/windows/{maleID}/{date}/history [post]
func convertToHistoryHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := entryKey(w, r)
		if !ok {
			return
		}
		var req historyRequest
		if r.ContentLength != 0 {
			if !decode(w, r, &req) {
				return
			}
		}
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		win, err := eng.ConvertWindowToHistory(r.Context(), key, textclean.Clean(req.Result))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, win)
	}
}

// getMatingChecksHandler godoc
// @Summary Ver contador de chequeos de monta
// @Tags calendar
// @Produce json
// @Param male_id query string true "Macho"
// @Param female_id query string true "Hembra"
// @Param date query string true "Día (YYYY-MM-DD)"
// @Success 200 {object} checkResponse
// @Failure 400 {string} string "validación"
// @Router /calendar/checks [get]
func getMatingChecksHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		maleID := strings.TrimSpace(q.Get("male_id"))
		femaleID := strings.TrimSpace(q.Get("female_id"))
		d, err := civil.ParseDate(strings.TrimSpace(q.Get("date")))
		if maleID == "" || femaleID == "" || err != nil {
			http.Error(w, "male_id, female_id and date required", http.StatusBadRequest)
			return
		}
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, checkResponse{
			MaleID: maleID, FemaleID: femaleID, Date: d,
			Count: eng.MatingChecks(maleID, femaleID, d),
		})
	}
}

// recordMatingCheckHandler godoc
// @Summary Registrar un chequeo de monta
// @Description Suma uno al contador del día; no hay tope ni reseteo.
// @Tags calendar
// @Accept json
// @Produce json
// @Param payload body checkRequest true "Par y día"
// @Success 200 {object} checkResponse
// @Failure 400 {string} string "validación"
// @Router /calendar/checks [post]
func recordMatingCheckHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkRequest
		if !decode(w, r, &req) {
			return
		}
		d, err := civil.ParseDate(strings.TrimSpace(req.Date))
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		eng, ok := engineFor(w, r, mgr)
		if !ok {
			return
		}
		n, err := eng.RecordMatingCheck(r.Context(), req.MaleID, req.FemaleID, d)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, checkResponse{MaleID: req.MaleID, FemaleID: req.FemaleID, Date: d, Count: n})
	}
}

// EngineFor resuelve el motor del operador/dispositivo del request.
// Exportado para que lifecycle use el mismo scope.
func EngineFor(w http.ResponseWriter, r *http.Request, mgr *Manager) (*Engine, bool) {
	return engineFor(w, r, mgr)
}

func engineFor(w http.ResponseWriter, r *http.Request, mgr *Manager) (*Engine, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.Scope()) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	eng, err := mgr.Engine(r.Context(), claims.Scope())
	if err != nil {
		http.Error(w, "local store unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	return eng, true
}

func entryKey(w http.ResponseWriter, r *http.Request) (EntryKey, bool) {
	maleID := strings.TrimSpace(chi.URLParam(r, "maleID"))
	d, err := civil.ParseDate(chi.URLParam(r, "date"))
	if maleID == "" || err != nil {
		http.Error(w, "invalid entry key", http.StatusBadRequest)
		return EntryKey{}, false
	}
	return EntryKey{MaleID: maleID, Date: d}, true
}

func toPlanInput(w http.ResponseWriter, req planRequest) (PlanInput, bool) {
	start, err := civil.ParseDate(strings.TrimSpace(req.Start))
	if err != nil {
		http.Error(w, "start must be YYYY-MM-DD", http.StatusBadRequest)
		return PlanInput{}, false
	}
	return PlanInput{MaleID: req.MaleID, FemaleID: req.FemaleID, Start: start, Duration: req.Duration}, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, animals.ErrNotFound):
		http.Error(w, "animal not found", http.StatusNotFound)
	case errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ngrules.ErrRemote):
		http.Error(w, "remote error", http.StatusBadGateway)
	case errors.Is(err, ErrLocalStore):
		http.Error(w, "local store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

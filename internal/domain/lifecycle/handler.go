package lifecycle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/domain/gaps"
	"cattery-breeding/internal/domain/schedule"
	"cattery-breeding/internal/platform/textclean"
	"cattery-breeding/internal/platform/validate"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, mgr *schedule.Manager) {
	r.Post("/lifecycle/outcomes", recordOutcomeHandler(svc, mgr))

	r.Route("/pregnancy-checks", func(cr chi.Router) {
		cr.Get("/", listChecksHandler(svc))
		cr.Post("/refresh", refreshHandler(svc))
		cr.Post("/{checkID}/confirm", confirmPregnancyHandler(svc))
		cr.Post("/{checkID}/deny", denyPregnancyHandler(svc))
	})

	r.Route("/birth-plans", func(pr chi.Router) {
		pr.Get("/", listPlansHandler(svc))
		pr.Post("/{planID}/birth", recordBirthHandler(svc))
		pr.Delete("/{planID}", cancelPlanHandler(svc))
		pr.Post("/{planID}/complete", completePlanHandler(svc))
		pr.Get("/{planID}/dispositions", listDispositionsHandler(svc))
	})

	r.Get("/kittens/raising", raisingHandler(svc))
	r.Post("/kittens/{kittenID}/disposition", disposeKittenHandler(svc))
}

// -------------------------
// Requests / responses
// -------------------------

type outcomeRequest struct {
	MaleID  string `json:"male_id" validate:"required"`
	Date    string `json:"date" validate:"required"` // YYYY-MM-DD, último día de la ventana
	Outcome string `json:"outcome" validate:"required,oneof=success failure"`
}

type outcomeResponse struct {
	Window schedule.Window `json:"window"`
	Check  *checkResponse  `json:"pregnancy_check,omitempty"`
}

type confirmRequest struct {
	ExpectedKittens *int    `json:"expected_kittens" validate:"omitempty,min=0,max=20"`
	Notes           *string `json:"notes" validate:"omitempty,max=2000"`
}

type confirmResponse struct {
	Plan    planResponse `json:"birth_plan"`
	Warning string       `json:"warning,omitempty"`
}

type birthRequest struct {
	BirthDate  string  `json:"birth_date" validate:"required"`
	BirthCount *int    `json:"birth_count" validate:"required,min=0,max=20"`
	DeathCount int     `json:"death_count" validate:"min=0,max=20"`
	Notes      *string `json:"notes" validate:"omitempty,max=2000"`
}

type birthResponse struct {
	Plan      planResponse        `json:"birth_plan"`
	LiveCount int                 `json:"live_count"`
	Kittens   []kittenRefResponse `json:"kittens"`
	Warning   string              `json:"warning,omitempty"`
	Gaps      []gaps.Gap          `json:"not_evaluated"`
}

type kittenRefResponse struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Gender animals.Gender `json:"gender"`
}

type saleRequest struct {
	Buyer    string `json:"buyer" validate:"max=200"`
	Price    *int64 `json:"price" validate:"omitempty,min=0"`
	SaleDate string `json:"sale_date"`
	Notes    string `json:"notes" validate:"max=2000"`
}

type disposeRequest struct {
	Name              string       `json:"name" validate:"max=120"`
	Gender            string       `json:"gender" validate:"omitempty,oneof=MALE FEMALE"`
	Disposition       string       `json:"disposition" validate:"required,oneof=TRAINING SALE DECEASED"`
	TrainingStartDate string       `json:"training_start_date"`
	Sale              *saleRequest `json:"sale"`
	DeathDate         string       `json:"death_date"`
	DeathReason       string       `json:"death_reason" validate:"max=500"`
	Notes             string       `json:"notes" validate:"max=2000"`
}

type checkResponse struct {
	ID         string          `json:"id"`
	MotherID   string          `json:"mother_id"`
	FatherID   string          `json:"father_id"`
	MatingDate *civil.Date     `json:"mating_date,omitempty" swaggertype:"string"`
	CheckDate  civil.Date      `json:"check_date" swaggertype:"string"`
	Status     PregnancyStatus `json:"status"`
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type planResponse struct {
	ID                string      `json:"id"`
	MotherID          string      `json:"mother_id"`
	FatherID          string      `json:"father_id"`
	MatingDate        *civil.Date `json:"mating_date,omitempty" swaggertype:"string"`
	ExpectedBirthDate civil.Date  `json:"expected_birth_date" swaggertype:"string"`
	ActualBirthDate   *civil.Date `json:"actual_birth_date,omitempty" swaggertype:"string"`
	Status            BirthStatus `json:"status"`
	Stage             string      `json:"stage"`
	ExpectedKittens   *int        `json:"expected_kittens,omitempty"`
	ActualKittens     *int        `json:"actual_kittens,omitempty"`
	Notes             string      `json:"notes,omitempty"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

type saleResponse struct {
	Buyer    string      `json:"buyer,omitempty"`
	Price    *int64      `json:"price,omitempty"`
	SaleDate *civil.Date `json:"sale_date,omitempty" swaggertype:"string"`
	Notes    string      `json:"notes,omitempty"`
}

type dispositionResponse struct {
	ID                string         `json:"id"`
	BirthRecordID     string         `json:"birth_record_id"`
	KittenID          string         `json:"kitten_id"`
	Name              string         `json:"name"`
	Gender            animals.Gender `json:"gender"`
	Disposition       Disposition    `json:"disposition"`
	TrainingStartDate *civil.Date    `json:"training_start_date,omitempty" swaggertype:"string"`
	Sale              *saleResponse  `json:"sale,omitempty"`
	DeathDate         *civil.Date    `json:"death_date,omitempty" swaggertype:"string"`
	DeathReason       string         `json:"death_reason,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

type raisingKittenResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Gender      animals.Gender       `json:"gender"`
	BirthDate   *civil.Date          `json:"birth_date,omitempty" swaggertype:"string"`
	AgeMonths   int                  `json:"age_months"`
	Disposition *dispositionResponse `json:"disposition,omitempty"`
}

type raisingGroupResponse struct {
	Plan    planResponse            `json:"birth_plan"`
	Mother  animals.Ref             `json:"mother"`
	Kittens []raisingKittenResponse `json:"kittens"`
}

// -------------------------
// Handlers
// -------------------------

// recordOutcomeHandler godoc
// @Summary Marcar resultado de una ventana de monta
// @Description Solo el último día de la ventana. success crea un chequeo de preñez a 21 días del inicio y pasa la ventana a historial; failure solo la pasa a historial.
// @Tags lifecycle
// @Accept json
// @Produce json
// @Param X-Device-ID header string false "Dispositivo"
// @Param payload body outcomeRequest true "Celda y resultado"
// @Success 200 {object} outcomeResponse
// @Failure 400 {string} string "validación"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "invalid state"
// @Failure 502 {string} string "remote error"
// @Router /lifecycle/outcomes [post]
func recordOutcomeHandler(svc *Service, mgr *schedule.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req outcomeRequest
		if !decode(w, r, &req) {
			return
		}
		date, ok := parseDate(w, req.Date, "date")
		if !ok {
			return
		}
		eng, ok := schedule.EngineFor(w, r, mgr)
		if !ok {
			return
		}

		key := schedule.EntryKey{MaleID: strings.TrimSpace(req.MaleID), Date: date}
		res, err := svc.RecordOutcome(r.Context(), eng, key, Outcome(req.Outcome))
		if err != nil {
			writeError(w, err)
			return
		}
		out := outcomeResponse{Window: res.Window}
		if res.Check != nil {
			c := toCheckResponse(*res.Check)
			out.Check = &c
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// listChecksHandler godoc
// @Summary Listar chequeos de preñez
// @Tags lifecycle
// @Produce json
// @Success 200 {array} checkResponse
// @Failure 502 {string} string "remote error"
// @Router /pregnancy-checks [get]
func listChecksHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListChecks(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]checkResponse, 0, len(items))
		for _, c := range items {
			out = append(out, toCheckResponse(c))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// refreshHandler godoc
// @Summary Recargar chequeos y planes desde el remoto
// @Description Descarta la vista local y la vuelve a leer. Devuelve los chequeos.
// @Tags lifecycle
// @Produce json
// @Success 200 {array} checkResponse
// @Failure 502 {string} string "remote error"
// @Router /pregnancy-checks/refresh [post]
func refreshHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Refresh(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		listChecksHandler(svc)(w, r)
	}
}

// confirmPregnancyHandler godoc
// @Summary Confirmar preñez
// @Description Crea el plan de parto (45 días después del chequeo) y borra el chequeo. Si el borrado falla el plan se conserva y la respuesta trae warning.
// @Tags lifecycle
// @Accept json
// @Produce json
// @Param checkID path string true "Chequeo"
// @Param payload body confirmRequest false "Gatitos esperados y notas"
// @Success 201 {object} confirmResponse
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "invalid state"
// @Failure 502 {string} string "remote error"
// @Router /pregnancy-checks/{checkID}/confirm [post]
func confirmPregnancyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmRequest
		if r.ContentLength != 0 && !decode(w, r, &req) {
			return
		}

		in := ConfirmInput{ExpectedKittens: req.ExpectedKittens}
		if n := textclean.CleanPtr(req.Notes); n != nil {
			in.Notes = *n
		}

		res, err := svc.ConfirmPregnancy(r.Context(), chi.URLParam(r, "checkID"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		out := confirmResponse{Plan: toPlanResponse(res.Plan)}
		if res.CleanupErr != nil {
			out.Warning = res.CleanupErr.Error()
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

// denyPregnancyHandler godoc
// @Summary Negar preñez
// @Description Borra el chequeo. No queda registro.
// @Tags lifecycle
// @Param checkID path string true "Chequeo"
// @Success 204
// @Failure 404 {string} string "not found"
// @Failure 502 {string} string "remote error"
// @Router /pregnancy-checks/{checkID}/deny [post]
func denyPregnancyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DenyPregnancy(r.Context(), chi.URLParam(r, "checkID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// listPlansHandler godoc
// @Summary Listar planes de parto
// @Tags lifecycle
// @Produce json
// @Param active query bool false "Solo nacidos sin completar"
// @Param mother_id query string false "Madre"
// @Success 200 {array} planResponse
// @Failure 502 {string} string "remote error"
// @Router /birth-plans [get]
func listPlansHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := PlanFilter{
			RaisingOnly: q.Get("active") == "true",
			MotherID:    strings.TrimSpace(q.Get("mother_id")),
		}
		items, err := svc.ListPlans(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]planResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPlanResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// recordBirthHandler godoc
// @Summary Registrar parto
// @Description Pasa el plan a BORN y da de alta birth_count - death_count gatitos. Si alguna alta falla el plan queda BORN y la respuesta trae warning.
// @Tags lifecycle
// @Accept json
// @Produce json
// @Param planID path string true "Plan"
// @Param payload body birthRequest true "Fecha y conteos"
// @Success 200 {object} birthResponse
// @Failure 400 {string} string "validación"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "invalid state"
// @Failure 502 {string} string "remote error"
// @Router /birth-plans/{planID}/birth [post]
func recordBirthHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req birthRequest
		if !decode(w, r, &req) {
			return
		}
		bd, ok := parseDate(w, req.BirthDate, "birth_date")
		if !ok {
			return
		}

		res, err := svc.RecordBirth(r.Context(), chi.URLParam(r, "planID"), BirthInput{
			BirthDate:  bd,
			BirthCount: *req.BirthCount,
			DeathCount: req.DeathCount,
			Notes:      textclean.CleanPtr(req.Notes),
		})
		if err != nil {
			writeError(w, err)
			return
		}

		out := birthResponse{
			Plan:      toPlanResponse(res.Plan),
			LiveCount: res.LiveCount,
			Kittens:   make([]kittenRefResponse, 0, len(res.Kittens)),
			Gaps:      res.Gaps,
		}
		for _, k := range res.Kittens {
			out.Kittens = append(out.Kittens, kittenRefResponse{ID: k.ID, Name: k.Name, Gender: k.Gender})
		}
		if res.KittenErr != nil {
			out.Warning = res.KittenErr.Error()
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// cancelPlanHandler godoc
// @Summary Cancelar plan de parto (no hubo parto)
// @Tags lifecycle
// @Param planID path string true "Plan"
// @Success 204
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "invalid state"
// @Router /birth-plans/{planID} [delete]
func cancelPlanHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CancelBirthPlan(r.Context(), chi.URLParam(r, "planID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// completePlanHandler godoc
// @Summary Completar crianza
// @Description Irreversible. Los gatitos dejan de aparecer en la vista de crianza.
// @Tags lifecycle
// @Produce json
// @Param planID path string true "Plan"
// @Success 200 {object} planResponse
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "invalid state"
// @Router /birth-plans/{planID}/complete [post]
func completePlanHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.CompleteBirth(r.Context(), chi.URLParam(r, "planID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPlanResponse(p))
	}
}

// listDispositionsHandler godoc
// @Summary Disposiciones de un parto
// @Tags lifecycle
// @Produce json
// @Param planID path string true "Plan"
// @Success 200 {array} dispositionResponse
// @Failure 404 {string} string "not found"
// @Router /birth-plans/{planID}/dispositions [get]
func listDispositionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListDispositions(r.Context(), chi.URLParam(r, "planID"))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]dispositionResponse, 0, len(items))
		for _, d := range items {
			out = append(out, toDispositionResponse(d))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// raisingHandler godoc
// @Summary Gatitos en crianza
// @Description Por cada parto BORN sin completar, los hijos de la madre con 3 meses o menos.
// @Tags lifecycle
// @Produce json
// @Success 200 {array} raisingGroupResponse
// @Router /kittens/raising [get]
func raisingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := svc.Raising(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]raisingGroupResponse, 0, len(groups))
		for _, g := range groups {
			gr := raisingGroupResponse{
				Plan:    toPlanResponse(g.Plan),
				Mother:  g.Mother,
				Kittens: make([]raisingKittenResponse, 0, len(g.Kittens)),
			}
			for _, k := range g.Kittens {
				kr := raisingKittenResponse{
					ID:        k.Animal.ID,
					Name:      k.Animal.Name,
					Gender:    k.Animal.Gender,
					BirthDate: k.Animal.BirthDate,
					AgeMonths: k.AgeMonths,
				}
				if k.Disposition != nil {
					d := toDispositionResponse(*k.Disposition)
					kr.Disposition = &d
				}
				gr.Kittens = append(gr.Kittens, kr)
			}
			out = append(out, gr)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// disposeKittenHandler godoc
// @Summary Registrar destino de un gatito
// @Description TRAINING, SALE o DECEASED. Requiere un parto BORN de la madre; solo se aceptan los campos del destino elegido.
// @Tags lifecycle
// @Accept json
// @Produce json
// @Param kittenID path string true "Gatito"
// @Param payload body disposeRequest true "Destino"
// @Success 201 {object} dispositionResponse
// @Failure 400 {string} string "validación"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "invalid state"
// @Router /kittens/{kittenID}/disposition [post]
func disposeKittenHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req disposeRequest
		if !decode(w, r, &req) {
			return
		}

		in := DisposeInput{
			KittenID:    chi.URLParam(r, "kittenID"),
			Name:        textclean.Clean(req.Name),
			Gender:      animals.Gender(req.Gender),
			Disposition: Disposition(req.Disposition),
			DeathReason: textclean.Clean(req.DeathReason),
			Notes:       textclean.Clean(req.Notes),
		}

		var ok bool
		if in.TrainingStartDate, ok = parseOptionalDate(w, req.TrainingStartDate, "training_start_date"); !ok {
			return
		}
		if in.DeathDate, ok = parseOptionalDate(w, req.DeathDate, "death_date"); !ok {
			return
		}
		if req.Sale != nil {
			sale := SaleInfo{
				Buyer: textclean.Clean(req.Sale.Buyer),
				Price: req.Sale.Price,
				Notes: textclean.Clean(req.Sale.Notes),
			}
			if sale.SaleDate, ok = parseOptionalDate(w, req.Sale.SaleDate, "sale_date"); !ok {
				return
			}
			in.Sale = &sale
		}

		d, err := svc.DisposeKitten(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDispositionResponse(d))
	}
}

// -------------------------
// Helpers
// -------------------------

func toCheckResponse(c PregnancyCheck) checkResponse {
	return checkResponse{
		ID:         c.ID,
		MotherID:   c.MotherID,
		FatherID:   c.FatherID,
		MatingDate: c.MatingDate,
		CheckDate:  c.CheckDate,
		Status:     c.Status,
		Notes:      c.Notes,
		CreatedAt:  c.CreatedAt,
	}
}

func toPlanResponse(p BirthPlan) planResponse {
	return planResponse{
		ID:                p.ID,
		MotherID:          p.MotherID,
		FatherID:          p.FatherID,
		MatingDate:        p.MatingDate,
		ExpectedBirthDate: p.ExpectedBirthDate,
		ActualBirthDate:   p.ActualBirthDate,
		Status:            p.Status,
		Stage:             p.Stage().String(),
		ExpectedKittens:   p.ExpectedKittens,
		ActualKittens:     p.ActualKittens,
		Notes:             p.Notes,
		CompletedAt:       p.CompletedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toDispositionResponse(d KittenDisposition) dispositionResponse {
	out := dispositionResponse{
		ID:                d.ID,
		BirthRecordID:     d.BirthRecordID,
		KittenID:          d.KittenID,
		Name:              d.Name,
		Gender:            d.Gender,
		Disposition:       d.Disposition,
		TrainingStartDate: d.TrainingStartDate,
		DeathDate:         d.DeathDate,
		DeathReason:       d.DeathReason,
		Notes:             d.Notes,
		CreatedAt:         d.CreatedAt,
	}
	if d.Sale != nil {
		out.Sale = &saleResponse{
			Buyer:    d.Sale.Buyer,
			Price:    d.Sale.Price,
			SaleDate: d.Sale.SaleDate,
			Notes:    d.Sale.Notes,
		}
	}
	return out
}

func parseDate(w http.ResponseWriter, raw, field string) (civil.Date, bool) {
	d, err := civil.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		http.Error(w, field+" must be YYYY-MM-DD", http.StatusBadRequest)
		return civil.Date{}, false
	}
	return d, true
}

func parseOptionalDate(w http.ResponseWriter, raw, field string) (*civil.Date, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	d, ok := parseDate(w, raw, field)
	if !ok {
		return nil, false
	}
	return &d, true
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
	case errors.Is(err, ErrNotFound), errors.Is(err, schedule.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, animals.ErrNotFound):
		http.Error(w, "animal not found", http.StatusNotFound)
	case errors.Is(err, ErrBadState), errors.Is(err, schedule.ErrBadState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrRemote):
		http.Error(w, "remote error", http.StatusBadGateway)
	case errors.Is(err, schedule.ErrLocalStore):
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

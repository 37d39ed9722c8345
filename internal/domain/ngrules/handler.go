package ngrules

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/platform/textclean"
	"cattery-breeding/internal/platform/validate"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/ng-rules", func(nr chi.Router) {
		nr.Get("/", listRulesHandler(svc))
		nr.Post("/", createRuleHandler(svc))
		nr.Post("/refresh", refreshRulesHandler(svc))

		// Chequeo de compatibilidad de un par (lectura, no persiste nada)
		nr.Get("/evaluate", evaluatePairHandler(svc))

		nr.Patch("/{ruleID}", updateRuleHandler(svc))
		nr.Post("/{ruleID}/active", setActiveHandler(svc))
		nr.Delete("/{ruleID}", deleteRuleHandler(svc))
	})
}

type createRuleRequest struct {
	Name             string   `json:"name" validate:"required,max=120"`
	Type             RuleType `json:"type" validate:"required,oneof=TAG_COMBINATION INDIVIDUAL_PROHIBITION GENERATION_LIMIT"`
	Active           *bool    `json:"active"`
	Description      string   `json:"description" validate:"max=2000"`
	MaleConditions   []string `json:"male_conditions"`
	FemaleConditions []string `json:"female_conditions"`
	MaleNames        []string `json:"male_names"`
	FemaleNames      []string `json:"female_names"`
	GenerationLimit  *int     `json:"generation_limit" validate:"omitempty,min=1"`
}

type updateRuleRequest struct {
	Name             *string   `json:"name" validate:"omitempty,max=120"`
	Type             *RuleType `json:"type" validate:"omitempty,oneof=TAG_COMBINATION INDIVIDUAL_PROHIBITION GENERATION_LIMIT"`
	Active           *bool     `json:"active"`
	Description      *string   `json:"description" validate:"omitempty,max=2000"`
	MaleConditions   *[]string `json:"male_conditions"`
	FemaleConditions *[]string `json:"female_conditions"`
	MaleNames        *[]string `json:"male_names"`
	FemaleNames      *[]string `json:"female_names"`
	GenerationLimit  *int      `json:"generation_limit" validate:"omitempty,min=1"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

type ruleResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             RuleType  `json:"type"`
	Active           bool      `json:"active"`
	Description      string    `json:"description,omitempty"`
	MaleConditions   []string  `json:"male_conditions,omitempty"`
	FemaleConditions []string  `json:"female_conditions,omitempty"`
	MaleNames        []string  `json:"male_names,omitempty"`
	FemaleNames      []string  `json:"female_names,omitempty"`
	GenerationLimit  *int      `json:"generation_limit,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type verdictResponse struct {
	Male    animals.Ref    `json:"male"`
	Female  animals.Ref    `json:"female"`
	Flagged bool           `json:"flagged"`
	Rule    *ruleResponse  `json:"rule,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Gaps    []ruleResponse `json:"not_evaluated"`
}

// listRulesHandler godoc
// @Summary Listar reglas NG
// @Tags ng-rules
// @Produce json
// @Param active query bool false "Solo reglas activas"
// @Success 200 {array} ruleResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 502 {string} string "remote error"
// @Router /ng-rules [get]
func listRulesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), r.URL.Query().Get("active") == "true")
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]ruleResponse, 0, len(items))
		for _, it := range items {
			out = append(out, toRuleResponse(it))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// refreshRulesHandler godoc
// @Summary Recargar reglas NG desde el remoto
// @Tags ng-rules
// @Produce json
// @Success 200 {array} ruleResponse
// @Failure 502 {string} string "remote error"
// @Router /ng-rules/refresh [post]
func refreshRulesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Refresh(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		listRulesHandler(svc)(w, r)
	}
}

// createRuleHandler godoc
// @Summary Crear regla NG
// @Description El payload debe corresponder al tipo: condiciones de tags, nombres, o límite de generación.
// @Tags ng-rules
// @Accept json
// @Produce json
// @Param payload body createRuleRequest true "Regla"
// @Success 201 {object} ruleResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 502 {string} string "remote error (el cambio local se revierte)"
// @Router /ng-rules [post]
func createRuleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		active := true
		if req.Active != nil {
			active = *req.Active
		}

		rule, err := svc.Create(r.Context(), CreateInput{
			Name:             textclean.Clean(req.Name),
			Type:             req.Type,
			Active:           active,
			Description:      textclean.Clean(req.Description),
			MaleConditions:   req.MaleConditions,
			FemaleConditions: req.FemaleConditions,
			MaleNames:        req.MaleNames,
			FemaleNames:      req.FemaleNames,
			GenerationLimit:  req.GenerationLimit,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRuleResponse(rule))
	}
}

// updateRuleHandler godoc
// @Summary Editar regla NG
// @Description Actualización parcial; los campos ausentes no se tocan.
// @Tags ng-rules
// @Accept json
// @Produce json
// @Param ruleID path string true "Rule ID"
// @Param payload body updateRuleRequest true "Campos a modificar"
// @Success 200 {object} ruleResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 404 {string} string "not found"
// @Failure 502 {string} string "remote error"
// @Router /ng-rules/{ruleID} [patch]
func updateRuleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		rule, err := svc.Update(r.Context(), chi.URLParam(r, "ruleID"), Patch{
			Name:             textclean.CleanPtr(req.Name),
			Type:             req.Type,
			Active:           req.Active,
			Description:      textclean.CleanPtr(req.Description),
			MaleConditions:   req.MaleConditions,
			FemaleConditions: req.FemaleConditions,
			MaleNames:        req.MaleNames,
			FemaleNames:      req.FemaleNames,
			GenerationLimit:  req.GenerationLimit,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRuleResponse(rule))
	}
}

// setActiveHandler godoc
// @Summary Activar / desactivar regla NG
// @Tags ng-rules
// @Accept json
// @Produce json
// @Param ruleID path string true "Rule ID"
// @Param payload body setActiveRequest true "Nuevo estado"
// @Success 200 {object} ruleResponse
// @Failure 404 {string} string "not found"
// @Failure 502 {string} string "remote error"
// @Router /ng-rules/{ruleID}/active [post]
func setActiveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setActiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		rule, err := svc.SetActive(r.Context(), chi.URLParam(r, "ruleID"), req.Active)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRuleResponse(rule))
	}
}

// deleteRuleHandler godoc
// @Summary Eliminar regla NG
// @Tags ng-rules
// @Param ruleID path string true "Rule ID"
// @Success 204
// @Failure 404 {string} string "not found"
// @Failure 502 {string} string "remote error"
// @Router /ng-rules/{ruleID} [delete]
func deleteRuleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "ruleID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// evaluatePairHandler godoc
// @Summary Evaluar compatibilidad de un par
// @Description Devuelve la primera regla activa que marca el par (si hay) y las reglas que no se pudieron evaluar.
// @Tags ng-rules
// @Produce json
// @Param male_id query string true "Macho"
// @Param female_id query string true "Hembra"
// @Success 200 {object} verdictResponse
// @Failure 400 {string} string "male_id and female_id required"
// @Failure 404 {string} string "animal not found"
// @Router /ng-rules/evaluate [get]
func evaluatePairHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maleID := strings.TrimSpace(r.URL.Query().Get("male_id"))
		femaleID := strings.TrimSpace(r.URL.Query().Get("female_id"))
		if maleID == "" || femaleID == "" {
			http.Error(w, "male_id and female_id required", http.StatusBadRequest)
			return
		}

		v, male, female, err := svc.EvaluateIDs(r.Context(), maleID, femaleID)
		if err != nil {
			writeError(w, err)
			return
		}

		out := verdictResponse{
			Male:    male.Ref(),
			Female:  female.Ref(),
			Flagged: v.Flagged,
			Reason:  v.Reason,
			Gaps:    make([]ruleResponse, 0, len(v.Gaps)),
		}
		if v.Matched != nil {
			rr := toRuleResponse(*v.Matched)
			out.Rule = &rr
		}
		for _, g := range v.Gaps {
			out.Gaps = append(out.Gaps, toRuleResponse(g))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, animals.ErrNotFound):
		http.Error(w, "animal not found", http.StatusNotFound)
	case errors.Is(err, ErrRemote):
		http.Error(w, "remote error", http.StatusBadGateway)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toRuleResponse(r Rule) ruleResponse {
	return ruleResponse{
		ID:               r.ID,
		Name:             r.Name,
		Type:             r.Type,
		Active:           r.Active,
		Description:      r.Description,
		MaleConditions:   r.MaleConditions,
		FemaleConditions: r.FemaleConditions,
		MaleNames:        r.MaleNames,
		FemaleNames:      r.FemaleNames,
		GenerationLimit:  r.GenerationLimit,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

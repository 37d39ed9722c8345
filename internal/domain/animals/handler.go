package animals

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cattery-breeding/internal/platform/validate"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/animals", func(ar chi.Router) {
		ar.Post("/", createAnimalHandler(svc))
		ar.Get("/", listAnimalsHandler(svc))

		// Vistas de elegibilidad para el calendario
		ar.Get("/eligible/sires", eligibleSiresHandler(svc))
		ar.Get("/eligible/dams", availableDamsHandler(svc))

		ar.Get("/{animalID}", getAnimalHandler(svc))
	})
}

type createAnimalRequest struct {
	Name      string   `json:"name" validate:"required"`
	Gender    Gender   `json:"gender" validate:"required,oneof=MALE FEMALE"`
	BirthDate string   `json:"birth_date"` // YYYY-MM-DD opcional
	Tags      []string `json:"tags"`
	IsInHouse bool     `json:"is_in_house"`
	MotherID  string   `json:"mother_id"`
	FatherID  string   `json:"father_id"`
}

type animalResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Gender    Gender      `json:"gender"`
	BirthDate *civil.Date `json:"birth_date,omitempty" swaggertype:"string"`
	AgeMonths int         `json:"age_months"`
	Tags      []string    `json:"tags"`
	IsInHouse bool        `json:"is_in_house"`
	MotherID  string      `json:"mother_id,omitempty"`
	FatherID  string      `json:"father_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type eligibleResponse struct {
	Animal      animalResponse `json:"animal"`
	Eligibility Eligibility    `json:"eligibility"`
}

// createAnimalHandler godoc
// @Summary Registrar animal
// @Description Alta de un animal en el registro (uso principal: ejemplares nuevos o importados; los gatitos se crean desde el registro de parto).
// @Tags animals
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID del operador"
// @Param payload body createAnimalRequest true "Datos del animal; birth_date en formato YYYY-MM-DD"
// @Success 201 {object} animalResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Router /animals [post]
func createAnimalHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAnimalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var bd *civil.Date
		if strings.TrimSpace(req.BirthDate) != "" {
			d, err := civil.ParseDate(strings.TrimSpace(req.BirthDate))
			if err != nil {
				http.Error(w, "birth_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			bd = &d
		}

		a, err := svc.Create(r.Context(), CreateInput{
			Name:      req.Name,
			Gender:    req.Gender,
			BirthDate: bd,
			Tags:      req.Tags,
			IsInHouse: req.IsInHouse,
			MotherID:  req.MotherID,
			FatherID:  req.FatherID,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, toAnimalResponse(a, svc.Today()))
	}
}

// listAnimalsHandler godoc
// @Summary Listar animales
// @Tags animals
// @Produce json
// @Param gender query string false "MALE o FEMALE"
// @Param in_house query bool false "Solo animales en casa"
// @Param mother_id query string false "Hijos de una madre"
// @Success 200 {array} animalResponse
// @Failure 401 {string} string "unauthorized"
// @Router /animals [get]
func listAnimalsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{
			Gender:      Gender(strings.ToUpper(strings.TrimSpace(q.Get("gender")))),
			InHouseOnly: q.Get("in_house") == "true",
			MotherID:    strings.TrimSpace(q.Get("mother_id")),
		}
		if filter.Gender != "" && !filter.Gender.Valid() {
			http.Error(w, "gender must be MALE or FEMALE", http.StatusBadRequest)
			return
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		today := svc.Today()
		out := make([]animalResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toAnimalResponse(a, today))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getAnimalHandler godoc
// @Summary Obtener animal
// @Tags animals
// @Produce json
// @Param animalID path string true "ID del animal"
// @Success 200 {object} animalResponse
// @Failure 404 {string} string "animal not found"
// @Router /animals/{animalID} [get]
func getAnimalHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.GetByID(r.Context(), chi.URLParam(r, "animalID"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "animal not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toAnimalResponse(a, svc.Today()))
	}
}

// eligibleSiresHandler godoc
// @Summary Machos elegibles para el roster
// @Description Machos en casa con al menos 10 meses.
// @Tags animals
// @Produce json
// @Success 200 {array} eligibleResponse
// @Router /animals/eligible/sires [get]
func eligibleSiresHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.EligibleSires(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toEligibleResponses(items, svc.Today(), SireEligibility))
	}
}

// availableDamsHandler godoc
// @Summary Hembras disponibles para una ventana nueva
// @Description Hembras en casa con al menos 11 meses. El descanso post-parto (65 días) figura como check no implementado.
// @Tags animals
// @Produce json
// @Success 200 {array} eligibleResponse
// @Router /animals/eligible/dams [get]
func availableDamsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.AvailableDams(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toEligibleResponses(items, svc.Today(), DamEligibility))
	}
}

func toEligibleResponses(items []Animal, today civil.Date, gate func(Animal, civil.Date) Eligibility) []eligibleResponse {
	out := make([]eligibleResponse, 0, len(items))
	for _, a := range items {
		out = append(out, eligibleResponse{
			Animal:      toAnimalResponse(a, today),
			Eligibility: gate(a, today),
		})
	}
	return out
}

func toAnimalResponse(a Animal, today civil.Date) animalResponse {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return animalResponse{
		ID:        a.ID,
		Name:      a.Name,
		Gender:    a.Gender,
		BirthDate: a.BirthDate,
		AgeMonths: AgeInMonths(a.BirthDate, today),
		Tags:      tags,
		IsInHouse: a.IsInHouse,
		MotherID:  a.MotherID,
		FatherID:  a.FatherID,
		CreatedAt: a.CreatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package animals

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// Umbrales de política. Fijos por ahora; si se vuelven configurables,
// pasarlos por el Service.
const (
	MaleRosterMinMonths    = 10
	FemalePairingMinMonths = 11
	RaisingMaxMonths       = 3

	// Descanso post-parto documentado pero no evaluado (ver CheckPostpartumRest).
	PostpartumRestDays = 65
)

type Check string

const (
	CheckGender         Check = "gender"
	CheckInHouse        Check = "in_house"
	CheckMinAge         Check = "min_age"
	CheckPostpartumRest Check = "postpartum_rest"
)

type CheckStatus string

const (
	CheckPassed         CheckStatus = "passed"
	CheckFailed         CheckStatus = "failed"
	CheckNotImplemented CheckStatus = "not_implemented"
)

type CheckResult struct {
	Check  Check       `json:"check"`
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// Eligibility es el resultado de evaluar un animal contra un gate.
// Los checks NotImplemented no bloquean, pero quedan visibles.
type Eligibility struct {
	Eligible bool          `json:"eligible"`
	Checks   []CheckResult `json:"checks"`
}

// Gaps devuelve los checks que existen en la política pero no se evalúan.
func (e Eligibility) Gaps() []Check {
	out := make([]Check, 0)
	for _, c := range e.Checks {
		if c.Status == CheckNotImplemented {
			out = append(out, c.Check)
		}
	}
	return out
}

// Failed devuelve los checks que bloquean.
func (e Eligibility) Failed() []CheckResult {
	out := make([]CheckResult, 0)
	for _, c := range e.Checks {
		if c.Status == CheckFailed {
			out = append(out, c)
		}
	}
	return out
}

// SireEligibility: un macho entra al roster con >=10 meses y estando en casa.
func SireEligibility(a Animal, now civil.Date) Eligibility {
	return evaluate(
		genderCheck(a, GenderMale),
		inHouseCheck(a),
		minAgeCheck(a, now, MaleRosterMinMonths),
	)
}

// DamEligibility: una hembra puede emparejarse con >=11 meses y estando en casa.
// El descanso de 65 días desde el último parto no se evalúa.
func DamEligibility(a Animal, now civil.Date) Eligibility {
	return evaluate(
		genderCheck(a, GenderFemale),
		inHouseCheck(a),
		minAgeCheck(a, now, FemalePairingMinMonths),
		CheckResult{
			Check:  CheckPostpartumRest,
			Status: CheckNotImplemented,
			Detail: fmt.Sprintf("%d days since last birth is not evaluated", PostpartumRestDays),
		},
	)
}

// WithinRaisingAge indica si el gatito sigue en edad de crianza (<=3 meses).
// La condición sobre el plan de parto la resuelve lifecycle.
func WithinRaisingAge(a Animal, now civil.Date) bool {
	return AgeInMonths(a.BirthDate, now) <= RaisingMaxMonths
}

func evaluate(checks ...CheckResult) Eligibility {
	ok := true
	for _, c := range checks {
		if c.Status == CheckFailed {
			ok = false
		}
	}
	return Eligibility{Eligible: ok, Checks: checks}
}

func genderCheck(a Animal, want Gender) CheckResult {
	if a.Gender == want {
		return CheckResult{Check: CheckGender, Status: CheckPassed}
	}
	return CheckResult{Check: CheckGender, Status: CheckFailed, Detail: fmt.Sprintf("expected %s, got %s", want, a.Gender)}
}

func inHouseCheck(a Animal) CheckResult {
	if a.IsInHouse {
		return CheckResult{Check: CheckInHouse, Status: CheckPassed}
	}
	return CheckResult{Check: CheckInHouse, Status: CheckFailed, Detail: "animal is not in house"}
}

func minAgeCheck(a Animal, now civil.Date, min int) CheckResult {
	age := AgeInMonths(a.BirthDate, now)
	if age >= min {
		return CheckResult{Check: CheckMinAge, Status: CheckPassed}
	}
	return CheckResult{Check: CheckMinAge, Status: CheckFailed, Detail: fmt.Sprintf("age %d months, need %d", age, min)}
}

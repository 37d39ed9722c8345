package ngrules

import (
	"fmt"
	"strings"

	"cattery-breeding/internal/domain/animals"
)

// Outcome de una regla individual sobre un par.
type Outcome string

const (
	OutcomeClear          Outcome = "clear"
	OutcomeFlagged        Outcome = "flagged"
	OutcomeNotImplemented Outcome = "not_implemented"
)

// Verdict es el resultado de evaluar un par contra las reglas activas.
//
// Matched es la primera regla activa (en orden de lista) que marcó el par;
// no hay ranking por prioridad. Gaps lista las reglas activas que no se
// pueden evaluar (GENERATION_LIMIT): no marcan, pero quedan visibles.
type Verdict struct {
	Flagged bool
	Matched *Rule
	Reason  string
	Gaps    []Rule
}

// Evaluate recorre rules en orden, salta las inactivas y corta en el primer match.
func Evaluate(male, female animals.Animal, rules []Rule) Verdict {
	v := Verdict{}
	for _, r := range rules {
		if !r.Active {
			continue
		}
		outcome, reason := check(r, male, female)
		switch outcome {
		case OutcomeFlagged:
			matched := r
			v.Flagged = true
			v.Matched = &matched
			v.Reason = reason
			return v
		case OutcomeNotImplemented:
			v.Gaps = append(v.Gaps, r)
		}
	}
	return v
}

func check(r Rule, male, female animals.Animal) (Outcome, string) {
	switch r.Type {
	case TypeTagCombination:
		// OR dentro de cada lado, AND entre lados.
		if male.HasAnyTag(r.MaleConditions) && female.HasAnyTag(r.FemaleConditions) {
			return OutcomeFlagged, fmt.Sprintf(
				"male tags [%s] meet [%s] and female tags [%s] meet [%s]",
				strings.Join(male.Tags, ","), strings.Join(r.MaleConditions, ","),
				strings.Join(female.Tags, ","), strings.Join(r.FemaleConditions, ","),
			)
		}
		return OutcomeClear, ""
	case TypeIndividualProhibition:
		if contains(r.MaleNames, male.Name) && contains(r.FemaleNames, female.Name) {
			return OutcomeFlagged, fmt.Sprintf("pairing %s x %s is prohibited", male.Name, female.Name)
		}
		return OutcomeClear, ""
	case TypeGenerationLimit:
		// Requiere cálculo de pedigrí, fuera de alcance.
		return OutcomeNotImplemented, ""
	default:
		return OutcomeClear, ""
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

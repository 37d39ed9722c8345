package ngrules

import (
	"fmt"
	"strings"
	"time"
)

// RuleType define la forma del payload de la regla.
// @Enum TAG_COMBINATION, INDIVIDUAL_PROHIBITION, GENERATION_LIMIT
type RuleType string

const (
	TypeTagCombination        RuleType = "TAG_COMBINATION"
	TypeIndividualProhibition RuleType = "INDIVIDUAL_PROHIBITION"
	TypeGenerationLimit       RuleType = "GENERATION_LIMIT"
)

func (t RuleType) Valid() bool {
	switch t {
	case TypeTagCombination, TypeIndividualProhibition, TypeGenerationLimit:
		return true
	default:
		return false
	}
}

// Rule es una regla NG: marca (o prohíbe) un emparejamiento macho/hembra.
// Solo el payload que corresponde a Type puede estar poblado.
type Rule struct {
	ID          string
	Name        string
	Type        RuleType
	Active      bool
	Description string

	// TAG_COMBINATION
	MaleConditions   []string
	FemaleConditions []string

	// INDIVIDUAL_PROHIBITION (match por nombre exacto, no por id)
	MaleNames   []string
	FemaleNames []string

	// GENERATION_LIMIT
	GenerationLimit *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patch es una actualización parcial; nil = no tocar.
type Patch struct {
	Name        *string
	Type        *RuleType
	Active      *bool
	Description *string

	MaleConditions   *[]string
	FemaleConditions *[]string
	MaleNames        *[]string
	FemaleNames      *[]string
	GenerationLimit  *int
}

// Apply devuelve r con los campos del patch aplicados.
func (p Patch) Apply(r Rule) Rule {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.MaleConditions != nil {
		r.MaleConditions = *p.MaleConditions
	}
	if p.FemaleConditions != nil {
		r.FemaleConditions = *p.FemaleConditions
	}
	if p.MaleNames != nil {
		r.MaleNames = *p.MaleNames
	}
	if p.FemaleNames != nil {
		r.FemaleNames = *p.FemaleNames
	}
	if p.GenerationLimit != nil {
		v := *p.GenerationLimit
		r.GenerationLimit = &v
	}
	return r
}

// normalize recorta strings, deduplica sets y valida que el payload
// poblado sea exactamente el del tipo.
func normalize(r Rule) (Rule, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return Rule{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if !r.Type.Valid() {
		return Rule{}, fmt.Errorf("%w: unknown rule type %q", ErrInvalidInput, r.Type)
	}

	r.MaleConditions = normalizeSet(r.MaleConditions)
	r.FemaleConditions = normalizeSet(r.FemaleConditions)
	r.MaleNames = normalizeSet(r.MaleNames)
	r.FemaleNames = normalizeSet(r.FemaleNames)

	hasTags := len(r.MaleConditions) > 0 || len(r.FemaleConditions) > 0
	hasNames := len(r.MaleNames) > 0 || len(r.FemaleNames) > 0
	hasLimit := r.GenerationLimit != nil

	switch r.Type {
	case TypeTagCombination:
		if hasNames || hasLimit {
			return Rule{}, fmt.Errorf("%w: tag combination rule carries another payload", ErrInvalidInput)
		}
		if len(r.MaleConditions) == 0 || len(r.FemaleConditions) == 0 {
			return Rule{}, fmt.Errorf("%w: male and female conditions required", ErrInvalidInput)
		}
	case TypeIndividualProhibition:
		if hasTags || hasLimit {
			return Rule{}, fmt.Errorf("%w: individual prohibition rule carries another payload", ErrInvalidInput)
		}
		if len(r.MaleNames) == 0 || len(r.FemaleNames) == 0 {
			return Rule{}, fmt.Errorf("%w: male and female names required", ErrInvalidInput)
		}
	case TypeGenerationLimit:
		if hasTags || hasNames {
			return Rule{}, fmt.Errorf("%w: generation limit rule carries another payload", ErrInvalidInput)
		}
		if !hasLimit || *r.GenerationLimit < 1 {
			return Rule{}, fmt.Errorf("%w: generation limit must be >= 1", ErrInvalidInput)
		}
	}

	return r, nil
}

func normalizeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, raw := range in {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

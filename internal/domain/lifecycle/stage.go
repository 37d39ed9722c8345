package lifecycle

// Stage es la etapa de un emparejamiento dentro del ciclo de cría.
type Stage uint8

const (
	StageScheduled Stage = iota
	StageHistory
	StagePregnancySuspected
	StageBirthPlanned
	StageBorn
	StageCompleted
	// StageClosed: negado o sin parto; no deja registro.
	StageClosed
)

func (s Stage) String() string {
	switch s {
	case StageScheduled:
		return "scheduled"
	case StageHistory:
		return "history"
	case StagePregnancySuspected:
		return "pregnancy_suspected"
	case StageBirthPlanned:
		return "birth_planned"
	case StageBorn:
		return "born"
	case StageCompleted:
		return "completed"
	case StageClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageClosed
}

// CanTransitionTo indica si la transición está permitida.
func (s Stage) CanTransitionTo(target Stage) bool {
	switch s {
	case StageScheduled:
		return target == StageHistory
	case StageHistory:
		return target == StagePregnancySuspected
	case StagePregnancySuspected:
		return target == StageBirthPlanned || target == StageClosed
	case StageBirthPlanned:
		return target == StageBorn || target == StageClosed
	case StageBorn:
		return target == StageCompleted
	default:
		return false
	}
}

// Stage de un chequeo de preñez guardado.
func (c PregnancyCheck) Stage() Stage {
	if c.Status == PregnancySuspected {
		return StagePregnancySuspected
	}
	return StageClosed
}

// Stage de un plan de parto guardado.
func (p BirthPlan) Stage() Stage {
	switch p.Status {
	case BirthExpected:
		return StageBirthPlanned
	case BirthBorn:
		if p.CompletedAt != nil {
			return StageCompleted
		}
		return StageBorn
	default:
		return StageClosed
	}
}

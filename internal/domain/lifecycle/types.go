package lifecycle

// PregnancyStatus del chequeo. El motor solo escribe SUSPECTED; la
// confirmación se expresa creando el BirthPlan.
// @Enum SUSPECTED, CONFIRMED, NEGATIVE, ABORTED
type PregnancyStatus string

const (
	PregnancySuspected PregnancyStatus = "SUSPECTED"
	PregnancyConfirmed PregnancyStatus = "CONFIRMED"
	PregnancyNegative  PregnancyStatus = "NEGATIVE"
	PregnancyAborted   PregnancyStatus = "ABORTED"
)

// BirthStatus del plan de parto.
// @Enum EXPECTED, BORN, ABORTED, STILLBORN
type BirthStatus string

const (
	BirthExpected  BirthStatus = "EXPECTED"
	BirthBorn      BirthStatus = "BORN"
	BirthAborted   BirthStatus = "ABORTED"
	BirthStillborn BirthStatus = "STILLBORN"
)

// Disposition es el destino final de un gatito.
// @Enum TRAINING, SALE, DECEASED
type Disposition string

const (
	DispositionTraining Disposition = "TRAINING"
	DispositionSale     Disposition = "SALE"
	DispositionDeceased Disposition = "DECEASED"
)

func (d Disposition) Valid() bool {
	switch d {
	case DispositionTraining, DispositionSale, DispositionDeceased:
		return true
	default:
		return false
	}
}

// Outcome de una ventana de monta, marcado el último día.
// @Enum success, failure
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

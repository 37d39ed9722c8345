// Package gaps enumera funciones que existen en el modelo de datos pero
// todavía no tienen efecto. Se reportan junto al resultado, nunca como error.
package gaps

// Gap identifica una función reconocida pero no implementada.
// @Enum generation_limit, postpartum_rest, kitten_sex, cross_device_sync
type Gap string

const (
	// Las reglas GENERATION_LIMIT requieren cálculo de pedigrí.
	GenerationLimit Gap = "generation_limit"
	// 65 días desde el último parto antes de volver a emparejar.
	PostpartumRest Gap = "postpartum_rest"
	// El sexo de cada gatito no se captura al registrar el parto.
	KittenSex Gap = "kitten_sex"
	// El calendario vive solo en el dispositivo.
	CrossDeviceSync Gap = "cross_device_sync"
)

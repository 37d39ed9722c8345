package animals

import "cloud.google.com/go/civil"

// AgeInMonths devuelve los meses completos entre birth y now.
// Si now.Day < birth.Day el mes en curso no cuenta. Nunca negativo;
// sin fecha de nacimiento devuelve 0.
func AgeInMonths(birth *civil.Date, now civil.Date) int {
	if birth == nil || *birth == (civil.Date{}) {
		return 0
	}

	months := (now.Year-birth.Year)*12 + int(now.Month-birth.Month)
	if now.Day < birth.Day {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

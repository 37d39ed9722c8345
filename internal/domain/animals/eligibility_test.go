package animals

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"
)

func born(t *testing.T, s string) *civil.Date {
	d := date(t, s)
	return &d
}

func TestSireEligibility(t *testing.T) {
	now := date(t, "2025-01-20")

	ok := SireEligibility(Animal{Gender: GenderMale, IsInHouse: true, BirthDate: born(t, "2024-03-20")}, now)
	require.True(t, ok.Eligible)
	require.Empty(t, ok.Gaps())

	young := SireEligibility(Animal{Gender: GenderMale, IsInHouse: true, BirthDate: born(t, "2024-03-21")}, now)
	require.False(t, young.Eligible)
	require.Len(t, young.Failed(), 1)
	require.Equal(t, CheckMinAge, young.Failed()[0].Check)

	away := SireEligibility(Animal{Gender: GenderMale, IsInHouse: false, BirthDate: born(t, "2020-01-01")}, now)
	require.False(t, away.Eligible)

	female := SireEligibility(Animal{Gender: GenderFemale, IsInHouse: true, BirthDate: born(t, "2020-01-01")}, now)
	require.False(t, female.Eligible)
}

func TestDamEligibility_ReportsPostpartumGap(t *testing.T) {
	now := date(t, "2025-01-20")

	e := DamEligibility(Animal{Gender: GenderFemale, IsInHouse: true, BirthDate: born(t, "2024-02-20")}, now)
	require.True(t, e.Eligible)
	require.Equal(t, []Check{CheckPostpartumRest}, e.Gaps())

	tenMonths := DamEligibility(Animal{Gender: GenderFemale, IsInHouse: true, BirthDate: born(t, "2024-03-20")}, now)
	require.False(t, tenMonths.Eligible)
}

func TestWithinRaisingAge(t *testing.T) {
	now := date(t, "2025-04-10")
	require.True(t, WithinRaisingAge(Animal{BirthDate: born(t, "2025-01-10")}, now))
	require.False(t, WithinRaisingAge(Animal{BirthDate: born(t, "2024-12-10")}, now))
}

func TestHasAnyTag(t *testing.T) {
	a := Animal{Tags: []string{"A"}}
	require.True(t, a.HasAnyTag([]string{"A", "B"}))
	require.False(t, a.HasAnyTag([]string{"Y"}))
	require.False(t, Animal{}.HasAnyTag([]string{"A"}))
}

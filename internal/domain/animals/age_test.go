package animals

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestAgeInMonths(t *testing.T) {
	cases := []struct {
		birth string
		now   string
		want  int
	}{
		{"2024-01-15", "2024-03-14", 1},
		{"2024-01-15", "2024-03-15", 2},
		{"2024-01-31", "2024-02-29", 0},
		{"2023-11-10", "2024-09-10", 10},
		{"2023-11-10", "2024-09-09", 9},
		{"2025-05-01", "2025-04-01", 0}, // futuro => 0
	}
	for _, tc := range cases {
		b := date(t, tc.birth)
		require.Equal(t, tc.want, AgeInMonths(&b, date(t, tc.now)), "%s -> %s", tc.birth, tc.now)
	}
}

func TestAgeInMonths_MissingBirthDate(t *testing.T) {
	require.Equal(t, 0, AgeInMonths(nil, date(t, "2024-03-15")))
	zero := civil.Date{}
	require.Equal(t, 0, AgeInMonths(&zero, date(t, "2024-03-15")))
}

package passwordpolicy_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thienng-it/note-hub-sub001/internal/passwordpolicy"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"acceptable", "Correct-Horse-9", nil},
		{"empty", "", passwordpolicy.ErrTooShort},
		{"short but complex", "Ab1!", passwordpolicy.ErrTooShort},
		{"no lowercase", "CORRECT-HORSE-9", passwordpolicy.ErrNoLower},
		{"no uppercase", "correct-horse-9", passwordpolicy.ErrNoUpper},
		{"no digit", "Correct-Horse-X", passwordpolicy.ErrNoDigit},
		{"no special", "CorrectHorse99", passwordpolicy.ErrNoSpecial},
		{"whitespace", "Correct Horse-9", passwordpolicy.ErrWhitespace},
		{"counts characters not bytes", "Ünïcödé-Päß9", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := passwordpolicy.Check(tt.password)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestViolationsListsEveryRule(t *testing.T) {
	t.Parallel()

	errs := passwordpolicy.Violations(" ")
	require.Equal(t, []error{
		passwordpolicy.ErrTooShort,
		passwordpolicy.ErrNoLower,
		passwordpolicy.ErrNoUpper,
		passwordpolicy.ErrNoDigit,
		passwordpolicy.ErrNoSpecial,
		passwordpolicy.ErrWhitespace,
	}, errs)

	require.Nil(t, passwordpolicy.Violations("Correct-Horse-9"))
}

func TestCheckNew(t *testing.T) {
	t.Parallel()

	require.NoError(t, passwordpolicy.CheckNew("Correct-Horse-9", "Correct-Horse-9"))

	// Length wins over a mismatch.
	require.ErrorIs(t, passwordpolicy.CheckNew("short", "different"), passwordpolicy.ErrTooShort)
	require.ErrorIs(t, passwordpolicy.CheckNew("Correct-Horse-9", "Correct-Horse-8"), passwordpolicy.ErrMismatch)
	require.ErrorIs(t, passwordpolicy.CheckNew("Correct-Horse-9", ""), passwordpolicy.ErrMismatch)
	require.ErrorIs(t, passwordpolicy.CheckNew("correct-horse-9", "correct-horse-9"), passwordpolicy.ErrNoUpper)
	require.Equal(t, "Password must be at least 12 characters long.", passwordpolicy.ErrTooShort.Error())
}

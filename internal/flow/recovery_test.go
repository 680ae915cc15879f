package flow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
)

func TestRecoveryMachine(t *testing.T) {
	t.Parallel()

	t.Run("2fa branch keeps the username", func(t *testing.T) {
		t.Parallel()
		s, effects := NewRecoveryState().Next(SubmitUsername{Username: "bob"})
		require.True(t, s.Submitting)
		require.Equal(t, []Effect{CallForgotPassword{Username: "bob"}}, effects)

		_, effects = s.Next(SubmitUsername{Username: "bob"})
		require.Empty(t, effects)

		s, _ = s.Next(RecoveryAnswered{Response: &notehubsdk.RecoveryResponse{Requires2FA: true}})
		require.Equal(t, Step2FARequired, s.Step)
		require.Equal(t, "bob", s.Username)
		require.Empty(t, s.ResetToken)
		require.False(t, s.Submitting)

		s, effects = s.Next(SubmitRecoveryCode{Code: "654321"})
		require.Equal(t, []Effect{CallForgotPasswordVerify{Username: "bob", TOTPCode: "654321"}}, effects)

		s, _ = s.Next(RecoveryFailed{Err: &notehubsdk.APIError{StatusCode: 400, Message: "Invalid 2FA code."}})
		require.Equal(t, Step2FARequired, s.Step)
		require.Equal(t, "Invalid 2FA code.", s.Error)
		require.Empty(t, s.TOTPCode)

		s, _ = s.Next(SubmitRecoveryCode{Code: "654321"})
		s, _ = s.Next(RecoveryAnswered{Response: &notehubsdk.RecoveryResponse{ResetToken: "tok", Requires2FA: true}})
		require.Equal(t, StepDone, s.Step)
		require.Equal(t, "tok", s.ResetToken)
		require.True(t, s.HasToken())

		_, effects = s.Next(ProceedToReset{})
		require.Equal(t, []Effect{Navigate{Route: "/reset-password?token=tok"}}, effects)
	})

	t.Run("back clears code and error", func(t *testing.T) {
		t.Parallel()
		s := RecoveryState{Step: Step2FARequired, Username: "bob", TOTPCode: "1", Error: "x"}
		s, effects := s.Next(RecoveryBack{})
		require.Empty(t, effects)
		require.Equal(t, StepEnterUsername, s.Step)
		require.Equal(t, "bob", s.Username)
		require.Empty(t, s.TOTPCode)
		require.Empty(t, s.Error)

		busy := RecoveryState{Step: Step2FARequired, Username: "bob", Submitting: true}
		next, _ := busy.Next(RecoveryBack{})
		require.Equal(t, Step2FARequired, next.Step)
	})

	t.Run("out of band token", func(t *testing.T) {
		t.Parallel()
		s, _ := NewRecoveryState().Next(SubmitUsername{Username: "carol"})
		s, _ = s.Next(RecoveryAnswered{Response: &notehubsdk.RecoveryResponse{Message: "If that username exists, a password reset token has been generated."}})
		require.Equal(t, StepDone, s.Step)
		require.False(t, s.HasToken())
		require.Equal(t, OutOfBandNotice, s.Message)

		_, effects := s.Next(ProceedToReset{})
		require.Empty(t, effects)
	})

	t.Run("token never set before done", func(t *testing.T) {
		t.Parallel()
		s, _ := NewRecoveryState().Next(SubmitUsername{Username: "bob"})
		s, _ = s.Next(RecoveryAnswered{Response: &notehubsdk.RecoveryResponse{Requires2FA: true, ResetToken: "leak"}})
		require.Equal(t, Step2FARequired, s.Step)
		require.Empty(t, s.ResetToken)
	})

	t.Run("empty username", func(t *testing.T) {
		t.Parallel()
		s, effects := NewRecoveryState().Next(SubmitUsername{})
		require.Empty(t, effects)
		require.Equal(t, msgUsernameRequired, s.Error)
	})
}

package flow

import (
	"strings"

	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
)

// RecoveryStep is a step of the forgot-password flow.
type RecoveryStep string

const (
	StepEnterUsername RecoveryStep = "enter_username"
	Step2FARequired   RecoveryStep = "2fa_required"
	StepDone          RecoveryStep = "done"
)

// OutOfBandNotice is shown when recovery finished without handing the
// client a reset token.
const OutOfBandNotice = "If that username exists, a password reset token has been generated. " +
	"It is not available here; ask your administrator for it."

// RecoveryState is the forgot-password flow. ResetToken is only ever set
// in StepDone.
type RecoveryState struct {
	Step       RecoveryStep
	Username   string
	TOTPCode   string
	ResetToken string
	Message    string
	Error      string
	Submitting bool
}

// NewRecoveryState returns the first step.
func NewRecoveryState() RecoveryState {
	return RecoveryState{Step: StepEnterUsername}
}

// HasToken reports whether the flow obtained a reset token.
func (s RecoveryState) HasToken() bool {
	return s.Step == StepDone && s.ResetToken != ""
}

// RecoveryEvent is an input to the recovery machine.
type RecoveryEvent interface {
	recoveryEvent()
}

// SubmitUsername starts recovery for an account.
type SubmitUsername struct {
	Username string
}

// SubmitRecoveryCode answers the 2FA step.
type SubmitRecoveryCode struct {
	Code string
}

// RecoveryBack returns from the 2FA step to the username step.
type RecoveryBack struct{}

// ProceedToReset follows the reset link once a token is held.
type ProceedToReset struct{}

// RecoveryAnswered carries the service's reply.
type RecoveryAnswered struct {
	Response *notehubsdk.RecoveryResponse
}

// RecoveryFailed reports a failed request.
type RecoveryFailed struct {
	Err error
}

func (SubmitUsername) recoveryEvent()     {}
func (SubmitRecoveryCode) recoveryEvent() {}
func (RecoveryBack) recoveryEvent()       {}
func (ProceedToReset) recoveryEvent()     {}
func (RecoveryAnswered) recoveryEvent()   {}
func (RecoveryFailed) recoveryEvent()     {}

// CallForgotPassword asks for the first recovery request.
type CallForgotPassword struct {
	Username string
}

// CallForgotPasswordVerify asks for the 2FA verification request.
type CallForgotPasswordVerify struct {
	Username string
	TOTPCode string
}

func (CallForgotPassword) effect()       {}
func (CallForgotPasswordVerify) effect() {}

const msgUsernameRequired = "Please enter your username"

// Next implements Machine.
func (s RecoveryState) Next(event RecoveryEvent) (RecoveryState, []Effect) {
	switch e := event.(type) {
	case SubmitUsername:
		if s.Step != StepEnterUsername || s.Submitting {
			return s, nil
		}
		s.Username = strings.TrimSpace(e.Username)
		if s.Username == "" {
			s.Error = DisplayMessage(invalid(msgUsernameRequired))
			return s, nil
		}
		s.Submitting = true
		s.Error = ""
		return s, []Effect{CallForgotPassword{Username: s.Username}}

	case SubmitRecoveryCode:
		if s.Step != Step2FARequired || s.Submitting {
			return s, nil
		}
		code := strings.TrimSpace(e.Code)
		if !validTOTP(code) {
			s.TOTPCode = ""
			s.Error = DisplayMessage(invalid(msgInvalidCode))
			return s, nil
		}
		s.TOTPCode = code
		s.Submitting = true
		s.Error = ""
		return s, []Effect{CallForgotPasswordVerify{Username: s.Username, TOTPCode: code}}

	case RecoveryBack:
		if s.Step != Step2FARequired || s.Submitting {
			return s, nil
		}
		s.Step = StepEnterUsername
		s.TOTPCode = ""
		s.Error = ""
		return s, nil

	case ProceedToReset:
		if !s.HasToken() {
			return s, nil
		}
		return s, []Effect{Navigate{Route: ResetLink(s.ResetToken)}}

	case RecoveryAnswered:
		if !s.Submitting {
			return s, nil
		}
		s.Submitting = false
		s.TOTPCode = ""
		s.Error = ""

		resp := e.Response
		if resp == nil {
			resp = &notehubsdk.RecoveryResponse{}
		}
		if s.Step == StepEnterUsername && resp.Requires2FA {
			s.Step = Step2FARequired
			return s, nil
		}

		s.Step = StepDone
		s.ResetToken = resp.ResetToken
		s.Message = resp.Message
		if s.ResetToken == "" {
			s.Message = OutOfBandNotice
		}
		return s, nil

	case RecoveryFailed:
		if !s.Submitting {
			return s, nil
		}
		s.Submitting = false
		s.TOTPCode = ""
		s.Error = DisplayMessage(e.Err)
		return s, nil
	}

	return s, nil
}

package flow

import (
	"strings"

	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
)

// SetupStatus is where two-factor enrollment stands.
type SetupStatus int

const (
	SetupIdle SetupStatus = iota
	SetupLoading
	SetupLoadFailed
	SetupReady
	SetupConfirmRegenerate
	SetupEnabling
	SetupEnabled
)

func (s SetupStatus) String() string {
	switch s {
	case SetupIdle:
		return "idle"
	case SetupLoading:
		return "loading"
	case SetupLoadFailed:
		return "load_failed"
	case SetupReady:
		return "ready"
	case SetupConfirmRegenerate:
		return "confirm_regenerate"
	case SetupEnabling:
		return "enabling"
	case SetupEnabled:
		return "enabled"
	default:
		return "unknown"
	}
}

// SetupState is the enrollment page. QRCode is a base64 PNG.
type SetupState struct {
	Status SetupStatus
	QRCode string
	Secret string
	Code   string
	Error  string
}

// SetupEvent is an input to the enrollment machine.
type SetupEvent interface {
	setupEvent()
}

// StartSetup fetches the first challenge, or retries after a failed load.
type StartSetup struct{}

// ChallengeLoaded carries a freshly issued challenge.
type ChallengeLoaded struct {
	Setup *notehubsdk.TwoFactorSetup
}

// ChallengeFailed reports a failed fetch.
type ChallengeFailed struct {
	Err error
}

// RegenerateRequested asks for a new secret. It only opens a confirmation.
type RegenerateRequested struct{}

// RegenerateConfirmed replaces the secret.
type RegenerateConfirmed struct{}

// RegenerateCancelled keeps the current secret.
type RegenerateCancelled struct{}

// SubmitSetupCode enables two-factor with the displayed secret.
type SubmitSetupCode struct {
	Code string
}

// TwoFactorEnabled reports that the service accepted the code.
type TwoFactorEnabled struct{}

// EnableFailed reports a rejected or failed enable request.
type EnableFailed struct {
	Err error
}

func (StartSetup) setupEvent()          {}
func (ChallengeLoaded) setupEvent()     {}
func (ChallengeFailed) setupEvent()     {}
func (RegenerateRequested) setupEvent() {}
func (RegenerateConfirmed) setupEvent() {}
func (RegenerateCancelled) setupEvent() {}
func (SubmitSetupCode) setupEvent()     {}
func (TwoFactorEnabled) setupEvent()    {}
func (EnableFailed) setupEvent()        {}

// FetchChallenge asks the service for a new secret. Any earlier secret
// stops being valid.
type FetchChallenge struct{}

// CallEnable2FA asks for the enable request.
type CallEnable2FA struct {
	Secret   string
	TOTPCode string
}

func (FetchChallenge) effect() {}
func (CallEnable2FA) effect()  {}

// Next implements Machine.
func (s SetupState) Next(event SetupEvent) (SetupState, []Effect) {
	switch e := event.(type) {
	case StartSetup:
		if s.Status != SetupIdle && s.Status != SetupLoadFailed {
			return s, nil
		}
		s.Status = SetupLoading
		s.Error = ""
		return s, []Effect{FetchChallenge{}}

	case ChallengeLoaded:
		if s.Status != SetupLoading || e.Setup == nil {
			return s, nil
		}
		s.Status = SetupReady
		s.QRCode = e.Setup.QRCode
		s.Secret = e.Setup.Secret
		s.Code = ""
		s.Error = ""
		return s, nil

	case ChallengeFailed:
		if s.Status != SetupLoading {
			return s, nil
		}
		// A failed regeneration leaves the displayed secret in place.
		if s.Secret != "" {
			s.Status = SetupReady
		} else {
			s.Status = SetupLoadFailed
		}
		s.Error = DisplayMessage(e.Err)
		return s, nil

	case RegenerateRequested:
		if s.Status != SetupReady {
			return s, nil
		}
		s.Status = SetupConfirmRegenerate
		return s, nil

	case RegenerateCancelled:
		if s.Status != SetupConfirmRegenerate {
			return s, nil
		}
		s.Status = SetupReady
		return s, nil

	case RegenerateConfirmed:
		if s.Status != SetupConfirmRegenerate {
			return s, nil
		}
		s.Status = SetupLoading
		s.Code = ""
		s.Error = ""
		return s, []Effect{FetchChallenge{}}

	case SubmitSetupCode:
		if s.Status != SetupReady {
			return s, nil
		}
		code := strings.TrimSpace(e.Code)
		if !validTOTP(code) {
			s.Code = ""
			s.Error = DisplayMessage(invalid(msgInvalidCode))
			return s, nil
		}
		s.Status = SetupEnabling
		s.Code = code
		s.Error = ""
		return s, []Effect{CallEnable2FA{Secret: s.Secret, TOTPCode: code}}

	case TwoFactorEnabled:
		if s.Status != SetupEnabling {
			return s, nil
		}
		s.Status = SetupEnabled
		s.QRCode = ""
		s.Secret = ""
		s.Code = ""
		return s, []Effect{RefreshUser{}}

	case EnableFailed:
		if s.Status != SetupEnabling {
			return s, nil
		}
		s.Status = SetupReady
		s.Code = ""
		s.Error = DisplayMessage(e.Err)
		return s, nil
	}

	return s, nil
}

// DisableStatus is where two-factor removal stands.
type DisableStatus int

const (
	DisableIdle DisableStatus = iota
	DisableConfirming
	DisableSubmitting
	DisableDone
)

func (s DisableStatus) String() string {
	switch s {
	case DisableIdle:
		return "idle"
	case DisableConfirming:
		return "confirming"
	case DisableSubmitting:
		return "submitting"
	case DisableDone:
		return "done"
	default:
		return "unknown"
	}
}

// DisableState is the removal page. Removal takes two actions: a request
// that opens the confirmation and the confirmation itself. When RequireCode
// is set the confirmation must carry a current TOTP code.
type DisableState struct {
	Status      DisableStatus
	RequireCode bool
	Code        string
	Error       string
}

// DisableEvent is an input to the removal machine.
type DisableEvent interface {
	disableEvent()
}

// DisableRequested opens the confirmation.
type DisableRequested struct{}

// DisableCancelled closes the confirmation.
type DisableCancelled struct{}

// DisableConfirmed submits the removal.
type DisableConfirmed struct {
	Code string
}

// TwoFactorDisabled reports that the service removed two-factor.
type TwoFactorDisabled struct{}

// DisableFailed reports a rejected or failed removal.
type DisableFailed struct {
	Err error
}

func (DisableRequested) disableEvent()  {}
func (DisableCancelled) disableEvent()  {}
func (DisableConfirmed) disableEvent()  {}
func (TwoFactorDisabled) disableEvent() {}
func (DisableFailed) disableEvent()     {}

// CallDisable2FA asks for the disable request.
type CallDisable2FA struct {
	TOTPCode string
}

func (CallDisable2FA) effect() {}

// Next implements Machine.
func (s DisableState) Next(event DisableEvent) (DisableState, []Effect) {
	switch e := event.(type) {
	case DisableRequested:
		if s.Status != DisableIdle {
			return s, nil
		}
		s.Status = DisableConfirming
		s.Error = ""
		return s, nil

	case DisableCancelled:
		if s.Status != DisableConfirming {
			return s, nil
		}
		s.Status = DisableIdle
		s.Code = ""
		s.Error = ""
		return s, nil

	case DisableConfirmed:
		if s.Status != DisableConfirming {
			return s, nil
		}
		code := strings.TrimSpace(e.Code)
		if s.RequireCode && !validTOTP(code) {
			s.Code = ""
			s.Error = DisplayMessage(invalid(msgInvalidCode))
			return s, nil
		}
		if !s.RequireCode {
			code = ""
		}
		s.Status = DisableSubmitting
		s.Code = code
		s.Error = ""
		return s, []Effect{CallDisable2FA{TOTPCode: code}}

	case TwoFactorDisabled:
		if s.Status != DisableSubmitting {
			return s, nil
		}
		s.Status = DisableDone
		s.Code = ""
		return s, []Effect{RefreshUser{}}

	case DisableFailed:
		if s.Status != DisableSubmitting {
			return s, nil
		}
		s.Status = DisableIdle
		s.Code = ""
		s.Error = DisplayMessage(e.Err)
		return s, nil
	}

	return s, nil
}

package flow

import (
	"strings"
	"time"

	"github.com/thienng-it/note-hub-sub001/internal/passwordpolicy"
)

// DefaultRedirectDelay is how long the success message stays up before
// the reset flow moves on to login.
const DefaultRedirectDelay = 3 * time.Second

// ResetStatus is where a password reset stands.
type ResetStatus int

const (
	// ResetInvalidLink is terminal: there is no token and no form.
	ResetInvalidLink ResetStatus = iota
	ResetEditing
	ResetSubmitting
	ResetSucceeded
	ResetRedirected
)

func (s ResetStatus) String() string {
	switch s {
	case ResetInvalidLink:
		return "invalid_link"
	case ResetEditing:
		return "editing"
	case ResetSubmitting:
		return "submitting"
	case ResetSucceeded:
		return "succeeded"
	case ResetRedirected:
		return "redirected"
	default:
		return "unknown"
	}
}

// ResetState is the reset-password form. Fields survive a failed attempt.
type ResetState struct {
	Status        ResetStatus
	Token         string
	Password      string
	Confirm       string
	Error         string
	Message       string
	RedirectDelay time.Duration
}

// NewResetState starts a reset for token. An empty token yields the
// invalid-link state.
func NewResetState(token string, redirectDelay time.Duration) ResetState {
	token = strings.TrimSpace(token)
	if token == "" {
		return ResetState{Status: ResetInvalidLink, Error: msgInvalidLink}
	}
	if redirectDelay <= 0 {
		redirectDelay = DefaultRedirectDelay
	}
	return ResetState{Status: ResetEditing, Token: token, RedirectDelay: redirectDelay}
}

const (
	msgInvalidLink   = "Invalid or missing reset link. Please request a new one."
	msgResetComplete = "Your password has been reset. Redirecting to login..."
)

// ResetEvent is an input to the reset machine.
type ResetEvent interface {
	resetEvent()
}

// SubmitNewPassword submits the form.
type SubmitNewPassword struct {
	Password string
	Confirm  string
}

// ResetCompleted reports that the service accepted the new password.
type ResetCompleted struct {
	Message string
}

// ResetFailed reports a rejected or failed request.
type ResetFailed struct {
	Err error
}

// RedirectDue fires when the post-reset delay has elapsed.
type RedirectDue struct{}

// GoToLogin skips the remaining delay.
type GoToLogin struct{}

// RequestNewLink is the escape from the invalid-link state.
type RequestNewLink struct{}

func (SubmitNewPassword) resetEvent() {}
func (ResetCompleted) resetEvent()    {}
func (ResetFailed) resetEvent()       {}
func (RedirectDue) resetEvent()       {}
func (GoToLogin) resetEvent()         {}
func (RequestNewLink) resetEvent()    {}

// CallResetPassword asks for the reset request.
type CallResetPassword struct {
	Token    string
	Password string
	Confirm  string
}

func (CallResetPassword) effect() {}

// Next implements Machine.
func (s ResetState) Next(event ResetEvent) (ResetState, []Effect) {
	switch e := event.(type) {
	case SubmitNewPassword:
		if s.Status != ResetEditing {
			return s, nil
		}
		s.Password = e.Password
		s.Confirm = e.Confirm
		if err := passwordpolicy.CheckNew(e.Password, e.Confirm); err != nil {
			s.Error = DisplayMessage(invalid(err.Error()))
			return s, nil
		}
		s.Status = ResetSubmitting
		s.Error = ""
		return s, []Effect{CallResetPassword{Token: s.Token, Password: s.Password, Confirm: s.Confirm}}

	case ResetCompleted:
		if s.Status != ResetSubmitting {
			return s, nil
		}
		s.Status = ResetSucceeded
		s.Password = ""
		s.Confirm = ""
		s.Message = msgResetComplete
		if e.Message != "" {
			s.Message = e.Message
		}
		return s, []Effect{Timer[ResetEvent]{After: s.RedirectDelay, Event: RedirectDue{}}}

	case ResetFailed:
		if s.Status != ResetSubmitting {
			return s, nil
		}
		s.Status = ResetEditing
		s.Error = DisplayMessage(e.Err)
		return s, nil

	case RedirectDue, GoToLogin:
		if s.Status != ResetSucceeded {
			return s, nil
		}
		s.Status = ResetRedirected
		return s, []Effect{Navigate{Route: RouteLogin}}

	case RequestNewLink:
		if s.Status != ResetInvalidLink && s.Status != ResetEditing {
			return s, nil
		}
		return s, []Effect{Navigate{Route: RouteForgotPassword}}
	}

	return s, nil
}

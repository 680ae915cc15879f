package flow

import "strings"

// LoginStatus is where a login attempt stands.
type LoginStatus int

const (
	CollectingCredentials LoginStatus = iota
	Validating
	Needs2FA
	Validating2FA
	Authenticated
)

func (s LoginStatus) String() string {
	switch s {
	case CollectingCredentials:
		return "collecting_credentials"
	case Validating:
		return "validating"
	case Needs2FA:
		return "needs_2fa"
	case Validating2FA:
		return "validating_2fa"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// LoginState is the login form. A failed attempt returns to the status it
// was submitted from with Error set and TOTPCode cleared.
type LoginState struct {
	Status   LoginStatus
	Username string
	Password string
	TOTPCode string
	Error    string
}

// Failed reports whether the last attempt failed.
func (s LoginState) Failed() bool { return s.Error != "" }

// Busy reports whether a request is outstanding.
func (s LoginState) Busy() bool {
	return s.Status == Validating || s.Status == Validating2FA
}

// LoginEvent is an input to the login machine.
type LoginEvent interface {
	loginEvent()
}

// SubmitCredentials submits the first step. Username may be an email
// address.
type SubmitCredentials struct {
	Username string
	Password string
}

// SubmitTOTP submits the second factor.
type SubmitTOTP struct {
	Code string
}

// Abandon2FA leaves the code step for the credentials form.
type Abandon2FA struct{}

// LoginSucceeded reports that the session store now holds the session.
type LoginSucceeded struct{}

// LoginNeeds2FA reports that the password was accepted and a code is needed.
type LoginNeeds2FA struct{}

// LoginFailed reports a rejected or failed attempt.
type LoginFailed struct {
	Err error
}

func (SubmitCredentials) loginEvent() {}
func (SubmitTOTP) loginEvent()        {}
func (Abandon2FA) loginEvent()        {}
func (LoginSucceeded) loginEvent()    {}
func (LoginNeeds2FA) loginEvent()     {}
func (LoginFailed) loginEvent()       {}

// CallLogin asks for a login request. On success the handler stores the
// session before reporting LoginSucceeded.
type CallLogin struct {
	Username string
	Password string
	TOTPCode string
}

func (CallLogin) effect() {}

const msgCredentialsRequired = "Please enter your username and password"

// Next implements Machine.
func (s LoginState) Next(event LoginEvent) (LoginState, []Effect) {
	switch e := event.(type) {
	case SubmitCredentials:
		if s.Status != CollectingCredentials {
			return s, nil
		}
		s.Username = strings.TrimSpace(e.Username)
		s.Password = e.Password
		s.TOTPCode = ""
		if s.Username == "" || s.Password == "" {
			s.Error = DisplayMessage(invalid(msgCredentialsRequired))
			return s, nil
		}
		s.Status = Validating
		s.Error = ""
		return s, []Effect{CallLogin{Username: s.Username, Password: s.Password}}

	case SubmitTOTP:
		if s.Status != Needs2FA {
			return s, nil
		}
		code := strings.TrimSpace(e.Code)
		if !validTOTP(code) {
			s.TOTPCode = ""
			s.Error = DisplayMessage(invalid(msgInvalidCode))
			return s, nil
		}
		s.Status = Validating2FA
		s.TOTPCode = code
		s.Error = ""
		return s, []Effect{CallLogin{Username: s.Username, Password: s.Password, TOTPCode: code}}

	case Abandon2FA:
		if s.Status != Needs2FA {
			return s, nil
		}
		s.Status = CollectingCredentials
		s.TOTPCode = ""
		s.Error = ""
		return s, nil

	case LoginNeeds2FA:
		if s.Status != Validating {
			return s, nil
		}
		s.Status = Needs2FA
		s.TOTPCode = ""
		s.Error = ""
		return s, nil

	case LoginSucceeded:
		if !s.Busy() {
			return s, nil
		}
		s.Status = Authenticated
		s.Password = ""
		s.TOTPCode = ""
		s.Error = ""
		return s, []Effect{Navigate{Route: RouteHome}}

	case LoginFailed:
		switch s.Status {
		case Validating:
			s.Status = CollectingCredentials
		case Validating2FA:
			s.Status = Needs2FA
		default:
			return s, nil
		}
		s.TOTPCode = ""
		s.Error = DisplayMessage(e.Err)
		return s, nil
	}

	return s, nil
}

package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/thienng-it/note-hub-sub001/internal/session"
	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
	"github.com/thienng-it/note-hub-sub001/pkg/slogx"
)

// SessionStore is the part of the session store the flows write to.
type SessionStore interface {
	Set(ctx context.Context, s session.Session) error
	Clear(ctx context.Context) error
	RefreshUser(ctx context.Context) (*notehubsdk.User, error)
}

// Options tune the controller.
type Options struct {
	// RedirectDelay is the pause between a successful reset and the login
	// page. Zero means DefaultRedirectDelay.
	RedirectDelay time.Duration

	// DisableRequiresCode makes two-factor removal ask for a TOTP code.
	DisableRequiresCode bool

	Logger *slog.Logger
}

type (
	LoginFlow    = Flow[LoginState, LoginEvent]
	RecoveryFlow = Flow[RecoveryState, RecoveryEvent]
	ResetFlow    = Flow[ResetState, ResetEvent]
	SetupFlow    = Flow[SetupState, SetupEvent]
	DisableFlow  = Flow[DisableState, DisableEvent]
)

// Controller creates flows wired to the service, the session store and the
// navigator.
type Controller struct {
	svc    AuthService
	store  SessionStore
	nav    Navigator
	opts   Options
	logger *slog.Logger
}

// NewController returns a Controller.
func NewController(svc AuthService, store SessionStore, nav Navigator, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slogx.Discard()
	}
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = DefaultRedirectDelay
	}
	return &Controller{svc: svc, store: store, nav: nav, opts: opts, logger: logger}
}

// NewLogin starts a login flow.
func (c *Controller) NewLogin() *LoginFlow {
	return New[LoginState, LoginEvent](LoginState{}, c.handleLogin)
}

// NewRecovery starts a forgot-password flow.
func (c *Controller) NewRecovery() *RecoveryFlow {
	return New[RecoveryState, RecoveryEvent](NewRecoveryState(), c.handleRecovery)
}

// NewReset starts a reset flow for the token in rawURL's query. No request
// is made until the form is submitted.
func (c *Controller) NewReset(rawURL string) *ResetFlow {
	return New[ResetState, ResetEvent](NewResetState(TokenFromResetLink(rawURL), c.opts.RedirectDelay), c.handleReset)
}

// NewTwoFactorSetup returns an enrollment flow. Dispatch StartSetup to load
// the first challenge.
func (c *Controller) NewTwoFactorSetup() *SetupFlow {
	return New[SetupState, SetupEvent](SetupState{}, c.handleSetup)
}

// NewTwoFactorDisable returns a removal flow.
func (c *Controller) NewTwoFactorDisable() *DisableFlow {
	return New[DisableState, DisableEvent](DisableState{RequireCode: c.opts.DisableRequiresCode}, c.handleDisable)
}

// CompleteOAuthCallback finishes a provider login from the callback URL: it
// fetches the profile for the returned token, stores the session and goes
// home.
func (c *Controller) CompleteOAuthCallback(ctx context.Context, callbackURL string) error {
	tokens, err := notehubsdk.ParseCallback(callbackURL)
	if err != nil {
		return err
	}

	user := tokens.User
	if user == nil {
		user, err = c.svc.UserForToken(ctx, tokens.AccessToken)
		if err != nil {
			return err
		}
	}

	sess := session.Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         user,
	}
	if err := c.store.Set(ctx, sess); err != nil {
		return err
	}

	c.logger.Info("oauth login completed", "user_id", user.ID)
	c.nav.Navigate(RouteHome)
	return nil
}

// Logout clears the session and goes to the login page.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.nav.Navigate(RouteLogin)
	return nil
}

func (c *Controller) handleLogin(ctx context.Context, eff Effect) (LoginEvent, bool) {
	switch e := eff.(type) {
	case CallLogin:
		res, err := c.svc.Login(ctx, e.Username, e.Password, e.TOTPCode)
		if err != nil {
			c.logFailure(ctx, "login", err)
			return LoginFailed{Err: err}, true
		}
		if res.Requires2FA {
			return LoginNeeds2FA{}, true
		}
		// The flow may have been discarded while the response was in flight.
		if err := ctx.Err(); err != nil {
			return LoginFailed{Err: err}, true
		}
		if err := c.store.Set(ctx, session.FromTokens(res.Tokens)); err != nil {
			c.logFailure(ctx, "login", err)
			return LoginFailed{Err: err}, true
		}
		c.logger.Info("login succeeded", "user_id", res.Tokens.User.ID, "with_2fa", e.TOTPCode != "")
		return LoginSucceeded{}, true

	case Navigate:
		c.nav.Navigate(e.Route)
	}
	return nil, false
}

func (c *Controller) handleRecovery(ctx context.Context, eff Effect) (RecoveryEvent, bool) {
	switch e := eff.(type) {
	case CallForgotPassword:
		resp, err := c.svc.ForgotPassword(ctx, e.Username)
		if err != nil {
			c.logFailure(ctx, "recovery", err)
			return RecoveryFailed{Err: err}, true
		}
		return RecoveryAnswered{Response: resp}, true

	case CallForgotPasswordVerify:
		resp, err := c.svc.ForgotPasswordVerify2FA(ctx, e.Username, e.TOTPCode)
		if err != nil {
			c.logFailure(ctx, "recovery", err)
			return RecoveryFailed{Err: err}, true
		}
		return RecoveryAnswered{Response: resp}, true

	case Navigate:
		c.nav.Navigate(e.Route)
	}
	return nil, false
}

func (c *Controller) handleReset(ctx context.Context, eff Effect) (ResetEvent, bool) {
	switch e := eff.(type) {
	case CallResetPassword:
		if err := c.svc.ResetPassword(ctx, e.Token, e.Password, e.Confirm); err != nil {
			c.logFailure(ctx, "reset", err)
			return ResetFailed{Err: err}, true
		}
		return ResetCompleted{}, true

	case Navigate:
		c.nav.Navigate(e.Route)
	}
	return nil, false
}

func (c *Controller) handleSetup(ctx context.Context, eff Effect) (SetupEvent, bool) {
	switch e := eff.(type) {
	case FetchChallenge:
		setup, err := c.svc.Get2FASetup(ctx)
		if err != nil {
			c.logFailure(ctx, "2fa_setup", err)
			return ChallengeFailed{Err: err}, true
		}
		return ChallengeLoaded{Setup: setup}, true

	case CallEnable2FA:
		if err := c.svc.Enable2FA(ctx, e.Secret, e.TOTPCode); err != nil {
			c.logFailure(ctx, "2fa_setup", err)
			return EnableFailed{Err: err}, true
		}
		return TwoFactorEnabled{}, true

	case RefreshUser:
		c.refreshUser(ctx, "2fa_setup")
	}
	return nil, false
}

func (c *Controller) handleDisable(ctx context.Context, eff Effect) (DisableEvent, bool) {
	switch e := eff.(type) {
	case CallDisable2FA:
		if err := c.svc.Disable2FA(ctx, e.TOTPCode); err != nil {
			c.logFailure(ctx, "2fa_disable", err)
			return DisableFailed{Err: err}, true
		}
		return TwoFactorDisabled{}, true

	case RefreshUser:
		c.refreshUser(ctx, "2fa_disable")
	}
	return nil, false
}

// refreshUser keeps has_2fa in step with the service. The change already
// happened server side, so a failed refresh is logged and not shown.
func (c *Controller) refreshUser(ctx context.Context, flow string) {
	if _, err := c.store.RefreshUser(ctx); err != nil {
		c.logger.Warn("refresh user failed", "flow", flow, "error", err)
	}
}

func (c *Controller) logFailure(ctx context.Context, flow string, err error) {
	if ctx.Err() != nil {
		return
	}
	c.logger.Debug("flow request failed", "flow", flow, "error", err)
}

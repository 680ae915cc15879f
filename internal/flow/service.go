package flow

import (
	"context"

	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
)

// AuthService is the authentication service as the flows use it.
type AuthService interface {
	Login(ctx context.Context, username, password, totpCode string) (*notehubsdk.LoginResult, error)
	ForgotPassword(ctx context.Context, username string) (*notehubsdk.RecoveryResponse, error)
	ForgotPasswordVerify2FA(ctx context.Context, username, totpCode string) (*notehubsdk.RecoveryResponse, error)
	ResetPassword(ctx context.Context, token, password, confirm string) error
	Get2FASetup(ctx context.Context) (*notehubsdk.TwoFactorSetup, error)
	Enable2FA(ctx context.Context, secret, totpCode string) error
	Disable2FA(ctx context.Context, totpCode string) error
	UserForToken(ctx context.Context, accessToken string) (*notehubsdk.User, error)
}

// SDKService implements AuthService over the SDK. Session holds the
// logged-in user's tokens.
type SDKService struct {
	Client  *notehubsdk.SDKClient
	Session *notehubsdk.Session
}

var _ AuthService = (*SDKService)(nil)

func (s *SDKService) Login(ctx context.Context, username, password, totpCode string) (*notehubsdk.LoginResult, error) {
	return s.Client.Login(ctx, notehubsdk.LoginRequest{
		Username: username,
		Password: password,
		TOTPCode: totpCode,
	})
}

func (s *SDKService) ForgotPassword(ctx context.Context, username string) (*notehubsdk.RecoveryResponse, error) {
	return s.Client.ForgotPassword(ctx, username)
}

func (s *SDKService) ForgotPasswordVerify2FA(ctx context.Context, username, totpCode string) (*notehubsdk.RecoveryResponse, error) {
	return s.Client.ForgotPasswordVerify2FA(ctx, username, totpCode)
}

func (s *SDKService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	return s.Client.ResetPassword(ctx, notehubsdk.ResetPasswordRequest{
		Token:           token,
		Password:        password,
		PasswordConfirm: confirm,
	})
}

func (s *SDKService) Get2FASetup(ctx context.Context) (*notehubsdk.TwoFactorSetup, error) {
	return s.Session.Get2FASetup(ctx)
}

func (s *SDKService) Enable2FA(ctx context.Context, secret, totpCode string) error {
	return s.Session.Enable2FA(ctx, secret, totpCode)
}

func (s *SDKService) Disable2FA(ctx context.Context, totpCode string) error {
	return s.Session.Disable2FA(ctx, totpCode)
}

func (s *SDKService) UserForToken(ctx context.Context, accessToken string) (*notehubsdk.User, error) {
	return s.Client.GetCurrentUserWithToken(ctx, accessToken)
}

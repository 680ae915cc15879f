package notehubsdk

import (
	"context"
	"fmt"
	"net/http"
)

// Get2FASetup requests a fresh TOTP secret and its QR code. Any secret
// returned by an earlier call stops being accepted by Enable2FA.
func (s *Session) Get2FASetup(ctx context.Context) (*TwoFactorSetup, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.doRequest(ctx, http.MethodGet, "/api/auth/2fa/setup", nil, token)
	if err != nil {
		return nil, err
	}

	var setup TwoFactorSetup
	if err := decodeJSON(resp, &setup); err != nil {
		return nil, err
	}
	if setup.Secret == "" {
		return nil, fmt.Errorf("setup response carried no secret")
	}

	return &setup, nil
}

// Enable2FA turns on two-factor authentication for secret, proven by a
// current code from the authenticator app.
func (s *Session) Enable2FA(ctx context.Context, secret, totpCode string) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}

	resp, err := s.client.doRequest(ctx, http.MethodPost, "/api/auth/2fa/enable", EnableTwoFactorRequest{
		Secret:   secret,
		TOTPCode: totpCode,
	}, token)
	if err != nil {
		return err
	}

	return decodeJSON(resp, nil)
}

// Disable2FA turns off two-factor authentication. totpCode may be empty for
// deployments that only require the caller to be logged in.
func (s *Session) Disable2FA(ctx context.Context, totpCode string) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}

	resp, err := s.client.doRequest(ctx, http.MethodPost, "/api/auth/2fa/disable", DisableTwoFactorRequest{
		TOTPCode: totpCode,
	}, token)
	if err != nil {
		return err
	}

	return decodeJSON(resp, nil)
}

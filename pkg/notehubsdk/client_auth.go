package notehubsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Login exchanges credentials for tokens.
//
// A password that is accepted for an account with two-factor authentication
// enabled, submitted without TOTPCode, yields a LoginResult with Requires2FA
// set and a nil error. Every other rejection is an *APIError.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", req, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Requires2FA && req.TOTPCode == "" {
			return &LoginResult{Requires2FA: true}, nil
		}
	}

	if err := parseErrorResponse(resp, body); err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("login response carried no access token")
	}

	return &LoginResult{Tokens: &tokens}, nil
}

// RefreshGrant obtains a new access token. The refresh token itself is not
// rotated by the service.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/refresh", refreshRequest{RefreshToken: refreshToken}, "")
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens); err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("refresh response carried no access token")
	}

	return &tokens, nil
}

// ForgotPassword starts account recovery for username.
//
// The service answers the same way whether or not the account exists, so the
// result only says what to do next: send a TOTP code (Requires2FA), use the
// returned ResetToken, or neither when the token was delivered out of band.
func (c *SDKClient) ForgotPassword(ctx context.Context, username string) (*RecoveryResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/forgot-password", ForgotPasswordRequest{Username: username}, "")
	if err != nil {
		return nil, err
	}

	var out RecoveryResponse
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPasswordVerify2FA completes the second-factor step of recovery.
func (c *SDKClient) ForgotPasswordVerify2FA(ctx context.Context, username, totpCode string) (*RecoveryResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/forgot-password/verify-2fa", ForgotPasswordVerifyRequest{
		Username: username,
		TOTPCode: totpCode,
	}, "")
	if err != nil {
		return nil, err
	}

	var out RecoveryResponse
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	// The second-factor branch is already satisfied at this point.
	out.Requires2FA = false
	return &out, nil
}

// ResetPassword sets a new password using a single-use reset token.
func (c *SDKClient) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/reset-password", req, "")
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

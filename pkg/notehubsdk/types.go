package notehubsdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// ============================================================================
// Internal Response Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse is the body the service sends with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`

	// Requires2FA is only present on the login endpoint when the password
	// was accepted but a second factor is still missing.
	Requires2FA bool `json:"requires_2fa,omitempty"`
}

// MessageResponse is the body of endpoints that only acknowledge success.
type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// User Types
// ============================================================================

// User is the authenticated user's profile as the service reports it.
// It is never created client side.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Has2FA    bool   `json:"has_2fa"`
	CreatedAt string `json:"created_at,omitempty"`

	// HiddenNotes is nil when the service has never stored the preference.
	HiddenNotes HiddenNotes `json:"hidden_notes"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.HiddenNotes != nil {
		cp.HiddenNotes = slices.Clone(u.HiddenNotes)
	}
	return &cp
}

// HiddenNotes is the set of note IDs the user chose to hide.
//
// The service has stored it both as a JSON array and as a JSON-encoded string
// holding that array, so decoding accepts either form. Encoding always emits
// an array.
type HiddenNotes []int64

func (h *HiddenNotes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*h = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("hidden_notes: %w", err)
		}
		if raw == "" {
			*h = nil
			return nil
		}
		data = []byte(raw)
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("hidden_notes: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	*h = ids
	return nil
}

// currentUserResponse is the body of GET /api/auth/validate.
type currentUserResponse struct {
	Valid bool  `json:"valid"`
	User  *User `json:"user"`
}

// profileResponse is the body of PATCH /api/profile.
type profileResponse struct {
	User *User `json:"user"`
}

// UpdateProfileRequest is the body of PATCH /api/profile.
type UpdateProfileRequest struct {
	HiddenNotes HiddenNotes `json:"hidden_notes"`
}

// ============================================================================
// Token Types
// ============================================================================

// LoginRequest is the body of POST /api/auth/login. Username may also be the
// account's email address.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// TokenResponse is returned by the login and refresh endpoints. Refresh
// responses carry neither RefreshToken nor User.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         *User  `json:"user,omitempty"`
}

// LoginResult is the outcome of a login attempt that the service did not
// reject. Exactly one of Requires2FA or Tokens is set.
type LoginResult struct {
	Requires2FA bool
	Tokens      *TokenResponse
}

// refreshRequest is the body of POST /api/auth/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ============================================================================
// Password Recovery Types
// ============================================================================

// ForgotPasswordRequest is the body of POST /api/auth/forgot-password.
type ForgotPasswordRequest struct {
	Username string `json:"username"`
}

// ForgotPasswordVerifyRequest is the body of POST /api/auth/forgot-password/verify-2fa.
type ForgotPasswordVerifyRequest struct {
	Username string `json:"username"`
	TOTPCode string `json:"totp_code"`
}

// RecoveryResponse is returned by both recovery endpoints. An empty
// ResetToken with Requires2FA false means the token went out of band.
type RecoveryResponse struct {
	Requires2FA bool   `json:"requires_2fa"`
	ResetToken  string `json:"reset_token,omitempty"`
	Message     string `json:"message,omitempty"`
}

// ResetPasswordRequest is the body of POST /api/auth/reset-password.
type ResetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// ============================================================================
// Two-Factor Types
// ============================================================================

// TwoFactorSetup is the challenge returned by GET /api/auth/2fa/setup.
// Fetching a new one invalidates every secret handed out before it.
type TwoFactorSetup struct {
	// QRCode is a base64-encoded PNG of the provisioning URI.
	QRCode string `json:"qr_code"`

	// Secret is the base32 TOTP secret for manual entry.
	Secret string `json:"secret"`
}

// EnableTwoFactorRequest is the body of POST /api/auth/2fa/enable.
type EnableTwoFactorRequest struct {
	Secret   string `json:"secret"`
	TOTPCode string `json:"totp_code"`
}

// DisableTwoFactorRequest is the body of POST /api/auth/2fa/disable.
type DisableTwoFactorRequest struct {
	TOTPCode string `json:"totp_code,omitempty"`
}

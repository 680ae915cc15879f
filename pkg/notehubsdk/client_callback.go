package notehubsdk

import (
	"fmt"
	"net/url"
)

// ParseCallback extracts the tokens an OAuth provider redirect carries in its
// query string. The returned TokenResponse has no User; fetch it with
// GetCurrentUserWithToken.
func ParseCallback(callbackURL string) (*TokenResponse, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse callback URL: %w", err)
	}

	query := u.Query()

	if errorCode := query.Get("error"); errorCode != "" {
		if desc := query.Get("error_description"); desc != "" {
			return nil, &APIError{Message: desc}
		}
		return nil, &APIError{Message: errorCode}
	}

	access := query.Get("access_token")
	if access == "" {
		return nil, fmt.Errorf("callback missing access token")
	}

	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: query.Get("refresh_token"),
		TokenType:    "Bearer",
	}, nil
}

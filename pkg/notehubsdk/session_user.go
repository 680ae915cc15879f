package notehubsdk

import (
	"context"
	"fmt"
	"net/http"
	"slices"
)

// GetCurrentUser fetches the profile of the user the access token belongs to.
func (s *Session) GetCurrentUser(ctx context.Context) (*User, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}

	return s.client.GetCurrentUserWithToken(ctx, token)
}

// GetCurrentUserWithToken fetches the profile for an access token that is not
// yet held by any session, as after an OAuth callback.
func (c *SDKClient) GetCurrentUserWithToken(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, ErrNotAuthenticated
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/auth/validate", nil, accessToken)
	if err != nil {
		return nil, err
	}

	var out currentUserResponse
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("validate response carried no user")
	}

	return out.User, nil
}

// UpdateHiddenNotes replaces the hidden-notes preference on the server and
// returns the updated profile.
func (s *Session) UpdateHiddenNotes(ctx context.Context, ids []int64) (*User, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}

	notes := HiddenNotes(slices.Clone(ids))
	if notes == nil {
		notes = HiddenNotes{}
	}

	resp, err := s.client.doRequest(ctx, http.MethodPatch, "/api/profile", UpdateProfileRequest{HiddenNotes: notes}, token)
	if err != nil {
		return nil, err
	}

	var out profileResponse
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("profile response carried no user")
	}

	return out.User, nil
}

/*
Package notehubsdk provides a client SDK for the notehub authentication service.

# Overview

The package is organized around two types:

  - SDKClient: unauthenticated operations (login, token refresh, password
    recovery, password reset) and the factory for authenticated sessions.
  - Session: authenticated operations (current user, two-factor setup and
    removal, profile preferences) with automatic access-token refresh.

Create an SDKClient and log in:

	client := notehubsdk.NewSDKClient("https://notes.example.com")
	res, err := client.Login(ctx, notehubsdk.LoginRequest{
		Username: "alice",
		Password: "correct horse battery staple",
	})
	if err != nil {
		// *APIError carries the backend's message verbatim.
	}
	if res.Requires2FA {
		// Ask for a 6-digit code and call Login again with TOTPCode set.
	}

Authenticated calls read their tokens through a TokenSource so the caller
decides where tokens live:

	session := client.NewSession(store)
	user, err := session.GetCurrentUser(ctx)

# Errors

Backend failures are returned as *APIError whose Error() is the message the
service sent. Network failures wrap ErrTransport. Nothing else is inspected;
callers decide what to show.

# Token refresh

Before each authenticated call the Session reads the unverified exp claim of
the access token. When it expires within 30 seconds and a refresh token is
available, the Session obtains a new access token and hands it back through
TokenSource.UpdateAccessToken before sending the request.
*/
package notehubsdk

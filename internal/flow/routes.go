package flow

import "net/url"

// Routes the flows navigate to.
const (
	RouteHome           = "/"
	RouteLogin          = "/login"
	RouteForgotPassword = "/forgot-password"
	RouteResetPassword  = "/reset-password"
)

// ResetLink is the route that opens the reset form for token.
func ResetLink(token string) string {
	return RouteResetPassword + "?" + url.Values{"token": {token}}.Encode()
}

// TokenFromResetLink extracts the token from a reset link or full URL. It
// returns "" when the link cannot be parsed or has no token.
func TokenFromResetLink(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("token")
}

// Navigator moves the front end between routes.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

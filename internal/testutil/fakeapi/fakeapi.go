// Package fakeapi is an in-process stand-in for the notehub authentication
// service. It implements the endpoints the client uses with the same status
// codes and error bodies, keeps everything in memory, and counts calls per
// path so tests can assert on network traffic.
package fakeapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	issuer        = "Beautiful Notes"
	minPasswordLn = 12
)

var signingKey = []byte("fakeapi-signing-key")

// Account is a user known to the fake service.
type Account struct {
	ID          int64
	Username    string
	Email       string
	Password    string
	TOTPSecret  string
	HiddenNotes []int64
	CreatedAt   time.Time
}

// Server is a running fake service.
type Server struct {
	*httptest.Server

	// AccessTTL is the lifetime of issued access tokens.
	AccessTTL time.Duration

	// OutOfBandReset makes recovery for accounts without 2FA withhold the
	// reset token, as deployments that only log it server-side do.
	OutOfBandReset bool

	// DisableRequiresCode makes the disable endpoint demand a valid code.
	DisableRequiresCode bool

	mu       sync.Mutex
	nextID   int64
	accounts map[string]*Account
	refresh  map[string]string // refresh token -> username
	resets   map[string]string // reset token -> username
	pending  map[string]string // username -> latest setup secret
	calls    map[string]int
	hooks    map[string]func(w http.ResponseWriter, r *http.Request) bool
}

// New starts a fake service that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		AccessTTL: 24 * time.Hour,
		accounts:  make(map[string]*Account),
		refresh:   make(map[string]string),
		resets:    make(map[string]string),
		pending:   make(map[string]string),
		calls:     make(map[string]int),
		hooks:     make(map[string]func(http.ResponseWriter, *http.Request) bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/auth/validate", s.authed(s.handleValidate))
	mux.HandleFunc("POST /api/auth/forgot-password", s.handleForgot)
	mux.HandleFunc("POST /api/auth/forgot-password/verify-2fa", s.handleForgotVerify)
	mux.HandleFunc("POST /api/auth/reset-password", s.handleReset)
	mux.HandleFunc("GET /api/auth/2fa/setup", s.authed(s.handleSetup))
	mux.HandleFunc("POST /api/auth/2fa/enable", s.authed(s.handleEnable))
	mux.HandleFunc("POST /api/auth/2fa/disable", s.authed(s.handleDisable))
	mux.HandleFunc("PATCH /api/profile", s.authed(s.handleProfile))

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		hook := s.hooks[r.URL.Path]
		s.mu.Unlock()

		if hook != nil && hook(w, r) {
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)

	return s
}

// AddUser registers an account and returns it.
func (s *Server) AddUser(username, password string) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	acc := &Account{
		ID:        s.nextID,
		Username:  username,
		Email:     username + "@example.com",
		Password:  password,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	s.accounts[username] = acc
	return acc
}

// Enable2FA turns on 2FA for username and returns the secret.
func (s *Server) Enable2FA(username string) string {
	key, err := newKey(username)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username].TOTPSecret = key.Secret()
	return key.Secret()
}

// Account returns a copy of the named account.
func (s *Server) Account(username string) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[username]
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests served.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Intercept installs a hook for path. Returning true means the hook wrote
// the response and the regular handler is skipped.
func (s *Server) Intercept(path string, hook func(w http.ResponseWriter, r *http.Request) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[path] = hook
}

// Code returns the current TOTP code for secret.
func Code(secret string) string {
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		panic(err)
	}
	return code
}

// IssueAccessToken mints an access token for username that expires after ttl.
func (s *Server) IssueAccessToken(username string, ttl time.Duration) string {
	return mint(username, "access", time.Now().Add(ttl))
}

// IssueRefreshToken mints and registers a refresh token for username.
func (s *Server) IssueRefreshToken(username string) string {
	tok := mint(username, "refresh", time.Now().Add(30*24*time.Hour))
	s.mu.Lock()
	s.refresh[tok] = username
	s.mu.Unlock()
	return tok
}

func mint(username, typ string, exp time.Time) string {
	claims := jwt.MapClaims{
		"sub":  username,
		"type": typ,
		"exp":  exp.Unix(),
		"iat":  time.Now().Unix(),
		"jti":  fmt.Sprintf("%d", time.Now().UnixNano()),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return tok
}

func parse(token, wantType string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims["type"] != wantType {
		return "", errors.New("wrong token type")
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}

func newKey(username string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
}

func qrPNG(key *otp.Key) (string, error) {
	img, err := key.Image(200, 200)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ---- handlers ----

func (s *Server) authed(next func(w http.ResponseWriter, r *http.Request, acc *Account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "No authorization header")
			return
		}
		username, err := parse(raw, "access")
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		s.mu.Lock()
		acc := s.accounts[username]
		s.mu.Unlock()
		if acc == nil {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}
		next(w, r, acc)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string  `json:"username"`
		Password string  `json:"password"`
		TOTPCode *string `json:"totp_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username/email and password required")
		return
	}

	s.mu.Lock()
	acc := s.lookup(req.Username)
	var (
		username, password, secret string
		user                       map[string]any
	)
	if acc != nil {
		username, password, secret = acc.Username, acc.Password, acc.TOTPSecret
		user = userJSON(acc)
	}
	s.mu.Unlock()

	if acc == nil || password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if secret != "" {
		if req.TOTPCode == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "2FA code required", "requires_2fa": true})
			return
		}
		if !totp.Validate(*req.TOTPCode, secret) {
			writeError(w, http.StatusUnauthorized, "Invalid 2FA code")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  s.IssueAccessToken(username, s.AccessTTL),
		"refresh_token": s.IssueRefreshToken(username),
		"token_type":    "Bearer",
		"expires_in":    int(s.AccessTTL.Seconds()),
		"user":          user,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Refresh token required")
		return
	}
	username, err := parse(req.RefreshToken, "refresh")
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Token has expired")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.IssueAccessToken(username, s.AccessTTL),
		"token_type":   "Bearer",
		"expires_in":   int(s.AccessTTL.Seconds()),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, _ *http.Request, acc *Account) {
	s.mu.Lock()
	user := userJSON(acc)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "user": user})
}

func (s *Server) handleForgot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	generic := map[string]any{
		"requires_2fa": false,
		"message":      "If that username exists, a password reset token has been generated.",
	}

	acc := s.accounts[req.Username]
	switch {
	case acc == nil:
		writeJSON(w, http.StatusOK, generic)
	case acc.TOTPSecret != "":
		writeJSON(w, http.StatusOK, map[string]any{"requires_2fa": true})
	case s.OutOfBandReset:
		s.issueReset(acc.Username)
		writeJSON(w, http.StatusOK, generic)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"requires_2fa": false,
			"reset_token":  s.issueReset(acc.Username),
		})
	}
}

func (s *Server) handleForgotVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		TOTPCode string `json:"totp_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.accounts[req.Username]
	if acc == nil || acc.TOTPSecret == "" || !totp.Validate(req.TOTPCode, acc.TOTPSecret) {
		writeError(w, http.StatusBadRequest, "Invalid 2FA code.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reset_token": s.issueReset(acc.Username)})
}

// issueReset invalidates earlier reset tokens for username. Callers hold s.mu.
func (s *Server) issueReset(username string) string {
	for tok, u := range s.resets {
		if u == username {
			delete(s.resets, tok)
		}
	}
	tok := fmt.Sprintf("reset-%s-%d", username, time.Now().UnixNano())
	s.resets[tok] = username
	return tok
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	username, ok := s.resets[req.Token]
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token.")
		return
	}
	if req.Password != req.PasswordConfirm {
		writeError(w, http.StatusBadRequest, "Passwords must match")
		return
	}
	if len(req.Password) < minPasswordLn {
		writeError(w, http.StatusBadRequest, "Password must be at least 12 characters long.")
		return
	}
	delete(s.resets, req.Token)
	s.accounts[username].Password = req.Password
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password reset successfully!"})
}

func (s *Server) handleSetup(w http.ResponseWriter, _ *http.Request, acc *Account) {
	key, err := newKey(acc.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		return
	}
	qr, err := qrPNG(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		return
	}

	s.mu.Lock()
	s.pending[acc.Username] = key.Secret()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"qr_code": qr, "secret": key.Secret()})
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request, acc *Account) {
	var req struct {
		Secret   string `json:"secret"`
		TOTPCode string `json:"totp_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending[acc.Username] != req.Secret || !totp.Validate(req.TOTPCode, req.Secret) {
		writeError(w, http.StatusBadRequest, "Invalid code. Please scan the QR code and try again.")
		return
	}
	delete(s.pending, acc.Username)
	acc.TOTPSecret = req.Secret
	writeJSON(w, http.StatusOK, map[string]any{"message": "2FA enabled successfully!"})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request, acc *Account) {
	var req struct {
		TOTPCode string `json:"totp_code"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if acc.TOTPSecret == "" {
		writeError(w, http.StatusBadRequest, "2FA is not enabled.")
		return
	}
	if s.DisableRequiresCode && !totp.Validate(req.TOTPCode, acc.TOTPSecret) {
		writeError(w, http.StatusBadRequest, "Invalid 2FA code.")
		return
	}
	acc.TOTPSecret = ""
	writeJSON(w, http.StatusOK, map[string]any{"message": "2FA has been disabled."})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, acc *Account) {
	var req struct {
		HiddenNotes []int64 `json:"hidden_notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request body is required")
		return
	}

	s.mu.Lock()
	if req.HiddenNotes == nil {
		req.HiddenNotes = []int64{}
	}
	acc.HiddenNotes = req.HiddenNotes
	user := userJSON(acc)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// lookup resolves a username or email. Callers hold s.mu.
func (s *Server) lookup(login string) *Account {
	if acc, ok := s.accounts[login]; ok {
		return acc
	}
	for _, acc := range s.accounts {
		if acc.Email == login {
			return acc
		}
	}
	return nil
}

// userJSON renders acc. Callers hold s.mu.
func userJSON(acc *Account) map[string]any {
	out := map[string]any{
		"id":         acc.ID,
		"username":   acc.Username,
		"email":      acc.Email,
		"has_2fa":    acc.TOTPSecret != "",
		"created_at": acc.CreatedAt.Format(time.RFC3339),
	}
	if acc.HiddenNotes != nil {
		// The service stores the set as a serialized string.
		b, _ := json.Marshal(acc.HiddenNotes)
		out["hidden_notes"] = string(b)
	}
	return out
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

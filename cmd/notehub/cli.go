package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/thienng-it/note-hub-sub001/internal/app"
	"github.com/thienng-it/note-hub-sub001/internal/flow"
	"github.com/thienng-it/note-hub-sub001/pkg/slogx"
)

func usage(out io.Writer) {
	fmt.Fprint(out, `usage: notehub <command> [flags]

commands:
  login            sign in with username or email, then 2FA if enabled
  logout           forget the stored session
  whoami           show the signed-in account
  forgot-password  start password recovery
  reset-password   set a new password from a reset link
  2fa-setup        enable two-factor authentication
  2fa-disable      disable two-factor authentication
  notes            list|hide|unhide|sync hidden notes
  oauth-callback   finish a provider login from its callback URL
  version          print the build version

configuration is read from NOTEHUB_* environment variables.
`)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, cfg app.Config) int {
	out := &syncWriter{w: stdout}

	if len(args) < 1 {
		usage(out)
		return 2
	}

	switch args[0] {
	case "help", "-h", "--help":
		usage(out)
		return 0
	case "version":
		fmt.Fprintln(out, app.BuildVersion)
		return 0
	}

	nav := newRouter(out)
	a, err := app.New(ctx, cfg, nav)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return 1
	}
	defer a.Close()

	c := &cli{
		app:    a,
		prompt: newPrompter(stdin, out),
		out:    out,
		nav:    nav,
	}

	ctx = slogx.WithContext(ctx, a.Logger())
	if err := c.exec(ctx, args[0], args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if !errors.Is(err, errAborted) {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

type cli struct {
	app    *app.Application
	prompt *prompter
	out    io.Writer
	nav    *router
}

func (c *cli) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "logout":
		return c.app.Controller.Logout(ctx)
	case "whoami":
		return c.whoami(ctx)
	case "forgot-password":
		return c.forgotPassword(ctx, args)
	case "reset-password":
		return c.resetPassword(ctx, args)
	case "2fa-setup":
		return c.setup2FA(ctx, args)
	case "2fa-disable":
		return c.disable2FA(ctx, args)
	case "notes":
		return c.notes(ctx, args)
	case "oauth-callback":
		return c.oauthCallback(ctx, args)
	default:
		usage(c.out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

// totpCode returns a current code for secret, or asks for one.
func (c *cli) totpCode(secret, question string) (string, error) {
	if secret != "" {
		return totp.GenerateCode(secret, time.Now())
	}
	return c.prompt.ask(question)
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := c.flags("login")
	username := fs.String("u", "", "username or email")
	password := fs.String("p", "", "password (asked when empty)")
	secret := fs.String("totp-secret", "", "generate the 2FA code from this base32 secret")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx = slogx.WithFlow(ctx, "login")
	f := c.app.Controller.NewLogin()
	defer f.Discard()

	n := &notices{out: c.out}
	stop := f.Observe(func(s flow.LoginState) {
		n.show(s.Error, "")
		if s.Status == flow.Needs2FA && s.Error == "" {
			fmt.Fprintln(c.out, "Two-factor authentication is enabled for this account.")
		}
	})
	defer stop()

	user, err := c.prompt.askUnlessSet("Username or email: ", *username)
	if err != nil {
		return err
	}
	pass, err := c.prompt.askUnlessSet("Password: ", *password)
	if err != nil {
		return err
	}
	if err := f.Dispatch(ctx, flow.SubmitCredentials{Username: user, Password: pass}); err != nil {
		return err
	}

	for {
		s := f.State()
		switch s.Status {
		case flow.Authenticated:
			cur, err := c.app.RequireSession()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Logged in as %s\n", cur.User.Username)
			c.syncHiddenNotes(ctx)
			return nil

		case flow.Needs2FA:
			if s.Failed() && *secret != "" {
				return errAborted
			}
			code, err := c.totpCode(*secret, "2FA code (blank to go back): ")
			if err != nil {
				return err
			}
			if code == "" {
				if err := f.Dispatch(ctx, flow.Abandon2FA{}); err != nil {
					return err
				}
				return errAborted
			}
			n.clear()
			if err := f.Dispatch(ctx, flow.SubmitTOTP{Code: code}); err != nil {
				return err
			}

		default:
			return errAborted
		}
	}
}

func (c *cli) whoami(ctx context.Context) error {
	if _, err := c.app.RequireSession(); err != nil {
		return err
	}

	user, err := c.app.Sessions.RefreshUser(ctx)
	if err != nil {
		c.app.Logger().Warn("refresh user failed, showing stored profile", "error", err)
		cur, cerr := c.app.RequireSession()
		if cerr != nil {
			return cerr
		}
		user = cur.User
	}

	fmt.Fprintf(c.out, "id:       %d\n", user.ID)
	fmt.Fprintf(c.out, "username: %s\n", user.Username)
	if user.Email != "" {
		fmt.Fprintf(c.out, "email:    %s\n", user.Email)
	}
	fmt.Fprintf(c.out, "2fa:      %s\n", onOff(user.Has2FA))
	return nil
}

func (c *cli) forgotPassword(ctx context.Context, args []string) error {
	fs := c.flags("forgot-password")
	username := fs.String("u", "", "username")
	secret := fs.String("totp-secret", "", "generate the 2FA code from this base32 secret")
	noReset := fs.Bool("no-reset", false, "print the reset link instead of opening it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx = slogx.WithFlow(ctx, "recovery")
	f := c.app.Controller.NewRecovery()
	defer f.Discard()

	n := &notices{out: c.out}
	stop := f.Observe(func(s flow.RecoveryState) { n.show(s.Error, s.Message) })
	defer stop()

	user, err := c.prompt.askUnlessSet("Username: ", *username)
	if err != nil {
		return err
	}
	if err := f.Dispatch(ctx, flow.SubmitUsername{Username: user}); err != nil {
		return err
	}

	for {
		s := f.State()
		switch s.Step {
		case flow.StepDone:
			if !s.HasToken() {
				return nil
			}
			link := flow.ResetLink(s.ResetToken)
			fmt.Fprintf(c.out, "Reset link: %s\n", link)
			if *noReset {
				return nil
			}
			if err := f.Dispatch(ctx, flow.ProceedToReset{}); err != nil {
				return err
			}
			return c.runReset(ctx, c.nav.Last())

		case flow.Step2FARequired:
			if s.Error != "" && *secret != "" {
				return errAborted
			}
			code, err := c.totpCode(*secret, "2FA code (blank to go back): ")
			if err != nil {
				return err
			}
			if code == "" {
				if err := f.Dispatch(ctx, flow.RecoveryBack{}); err != nil {
					return err
				}
				return errAborted
			}
			n.clear()
			if err := f.Dispatch(ctx, flow.SubmitRecoveryCode{Code: code}); err != nil {
				return err
			}

		default:
			return errAborted
		}
	}
}

func (c *cli) resetPassword(ctx context.Context, args []string) error {
	fs := c.flags("reset-password")
	token := fs.String("token", "", "reset token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	link := fs.Arg(0)
	if *token != "" {
		link = flow.ResetLink(*token)
	}
	return c.runReset(ctx, link)
}

// runReset opens the reset page for link and waits for the redirect.
func (c *cli) runReset(ctx context.Context, link string) error {
	ctx = slogx.WithFlow(ctx, "reset")
	f := c.app.Controller.NewReset(link)
	defer f.Discard()

	n := &notices{out: c.out}
	stop := f.Observe(func(s flow.ResetState) { n.show(s.Error, s.Message) })
	defer stop()

	if s := f.State(); s.Status == flow.ResetInvalidLink {
		n.show(s.Error, "")
		_ = f.Dispatch(ctx, flow.RequestNewLink{})
		return errAborted
	}

	for f.State().Status == flow.ResetEditing {
		pass, err := c.prompt.ask("New password: ")
		if err != nil {
			return err
		}
		confirm, err := c.prompt.ask("Confirm password: ")
		if err != nil {
			return err
		}
		n.clear()
		if err := f.Dispatch(ctx, flow.SubmitNewPassword{Password: pass, Confirm: confirm}); err != nil {
			return err
		}
	}

	if f.State().Status != flow.ResetSucceeded {
		return errAborted
	}

	for {
		select {
		case route := <-c.nav.changed:
			if route == flow.RouteLogin {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *cli) setup2FA(ctx context.Context, args []string) error {
	fs := c.flags("2fa-setup")
	qrPath := fs.String("qr", "", "write the QR code PNG to this file")
	auto := fs.Bool("auto", false, "confirm with a code generated from the issued secret")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.app.RequireSession(); err != nil {
		return err
	}

	ctx = slogx.WithFlow(ctx, "2fa_setup")
	f := c.app.Controller.NewTwoFactorSetup()
	defer f.Discard()

	n := &notices{out: c.out}
	stop := f.Observe(func(s flow.SetupState) { n.show(s.Error, "") })
	defer stop()

	if err := f.Dispatch(ctx, flow.StartSetup{}); err != nil {
		return err
	}

	shown := ""
	for {
		s := f.State()
		switch s.Status {
		case flow.SetupEnabled:
			fmt.Fprintln(c.out, "Two-factor authentication enabled.")
			return nil

		case flow.SetupReady:
			if s.Secret != shown {
				shown = s.Secret
				fmt.Fprintf(c.out, "Secret: %s\n", s.Secret)
				if *qrPath != "" {
					if err := writeQR(*qrPath, s.QRCode); err != nil {
						return err
					}
					fmt.Fprintf(c.out, "QR code written to %s\n", *qrPath)
				}
			}

			var code string
			if *auto {
				if s.Error != "" {
					return errAborted
				}
				generated, err := totp.GenerateCode(s.Secret, time.Now())
				if err != nil {
					return err
				}
				code = generated
			} else {
				answer, err := c.prompt.ask("Code from your authenticator (r to regenerate): ")
				if err != nil {
					return err
				}
				if strings.EqualFold(answer, "r") {
					if err := f.Dispatch(ctx, flow.RegenerateRequested{}); err != nil {
						return err
					}
					continue
				}
				code = answer
			}

			n.clear()
			if err := f.Dispatch(ctx, flow.SubmitSetupCode{Code: code}); err != nil {
				return err
			}

		case flow.SetupConfirmRegenerate:
			ok, err := c.prompt.confirm("Replace the current secret? Codes from it will stop working.")
			if err != nil {
				return err
			}
			var event flow.SetupEvent = flow.RegenerateCancelled{}
			if ok {
				n.clear()
				event = flow.RegenerateConfirmed{}
			}
			if err := f.Dispatch(ctx, event); err != nil {
				return err
			}

		default:
			return errAborted
		}
	}
}

// writeQR decodes the service's base64 PNG into path.
func writeQR(path, encoded string) error {
	if i := strings.Index(encoded, ","); strings.HasPrefix(encoded, "data:") && i >= 0 {
		encoded = encoded[i+1:]
	}
	png, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode qr code: %w", err)
	}
	return os.WriteFile(path, png, 0o600)
}

func (c *cli) disable2FA(ctx context.Context, args []string) error {
	fs := c.flags("2fa-disable")
	yes := fs.Bool("yes", false, "skip the confirmation question")
	code := fs.String("code", "", "current TOTP code, when the service requires one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.app.RequireSession(); err != nil {
		return err
	}

	ctx = slogx.WithFlow(ctx, "2fa_disable")
	f := c.app.Controller.NewTwoFactorDisable()
	defer f.Discard()

	n := &notices{out: c.out}
	stop := f.Observe(func(s flow.DisableState) { n.show(s.Error, "") })
	defer stop()

	if err := f.Dispatch(ctx, flow.DisableRequested{}); err != nil {
		return err
	}

	if !*yes {
		ok, err := c.prompt.confirm("Disable two-factor authentication?")
		if err != nil {
			return err
		}
		if !ok {
			_ = f.Dispatch(ctx, flow.DisableCancelled{})
			fmt.Fprintln(c.out, "Cancelled.")
			return nil
		}
	}

	for f.State().Status == flow.DisableConfirming {
		answer := *code
		if f.State().RequireCode && answer == "" {
			var err error
			if answer, err = c.prompt.ask("Current 2FA code: "); err != nil {
				return err
			}
		}
		*code = ""
		n.clear()
		if err := f.Dispatch(ctx, flow.DisableConfirmed{Code: answer}); err != nil {
			return err
		}
	}

	if f.State().Status != flow.DisableDone {
		return errAborted
	}
	fmt.Fprintln(c.out, "Two-factor authentication disabled.")
	return nil
}

func (c *cli) notes(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: notehub notes list|hide ID...|unhide ID...|sync")
	}

	hidden := c.app.HiddenNotes
	if args[0] != "sync" {
		c.syncHiddenNotes(ctx)
	}

	switch args[0] {
	case "list":
		ids, err := hidden.IDs(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(c.out, "No hidden notes.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(c.out, id)
		}
		return nil

	case "hide", "unhide":
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		for _, id := range ids {
			if args[0] == "hide" {
				err = hidden.Hide(ctx, id)
			} else {
				err = hidden.Unhide(ctx, id)
			}
			if err != nil {
				return err
			}
		}
		return nil

	case "sync":
		return hidden.Sync(ctx)

	default:
		return fmt.Errorf("unknown notes command %q", args[0])
	}
}

func (c *cli) oauthCallback(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: notehub oauth-callback URL")
	}
	if err := c.app.Controller.CompleteOAuthCallback(ctx, args[0]); err != nil {
		return err
	}
	cur, err := c.app.RequireSession()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Logged in as %s\n", cur.User.Username)
	c.syncHiddenNotes(ctx)
	return nil
}

// syncHiddenNotes pushes any offline copy of the preference after login.
func (c *cli) syncHiddenNotes(ctx context.Context) {
	if c.app.Sessions.Current() == nil {
		return
	}
	if err := c.app.HiddenNotes.Sync(ctx); err != nil {
		c.app.Logger().Warn("hidden notes sync failed", "error", err)
	}
}

func parseIDs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, errors.New("no note IDs given")
	}
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid note ID %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Command notehub is a terminal front end for the notehub authentication
// service. Each command opens one page (login, password recovery, reset,
// two-factor setup or removal) and drives it from stdin.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/thienng-it/note-hub-sub001/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, app.LoadConfig())
	stop()
	os.Exit(code)
}

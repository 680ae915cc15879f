package main

import (
	"fmt"
	"io"
	"sync"
)

// router is the Navigator. It prints every route change and remembers the
// last one so a command can follow it.
type router struct {
	out io.Writer

	mu      sync.Mutex
	last    string
	changed chan string
}

func newRouter(out io.Writer) *router {
	return &router{out: out, changed: make(chan string, 16)}
}

func (r *router) Navigate(route string) {
	r.mu.Lock()
	r.last = route
	r.mu.Unlock()

	fmt.Fprintf(r.out, "-> %s\n", route)
	select {
	case r.changed <- route:
	default:
	}
}

// Last returns the most recent route, or "" before any navigation.
func (r *router) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// notices prints a flow's error and message lines as they change. Call
// clear before each submission so a repeated error is shown again.
type notices struct {
	out io.Writer

	mu      sync.Mutex
	lastErr string
	lastMsg string
}

func (n *notices) show(errText, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if errText != n.lastErr {
		n.lastErr = errText
		if errText != "" {
			fmt.Fprintf(n.out, "error: %s\n", errText)
		}
	}
	if msg != n.lastMsg {
		n.lastMsg = msg
		if msg != "" {
			fmt.Fprintln(n.out, msg)
		}
	}
}

func (n *notices) clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastErr = ""
}

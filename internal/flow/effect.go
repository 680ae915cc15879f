package flow

import "time"

// Effect is work a transition asks for. Machines only describe effects;
// Flow and its handler carry them out.
type Effect interface {
	effect()
}

// Navigate moves the front end to Route.
type Navigate struct {
	Route string
}

// RefreshUser re-reads the profile into the session store.
type RefreshUser struct{}

// Timer dispatches Event back into the flow after After elapses, unless the
// flow is discarded first.
type Timer[E any] struct {
	After time.Duration
	Event E
}

func (Navigate) effect()    {}
func (RefreshUser) effect() {}
func (Timer[E]) effect()    {}

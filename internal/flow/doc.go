/*
Package flow implements the login, account-recovery, password-reset and
two-factor flows as pure state machines plus a small runner that executes
their side effects.

Each machine is a value type with a Next method:

	next, effects := state.Next(event)

Next never performs I/O. Network calls, session writes, timers and
navigation are returned as Effect values; a Flow applies the transition
under a lock, tells observers about the new state, and hands the effects to
a handler whose result is dispatched back as the next event.

Requests are serialized per flow by the machines themselves: while a
request is outstanding the state is in a submitting status and a second
submit is ignored, so it yields no effect.

After Discard a flow accepts no events, calls no observers and stops its
timers. The context given to in-flight handlers is cancelled.
*/
package flow

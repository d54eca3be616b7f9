// Package state dispatches free-text updates to the handler registered for
// the conversation stage the user is currently in. Stage storage is supplied
// by the caller through Tracker.
package state

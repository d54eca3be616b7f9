package state

import "context"

// State identifies a conversation step that expects free-text input.
type State string

// StateIdle indicates there is no active conversation with the user.
const StateIdle State = ""

// Tracker reports the stage a user is currently in.
type Tracker interface {
	StateOf(ctx context.Context, userID int64) (State, error)
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func(ctx context.Context, userID int64) (State, error)

// StateOf calls f.
func (f TrackerFunc) StateOf(ctx context.Context, userID int64) (State, error) {
	return f(ctx, userID)
}

package conversation

import "sync"

// State is the per-user conversation state. It is one of Idle, FieldSelection
// or AwaitingSearch.
type State interface {
	Name() string
}

// Idle is the initial state; every completed interaction returns here.
type Idle struct{}

// FieldSelection is entered when the field list is shown. Tokens maps the
// short token carried by each field button to the field name; it belongs to
// one displayed list and is replaced, not merged, when the list is shown again.
type FieldSelection struct {
	Generation int
	Tokens     map[string]string
}

// AwaitingSearch means the next free-text message is a search query.
type AwaitingSearch struct{}

func (Idle) Name() string           { return "idle" }
func (FieldSelection) Name() string { return "field_selection" }
func (AwaitingSearch) Name() string { return "awaiting_search" }

// session holds one user's state. mu is held for the whole handling of an
// event, so a user's events never interleave.
type session struct {
	mu         sync.Mutex
	state      State
	generation int // bumped on every field list display
}

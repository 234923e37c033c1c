package patient

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle position of an edit session.
type State int

const (
	StateLoading State = iota
	StateViewing
	StateEditing
	StateSaving
	StateLoadFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateViewing:
		return "viewing"
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	case StateLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidTransition means the requested action is not legal in the
	// session's current state.
	ErrInvalidTransition = errors.New("action not allowed in current session state")
	// ErrSaveInProgress means a save is already in flight; the shell must
	// wait for it to settle before issuing another.
	ErrSaveInProgress = errors.New("a save is already in progress")
)

// EditSession is the per-patient editing lifecycle:
//
//	Loading → Viewing ⇄ Editing → Saving → (Viewing on success | Editing on failure)
//
// It holds a live copy that field mutations apply to and an original
// snapshot used as the rollback target for Cancel. Each session owns its
// copies; concurrent sessions over different patients never share state.
// A load failure is fatal to the session and the caller should navigate
// away.
type EditSession struct {
	svc *Service

	mu       sync.Mutex
	state    State
	live     *Patient
	original *Patient
}

func NewEditSession(svc *Service) *EditSession {
	return &EditSession{svc: svc, state: StateLoading}
}

// Load fetches the patient row and enters Viewing. Any failure, an absent
// row included, moves the session to LoadFailed; it cannot be retried.
func (es *EditSession) Load(ctx context.Context, id uuid.UUID) error {
	es.mu.Lock()
	if es.state != StateLoading {
		es.mu.Unlock()
		return ErrInvalidTransition
	}
	es.mu.Unlock()

	p, err := es.svc.Get(ctx, id)

	es.mu.Lock()
	defer es.mu.Unlock()
	if err != nil {
		es.state = StateLoadFailed
		return err
	}
	es.live = p.Clone()
	es.original = p.Clone()
	es.state = StateViewing
	return nil
}

// BeginEdit makes the live copy mutable. The original snapshot is retained
// unchanged. No network effect.
func (es *EditSession) BeginEdit() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.state != StateViewing {
		return ErrInvalidTransition
	}
	es.state = StateEditing
	return nil
}

// SetField applies a raw text input to one field of the live copy. Age
// coerces to absent on non-numeric input; optional text fields clear to
// absent on blank input.
func (es *EditSession) SetField(name, raw string) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.state != StateEditing {
		return ErrInvalidTransition
	}
	if !es.live.SetField(name, raw) {
		return errors.New("unknown field: " + name)
	}
	return nil
}

// Save issues a single full-field update. On success both copies become the
// server-returned row and the session returns to Viewing. On failure the
// live copy is preserved unsaved and the session returns to Editing so the
// edits can be retried or cancelled.
func (es *EditSession) Save(ctx context.Context) (*Patient, error) {
	es.mu.Lock()
	switch es.state {
	case StateSaving:
		es.mu.Unlock()
		return nil, ErrSaveInProgress
	case StateEditing:
		// proceed
	default:
		es.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	es.state = StateSaving
	id, version, fields := es.live.ID, es.live.Version, FieldsOf(es.live)
	es.mu.Unlock()

	saved, err := es.svc.Update(ctx, id, version, fields)

	es.mu.Lock()
	defer es.mu.Unlock()
	if err != nil {
		es.state = StateEditing
		return nil, err
	}
	es.live = saved.Clone()
	es.original = saved.Clone()
	es.state = StateViewing
	return saved.Clone(), nil
}

// Cancel discards the live copy, restores the original snapshot, and
// returns to Viewing. No network effect.
func (es *EditSession) Cancel() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.state != StateEditing {
		return ErrInvalidTransition
	}
	es.live = es.original.Clone()
	es.state = StateViewing
	return nil
}

// State returns the session's current lifecycle position.
func (es *EditSession) State() State {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.state
}

// Patient returns a copy of the live record as the shell should render it.
func (es *EditSession) Patient() *Patient {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.live.Clone()
}

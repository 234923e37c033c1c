package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means the patient row is absent from the store.
	ErrNotFound = errors.New("patient not found")
	// ErrConflict means the save carried a stale version token and a newer
	// write has already been committed.
	ErrConflict = errors.New("patient was modified by another writer")
	// ErrInvalid marks input rejected by validation before it reached the
	// store. Handlers map it to 400; anything else from a write is a server
	// fault.
	ErrInvalid = errors.New("invalid patient data")
)

// Repository is the single persistence abstraction for patients. Exactly one
// implementation is live at a time; the in-memory one backs tests and the
// in-process store driver.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// List returns all patients ordered by name ascending, insertion order
	// as tiebreak.
	List(ctx context.Context) ([]*Patient, error)
	// Update writes the full editable field set keyed by id, guarded by the
	// version token, and returns the committed row, which is the source of
	// truth after a write.
	Update(ctx context.Context, id uuid.UUID, version int, f Fields) (*Patient, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

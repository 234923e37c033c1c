package records

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound means the medical-record row is absent from the store.
var ErrNotFound = errors.New("medical record not found")

// Repository is the persistence abstraction for medical-record rows. Blob
// content lives in the blob store; the repository only tracks the rows that
// reference it.
type Repository interface {
	Create(ctx context.Context, m *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	// ListByPatient returns all records for a patient in descending
	// upload-date order, newest insert first on equal dates.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

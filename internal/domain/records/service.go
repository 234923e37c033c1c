package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/caredesk/internal/platform/blobstore"
)

// PartialError reports a multi-step sequence that succeeded partway and left
// a detectable inconsistency between the record table and blob storage. It
// is never conflated with a clean store error: the operator needs the
// affected key or row id to reconcile manually.
type PartialError struct {
	Op          string      // "upload" or "delete"
	OrphanedKey string      // blob left without a row (upload compensation failed)
	DanglingID  uuid.UUID   // row left referencing a deleted blob
	Err         error       // the failure that opened the window
}

func (e *PartialError) Error() string {
	switch {
	case e.OrphanedKey != "":
		return fmt.Sprintf("%s left orphaned blob %q: %v", e.Op, e.OrphanedKey, e.Err)
	case e.DanglingID != uuid.Nil:
		return fmt.Sprintf("%s left dangling record %s referencing a deleted blob: %v", e.Op, e.DanglingID, e.Err)
	default:
		return fmt.Sprintf("%s partial failure: %v", e.Op, e.Err)
	}
}

func (e *PartialError) Unwrap() error { return e.Err }

// PatientChecker verifies the owning patient exists before an upload is
// accepted. Implemented over the patient service and wired in main.
type PatientChecker interface {
	Exists(ctx context.Context, id uuid.UUID) error
}

// DefaultUploadedBy is recorded when the caller does not identify itself.
const DefaultUploadedBy = "Staff"

type Service struct {
	repo     Repository
	blobs    blobstore.Store
	patients PatientChecker

	now func() time.Time
}

func NewService(repo Repository, blobs blobstore.Store, patients PatientChecker) *Service {
	return &Service{
		repo:     repo,
		blobs:    blobs,
		patients: patients,
		now:      time.Now,
	}
}

// Get returns a single medical record row.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByPatient returns a patient's records in descending upload-date order.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// Upload runs the blob-then-row sequence: upload the blob under a
// timestamped key, resolve its public URL, insert the row. A blob failure
// stops the sequence before any insert, so no row can reference a missing
// blob. A row failure after a successful blob upload triggers a
// compensating blob delete; only if that compensation also fails does an
// orphaned blob remain, reported as a PartialError.
func (s *Service) Upload(ctx context.Context, patientID uuid.UUID, filename string, content io.Reader, uploadedBy string) (*MedicalRecord, error) {
	if s.patients != nil {
		if err := s.patients.Exists(ctx, patientID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	key := StorageKey(patientID, now, filename)

	if err := s.blobs.Upload(ctx, key, content, true); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}

	if uploadedBy == "" {
		uploadedBy = DefaultUploadedBy
	}
	url := s.blobs.PublicURL(key)
	rec := &MedicalRecord{
		PatientID:   patientID,
		Filename:    filename,
		UploadDate:  now.Truncate(24 * time.Hour),
		UploadedBy:  &uploadedBy,
		Type:        TypePDF,
		StorageKey:  key,
		StoragePath: &url,
	}
	if err := rec.Validate(); err != nil {
		// The blob is already up; take it back down before rejecting.
		if delErr := s.blobs.Delete(ctx, []string{key}); delErr != nil {
			return nil, &PartialError{Op: "upload", OrphanedKey: key, Err: errors.Join(err, delErr)}
		}
		return nil, err
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		if delErr := s.blobs.Delete(ctx, []string{key}); delErr != nil {
			return nil, &PartialError{Op: "upload", OrphanedKey: key, Err: errors.Join(err, delErr)}
		}
		return nil, fmt.Errorf("insert record: %w", err)
	}

	return rec, nil
}

// Delete removes a record's blob and then its row, always addressing the
// blob by the key stored on the row at upload time. A blob failure leaves
// the row untouched. A row failure after the blob is gone leaves a dangling
// reference, reported as a PartialError so the caller can retry the row
// delete; on that retry a key that is already gone counts as removed and
// the sequence moves straight to the row.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, []string{rec.StorageKey}); err != nil && !errors.Is(err, blobstore.ErrKeyNotFound) {
		return fmt.Errorf("delete blob: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return &PartialError{Op: "delete", DanglingID: id, Err: err}
	}
	return nil
}

// PurgeByPatient deletes every record and blob belonging to a patient. It
// backs the cascade on patient deletion; the first failure aborts so the
// caller never loses the patient row while records still point at it.
func (s *Service) PurgeByPatient(ctx context.Context, patientID uuid.UUID) error {
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	for _, rec := range items {
		if err := s.Delete(ctx, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

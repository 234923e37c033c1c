package records

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/caredesk/internal/platform/blobstore"
)

// flakyRepo wraps a MemoryRepo with injectable failures.
type flakyRepo struct {
	*MemoryRepo
	createErr error
	deleteErr error
}

func (r *flakyRepo) Create(ctx context.Context, m *MedicalRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.MemoryRepo.Create(ctx, m)
}

func (r *flakyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.MemoryRepo.Delete(ctx, id)
}

type allowAllPatients struct{}

func (allowAllPatients) Exists(context.Context, uuid.UUID) error { return nil }

type noPatients struct{ err error }

func (p noPatients) Exists(context.Context, uuid.UUID) error { return p.err }

func newTestService() (*Service, *flakyRepo, *flakyBlobs) {
	repo := &flakyRepo{MemoryRepo: NewMemoryRepo()}
	blobs := &flakyBlobs{MemoryStore: blobstore.NewMemoryStore("https://files.example.com")}
	svc := NewService(repo, blobs, allowAllPatients{})
	svc.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 30, 45, 123e6, time.UTC)
	}
	return svc, repo, blobs
}

// flakyBlobs wraps MemoryStore with injectable upload/delete failures.
type flakyBlobs struct {
	*blobstore.MemoryStore
	uploadErr error
	deleteErr error
}

func (s *flakyBlobs) Upload(ctx context.Context, key string, content io.Reader, overwrite bool) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	return s.MemoryStore.Upload(ctx, key, content, overwrite)
}

func (s *flakyBlobs) Delete(ctx context.Context, keys []string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.Delete(ctx, keys)
}

func TestUpload(t *testing.T) {
	svc, _, blobs := newTestService()
	patientID := uuid.New()

	rec, err := svc.Upload(context.Background(), patientID, "report.pdf", strings.NewReader("content"), "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	wantKey := StorageKey(patientID, time.Date(2025, 6, 1, 12, 30, 45, 123e6, time.UTC), "report.pdf")
	if rec.StorageKey != wantKey {
		t.Errorf("storage key = %q, want %q", rec.StorageKey, wantKey)
	}
	if data, ok := blobs.Get(wantKey); !ok || string(data) != "content" {
		t.Error("blob not stored under the derived key")
	}
	if rec.StoragePath == nil || *rec.StoragePath != "https://files.example.com/"+wantKey {
		t.Errorf("storage path = %v", rec.StoragePath)
	}
	if rec.UploadedBy == nil || *rec.UploadedBy != DefaultUploadedBy {
		t.Errorf("uploaded_by = %v, want the default", rec.UploadedBy)
	}
	if rec.Type != TypePDF {
		t.Errorf("type = %q, want pdf", rec.Type)
	}
	if !rec.UploadDate.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("upload date = %v, want day granularity", rec.UploadDate)
	}
}

func TestUpload_BlobFailureInsertsNothing(t *testing.T) {
	svc, repo, blobs := newTestService()
	blobs.uploadErr = errors.New("bucket unavailable")
	patientID := uuid.New()

	_, err := svc.Upload(context.Background(), patientID, "report.pdf", strings.NewReader("content"), "")
	if err == nil {
		t.Fatal("expected upload to fail")
	}
	items, _ := repo.ListByPatient(context.Background(), patientID)
	if len(items) != 0 {
		t.Error("no row may exist when the blob upload failed")
	}
}

func TestUpload_RowFailureCompensatesBlob(t *testing.T) {
	svc, repo, blobs := newTestService()
	repo.createErr = errors.New("insert rejected")
	patientID := uuid.New()

	_, err := svc.Upload(context.Background(), patientID, "report.pdf", strings.NewReader("content"), "")
	if err == nil {
		t.Fatal("expected upload to fail")
	}
	var pe *PartialError
	if errors.As(err, &pe) {
		t.Fatalf("compensated failure must not be partial, got %v", err)
	}
	if blobs.Len() != 0 {
		t.Error("compensating delete should have removed the blob")
	}
}

func TestUpload_CompensationFailureIsPartial(t *testing.T) {
	svc, repo, blobs := newTestService()
	repo.createErr = errors.New("insert rejected")
	blobs.deleteErr = errors.New("bucket unavailable")
	patientID := uuid.New()

	_, err := svc.Upload(context.Background(), patientID, "report.pdf", strings.NewReader("content"), "")
	var pe *PartialError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want PartialError", err)
	}
	if pe.Op != "upload" || pe.OrphanedKey == "" {
		t.Errorf("partial error = %+v, want the orphaned key reported", pe)
	}
	if _, ok := blobs.Get(pe.OrphanedKey); !ok {
		t.Error("reported orphaned key must still hold the blob")
	}
	// Both causes must be visible: why the row failed and why the cleanup
	// could not remove the blob.
	if !errors.Is(err, repo.createErr) {
		t.Errorf("error %v must carry the insert failure", err)
	}
	if !errors.Is(err, blobs.deleteErr) {
		t.Errorf("error %v must carry the compensation failure", err)
	}
}

func TestUpload_UnknownPatient(t *testing.T) {
	repo := &flakyRepo{MemoryRepo: NewMemoryRepo()}
	blobs := &flakyBlobs{MemoryStore: blobstore.NewMemoryStore("https://files.example.com")}
	sentinel := errors.New("patient not found")
	svc := NewService(repo, blobs, noPatients{err: sentinel})

	_, err := svc.Upload(context.Background(), uuid.New(), "report.pdf", strings.NewReader("x"), "")
	if !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want the existence-check error passed through", err)
	}
	if blobs.Len() != 0 {
		t.Error("nothing may be uploaded for an unknown patient")
	}
}

func TestDelete_UsesStoredKey(t *testing.T) {
	svc, repo, blobs := newTestService()
	ctx := context.Background()
	patientID := uuid.New()

	// Row created under an old key scheme; the blob lives at the stored
	// key, not at what today's derivation would produce.
	legacyKey := "legacy/" + patientID.String() + "/report.pdf"
	if err := blobs.MemoryStore.Upload(ctx, legacyKey, strings.NewReader("old"), true); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	rec := &MedicalRecord{
		PatientID:  patientID,
		Filename:   "report.pdf",
		UploadDate: time.Now().UTC(),
		Type:       TypePDF,
		StorageKey: legacyKey,
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	if err := svc.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := blobs.Get(legacyKey); ok {
		t.Error("blob at the stored key must be removed")
	}
	if _, err := repo.GetByID(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Error("row must be removed")
	}
}

func TestDelete_BlobFailureLeavesRow(t *testing.T) {
	svc, repo, blobs := newTestService()
	ctx := context.Background()

	rec, err := svc.Upload(ctx, uuid.New(), "report.pdf", strings.NewReader("content"), "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	blobs.deleteErr = errors.New("bucket unavailable")
	if err := svc.Delete(ctx, rec.ID); err == nil {
		t.Fatal("expected delete to fail")
	}
	if _, err := repo.GetByID(ctx, rec.ID); err != nil {
		t.Error("row must survive a failed blob delete")
	}
	if _, ok := blobs.Get(rec.StorageKey); !ok {
		t.Error("blob must survive a failed blob delete")
	}
}

func TestDelete_RowFailureIsPartial(t *testing.T) {
	svc, repo, blobs := newTestService()
	ctx := context.Background()

	rec, err := svc.Upload(ctx, uuid.New(), "report.pdf", strings.NewReader("content"), "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	repo.deleteErr = errors.New("store timeout")
	err = svc.Delete(ctx, rec.ID)
	var pe *PartialError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want PartialError", err)
	}
	if pe.Op != "delete" || pe.DanglingID != rec.ID {
		t.Errorf("partial error = %+v, want the dangling row id", pe)
	}
	if _, ok := blobs.Get(rec.StorageKey); ok {
		t.Error("blob is gone by the time the row delete fails")
	}
}

func TestDelete_RetryAfterRowFailureSucceeds(t *testing.T) {
	svc, repo, blobs := newTestService()
	ctx := context.Background()

	rec, err := svc.Upload(ctx, uuid.New(), "report.pdf", strings.NewReader("content"), "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	// First attempt removes the blob but fails on the row.
	repo.deleteErr = errors.New("store timeout")
	var pe *PartialError
	if err := svc.Delete(ctx, rec.ID); !errors.As(err, &pe) {
		t.Fatalf("error = %v, want PartialError", err)
	}

	// The retry must not trip over the already-removed blob.
	repo.deleteErr = nil
	if err := svc.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("retry after partial failure: %v", err)
	}
	if _, err := repo.GetByID(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Error("dangling row must be gone after the retry")
	}
	if blobs.Len() != 0 {
		t.Errorf("blob count = %d, want 0", blobs.Len())
	}
}

func TestListByPatient_NewestFirst(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	patientID := uuid.New()

	dates := []time.Time{
		time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		rec := &MedicalRecord{
			PatientID:  patientID,
			Filename:   "r.pdf",
			UploadDate: d,
			Type:       TypePDF,
			StorageKey: StorageKey(patientID, d.Add(time.Duration(i)*time.Second), "r.pdf"),
		}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	items, err := svc.ListByPatient(ctx, patientID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d records, want 3", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].UploadDate.After(items[i-1].UploadDate) {
			t.Errorf("records out of order at %d: %v after %v", i, items[i].UploadDate, items[i-1].UploadDate)
		}
	}
}

func TestPurgeByPatient(t *testing.T) {
	svc, repo, blobs := newTestService()
	ctx := context.Background()
	patientID := uuid.New()
	other := uuid.New()

	for i, pid := range []uuid.UUID{patientID, patientID, other} {
		svc.now = func() time.Time {
			return time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC)
		}
		if _, err := svc.Upload(ctx, pid, "r.pdf", strings.NewReader("x"), ""); err != nil {
			t.Fatalf("seed upload: %v", err)
		}
	}

	if err := svc.PurgeByPatient(ctx, patientID); err != nil {
		t.Fatalf("purge: %v", err)
	}

	mine, _ := repo.ListByPatient(ctx, patientID)
	if len(mine) != 0 {
		t.Error("purged patient still has record rows")
	}
	theirs, _ := repo.ListByPatient(ctx, other)
	if len(theirs) != 1 {
		t.Error("purge must not touch other patients' records")
	}
	if blobs.Len() != 1 {
		t.Errorf("blob count = %d, want only the other patient's blob", blobs.Len())
	}
}

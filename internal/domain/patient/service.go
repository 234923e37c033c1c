package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RecordPurger removes all medical records and their blobs for a patient.
// Implemented by the records service; a patient delete cascades through it
// before the patient row goes away, so no record can outlive its owner.
type RecordPurger interface {
	PurgeByPatient(ctx context.Context, patientID uuid.UUID) error
}

type Service struct {
	repo   Repository
	purger RecordPurger
}

func NewService(repo Repository, purger RecordPurger) *Service {
	return &Service{repo: repo, purger: purger}
}

// SetPurger wires the record purger after construction. The records service
// needs the patient service first, so the two are linked in a second step.
func (s *Service) SetPurger(p RecordPurger) {
	s.purger = p
}

// Create registers a new patient. The registration number is validated and
// the display identifier derived from it; both are immutable afterwards.
func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := ValidateRegID(p.RegID); err != nil {
		return err
	}
	if err := FieldsOf(p).Validate(); err != nil {
		return err
	}
	p.UniqueID = DeriveUniqueID(p.RegID)
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// Exists reports whether the patient row is present, returning ErrNotFound
// when it is not. Record uploads check ownership through this.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.GetByID(ctx, id)
	return err
}

// List returns all patients ordered by name.
func (s *Service) List(ctx context.Context) ([]*Patient, error) {
	return s.repo.List(ctx)
}

// Search fetches the full set and applies the term filter. A blank term
// returns everything in store order.
func (s *Service) Search(ctx context.Context, term string) ([]*Patient, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(items, term), nil
}

// Update persists the full editable field set guarded by the version token
// and returns the committed row.
func (s *Service) Update(ctx context.Context, id uuid.UUID, version int, f Fields) (*Patient, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, version, f)
}

// Delete removes a patient and, first, every medical record and blob that
// belongs to it. A purge failure aborts the delete so the patient row is
// never orphaned from records that still reference it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if s.purger != nil {
		if err := s.purger.PurgeByPatient(ctx, id); err != nil {
			return fmt.Errorf("purge medical records: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}

// Filter returns the patients whose name or unique identifier contains the
// term, case-insensitively. A blank or whitespace-only term returns the
// input unfiltered, in its original order.
func Filter(items []*Patient, term string) []*Patient {
	term = strings.TrimSpace(term)
	if term == "" {
		return items
	}
	term = strings.ToLower(term)

	var matched []*Patient
	for _, p := range items {
		if strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.UniqueID), term) {
			matched = append(matched, p)
		}
	}
	return matched
}

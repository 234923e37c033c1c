package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is a thread-safe, in-memory Repository backing tests and the
// in-process store driver.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*MedicalRecord
	seq     int
	order   map[uuid.UUID]int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		records: make(map[uuid.UUID]*MedicalRecord),
		order:   make(map[uuid.UUID]int),
	}
}

func cloneRecord(m *MedicalRecord) *MedicalRecord {
	cp := *m
	if m.UploadedBy != nil {
		v := *m.UploadedBy
		cp.UploadedBy = &v
	}
	if m.Summary != nil {
		v := *m.Summary
		cp.Summary = &v
	}
	if m.StoragePath != nil {
		v := *m.StoragePath
		cp.StoragePath = &v
	}
	return &cp
}

func (r *MemoryRepo) Create(_ context.Context, m *MedicalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m.ID = uuid.New()
	m.CreatedAt = time.Now().UTC()
	r.records[m.ID] = cloneRecord(m)
	r.seq++
	r.order[m.ID] = r.seq
	return nil
}

func (r *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(m), nil
}

func (r *MemoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*MedicalRecord
	for _, m := range r.records {
		if m.PatientID == patientID {
			items = append(items, cloneRecord(m))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UploadDate.Equal(items[j].UploadDate) {
			return items[i].UploadDate.After(items[j].UploadDate)
		}
		return r.order[items[i].ID] > r.order[items[j].ID]
	})
	return items, nil
}

func (r *MemoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	delete(r.order, id)
	return nil
}

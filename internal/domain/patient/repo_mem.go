package patient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is a thread-safe, in-memory Repository backing tests and the
// in-process store driver. It mirrors the PG implementation's semantics:
// name-ordered listing, full-field updates, version guarding.
type MemoryRepo struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*Patient
	seq      int
	order    map[uuid.UUID]int // insertion order, the List tiebreak
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		patients: make(map[uuid.UUID]*Patient),
		order:    make(map[uuid.UUID]int),
	}
}

func (r *MemoryRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.ID = uuid.New()
	p.Version = 1
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	r.patients[p.ID] = p.Clone()
	r.seq++
	r.order[p.ID] = r.seq
	return nil
}

func (r *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryRepo) List(_ context.Context) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Patient, 0, len(r.patients))
	for _, p := range r.patients {
		items = append(items, p.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return r.order[items[i].ID] < r.order[items[j].ID]
	})
	return items, nil
}

func (r *MemoryRepo) Update(_ context.Context, id uuid.UUID, version int, f Fields) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Version != version {
		return nil, ErrConflict
	}

	p.Name = f.Name
	p.DOB = f.DOB
	p.Gender = f.Gender
	p.Age = f.Age
	p.Phone = f.Phone
	p.Email = f.Email
	p.History = f.History
	p.Medicines = f.Medicines
	p.Allergies = f.Allergies
	p.PermanentConditions = f.PermanentConditions
	p.LastVisit = f.LastVisit
	p.Version++
	p.UpdatedAt = time.Now().UTC()

	return p.Clone(), nil
}

func (r *MemoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[id]; !ok {
		return ErrNotFound
	}
	delete(r.patients, id)
	delete(r.order, id)
	return nil
}

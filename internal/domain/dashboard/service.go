package dashboard

import "sync"

// Stats is the set of headline counters shown on the landing view. They are
// operator-set gauges, not derived counts.
type Stats struct {
	Doctors      int `json:"doctors"`
	Patients     int `json:"patients"`
	Appointments int `json:"appointments"`
	Medicines    int `json:"medicines"`
}

// clamp floors every counter at zero; a negative headline count is always a
// caller mistake.
func (s Stats) clamp() Stats {
	if s.Doctors < 0 {
		s.Doctors = 0
	}
	if s.Patients < 0 {
		s.Patients = 0
	}
	if s.Appointments < 0 {
		s.Appointments = 0
	}
	if s.Medicines < 0 {
		s.Medicines = 0
	}
	return s
}

// Service holds the counters in memory behind a mutex. State does not
// survive a restart, matching the transient nature of the display.
type Service struct {
	mu    sync.RWMutex
	stats Stats
}

func NewService(initial Stats) *Service {
	return &Service{stats: initial.clamp()}
}

func (s *Service) Get() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Set replaces the full counter set and returns the stored values.
func (s *Service) Set(next Stats) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = next.clamp()
	return s.stats
}

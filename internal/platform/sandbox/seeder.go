// Package sandbox generates synthetic patient data for demo environments
// and developer on-boarding. Output is reproducible for a fixed seed.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caredesk/caredesk/internal/domain/patient"
	"github.com/caredesk/caredesk/internal/domain/records"
)

// SeedConfig controls the volume of generated demo data.
type SeedConfig struct {
	PatientCount      int   `json:"patientCount"`
	RecordsPerPatient int   `json:"recordsPerPatient"`
	Seed              int64 `json:"seed"`
}

// DefaultSeedConfig returns a config sized for a usable demo.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount:      25,
		RecordsPerPatient: 2,
	}
}

// SeedResult summarizes a completed seed run.
type SeedResult struct {
	Patients int           `json:"patients"`
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration"`
}

var (
	firstNames = []string{
		"Aarav", "Vivaan", "Aditya", "Arjun", "Rohan", "Karan", "Rahul",
		"Amit", "Suresh", "Vikram", "Asha", "Priya", "Ananya", "Diya",
		"Kavya", "Meera", "Nisha", "Pooja", "Riya", "Sneha", "Lakshmi",
		"Deepa", "Geeta", "Sunita", "Rekha",
	}
	lastNames = []string{
		"Sharma", "Verma", "Patel", "Gupta", "Singh", "Kumar", "Reddy",
		"Nair", "Iyer", "Das", "Mehta", "Joshi", "Chopra", "Malhotra",
		"Banerjee", "Mukherjee", "Rao", "Pillai", "Desai", "Kapoor",
	}
	genders = []string{"Male", "Female"}

	historyPool = []string{
		"Type 2 diabetes, on oral medication",
		"Hypertension, well controlled",
		"Asthma since childhood",
		"No significant medical history",
		"Recovered from dengue fever last year",
		"Chronic lower back pain",
		"Hypothyroidism, on levothyroxine",
	}
	medicinePool = []string{
		"Metformin 500mg twice daily",
		"Amlodipine 5mg once daily",
		"Salbutamol inhaler as needed",
		"Levothyroxine 50mcg once daily",
		"Paracetamol as needed",
		"",
	}
	allergyPool = []string{
		"Penicillin", "Sulfa drugs", "Peanuts", "Dust", "None known", "",
	}
	conditionPool = []string{
		"Diabetes mellitus", "Hypertension", "Asthma", "Hypothyroidism", "",
	}
	recordFilenames = []string{
		"blood-test-report.pdf", "xray-chest.pdf", "discharge-summary.pdf",
		"prescription.pdf", "ecg-report.pdf", "lipid-profile.pdf",
	}
)

// Seeder creates demo patients and records through the domain services so
// every invariant the services enforce holds for seeded data too.
type Seeder struct {
	patients *patient.Service
	records  *records.Service
	rng      *rand.Rand
	logger   zerolog.Logger
}

func NewSeeder(patients *patient.Service, recs *records.Service, seed int64, logger zerolog.Logger) *Seeder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		patients: patients,
		records:  recs,
		rng:      rand.New(rand.NewSource(seed)),
		logger:   logger,
	}
}

func (s *Seeder) pick(pool []string) string {
	return pool[s.rng.Intn(len(pool))]
}

// regID generates a random 12-digit registration number.
func (s *Seeder) regID() string {
	digits := make([]byte, 12)
	for i := range digits {
		digits[i] = byte('0' + s.rng.Intn(10))
	}
	// Leading digit stays non-zero, matching real registration numbers.
	if digits[0] == '0' {
		digits[0] = '1'
	}
	return string(digits)
}

func (s *Seeder) randomDate(minYear, maxYear int) time.Time {
	y := minYear + s.rng.Intn(maxYear-minYear+1)
	m := time.Month(1 + s.rng.Intn(12))
	d := 1 + s.rng.Intn(28)
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Seeder) randomPhone() string {
	return fmt.Sprintf("+91 9%09d", s.rng.Intn(1000000000))
}

func (s *Seeder) generatePatient() *patient.Patient {
	first := s.pick(firstNames)
	last := s.pick(lastNames)
	name := first + " " + last
	gender := s.pick(genders)
	dob := s.randomDate(1950, 2010)
	age := time.Now().Year() - dob.Year()
	phone := s.randomPhone()
	email := fmt.Sprintf("%s.%s@example.com", first, last)
	lastVisit := s.randomDate(2023, 2025)

	p := &patient.Patient{
		RegID:     s.regID(),
		Name:      name,
		DOB:       &dob,
		Gender:    &gender,
		Age:       &age,
		Phone:     &phone,
		Email:     &email,
		LastVisit: &lastVisit,
	}
	if h := s.pick(historyPool); h != "" {
		p.History = &h
	}
	if m := s.pick(medicinePool); m != "" {
		p.Medicines = &m
	}
	if a := s.pick(allergyPool); a != "" {
		p.Allergies = &a
	}
	if c := s.pick(conditionPool); c != "" {
		p.PermanentConditions = &c
	}
	return p
}

// recordContent produces a small placeholder PDF body so seeded blobs are
// non-empty and distinguishable.
func (s *Seeder) recordContent(patientID uuid.UUID, filename string) []byte {
	return []byte(fmt.Sprintf("%%PDF-1.4\n%% demo document %s for patient %s\n", filename, patientID))
}

// Run creates the configured number of patients, each with a handful of
// medical records. Individual failures are logged and skipped so a partial
// run still produces usable data.
func (s *Seeder) Run(ctx context.Context, cfg SeedConfig) (*SeedResult, error) {
	start := time.Now()
	result := &SeedResult{}

	for i := 0; i < cfg.PatientCount; i++ {
		p := s.generatePatient()
		if err := s.patients.Create(ctx, p); err != nil {
			s.logger.Warn().Err(err).Str("name", p.Name).Msg("seed: skipping patient")
			continue
		}
		result.Patients++

		for j := 0; j < cfg.RecordsPerPatient; j++ {
			filename := s.pick(recordFilenames)
			content := bytes.NewReader(s.recordContent(p.ID, filename))
			if _, err := s.records.Upload(ctx, p.ID, filename, content, "Seeder"); err != nil {
				s.logger.Warn().Err(err).Str("filename", filename).Msg("seed: skipping record")
				continue
			}
			result.Records++
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

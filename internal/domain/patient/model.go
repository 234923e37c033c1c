package patient

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. All demographic fields except the name
// are optional free text; absent values are stored as NULL, never as empty
// strings. Version is the optimistic-concurrency token: a save carrying a
// stale version is rejected instead of silently overwriting a newer write.
type Patient struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	RegID               string     `db:"reg_id" json:"reg_id"`
	UniqueID            string     `db:"unique_id" json:"unique_id"`
	Name                string     `db:"name" json:"name"`
	DOB                 *time.Time `db:"dob" json:"dob,omitempty"`
	Gender              *string    `db:"gender" json:"gender,omitempty"`
	Age                 *int       `db:"age" json:"age,omitempty"`
	Phone               *string    `db:"phone" json:"phone,omitempty"`
	Email               *string    `db:"email" json:"email,omitempty"`
	History             *string    `db:"history" json:"history,omitempty"`
	Medicines           *string    `db:"medicines" json:"medicines,omitempty"`
	Allergies           *string    `db:"allergies" json:"allergies,omitempty"`
	PermanentConditions *string    `db:"permanent_conditions" json:"permanent_conditions,omitempty"`
	LastVisit           *time.Time `db:"last_visit" json:"last_visit,omitempty"`
	Version             int        `db:"version" json:"version"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Fields is the full set of editable patient fields. Saves always carry the
// complete set, never a partial diff. RegID and UniqueID are immutable after
// creation and deliberately absent.
type Fields struct {
	Name                string
	DOB                 *time.Time
	Gender              *string
	Age                 *int
	Phone               *string
	Email               *string
	History             *string
	Medicines           *string
	Allergies           *string
	PermanentConditions *string
	LastVisit           *time.Time
}

// FieldsOf extracts the editable field set from a patient.
func FieldsOf(p *Patient) Fields {
	return Fields{
		Name:                p.Name,
		DOB:                 p.DOB,
		Gender:              p.Gender,
		Age:                 p.Age,
		Phone:               p.Phone,
		Email:               p.Email,
		History:             p.History,
		Medicines:           p.Medicines,
		Allergies:           p.Allergies,
		PermanentConditions: p.PermanentConditions,
		LastVisit:           p.LastVisit,
	}
}

// Validate checks the invariants a row must satisfy before it may be
// persisted.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if f.Age != nil && *f.Age < 0 {
		return fmt.Errorf("%w: age must be a non-negative integer", ErrInvalid)
	}
	return nil
}

// Clone returns a deep copy. Edit sessions keep a cloned snapshot so a
// cancelled edit can restore the exact pre-edit state.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	cp := *p
	cp.DOB = cloneTime(p.DOB)
	cp.Gender = cloneString(p.Gender)
	cp.Age = cloneInt(p.Age)
	cp.Phone = cloneString(p.Phone)
	cp.Email = cloneString(p.Email)
	cp.History = cloneString(p.History)
	cp.Medicines = cloneString(p.Medicines)
	cp.Allergies = cloneString(p.Allergies)
	cp.PermanentConditions = cloneString(p.PermanentConditions)
	cp.LastVisit = cloneTime(p.LastVisit)
	return &cp
}

// SetField applies a raw text input from the shell to one editable field,
// coercing per field type. Unknown field names return false.
func (p *Patient) SetField(name, raw string) bool {
	switch name {
	case "name":
		p.Name = raw
	case "dob":
		p.DOB = ParseDate(raw)
	case "gender":
		p.Gender = OptionalText(raw)
	case "age":
		p.Age = ParseAge(raw)
	case "phone":
		p.Phone = OptionalText(raw)
	case "email":
		p.Email = OptionalText(raw)
	case "history":
		p.History = OptionalText(raw)
	case "medicines":
		p.Medicines = OptionalText(raw)
	case "allergies":
		p.Allergies = OptionalText(raw)
	case "permanent_conditions":
		p.PermanentConditions = OptionalText(raw)
	case "last_visit":
		p.LastVisit = ParseDate(raw)
	default:
		return false
	}
	return true
}

// ParseAge coerces raw text to a non-negative integer age. Blank,
// non-numeric, and negative input all coerce to absent; garbage must never
// be persisted as an age.
func ParseAge(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// OptionalText normalizes a free-text input: blank clears the field to
// absent, anything else is kept verbatim.
func OptionalText(raw string) *string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return &raw
}

// DateLayout is the day-granularity wire format for dates.
const DateLayout = "2006-01-02"

// ParseDate coerces raw text in YYYY-MM-DD form to a date; invalid input
// coerces to absent.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

var regIDPattern = regexp.MustCompile(`^\d{12}$`)

// ValidateRegID checks the 12-digit registration number format.
func ValidateRegID(regID string) error {
	if !regIDPattern.MatchString(regID) {
		return fmt.Errorf("%w: registration number must be exactly 12 digits", ErrInvalid)
	}
	return nil
}

// DeriveUniqueID builds the display identifier from the registration number
// by reversing its digits.
func DeriveUniqueID(regID string) string {
	runes := []rune(regID)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordType enumerates the kinds of medical record the system stores.
type RecordType string

const (
	TypePDF          RecordType = "pdf"
	TypePrescription RecordType = "prescription"
)

func (t RecordType) Valid() bool {
	return t == TypePDF || t == TypePrescription
}

// MedicalRecord maps to the medical_records table. StorageKey is the exact
// blob key written at upload time; deletes always use the stored key, never
// a recomputed one, so a rename or key-scheme change can never strand a
// blob. StoragePath is the public locator and stays null until the upload
// resolves.
type MedicalRecord struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Filename    string     `db:"filename" json:"filename"`
	UploadDate  time.Time  `db:"upload_date" json:"upload_date"`
	UploadedBy  *string    `db:"uploaded_by" json:"uploaded_by,omitempty"`
	Summary     *string    `db:"summary" json:"summary,omitempty"`
	Type        RecordType `db:"type" json:"type"`
	StorageKey  string     `db:"storage_key" json:"storage_key"`
	StoragePath *string    `db:"storage_path" json:"storage_path,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (m *MedicalRecord) Validate() error {
	if m.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(m.Filename) == "" {
		return fmt.Errorf("filename is required")
	}
	if !m.Type.Valid() {
		return fmt.Errorf("invalid record type: %s", m.Type)
	}
	return nil
}

// StorageKey derives the blob key for a new upload:
// "<patientID>/<unix-ms>-<filename>". The timestamp prefix keeps repeated
// uploads of the same filename from colliding.
func StorageKey(patientID uuid.UUID, at time.Time, filename string) string {
	return fmt.Sprintf("%s/%d-%s", patientID, at.UnixMilli(), sanitizeFilename(filename))
}

// sanitizeFilename strips path separators so a hostile filename cannot
// escape the patient's key prefix.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		name = "file"
	}
	return name
}

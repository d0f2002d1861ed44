package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document is a file uploaded to a patient's record: consent forms,
// prescriptions, scanned reports.
type Document struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Filename    string     `db:"filename" json:"filename"`
	StorageKey  string     `db:"storage_key" json:"-"`
	ContentType *string    `db:"content_type" json:"content_type,omitempty"`
	SizeBytes   int64      `db:"size_bytes" json:"size_bytes"`
	Description *string    `db:"description" json:"description,omitempty"`
	UploadedBy  *uuid.UUID `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

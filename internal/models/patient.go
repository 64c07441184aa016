package models

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// PatientRecord is one entry of the append-only audit log: patient X was
// tested against panel/Rcode Y at version Z on date D. Rows are never
// updated or deleted.
type PatientRecord struct {
	bun.BaseModel `bun:"table:patient_records,alias:pr"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	PatientID string    `bun:"patient_id,notnull" json:"patient_id"`
	PanelID   int       `bun:"panel_id,notnull" json:"panel_id"`
	Rcode     string    `bun:"rcode,notnull" json:"rcode"`
	Version   float64   `bun:"version,notnull" json:"version"`
	Date      time.Time `bun:"date,notnull" json:"date"`
}

// Validate checks that required record fields are present.
func (r *PatientRecord) Validate() error {
	if r.PatientID == "" {
		return errors.New("patient ID is required")
	}
	if r.Rcode == "" {
		return errors.New("rcode is required")
	}
	if r.PanelID <= 0 {
		return errors.New("panel ID must be positive")
	}
	if r.Version <= 0 {
		return errors.New("version must be positive")
	}
	if r.Date.IsZero() {
		return errors.New("date is required")
	}
	return nil
}

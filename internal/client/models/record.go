package models

import (
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/barcode"
)

// CapturedRecord is one field observation, awaiting or having completed
// transmission to the backend.
//
// IsSynced implies RemoteID != "" and SyncError == "". SyncAttempts only
// grows.
type CapturedRecord struct {
	// LocalID is assigned by the local store on first save and never reused.
	LocalID int64
	// RemoteID is set once, on the first successful sync. Empty means the
	// backend has not accepted the record yet.
	RemoteID string

	Barcode             string
	LicenceNumber       string
	VehicleRegistration string
	VehicleType         string
	Make                string
	Model               string
	Colour              string
	VIN                 string
	EngineNumber        string
	ExpiryDate          string

	Notes       string
	Latitude    *float64
	Longitude   *float64
	Attachments []string

	CapturedAt time.Time
	CapturedBy string

	IsSynced      bool
	SyncedAt      *time.Time
	SyncAttempts  int
	LastAttemptAt *time.Time
	SyncError     string
}

// ApplyBarcode copies parsed scan values onto the record. Blank values never
// overwrite existing ones.
func (r *CapturedRecord) ApplyBarcode(f barcode.Fields) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&r.Barcode, f.Raw)
	set(&r.LicenceNumber, f.LicenceNumber)
	set(&r.VehicleRegistration, f.VehicleRegistration)
	set(&r.VehicleType, f.VehicleType)
	set(&r.Make, f.Make)
	set(&r.Model, f.Model)
	set(&r.Colour, f.Colour)
	set(&r.VIN, f.VIN)
	set(&r.EngineNumber, f.EngineNumber)
	set(&r.ExpiryDate, f.ExpiryDate)
}

// HasLocation reports whether both coordinates are present.
func (r *CapturedRecord) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

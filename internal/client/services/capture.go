package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/barcode"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/google/uuid"
)

// CaptureInput is what the operator entered or scanned. Manual values win
// over values parsed from Barcode.
type CaptureInput struct {
	Barcode string

	LicenceNumber       string
	VehicleRegistration string
	VehicleType         string
	Make                string
	Model               string
	Colour              string
	VIN                 string
	EngineNumber        string
	ExpiryDate          string

	Notes     string
	Latitude  *float64
	Longitude *float64

	// Attachments are paths of files to send with the record.
	Attachments []string
}

type CaptureResult struct {
	Record *models.CapturedRecord
	// Partial is set when the barcode had fewer fields than expected.
	Partial bool
}

// CaptureService validates operator input and persists it as an unsynced
// record.
type CaptureService struct {
	store          RecordStore
	log            logging.Logger
	now            func() time.Time
	attachmentsDir string
}

type CaptureOption func(*CaptureService)

func WithCaptureClock(now func() time.Time) CaptureOption {
	return func(s *CaptureService) { s.now = now }
}

// WithAttachmentsDir makes Capture copy attachments into dir, so the record
// owns its files and housekeeping may delete them.
func WithAttachmentsDir(dir string) CaptureOption {
	return func(s *CaptureService) { s.attachmentsDir = dir }
}

func NewCaptureService(store RecordStore, log logging.Logger, opts ...CaptureOption) *CaptureService {
	s := &CaptureService{store: store, log: log.With("component", "capture"), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Capture stores a new record for the session's user. A nil session stamps
// the record with common.UnknownUserID.
func (s *CaptureService) Capture(ctx context.Context, sess *models.Session, in CaptureInput) (*CaptureResult, error) {
	rec := &models.CapturedRecord{}

	var partial bool
	// The scan is stored exactly as received.
	if strings.TrimSpace(in.Barcode) != "" {
		parsed := barcode.Parse(in.Barcode)
		rec.ApplyBarcode(parsed.Fields)
		partial = parsed.Partial
		if partial {
			s.log.Warn(ctx, "barcode has fewer fields than expected", "fields", parsed.FieldCount)
		}
	}

	rec.ApplyBarcode(barcode.Fields{
		LicenceNumber:       strings.TrimSpace(in.LicenceNumber),
		VehicleRegistration: strings.TrimSpace(in.VehicleRegistration),
		VehicleType:         strings.TrimSpace(in.VehicleType),
		Make:                strings.TrimSpace(in.Make),
		Model:               strings.TrimSpace(in.Model),
		Colour:              strings.TrimSpace(in.Colour),
		VIN:                 strings.TrimSpace(in.VIN),
		EngineNumber:        strings.TrimSpace(in.EngineNumber),
		ExpiryDate:          strings.TrimSpace(in.ExpiryDate),
	})
	rec.Notes = strings.TrimSpace(in.Notes)
	rec.Latitude, rec.Longitude = in.Latitude, in.Longitude

	if err := validateCapture(rec, in.Attachments); err != nil {
		return nil, err
	}

	paths, err := s.adoptAttachments(in.Attachments)
	if err != nil {
		return nil, err
	}
	rec.Attachments = paths

	rec.CapturedAt = s.now().UTC()
	rec.CapturedBy = sess.CapturedByID()

	if _, err := s.store.SaveRecord(ctx, rec); err != nil {
		s.removeAdopted(paths)
		return nil, fmt.Errorf("save record: %w", err)
	}

	s.log.Info(ctx, "record captured",
		"local_id", rec.LocalID,
		"captured_by", rec.CapturedBy,
		"attachments", len(rec.Attachments),
	)
	return &CaptureResult{Record: rec, Partial: partial}, nil
}

func validateCapture(rec *models.CapturedRecord, attachments []string) error {
	if rec.Barcode == "" && rec.VehicleRegistration == "" {
		return &common.ValidationError{Field: "barcode", Reason: "or vehicle registration is required"}
	}

	if (rec.Latitude == nil) != (rec.Longitude == nil) {
		return &common.ValidationError{Field: "location", Reason: "needs both latitude and longitude"}
	}
	if rec.Latitude != nil && (*rec.Latitude < -90 || *rec.Latitude > 90) {
		return &common.ValidationError{Field: "latitude", Reason: "out of range"}
	}
	if rec.Longitude != nil && (*rec.Longitude < -180 || *rec.Longitude > 180) {
		return &common.ValidationError{Field: "longitude", Reason: "out of range"}
	}

	for _, p := range attachments {
		if !filex.Exists(p) {
			return &common.ValidationError{Field: "attachment", Reason: fmt.Sprintf("%q is not a readable file", p)}
		}
	}
	return nil
}

// adoptAttachments returns the paths to store on the record, copying the
// files into the managed directory when one is configured.
func (s *CaptureService) adoptAttachments(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			s.removeAdopted(out)
			return nil, fmt.Errorf("attachment %s: %w", p, err)
		}
		if s.attachmentsDir == "" {
			out = append(out, abs)
			continue
		}

		dst, err := filex.CopyInto(abs, s.attachmentsDir, uuid.NewString()+"-"+filepath.Base(abs))
		if err != nil {
			s.removeAdopted(out)
			return nil, fmt.Errorf("attachment %s: %w", p, err)
		}
		out = append(out, dst)
	}
	return out, nil
}

func (s *CaptureService) removeAdopted(paths []string) {
	if s.attachmentsDir == "" {
		return
	}
	for _, p := range paths {
		_ = filex.RemoveQuietly(p)
	}
}

func (s *CaptureService) Get(ctx context.Context, localID int64) (*models.CapturedRecord, error) {
	return s.store.GetRecord(ctx, localID)
}

// List returns up to limit records, newest first. A limit of zero or less
// returns all of them.
func (s *CaptureService) List(ctx context.Context, limit int) ([]*models.CapturedRecord, error) {
	return s.store.ListRecords(ctx, limit)
}

func (s *CaptureService) PendingCount(ctx context.Context) (int, error) {
	return s.store.CountUnsynced(ctx)
}

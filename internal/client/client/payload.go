package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// Backend object names.
const (
	ObjectCapture        = "Vehicle_Capture__c"
	ObjectUser           = "Field_User__c"
	ObjectContentVersion = "ContentVersion"
)

// RecordPayload is the backend shape of a captured record.
type RecordPayload struct {
	DeviceRecordID      int64    `json:"Device_Record_Id__c"`
	Barcode             string   `json:"Barcode_Data__c,omitempty"`
	LicenceNumber       string   `json:"Licence_Number__c,omitempty"`
	VehicleRegistration string   `json:"Vehicle_Registration__c,omitempty"`
	VehicleType         string   `json:"Vehicle_Type__c,omitempty"`
	Make                string   `json:"Make__c,omitempty"`
	Model               string   `json:"Model__c,omitempty"`
	Colour              string   `json:"Colour__c,omitempty"`
	VIN                 string   `json:"VIN__c,omitempty"`
	EngineNumber        string   `json:"Engine_Number__c,omitempty"`
	ExpiryDate          string   `json:"Licence_Expiry_Date__c,omitempty"`
	Notes               string   `json:"Notes__c,omitempty"`
	Latitude            *float64 `json:"Location__Latitude__s,omitempty"`
	Longitude           *float64 `json:"Location__Longitude__s,omitempty"`
	CapturedAt          string   `json:"Captured_At__c"`
	CapturedBy          string   `json:"Captured_By__c"`
	AttachmentCount     int      `json:"Attachment_Count__c"`
}

func NewRecordPayload(r *models.CapturedRecord) RecordPayload {
	return RecordPayload{
		DeviceRecordID:      r.LocalID,
		Barcode:             r.Barcode,
		LicenceNumber:       r.LicenceNumber,
		VehicleRegistration: r.VehicleRegistration,
		VehicleType:         r.VehicleType,
		Make:                r.Make,
		Model:               r.Model,
		Colour:              r.Colour,
		VIN:                 r.VIN,
		EngineNumber:        r.EngineNumber,
		ExpiryDate:          r.ExpiryDate,
		Notes:               r.Notes,
		Latitude:            r.Latitude,
		Longitude:           r.Longitude,
		CapturedAt:          r.CapturedAt.UTC().Format(time.RFC3339),
		CapturedBy:          r.CapturedBy,
		AttachmentCount:     len(r.Attachments),
	}
}

// LastLoginPayload updates a field user's last login time.
type LastLoginPayload struct {
	LastLogin string `json:"Last_Login__c"`
}

func NewLastLoginPayload(at time.Time) LastLoginPayload {
	return LastLoginPayload{LastLogin: at.UTC().Format(time.RFC3339)}
}

// RemoteUser is a Field_User__c query row.
type RemoteUser struct {
	ID                string `json:"Id"`
	Name              string `json:"Name"`
	PIN               string `json:"PIN__c"`
	IsActive          bool   `json:"Is_Active__c"`
	Permissions       string `json:"Permissions__c"`
	BranchPermissions string `json:"Branch_Permissions__c"`
}

// ToUser maps a query row to a User. Multi-valued fields are ";"-separated.
func (r RemoteUser) ToUser() models.User {
	return models.User{
		ID:                r.ID,
		DisplayName:       r.Name,
		Pin:               r.PIN,
		IsActive:          r.IsActive,
		Permissions:       splitMulti(r.Permissions),
		BranchPermissions: splitMulti(r.BranchPermissions),
	}
}

func splitMulti(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ";") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// UserByPINQuery builds the lookup statement for a field user.
func UserByPINQuery(pin string) string {
	return "SELECT Id, Name, PIN__c, Is_Active__c, Permissions__c, Branch_Permissions__c FROM " +
		ObjectUser + " WHERE PIN__c = '" + EscapeLiteral(pin) + "' LIMIT 1"
}

// EscapeLiteral escapes s for use inside a single-quoted query literal.
func EscapeLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return r.Replace(s)
}

// Decode maps raw query rows to T.
func Decode[T any](rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		var v T
		if err := json.Unmarshal(row, &v); err != nil {
			return nil, fmt.Errorf("failed to decode row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// QueryAs runs statement and decodes every row to T.
func QueryAs[T any](ctx context.Context, c Client, statement string) ([]T, error) {
	rows, err := c.Query(ctx, statement)
	if err != nil {
		return nil, err
	}
	return Decode[T](rows)
}

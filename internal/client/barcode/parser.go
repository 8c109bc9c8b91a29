// Package barcode decodes the "%"-delimited string read from a vehicle
// licence disc into structured vehicle fields.
//
// Parse is total: it never fails. A string that does not have the expected
// shape still yields a Result whose Raw field holds the scan verbatim, with
// Partial set so the caller knows only the raw payload is usable.
package barcode

import "strings"

const (
	Separator = "%"
	MinFields = 15
)

// Positions of the structured fields after splitting on Separator. The disc
// string starts with the separator, so index 0 is always empty.
const (
	posLicenceNumber       = 6
	posVehicleRegistration = 7
	posVehicleType         = 8
	posMake                = 9
	posModel               = 10
	posColour              = 11
	posVIN                 = 12
	posEngineNumber        = 13
	posExpiryDate          = 14
)

// Fields holds the values extracted from a scan. Empty strings mean "not
// present" and must not overwrite existing values.
type Fields struct {
	Raw                 string
	LicenceNumber       string
	VehicleRegistration string
	VehicleType         string
	Make                string
	Model               string
	Colour              string
	VIN                 string
	EngineNumber        string
	ExpiryDate          string
}

type Result struct {
	Fields
	// FieldCount is the number of fields produced by the split.
	FieldCount int
	// Partial is set when fewer than MinFields were found and only Raw is populated.
	Partial bool
}

// Parse splits raw on Separator and extracts the positional fields.
func Parse(raw string) Result {
	parts := strings.Split(raw, Separator)

	res := Result{
		Fields:     Fields{Raw: raw},
		FieldCount: len(parts),
	}

	if len(parts) < MinFields {
		res.Partial = true
		return res
	}

	at := func(i int) string { return strings.TrimSpace(parts[i]) }

	res.LicenceNumber = at(posLicenceNumber)
	res.VehicleRegistration = at(posVehicleRegistration)
	res.VehicleType = at(posVehicleType)
	res.Make = at(posMake)
	res.Model = at(posModel)
	res.Colour = at(posColour)
	res.VIN = at(posVIN)
	res.EngineNumber = at(posEngineNumber)
	res.ExpiryDate = at(posExpiryDate)

	return res
}

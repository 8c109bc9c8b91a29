package barcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const discScan = "%MVL1CC57%0156%4024O03C%1%40240486F3MD%KN87PFGP%HTS977K%Hatch back / Luikrug%VOLKSWAGEN%VW 216 T-CROSS%Black / Swart%WVGZZZC1ZLY056933%DKJ048733%2025-05-31%"

func TestParse_LicenceDisc(t *testing.T) {
	res := Parse(discScan)

	require.False(t, res.Partial)
	assert.Equal(t, 16, res.FieldCount)
	assert.Equal(t, Fields{
		Raw:                 discScan,
		LicenceNumber:       "KN87PFGP",
		VehicleRegistration: "HTS977K",
		VehicleType:         "Hatch back / Luikrug",
		Make:                "VOLKSWAGEN",
		Model:               "VW 216 T-CROSS",
		Colour:              "Black / Swart",
		VIN:                 "WVGZZZC1ZLY056933",
		EngineNumber:        "DKJ048733",
		ExpiryDate:          "2025-05-31",
	}, res.Fields)
}

func TestParse_Partial(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		count int
	}{
		{name: "five fields", raw: "a%b%c%d%e", count: 5},
		{name: "empty", raw: "", count: 1},
		{name: "no separator", raw: "HTS977K", count: 1},
		{name: "fourteen fields", raw: strings.Repeat("x%", 13) + "x", count: 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.raw)
			assert.True(t, res.Partial)
			assert.Equal(t, tt.count, res.FieldCount)
			assert.Equal(t, Fields{Raw: tt.raw}, res.Fields)
		})
	}
}

func TestParse_ExactlyMinFields(t *testing.T) {
	parts := make([]string, MinFields)
	for i := range parts {
		parts[i] = "f" + string(rune('a'+i))
	}
	raw := strings.Join(parts, Separator)

	res := Parse(raw)
	require.False(t, res.Partial)
	assert.Equal(t, MinFields, res.FieldCount)
	assert.Equal(t, "fg", res.LicenceNumber)
	assert.Equal(t, "fh", res.VehicleRegistration)
	assert.Equal(t, "fo", res.ExpiryDate)
}

func TestParse_BlankFieldsLeftUnset(t *testing.T) {
	raw := "%MVL1CC57%0156%4024O03C%1%40240486F3MD%%HTS977K%  %VOLKSWAGEN%%%%%2025-05-31%"

	res := Parse(raw)
	require.False(t, res.Partial)
	assert.Empty(t, res.LicenceNumber)
	assert.Equal(t, "HTS977K", res.VehicleRegistration)
	assert.Empty(t, res.VehicleType, "whitespace-only values are blank")
	assert.Equal(t, "VOLKSWAGEN", res.Make)
	assert.Empty(t, res.Model)
	assert.Empty(t, res.VIN)
	assert.Equal(t, "2025-05-31", res.ExpiryDate)
}

package acord_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carriershark/backend/internal/application/acord"
	"github.com/carriershark/backend/internal/domain/entities"
)

var provenance = entities.OCRProvenance{Provider: "textract"}

// certificateText approximates the OCR output of a typical ACORD 25 form with
// general liability and auto liability sections.
const certificateText = `ACORD
CERTIFICATE OF LIABILITY INSURANCE DATE (MM/DD/YYYY) 03/15/2024
THIS CERTIFICATE IS ISSUED AS A MATTER OF INFORMATION ONLY AND CONFERS NO RIGHTS UPON THE CERTIFICATE HOLDER.
PRODUCER
Lakeside Insurance Agency Inc
INSURED
Road Runner Logistics LLC
COVERAGES CERTIFICATE NUMBER: 00012345 REVISION NUMBER:
INSR LTR TYPE OF INSURANCE POLICY NUMBER POLICY EFF POLICY EXP LIMITS
A COMMERCIAL GENERAL LIABILITY GL-884422 04/01/2024 04/01/2025
EACH OCCURRENCE $1,000,000
GENERAL AGGREGATE $2,000,000
DAMAGE TO RENTED PREMISES (EA OCCURRENCE) $100,000
MED EXP (ANY ONE PERSON) $5,000
PERSONAL & ADV INJURY $1,000,000
B AUTOMOBILE LIABILITY AL-553311 04/01/2024 04/01/2025
COMBINED SINGLE LIMIT (EA ACCIDENT) $1,000,000
BODILY INJURY (PER PERSON)
BODILY INJURY (PER ACCIDENT)
PROPERTY DAMAGE (PER ACCIDENT)
HIRED AUTOS ONLY
NON-OWNED AUTOS ONLY
DESCRIPTION OF OPERATIONS / LOCATIONS / VEHICLES
Certificate holder is listed as additional insured with respect to general liability.
CERTIFICATE HOLDER
Acme Freight Brokerage LLC
CANCELLATION
SHOULD ANY OF THE ABOVE DESCRIBED POLICIES BE CANCELLED BEFORE THE EXPIRATION DATE THEREOF, NOTICE WILL BE DELIVERED.`

// cargoSection is spliced into certificateText to build a certificate that
// also carries motor truck cargo coverage.
const cargoSection = `C MOTOR TRUCK CARGO MC-221100 04/01/2024 04/01/2025
SCHEDULED AUTOS LIMIT $100,000
DEDUCTIBLE $1,000
`

func TestParse_TypicalCertificate(t *testing.T) {
	result := acord.Parse(certificateText, provenance)

	assert.True(t, result.ACORDLikely)
	assert.Equal(t, 85, result.Confidence)
	assert.Equal(t, "textract", result.OCR.Provider)

	require.NotNil(t, result.Extracted.AutoLiabilityLimit)
	assert.Equal(t, int64(1_000_000), *result.Extracted.AutoLiabilityLimit)

	// The GL window covers the aggregate line, and the largest amount wins
	require.NotNil(t, result.Extracted.GeneralLiabilityLimit)
	assert.Equal(t, int64(2_000_000), *result.Extracted.GeneralLiabilityLimit)

	assert.Nil(t, result.Extracted.CargoLimit)
	assert.Equal(t, []entities.CoverageType{entities.CoverageTypeGL, entities.CoverageTypeAuto}, result.Extracted.DetectedCoverageTypes)
}

func TestParse_CertificateWithCargo(t *testing.T) {
	text := strings.Replace(certificateText, "DESCRIPTION OF OPERATIONS", cargoSection+"DESCRIPTION OF OPERATIONS", 1)

	result := acord.Parse(text, provenance)

	assert.True(t, result.ACORDLikely)

	require.NotNil(t, result.Extracted.CargoLimit)
	assert.Equal(t, int64(100_000), *result.Extracted.CargoLimit)

	// All contributions together overshoot, so the score caps at 100
	assert.Equal(t, 100, result.Confidence)
	assert.Contains(t, result.Extracted.DetectedCoverageTypes, entities.CoverageTypeCargo)
}

func TestParse_DetectsCoverageTypesInStableOrder(t *testing.T) {
	text := `COVERAGES
WORKERS COMPENSATION AND EMPLOYERS LIABILITY
UMBRELLA LIAB
COMMERCIAL GENERAL LIABILITY
AUTOMOBILE LIABILITY
MOTOR TRUCK CARGO
PROFESSIONAL LIABILITY
POLLUTION LIABILITY
CYBER LIABILITY`

	result := acord.Parse(text, provenance)

	assert.Equal(t, []entities.CoverageType{
		entities.CoverageTypeGL,
		entities.CoverageTypeAuto,
		entities.CoverageTypeCargo,
		entities.CoverageTypeWC,
		entities.CoverageTypeUmbrella,
		entities.CoverageTypeEO,
		entities.CoverageTypePollution,
		entities.CoverageTypeCyber,
	}, result.Extracted.DetectedCoverageTypes)
}

func TestParse_NotACORDWithFewSignals(t *testing.T) {
	result := acord.Parse("INSURED\nSome Trucking Company\nInvoice total $4,500.00", provenance)

	assert.False(t, result.ACORDLikely)
	assert.Equal(t, 0, result.Confidence)
	assert.Nil(t, result.Extracted.AutoLiabilityLimit)
}

func TestParse_MissingCoveragesHeadingStillExtracts(t *testing.T) {
	text := `CERTIFICATE OF LIABILITY INSURANCE
PRODUCER
INSURED
AUTOMOBILE LIABILITY
COMBINED SINGLE LIMIT $750,000
Effective 01/01/2024 to 01/01/2025`

	result := acord.Parse(text, provenance)

	// Without a COVERAGES heading the whole text serves as the search block
	require.NotNil(t, result.Extracted.AutoLiabilityLimit)
	assert.Equal(t, int64(750_000), *result.Extracted.AutoLiabilityLimit)
}

func TestParse_CoverageWithoutAmountYieldsNilLimit(t *testing.T) {
	text := `CERTIFICATE OF LIABILITY INSURANCE
PRODUCER
COVERAGES
AUTOMOBILE LIABILITY
BODILY INJURY PER ACCIDENT
DESCRIPTION OF OPERATIONS`

	result := acord.Parse(text, provenance)

	assert.Contains(t, result.Extracted.DetectedCoverageTypes, entities.CoverageTypeAuto)
	assert.Nil(t, result.Extracted.AutoLiabilityLimit)
}

func TestParse_DatesDeduplicatedInOrder(t *testing.T) {
	text := `Policy effective 04/01/2024 expires 04/01/2025 issued 3/15/2024 renewed 04/01/2024`

	result := acord.Parse(text, provenance)

	assert.Equal(t, []string{"04/01/2024", "04/01/2025", "3/15/2024"}, result.Extracted.DetectedDates)
}

func TestParse_EmptyInput(t *testing.T) {
	result := acord.Parse("", provenance)

	assert.False(t, result.ACORDLikely)
	assert.Equal(t, 0, result.Confidence)
	assert.Empty(t, result.Extracted.DetectedCoverageTypes)
	assert.Empty(t, result.Extracted.DetectedDates)
}

func TestParse_SingleDateScoresNoDateBonus(t *testing.T) {
	// Three signals plus an auto limit but only one date: 40 + 25 = 65
	text := `CERTIFICATE OF LIABILITY INSURANCE
PRODUCER
INSURED
COVERAGES
AUTOMOBILE LIABILITY 04/01/2024
COMBINED SINGLE LIMIT $1,000,000
DESCRIPTION OF OPERATIONS`

	result := acord.Parse(text, provenance)

	assert.True(t, result.ACORDLikely)
	assert.Equal(t, 65, result.Confidence)
}

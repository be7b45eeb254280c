package entities

import (
	"time"
)

// UploaderRole identifies who uploaded a document
type UploaderRole string

const (
	UploaderRoleCarrier  UploaderRole = "CARRIER"
	UploaderRoleAgent    UploaderRole = "AGENT"
	UploaderRoleCustomer UploaderRole = "CUSTOMER"
)

// DocumentType identifies the kind of uploaded document
type DocumentType string

const (
	DocumentTypeCOI   DocumentType = "COI"
	DocumentTypeOther DocumentType = "OTHER"
)

// OCRStatus tracks the OCR lifecycle of a document.
// Valid transitions: NONE/FAILED -> PROCESSING -> DONE or FAILED.
type OCRStatus string

const (
	OCRStatusNone       OCRStatus = "NONE"
	OCRStatusProcessing OCRStatus = "PROCESSING"
	OCRStatusDone       OCRStatus = "DONE"
	OCRStatusFailed     OCRStatus = "FAILED"
)

// DocumentStatus is the overall review status of a document
type DocumentStatus string

const (
	DocumentStatusOnFile      DocumentStatus = "ON_FILE"
	DocumentStatusNeedsReview DocumentStatus = "NEEDS_REVIEW"
)

// InsuranceDocument represents one uploaded certificate file
type InsuranceDocument struct {
	ID               string         `json:"id" db:"id"`
	CarrierID        int64          `json:"carrier_id" db:"carrier_id"`
	UploaderRole     UploaderRole   `json:"uploader_role" db:"uploader_role"`
	DocType          DocumentType   `json:"doc_type" db:"doc_type"`
	StorageKey       string         `json:"storage_key" db:"storage_key"`
	OCRStatus        OCRStatus      `json:"ocr_status" db:"ocr_status"`
	OCRProvider      string         `json:"ocr_provider" db:"ocr_provider"`
	OCRJobID         string         `json:"ocr_job_id" db:"ocr_job_id"`
	OCRAvgConfidence *float64       `json:"ocr_avg_confidence" db:"ocr_avg_confidence"`
	ExtractedText    string         `json:"extracted_text,omitempty" db:"extracted_text"`
	ParseResult      *ParseResult   `json:"parse_result,omitempty" db:"parse_result"`
	ParseConfidence  *int           `json:"parse_confidence" db:"parse_confidence"`
	Status           DocumentStatus `json:"status" db:"status"`
	UploadedAt       time.Time      `json:"uploaded_at" db:"uploaded_at"`
	OCRStartedAt     *time.Time     `json:"ocr_started_at" db:"ocr_started_at"`
	OCRCompletedAt   *time.Time     `json:"ocr_completed_at" db:"ocr_completed_at"`
	ParsedAt         *time.Time     `json:"parsed_at" db:"parsed_at"`
	Attempts         int            `json:"attempts" db:"attempts"`
	LastError        string         `json:"last_error,omitempty" db:"last_error"`
}

// CoverageType is a category of insurance coverage
type CoverageType string

const (
	CoverageTypeGL        CoverageType = "GL"
	CoverageTypeAuto      CoverageType = "AUTO"
	CoverageTypeCargo     CoverageType = "CARGO"
	CoverageTypeWC        CoverageType = "WC"
	CoverageTypeUmbrella  CoverageType = "UMBRELLA"
	CoverageTypeEO        CoverageType = "E&O"
	CoverageTypePollution CoverageType = "POLLUTION"
	CoverageTypeCyber     CoverageType = "CYBER"
)

// ParseResult is the structured output of certificate parsing, stored as JSON
// on the document row
type ParseResult struct {
	ACORDLikely bool              `json:"acordLikely"`
	Confidence  int               `json:"confidence"`
	Extracted   ExtractedCoverage `json:"extracted"`
	OCR         OCRProvenance     `json:"ocr"`
}

// ExtractedCoverage holds the limits and signals pulled out of certificate text
type ExtractedCoverage struct {
	AutoLiabilityLimit    *int64         `json:"auto_liability_limit"`
	CargoLimit            *int64         `json:"cargo_limit"`
	GeneralLiabilityLimit *int64         `json:"general_liability_limit"`
	DetectedDates         []string       `json:"detected_dates"`
	DetectedCoverageTypes []CoverageType `json:"detected_coverage_types"`
}

// OCRProvenance records which backend produced the text a parse was based on
type OCRProvenance struct {
	Provider string         `json:"provider"`
	Meta     map[string]any `json:"meta,omitempty"`
}

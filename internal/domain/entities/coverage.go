package entities

import (
	"time"
)

// CoverageSource identifies how a snapshot's limits were obtained
type CoverageSource string

const (
	CoverageSourceParsed CoverageSource = "PARSED"
)

// CoverageSnapshot is a carrier's current insurance picture, one row per
// carrier. It is a derived projection: rebuildable from the latest
// successfully parsed InsuranceDocument.
type CoverageSnapshot struct {
	CarrierID             int64          `json:"carrier_id" db:"carrier_id"`
	AutoLiabilityLimit    *int64         `json:"auto_liability_limit" db:"auto_liability_limit"`
	CargoLimit            *int64         `json:"cargo_limit" db:"cargo_limit"`
	GeneralLiabilityLimit *int64         `json:"general_liability_limit" db:"general_liability_limit"`
	Source                CoverageSource `json:"source" db:"source"`
	Vendor                string         `json:"vendor" db:"vendor"`
	LastCheckedAt         time.Time      `json:"last_checked_at" db:"last_checked_at"`
	SnapshotVersion       int            `json:"snapshot_version" db:"snapshot_version"`
	RawPayload            *ParseResult   `json:"raw_payload,omitempty" db:"raw_payload"`
}

// CoverageLine is one itemized coverage type for a (carrier, snapshot version)
// pair. Lines are fully replaced on each promotion, never merged.
type CoverageLine struct {
	ID              string           `json:"id" db:"id"`
	CarrierID       int64            `json:"carrier_id" db:"carrier_id"`
	SnapshotVersion int              `json:"snapshot_version" db:"snapshot_version"`
	CoverageType    CoverageType     `json:"coverage_type" db:"coverage_type"`
	Limits          map[string]int64 `json:"limits" db:"limits"`
}

// CoverageLimits carries the three named limits the parser extracts
type CoverageLimits struct {
	AutoLiability    *int64
	Cargo            *int64
	GeneralLiability *int64
}

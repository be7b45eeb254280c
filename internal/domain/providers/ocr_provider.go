package providers

import (
	"context"
)

// BlockKind tags the variant of an OCR block
type BlockKind string

const (
	BlockKindLine             BlockKind = "LINE"
	BlockKindWord             BlockKind = "WORD"
	BlockKindKeyValueSet      BlockKind = "KEY_VALUE_SET"
	BlockKindTable            BlockKind = "TABLE"
	BlockKindCell             BlockKind = "CELL"
	BlockKindSelectionElement BlockKind = "SELECTION_ELEMENT"
)

// RelationKind tags an edge between blocks
type RelationKind string

const (
	RelationChild RelationKind = "CHILD"
	RelationValue RelationKind = "VALUE"
)

// Block is one recognized element in an OCR result graph. Relationships hold
// the ids of related blocks keyed by edge kind.
type Block struct {
	ID            string
	Kind          BlockKind
	Text          string
	Confidence    float64
	EntityTypes   []string
	Selected      bool
	RowIndex      int
	ColumnIndex   int
	RowSpan       int
	ColumnSpan    int
	Page          int
	Relationships map[RelationKind][]string
}

// KeyValuePair is a resolved form field from a document
type KeyValuePair struct {
	Key           string  `json:"key"`
	Value         string  `json:"value"`
	KeyConfidence float64 `json:"key_confidence"`
}

// TableCell is one resolved cell of an extracted table
type TableCell struct {
	Row        int     `json:"row"`
	Column     int     `json:"column"`
	RowSpan    int     `json:"row_span"`
	ColumnSpan int     `json:"column_span"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Table is one extracted table plus a dense row-major grid of cell text
type Table struct {
	Cells []TableCell `json:"cells"`
	Grid  [][]string  `json:"grid"`
}

// ConfidenceSummary averages OCR confidence across line blocks.
// Average is on the provider-native 0-100 scale; nil when no lines exist.
type ConfidenceSummary struct {
	Average   *float64 `json:"average"`
	LineCount int      `json:"line_count"`
}

// NormalizedDocument is the provider-agnostic result of running OCR over a PDF
type NormalizedDocument struct {
	Provider         string            `json:"provider"`
	JobID            string            `json:"job_id"`
	JobStatus        string            `json:"job_status"`
	InputLocationURI string            `json:"input_location_uri"`
	FullText         string            `json:"full_text"`
	Blocks           []Block           `json:"-"`
	KeyValuePairs    []KeyValuePair    `json:"key_value_pairs"`
	KeyValueMap      map[string]string `json:"key_value_map"`
	Tables           []Table           `json:"tables"`
	Confidence       ConfidenceSummary `json:"confidence"`
	Meta             DocumentMeta      `json:"meta"`
}

// DocumentMeta carries provider warnings and document-level metadata
type DocumentMeta struct {
	Warnings []string `json:"warnings,omitempty"`
	Pages    int      `json:"pages,omitempty"`
}

// DocumentOCRProvider turns PDF bytes into normalized text, key-value and
// table structures. Implementations are interchangeable and selected by
// configuration.
type DocumentOCRProvider interface {
	// Name returns the provider identifier recorded on documents
	Name() string

	// NormalizeDocument uploads the PDF, runs an asynchronous analysis job to
	// completion and returns the normalized result. keyHint is folded into the
	// generated storage key for traceability.
	NormalizeDocument(ctx context.Context, pdf []byte, keyHint string) (*NormalizedDocument, error)
}

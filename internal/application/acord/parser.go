// Package acord extracts structured coverage data from OCR text of ACORD 25
// certificates of liability insurance. Parsing is pure and never fails: OCR
// text is inherently noisy, so malformed input degrades to a low confidence
// score instead of an error.
package acord

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/carriershark/backend/internal/domain/entities"
)

// acordSignals are phrases whose presence marks a document as an ACORD 25
// certificate. Three or more signals make the document "ACORD-likely".
var acordSignals = []string{
	"CERTIFICATE OF LIABILITY INSURANCE",
	"ACORD",
	"PRODUCER",
	"INSURED",
	"COVERAGES",
	"THIS CERTIFICATE IS ISSUED AS A MATTER OF INFORMATION ONLY",
}

const minACORDSignals = 3

// Trailing-section anchors that terminate the coverages block
var coverageBlockAnchors = []string{
	"DESCRIPTION OF OPERATIONS",
	"CERTIFICATE HOLDER",
	"CANCELLATION",
	"SHOULD ANY OF THE ABOVE DESCRIBED POLICIES BE CANCELLED",
}

// Limit-extraction window sizes, in characters around a coverage keyword.
// These are heuristic constants tuned against real ACORD layouts; cargo
// limits tend to sit further from their keyword in two-column forms.
const (
	coverageBlockAnchorOffset = 50
	limitWindowBefore         = 100
	limitWindowAfterDefault   = 1000
	limitWindowAfterCargo     = 1200
)

// Confidence score contributions, additive and capped at 100
const (
	scoreACORDLikely = 40
	scoreAutoLimit   = 25
	scoreCargoLimit  = 25
	scoreGLLimit     = 10
	scoreTwoDates    = 10
	maxScore         = 100
)

var (
	dateRe  = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	moneyRe = regexp.MustCompile(`\$?\s?\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\$\s?\d+(?:\.\d{2})?`)
)

// coverageVocabulary maps each coverage type to the phrases that mark its
// presence anywhere in the certificate text
var coverageVocabulary = map[entities.CoverageType][]string{
	entities.CoverageTypeGL:        {"COMMERCIAL GENERAL LIABILITY", "GENERAL LIABILITY"},
	entities.CoverageTypeAuto:      {"AUTOMOBILE LIABILITY", "AUTO LIABILITY"},
	entities.CoverageTypeWC:        {"WORKERS COMPENSATION", "WORKERS' COMPENSATION"},
	entities.CoverageTypeUmbrella:  {"UMBRELLA LIAB", "EXCESS LIAB"},
	entities.CoverageTypeEO:        {"PROFESSIONAL LIABILITY", "ERRORS AND OMISSIONS", "ERRORS & OMISSIONS"},
	entities.CoverageTypePollution: {"POLLUTION"},
	entities.CoverageTypeCyber:     {"CYBER"},
}

// detectionOrder keeps the detected type list deterministic
var detectionOrder = []entities.CoverageType{
	entities.CoverageTypeGL,
	entities.CoverageTypeAuto,
	entities.CoverageTypeCargo,
	entities.CoverageTypeWC,
	entities.CoverageTypeUmbrella,
	entities.CoverageTypeEO,
	entities.CoverageTypePollution,
	entities.CoverageTypeCyber,
}

// limitKeywords are the phrases a dollar limit is searched around, per
// coverage type. Only AUTO, CARGO and GL carry extractable limits.
var limitKeywords = map[entities.CoverageType][]string{
	entities.CoverageTypeAuto:  {"AUTOMOBILE LIABILITY", "AUTO LIABILITY"},
	entities.CoverageTypeCargo: {"MOTOR TRUCK CARGO", "CARGO"},
	entities.CoverageTypeGL:    {"COMMERCIAL GENERAL LIABILITY", "GENERAL LIABILITY"},
}

// Parse turns extracted certificate text into a structured ParseResult
func Parse(text string, provenance entities.OCRProvenance) entities.ParseResult {
	upper := strings.ToUpper(text)

	likely := isACORDLikely(upper)
	dates := extractDates(text)
	block := coverageBlock(upper)
	detected := detectCoverageTypes(upper)

	extracted := entities.ExtractedCoverage{
		DetectedDates:         dates,
		DetectedCoverageTypes: detected,
	}

	for _, coverageType := range detected {
		switch coverageType {
		case entities.CoverageTypeAuto:
			extracted.AutoLiabilityLimit = extractLimit(block, coverageType)
		case entities.CoverageTypeCargo:
			extracted.CargoLimit = extractLimit(block, coverageType)
		case entities.CoverageTypeGL:
			extracted.GeneralLiabilityLimit = extractLimit(block, coverageType)
		}
	}

	score := 0
	if likely {
		score += scoreACORDLikely
	}
	if extracted.AutoLiabilityLimit != nil {
		score += scoreAutoLimit
	}
	if extracted.CargoLimit != nil {
		score += scoreCargoLimit
	}
	if extracted.GeneralLiabilityLimit != nil {
		score += scoreGLLimit
	}
	if len(dates) >= 2 {
		score += scoreTwoDates
	}
	if score > maxScore {
		score = maxScore
	}

	return entities.ParseResult{
		ACORDLikely: likely,
		Confidence:  score,
		Extracted:   extracted,
		OCR:         provenance,
	}
}

func isACORDLikely(upper string) bool {
	count := 0
	for _, signal := range acordSignals {
		if strings.Contains(upper, signal) {
			count++
		}
	}
	return count >= minACORDSignals
}

// extractDates matches M/D/YYYY-shaped tokens, de-duplicated with order
// preserved
func extractDates(text string) []string {
	matches := dateRe.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var dates []string
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		dates = append(dates, m)
	}
	return dates
}

// coverageBlock slices out the COVERAGES section. Absent a heading the whole
// text is the block, which degrades confidence rather than failing.
func coverageBlock(upper string) string {
	start := strings.Index(upper, "COVERAGES")
	if start < 0 {
		return upper
	}

	searchFrom := start + coverageBlockAnchorOffset
	if searchFrom > len(upper) {
		searchFrom = len(upper)
	}

	end := len(upper)
	for _, anchor := range coverageBlockAnchors {
		if idx := strings.Index(upper[searchFrom:], anchor); idx >= 0 && searchFrom+idx < end {
			end = searchFrom + idx
		}
	}
	return upper[start:end]
}

func detectCoverageTypes(upper string) []entities.CoverageType {
	present := make(map[entities.CoverageType]bool)

	for coverageType, phrases := range coverageVocabulary {
		for _, phrase := range phrases {
			if strings.Contains(upper, phrase) {
				present[coverageType] = true
				break
			}
		}
	}

	// Cargo matches either the full form name or the cargo+truck combination
	if strings.Contains(upper, "MOTOR TRUCK CARGO") ||
		(strings.Contains(upper, "CARGO") && strings.Contains(upper, "TRUCK")) {
		present[entities.CoverageTypeCargo] = true
	}

	var detected []entities.CoverageType
	for _, coverageType := range detectionOrder {
		if present[coverageType] {
			detected = append(detected, coverageType)
		}
	}
	return detected
}

// extractLimit finds the largest dollar amount near any of the coverage
// type's keywords inside the coverage block. Nil when no amount is present.
func extractLimit(block string, coverageType entities.CoverageType) *int64 {
	after := limitWindowAfterDefault
	if coverageType == entities.CoverageTypeCargo {
		after = limitWindowAfterCargo
	}

	var best *int64
	for _, keyword := range limitKeywords[coverageType] {
		idx := strings.Index(block, keyword)
		if idx < 0 {
			continue
		}

		start := idx - limitWindowBefore
		if start < 0 {
			start = 0
		}
		end := idx + len(keyword) + after
		if end > len(block) {
			end = len(block)
		}

		if amount := maxDollarAmount(block[start:end]); amount != nil {
			if best == nil || *amount > *best {
				best = amount
			}
		}
	}
	return best
}

func maxDollarAmount(window string) *int64 {
	var best *int64
	for _, match := range moneyRe.FindAllString(window, -1) {
		cleaned := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(match), "$"))
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if dot := strings.Index(cleaned, "."); dot >= 0 {
			cleaned = cleaned[:dot]
		}
		value, err := strconv.ParseInt(strings.TrimSpace(cleaned), 10, 64)
		if err != nil {
			continue
		}
		if best == nil || value > *best {
			v := value
			best = &v
		}
	}
	return best
}

package model

// FieldSource tags which extraction strategy produced a field value.
// Lower Rank means higher trust when strategies disagree.
type FieldSource string

const (
	SourceStructuredData FieldSource = "structured_data"
	SourceElements       FieldSource = "elements"
	SourcePageMeta       FieldSource = "page_meta"
	SourceAuxEndpoint    FieldSource = "aux_endpoint"
	SourceFreeText       FieldSource = "free_text"

	// SourceDerived tags advisory enrichment parsed from already-extracted
	// fields. Never a price reading; ranks below every real strategy.
	SourceDerived FieldSource = "derived"
)

// sourceRank orders strategies by trust. Used for consensus tie-breaking.
var sourceRank = map[FieldSource]int{
	SourceStructuredData: 0,
	SourceElements:       1,
	SourcePageMeta:       2,
	SourceAuxEndpoint:    3,
	SourceFreeText:       4,
}

// Rank returns the trust rank of the source; unknown sources rank last.
func (s FieldSource) Rank() int {
	if r, ok := sourceRank[s]; ok {
		return r
	}
	return len(sourceRank)
}

// PartialRecord is what a single extraction strategy reads from one
// document. Absent fields are zero values: callers must treat "" and nil
// as missing, never as present-but-empty.
type PartialRecord struct {
	Name         string
	Price        *float64
	Currency     string
	ImageURL     string
	Brand        string
	Availability string
}

// Empty reports whether the strategy found nothing at all.
func (p PartialRecord) Empty() bool {
	return p.Name == "" && p.Price == nil && p.Currency == "" &&
		p.ImageURL == "" && p.Brand == "" && p.Availability == ""
}

// Record is the merged extraction result for one document (or several
// fetch attempts within one update cycle). FieldSources records which
// strategy supplied each present field; Method is the strategy after whose
// merge both name and price were present.
type Record struct {
	Name         string                 `json:"name"`
	Price        *float64               `json:"price"` // nil when no plausible price was found
	Currency     string                 `json:"currency,omitempty"`
	ImageURL     string                 `json:"image_url,omitempty"`
	Brand        string                 `json:"brand,omitempty"`
	Availability string                 `json:"availability,omitempty"`
	FieldSources map[string]FieldSource `json:"field_sources,omitempty"`
	Method       FieldSource            `json:"extraction_method,omitempty"`
}

// PriceCandidate is one numeric price reading with its source tag.
// Candidates from all strategies and fetch attempts feed the consensus
// resolver.
type PriceCandidate struct {
	Source FieldSource
	Price  float64
}

// OutcomeKind classifies an extraction run.
type OutcomeKind string

const (
	// OutcomeComplete means both name and price were extracted.
	OutcomeComplete OutcomeKind = "complete"
	// OutcomePartial means a name was found but no plausible price.
	OutcomePartial OutcomeKind = "partial"
	// OutcomeNoSignal means nothing usable was extracted. Not an error:
	// the fetch controller decides whether to retry.
	OutcomeNoSignal OutcomeKind = "no_signal"
)

// ExtractionOutcome is the by-value result of running all strategies
// against one document. There is no fallback to synthetic data: a missing
// field stays missing.
type ExtractionOutcome struct {
	Kind       OutcomeKind
	Record     *Record // nil for NoSignal
	Candidates []PriceCandidate
	Reasons    []string // diagnostics, e.g. "price_missing"
}

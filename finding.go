package tissvalidator

// Severity represents how a finding affects the rest of the validation.
type Severity string

const (
	// SeverityFatal marks a finding after which no further rule can run
	// meaningfully (e.g. the document has no TISS root element).
	SeverityFatal Severity = "fatal"
	// SeverityError marks a regular validation failure.
	SeverityError Severity = "error"
)

// Finding codes produced by the engine.
const (
	// Parsing
	CodeParseError      = "PARSE_ERROR"
	CodeChunkParseError = "CHUNK_PARSE_ERROR"
	CodeStreamReadError = "STREAM_READ_ERROR"
	CodeEnvelopeTrunc   = "ENVELOPE_TRUNCATED"

	// Structure
	CodeRootMissing        = "ROOT_TAG_MISSING"
	CodeHeaderMissing      = "HEADER_MISSING"
	CodeHeaderFieldMissing = "HEADER_FIELD_MISSING"
	CodeBodyMissing        = "BODY_MISSING"

	// Format and reference data
	CodeTussFormat   = "TUSS_FORMAT_ERROR"
	CodeTussNotFound = "TUSS_NOT_FOUND"

	// Version policy
	CodeVersionNotFound = "VERSION_NOT_FOUND"
	CodeVersionObsolete = "VERSION_OBSOLETE"

	// Business
	CodeGuideNumberMissing        = "GUIDE_NUMBER_MISSING"
	CodeDateFuture                = "DATE_FUTURE_ERROR"
	CodeFinancialNegative         = "FINANCIAL_NEGATIVE"
	CodeClinicalIndicationMissing = "CLINICAL_INDICATION_MISSING"
	CodeRequiredFieldMissing      = "REQUIRED_FIELD_MISSING"

	// Infrastructure
	CodeRuleError   = "RULE_ERROR"
	CodeWorkerError = "WORKER_ERROR"
)

// Finding is a single validation issue reported by a rule.
type Finding struct {
	// Code identifies the kind of finding (e.g. "TUSS_FORMAT_ERROR")
	Code string `json:"code"`

	// Message is human-readable, in Portuguese, as shown to billing staff
	Message string `json:"message"`

	// Location is the " > " separated path of the offending field, if any
	Location string `json:"location,omitempty"`

	// Rule is the ID of the rule that produced the finding
	Rule string `json:"rule,omitempty"`

	// Severity defaults to SeverityError when empty
	Severity Severity `json:"severity,omitempty"`
}

// IsFatal returns true if the finding stops the pipeline.
func (f Finding) IsFatal() bool {
	return f.Severity == SeverityFatal
}

// String returns a human-readable representation of the finding.
func (f Finding) String() string {
	loc := ""
	if f.Location != "" {
		loc = " (Local: " + f.Location + ")"
	}
	return f.Code + ": " + f.Message + loc
}

// FindingBuilder provides a fluent API for building findings.
type FindingBuilder struct {
	finding Finding
}

// NewFinding creates a new FindingBuilder for an error finding.
func NewFinding(code string) *FindingBuilder {
	return &FindingBuilder{
		finding: Finding{
			Code:     code,
			Severity: SeverityError,
		},
	}
}

// Fatal creates a builder for a fatal finding.
func Fatal(code string) *FindingBuilder {
	b := NewFinding(code)
	b.finding.Severity = SeverityFatal
	return b
}

// Message sets the human-readable message.
func (b *FindingBuilder) Message(msg string) *FindingBuilder {
	b.finding.Message = msg
	return b
}

// At sets the location path.
func (b *FindingBuilder) At(location string) *FindingBuilder {
	b.finding.Location = location
	return b
}

// Rule sets the originating rule ID.
func (b *FindingBuilder) Rule(id string) *FindingBuilder {
	b.finding.Rule = id
	return b
}

// Build returns the constructed finding.
func (b *FindingBuilder) Build() Finding {
	return b.finding
}

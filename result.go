package tissvalidator

import (
	"fmt"
	"sort"
	"time"
)

// Mode tells which path produced a Result.
type Mode string

const (
	// ModeFull means the whole document was parsed into a single tree.
	ModeFull Mode = "full"
	// ModeStream means the document was validated guide by guide.
	ModeStream Mode = "stream"
)

// Summary messages.
const (
	MessageValid      = "Estrutura TISS válida."
	MessageParseError = "Erro de leitura do XML."
)

// Result contains the outcome of validating a TISS document.
// A Result is built once per validation call and must not be modified
// after it has been returned to the caller.
type Result struct {
	// Valid is true if and only if Findings is empty
	Valid bool `json:"isValid"`

	// Findings are ordered by rule order, then by order within each rule
	Findings []Finding `json:"findings"`

	// Message is a one-line summary suitable for a status bar
	Message string `json:"message"`

	// Mode is the validation path that produced the result
	Mode Mode `json:"mode,omitempty"`

	// Chunks is the number of guides validated in stream mode
	Chunks int `json:"chunks,omitempty"`

	// Duration is the wall time of the validation
	Duration time.Duration `json:"durationNs,omitempty"`
}

// NewResult creates an empty, valid result.
func NewResult(mode Mode) *Result {
	return &Result{
		Valid:    true,
		Findings: make([]Finding, 0, 8),
		Mode:     mode,
	}
}

// ParseFailure builds the result returned when the document cannot be parsed.
func ParseFailure(mode Mode, err error) *Result {
	r := NewResult(mode)
	r.Add(NewFinding(CodeParseError).
		Message("O arquivo não é um XML válido: " + err.Error()).
		Build())
	r.Message = MessageParseError
	return r
}

// Add appends a finding to the result.
func (r *Result) Add(f Finding) {
	if f.Severity == "" {
		f.Severity = SeverityError
	}
	r.Findings = append(r.Findings, f)
	r.Valid = false
}

// AddAll appends findings keeping their order.
func (r *Result) AddAll(findings []Finding) {
	for _, f := range findings {
		r.Add(f)
	}
}

// Merge appends the findings of another result.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.AddAll(other.Findings)
}

// HasFatal returns true if any finding is fatal.
func (r *Result) HasFatal() bool {
	for _, f := range r.Findings {
		if f.IsFatal() {
			return true
		}
	}
	return false
}

// Codes returns the sorted set of distinct finding codes.
func (r *Result) Codes() []string {
	seen := make(map[string]struct{}, len(r.Findings))
	codes := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		if _, ok := seen[f.Code]; ok {
			continue
		}
		seen[f.Code] = struct{}{}
		codes = append(codes, f.Code)
	}
	sort.Strings(codes)
	return codes
}

// CountCode returns how many findings carry the given code.
func (r *Result) CountCode(code string) int {
	n := 0
	for _, f := range r.Findings {
		if f.Code == code {
			n++
		}
	}
	return n
}

// Finalize sets Valid and the summary message from the collected findings.
// It keeps a message that was already set (e.g. by ParseFailure).
func (r *Result) Finalize() *Result {
	r.Valid = len(r.Findings) == 0
	if r.Message != "" {
		return r
	}
	if r.Valid {
		r.Message = MessageValid
	} else {
		r.Message = fmt.Sprintf("Falha na validação TISS: %d problema(s).", len(r.Findings))
	}
	return r
}

package tissvalidator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VersionConfig describes one TISS protocol version published by ANS.
type VersionConfig struct {
	// Version is the dotted version with the dots removed (3.05.00 -> 30500)
	Version int

	// ValidFrom is the first day the version was accepted
	ValidFrom time.Time

	// ValidUntil is the last accepted day; nil means still current
	ValidUntil *time.Time

	// Deprecated versions are rejected by insurers
	Deprecated bool
}

// CurrentVersionThreshold is the lowest version still in force.
// Unknown versions at or above it are assumed to be newer releases.
const CurrentVersionThreshold = 30500

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

// versionMatrix is ordered by version.
var versionMatrix = []VersionConfig{
	{Version: 30200, ValidFrom: day("2014-01-01"), ValidUntil: dayPtr("2020-12-31"), Deprecated: true},
	{Version: 30300, ValidFrom: day("2016-01-01"), ValidUntil: dayPtr("2021-05-31"), Deprecated: true},
	{Version: 30500, ValidFrom: day("2021-05-01")},
	{Version: 40000, ValidFrom: day("2023-01-01")},
	{Version: 40100, ValidFrom: day("2023-06-01")},
}

// VersionMatrix returns a copy of the version table.
func VersionMatrix() []VersionConfig {
	out := make([]VersionConfig, len(versionMatrix))
	copy(out, versionMatrix)
	return out
}

// LookupVersion returns the exact table row for an encoded version.
func LookupVersion(version int) (VersionConfig, bool) {
	for _, cfg := range versionMatrix {
		if cfg.Version == version {
			return cfg, true
		}
	}
	return VersionConfig{}, false
}

// ParseVersion encodes a dotted version string ("3.05.00") as an integer
// by removing every '.' and parsing the remaining digits.
func ParseVersion(s string) (int, error) {
	digits := strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	if digits == "" {
		return 0, fmt.Errorf("version %q has no digits", s)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("version %q is not numeric", s)
	}
	return n, nil
}

// VersionStatus is the verdict of the version policy for one document.
type VersionStatus struct {
	Valid   bool
	Known   bool
	Message string
}

// VersionStatusOf applies the version policy to a raw version string.
func VersionStatusOf(raw string) VersionStatus {
	n, err := ParseVersion(raw)
	if err != nil {
		return VersionStatus{Message: fmt.Sprintf("Versão TISS %q desconhecida ou obsoleta.", raw)}
	}

	cfg, ok := LookupVersion(n)
	if !ok {
		if n >= CurrentVersionThreshold {
			return VersionStatus{Valid: true, Message: "Versão recente (desconhecida)."}
		}
		return VersionStatus{Message: fmt.Sprintf("Versão TISS %s desconhecida ou obsoleta.", raw)}
	}

	if cfg.Deprecated {
		until := "data desconhecida"
		if cfg.ValidUntil != nil {
			until = cfg.ValidUntil.Format(time.DateOnly)
		}
		return VersionStatus{
			Known:   true,
			Message: fmt.Sprintf("Versão TISS %s descontinuada em %s.", raw, until),
		}
	}

	return VersionStatus{Valid: true, Known: true, Message: "Versão vigente."}
}

package models

import (
	"strings"
	"time"
)

const (
	DefaultScanLimit = 100
	MaxScanLimit     = 1000
)

// ScanFilter selects parsed_jobs rows. Zero-valued fields do not constrain.
// Rows come back ordered by raw_id ascending, starting after AfterRawID.
type ScanFilter struct {
	IsCandidate *bool `json:"is_candidate,omitempty"`
	IsEmployer  *bool `json:"is_employer,omitempty"`

	// case-insensitive equality
	City           string `json:"city,omitempty"`
	Country        string `json:"country,omitempty"`
	WorkFormat     string `json:"work_format,omitempty"`
	SalaryCurrency string `json:"salary_currency,omitempty"`
	SalaryPeriod   string `json:"salary_period,omitempty"`
	SourceID       string `json:"source_id,omitempty"`

	PositionContains string `json:"position_contains,omitempty"`

	// array membership, exact match
	Skill     string `json:"skill,omitempty"`
	Equipment string `json:"equipment,omitempty"`
	Software  string `json:"software,omitempty"`

	// salary range overlap; rows without any salary bound never match
	SalaryAtLeast *float64 `json:"salary_at_least,omitempty"`
	SalaryAtMost  *float64 `json:"salary_at_most,omitempty"`

	MinConfidence  *float64   `json:"min_confidence,omitempty"`
	PublishedAfter *time.Time `json:"published_after,omitempty"`

	AfterRawID int64 `json:"after_raw_id,omitempty"`
	Limit      int   `json:"limit,omitempty"`
}

// EffectiveLimit clamps Limit into 1..MaxScanLimit.
func (f ScanFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultScanLimit
	case f.Limit > MaxScanLimit:
		return MaxScanLimit
	default:
		return f.Limit
	}
}

// Match reports whether job satisfies every predicate except the cursor
// and the limit.
func (f ScanFilter) Match(job *ParsedJob) bool {
	if f.IsCandidate != nil && job.Candidate() != *f.IsCandidate {
		return false
	}
	if f.IsEmployer != nil && job.Employer() != *f.IsEmployer {
		return false
	}

	if !equalFold(f.City, job.City) ||
		!equalFold(f.Country, job.Country) ||
		!equalFold(f.WorkFormat, job.WorkFormat) ||
		!equalFold(f.SalaryCurrency, job.SalaryCurrency) ||
		!equalFold(f.SalaryPeriod, job.SalaryPeriod) ||
		!equalFold(f.SourceID, job.SourceID) {
		return false
	}

	if f.PositionContains != "" {
		if job.PositionTitle == nil ||
			!strings.Contains(strings.ToLower(*job.PositionTitle), strings.ToLower(f.PositionContains)) {
			return false
		}
	}

	if !contains(job.Skills, f.Skill) ||
		!contains(job.Equipment, f.Equipment) ||
		!contains(job.Software, f.Software) {
		return false
	}

	if f.SalaryAtLeast != nil {
		upper := coalesce(job.SalaryTo, job.SalaryFrom)
		if upper == nil || *upper < *f.SalaryAtLeast {
			return false
		}
	}
	if f.SalaryAtMost != nil {
		lower := coalesce(job.SalaryFrom, job.SalaryTo)
		if lower == nil || *lower > *f.SalaryAtMost {
			return false
		}
	}

	if f.MinConfidence != nil && (job.Confidence == nil || *job.Confidence < *f.MinConfidence) {
		return false
	}
	if f.PublishedAfter != nil && (job.PublishedAt == nil || job.PublishedAt.Before(*f.PublishedAfter)) {
		return false
	}

	return true
}

func equalFold(want string, got *string) bool {
	if want == "" {
		return true
	}
	return got != nil && strings.EqualFold(want, *got)
}

func contains(values []string, want string) bool {
	if want == "" {
		return true
	}
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func coalesce(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

var WorkFormatDisplayNames = map[string]string{
	"remote":       "Удалённо",
	"hybrid":       "Гибрид",
	"офис":         "Офис",
	"office":       "Офис",
	"вахта":        "Вахта",
	"командировка": "Командировки",
}

var SalaryPeriodDisplayNames = map[string]string{
	"month":   "в месяц",
	"shift":   "за смену",
	"hour":    "в час",
	"project": "за проект",
}

func GetWorkFormatDisplayName(id string) string {
	if name, ok := WorkFormatDisplayNames[strings.ToLower(id)]; ok {
		return name
	}
	return id
}

func GetSalaryPeriodDisplayName(id string) string {
	if name, ok := SalaryPeriodDisplayNames[strings.ToLower(id)]; ok {
		return name
	}
	return ""
}

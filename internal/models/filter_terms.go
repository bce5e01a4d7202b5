package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FilterKeys are the names accepted by ScanFilter.Set, in display order.
var FilterKeys = []string{
	"is_candidate", "is_employer",
	"city", "country", "work_format", "salary_currency", "salary_period", "source_id",
	"position",
	"skill", "equipment", "software",
	"salary_at_least", "salary_at_most",
	"min_confidence", "published_after",
	"after_raw_id", "limit",
}

// Set assigns one filter term by name. Dashes in key are read as
// underscores so command-line flag names can be passed through.
func (f *ScanFilter) Set(key, value string) error {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("filter %s: empty value", key)
	}

	var err error
	switch key {
	case "is_candidate":
		f.IsCandidate, err = parseBoolTerm(value)
	case "is_employer":
		f.IsEmployer, err = parseBoolTerm(value)
	case "city":
		f.City = value
	case "country":
		f.Country = value
	case "work_format":
		f.WorkFormat = value
	case "salary_currency":
		f.SalaryCurrency = value
	case "salary_period":
		f.SalaryPeriod = value
	case "source_id":
		f.SourceID = value
	case "position":
		f.PositionContains = value
	case "skill":
		f.Skill = value
	case "equipment":
		f.Equipment = value
	case "software":
		f.Software = value
	case "salary_at_least":
		f.SalaryAtLeast, err = parseFloatTerm(value)
	case "salary_at_most":
		f.SalaryAtMost, err = parseFloatTerm(value)
	case "min_confidence":
		f.MinConfidence, err = parseFloatTerm(value)
	case "published_after":
		f.PublishedAfter, err = parseTimeTerm(value)
	case "after_raw_id":
		f.AfterRawID, err = strconv.ParseInt(value, 10, 64)
		if err == nil && f.AfterRawID < 0 {
			err = fmt.Errorf("must not be negative")
		}
	case "limit":
		f.Limit, err = strconv.Atoi(value)
		if err == nil && f.Limit < 1 {
			err = fmt.Errorf("must be positive")
		}
	default:
		return fmt.Errorf("unknown filter %q", key)
	}

	if err != nil {
		return fmt.Errorf("filter %s: %w", key, err)
	}
	return nil
}

func parseBoolTerm(value string) (*bool, error) {
	switch strings.ToLower(value) {
	case "true", "yes", "1", "да":
		return Bool(true), nil
	case "false", "no", "0", "нет":
		return Bool(false), nil
	}
	return nil, fmt.Errorf("%q is not a boolean", value)
}

func parseFloatTerm(value string) (*float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(value, " ", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", value)
	}
	return &v, nil
}

func parseTimeTerm(value string) (*time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%q is not a date (YYYY-MM-DD or RFC3339)", value)
}

// ParseQuery builds a filter from "key=value" terms. Words without "=" are
// appended to the previous value, so "city=Нижний Новгород" keeps its space.
func ParseQuery(text string) (ScanFilter, error) {
	var filter ScanFilter

	var keys, values []string
	for _, word := range strings.Fields(text) {
		key, value, ok := strings.Cut(word, "=")
		if !ok {
			if len(values) == 0 {
				return filter, fmt.Errorf("expected key=value, got %q", word)
			}
			values[len(values)-1] += " " + word
			continue
		}
		keys = append(keys, key)
		values = append(values, value)
	}

	for i := range keys {
		if err := filter.Set(keys[i], values[i]); err != nil {
			return filter, err
		}
	}

	return filter, nil
}

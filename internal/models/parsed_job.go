package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	apperrors "geojobs/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
)

// ParsedJob is one row of parsed_jobs: the attributes extracted from a
// single raw item, keyed by the raw item id.
type ParsedJob struct {
	RawID       int64 `db:"raw_id" json:"raw_id" validate:"required,gt=0"`
	IsCandidate *bool `db:"is_candidate" json:"is_candidate" validate:"required"`
	IsEmployer  *bool `db:"is_employer" json:"is_employer" validate:"required"`

	PositionTitle   *string  `db:"position_title" json:"position_title"`
	City            *string  `db:"city" json:"city"`
	Country         *string  `db:"country" json:"country"`
	WorkFormat      *string  `db:"work_format" json:"work_format"`
	ExperienceYears *float64 `db:"experience_years" json:"experience_years"`
	SalaryFrom      *float64 `db:"salary_from" json:"salary_from"`
	SalaryTo        *float64 `db:"salary_to" json:"salary_to"`
	SalaryCurrency  *string  `db:"salary_currency" json:"salary_currency"`
	SalaryPeriod    *string  `db:"salary_period" json:"salary_period"`

	Skills    pq.StringArray `db:"skills" json:"skills"`
	Equipment pq.StringArray `db:"equipment" json:"equipment"`
	Software  pq.StringArray `db:"software" json:"software"`

	Education  *string  `db:"education" json:"education"`
	Contacts   RawJSON  `db:"contacts" json:"contacts"`
	SourceText *string  `db:"source_text" json:"source_text"`
	Confidence *float64 `db:"confidence" json:"confidence"`

	// passthrough from the raw item
	SourceID    *string    `db:"source_id" json:"source_id"`
	ExternalID  *string    `db:"external_id" json:"external_id"`
	Author      *string    `db:"author" json:"author"`
	URL         *string    `db:"url" json:"url"`
	PublishedAt *time.Time `db:"published_at" json:"published_at"`
	FetchedAt   *time.Time `db:"fetched_at" json:"fetched_at"`
	Attachments RawJSON    `db:"attachments" json:"attachments"`
}

// Columns lists parsed_jobs columns in table order.
var Columns = []string{
	"raw_id", "is_candidate", "is_employer",
	"position_title", "city", "country", "work_format", "experience_years",
	"salary_from", "salary_to", "salary_currency", "salary_period",
	"skills", "equipment", "software",
	"education", "contacts", "source_text", "confidence",
	"source_id", "external_id", "author", "url",
	"published_at", "fetched_at", "attachments",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the fields every row must carry.
func (j *ParsedJob) Validate() error {
	err := validate.Struct(j)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.InvalidInput("validate parsed job", err)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	if len(missing) > 0 {
		return apperrors.MissingField(missing...)
	}
	return apperrors.InvalidInput(strings.Join(invalid, "; "), nil)
}

// Normalized returns a deep copy with empty containers in place of absent
// ones. The result shares no pointers or backing arrays with j.
func (j ParsedJob) Normalized() ParsedJob {
	out := j
	out.IsCandidate = clonePtr(j.IsCandidate)
	out.IsEmployer = clonePtr(j.IsEmployer)

	out.PositionTitle = clonePtr(j.PositionTitle)
	out.City = clonePtr(j.City)
	out.Country = clonePtr(j.Country)
	out.WorkFormat = clonePtr(j.WorkFormat)
	out.ExperienceYears = clonePtr(j.ExperienceYears)
	out.SalaryFrom = clonePtr(j.SalaryFrom)
	out.SalaryTo = clonePtr(j.SalaryTo)
	out.SalaryCurrency = clonePtr(j.SalaryCurrency)
	out.SalaryPeriod = clonePtr(j.SalaryPeriod)
	out.Education = clonePtr(j.Education)
	out.SourceText = clonePtr(j.SourceText)
	out.Confidence = clonePtr(j.Confidence)

	out.SourceID = clonePtr(j.SourceID)
	out.ExternalID = clonePtr(j.ExternalID)
	out.Author = clonePtr(j.Author)
	out.URL = clonePtr(j.URL)
	out.PublishedAt = clonePtr(j.PublishedAt)
	out.FetchedAt = clonePtr(j.FetchedAt)

	out.Skills = cloneStrings(j.Skills)
	out.Equipment = cloneStrings(j.Equipment)
	out.Software = cloneStrings(j.Software)

	if len(j.Contacts) == 0 || string(j.Contacts) == "null" {
		out.Contacts = EmptyDocument()
	} else {
		out.Contacts = append(RawJSON(nil), j.Contacts...)
	}
	if j.Attachments != nil {
		out.Attachments = append(RawJSON(nil), j.Attachments...)
	}

	return out
}

func (j *ParsedJob) Candidate() bool {
	return j.IsCandidate != nil && *j.IsCandidate
}

func (j *ParsedJob) Employer() bool {
	return j.IsEmployer != nil && *j.IsEmployer
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(in pq.StringArray) pq.StringArray {
	out := make(pq.StringArray, len(in))
	copy(out, in)
	return out
}

// RawJSON is an opaque JSON document stored in a jsonb column.
type RawJSON json.RawMessage

func EmptyDocument() RawJSON {
	return RawJSON("{}")
}

// Value returns the document as a string so the query builder emits a text
// literal rather than bytea.
func (r RawJSON) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	if !json.Valid(r) {
		return nil, fmt.Errorf("invalid json document")
	}
	return string(r), nil
}

func (r *RawJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*r = nil
	case []byte:
		*r = append(RawJSON(nil), v...)
	case string:
		*r = RawJSON(v)
	default:
		return fmt.Errorf("unsupported type for RawJSON: %T", value)
	}
	return nil
}

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawJSON) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = nil
		return nil
	}
	*r = append((*r)[0:0], data...)
	return nil
}

// Lookup returns a top-level key of an object document.
func (r RawJSON) Lookup(key string) (interface{}, bool) {
	if len(r) == 0 {
		return nil, false
	}
	var m map[string]interface{}
	if err := json.Unmarshal(r, &m); err != nil {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

func Bool(v bool) *bool { return &v }

func String(v string) *string { return &v }

func Float(v float64) *float64 { return &v }

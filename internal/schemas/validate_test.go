package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParsedJob_Valid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "minimal",
			doc:  `{"raw_id": 1, "is_candidate": false, "is_employer": true}`,
		},
		{
			name: "full",
			doc: `{
				"raw_id": 42,
				"is_candidate": false,
				"is_employer": true,
				"position_title": "Геодезист",
				"city": "Москва",
				"country": "Россия",
				"work_format": "вахта",
				"experience_years": 3,
				"salary_from": 100000,
				"salary_to": 150000,
				"salary_currency": "RUB",
				"salary_period": "month",
				"skills": ["GNSS", "тахеометр"],
				"equipment": [],
				"software": null,
				"education": null,
				"contacts": {"phone": "+7 900 000-00-00"},
				"source_text": "Требуется геодезист",
				"confidence": 0.92,
				"source_id": "tg:geojobs",
				"external_id": "1001",
				"author": null,
				"url": "https://t.me/geojobs/1001",
				"published_at": "2024-03-01T10:00:00Z",
				"fetched_at": null,
				"attachments": [{"type": "photo"}]
			}`,
		},
		{
			name: "nulls everywhere optional",
			doc:  `{"raw_id": 5, "is_candidate": true, "is_employer": false, "city": null, "skills": null, "contacts": null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, ValidateParsedJob([]byte(tt.doc)))
		})
	}
}

func TestValidateParsedJob_MissingRequired(t *testing.T) {
	err := ValidateParsedJob([]byte(`{"raw_id": 1}`))
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok, "error should be ValidationError type")
	assert.Equal(t, []string{"is_candidate", "is_employer"}, validationErr.Fields())
}

func TestValidateParsedJob_WrongTypes(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"raw id zero", `{"raw_id": 0, "is_candidate": true, "is_employer": true}`, "raw_id"},
		{"raw id fraction", `{"raw_id": 1.5, "is_candidate": true, "is_employer": true}`, "raw_id"},
		{"null flag", `{"raw_id": 1, "is_candidate": null, "is_employer": true}`, "is_candidate"},
		{"salary as text", `{"raw_id": 1, "is_candidate": true, "is_employer": true, "salary_from": "100k"}`, "salary_from"},
		{"skills not list", `{"raw_id": 1, "is_candidate": true, "is_employer": true, "skills": "GNSS"}`, "skills"},
		{"contacts list", `{"raw_id": 1, "is_candidate": true, "is_employer": true, "contacts": []}`, "contacts"},
		{"bad timestamp", `{"raw_id": 1, "is_candidate": true, "is_employer": true, "published_at": "yesterday"}`, "published_at"},
		{"unknown column", `{"raw_id": 1, "is_candidate": true, "is_employer": true, "salary": 1}`, "(root)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParsedJob([]byte(tt.doc))
			require.Error(t, err)

			validationErr, ok := err.(*ValidationError)
			require.True(t, ok, "error should be ValidationError type")
			assert.Contains(t, validationErr.Fields(), tt.field)
		})
	}
}

func TestValidateParsedJob_Malformed(t *testing.T) {
	err := ValidateParsedJob([]byte(`{ invalid json }`))
	require.Error(t, err)

	_, ok := err.(*SchemaLoadError)
	assert.True(t, ok, "error should be SchemaLoadError type")
}

func TestParsedJobSchemaIsJSON(t *testing.T) {
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(ParsedJobSchema()), &doc))
	assert.Equal(t, []interface{}{"raw_id", "is_candidate", "is_employer"}, doc["required"])
}

package extract

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// recordsSchema constrains only the structure of the payload: a list of
// objects with string-ish identity fields. Per-field value types stay loose
// on purpose; semester/marks/credits are pass-through and not validated here.
const recordsSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"university": {"type": ["string", "number", "null"]},
			"semester": {},
			"course_code": {"type": ["string", "number", "null"]},
			"author": {"type": ["string", "number", "null"]},
			"text_name": {"type": ["string", "number", "null"]},
			"marks": {},
			"credits": {}
		}
	}
}`

var compiledRecordsSchema = jsonschema.MustCompileString("records.json", recordsSchema)

// validateRecords checks the normalized payload against recordsSchema.
func validateRecords(items []any) error {
	if err := compiledRecordsSchema.Validate(items); err != nil {
		return fmt.Errorf("payload does not match records schema: %w", err)
	}
	return nil
}

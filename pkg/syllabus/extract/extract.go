// Package extract defines the boundary to the upstream document extractor:
// the Record shape the pipeline consumes, and the normalization that turns a
// raw extractor payload into a clean sequence of records.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/malay-max/syllabus-scraper/pkg/syllabus/internalerr"
)

// Record is one extracted syllabus entry. The string fields identify the
// entities; Semester, Marks and Credits pass through untyped because the
// extractor is best-effort about them.
type Record struct {
	University string
	Semester   any
	CourseCode string
	Author     string
	TextName   string
	Marks      any
	Credits    any
}

// SchemaDescription is the per-item shape requested from the extractor. It is
// handed to the generative model verbatim as part of the prompt.
const SchemaDescription = `{
    "university": "Full Name of University",
    "semester": Integer,
    "course_code": "String",
    "author": "Author Name (e.g. William Shakespeare)",
    "text_name": "Text Title (e.g. The Tempest)",
    "marks": "String",
    "credits": Integer
}`

// DecodeRecords parses a raw extractor payload into records.
//
// The payload is expected to be a JSON list of objects, but models drift from
// that: a bare single object is normalized to a one-element list, and an
// object with exactly one key whose value is a list is unwrapped. Both shims
// are logged because the unwrap heuristic is ambiguous. Anything else fails
// with internalerr.ErrExtraction.
func DecodeRecords(raw []byte, logger *zap.Logger) ([]Record, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: unparsable payload: %v", internalerr.ErrExtraction, err)
	}

	var items []any
	switch v := payload.(type) {
	case []any:
		items = v
	case map[string]any:
		if inner, ok := singleWrappedList(v); ok {
			logger.Warn("extractor payload wrapped in a single key, unwrapping",
				zap.Int("records", len(inner)))
			items = inner
		} else {
			logger.Warn("extractor payload is a bare object, treating as one-element list")
			items = []any{v}
		}
	default:
		return nil, fmt.Errorf("%w: payload is neither a list nor an object", internalerr.ErrExtraction)
	}

	if err := validateRecords(items); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrExtraction, err)
	}

	records := make([]Record, len(items))
	for i, item := range items {
		m := item.(map[string]any) // validated above
		records[i] = Record{
			University: asString(m["university"]),
			Semester:   asScalar(m["semester"]),
			CourseCode: asString(m["course_code"]),
			Author:     asString(m["author"]),
			TextName:   asString(m["text_name"]),
			Marks:      asScalar(m["marks"]),
			Credits:    asScalar(m["credits"]),
		}
	}
	return records, nil
}

// singleWrappedList reports whether m is {"some_key": [...]} and returns the
// inner list.
func singleWrappedList(m map[string]any) ([]any, bool) {
	if len(m) != 1 {
		return nil, false
	}
	for _, v := range m {
		if inner, ok := v.([]any); ok {
			return inner, true
		}
	}
	return nil, false
}

// asString coerces the identity fields. Models occasionally emit numbers for
// course codes; those are kept in their literal form. Non-scalar values are
// treated as absent.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// asScalar keeps pass-through fields in a storable form: integral JSON
// numbers become int64, other numbers float64, strings stay strings.
// Anything non-scalar is dropped to nil.
func asScalar(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case string, bool, nil:
		return t
	default:
		return nil
	}
}

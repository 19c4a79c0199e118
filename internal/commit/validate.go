// Package commit consumes work messages and commits validated records into
// the catalog store.
package commit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pErrors "github.com/stockyard/stockyard/internal/errors"
	"github.com/stockyard/stockyard/pkg/types"
)

// recordNamespace seeds deterministic ids for records that arrive without
// one. Derived ids are stable across redeliveries of the same content, which
// keeps the upsert path idempotent.
var recordNamespace = uuid.MustParse("b1c7a9d4-5a0e-4a6b-9f3d-2c8e41f0a7b2")

// Candidate is a validated record ready for the dual write.
type Candidate struct {
	Product types.Product
	Count   int64
}

// ParseCandidate decodes and validates one work message body. It never
// panics: every defect in the payload comes back as a VALIDATION or DECODE
// error describing the first problem found.
func ParseCandidate(body []byte) (Candidate, *pErrors.PipelineError) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return Candidate{}, pErrors.NewDecodeError(pErrors.CodeInvalidPayload, "work message is not a JSON object", err)
	}

	id, err := candidateID(raw)
	if err != nil {
		return Candidate{}, err
	}

	title, err := stringField(raw, "title")
	if err != nil {
		return Candidate{}, err
	}
	description, err := stringField(raw, "description")
	if err != nil {
		return Candidate{}, err
	}

	price, ok := numericField(raw["price"])
	if !ok || price <= 0 {
		return Candidate{}, pErrors.NewValidationError(pErrors.CodeInvalidPrice, "price must be a number greater than zero").
			WithDetails(map[string]interface{}{"price": raw["price"]})
	}

	count, ok := integerField(raw["count"])
	if !ok || count < 0 {
		return Candidate{}, pErrors.NewValidationError(pErrors.CodeInvalidCount, "count must be a non-negative integer").
			WithDetails(map[string]interface{}{"count": raw["count"]})
	}

	return Candidate{
		Product: types.Product{
			ID:          id,
			Title:       title,
			Description: description,
			Price:       price,
		},
		Count: count,
	}, nil
}

// candidateID returns the record id: the payload's own when present, else a
// deterministic v5 id derived from the record content.
func candidateID(raw map[string]interface{}) (string, *pErrors.PipelineError) {
	v, present := raw["id"]
	if !present {
		content := fmt.Sprintf("%v|%v|%v|%v", raw["title"], raw["description"], raw["price"], raw["count"])
		return uuid.NewSHA1(recordNamespace, []byte(content)).String(), nil
	}

	id, ok := v.(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", pErrors.NewValidationError(pErrors.CodeMissingField, "id must be a non-empty string when present")
	}
	return id, nil
}

func stringField(raw map[string]interface{}, name string) (string, *pErrors.PipelineError) {
	v, ok := raw[name].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", pErrors.NewValidationError(pErrors.CodeMissingField, name+" must be a non-empty string").
			WithDetails(map[string]interface{}{"field": name})
	}
	return v, nil
}

// numericField accepts a JSON number or a numeric string.
func numericField(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// integerField accepts a JSON integer or an integer string. Fractional
// values are rejected.
func integerField(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

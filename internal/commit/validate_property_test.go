package commit

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseCandidateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	fieldGen := gen.RegexMatch(`[a-zA-Z0-9][a-zA-Z0-9 ._-]{0,19}`)

	properties.Property("numeric strings and JSON numbers validate identically", prop.ForAll(
		func(title, description string, price float64, count int64) bool {
			asStrings, _ := json.Marshal(map[string]string{
				"title":       title,
				"description": description,
				"price":       strconv.FormatFloat(price, 'f', -1, 64),
				"count":       strconv.FormatInt(count, 10),
			})
			asNumbers, _ := json.Marshal(map[string]interface{}{
				"title":       title,
				"description": description,
				"price":       price,
				"count":       count,
			})

			a, aErr := ParseCandidate(asStrings)
			b, bErr := ParseCandidate(asNumbers)
			if aErr != nil || bErr != nil {
				return false
			}
			return a.Product.Title == b.Product.Title &&
				a.Product.Price == b.Product.Price &&
				a.Count == b.Count
		},
		fieldGen, fieldGen,
		gen.Float64Range(0.01, 100000),
		gen.Int64Range(0, 100000),
	))

	properties.Property("parsing the same body always derives the same id", prop.ForAll(
		func(title, description string, price float64, count int64) bool {
			body, _ := json.Marshal(map[string]string{
				"title":       title,
				"description": description,
				"price":       strconv.FormatFloat(price, 'f', -1, 64),
				"count":       strconv.FormatInt(count, 10),
			})
			a, aErr := ParseCandidate(body)
			b, bErr := ParseCandidate(body)
			if aErr != nil || bErr != nil {
				return false
			}
			return a.Product.ID == b.Product.ID && a.Product.ID != ""
		},
		fieldGen, fieldGen,
		gen.Float64Range(0.01, 100000),
		gen.Int64Range(0, 100000),
	))

	properties.TestingRun(t)
}

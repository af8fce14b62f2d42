package queryparse

import "github.com/ejdbq/jql/internal/jsonutil"

// decodeJSONText decodes one stashed JSON island into a
// nil/bool/float64/string/map[string]any/[]any tree. Numbers come back as
// float64, whereas bindoc.DecodeJSON returns integral numbers as int64;
// the value package's structural comparison treats the two as equal.
func decodeJSONText(raw string) (any, error) {
	var v any
	if err := jsonutil.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}

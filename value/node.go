package value

// deepEqualJSON compares two decoded-JSON trees (nil, bool, int64,
// float64, string, map[string]any, []any) for structural equality,
// treating an int64 and a float64 holding the same numeric value as
// equal: bindoc.DecodeJSON and an ordinary JSON decoder don't always
// agree on which of the two a given number comes back as.
func deepEqualJSON(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int64:
		return numEqual(float64(av), b)
	case float64:
		return numEqual(av, b)
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !deepEqualJSON(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqualJSON(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func numEqual(av float64, b any) bool {
	switch bv := b.(type) {
	case int64:
		return av == float64(bv)
	case float64:
		return av == bv
	default:
		return false
	}
}

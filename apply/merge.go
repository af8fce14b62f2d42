package apply

import (
	"fmt"

	"github.com/apapsch/go-jsonmerge/v2"

	"github.com/ejdbq/jql/internal/jsonutil"
)

// mergeJSON deep-merges patch into base, both decoded JSON trees,
// round-tripping through JSON bytes since go-jsonmerge operates at the
// wire-format level rather than on Go values directly.
func mergeJSON(base, patch any) (any, error) {
	baseBytes, err := jsonutil.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("apply: marshal merge base: %w", err)
	}
	patchBytes, err := jsonutil.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("apply: marshal merge patch: %w", err)
	}
	merger := jsonmerge.Merger{}
	mergedBytes, err := merger.MergeBytes(baseBytes, patchBytes)
	if err != nil {
		return nil, fmt.Errorf("apply: merge: %w", err)
	}
	var out any
	if err := jsonutil.Unmarshal(mergedBytes, &out); err != nil {
		return nil, fmt.Errorf("apply: unmarshal merge result: %w", err)
	}
	return out, nil
}

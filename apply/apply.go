package apply

import (
	"fmt"

	"github.com/mohae/deepcopy"

	"github.com/ejdbq/jql/internal/metrics"
	"github.com/ejdbq/jql/queryast"
)

// Result is the outcome of running a document's apply/upsert/delete
// clauses.
type Result struct {
	Doc     any // the mutated document; meaningless if Deleted
	Deleted bool
}

// Apply runs doc's apply/upsert/delete clauses, in clause order, against
// a private clone so that a failure partway through never leaves a
// partially mutated document observable to the caller — the clone is
// only handed back (as Result.Doc) once every clause has succeeded.
func Apply(arena *queryast.Arena, doc any, nodes []*queryast.Node, rec *metrics.Recorder) (Result, error) {
	working := deepcopy.Copy(doc)
	for _, n := range nodes {
		if n.Kind != queryast.KindApply {
			continue
		}
		switch n.ApplyKind {
		case queryast.ApplyDelete:
			rec.RecordApply("delete")
			return Result{Deleted: true}, nil

		case queryast.ApplyJSON:
			merged, err := mergeJSON(working, derefJSON(n.ApplyJSON))
			if err != nil {
				return Result{}, err
			}
			working = merged
			rec.RecordApply("merge")

		case queryast.ApplyPatch:
			patched, err := applyPatchOps(working, n.ApplyOps)
			if err != nil {
				return Result{}, err
			}
			working = patched
			rec.RecordApply("patch")

		case queryast.ApplyUpsert:
			working = upsertMerge(working, derefJSON(n.ApplyJSON))
			rec.RecordApply("upsert")

		default:
			return Result{}, fmt.Errorf("apply: unknown apply kind %d", n.ApplyKind)
		}
	}
	return Result{Doc: working}, nil
}

// upsertMerge inserts each top-level key of patch into base only where
// base doesn't already have that key, leaving existing values (and
// their subtrees) untouched entirely — "insert if absent," distinct
// from ApplyJSON's unconditional deep merge.
func upsertMerge(base, patch any) any {
	patchMap, ok := patch.(map[string]any)
	if !ok {
		return base
	}
	baseMap, ok := base.(map[string]any)
	if !ok {
		baseMap = map[string]any{}
	}
	out := make(map[string]any, len(baseMap)+len(patchMap))
	for k, v := range baseMap {
		out[k] = v
	}
	for k, v := range patchMap {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

package findings

import "sort"

// Compare reports which findings are new, resolved, or persisting between two
// runs. A nil previous run treats every current finding as new.
func Compare(prev, cur *Run) Comparison {
	cmp := Comparison{
		New:        []string{},
		Resolved:   []string{},
		Persisting: []string{},
	}

	var before map[string]Finding
	if prev != nil {
		cmp.PreviousRunID = prev.ID
		before = ByFingerprint(prev.Findings)
	}

	var after map[string]Finding
	if cur != nil {
		after = ByFingerprint(cur.Findings)
	}

	for fp := range after {
		if _, ok := before[fp]; ok {
			cmp.Persisting = append(cmp.Persisting, fp)
		} else {
			cmp.New = append(cmp.New, fp)
		}
	}
	for fp := range before {
		if _, ok := after[fp]; !ok {
			cmp.Resolved = append(cmp.Resolved, fp)
		}
	}

	sort.Strings(cmp.New)
	sort.Strings(cmp.Resolved)
	sort.Strings(cmp.Persisting)
	return cmp
}

// ApplyProvenance stamps first/last seen run ids onto the current findings,
// carrying the first-seen id forward from the previous run where the identity persists
func ApplyProvenance(prev *Run, cur []Finding, runID string) []Finding {
	var before map[string]Finding
	if prev != nil {
		before = ByFingerprint(prev.Findings)
	}

	out := make([]Finding, len(cur))
	for i, f := range cur {
		f.FirstSeenRunID = runID
		if old, ok := before[f.Fingerprint]; ok && old.FirstSeenRunID != "" {
			f.FirstSeenRunID = old.FirstSeenRunID
		}
		f.LastSeenRunID = runID
		out[i] = f
	}
	return out
}

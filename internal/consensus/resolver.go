package consensus

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/sells-group/reality-cli/internal/checker"
)

// claim is one source's reported value for a fact key.
type claim struct {
	source checker.Source
	value  any
}

// Resolve detects facts on which available sources disagree and picks one
// winner per fact using the trust hierarchy. Resolution is never done by
// voting or averaging: the hierarchy is a strict total order, so the same
// inputs always produce the same winner.
func Resolve(results []checker.Result, hierarchy TrustHierarchy) ([]Conflict, error) {
	if err := hierarchy.Validate(); err != nil {
		return nil, err
	}

	// Gather every reported value per fact key, in result order.
	claims := map[string][]claim{}
	for _, res := range results {
		if !res.Available {
			continue
		}
		for key, value := range res.Facts {
			claims[key] = append(claims[key], claim{source: res.Source, value: value})
		}
	}

	keys := make([]string, 0, len(claims))
	for key := range claims {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var conflicts []Conflict
	for _, key := range keys {
		cs := claims[key]
		if len(cs) < 2 || !hasDistinctValues(cs) {
			continue
		}

		winner := cs[0]
		for _, c := range cs[1:] {
			if hierarchy.Rank(c.source) < hierarchy.Rank(winner.source) {
				winner = c
			}
		}

		candidates := make(map[checker.Source]any, len(cs))
		for _, c := range cs {
			candidates[c.source] = c.value
		}

		losers := make([]string, 0, len(cs)-1)
		for _, c := range cs {
			if c.source != winner.source {
				losers = append(losers, string(c.source))
			}
		}
		sort.Strings(losers)

		conflicts = append(conflicts, Conflict{
			FactKey:         key,
			CandidateValues: candidates,
			ResolvedValue:   winner.value,
			ResolvedBy:      winner.source,
			ResolutionReason: fmt.Sprintf("%s outranks %s per configured trust hierarchy (tier %d)",
				winner.source, joinSources(losers), hierarchy.Rank(winner.source)+1),
		})
	}

	return conflicts, nil
}

// hasDistinctValues reports whether the claims disagree. Values are opaque,
// so comparison falls back to their JSON form when they are not directly
// comparable.
func hasDistinctValues(cs []claim) bool {
	first := normalize(cs[0].value)
	for _, c := range cs[1:] {
		if !reflect.DeepEqual(first, normalize(c.value)) {
			return true
		}
	}
	return false
}

// normalize round-trips a value through JSON so that equivalent values of
// different Go types (e.g. int vs float64 after unmarshal) compare equal.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func joinSources(names []string) string {
	switch len(names) {
	case 0:
		return "no other source"
	case 1:
		return names[0]
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

package settings

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"sort"
)

// canonical decodes a descriptor into generic JSON values and sorts the
// geo id list, so two descriptors naming the same metros in a different
// order compare equal. Every other list keeps its order.
func canonical(b []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	areas, ok := m["selected_areas"].(map[string]any)
	if !ok {
		return m, nil
	}
	ids, ok := areas["geo_ids"].([]any)
	if !ok {
		return m, nil
	}
	sorted := append([]any(nil), ids...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return fmt.Sprint(sorted[i]) < fmt.Sprint(sorted[j])
	})
	areas["geo_ids"] = sorted
	return m, nil
}

// Equal compares two encoded descriptors structurally.
func Equal(a, b []byte) (bool, error) {
	ca, err := canonical(a)
	if err != nil {
		return false, err
	}
	cb, err := canonical(b)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(ca, cb), nil
}

// Reconcile promotes every pending descriptor that has no structural twin in
// committed and deletes the rest. It reports whether anything was promoted,
// i.e. whether the exports must be downloaded again. Pending is empty on
// success.
func Reconcile(s *Store) (changed bool, err error) {
	committedNames, err := List(s.Committed)
	if err != nil {
		return false, err
	}

	var existing []map[string]any
	for _, n := range committedNames {
		if IsAggregate(n) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.Committed, n))
		if err != nil {
			return false, err
		}
		c, err := canonical(b)
		if err != nil {
			log.Printf("[settings] committed %s unreadable, ignoring for comparison: %v", n, err)
			continue
		}
		existing = append(existing, c)
	}

	pendingNames, err := List(s.Pending)
	if err != nil {
		return false, err
	}

	var promoted, discarded int
	for _, n := range pendingNames {
		src := filepath.Join(s.Pending, n)
		b, err := os.ReadFile(src)
		if err != nil {
			return changed, err
		}
		c, err := canonical(b)
		if err != nil {
			return changed, fmt.Errorf("decode pending %s: %w", n, err)
		}

		matched := false
		for _, e := range existing {
			if reflect.DeepEqual(c, e) {
				matched = true
				break
			}
		}

		if matched {
			if err := os.Remove(src); err != nil {
				return changed, err
			}
			discarded++
			continue
		}
		if err := move(src, filepath.Join(s.Committed, n)); err != nil {
			return changed, fmt.Errorf("promote %s: %w", n, err)
		}
		promoted++
		changed = true
	}

	log.Printf("[settings] reconciled pending=%d promoted=%d discarded=%d", len(pendingNames), promoted, discarded)
	return changed, nil
}

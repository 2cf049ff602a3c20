// Package allocation implements the facility's burn-rate allocation
// algorithm: distributing a desired aggregate burn rate across priority
// groups of reactor units, capping each unit at its configured limit
// and carrying any residual on to the next-lower-priority group.
//
// The tie-break rule (stable ascending sort by limit) is modeled on the
// order book's stable price-time priority; unlike an order book this is
// a one-shot rebalance recomputed from scratch on every commit, so
// there is no persistent heap of resting entries to maintain.
package allocation

import "sort"

// Unit is the allocation-relevant projection of a reactor-unit record.
type Unit struct {
	ID      string
	LimBR10 int64
}

// SortGroup stably sorts units ascending by LimBR10, the tie-break rule
// being declaration order on equal limits (guaranteed by sort.SliceStable
// operating on the caller's declaration-ordered slice).
func SortGroup(units []Unit) []Unit {
	sorted := make([]Unit, len(units))
	copy(sorted, units)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LimBR10 < sorted[j].LimBR10
	})
	return sorted
}

// AllocateGroup distributes unallocated tenths across units (assumed
// already SortGroup-ordered), capping each unit at its limit. The base
// share floor(unallocated / remaining units) is held fixed from unit to
// unit and recomputed over the remaining units only after a unit is
// capped; the last unit's share is the whole remainder. Returns the
// per-unit assignment and the tenths left over after this group.
func AllocateGroup(units []Unit, unallocated int64) (map[string]int64, int64) {
	assigned := make(map[string]int64, len(units))
	remaining := units
	var share int64
	recompute := true
	for len(remaining) > 0 {
		count := int64(len(remaining))
		if recompute || count == 1 {
			share = unallocated / count // integer division floors for unallocated >= 0
			recompute = false
		}
		u := remaining[0]
		if share <= u.LimBR10 {
			assigned[u.ID] = share
			unallocated -= share
		} else {
			assigned[u.ID] = u.LimBR10
			unallocated -= u.LimBR10
			recompute = true
		}
		remaining = remaining[1:]
	}
	return assigned, unallocated
}

// Allocate runs AllocateGroup across priority groups 1..4 in order
// (lower number = higher priority), carrying the residual from one
// group into the next. groups must already be keyed by priority and
// need not include group 0 (independent units are never
// facility-allocated).
func Allocate(groups map[int][]Unit, totalBR10 int64) (map[string]int64, int64) {
	assignments := make(map[string]int64)
	unallocated := totalBR10
	for g := 1; g <= 4; g++ {
		units, ok := groups[g]
		if !ok || len(units) == 0 {
			continue
		}
		sorted := SortGroup(units)
		groupAssigned, residual := AllocateGroup(sorted, unallocated)
		for id, v := range groupAssigned {
			assignments[id] = v
		}
		unallocated = residual
	}
	return assignments, unallocated
}

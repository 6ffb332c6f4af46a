// Package sharesub implements deterministic share-subscription leader
// election (spec C6): given a cluster's shared-subscription group and the
// current set of live broker ids, every broker must independently compute
// the same elected leader.
package sharesub

import (
	"errors"
	"hash/fnv"
	"sort"
)

// ErrNoBrokerAvailable is returned when the membership set is empty.
var ErrNoBrokerAvailable = errors.New("sharesub: no broker available")

// Elect deterministically picks the broker id that owns groupName's
// subscription fan-out, given the current live broker ids for a cluster.
// The result depends only on the set of ids and the group name: permuting
// members does not change the result, and the same inputs always produce
// the same output across every broker in the cluster.
func Elect(groupName string, members []uint64) (uint64, error) {
	if len(members) == 0 {
		return 0, ErrNoBrokerAvailable
	}

	sorted := append([]uint64(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	h := fnv.New64a()
	_, _ = h.Write([]byte(groupName))
	idx := int(h.Sum64() % uint64(len(sorted)))
	return sorted[idx], nil
}

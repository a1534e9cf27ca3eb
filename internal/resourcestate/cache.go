package resourcestate

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pbinitiative/resourced/internal/records"
)

// cacheCapacity is the default bound of every read-through cache fronting
// the store. The caches are golang-lru's Cache, which evicts in exact LRU
// order.
const cacheCapacity = 10000

// caches bundles every read-through cache the resource state store keeps,
// one per indexed lookup that's hot enough to be worth fronting. The cache
// is strictly a read accelerator: writers invalidate the affected keys
// synchronously on commit, and a cache miss always falls through to the
// column families.
type caches struct {
	latestDecisionKeyById *lru.Cache[string, int64]
	decisionByKey         *lru.Cache[int64, records.DecisionRecord]
	latestDrgKeyById      *lru.Cache[string, int64]
	drgByKey              *lru.Cache[int64, records.DrgRecord]
	decisionsByDrgKey     *lru.Cache[int64, []records.DecisionRecord]
}

func newCaches(capacity int) *caches {
	if capacity <= 0 {
		capacity = cacheCapacity
	}
	ld, _ := lru.New[string, int64](capacity)
	dk, _ := lru.New[int64, records.DecisionRecord](capacity)
	lg, _ := lru.New[string, int64](capacity)
	gk, _ := lru.New[int64, records.DrgRecord](capacity)
	ddk, _ := lru.New[int64, []records.DecisionRecord](capacity)
	return &caches{
		latestDecisionKeyById: ld,
		decisionByKey:         dk,
		latestDrgKeyById:      lg,
		drgByKey:              gk,
		decisionsByDrgKey:     ddk,
	}
}

// invalidateDecision drops every cache entry that could be stale after a
// decision row or its latest-version pointer changes.
func (c *caches) invalidateDecision(id string, key int64, drgKey int64) {
	c.latestDecisionKeyById.Remove(id)
	c.decisionByKey.Remove(key)
	c.decisionsByDrgKey.Remove(drgKey)
}

func (c *caches) invalidateDrg(id string, key int64) {
	c.latestDrgKeyById.Remove(id)
	c.drgByKey.Remove(key)
}

func copyDrg(r records.DrgRecord) records.DrgRecord {
	out := r
	out.Checksum = append([]byte(nil), r.Checksum...)
	out.Resource = append([]byte(nil), r.Resource...)
	return out
}

func copyDecisions(in []records.DecisionRecord) []records.DecisionRecord {
	out := make([]records.DecisionRecord, len(in))
	copy(out, in)
	return out
}

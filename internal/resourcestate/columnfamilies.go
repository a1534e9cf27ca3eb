// Package resourcestate implements the column families and read-through
// caches backing deployed processes, decision requirements graphs and
// their constituent decisions.
package resourcestate

import "github.com/pbinitiative/resourced/internal/kv"

// namespace enumerates the column families as 16-bit values. Each column
// family is stored as a bbolt bucket named by String(); the numeric value
// itself is not written to disk, so it is the bucket names that persisted
// data depends on.
type namespace uint16

const (
	nsProcessesByKey namespace = iota + 1
	nsLatestProcessById
	nsProcessKeyByIdVersion
	nsDecisionsByKey
	nsLatestDecisionById
	nsDecisionKeyByIdVersion
	nsDecisionKeyByDrgKey
	nsDrgByKey
	nsLatestDrgById
	nsDrgKeyByIdVersion
)

func (n namespace) String() string {
	switch n {
	case nsProcessesByKey:
		return "processes_by_key"
	case nsLatestProcessById:
		return "latest_process_by_id"
	case nsProcessKeyByIdVersion:
		return "process_key_by_id_version"
	case nsDecisionsByKey:
		return "decisions_by_key"
	case nsLatestDecisionById:
		return "latest_decision_by_id"
	case nsDecisionKeyByIdVersion:
		return "decision_key_by_id_version"
	case nsDecisionKeyByDrgKey:
		return "decision_key_by_drg_key"
	case nsDrgByKey:
		return "drg_by_key"
	case nsLatestDrgById:
		return "latest_drg_by_id"
	case nsDrgKeyByIdVersion:
		return "drg_key_by_id_version"
	default:
		return "unknown_namespace"
	}
}

type idVersionKey = kv.CompositeKey[string, int32]
type drgDecisionKey = kv.CompositeKey[int64, int64]

var idVersionCodec = kv.CompositeCodec[string, int32]{First: kv.StringCodec{}, Second: kv.Int32Codec{}}
var drgDecisionCodec = kv.CompositeCodec[int64, int64]{First: kv.Int64Codec{}, Second: kv.Int64Codec{}}

func idVersionSplit(b []byte) (int, error) {
	return kv.StringKeyLen(b)
}

package resourcestate

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/pbinitiative/resourced/internal/kv"
	"github.com/pbinitiative/resourced/internal/records"
)

// ResourceState is the partition-scoped store of deployed processes,
// decision requirements graphs and their decisions. It owns the column
// families listed in the data model plus the read-through caches fronting
// the hottest lookups; every mutation flows through a caller-supplied
// kv.Transaction so it composes with the rest of a command's writes.
type ResourceState struct {
	logger hclog.Logger
	caches *caches

	processesByKey      *kv.ColumnFamily[int64, records.ProcessRecord]
	latestProcessById    *kv.ColumnFamily[string, int64]
	processKeyByIdVersion *kv.CompositeColumnFamily[string, int32, int64]

	decisionsByKey          *kv.ColumnFamily[int64, records.DecisionRecord]
	latestDecisionById       *kv.ColumnFamily[string, int64]
	decisionKeyByIdVersion   *kv.CompositeColumnFamily[string, int32, int64]
	decisionKeyByDrgKey      *kv.CompositeColumnFamily[int64, int64, struct{}]

	drgByKey           *kv.ColumnFamily[int64, records.DrgRecord]
	latestDrgById       *kv.ColumnFamily[string, int64]
	drgKeyByIdVersion   *kv.CompositeColumnFamily[string, int32, int64]
}

// Config bounds the size of the read-through caches. Every cache gets the
// larger of DecisionCacheSize and DrgCacheSize as its capacity; when that
// larger value is zero or negative, the default capacity is used.
type Config struct {
	DecisionCacheSize int
	DrgCacheSize      int
}

func New(logger hclog.Logger, cfg Config) *ResourceState {
	capacity := cfg.DecisionCacheSize
	if cfg.DrgCacheSize > capacity {
		capacity = cfg.DrgCacheSize
	}
	return &ResourceState{
		logger: logger.Named("resource-state"),
		caches: newCaches(capacity),

		processesByKey:        kv.NewColumnFamily[int64, records.ProcessRecord](nsProcessesByKey.String(), kv.Int64Codec{}, kv.MsgpackCodec[records.ProcessRecord]{}),
		latestProcessById:     kv.NewColumnFamily[string, int64](nsLatestProcessById.String(), kv.StringCodec{}, kv.Int64Codec{}),
		processKeyByIdVersion: kv.NewCompositeColumnFamily[string, int32, int64](nsProcessKeyByIdVersion.String(), idVersionCodec, idVersionSplit, kv.Int64Codec{}),

		decisionsByKey:         kv.NewColumnFamily[int64, records.DecisionRecord](nsDecisionsByKey.String(), kv.Int64Codec{}, kv.MsgpackCodec[records.DecisionRecord]{}),
		latestDecisionById:     kv.NewColumnFamily[string, int64](nsLatestDecisionById.String(), kv.StringCodec{}, kv.Int64Codec{}),
		decisionKeyByIdVersion: kv.NewCompositeColumnFamily[string, int32, int64](nsDecisionKeyByIdVersion.String(), idVersionCodec, idVersionSplit, kv.Int64Codec{}),
		decisionKeyByDrgKey:    kv.NewCompositeColumnFamily[int64, int64, struct{}](nsDecisionKeyByDrgKey.String(), drgDecisionCodec, kv.FixedSplit(8), kv.NilCodec{}),

		drgByKey:         kv.NewColumnFamily[int64, records.DrgRecord](nsDrgByKey.String(), kv.Int64Codec{}, kv.MsgpackCodec[records.DrgRecord]{}),
		latestDrgById:     kv.NewColumnFamily[string, int64](nsLatestDrgById.String(), kv.StringCodec{}, kv.Int64Codec{}),
		drgKeyByIdVersion: kv.NewCompositeColumnFamily[string, int32, int64](nsDrgKeyByIdVersion.String(), idVersionCodec, idVersionSplit, kv.Int64Codec{}),
	}
}

// GetProcessByKey looks up a process definition by its primary key. Not
// cached: the processor's hot path reads a process at most once per
// command, on the classify step.
func (s *ResourceState) GetProcessByKey(tx *kv.Transaction, key int64) (records.ProcessRecord, bool, error) {
	return s.processesByKey.Get(tx, key)
}

// FindLatestDecisionById returns the newest stored version of the decision
// with the given id, or found=false if none exists.
func (s *ResourceState) FindLatestDecisionById(tx *kv.Transaction, id string) (records.DecisionRecord, bool, error) {
	if key, ok := s.caches.latestDecisionKeyById.Get(id); ok {
		return s.FindDecisionByKey(tx, key)
	}
	key, found, err := s.latestDecisionById.Get(tx, id)
	if err != nil || !found {
		return records.DecisionRecord{}, found, err
	}
	s.caches.latestDecisionKeyById.Add(id, key)
	return s.FindDecisionByKey(tx, key)
}

func (s *ResourceState) FindDecisionByKey(tx *kv.Transaction, key int64) (records.DecisionRecord, bool, error) {
	if r, ok := s.caches.decisionByKey.Get(key); ok {
		return r, true, nil
	}
	r, found, err := s.decisionsByKey.Get(tx, key)
	if err != nil || !found {
		return r, found, err
	}
	s.caches.decisionByKey.Add(key, r)
	return r, true, nil
}

func (s *ResourceState) FindLatestDrgById(tx *kv.Transaction, id string) (records.DrgRecord, bool, error) {
	if key, ok := s.caches.latestDrgKeyById.Get(id); ok {
		return s.FindDrgByKey(tx, key)
	}
	key, found, err := s.latestDrgById.Get(tx, id)
	if err != nil || !found {
		return records.DrgRecord{}, found, err
	}
	s.caches.latestDrgKeyById.Add(id, key)
	return s.FindDrgByKey(tx, key)
}

func (s *ResourceState) FindDrgByKey(tx *kv.Transaction, key int64) (records.DrgRecord, bool, error) {
	if r, ok := s.caches.drgByKey.Get(key); ok {
		return copyDrg(r), true, nil
	}
	r, found, err := s.drgByKey.Get(tx, key)
	if err != nil || !found {
		return r, found, err
	}
	s.caches.drgByKey.Add(key, r)
	return copyDrg(r), true, nil
}

// FindDecisionsByDrgKey returns every decision belonging to the DRG,
// ascending by decisionKey.
func (s *ResourceState) FindDecisionsByDrgKey(tx *kv.Transaction, drgKey int64) ([]records.DecisionRecord, error) {
	if cached, ok := s.caches.decisionsByDrgKey.Get(drgKey); ok {
		return copyDecisions(cached), nil
	}
	var out []records.DecisionRecord
	err := s.decisionKeyByDrgKey.ScanByFirst(tx, drgKey, func(key kv.CompositeKey[int64, int64], _ struct{}) (bool, error) {
		d, found, err := s.FindDecisionByKey(tx, key.Second)
		if err != nil {
			return false, err
		}
		if found {
			out = append(out, d)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.caches.decisionsByDrgKey.Add(drgKey, copyDecisions(out))
	return out, nil
}

// StoreProcess inserts a new process version and updates its latest-version
// pointers.
func (s *ResourceState) StoreProcess(tx *kv.Transaction, p records.ProcessRecord) error {
	if err := s.processesByKey.Upsert(tx, p.Key, p); err != nil {
		return err
	}
	if err := s.processKeyByIdVersion.Upsert(tx, kv.CompositeKey[string, int32]{First: p.BpmnProcessId, Second: p.Version}, p.Key); err != nil {
		return err
	}
	versionOf := func(tx *kv.Transaction, key int64) (int32, error) {
		r, _, err := s.processesByKey.Get(tx, key)
		return r.Version, err
	}
	return s.updateLatestPointerOnStore(tx, s.latestProcessById, versionOf, p.BpmnProcessId, p.Version, p.Key)
}

// StoreDecision inserts a new decision version, adds its (drgKey,
// decisionKey) row to the DRG join index and updates its latest-version
// pointer. The join row is removed again by DeleteDecision; StoreDrg and
// DeleteDrg never touch the join index.
func (s *ResourceState) StoreDecision(tx *kv.Transaction, d records.DecisionRecord) error {
	if err := kv.CheckForeignKey(tx, s.drgByKey, d.DrgKey); err != nil {
		return err
	}
	if err := s.decisionsByKey.Upsert(tx, d.DecisionKey, d); err != nil {
		return err
	}
	if err := s.decisionKeyByIdVersion.Upsert(tx, kv.CompositeKey[string, int32]{First: d.DecisionId, Second: d.Version}, d.DecisionKey); err != nil {
		return err
	}
	if err := s.decisionKeyByDrgKey.Upsert(tx, kv.CompositeKey[int64, int64]{First: d.DrgKey, Second: d.DecisionKey}, struct{}{}); err != nil {
		return err
	}
	versionOf := func(tx *kv.Transaction, key int64) (int32, error) {
		r, _, err := s.decisionsByKey.Get(tx, key)
		return r.Version, err
	}
	if err := s.updateLatestPointerOnStore(tx, s.latestDecisionById, versionOf, d.DecisionId, d.Version, d.DecisionKey); err != nil {
		return err
	}
	s.caches.invalidateDecision(d.DecisionId, d.DecisionKey, d.DrgKey)
	return nil
}

func (s *ResourceState) StoreDrg(tx *kv.Transaction, d records.DrgRecord) error {
	if err := s.drgByKey.Upsert(tx, d.DrgKey, d); err != nil {
		return err
	}
	if err := s.drgKeyByIdVersion.Upsert(tx, kv.CompositeKey[string, int32]{First: d.DrgId, Second: d.DrgVersion}, d.DrgKey); err != nil {
		return err
	}
	versionOf := func(tx *kv.Transaction, key int64) (int32, error) {
		r, _, err := s.drgByKey.Get(tx, key)
		return r.DrgVersion, err
	}
	if err := s.updateLatestPointerOnStore(tx, s.latestDrgById, versionOf, d.DrgId, d.DrgVersion, d.DrgKey); err != nil {
		return err
	}
	s.caches.invalidateDrg(d.DrgId, d.DrgKey)
	return nil
}

// DeleteDecision removes a decision row, its id+version index entry, its
// DRG join entry, and rolls back the latest-version pointer if this was
// the latest version.
func (s *ResourceState) DeleteDecision(tx *kv.Transaction, d records.DecisionRecord) error {
	if err := s.decisionsByKey.DeleteExisting(tx, d.DecisionKey); err != nil {
		return err
	}
	if err := s.decisionKeyByIdVersion.DeleteExisting(tx, kv.CompositeKey[string, int32]{First: d.DecisionId, Second: d.Version}); err != nil {
		return err
	}
	if err := s.decisionKeyByDrgKey.DeleteExisting(tx, kv.CompositeKey[int64, int64]{First: d.DrgKey, Second: d.DecisionKey}); err != nil {
		return err
	}
	if err := s.rollBackLatestPointerOnDelete(tx, s.latestDecisionById, s.decisionKeyByIdVersion, d.DecisionId, d.Version, d.DecisionKey); err != nil {
		return err
	}
	s.caches.invalidateDecision(d.DecisionId, d.DecisionKey, d.DrgKey)
	return nil
}

func (s *ResourceState) DeleteDrg(tx *kv.Transaction, d records.DrgRecord) error {
	if err := s.drgByKey.DeleteExisting(tx, d.DrgKey); err != nil {
		return err
	}
	if err := s.drgKeyByIdVersion.DeleteExisting(tx, kv.CompositeKey[string, int32]{First: d.DrgId, Second: d.DrgVersion}); err != nil {
		return err
	}
	if err := s.rollBackLatestPointerOnDelete(tx, s.latestDrgById, s.drgKeyByIdVersion, d.DrgId, d.DrgVersion, d.DrgKey); err != nil {
		return err
	}
	s.caches.invalidateDrg(d.DrgId, d.DrgKey)
	return nil
}

// DeleteProcess removes a process row and its indexes, rolling back the
// latest-version pointer the same way decisions and DRGs do.
func (s *ResourceState) DeleteProcess(tx *kv.Transaction, p records.ProcessRecord) error {
	if err := s.processesByKey.DeleteExisting(tx, p.Key); err != nil {
		return err
	}
	if err := s.processKeyByIdVersion.DeleteExisting(tx, kv.CompositeKey[string, int32]{First: p.BpmnProcessId, Second: p.Version}); err != nil {
		return err
	}
	return s.rollBackLatestPointerOnDelete(tx, s.latestProcessById, s.processKeyByIdVersion, p.BpmnProcessId, p.Version, p.Key)
}

// updateLatestPointerOnStore repoints id's latest-version entry to key if
// version is the highest version seen so far for id.
func (s *ResourceState) updateLatestPointerOnStore(tx *kv.Transaction, latest *kv.ColumnFamily[string, int64], versionOf func(*kv.Transaction, int64) (int32, error), id string, version int32, key int64) error {
	currentKey, found, err := latest.Get(tx, id)
	if err != nil {
		return err
	}
	if !found {
		return latest.Upsert(tx, id, key)
	}
	currentVersion, err := versionOf(tx, currentKey)
	if err != nil {
		return err
	}
	if version > currentVersion {
		return latest.Upsert(tx, id, key)
	}
	return nil
}

// rollBackLatestPointerOnDelete implements the latest-version maintenance
// algorithm: when the row being removed is the one latest_*_by_id[id]
// points at, scan every remaining version strictly below the deleted one
// and repoint to the maximum, or clear the pointer if none remain. Deleting
// a non-latest version leaves the pointer untouched.
func (s *ResourceState) rollBackLatestPointerOnDelete(tx *kv.Transaction, latest *kv.ColumnFamily[string, int64], byIdVersion *kv.CompositeColumnFamily[string, int32, int64], id string, deletedVersion int32, deletedKey int64) error {
	currentKey, found, err := latest.Get(tx, id)
	if err != nil {
		return err
	}
	if !found || currentKey != deletedKey {
		return nil
	}
	var maxVersion int32 = -1
	var maxKey int64
	err = byIdVersion.ScanByFirst(tx, id, func(k kv.CompositeKey[string, int32], v int64) (bool, error) {
		if k.Second < deletedVersion && k.Second > maxVersion {
			maxVersion = k.Second
			maxKey = v
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if maxVersion < 0 {
		return latest.DeleteExisting(tx, id)
	}
	return latest.Upsert(tx, id, maxKey)
}

func (s *ResourceState) String() string {
	return fmt.Sprintf("resourcestate{decisionCache=%d drgCache=%d}", s.caches.decisionByKey.Len(), s.caches.drgByKey.Len())
}

package resourcestate

import (
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbinitiative/resourced/internal/kv"
	"github.com/pbinitiative/resourced/internal/records"
)

func openTestState(t *testing.T) (*kv.Store, *ResourceState) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := kv.Open(path, hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, New(hclog.NewNullLogger(), Config{})
}

func TestLatestDecisionByIdTracksMaxVersion(t *testing.T) {
	store, state := openTestState(t)

	require.NoError(t, store.Update(func(tx *kv.Transaction) error {
		require.NoError(t, state.StoreDrg(tx, records.DrgRecord{DrgId: "D", DrgKey: 7, DrgVersion: 1}))
		for _, d := range []records.DecisionRecord{
			{DecisionId: "X", Version: 1, DecisionKey: 10, DrgKey: 7},
			{DecisionId: "X", Version: 2, DecisionKey: 20, DrgKey: 7},
		} {
			if err := state.StoreDecision(tx, d); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, store.View(func(tx *kv.Transaction) error {
		latest, found, err := state.FindLatestDecisionById(tx, "X")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, int64(20), latest.DecisionKey)
		return nil
	}))
}

func TestDeletingOnlyVersionRemovesLatestPointer(t *testing.T) {
	store, state := openTestState(t)

	require.NoError(t, store.Update(func(tx *kv.Transaction) error {
		require.NoError(t, state.StoreDrg(tx, records.DrgRecord{DrgId: "D", DrgKey: 7, DrgVersion: 1}))
		return state.StoreDecision(tx, records.DecisionRecord{DecisionId: "X", Version: 1, DecisionKey: 10, DrgKey: 7})
	}))

	require.NoError(t, store.Update(func(tx *kv.Transaction) error {
		rec, found, err := state.FindDecisionByKey(tx, 10)
		require.NoError(t, err)
		require.True(t, found)
		return state.DeleteDecision(tx, rec)
	}))

	require.NoError(t, store.View(func(tx *kv.Transaction) error {
		_, found, err := state.FindLatestDecisionById(tx, "X")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

func TestDeletingNonLatestVersionLeavesPointerUnchanged(t *testing.T) {
	store, state := openTestState(t)

	require.NoError(t, store.Update(func(tx *kv.Transaction) error {
		require.NoError(t, state.StoreDrg(tx, records.DrgRecord{DrgId: "D", DrgKey: 7, DrgVersion: 1}))
		for _, d := range []records.DecisionRecord{
			{DecisionId: "X", Version: 1, DecisionKey: 10, DrgKey: 7},
			{DecisionId: "X", Version: 2, DecisionKey: 20, DrgKey: 7},
		} {
			if err := state.StoreDecision(tx, d); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, store.Update(func(tx *kv.Transaction) error {
		rec, _, err := state.FindDecisionByKey(tx, 10)
		require.NoError(t, err)
		return state.DeleteDecision(tx, rec)
	}))

	require.NoError(t, store.View(func(tx *kv.Transaction) error {
		latest, found, err := state.FindLatestDecisionById(tx, "X")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, int64(20), latest.DecisionKey)
		return nil
	}))
}

func TestDeletingLatestOfThreeVersionsRollsBackToNextHighest(t *testing.T) {
	store, state := openTestState(t)

	require.NoError(t, store.Update(func(tx *kv.Transaction) error {
		require.NoError(t, state.StoreDrg(tx, records.DrgRecord{DrgId: "D", DrgKey: 7, DrgVersion: 1}))
		for _, d := range []records.DecisionRecord{
			{DecisionId: "X", Version: 1, DecisionKey: 10, DrgKey: 7},
			{DecisionId: "X", Version: 2, DecisionKey: 20, DrgKey: 7},
			{DecisionId: "X", Version: 3, DecisionKey: 30, DrgKey: 7},
		} {
			if err := state.StoreDecision(tx, d); err != nil {
				return err
			}
		}
		return nil
	}))

	deleteByKey := func(key int64) {
		require.NoError(t, store.Update(func(tx *kv.Transaction) error {
			rec, _, err := state.FindDecisionByKey(tx, key)
			require.NoError(t, err)
			return state.DeleteDecision(tx, rec)
		}))
	}
	assertLatestKey := func(expected int64) {
		require.NoError(t, store.View(func(tx *kv.Transaction) error {
			latest, found, err := state.FindLatestDecisionById(tx, "X")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, expected, latest.DecisionKey)
			return nil
		}))
	}

	deleteByKey(30)
	assertLatestKey(20)
	deleteByKey(10)
	assertLatestKey(20)
}

func TestFindDecisionsByDrgKeyOrderedByDecisionKey(t *testing.T) {
	store, state := openTestState(t)

	require.NoError(t, store.Update(func(tx *kv.Transaction) error {
		require.NoError(t, state.StoreDrg(tx, records.DrgRecord{DrgId: "D", DrgKey: 7, DrgVersion: 1}))
		for _, d := range []records.DecisionRecord{
			{DecisionId: "B", Version: 1, DecisionKey: 71, DrgKey: 7},
			{DecisionId: "A", Version: 1, DecisionKey: 70, DrgKey: 7},
		} {
			if err := state.StoreDecision(tx, d); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, store.View(func(tx *kv.Transaction) error {
		decisions, err := state.FindDecisionsByDrgKey(tx, 7)
		require.NoError(t, err)
		require.Len(t, decisions, 2)
		assert.Equal(t, int64(70), decisions[0].DecisionKey)
		assert.Equal(t, int64(71), decisions[1].DecisionKey)
		return nil
	}))
}

func TestStoreDecisionRejectsUnknownDrgForeignKey(t *testing.T) {
	store, state := openTestState(t)

	err := store.Update(func(tx *kv.Transaction) error {
		return state.StoreDecision(tx, records.DecisionRecord{DecisionId: "X", Version: 1, DecisionKey: 10, DrgKey: 999})
	})
	assert.ErrorIs(t, err, kv.ErrForeignKeyViolation)
}

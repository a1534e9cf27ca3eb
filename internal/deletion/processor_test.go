package deletion

import (
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbinitiative/resourced/internal/distribution"
	"github.com/pbinitiative/resourced/internal/kv"
	"github.com/pbinitiative/resourced/internal/logwriter"
	"github.com/pbinitiative/resourced/internal/records"
	"github.com/pbinitiative/resourced/internal/resourcestate"
)

type fakeKeys struct{ next int64 }

func (k *fakeKeys) Next() int64 {
	k.next++
	return k.next
}

type fakeInstanceChecker struct{ active map[int64]bool }

func (f *fakeInstanceChecker) HasActiveProcessInstances(processKey int64) bool {
	return f.active[processKey]
}

type ackedCommand struct {
	key                  int64
	originatingPartition uint32
}

type fakeDistributor struct {
	distributed []int64
	acked       []ackedCommand
}

func (f *fakeDistributor) DistributeCommand(key int64, command distribution.Command) error {
	f.distributed = append(f.distributed, key)
	return nil
}

func (f *fakeDistributor) AcknowledgeCommand(key int64, originatingPartition uint32) error {
	f.acked = append(f.acked, ackedCommand{key: key, originatingPartition: originatingPartition})
	return nil
}

type fakeAppender struct{ appended []logwriter.Record }

func (f *fakeAppender) Append(records []logwriter.Record) error {
	f.appended = append(f.appended, records...)
	return nil
}

type testHarness struct {
	store       *kv.Store
	resources   *resourcestate.ResourceState
	keys        *fakeKeys
	instances   *fakeInstanceChecker
	distributor *fakeDistributor
	appender    *fakeAppender
	processor   *Processor
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := kv.Open(path, hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	resources := resourcestate.New(hclog.NewNullLogger(), resourcestate.Config{})
	keys := &fakeKeys{}
	instances := &fakeInstanceChecker{active: make(map[int64]bool)}
	distributor := &fakeDistributor{}
	appender := &fakeAppender{}

	processor := NewProcessor(
		store,
		resources,
		logwriter.NewBuilder(1),
		appender,
		keys,
		instances,
		distributor,
		1,
		hclog.NewNullLogger(),
	)

	return &testHarness{
		store:       store,
		resources:   resources,
		keys:        keys,
		instances:   instances,
		distributor: distributor,
		appender:    appender,
		processor:   processor,
	}
}

func intents(records []logwriter.Record) []logwriter.Intent {
	out := make([]logwriter.Intent, len(records))
	for i, r := range records {
		out[i] = r.Intent
	}
	return out
}

func TestProcessNewCommandMissingResourceRejectsNotFound(t *testing.T) {
	h := newHarness(t)

	response, found, err := h.processor.ProcessNewCommand(records.DeleteResourceCommand{ResourceKey: 42}, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, logwriter.RecordTypeRejection, response.RecordType)

	require.Len(t, h.appender.appended, 2)
	assert.Equal(t, logwriter.IntentResourceDeletionDeleting, h.appender.appended[0].Intent)
	assert.Equal(t, logwriter.RecordTypeRejection, h.appender.appended[1].RecordType)
	assert.Equal(t, logwriter.RejectionNotFound, h.appender.appended[1].RejectionKind)
	assert.Empty(t, h.distributor.distributed)
}

func TestProcessNewCommandDeletesInactiveProcess(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Update(func(tx *kv.Transaction) error {
		return h.resources.StoreProcess(tx, records.ProcessRecord{
			BpmnProcessId: "p", Version: 1, Key: 42, ResourceName: "p.bpmn", Resource: []byte("xml"),
		})
	}))

	response, found, err := h.processor.ProcessNewCommand(records.DeleteResourceCommand{ResourceKey: 42}, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, logwriter.IntentResourceDeletionDeleting, response.Intent)

	gotIntents := intents(h.appender.appended)
	assert.Equal(t, []logwriter.Intent{
		logwriter.IntentResourceDeletionDeleting,
		logwriter.IntentProcessDeleting,
		logwriter.IntentProcessDeleted,
		logwriter.IntentResourceDeletionDeleted,
	}, gotIntents)
	assert.Equal(t, []int64{1}, h.distributor.distributed)

	require.NoError(t, h.store.View(func(tx *kv.Transaction) error {
		_, found, err := h.resources.GetProcessByKey(tx, 42)
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

func TestProcessNewCommandRejectsActiveProcessInstances(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Update(func(tx *kv.Transaction) error {
		return h.resources.StoreProcess(tx, records.ProcessRecord{
			BpmnProcessId: "p", Version: 1, Key: 42, ResourceName: "p.bpmn", Resource: []byte("xml"),
		})
	}))
	h.instances.active[42] = true

	response, found, err := h.processor.ProcessNewCommand(records.DeleteResourceCommand{ResourceKey: 42}, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, logwriter.RecordTypeRejection, response.RecordType)

	gotIntents := intents(h.appender.appended[:len(h.appender.appended)-1])
	assert.Equal(t, []logwriter.Intent{
		logwriter.IntentResourceDeletionDeleting,
		logwriter.IntentProcessDeleting,
	}, gotIntents)
	last := h.appender.appended[len(h.appender.appended)-1]
	assert.Equal(t, logwriter.RecordTypeRejection, last.RecordType)
	assert.Equal(t, logwriter.RejectionInvalidState, last.RejectionKind)
	assert.Empty(t, h.distributor.distributed)

	require.NoError(t, h.store.View(func(tx *kv.Transaction) error {
		_, found, err := h.resources.GetProcessByKey(tx, 42)
		require.NoError(t, err)
		assert.True(t, found)
		return nil
	}))
}

func TestProcessNewCommandDeletesDrgWithChildDecisionsBeforeDrg(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Update(func(tx *kv.Transaction) error {
		if err := h.resources.StoreDrg(tx, records.DrgRecord{DrgId: "d", DrgVersion: 1, DrgKey: 7, ResourceName: "d.dmn"}); err != nil {
			return err
		}
		if err := h.resources.StoreDecision(tx, records.DecisionRecord{DecisionId: "a", Version: 1, DecisionKey: 70, DrgKey: 7}); err != nil {
			return err
		}
		return h.resources.StoreDecision(tx, records.DecisionRecord{DecisionId: "b", Version: 1, DecisionKey: 71, DrgKey: 7})
	}))

	response, found, err := h.processor.ProcessNewCommand(records.DeleteResourceCommand{ResourceKey: 7}, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, logwriter.IntentResourceDeletionDeleting, response.Intent)

	gotIntents := intents(h.appender.appended)
	assert.Equal(t, []logwriter.Intent{
		logwriter.IntentResourceDeletionDeleting,
		logwriter.IntentDecisionDeleted,
		logwriter.IntentDecisionDeleted,
		logwriter.IntentDecisionRequirementsDeleted,
		logwriter.IntentResourceDeletionDeleted,
	}, gotIntents)

	require.NoError(t, h.store.View(func(tx *kv.Transaction) error {
		_, found, err := h.resources.FindDrgByKey(tx, 7)
		require.NoError(t, err)
		assert.False(t, found)
		decisions, err := h.resources.FindDecisionsByDrgKey(tx, 7)
		require.NoError(t, err)
		assert.Empty(t, decisions)
		return nil
	}))
}

func TestProcessDistributedCommandReusesKeyAndAcknowledges(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Update(func(tx *kv.Transaction) error {
		return h.resources.StoreProcess(tx, records.ProcessRecord{
			BpmnProcessId: "p", Version: 1, Key: 42, ResourceName: "p.bpmn", Resource: []byte("xml"),
		})
	}))

	response, found, err := h.processor.ProcessDistributedCommand(900, 3, records.DeleteResourceCommand{ResourceKey: 42}, 1)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, response)

	assert.Equal(t, []ackedCommand{{key: 900, originatingPartition: 3}}, h.distributor.acked)
	assert.Empty(t, h.distributor.distributed)

	for _, r := range h.appender.appended {
		if r.Intent == logwriter.IntentResourceDeletionDeleting || r.Intent == logwriter.IntentResourceDeletionDeleted {
			assert.Equal(t, int64(900), r.Key)
		}
	}
}

func TestProcessDistributedCommandRedeliveredAfterApplyIsSilentNoop(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Update(func(tx *kv.Transaction) error {
		return h.resources.StoreProcess(tx, records.ProcessRecord{
			BpmnProcessId: "p", Version: 1, Key: 42, ResourceName: "p.bpmn", Resource: []byte("xml"),
		})
	}))

	_, _, err := h.processor.ProcessDistributedCommand(900, 3, records.DeleteResourceCommand{ResourceKey: 42}, 1)
	require.NoError(t, err)
	firstAppendedCount := len(h.appender.appended)

	response, found, err := h.processor.ProcessDistributedCommand(900, 3, records.DeleteResourceCommand{ResourceKey: 42}, 2)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, response)

	assert.Equal(t, []ackedCommand{
		{key: 900, originatingPartition: 3},
		{key: 900, originatingPartition: 3},
	}, h.distributor.acked)

	for _, r := range h.appender.appended[firstAppendedCount:] {
		assert.NotEqual(t, logwriter.RecordTypeRejection, r.RecordType)
	}

	require.NoError(t, h.store.View(func(tx *kv.Transaction) error {
		_, found, err := h.resources.GetProcessByKey(tx, 42)
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

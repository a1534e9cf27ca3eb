package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hashicorp/go-hclog"

	clusterstate "github.com/pbinitiative/resourced/internal/cluster/state"
	"github.com/pbinitiative/resourced/internal/config"
	"github.com/pbinitiative/resourced/internal/deletion"
	"github.com/pbinitiative/resourced/internal/dispatch"
	"github.com/pbinitiative/resourced/internal/distribution"
	"github.com/pbinitiative/resourced/internal/kv"
	"github.com/pbinitiative/resourced/internal/log"
	"github.com/pbinitiative/resourced/internal/logwriter"
	"github.com/pbinitiative/resourced/internal/profile"
	"github.com/pbinitiative/resourced/internal/resourcestate"
	"github.com/pbinitiative/resourced/pkg/zenflake"
)

// logAppender stands in for the replicated log this partition commits its
// follow-up events and rejections to. The real implementation is the
// out-of-scope replicated log collaborator; this one only proves the seam
// works end to end by logging what would have been appended.
type logAppender struct {
	logger hclog.Logger
}

func (a logAppender) Append(records []logwriter.Record) error {
	for _, r := range records {
		a.logger.Debug("append", "key", r.Key, "recordType", r.RecordType, "intent", r.Intent)
	}
	return nil
}

// loopbackTransport stands in for the gRPC peer transport command
// distribution sends cross-partition traffic over. It never gets called on
// a single-partition cluster, since DistributeCommand fans out to every
// partition but its own.
type loopbackTransport struct {
	logger hclog.Logger
}

func (t loopbackTransport) SendCommand(partitionId uint32, commandKey int64, command distribution.Command) error {
	t.logger.Warn("no peer transport wired, dropping distributed command", "partition", partitionId, "key", commandKey)
	return nil
}

func (t loopbackTransport) SendAck(partitionId uint32, commandKey int64) error {
	t.logger.Warn("no peer transport wired, dropping ack", "partition", partitionId, "key", commandKey)
	return nil
}

// noInstancesRunning stands in for the element-instance state this core
// consults to decide whether a process can be removed. Out of scope here:
// this subsystem only owns process/decision/DRG definitions, not running
// instances of them.
type noInstancesRunning struct{}

func (noInstancesRunning) HasActiveProcessInstances(processKey int64) bool { return false }

func singleLeaderCluster(conf config.Config) *clusterstate.Cluster {
	partitions := make(map[uint32]clusterstate.Partition, conf.Cluster.Partitions)
	for id := uint32(1); id <= conf.Cluster.Partitions; id++ {
		partitions[id] = clusterstate.Partition{Id: id, LeaderId: conf.Cluster.NodeId}
	}
	return &clusterstate.Cluster{
		Config:     clusterstate.ClusterConfig{DesiredPartitions: conf.Cluster.Partitions},
		Partitions: partitions,
	}
}

func main() {
	profile.InitProfile()
	log.Init()

	_, ctxCancel := context.WithCancel(context.Background())

	conf := config.InitConfig()
	componentLogger := hclog.New(&hclog.LoggerOptions{Name: "resourced", Level: hclog.Info})

	dataDir := conf.Persistence.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Error("failed to create persistence data dir: %s", err)
		os.Exit(1)
	}
	store, err := kv.Open(filepath.Join(dataDir, fmt.Sprintf("partition-%d.db", conf.Cluster.PartitionId)), componentLogger)
	if err != nil {
		log.Error("failed to open resource state store: %s", err)
		os.Exit(1)
	}

	resources := resourcestate.New(componentLogger, resourcestate.Config{
		DecisionCacheSize: conf.Persistence.DecisionCacheSize,
		DrgCacheSize:      conf.Persistence.DrgCacheSize,
	})

	keys, err := zenflake.NewKeyGenerator(conf.Cluster.PartitionId)
	if err != nil {
		log.Error("failed to start key generator: %s", err)
		os.Exit(1)
	}

	writers := logwriter.NewBuilder(conf.Cluster.PartitionId)
	appender := logAppender{logger: componentLogger.Named("appender")}
	transport := loopbackTransport{logger: componentLogger.Named("transport")}
	distributor := distribution.NewDistributor(conf.Cluster.PartitionId, singleLeaderCluster(conf), transport, componentLogger)

	processor := deletion.NewProcessor(store, resources, writers, appender, keys, noInstancesRunning{}, distributor, conf.Cluster.PartitionId, componentLogger)
	// dispatcher.Dispatch is called per record read off the replicated log;
	// that read loop lives in the out-of-scope log consumer, so the
	// dispatcher is wired here and otherwise idle.
	_ = dispatch.NewDispatcher(processor, componentLogger)

	log.Infof(context.Background(), "partition %d ready on node %s", conf.Cluster.PartitionId, conf.Cluster.NodeId)

	appStop := make(chan os.Signal, 2)
	signal.Notify(appStop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	sig := <-appStop
	log.Infof(context.Background(), "received %s, shutting down", sig.String())

	ctxCancel()
	if err := store.Close(); err != nil {
		log.Error("failed to close resource state store: %s", err)
	}
	log.Sync()
}

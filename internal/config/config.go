package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server      Server      `yaml:"server" json:"server"` // configuration of the public API listener
	Name        string      `yaml:"name" json:"name"`     // used as an application identifier in logs
	Cluster     Cluster     `yaml:"cluster" json:"cluster"`
	Persistence Persistence `yaml:"persistence" json:"persistence"`
}

// Cluster carries the identity of this partition actor within the
// (out-of-scope) replicated log / consensus layer. The core only needs
// to know its own partition id and the full set of peer partitions to
// compute a deterministic distribution fan-out.
type Cluster struct {
	NodeId      string `yaml:"nodeId" json:"nodeId" env:"CLUSTER_NODE_ID"`
	PartitionId uint32 `yaml:"partitionId" json:"partitionId" env:"CLUSTER_PARTITION_ID" env-default:"1"`
	Partitions  uint32 `yaml:"partitions" json:"partitions" env:"CLUSTER_PARTITIONS" env-default:"1"`
}

type Server struct {
	Context string `yaml:"context" json:"context" env:"API_CONTEXT" env-default:"/"`
	Addr    string `yaml:"addr" json:"addr" env:"API_ADDR" env-default:":8080"`
}

// Persistence configures the embedded resource state store (C2) backing
// the column families described in the data model.
type Persistence struct {
	// DataDir is where the bbolt file backing the resource state store lives.
	DataDir string `yaml:"dataDir" json:"dataDir" env:"PERSISTENCE_DATA_DIR" env-default:"zenbpm_data"`
	// The larger of DecisionCacheSize and DrgCacheSize bounds each of the
	// read-through caches fronting the decision and DRG column families.
	DecisionCacheSize int `yaml:"decisionCacheSize" json:"decisionCacheSize" env:"PERSISTENCE_DECISION_CACHE_SIZE" env-default:"10000"`
	DrgCacheSize      int `yaml:"drgCacheSize" json:"drgCacheSize" env:"PERSISTENCE_DRG_CACHE_SIZE" env-default:"10000"`
}

func (c Config) defaults() Config {
	if c.Cluster.NodeId == "" {
		c.Cluster.NodeId = fmt.Sprintf("node-%d", c.Cluster.PartitionId)
	}
	if c.Cluster.Partitions == 0 {
		c.Cluster.Partitions = 1
	}
	return c
}

func InitConfig() Config {
	c := Config{}
	var fileName string
	confFile := os.Getenv("CONFIG_FILE")
	if confFile == "" {
		wd, err := os.Getwd()
		if err != nil {
			panic(err)
		}
		fileName = fmt.Sprintf("%s/conf.yaml", wd)
	} else {
		fileName = confFile
	}
	var err error
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(&c)
		fmt.Printf("Configuration file %s not found. Reading config from ENV.\n", fileName)
	} else {
		err = cleanenv.ReadConfig(fileName, &c)
	}
	if err != nil {
		fmt.Printf("Error occurred while reading the configuration: %s\n", err)
		panic(err)
	}
	return c.defaults()
}

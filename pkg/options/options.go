// Package options holds the run configuration tree: global dataset and
// clustering knobs plus per-split batching sub-trees. Files are YAML (JSON
// is accepted, being a YAML subset); values load on top of defaults and are
// validated before use.
package options

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
)

// SplitOptions configures batching for one split (training or test).
type SplitOptions struct {
	NumClusters      int `yaml:"num_clusters" json:"num_clusters" validate:"min=0"`
	MaxNodesPerBatch int `yaml:"max_nodes_per_batch" json:"max_nodes_per_batch" validate:"min=0"`
	ClustersPerBatch int `yaml:"clusters_per_batch" json:"clusters_per_batch" validate:"min=1"`
	MicroBatchSize   int `yaml:"micro_batch_size" json:"micro_batch_size" validate:"min=1"`

	Epochs                              int `yaml:"epochs" json:"epochs" validate:"min=0"`
	ExecutionsPerEpoch                  int `yaml:"executions_per_epoch" json:"executions_per_epoch" validate:"min=1"`
	EpochsPerExecution                  int `yaml:"epochs_per_execution" json:"epochs_per_execution" validate:"min=1"`
	GradientAccumulationStepsPerReplica int `yaml:"gradient_accumulation_steps_per_replica" json:"gradient_accumulation_steps_per_replica" validate:"min=1"`
	Replicas                            int `yaml:"replicas" json:"replicas" validate:"min=1"`

	Device                  string `yaml:"device" json:"device" validate:"oneof=cpu gpu ipu"`
	UseSparseRepresentation bool   `yaml:"use_sparse_representation" json:"use_sparse_representation"`
	DatasetPrefetchDepth    int    `yaml:"dataset_prefetch_depth" json:"dataset_prefetch_depth" validate:"min=1"`
}

// Options is the root configuration tree.
type Options struct {
	Name        string `yaml:"name" json:"name" validate:"required"`
	Seed        int64  `yaml:"seed" json:"seed"`
	DatasetName string `yaml:"dataset_name" json:"dataset_name" validate:"required"`
	DataPath    string `yaml:"data_path" json:"data_path"`
	CacheDir    string `yaml:"cache_dir" json:"cache_dir"`

	RegenerateClusteringCache bool `yaml:"regenerate_clustering_cache" json:"regenerate_clustering_cache"`
	SaveClusteringCache       bool `yaml:"save_clustering_cache" json:"save_clustering_cache"`
	RegenerateDatasetCache    bool `yaml:"regenerate_dataset_cache" json:"regenerate_dataset_cache"`
	SaveDatasetCache          bool `yaml:"save_dataset_cache" json:"save_dataset_cache"`

	InterClusterRatio             float64 `yaml:"inter_cluster_ratio" json:"inter_cluster_ratio" validate:"gte=0,lte=1"`
	MethodMaxNodes                string  `yaml:"method_max_nodes" json:"method_max_nodes" validate:"oneof=average average_plus_std upper_bound"`
	MethodMaxEdges                string  `yaml:"method_max_edges" json:"method_max_edges" validate:"oneof=average average_plus_std upper_bound"`
	ClusterNodeEdgeImbalanceRatio float64 `yaml:"cluster_node_edge_imbalance_ratio" json:"cluster_node_edge_imbalance_ratio" validate:"gte=0"`

	Training SplitOptions `yaml:"training" json:"training"`
	Test     SplitOptions `yaml:"test" json:"test"`
}

// Default returns the baseline configuration a run starts from.
func Default() *Options {
	split := SplitOptions{
		ClustersPerBatch:                    1,
		MicroBatchSize:                      1,
		ExecutionsPerEpoch:                  1,
		EpochsPerExecution:                  1,
		GradientAccumulationStepsPerReplica: 1,
		Replicas:                            1,
		Device:                              "cpu",
		DatasetPrefetchDepth:                2,
	}
	training := split
	training.Epochs = 1

	test := split
	// Evaluation runs the whole graph as a single cluster by default.
	test.NumClusters = 1

	return &Options{
		Name:              "cluster-gcn",
		Seed:              42,
		DatasetName:       "synthetic",
		CacheDir:          "cache",
		SaveClusteringCache: true,
		SaveDatasetCache:    true,
		InterClusterRatio: 0.0,
		MethodMaxNodes:    "average",
		MethodMaxEdges:    "upper_bound",
		Training:          training,
		Test:              test,
	}
}

// Load reads a YAML or JSON options file on top of the defaults.
func Load(path string) (*Options, error) {
	opts := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfiguration("reading options file %s: %v", path, err)
	}
	if err := yaml.Unmarshal(raw, opts); err != nil {
		return nil, apperrors.NewConfiguration("parsing options file %s: %v", path, err)
	}
	return opts, nil
}

// Validate checks field constraints and the cross-field rules the tags
// cannot express.
func (o *Options) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return apperrors.NewConfiguration("invalid options: %v", err)
	}
	for name, s := range map[string]SplitOptions{"training": o.Training, "test": o.Test} {
		if s.NumClusters > 0 && s.MaxNodesPerBatch > 0 {
			return apperrors.NewConfiguration(
				"%s: num_clusters and max_nodes_per_batch are mutually exclusive", name)
		}
		if s.NumClusters == 0 && s.MaxNodesPerBatch == 0 {
			return apperrors.NewConfiguration(
				"%s: one of num_clusters or max_nodes_per_batch must be set", name)
		}
	}
	return nil
}

// Merge applies dotted-path overrides onto a nested configuration tree.
// The key "training.epochs" with value 10 sets tree["training"]["epochs"];
// intermediate maps are created as needed and scalar leaves are replaced.
func Merge(tree map[string]interface{}, overrides map[string]interface{}) {
	for key, value := range overrides {
		parts := strings.Split(key, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]interface{})
			if !ok {
				child = map[string]interface{}{}
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
}

// Apply merges "key=value" assignments into the options. Values are parsed
// as YAML scalars, so numbers and booleans keep their type. Keys that do
// not name a known field are rejected.
func (o *Options) Apply(assignments []string) error {
	if len(assignments) == 0 {
		return nil
	}
	overrides := map[string]interface{}{}
	for _, a := range assignments {
		key, val, found := strings.Cut(a, "=")
		if !found || key == "" {
			return apperrors.NewConfiguration("override %q is not of the form key=value", a)
		}
		var parsed interface{}
		if err := yaml.Unmarshal([]byte(val), &parsed); err != nil {
			return apperrors.NewConfiguration("override %q: unparseable value: %v", a, err)
		}
		overrides[key] = parsed
	}

	raw, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("serializing options: %w", err)
	}
	tree := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("reparsing options: %w", err)
	}
	for key := range overrides {
		if !pathExists(tree, strings.Split(key, ".")) {
			return apperrors.NewConfiguration("unknown option %q", key)
		}
	}
	Merge(tree, overrides)

	merged, err := yaml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("serializing merged options: %w", err)
	}
	return yaml.Unmarshal(merged, o)
}

func pathExists(tree map[string]interface{}, parts []string) bool {
	node := tree
	for i, p := range parts {
		v, ok := node[p]
		if !ok {
			return false
		}
		if i == len(parts)-1 {
			return true
		}
		node, ok = v.(map[string]interface{})
		if !ok {
			return false
		}
	}
	return false
}

// Split returns the sub-options for the named split.
func (o *Options) Split(name string) (SplitOptions, error) {
	switch name {
	case "training":
		return o.Training, nil
	case "test":
		return o.Test, nil
	default:
		return SplitOptions{}, apperrors.NewConfiguration("unknown split %q", name)
	}
}

package batch

import (
	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
)

// ConfigSpec carries the user-facing batching parameters from which the
// derived schedule is computed. Zero values for the replication and
// execution knobs mean 1.
type ConfigSpec struct {
	MicroBatchSize   int `json:"micro_batch_size" yaml:"micro_batch_size"`
	NumClusters      int `json:"num_clusters" yaml:"num_clusters"`
	ClustersPerBatch int `json:"clusters_per_batch" yaml:"clusters_per_batch"`
	MaxNodesPerBatch int `json:"max_nodes_per_batch" yaml:"max_nodes_per_batch"`

	ExecutionsPerEpoch                   int `json:"executions_per_epoch" yaml:"executions_per_epoch"`
	EpochsPerExecution                   int `json:"epochs_per_execution" yaml:"epochs_per_execution"`
	GradientAccumulationStepsPerReplica  int `json:"gradient_accumulation_steps_per_replica" yaml:"gradient_accumulation_steps_per_replica"`
	NumReplicas                          int `json:"num_replicas" yaml:"num_replicas"`

	NumEpochs            int `json:"num_epochs" yaml:"num_epochs"`
	NumRealNodesPerEpoch int `json:"num_real_nodes_per_epoch" yaml:"num_real_nodes_per_epoch"`
}

// Config is the fully derived batching schedule. Every field is computed
// once by NewConfig; consumers treat it as immutable.
type Config struct {
	ConfigSpec

	// StepsPerEpoch is the number of optimizer steps covering all
	// clusters at least once, rounded up so it divides evenly across
	// replicas and gradient accumulation.
	StepsPerEpoch int `json:"steps_per_epoch"`

	// StepsPerExecution is the number of steps handed to the device per
	// execution of the compiled program.
	StepsPerExecution int `json:"steps_per_execution"`

	// ScaledNumEpochs is NumEpochs rounded up to a whole number of
	// executions.
	ScaledNumEpochs int `json:"scaled_num_epochs"`

	// NumNodesProcessedPerExecution counts node slots, real and padding,
	// consumed by one execution.
	NumNodesProcessedPerExecution int `json:"num_nodes_processed_per_execution"`

	// RealOverPaddedRatio measures how much of the per-epoch node budget
	// is real data rather than padding. Zero when the real node count is
	// unknown.
	RealOverPaddedRatio float64 `json:"real_over_padded_ratio"`
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func roundUpToMultiple(v, m int) int {
	if m <= 1 {
		return v
	}
	return ceilDiv(v, m) * m
}

// NewConfig validates the spec, fills defaults and derives the schedule.
func NewConfig(spec ConfigSpec) (*Config, error) {
	if spec.MicroBatchSize <= 0 {
		spec.MicroBatchSize = 1
	}
	if spec.ExecutionsPerEpoch <= 0 {
		spec.ExecutionsPerEpoch = 1
	}
	if spec.EpochsPerExecution <= 0 {
		spec.EpochsPerExecution = 1
	}
	if spec.GradientAccumulationStepsPerReplica <= 0 {
		spec.GradientAccumulationStepsPerReplica = 1
	}
	if spec.NumReplicas <= 0 {
		spec.NumReplicas = 1
	}

	if spec.NumClusters <= 0 {
		return nil, apperrors.NewConfiguration("num_clusters must be positive, got %d", spec.NumClusters)
	}
	if spec.ClustersPerBatch <= 0 {
		return nil, apperrors.NewConfiguration("clusters_per_batch must be positive, got %d", spec.ClustersPerBatch)
	}
	if spec.ClustersPerBatch > spec.NumClusters {
		return nil, apperrors.NewConfiguration(
			"clusters_per_batch %d exceeds num_clusters %d", spec.ClustersPerBatch, spec.NumClusters)
	}
	if spec.MaxNodesPerBatch <= 0 {
		return nil, apperrors.NewConfiguration("max_nodes_per_batch must be positive, got %d", spec.MaxNodesPerBatch)
	}
	if spec.NumEpochs < 0 {
		return nil, apperrors.NewConfiguration("num_epochs must not be negative, got %d", spec.NumEpochs)
	}
	if spec.ExecutionsPerEpoch > 1 && spec.EpochsPerExecution > 1 {
		return nil, apperrors.NewConfiguration(
			"executions_per_epoch and epochs_per_execution cannot both exceed 1")
	}

	cfg := &Config{ConfigSpec: spec}

	grain := spec.NumReplicas * spec.GradientAccumulationStepsPerReplica
	cfg.StepsPerEpoch = roundUpToMultiple(ceilDiv(spec.NumClusters, spec.ClustersPerBatch), grain)

	total := cfg.StepsPerEpoch * spec.EpochsPerExecution
	if total%spec.ExecutionsPerEpoch != 0 {
		return nil, apperrors.NewConfiguration(
			"steps_per_epoch %d is not divisible by executions_per_epoch %d",
			cfg.StepsPerEpoch, spec.ExecutionsPerEpoch)
	}
	cfg.StepsPerExecution = total / spec.ExecutionsPerEpoch

	cfg.ScaledNumEpochs = roundUpToMultiple(spec.NumEpochs, spec.EpochsPerExecution)

	cfg.NumNodesProcessedPerExecution = cfg.StepsPerExecution * spec.MicroBatchSize * spec.MaxNodesPerBatch

	if spec.NumRealNodesPerEpoch > 0 {
		padded := float64(spec.MaxNodesPerBatch * spec.MicroBatchSize * cfg.StepsPerEpoch)
		cfg.RealOverPaddedRatio = float64(spec.NumRealNodesPerEpoch) / padded
	}

	return cfg, nil
}

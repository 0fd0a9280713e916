// Package pipeline wires the pieces end to end: dataset loading, graph
// clustering, statistics, the batching schedule and the batch stream, all
// driven by one options tree. The training collaborator plugs in through
// the BatchConsumer interface.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clustergraph/cluster-gcn-pipeline/pkg/batch"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/clustering"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/dataset"
	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/options"
)

// BatchConsumer receives the assembled micro-batches. Implementations do
// the actual model work; the pipeline only guarantees delivery order and
// static shapes.
type BatchConsumer interface {
	Consume(ctx context.Context, step int, mb *batch.MicroBatch) error
}

// ConsumerFunc adapts a function to the BatchConsumer interface.
type ConsumerFunc func(ctx context.Context, step int, mb *batch.MicroBatch) error

func (f ConsumerFunc) Consume(ctx context.Context, step int, mb *batch.MicroBatch) error {
	return f(ctx, step, mb)
}

// RunInfo identifies one pipeline run.
type RunInfo struct {
	ID   string
	Name string
}

// newRunInfo builds the universal run name from the options plus a fresh
// uuid, mirroring how runs are labeled in experiment tracking.
func newRunInfo(opts *options.Options, split dataset.Split, s options.SplitOptions) RunInfo {
	form := batch.FormFor(s.Device, s.UseSparseRepresentation)
	dtype := batch.DTypeFor(s.Device, s.UseSparseRepresentation)
	return RunInfo{
		ID: uuid.NewString(),
		Name: fmt.Sprintf("%s-%s-%s-%s-%s-%s-%s",
			opts.Name, opts.DatasetName, split, s.Device, dtype, form,
			time.Now().UTC().Format("20060102T150405")),
	}
}

// Pipeline owns one configured run over one dataset.
type Pipeline struct {
	opts *options.Options
	log  *zap.Logger

	loader dataset.Loader
}

// New validates the options and prepares a pipeline. A nil loader selects
// the built-in source for the configured dataset: the file loader when
// data_path is set, the synthetic generator otherwise.
func New(opts *options.Options, loader dataset.Loader, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if loader == nil {
		loader = defaultLoader(opts, log)
	}
	if opts.CacheDir != "" {
		loader = &dataset.CachingLoader{
			Loader:     loader,
			Dir:        opts.CacheDir,
			Name:       opts.DatasetName,
			Regenerate: opts.RegenerateDatasetCache,
			Save:       opts.SaveDatasetCache,
			Log:        log,
		}
	}
	return &Pipeline{opts: opts, log: log, loader: loader}, nil
}

func defaultLoader(opts *options.Options, log *zap.Logger) dataset.Loader {
	if opts.DataPath != "" {
		return &dataset.FileLoader{Dir: opts.DataPath, Name: opts.DatasetName, Log: log}
	}
	return &dataset.Synthetic{Config: dataset.SyntheticConfig{
		NumCommunities:    4,
		NodesPerCommunity: 25,
		NumFeatures:       8,
		InterEdges:        20,
		Seed:              opts.Seed,
	}}
}

// Prepared bundles everything a split needs to stream batches.
type Prepared struct {
	Run        RunInfo
	Split      dataset.Split
	Dataset    *dataset.Dataset
	Clustering *clustering.Clustering
	Statistics *clustering.Statistics
	Schedule   *batch.Config
	Generator  *batch.Generator
}

// Prepare loads the dataset, clusters the split's visible subgraph,
// reports statistics and builds the batching schedule and generator.
func (p *Pipeline) Prepare(splitName string) (*Prepared, error) {
	split, err := dataset.ParseSplit(splitName)
	if err != nil {
		return nil, err
	}
	s, err := p.opts.Split(splitOptionsName(split))
	if err != nil {
		return nil, err
	}

	ds, err := p.loader.Load()
	if err != nil {
		return nil, err
	}

	methodNodes, err := clustering.ParsePaddingMethod(p.opts.MethodMaxNodes)
	if err != nil {
		return nil, err
	}
	methodEdges, err := clustering.ParsePaddingMethod(p.opts.MethodMaxEdges)
	if err != nil {
		return nil, err
	}

	visible := ds.VisibleNodes(split)
	clusterer, err := clustering.NewClusterer(ds.Graph, visible, clustering.Config{
		NumClusters:            s.NumClusters,
		MaxNodesPerBatch:       s.MaxNodesPerBatch,
		ClustersPerBatch:       s.ClustersPerBatch,
		DatasetName:            fmt.Sprintf("%s-%s", p.opts.DatasetName, split),
		CacheDir:               p.opts.CacheDir,
		RegenerateCache:        p.opts.RegenerateClusteringCache,
		SaveCache:              p.opts.SaveClusteringCache,
		InterClusterRatio:      p.opts.InterClusterRatio,
		MethodMaxNodes:         methodNodes,
		MethodMaxEdges:         methodEdges,
		NodeEdgeImbalanceRatio: p.opts.ClusterNodeEdgeImbalanceRatio,
		Seed:                   p.opts.Seed,
	}, p.log)
	if err != nil {
		return nil, err
	}
	cl, err := clusterer.ClusterGraph()
	if err != nil {
		return nil, err
	}

	stats := clustering.ComputeStatistics(ds.Graph, cl, cl.ClustersPerBatch)
	stats.Report(p.log)

	schedule, err := batch.NewConfig(batch.ConfigSpec{
		MicroBatchSize:                      s.MicroBatchSize,
		NumClusters:                         cl.NumClusters,
		ClustersPerBatch:                    cl.ClustersPerBatch,
		MaxNodesPerBatch:                    cl.MaxNodesPerBatch,
		ExecutionsPerEpoch:                  s.ExecutionsPerEpoch,
		EpochsPerExecution:                  s.EpochsPerExecution,
		GradientAccumulationStepsPerReplica: s.GradientAccumulationStepsPerReplica,
		NumReplicas:                         s.Replicas,
		NumEpochs:                           s.Epochs,
		NumRealNodesPerEpoch:                len(visible),
	})
	if err != nil {
		return nil, err
	}

	gen, err := batch.NewGenerator(ds.Graph, cl, ds.Features, ds.Labels, ds.Mask(split), batch.GeneratorConfig{
		ClustersPerBatch:  cl.ClustersPerBatch,
		MaxNodesPerBatch:  cl.MaxNodesPerBatch,
		MaxEdgesPerBatch:  cl.MaxEdgesPerBatch,
		MicroBatchSize:    s.MicroBatchSize,
		Form:              batch.FormFor(s.Device, s.UseSparseRepresentation),
		DType:             batch.DTypeFor(s.Device, s.UseSparseRepresentation),
		InterClusterRatio: p.opts.InterClusterRatio,
		Seed:              p.opts.Seed,
		PrefetchDepth:     s.DatasetPrefetchDepth,
	}, p.log)
	if err != nil {
		return nil, err
	}

	run := newRunInfo(p.opts, split, s)
	p.log.Info("pipeline prepared",
		zap.String("run_id", run.ID),
		zap.String("run_name", run.Name),
		zap.String("split", string(split)),
		zap.Int("num_clusters", cl.NumClusters),
		zap.Int("steps_per_epoch", schedule.StepsPerEpoch),
		zap.Int("scaled_num_epochs", schedule.ScaledNumEpochs))

	return &Prepared{
		Run:        run,
		Split:      split,
		Dataset:    ds,
		Clustering: cl,
		Statistics: stats,
		Schedule:   schedule,
		Generator:  gen,
	}, nil
}

// splitOptionsName maps dataset splits onto the two option sub-trees:
// validation evaluates with the test batching settings.
func splitOptionsName(s dataset.Split) string {
	if s == dataset.SplitTrain {
		return "training"
	}
	return "test"
}

// Steps is the total number of micro-batch steps the schedule prescribes
// for the prepared split: the full scaled run for training, one epoch for
// evaluation.
func (pr *Prepared) Steps() int {
	if pr.Split == dataset.SplitTrain {
		return pr.Schedule.StepsPerEpoch * pr.Schedule.ScaledNumEpochs
	}
	return pr.Schedule.StepsPerEpoch
}

// Run prepares the split and feeds its prescribed number of micro-batches
// to the consumer through the prefetching stream.
func (p *Pipeline) Run(ctx context.Context, splitName string, consumer BatchConsumer) (*Prepared, error) {
	pr, err := p.Prepare(splitName)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream := pr.Generator.Stream(ctx)
	steps := pr.Steps()
	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return pr, err
		}
		mb, ok := <-stream
		if !ok {
			if err := ctx.Err(); err != nil {
				return pr, err
			}
			return pr, apperrors.NewDataIntegrity("batch stream ended at step %d of %d", step, steps)
		}
		if err := consumer.Consume(ctx, step, mb); err != nil {
			return pr, fmt.Errorf("consumer failed at step %d: %w", step, err)
		}
	}

	p.log.Info("run complete",
		zap.String("run_id", pr.Run.ID),
		zap.String("split", string(pr.Split)),
		zap.Int("steps", steps))
	return pr, nil
}

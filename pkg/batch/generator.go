package batch

import (
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/clustergraph/cluster-gcn-pipeline/pkg/clustering"
	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/graph"
)

// GeneratorConfig controls batch assembly and the sampling schedule.
type GeneratorConfig struct {
	ClustersPerBatch int
	MaxNodesPerBatch int
	MaxEdgesPerBatch int
	MicroBatchSize   int

	Form  Form
	DType DType

	// InterClusterRatio caps the share of the edge budget spent on edges
	// crossing cluster boundaries.
	InterClusterRatio float64

	// Seed fixes the shuffle stream; the effective seed for epoch e is
	// Seed + e, so every epoch reshuffles while the whole run stays
	// reproducible.
	Seed int64

	// PrefetchDepth bounds the Stream channel. Zero means 1.
	PrefetchDepth int

	// DistributedWorkerCount/Index shard the batch sequence across
	// workers by index modulo count. Count zero means a single worker.
	DistributedWorkerCount int
	DistributedWorkerIndex int
}

// Generator produces the endless micro-batch stream for one split. It
// cycles epochs forever; the consumer decides when to stop using the
// schedule from Config. A Generator is not safe for concurrent use; Stream
// wraps it in a single producer goroutine.
type Generator struct {
	graph      *graph.Graph
	clusters   [][]int32
	assignment []int32
	features   *mat.Dense
	labels     []int32
	mask       []bool
	cfg        GeneratorConfig
	log        *zap.Logger

	epoch  int
	order  []int32
	cursor int
}

// NewGenerator validates the inputs against each other and prepares the
// first epoch's cluster order.
func NewGenerator(g *graph.Graph, cl *clustering.Clustering, features *mat.Dense, labels []int32, mask []bool, cfg GeneratorConfig, log *zap.Logger) (*Generator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MicroBatchSize <= 0 {
		cfg.MicroBatchSize = 1
	}
	if cfg.DistributedWorkerCount <= 0 {
		cfg.DistributedWorkerCount = 1
	}
	if cfg.ClustersPerBatch <= 0 {
		cfg.ClustersPerBatch = cl.ClustersPerBatch
	}
	if cfg.MaxNodesPerBatch <= 0 {
		cfg.MaxNodesPerBatch = cl.MaxNodesPerBatch
	}
	if cfg.MaxEdgesPerBatch <= 0 {
		cfg.MaxEdgesPerBatch = cl.MaxEdgesPerBatch
	}
	if cfg.Form == "" {
		cfg.Form = FormCOO
	}
	if _, err := ParseForm(string(cfg.Form)); err != nil {
		return nil, err
	}
	if cfg.DType == "" {
		cfg.DType = Float64
	}

	if cfg.ClustersPerBatch > cl.NumClusters {
		return nil, apperrors.NewConfiguration(
			"clusters_per_batch %d exceeds num_clusters %d", cfg.ClustersPerBatch, cl.NumClusters)
	}
	if cfg.InterClusterRatio < 0 || cfg.InterClusterRatio > 1 {
		return nil, apperrors.NewConfiguration(
			"inter_cluster_ratio must be within [0, 1], got %g", cfg.InterClusterRatio)
	}
	if cfg.DistributedWorkerIndex < 0 || cfg.DistributedWorkerIndex >= cfg.DistributedWorkerCount {
		return nil, apperrors.NewConfiguration(
			"distributed worker index %d out of range for %d workers",
			cfg.DistributedWorkerIndex, cfg.DistributedWorkerCount)
	}

	n := g.NumNodes
	rows, _ := features.Dims()
	if rows != n {
		return nil, apperrors.NewDataIntegrity(
			"feature matrix has %d rows, graph has %d nodes", rows, n)
	}
	if len(labels) != n {
		return nil, apperrors.NewDataIntegrity(
			"label array has %d entries, graph has %d nodes", len(labels), n)
	}
	if len(mask) != n {
		return nil, apperrors.NewDataIntegrity(
			"mask array has %d entries, graph has %d nodes", len(mask), n)
	}
	if len(cl.Assignment) != n {
		return nil, apperrors.NewDataIntegrity(
			"cluster assignment has %d entries, graph has %d nodes", len(cl.Assignment), n)
	}

	gen := &Generator{
		graph:      g,
		clusters:   cl.Clusters,
		assignment: cl.Assignment,
		features:   features,
		labels:     labels,
		mask:       mask,
		cfg:        cfg,
		log:        log,
	}
	if gen.BatchesPerEpoch() < cfg.DistributedWorkerCount {
		return nil, apperrors.NewConfiguration(
			"%d batches per epoch cannot feed %d workers",
			gen.BatchesPerEpoch(), cfg.DistributedWorkerCount)
	}
	gen.shuffle()
	return gen, nil
}

// BatchesPerEpoch is the global number of batches covering every cluster
// once, before worker sharding.
func (g *Generator) BatchesPerEpoch() int {
	return ceilDiv(len(g.clusters), g.cfg.ClustersPerBatch)
}

// WorkerBatchesPerEpoch counts the batches this worker owns per epoch.
func (g *Generator) WorkerBatchesPerEpoch() int {
	total := g.BatchesPerEpoch()
	count := g.cfg.DistributedWorkerCount
	owned := total / count
	if g.cfg.DistributedWorkerIndex < total%count {
		owned++
	}
	return owned
}

func (g *Generator) shuffle() {
	rng := rand.New(rand.NewSource(g.cfg.Seed + int64(g.epoch)))
	n := len(g.clusters)
	g.order = make([]int32, n)
	for i, v := range rng.Perm(n) {
		g.order[i] = int32(v)
	}
	g.cursor = 0
}

// Reset rewinds the generator to the start of epoch zero.
func (g *Generator) Reset() {
	g.epoch = 0
	g.shuffle()
}

// nextBatch emits the next batch owned by this worker, rolling over into a
// freshly shuffled epoch when the current one is exhausted.
func (g *Generator) nextBatch() *Batch {
	for {
		total := g.BatchesPerEpoch()
		if g.cursor >= total {
			g.epoch++
			g.shuffle()
			continue
		}
		idx := g.cursor
		g.cursor++
		if idx%g.cfg.DistributedWorkerCount != g.cfg.DistributedWorkerIndex {
			continue
		}
		lo := idx * g.cfg.ClustersPerBatch
		hi := lo + g.cfg.ClustersPerBatch
		if hi > len(g.order) {
			hi = len(g.order)
		}
		return g.assemble(g.order[lo:hi])
	}
}

// Next returns the next micro-batch. It never runs out; callers stop after
// the number of steps the schedule prescribes.
func (g *Generator) Next() *MicroBatch {
	mb := &MicroBatch{Batches: make([]*Batch, g.cfg.MicroBatchSize)}
	for i := range mb.Batches {
		mb.Batches[i] = g.nextBatch()
	}
	return mb
}

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clustergraph/cluster-gcn-pipeline/pkg/batch"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/dataset"
	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/options"
)

func testOptions(t *testing.T) *options.Options {
	t.Helper()
	o := options.Default()
	o.Name = "pipeline-test"
	o.CacheDir = t.TempDir()
	o.Training.NumClusters = 4
	o.Training.Epochs = 2
	require.NoError(t, o.Validate())
	return o
}

func TestPrepareTrainingSplit(t *testing.T) {
	p, err := New(testOptions(t), nil, nil)
	require.NoError(t, err)

	pr, err := p.Prepare("train")
	require.NoError(t, err)

	require.Equal(t, 4, pr.Clustering.NumClusters)
	require.Equal(t, 100, pr.Dataset.Graph.NumNodes)
	require.NotEmpty(t, pr.Run.ID)
	require.Contains(t, pr.Run.Name, "pipeline-test-synthetic-train")

	// Only training nodes are visible to the clusterer.
	visible := 0
	for _, c := range pr.Clustering.Assignment {
		if c >= 0 {
			visible++
		}
	}
	require.Equal(t, len(pr.Dataset.Splits[dataset.SplitTrain]), visible)

	require.Equal(t, pr.Schedule.StepsPerEpoch*pr.Schedule.ScaledNumEpochs, pr.Steps())
}

func TestPrepareTestSplitIsWholeGraph(t *testing.T) {
	p, err := New(testOptions(t), nil, nil)
	require.NoError(t, err)

	pr, err := p.Prepare("test")
	require.NoError(t, err)

	require.Equal(t, 1, pr.Clustering.NumClusters)
	require.Equal(t, pr.Dataset.Graph.NumNodes, pr.Clustering.NodeCounts[0])
	require.Equal(t, 1, pr.Steps())
	require.InDelta(t, 1.0, pr.Statistics.EdgeRetention, 1e-9)
}

func TestRunDeliversScheduledSteps(t *testing.T) {
	p, err := New(testOptions(t), nil, nil)
	require.NoError(t, err)

	var steps []int
	var nodeLens []int
	pr, err := p.Run(context.Background(), "train", ConsumerFunc(
		func(ctx context.Context, step int, mb *batch.MicroBatch) error {
			steps = append(steps, step)
			require.Len(t, mb.Batches, 1)
			nodeLens = append(nodeLens, len(mb.Batches[0].Nodes))
			return nil
		}))
	require.NoError(t, err)
	require.Len(t, steps, pr.Steps())
	require.Equal(t, 0, steps[0])
	require.Equal(t, pr.Steps()-1, steps[len(steps)-1])
	for _, l := range nodeLens {
		require.Equal(t, pr.Clustering.MaxNodesPerBatch, l)
	}
}

func TestRunStopsOnConsumerError(t *testing.T) {
	p, err := New(testOptions(t), nil, nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	calls := 0
	_, err = p.Run(context.Background(), "train", ConsumerFunc(
		func(ctx context.Context, step int, mb *batch.MicroBatch) error {
			calls++
			if calls == 2 {
				return boom
			}
			return nil
		}))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls)
}

func TestRunHonorsCancellation(t *testing.T) {
	p, err := New(testOptions(t), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = p.Run(ctx, "train", ConsumerFunc(
		func(ctx context.Context, step int, mb *batch.MicroBatch) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	o := testOptions(t)
	o.Training.MaxNodesPerBatch = 50 // conflicts with NumClusters
	_, err := New(o, nil, nil)
	require.Error(t, err)
	require.True(t, apperrors.IsConfiguration(err))
}

func TestPrepareRejectsUnknownSplit(t *testing.T) {
	p, err := New(testOptions(t), nil, nil)
	require.NoError(t, err)
	_, err = p.Prepare("holdout")
	require.Error(t, err)
	require.True(t, apperrors.IsConfiguration(err))
}

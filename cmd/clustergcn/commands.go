package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clustergraph/cluster-gcn-pipeline/pkg/batch"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/pipeline"
)

func newClusterCmd(flags *rootFlags) *cobra.Command {
	var split string
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Partition the dataset and persist the clustering cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, log, err := flags.load()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			p, err := pipeline.New(opts, nil, log)
			if err != nil {
				return err
			}
			pr, err := p.Prepare(split)
			if err != nil {
				return err
			}

			fmt.Printf("clustered %s/%s into %d clusters (edge cut %.1f)\n",
				opts.DatasetName, split, pr.Clustering.NumClusters, pr.Clustering.EdgeCut)
			fmt.Printf("max nodes per batch: %d, max edges per batch: %d\n",
				pr.Clustering.MaxNodesPerBatch, pr.Clustering.MaxEdgesPerBatch)
			return nil
		},
	}
	cmd.Flags().StringVar(&split, "split", "train", "dataset split to cluster")
	return cmd
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	var split string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report clustering balance and edge retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, log, err := flags.load()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			p, err := pipeline.New(opts, nil, log)
			if err != nil {
				return err
			}
			pr, err := p.Prepare(split)
			if err != nil {
				return err
			}
			s := pr.Statistics

			fmt.Printf("clusters: %d\n", s.NumClusters)
			fmt.Printf("edge retention: %.4f\n", s.EdgeRetention)
			fmt.Printf("cluster nodes: min %.0f max %.0f mean %.1f std %.1f\n",
				s.ClusterNodes.Min, s.ClusterNodes.Max, s.ClusterNodes.Mean, s.ClusterNodes.Std)
			fmt.Printf("cluster edges: min %.0f max %.0f mean %.1f std %.1f\n",
				s.ClusterEdges.Min, s.ClusterEdges.Max, s.ClusterEdges.Mean, s.ClusterEdges.Std)
			fmt.Printf("batch nodes:   min %.0f max %.0f mean %.1f std %.1f\n",
				s.BatchNodes.Min, s.BatchNodes.Max, s.BatchNodes.Mean, s.BatchNodes.Std)
			fmt.Printf("batch edges:   min %.0f max %.0f mean %.1f std %.1f\n",
				s.BatchEdges.Min, s.BatchEdges.Max, s.BatchEdges.Mean, s.BatchEdges.Std)
			return nil
		},
	}
	cmd.Flags().StringVar(&split, "split", "train", "dataset split to analyze")
	return cmd
}

func newBatchesCmd(flags *rootFlags) *cobra.Command {
	var (
		split string
		steps int
	)
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Stream batches through a dry-run consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, log, err := flags.load()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			p, err := pipeline.New(opts, nil, log)
			if err != nil {
				return err
			}

			totalReal, totalSlots := 0, 0
			consumer := pipeline.ConsumerFunc(
				func(ctx context.Context, step int, mb *batch.MicroBatch) error {
					if steps > 0 && step >= steps {
						return context.Canceled
					}
					for _, b := range mb.Batches {
						totalReal += b.NumRealNodes
						totalSlots += len(b.Nodes)
					}
					log.Debug("batch consumed",
						zap.Int("step", step),
						zap.Int("real_nodes", mb.Batches[0].NumRealNodes),
						zap.Int("real_edges", mb.Batches[0].NumRealEdges))
					return nil
				})

			pr, err := p.Run(cmd.Context(), split, consumer)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			ratio := 0.0
			if totalSlots > 0 {
				ratio = float64(totalReal) / float64(totalSlots)
			}
			fmt.Printf("run %s: %d node slots consumed, %.1f%% real\n",
				pr.Run.Name, totalSlots, 100*ratio)
			return nil
		},
	}
	cmd.Flags().StringVar(&split, "split", "train", "dataset split to stream")
	cmd.Flags().IntVar(&steps, "steps", 0, "stop after this many micro-batch steps (0 = full schedule)")
	return cmd
}

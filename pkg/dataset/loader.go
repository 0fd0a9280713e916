package dataset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/graph"
)

// Loader produces a validated dataset.
type Loader interface {
	Load() (*Dataset, error)
}

// FileLoader reads <name>.edges, <name>.features, <name>.labels and
// <name>.splits from a directory. Lines starting with '#' are comments.
//
//	edges:    "src dst" or "src dst weight", one edge per line
//	features: one whitespace-separated row per node
//	labels:   one class id per node, -1 for unlabeled
//	splits:   "node train|validation|test", one assignment per line
type FileLoader struct {
	Dir  string
	Name string
	Type graph.Type

	Log *zap.Logger
}

func (l *FileLoader) path(suffix string) string {
	return filepath.Join(l.Dir, l.Name+"."+suffix)
}

func (l *FileLoader) Load() (*Dataset, error) {
	log := l.Log
	if log == nil {
		log = zap.NewNop()
	}

	features, err := l.readFeatures()
	if err != nil {
		return nil, err
	}
	numNodes, _ := features.Dims()

	edges, weights, err := l.readEdges(numNodes)
	if err != nil {
		return nil, err
	}
	g, err := graph.New(numNodes, l.Type, edges, weights)
	if err != nil {
		return nil, err
	}

	labels, numClasses, err := l.readLabels(numNodes)
	if err != nil {
		return nil, err
	}
	splits, err := l.readSplits(numNodes)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Name:       l.Name,
		Graph:      g,
		Features:   features,
		Labels:     labels,
		NumClasses: numClasses,
		Splits:     splits,
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	log.Info("dataset loaded",
		zap.String("dataset", l.Name),
		zap.Int("num_nodes", numNodes),
		zap.Int("num_edges", g.NumEdges()),
		zap.Int("num_features", ds.NumFeatures()),
		zap.Int("num_classes", numClasses))
	return ds, nil
}

// scanLines feeds each non-comment, non-blank line of the file to fn with
// its 1-based line number.
func scanLines(path string, fn func(lineNo int, fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewDataIntegrity("opening %s: %v", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(lineNo, strings.Fields(line)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return apperrors.NewDataIntegrity("reading %s: %v", path, err)
	}
	return nil
}

func lineError(path string, lineNo int, format string, args ...interface{}) error {
	return apperrors.NewDataIntegrity("%s:%d: %s", path, lineNo, fmt.Sprintf(format, args...))
}

func (l *FileLoader) readFeatures() (*mat.Dense, error) {
	path := l.path("features")
	var rows [][]float64
	width := -1
	err := scanLines(path, func(lineNo int, fields []string) error {
		if width == -1 {
			width = len(fields)
		} else if len(fields) != width {
			return lineError(path, lineNo, "expected %d feature values, got %d", width, len(fields))
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return lineError(path, lineNo, "bad feature value %q", f)
			}
			row[i] = v
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewDataIntegrity("%s: no feature rows", path)
	}
	m := mat.NewDense(len(rows), width, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m, nil
}

func (l *FileLoader) readEdges(numNodes int) ([]graph.Edge, []float64, error) {
	path := l.path("edges")
	var edges []graph.Edge
	var weights []float64
	weighted := false
	err := scanLines(path, func(lineNo int, fields []string) error {
		if len(fields) != 2 && len(fields) != 3 {
			return lineError(path, lineNo, "expected 'src dst [weight]', got %d fields", len(fields))
		}
		src, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return lineError(path, lineNo, "bad source node %q", fields[0])
		}
		dst, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return lineError(path, lineNo, "bad target node %q", fields[1])
		}
		w := 1.0
		if len(fields) == 3 {
			weighted = true
			if w, err = strconv.ParseFloat(fields[2], 64); err != nil {
				return lineError(path, lineNo, "bad edge weight %q", fields[2])
			}
		}
		edges = append(edges, graph.Edge{Source: int32(src), Target: int32(dst)})
		weights = append(weights, w)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if !weighted {
		weights = nil
	}
	return edges, weights, nil
}

func (l *FileLoader) readLabels(numNodes int) ([]int32, int, error) {
	path := l.path("labels")
	labels := make([]int32, 0, numNodes)
	numClasses := 0
	err := scanLines(path, func(lineNo int, fields []string) error {
		if len(fields) != 1 {
			return lineError(path, lineNo, "expected one label, got %d fields", len(fields))
		}
		v, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil || v < -1 {
			return lineError(path, lineNo, "bad label %q", fields[0])
		}
		if int(v) >= numClasses {
			numClasses = int(v) + 1
		}
		labels = append(labels, int32(v))
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if len(labels) != numNodes {
		return nil, 0, apperrors.NewDataIntegrity(
			"%s: %d labels for %d nodes", path, len(labels), numNodes)
	}
	return labels, numClasses, nil
}

func (l *FileLoader) readSplits(numNodes int) (map[Split][]int32, error) {
	path := l.path("splits")
	splits := map[Split][]int32{}
	err := scanLines(path, func(lineNo int, fields []string) error {
		if len(fields) != 2 {
			return lineError(path, lineNo, "expected 'node split', got %d fields", len(fields))
		}
		node, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil || node < 0 || int(node) >= numNodes {
			return lineError(path, lineNo, "bad node id %q", fields[0])
		}
		split, err := ParseSplit(fields[1])
		if err != nil {
			return lineError(path, lineNo, "bad split name %q", fields[1])
		}
		splits[split] = append(splits[split], int32(node))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return splits, nil
}

// Package batch turns a clustering and its source graph into the stream of
// fixed-shape training batches that the model consumes: per epoch, clusters
// are reshuffled, sampled in groups, merged into an induced subgraph, and
// padded or truncated to static node/edge maxima.
package batch

import (
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
)

// Form selects how a batch's adjacency is expressed. The choice is made
// once at configuration time and propagated; it is never negotiated at
// runtime.
type Form string

const (
	// FormDense is a max_nodes x max_nodes dense matrix.
	FormDense Form = "dense"

	// FormCOO is a dynamic-length sparse coordinate list.
	FormCOO Form = "coo"

	// FormPaddedCOO is a coordinate list padded to max_edges with a
	// validity mask, for runtimes that require static shapes.
	FormPaddedCOO Form = "padded_coo"
)

// ParseForm validates an adjacency form name.
func ParseForm(s string) (Form, error) {
	switch Form(s) {
	case FormDense, FormCOO, FormPaddedCOO:
		return Form(s), nil
	default:
		return "", apperrors.NewConfiguration(
			"unknown adjacency form %q (want dense, coo or padded_coo)", s)
	}
}

// FormFor picks the adjacency form from the execution device and the
// sparse-representation flag: accelerators with static compilation need
// the padded form, hosts can use dynamic coordinates, and everything else
// falls back to dense.
func FormFor(device string, useSparseRepresentation bool) Form {
	if !useSparseRepresentation {
		return FormDense
	}
	if device == "ipu" {
		return FormPaddedCOO
	}
	return FormCOO
}

// DType selects the numeric precision of adjacency values and features.
type DType string

const (
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// DTypeFor picks the dtype for the device: accelerators run reduced
// precision, hosts keep full precision.
func DTypeFor(device string, useSparseRepresentation bool) DType {
	if device == "ipu" {
		return Float32
	}
	if useSparseRepresentation {
		return Float32
	}
	return Float64
}

// cast rounds a value through the configured precision.
func (d DType) cast(v float64) float64 {
	if d == Float32 {
		return float64(float32(v))
	}
	return v
}

// Adjacency is the tagged variant holding one of the three forms. Dense is
// set for FormDense; Rows/Cols/Values for the coordinate forms; EdgeMask
// only for FormPaddedCOO, marking which entries are real edges.
type Adjacency struct {
	Form  Form
	DType DType

	Dense *mat.Dense

	Rows     []int32
	Cols     []int32
	Values   []float64
	EdgeMask []bool
}

// Batch is one fixed-shape training sample. All per-node slices have
// exactly the configured max nodes per batch entries; padding slots carry
// zero features, label -1, node id -1 and a false mask entry.
type Batch struct {
	Adjacency *Adjacency
	Features  *mat.Dense
	Labels    []int32
	NodeMask  []bool
	Nodes     []int32 // original node id per slot, -1 for padding

	NumRealNodes int
	NumRealEdges int
}

// MicroBatch groups micro_batch_size batches, matching the innermost
// dimension the consumer expects.
type MicroBatch struct {
	Batches []*Batch
}

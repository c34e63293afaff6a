package molgraph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/graphmol/molnet/internal/features"
)

// Tensors materializes the batch as the model's input tensors:
//
//   - node features [NumNodes+1, stateDim]: atom features zero-padded on the
//     trailing dimension up to stateDim, plus one all-zero row at index
//     NumNodes targeted by the padding entries of the readout plan;
//   - edge features [NumEdges, BondFeaturesDim];
//   - edge indices [NumEdges, 2] int32, (source, target) pairs;
//   - pool indices [NumGraphs, MaxNodes, 1] int32;
//   - pool mask [NumGraphs, MaxNodes] bool.
//
// stateDim must be at least features.AtomFeaturesDim.
func (b *Batch) Tensors(stateDim int) []*tensors.Tensor {
	if stateDim < features.AtomFeaturesDim {
		exceptions.Panicf("molgraph: node state size %d is smaller than the atom feature dimension %d",
			stateDim, features.AtomFeaturesDim)
	}

	nodeFeatures := tensors.FromShape(shapes.Make(dtypes.Float32, b.NumNodes+1, stateDim))
	tensors.MutableFlatData(nodeFeatures, func(flat []float32) {
		for node := range b.NumNodes {
			src := b.NodeFeatures[node*features.AtomFeaturesDim : (node+1)*features.AtomFeaturesDim]
			copy(flat[node*stateDim:], src)
		}
	})

	edgeFeatures := tensors.FromShape(shapes.Make(dtypes.Float32, b.NumEdges, features.BondFeaturesDim))
	tensors.MutableFlatData(edgeFeatures, func(flat []float32) {
		copy(flat, b.EdgeFeatures)
	})

	edgeIndices := tensors.FromShape(shapes.Make(dtypes.Int32, b.NumEdges, 2))
	tensors.MutableFlatData(edgeIndices, func(flat []int32) {
		for edge, pair := range b.EdgeIndices {
			flat[2*edge] = pair[0]
			flat[2*edge+1] = pair[1]
		}
	})

	poolIndices := tensors.FromShape(shapes.Make(dtypes.Int32, b.NumGraphs, b.MaxNodes, 1))
	tensors.MutableFlatData(poolIndices, func(flat []int32) {
		copy(flat, b.PoolIndices)
	})

	poolMask := tensors.FromShape(shapes.Make(dtypes.Bool, b.NumGraphs, b.MaxNodes))
	tensors.MutableFlatData(poolMask, func(flat []bool) {
		copy(flat, b.PoolMask)
	})

	return []*tensors.Tensor{nodeFeatures, edgeFeatures, edgeIndices, poolIndices, poolMask}
}

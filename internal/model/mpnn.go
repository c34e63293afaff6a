package model

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/graphmol/molnet/internal/features"
	"github.com/graphmol/molnet/internal/molgraph"
)

// Hyperparameter keys of the MPNN, settable through the model's context (and
// from the command line via parameters config-strings).
const (
	// ParamMessageUnits is the node state dimension d. Atom features are
	// zero-padded up to it.
	ParamMessageUnits = "message_units"

	// ParamMessageSteps is the number of message-passing steps: information
	// from nodes at graph distance r arrives after r steps.
	ParamMessageSteps = "message_steps"

	// ParamAttentionHeads is the number of heads of the readout's
	// self-attention block.
	ParamAttentionHeads = "attention_heads"

	// ParamDenseUnits is the width of the classifier head's hidden layer.
	ParamDenseUnits = "dense_units"

	// ParamClassWeight0 and ParamClassWeight1 scale the loss of negative and
	// positive examples. The dataset skews positive, so the defaults
	// up-weight the negatives. Fixed constants, not derived from the data.
	ParamClassWeight0 = "class_weight_0"
	ParamClassWeight1 = "class_weight_1"
)

// MPNN is a message-passing neural network over molecule graphs: k steps of
// edge-conditioned message passing with a gated recurrent state update,
// followed by an attention readout and a dense classifier head.
type MPNN struct {
	ctx *context.Context
}

// Compile-time assert that MPNN implements Model.
var _ Model = (*MPNN)(nil)

// NewMPNN creates an MPNN with a fresh context, initialized with
// hyperparameters set to their defaults.
func NewMPNN() *MPNN {
	m := &MPNN{ctx: context.New()}
	m.ctx.RngStateReset()
	m.ctx.SetParams(map[string]any{
		"batch_size": 32,

		ParamMessageUnits:   64,
		ParamMessageSteps:   4,
		ParamAttentionHeads: 8,
		ParamDenseUnits:     512,

		ParamClassWeight0: 2.0,
		ParamClassWeight1: 0.5,

		optimizers.ParamOptimizer:    "adam",
		optimizers.ParamLearningRate: 5e-4,
		optimizers.ParamAdamEpsilon:  1e-7,
	})
	m.ctx = m.ctx.Checked(false)
	return m
}

func (m *MPNN) Context() *context.Context {
	return m.ctx
}

// StateDim returns the configured node state dimension, never below the raw
// atom feature dimension.
func (m *MPNN) StateDim() int {
	stateDim := context.GetParamOr(m.ctx, ParamMessageUnits, 64)
	if stateDim < features.AtomFeaturesDim {
		stateDim = features.AtomFeaturesDim
	}
	return stateDim
}

// CreateInputs implements Model.CreateInputs: it merges the graphs into one
// block-diagonal batch and materializes its tensors.
func (m *MPNN) CreateInputs(graphs []*molgraph.Graph) []*tensors.Tensor {
	return molgraph.Merge(graphs).Tensors(m.StateDim())
}

// CreateLabels implements Model.CreateLabels.
func (m *MPNN) CreateLabels(labels []float32) *tensors.Tensor {
	labelsT := tensors.FromShape(shapes.Make(dtypes.Float32, len(labels), 1))
	tensors.MutableFlatData(labelsT, func(flat []float32) {
		copy(flat, labels)
	})
	return labelsT
}

// ForwardGraph implements Model.ForwardGraph. Inputs are the five tensors of
// molgraph.Batch.Tensors; the result is one logit per graph, shaped
// [numGraphs, 1].
func (m *MPNN) ForwardGraph(ctx *context.Context, inputs []*Node) *Node {
	nodeFeatures, edgeFeatures, edgeIndices := inputs[0], inputs[1], inputs[2]
	poolIndices, poolMask := inputs[3], inputs[4]

	states := m.messagePassingGraph(ctx.In("message_passing"), nodeFeatures, edgeFeatures, edgeIndices)
	pooled := m.readoutGraph(ctx.In("readout"), states, poolIndices, poolMask)

	// Classifier head.
	hidden := activations.Relu(layers.Dense(ctx.In("dense"), pooled, true,
		context.GetParamOr(ctx, ParamDenseUnits, 512)))
	logits := layers.Dense(ctx.In("logits"), hidden, true, 1)
	logits.AssertDims(poolMask.Shape().Dim(0), 1)
	return logits
}

// messagePassingGraph runs the configured number of synchronous message
// passing steps over the merged batch graph.
//
// Per step, each edge projects its feature vector to a d×d matrix (a
// hypernetwork shared across edges), multiplies it with the target node's
// state, and the resulting messages are sum-aggregated by source node. A GRU
// cell, shared across steps, folds the aggregate into the node state. The
// self-loop edges guarantee every node aggregates at least one message.
func (m *MPNN) messagePassingGraph(ctx *context.Context, states, edgeFeatures, edgeIndices *Node) *Node {
	g := states.Graph()
	stateDim := states.Shape().Dim(-1)
	numSteps := context.GetParamOr(ctx, ParamMessageSteps, 4)

	srcIndices := Slice(edgeIndices, AxisRange(), AxisElem(0))
	dstIndices := Slice(edgeIndices, AxisRange(), AxisElem(1))

	// One d×d transform per edge, conditioned on its features. The projection
	// weights are shared across steps.
	transforms := layers.Dense(ctx.In("edge_network"), edgeFeatures, true, stateDim*stateDim)
	transforms = Reshape(transforms, -1, stateDim, stateDim)

	// The GRU weights are shared across steps: same context scope every time.
	for range numSteps {
		// Messages flow from the target of each directed edge to its source.
		neighborStates := Gather(states, dstIndices)
		messages := Einsum("eij,ej->ei", transforms, neighborStates)

		// Sum-aggregate messages per source node. Nodes without incoming
		// edges (only the padding row) stay zero.
		aggregated := ScatterSum(Zeros(g, states.Shape()), srcIndices, messages, false, false)

		states = gruCellGraph(ctx.In("gru"), aggregated, states)
	}
	return states
}

// gruCellGraph applies a gated recurrent unit cell: input is the aggregated
// message, hidden state is the previous node state. Variables live in ctx, so
// repeated calls with the same scope share weights.
func gruCellGraph(ctx *context.Context, input, hidden *Node) *Node {
	stateDim := hidden.Shape().Dim(-1)
	both := Concatenate([]*Node{input, hidden}, -1)
	update := Sigmoid(layers.Dense(ctx.In("update_gate"), both, true, stateDim))
	reset := Sigmoid(layers.Dense(ctx.In("reset_gate"), both, true, stateDim))
	candidate := Tanh(layers.Dense(ctx.In("candidate"),
		Concatenate([]*Node{input, Mul(reset, hidden)}, -1), true, stateDim))
	// h' = (1-z)*h + z*ĥ
	return Add(Mul(hidden, AddScalar(Neg(update), 1)), Mul(update, candidate))
}

// readoutGraph converts the per-node states of the merged batch back into one
// fixed-size vector per graph: partition-and-pad via the readout plan, a
// pre-normalization transformer block with the padded positions masked out of
// the attention, and a masked mean pool over the node axis.
func (m *MPNN) readoutGraph(ctx *context.Context, states, poolIndices, poolMask *Node) *Node {
	numHeads := context.GetParamOr(ctx, ParamAttentionHeads, 8)
	stateDim := states.Shape().Dim(-1)
	numGraphs := poolMask.Shape().Dim(0)
	maxNodes := poolMask.Shape().Dim(1)

	// Partition-and-pad: gather each graph's nodes into [numGraphs, maxNodes,
	// stateDim]; padding entries of the plan point at the zero row.
	perGraph := Gather(states, poolIndices)
	perGraph.AssertDims(numGraphs, maxNodes, stateDim)

	// Pre-norm self-attention sublayer with residual.
	normed := layers.LayerNormalization(ctx.In("attention_norm"), perGraph, -1).Done()
	attended := layers.MultiHeadAttention(ctx.In("attention"), normed, normed, normed,
		numHeads, stateDim/numHeads).
		SetKeyMask(poolMask).
		SetQueryMask(poolMask).
		SetOutputDim(stateDim).
		Done()
	perGraph = Add(perGraph, attended)

	// Pre-norm feed-forward sublayer with residual.
	normed = layers.LayerNormalization(ctx.In("ffn_norm"), perGraph, -1).Done()
	ffn := layers.Dense(ctx.In("ffn_hidden"), normed, true, stateDim)
	ffn = layers.Dense(ctx.In("ffn_out"), activations.Relu(ffn), true, stateDim)
	perGraph = Add(perGraph, ffn)

	// Masked mean pool over the node axis.
	maskF := ConvertDType(poolMask, dtypes.Float32)
	maskF = ExpandAxes(maskF, -1)
	summed := ReduceSum(Mul(perGraph, maskF), 1)
	counts := ReduceSum(maskF, 1)
	pooled := Div(summed, counts)
	pooled.AssertDims(numGraphs, stateDim)
	return pooled
}

// LossGraph implements Model.LossGraph: class-weighted binary cross-entropy
// on the logits, in the numerically stable formulation
// max(x,0) - x*y + log(1+exp(-|x|)).
func (m *MPNN) LossGraph(ctx *context.Context, inputs []*Node, labels *Node) *Node {
	logits := m.ForwardGraph(ctx, inputs)
	g := logits.Graph()

	zero := ScalarZero(g, dtypes.Float32)
	bce := Add(
		Sub(Max(logits, zero), Mul(logits, labels)),
		Log1P(Exp(Neg(Abs(logits)))))

	weight0 := Scalar(g, dtypes.Float32, context.GetParamOr(ctx, ParamClassWeight0, 2.0))
	weight1 := Scalar(g, dtypes.Float32, context.GetParamOr(ctx, ParamClassWeight1, 0.5))
	weights := Where(GreaterThan(labels, ScalarZero(g, dtypes.Float32)), weight1, weight0)
	return ReduceAllMean(Mul(bce, weights))
}

// Package model implements the message-passing neural network that predicts
// molecular properties from merged molecule graphs, and the Predictor that
// trains and runs it.
package model

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"

	"github.com/graphmol/molnet/internal/molgraph"
)

// Model is a GoMLX graph model over batches of molecule graphs.
type Model interface {
	// Context used by the model: both its weights and hyperparameters.
	Context() *context.Context

	// CreateInputs converts a batch of graphs into the model's input tensors.
	CreateInputs(graphs []*molgraph.Graph) []*tensors.Tensor

	// CreateLabels converts the per-graph binary labels into a tensor shaped
	// [batch_size, 1].
	CreateLabels(labels []float32) *tensors.Tensor

	// ForwardGraph builds the forward path. It returns one logit per graph,
	// shaped [batch_size, 1].
	ForwardGraph(ctx *context.Context, inputs []*graph.Node) *graph.Node

	// LossGraph builds the training loss given inputs and labels
	// (shaped [batch_size, 1]). It returns a scalar.
	LossGraph(ctx *context.Context, inputs []*graph.Node, labels *graph.Node) *graph.Node
}

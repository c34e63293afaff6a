package model

import (
	"fmt"
	"sync"

	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/graphmol/molnet/internal/molgraph"
	"github.com/graphmol/molnet/internal/parameters"
)

// Backend is a singleton, shared by every Predictor of the process.
var backend = sync.OnceValue(func() backends.Backend { return backends.New() })

// Predictor wraps a Model with the executors needed to train it and run
// inference, plus optional checkpointing of its weights.
type Predictor struct {
	model Model

	// Executors.
	predictExec, lossExec, trainStepExec *context.Exec

	// checkpoint handler, if the model is being saved/loaded to/from disk.
	checkpoint *checkpoints.Handler

	// Hyperparameters cached values: they are also set in the model context.
	batchSize int

	// muLearning is held for "write" by Learn and for "read" by Predict/Loss.
	muLearning sync.RWMutex

	// optimizer used by the train step.
	optimizer optimizers.Interface
}

// NewPredictor creates a Predictor for the model.
//
// If checkpointDir is not empty, weights are loaded from it when present and
// Save writes back to it. params overwrite the model context's
// hyperparameters; unknown keys are an error.
func NewPredictor(model Model, checkpointDir string, params parameters.Params) (*Predictor, error) {
	p := &Predictor{model: model}
	ctx := model.Context()

	keep, err := parameters.PopParamOr(params, "keep", 10)
	if err != nil {
		return nil, err
	}
	if checkpointDir != "" {
		p.checkpoint, err = checkpoints.Build(ctx).
			Dir(checkpointDir).
			Keep(keep).
			Immediate().
			Done()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to build checkpoint in %q", checkpointDir)
		}
	}

	// Overwrite hyperparameters from the given params, and make sure nothing
	// unknown was silently ignored.
	if err = parameters.ApplyToContext(params, ctx); err != nil {
		return nil, err
	}
	p.batchSize = context.GetParamOr(ctx, "batch_size", 32)

	p.optimizer = optimizers.FromContext(ctx)

	p.predictExec = context.NewExec(backend(), ctx,
		func(ctx *context.Context, inputs []*graph.Node) *graph.Node {
			ctx = ctx.Checked(false)
			logits := p.model.ForwardGraph(ctx, inputs)
			// Probabilities, with the last axis (dimension 1) dropped.
			return graph.Squeeze(graph.Sigmoid(logits), -1)
		})
	p.lossExec = context.NewExec(backend(), ctx,
		func(ctx *context.Context, inputsAndLabels []*graph.Node) *graph.Node {
			inputs := inputsAndLabels[:len(inputsAndLabels)-1]
			labels := inputsAndLabels[len(inputsAndLabels)-1]
			return p.model.LossGraph(ctx, inputs, labels)
		})
	p.trainStepExec = context.NewExec(backend(), ctx,
		func(ctx *context.Context, inputsAndLabels []*graph.Node) *graph.Node {
			inputs := inputsAndLabels[:len(inputsAndLabels)-1]
			labels := inputsAndLabels[len(inputsAndLabels)-1]
			g := labels.Graph()
			ctx.SetTraining(g, true)
			loss := p.model.LossGraph(ctx, inputs, labels)
			p.optimizer.UpdateGraph(ctx, g, loss)
			train.ExecPerStepUpdateGraphFn(ctx, g)
			return loss
		})
	return p, nil
}

// String implements fmt.Stringer.
func (p *Predictor) String() string {
	if p == nil {
		return "<nil>[MPNN]"
	}
	if p.checkpoint == nil {
		return "MPNN[GoMLX]"
	}
	return fmt.Sprintf("MPNN[GoMLX]@%s", p.checkpoint.Dir())
}

// Predict returns the predicted probability, in [0, 1], for each graph of the
// batch.
func (p *Predictor) Predict(graphs []*molgraph.Graph) []float32 {
	inputs := p.model.CreateInputs(graphs)

	p.muLearning.RLock()
	defer p.muLearning.RUnlock()
	probsT := p.predictExec.Call(donate(inputs)...)[0]
	return tensors.CopyFlatData[float32](probsT)
}

// Learn runs one training step on the batch and returns its loss.
func (p *Predictor) Learn(graphs []*molgraph.Graph, labels []float32) (loss float32) {
	p.muLearning.Lock()
	defer p.muLearning.Unlock()
	lossT := p.trainStepExec.Call(p.createInputsAndLabels(graphs, labels)...)[0]
	return tensors.ToScalar[float32](lossT)
}

// Loss evaluates the training loss on the batch, without updating weights.
func (p *Predictor) Loss(graphs []*molgraph.Graph, labels []float32) (loss float32) {
	p.muLearning.RLock()
	defer p.muLearning.RUnlock()
	lossT := p.lossExec.Call(p.createInputsAndLabels(graphs, labels)...)[0]
	return tensors.ToScalar[float32](lossT)
}

func (p *Predictor) createInputsAndLabels(graphs []*molgraph.Graph, labels []float32) []any {
	inputs := p.model.CreateInputs(graphs)
	inputs = append(inputs, p.model.CreateLabels(labels))
	return donate(inputs)
}

// donate hands the tensors' buffers over to the backend: they are consumed by
// the execution and must not be reused.
func donate(inputs []*tensors.Tensor) []any {
	donated := make([]any, len(inputs))
	for ii, t := range inputs {
		donated[ii] = graph.DonateTensorBuffer(t, backend())
	}
	return donated
}

// Save writes the current weights to the checkpoint directory.
func (p *Predictor) Save() error {
	if p.checkpoint == nil {
		klog.Warning("Predictor is not associated to a checkpoint directory, not saving")
		return nil
	}
	return p.checkpoint.Save()
}

// BatchSize returns the configured training batch size.
func (p *Predictor) BatchSize() int {
	return p.batchSize
}

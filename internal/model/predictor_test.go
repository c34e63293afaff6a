package model

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/require"

	"github.com/graphmol/molnet/internal/parameters"
)

func TestPredictor(t *testing.T) {
	m := NewMPNN()
	p, err := NewPredictor(m, "", parameters.NewFromConfigString(""))
	require.NoError(t, err)
	require.Equal(t, 32, p.BatchSize())

	graphs := graphsFromSMILES(t, "CCO", "c1ccccc1", "CC(=O)O")
	labels := []float32{1, 0, 1}

	probabilities := p.Predict(graphs)
	require.Len(t, probabilities, 3)
	for ii, prob := range probabilities {
		require.GreaterOrEqualf(t, prob, float32(0), "probability of graph %d", ii)
		require.LessOrEqualf(t, prob, float32(1), "probability of graph %d", ii)
	}

	// Repeated training steps on a fixed batch must drive its loss down.
	lossBefore := p.Loss(graphs, labels)
	require.False(t, math32.IsNaN(lossBefore))
	for range 30 {
		loss := p.Learn(graphs, labels)
		require.False(t, math32.IsNaN(loss))
	}
	lossAfter := p.Loss(graphs, labels)
	require.Less(t, lossAfter, lossBefore)
}

func TestPredictorUnknownHyperparameter(t *testing.T) {
	_, err := NewPredictor(NewMPNN(), "", parameters.NewFromConfigString("message_stps=6"))
	require.Error(t, err)
}

package dataset

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCSV = `num,name,p_np,smiles
1,Propanol,1,CCCO
2,Benzene,1,c1ccccc1
3,Acetate,0,CC(=O)[O-]
4,Broken,0,C1CC
`

func TestRead(t *testing.T) {
	records, err := Read(strings.NewReader(testCSV))
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, Record{Name: "Propanol", SMILES: "CCCO", Label: 1}, records[0])
	require.Equal(t, Record{Name: "Acetate", SMILES: "CC(=O)[O-]", Label: 0}, records[2])
}

func TestReadHeaderOrderIndependent(t *testing.T) {
	records, err := Read(strings.NewReader("smiles,p_np,name\nCCO,1,Ethanol\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, Record{Name: "Ethanol", SMILES: "CCO", Label: 1}, records[0])
}

func TestReadErrors(t *testing.T) {
	// Missing p_np column.
	_, err := Read(strings.NewReader("name,smiles\nEthanol,CCO\n"))
	require.Error(t, err)

	// Unparseable label.
	_, err = Read(strings.NewReader("name,p_np,smiles\nEthanol,yes,CCO\n"))
	require.Error(t, err)
}

func TestReadSkipsShortRows(t *testing.T) {
	records, err := Read(strings.NewReader("name,p_np,smiles\nEthanol,1,CCO\nShorty\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestFeaturize(t *testing.T) {
	records, err := Read(strings.NewReader(testCSV))
	require.NoError(t, err)

	// "Broken" has an unclosed ring and must be dropped, the rest kept in
	// order.
	examples := Featurize(records, 4)
	require.Len(t, examples, 3)
	require.Equal(t, "Propanol", examples[0].Name)
	require.Equal(t, "Benzene", examples[1].Name)
	require.Equal(t, "Acetate", examples[2].Name)
	require.Equal(t, 4, examples[0].Graph.NumNodes)
	require.Equal(t, 6, examples[1].Graph.NumNodes)
}

func makeExamples(n int) []Example {
	examples := make([]Example, n)
	for ii := range examples {
		examples[ii].Name = string(rune('A' + ii))
		examples[ii].Label = float32(ii % 2)
	}
	return examples
}

func TestSplit(t *testing.T) {
	examples := makeExamples(100)
	train, valid, test := Split(rand.New(rand.NewSource(1)), examples, 0.8, 0.19)
	require.Len(t, train, 80)
	require.Len(t, valid, 19)
	require.Len(t, test, 1)

	// No example lost or duplicated.
	seen := make(map[string]bool)
	for _, part := range [][]Example{train, valid, test} {
		for _, example := range part {
			require.False(t, seen[example.Name])
			seen[example.Name] = true
		}
	}
	require.Len(t, seen, 100)

	// Same seed, same split.
	train2, _, _ := Split(rand.New(rand.NewSource(1)), examples, 0.8, 0.19)
	require.Equal(t, train, train2)
}

func TestBatches(t *testing.T) {
	examples := makeExamples(10)
	rng := rand.New(rand.NewSource(7))

	var batchSizes []int
	labelSum := float32(0)
	for graphs, labels := range Batches(rng, examples, 4) {
		require.Equal(t, len(graphs), len(labels))
		batchSizes = append(batchSizes, len(labels))
		for _, label := range labels {
			labelSum += label
		}
	}
	require.Equal(t, []int{4, 4, 2}, batchSizes)
	require.Equal(t, float32(5), labelSum)
}

func TestGraphsAndLabels(t *testing.T) {
	examples := makeExamples(3)
	graphs, labels := GraphsAndLabels(examples)
	require.Len(t, graphs, 3)
	require.Equal(t, []float32{0, 1, 0}, labels)
}

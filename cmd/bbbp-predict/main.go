// bbbp-predict loads a trained checkpoint and predicts the blood-brain
// barrier permeability of molecules, given as SMILES strings on the command
// line or as a dataset-format CSV file.
//
// Usage:
//
//	bbbp-predict -model <dir> "CN1C=NC2=C1C(=O)N(C(=O)N2C)C" ...
//	bbbp-predict -model <dir> -csv molecules.csv
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/graphmol/molnet/internal/dataset"
	"github.com/graphmol/molnet/internal/model"
	"github.com/graphmol/molnet/internal/parameters"
	"github.com/graphmol/molnet/internal/ui/cli"
)

var (
	flagModelDir = flag.String("model", "", "Directory with the trained model checkpoint. Required.")
	flagCSV      = flag.String("csv", "", "CSV file with name/smiles/p_np columns to predict on. "+
		"If set, the true labels are printed alongside the predictions.")
	flagConfig = flag.String("config", "", "Comma-separated list of hyperparameter assignments. "+
		"Must match the values the checkpoint was trained with.")
	flagColor = flag.Bool("color", true, "Colorize the report.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagModelDir == "" {
		fmt.Fprintln(os.Stderr, "Flag -model is required: it points to the trained checkpoint.")
		flag.Usage()
		os.Exit(1)
	}
	if *flagCSV == "" && flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to predict: pass SMILES strings as arguments or a -csv file.")
		flag.Usage()
		os.Exit(1)
	}

	examples, withLabels := collectExamples()
	if len(examples) == 0 {
		klog.Exit("No parseable molecules to predict on.")
	}

	mpnn := model.NewMPNN()
	params := parameters.NewFromConfigString(*flagConfig)
	predictor := must.M1(model.NewPredictor(mpnn, *flagModelDir, params))

	graphs, _ := dataset.GraphsAndLabels(examples)
	batchSize := predictor.BatchSize()
	probabilities := make([]float32, 0, len(graphs))
	for start := 0; start < len(graphs); start += batchSize {
		end := min(start+batchSize, len(graphs))
		probabilities = append(probabilities, predictor.Predict(graphs[start:end])...)
	}

	cli.New(*flagColor).Predictions(examples, probabilities, withLabels)
}

// collectExamples featurizes the molecules from the -csv file or the
// command-line SMILES arguments. Unparseable SMILES are dropped with a
// warning.
func collectExamples() (examples []dataset.Example, withLabels bool) {
	if *flagCSV != "" {
		records := must.M1(dataset.Load(*flagCSV))
		return dataset.Featurize(records, runtime.NumCPU()), true
	}
	records := make([]dataset.Record, flag.NArg())
	for ii, smiles := range flag.Args() {
		records[ii] = dataset.Record{Name: smiles, SMILES: smiles}
	}
	return dataset.Featurize(records, runtime.NumCPU()), false
}

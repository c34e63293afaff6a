// bbbp-train trains the MPNN blood-brain barrier permeability classifier on
// the BBBP dataset, reporting per-epoch metrics and checkpointing the weights
// whenever the validation ROC-AUC improves.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/graphmol/molnet/internal/dataset"
	"github.com/graphmol/molnet/internal/eval"
	"github.com/graphmol/molnet/internal/model"
	"github.com/graphmol/molnet/internal/parameters"
	"github.com/graphmol/molnet/internal/ui/cli"
	"github.com/graphmol/molnet/internal/ui/interrupt"
)

// Flags
var (
	flagDataDir  = flag.String("data", "data", "Directory where the BBBP dataset CSV is cached.")
	flagModelDir = flag.String("model", "", "Directory to save checkpoints to, and load them from if present. "+
		"If empty the model is not saved.")
	flagEpochs = flag.Int("epochs", 40, "Number of training epochs.")
	flagSeed   = flag.Int64("seed", 42, "Seed of the dataset shuffling: fixes the train/validation/test split.")
	flagConfig = flag.String("config", "", "Comma-separated list of hyperparameter assignments, "+
		"e.g. \"message_steps=6,learning_rate=1e-4\". Keys must match the model's hyperparameters.")
	flagParallelism = flag.Int("parallelism", runtime.NumCPU(), "Number of SMILES featurization workers.")
	flagTrainFrac   = flag.Float64("train_frac", 0.8, "Fraction of the dataset used for training.")
	flagValidFrac   = flag.Float64("valid_frac", 0.19, "Fraction of the dataset used for validation. "+
		"The remainder is the held-out test set.")
	flagColor = flag.Bool("color", true, "Colorize the terminal reports.")
)

// Globals
var (
	// globalCtx is cancelled on Ctrl+C: the epoch loop notices, saves and exits.
	globalCtx = context.Background()

	predictor *model.Predictor
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	var globalCancel func()
	globalCtx, globalCancel = context.WithCancel(context.Background())
	interrupt.Notify(globalCancel, 5*time.Second)
	defer globalCancel()

	// Profilers, per the -prof and -cpu_profile flags.
	defer setupProfiling()()

	train, valid, test := loadDataset()
	fmt.Printf("Dataset: %d train, %d validation, %d test examples\n",
		len(train), len(valid), len(test))

	mpnn := model.NewMPNN()
	params := parameters.NewFromConfigString(*flagConfig)
	predictor = must.M1(model.NewPredictor(mpnn, *flagModelDir, params))
	fmt.Printf("Model: %s\n\n", predictor)

	trainLoop(train, valid)
	if globalCtx.Err() == nil {
		testReport(test)
	}
}

// loadDataset downloads (or reuses) the BBBP CSV, featurizes it and splits it.
// The split is a function of -seed alone, so runs are comparable.
func loadDataset() (train, valid, test []dataset.Example) {
	path := must.M1(dataset.Download(*flagDataDir))
	records := must.M1(dataset.Load(path))
	examples := dataset.Featurize(records, *flagParallelism)
	rng := rand.New(rand.NewSource(*flagSeed))
	return dataset.Split(rng, examples, *flagTrainFrac, *flagValidFrac)
}

// trainLoop runs the epochs, validating and checkpointing after each one. On
// interruption it finishes the current epoch, saves and returns.
func trainLoop(train, valid []dataset.Example) {
	ui := cli.New(*flagColor)
	ui.EpochHeader()

	// Batch shuffling uses its own stream so that adding epochs never changes
	// the dataset split.
	rng := rand.New(rand.NewSource(*flagSeed + 1))
	var meanLoss eval.Mean
	bestAUC := float32(-1)
	for epoch := 1; epoch <= *flagEpochs; epoch++ {
		meanLoss.Reset()
		for graphs, labels := range dataset.Batches(rng, train, predictor.BatchSize()) {
			meanLoss.Add(predictor.Learn(graphs, labels), len(labels))
			if globalCtx.Err() != nil {
				break
			}
		}

		probabilities := predictBatched(valid)
		_, labels := dataset.GraphsAndLabels(valid)
		validAUC := eval.AUC(probabilities, labels)
		validAccuracy := eval.Accuracy(probabilities, labels)

		best := validAUC > bestAUC
		ui.EpochRow(epoch, meanLoss.Value(), validAUC, validAccuracy, best)
		if best {
			bestAUC = validAUC
			must.M(predictor.Save())
		}

		if globalCtx.Err() != nil {
			klog.Info("Interrupted, saving and exiting.")
			must.M(predictor.Save())
			return
		}
	}
}

// testReport evaluates on the held-out test set and prints the final metrics,
// plus a few sample predictions.
func testReport(test []dataset.Example) {
	probabilities := predictBatched(test)
	_, labels := dataset.GraphsAndLabels(test)
	ui := cli.New(*flagColor)
	ui.FinalReport(eval.AUC(probabilities, labels), eval.Accuracy(probabilities, labels), len(test))

	numSamples := min(len(test), 10)
	fmt.Println()
	ui.Separator()
	ui.Predictions(test[:numSamples], probabilities[:numSamples], true)
}

// predictBatched runs inference over the examples in batches of the training
// batch size, to bound the size of the compiled computation.
func predictBatched(examples []dataset.Example) []float32 {
	graphs, _ := dataset.GraphsAndLabels(examples)
	batchSize := predictor.BatchSize()
	probabilities := make([]float32, 0, len(graphs))
	for start := 0; start < len(graphs); start += batchSize {
		end := min(start+batchSize, len(graphs))
		probabilities = append(probabilities, predictor.Predict(graphs[start:end])...)
	}
	return probabilities
}

// Package dataset loads the BBBP (blood-brain barrier permeability) dataset:
// downloading the CSV, parsing it, featurizing the molecules into graphs, and
// serving shuffled mini-batches.
package dataset

import (
	"encoding/csv"
	"io"
	"iter"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/graphmol/molnet/internal/chem"
	"github.com/graphmol/molnet/internal/molgraph"
)

// URL of the BBBP dataset CSV, from MoleculeNet.
const URL = "https://deepchemdata.s3-us-west-1.amazonaws.com/datasets/BBBP.csv"

// FileName under the data directory where the CSV is cached.
const FileName = "BBBP.csv"

// Record is one row of the dataset.
type Record struct {
	Name   string
	SMILES string

	// Label is 1 if the compound permeates the blood-brain barrier, else 0.
	Label float32
}

// Example is a featurized record, ready for the model.
type Example struct {
	Record
	Graph *molgraph.Graph
}

// Download fetches the dataset CSV into dir, returning the local path. If the
// file is already there it is reused without touching the network.
func Download(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if stat, err := os.Stat(path); err == nil {
		klog.V(1).Infof("Reusing cached %s (%s)", path, humanize.Bytes(uint64(stat.Size())))
		return path, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create data directory %q", dir)
	}

	resp, err := http.Get(URL)
	if err != nil {
		return "", errors.Wrapf(err, "failed to download %q", URL)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("failed to download %q: %s", URL, resp.Status)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %q", tmpPath)
	}
	bar := progressbar.DefaultBytes(resp.ContentLength, "Downloading BBBP")
	_, err = io.Copy(io.MultiWriter(file, bar), resp.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", errors.Wrapf(err, "failed to write %q", tmpPath)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return "", errors.Wrapf(err, "failed to rename %q to %q", tmpPath, path)
	}
	return path, nil
}

// Load parses the dataset CSV. It locates the name, smiles and p_np columns
// from the header row.
func Load(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset %q", path)
	}
	defer func() { _ = file.Close() }()
	return Read(file)
}

// Read parses dataset CSV contents.
func Read(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Some BBBP rows carry stray commas inside names.

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}
	nameCol, smilesCol, labelCol := -1, -1, -1
	for col, title := range header {
		switch strings.ToLower(strings.TrimSpace(title)) {
		case "name":
			nameCol = col
		case "smiles":
			smilesCol = col
		case "p_np":
			labelCol = col
		}
	}
	if nameCol < 0 || smilesCol < 0 || labelCol < 0 {
		return nil, errors.Errorf("CSV header %v misses one of the name/smiles/p_np columns", header)
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read CSV line %d", line)
		}
		maxCol := max(nameCol, smilesCol, labelCol)
		if len(row) <= maxCol {
			klog.Warningf("Skipping malformed CSV line %d: %d columns, want >%d", line, len(row), maxCol)
			continue
		}
		label, err := strconv.Atoi(strings.TrimSpace(row[labelCol]))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid label %q on CSV line %d", row[labelCol], line)
		}
		records = append(records, Record{
			Name:   row[nameCol],
			SMILES: row[smilesCol],
			Label:  float32(label),
		})
	}
	return records, nil
}

// Featurize parses and graph-builds the records, running parallelism workers
// concurrently. Records whose SMILES fail to parse are dropped with a
// warning: the dataset is known to contain a handful of unparseable entries.
func Featurize(records []Record, parallelism int) []Example {
	if parallelism <= 0 {
		parallelism = 1
	}
	examples := make([]*Example, len(records))
	var group errgroup.Group
	group.SetLimit(parallelism)

	var mu sync.Mutex
	var dropped int
	for ii, record := range records {
		group.Go(func() error {
			mol, err := chem.Parse(record.SMILES)
			if err != nil {
				mu.Lock()
				dropped++
				mu.Unlock()
				klog.V(1).Infof("Dropping %q: %v", record.Name, err)
				return nil
			}
			examples[ii] = &Example{Record: record, Graph: molgraph.FromMolecule(mol)}
			return nil
		})
	}
	_ = group.Wait() // Workers never return an error, they drop instead.

	kept := make([]Example, 0, len(records)-dropped)
	for _, example := range examples {
		if example != nil {
			kept = append(kept, *example)
		}
	}
	if dropped > 0 {
		klog.Warningf("Dropped %d of %d records with unparseable SMILES", dropped, len(records))
	}
	return kept
}

// Split shuffles the examples with rng and partitions them into train,
// validation and test sets by the given fractions (test takes the rest).
func Split(rng *rand.Rand, examples []Example, trainFrac, validFrac float64) (train, valid, test []Example) {
	shuffled := make([]Example, len(examples))
	copy(shuffled, examples)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	trainEnd := int(trainFrac * float64(len(shuffled)))
	validEnd := trainEnd + int(validFrac*float64(len(shuffled)))
	return shuffled[:trainEnd], shuffled[trainEnd:validEnd], shuffled[validEnd:]
}

// Batches yields the examples as mini-batches of the given size, in a fresh
// shuffled order per call. The last batch may be smaller.
func Batches(rng *rand.Rand, examples []Example, batchSize int) iter.Seq2[[]*molgraph.Graph, []float32] {
	return func(yield func([]*molgraph.Graph, []float32) bool) {
		order := rng.Perm(len(examples))
		for start := 0; start < len(order); start += batchSize {
			end := min(start+batchSize, len(order))
			graphs := make([]*molgraph.Graph, 0, end-start)
			labels := make([]float32, 0, end-start)
			for _, idx := range order[start:end] {
				graphs = append(graphs, examples[idx].Graph)
				labels = append(labels, examples[idx].Label)
			}
			if !yield(graphs, labels) {
				return
			}
		}
	}
}

// GraphsAndLabels splits the examples into the parallel slices the Predictor
// consumes, without shuffling or batching.
func GraphsAndLabels(examples []Example) (graphs []*molgraph.Graph, labels []float32) {
	graphs = make([]*molgraph.Graph, len(examples))
	labels = make([]float32, len(examples))
	for ii, example := range examples {
		graphs[ii] = example.Graph
		labels[ii] = example.Label
	}
	return
}

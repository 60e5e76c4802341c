package example

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/rs/zerolog/log"
)

// Dataset is a nearest-neighbor benchmark in the ann-benchmarks CSV layout.
// Train rows are indexed with their row number as id.
type Dataset struct {
	Name      string
	Train     [][]float32
	Test      [][]float32
	Neighbors [][]int     // expected neighbor ids per test row, closest first
	Distances [][]float64 // expected distances per test row
}

// Dimension returns the vector length of the dataset, or 0 when it is empty.
func (d *Dataset) Dimension() int {
	if len(d.Train) == 0 {
		return 0
	}
	return len(d.Train[0])
}

// Records turns the training vectors into collection records.
func (d *Dataset) Records() []collection.Record[int] {
	records := make([]collection.Record[int], len(d.Train))
	for id, vec := range d.Train {
		records[id] = collection.Record[int]{ID: id, Vector: vec}
	}
	return records
}

// LoadDataset loads a dataset from a directory.
// The directory must contain the following files:
//   - train.csv       (vectors to add to the collection)
//   - test.csv        (query vectors, not added to the collection)
//   - neighbors.csv   (expected neighbor IDs per query)
//
// distances.csv (expected distances per query) is optional.
func LoadDataset(dir string) (*Dataset, error) {
	log.Info().Msgf("Loading dataset from directory: %s", dir)
	ds := &Dataset{Name: filepath.Base(dir)}
	var err error

	if ds.Train, err = readCSV[float32](filepath.Join(dir, "train.csv"), false); err != nil {
		return nil, fmt.Errorf("failed to load train.csv: %w", err)
	}
	if ds.Test, err = readCSV[float32](filepath.Join(dir, "test.csv"), false); err != nil {
		return nil, fmt.Errorf("failed to load test.csv: %w", err)
	}
	if ds.Neighbors, err = readCSV[int](filepath.Join(dir, "neighbors.csv"), false); err != nil {
		return nil, fmt.Errorf("failed to load neighbors.csv: %w", err)
	}
	ds.Distances, err = readCSV[float64](filepath.Join(dir, "distances.csv"), false)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load distances.csv: %w", err)
	}
	if len(ds.Neighbors) != len(ds.Test) {
		return nil, fmt.Errorf("dataset %s has %d test rows but %d neighbor rows", ds.Name, len(ds.Test), len(ds.Neighbors))
	}

	log.Info().Msgf("Loaded dataset %s: %d train, %d test vectors", ds.Name, len(ds.Train), len(ds.Test))
	return ds, nil
}

// readCSV is a generic CSV reader for types: int, float32, and float64.
func readCSV[T int | float32 | float64](path string, skipHeader bool) ([][]T, error) {
	log.Debug().Msgf("Opening CSV file: %s", path)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.ReuseRecord = true
	var result [][]T

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read error in %s: %w", path, err)
		}
		if skipHeader {
			skipHeader = false
			continue
		}
		row := make([]T, len(record))
		for i, val := range record {
			parsed, err := parseValue[T](val)
			if err != nil {
				return nil, fmt.Errorf("parse error at col %d in %s: %w", i, path, err)
			}
			row[i] = parsed
		}
		result = append(result, row)
	}

	log.Debug().Msgf("Parsed %d rows from %s", len(result), path)
	return result, nil
}

// parseValue converts a string to T (int, float32, or float64).
func parseValue[T int | float32 | float64](s string) (T, error) {
	s = strings.TrimSpace(s)
	var zero T
	switch any(zero).(type) {
	case int:
		v, err := strconv.Atoi(s)
		return any(v).(T), err
	case float32:
		v, err := strconv.ParseFloat(s, 32)
		return any(float32(v)).(T), err
	case float64:
		v, err := strconv.ParseFloat(s, 64)
		return any(v).(T), err
	default:
		return zero, fmt.Errorf("unsupported type %T", zero)
	}
}

// WriteDataset stores ds in dir using the layout read by LoadDataset.
func WriteDataset(dir string, ds *Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, "train.csv"), ds.Train); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, "test.csv"), ds.Test); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, "neighbors.csv"), ds.Neighbors); err != nil {
		return err
	}
	return writeCSV(filepath.Join(dir, "distances.csv"), ds.Distances)
}

func writeCSV[T int | float32 | float64](path string, rows [][]T) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	record := []string{}
	for _, row := range rows {
		record = record[:0]
		for _, v := range row {
			switch x := any(v).(type) {
			case int:
				record = append(record, strconv.Itoa(x))
			case float32:
				record = append(record, strconv.FormatFloat(float64(x), 'g', -1, 32))
			case float64:
				record = append(record, strconv.FormatFloat(x, 'g', -1, 64))
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

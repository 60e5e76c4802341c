package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/patrikhermansson/hanndb/collection"
	"github.com/patrikhermansson/hanndb/core"
)

// jsonRecord is one line of a records file, and one line of search output.
type jsonRecord struct {
	ID       string    `json:"id,omitempty"`
	Vector   []float32 `json:"vector,omitempty"`
	Data     any       `json:"data,omitempty"`
	Distance *float64  `json:"distance,omitempty"`
}

// readRecords decodes a stream of JSON records. Records without an id get a UUID.
func readRecords(r io.Reader, normalize bool) ([]collection.Record[string], error) {
	var records []collection.Record[string]
	dec := json.NewDecoder(r)
	for line := 1; ; line++ {
		var jr jsonRecord
		if err := dec.Decode(&jr); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		if len(jr.Vector) == 0 {
			return nil, fmt.Errorf("record %d: missing vector", line)
		}
		if jr.ID == "" {
			jr.ID = uuid.NewString()
		}
		data, err := core.MetadataFromAny(jr.Data)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		records = append(records, collection.Record[string]{ID: jr.ID, Vector: jr.Vector, Data: data})
	}
	if normalize {
		vecs := make([][]float32, len(records))
		for i := range records {
			vecs[i] = records[i].Vector
		}
		core.NormalizeBatch(vecs)
	}
	return records, nil
}

// readRecordsFile reads records from path, or from stdin when path is "-".
func readRecordsFile(path string, stdin io.Reader, normalize bool) ([]collection.Record[string], error) {
	if path == "-" {
		return readRecords(stdin, normalize)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records: %w", err)
	}
	defer file.Close()
	return readRecords(file, normalize)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}

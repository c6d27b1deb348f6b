package fleet

import (
	"encoding/json"
	"os"

	"formationctl/internal/telemetry"
)

// FileWriter appends flight rows to a JSONL file.
type FileWriter struct {
	file *os.File
	enc  *json.Encoder
}

// NewFileWriter creates a FileWriter at the given path.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// Write appends one flight row.
func (w *FileWriter) Write(row telemetry.FlightRow) error {
	return w.enc.Encode(row)
}

// WriteBatch appends multiple flight rows.
func (w *FileWriter) WriteBatch(rows []telemetry.FlightRow) error {
	for _, r := range rows {
		if err := w.enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *FileWriter) Close() error {
	return w.file.Close()
}

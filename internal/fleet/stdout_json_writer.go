package fleet

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"formationctl/internal/telemetry"
)

// JSONStdoutWriter prints flight rows as JSON lines to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// Write outputs a flight row in JSON format.
func (w *JSONStdoutWriter) Write(row telemetry.FlightRow) error {
	data, _ := json.Marshal(row)
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteBatch outputs multiple flight rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []telemetry.FlightRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

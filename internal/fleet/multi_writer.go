package fleet

import "formationctl/internal/telemetry"

// MultiWriter fans flight rows out to multiple writers.
type MultiWriter struct {
	writers []FlightWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...FlightWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Write sends a flight row to all writers.
func (mw *MultiWriter) Write(row telemetry.FlightRow) error {
	for _, w := range mw.writers {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple flight rows to all writers, using batch mode
// where supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.FlightRow) error {
	for _, w := range mw.writers {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
	return nil
}

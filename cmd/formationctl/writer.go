package main

import (
	"os"

	"formationctl/internal/fleet"
)

// newWriters assembles the flight telemetry writer chain from flags and
// environment. A nil writer is valid and means no recording.
func newWriters(printOnly bool, logFile string) (fleet.FlightWriter, func(), error) {
	cleanup := func() {}
	var writers []fleet.FlightWriter

	if printOnly {
		writers = append(writers, fleet.NewJSONStdoutWriter())
	} else if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); endpoint != "" {
		db := os.Getenv("GREPTIMEDB_DATABASE")
		if db == "" {
			db = "public"
		}
		gw, err := fleet.NewGreptimeDBWriter(endpoint, db)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, gw)
	}

	if logFile != "" {
		fw, err := fleet.NewFileWriter(logFile)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, fw)
		cleanup = func() { fw.Close() }
	}

	switch len(writers) {
	case 0:
		return nil, cleanup, nil
	case 1:
		return writers[0], cleanup, nil
	default:
		return fleet.NewMultiWriter(writers...), cleanup, nil
	}
}

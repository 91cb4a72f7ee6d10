package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/natefinch/atomic"
)

// writeReport stores res as indented JSON at path. Readers never observe
// a partially written file.
func writeReport(path string, res Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}

func printSummary(w io.Writer, res Result) {
	fmt.Fprintf(w, "slots:       %d\n", res.Slots)
	fmt.Fprintf(w, "written:     %d/%d\n", res.Written, res.Frames)
	fmt.Fprintf(w, "observed:    %d (last seq %d)\n", res.Observed, res.LastSeq)
	fmt.Fprintf(w, "superseded:  %d\n", res.Stats.Superseded)
	fmt.Fprintf(w, "timeouts:    %d\n", res.Stats.ReadTimeouts)
	fmt.Fprintf(w, "buffers:     %d allocated, %d recycled, %d live\n", res.Allocated, res.Recycled, res.Live)
	fmt.Fprintf(w, "torn:        %d\n", res.Torn)
	fmt.Fprintf(w, "elapsed:     %s\n", time.Duration(res.Elapsed))
}

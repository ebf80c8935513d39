package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/tracekit/spanql/pkg/types"
)

// Trace dumps are snappy-framed streams of JSON-encoded events, one
// object per line. The format round-trips through WriteDump/ReadDump.

// WriteDump writes events to w as a snappy-compressed JSON stream.
func WriteDump(w io.Writer, events []types.Event) error {
	sw := snappy.NewBufferedWriter(w)
	enc := json.NewEncoder(sw)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("store: encoding event %d: %w", ev.ID, err)
		}
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("store: flushing dump: %w", err)
	}
	return nil
}

// ReadDump reads a snappy-compressed JSON event stream written by WriteDump.
func ReadDump(r io.Reader) ([]types.Event, error) {
	dec := json.NewDecoder(snappy.NewReader(r))
	var events []types.Event
	for {
		var ev types.Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("store: decoding dump: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// WriteDumpFile writes events to the named dump file, creating or
// truncating it.
func WriteDumpFile(path string, events []types.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: creating dump file: %w", err)
	}
	if err := WriteDump(f, events); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: closing dump file: %w", err)
	}
	return nil
}

// ReadDumpFile reads events from the named dump file.
func ReadDumpFile(path string) ([]types.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: opening dump file: %w", err)
	}
	defer f.Close()
	return ReadDump(f)
}

package sim

import (
	"errors"
	"fmt"
)

// ErrNoSequencingData is returned by DetectStructure when the source
// directory contains neither direct sequencing files nor populated
// barcode directories.
var ErrNoSequencingData = errors.New("no sequencing files found")

// ConfigError reports an invalid configuration value. It is always
// raised at construction time, never mid-run.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// DeliveryError reports a failed file operation together with its exact
// position in the run, so an operator can resume externally. Batch is
// zero-based.
type DeliveryError struct {
	Batch int
	Entry ManifestEntry
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed in batch %d (%s -> %s): %v",
		e.Batch, e.Entry.Source, e.Entry.Target, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

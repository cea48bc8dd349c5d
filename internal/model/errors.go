package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is matched by every EmptyInputError
var ErrEmptyInput = errors.New("no valid sequences found")

// EmptyInputError reports that the reader produced zero records.
// It is the only validation gate inside the analysis core.
type EmptyInputError struct {
	SampleName string
	Dropped    int // Records seen but discarded because no line survived filtering
}

func (e *EmptyInputError) Error() string {
	if e.Dropped > 0 {
		return fmt.Sprintf("%s: %v (%d records had no valid nucleotide lines)", e.SampleName, ErrEmptyInput, e.Dropped)
	}
	return fmt.Sprintf("%s: %v", e.SampleName, ErrEmptyInput)
}

// Is makes errors.Is(err, ErrEmptyInput) succeed
func (e *EmptyInputError) Is(target error) bool {
	return target == ErrEmptyInput
}

// ClassifierError wraps a classifier failure with the offending record.
// A single ClassifierError aborts the whole run.
type ClassifierError struct {
	RecordID string
	Index    int
	Err      error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classify record %q (#%d): %v", e.RecordID, e.Index, e.Err)
}

func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// UnsupportedFormatError is raised by the upload layer for rejected file types
type UnsupportedFormatError struct {
	Filename  string
	Extension string
	Allowed   []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type %q for %s (allowed: %s)", e.Extension, e.Filename, strings.Join(e.Allowed, ", "))
}

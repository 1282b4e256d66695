package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedReferenceRow marks a reference row that cannot be loaded.
	ErrMalformedReferenceRow = errors.New("malformed reference row")

	// ErrJournalNotFound is returned by journal sources when a hiker has no document.
	ErrJournalNotFound = errors.New("journal document not found")

	// ErrMissingJournal is returned when a hiker document has no usable "journal" field.
	ErrMissingJournal = errors.New("hiker document has no journal")
)

// Reasons a hiker is skipped during aggregation.
const (
	SkipNotFound   = "not_found"
	SkipUnreadable = "unreadable"
	SkipMalformed  = "malformed"
)

// MalformedReferenceRowError describes a reference row whose fields cannot be parsed.
type MalformedReferenceRowError struct {
	Line   int // 1-based line in the reference file
	Column string
	Value  string
	Err    error
}

func (e *MalformedReferenceRowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("reference line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("reference line %d: invalid %s %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *MalformedReferenceRowError) Unwrap() error { return e.Err }

func (e *MalformedReferenceRowError) Is(target error) bool {
	return target == ErrMalformedReferenceRow
}

// FatalConfigError aborts a run: the reference table or hiker list could not be loaded.
type FatalConfigError struct {
	Source string // "reference file" or "hiker list"
	Err    error
}

func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *FatalConfigError) Unwrap() error { return e.Err }

// RecoverableHikerError records a hiker that was skipped without aborting the run.
type RecoverableHikerError struct {
	HikerID string
	Reason  string // one of SkipNotFound, SkipUnreadable, SkipMalformed
	Err     error
}

func (e *RecoverableHikerError) Error() string {
	return fmt.Sprintf("hiker %s skipped (%s): %v", e.HikerID, e.Reason, e.Err)
}

func (e *RecoverableHikerError) Unwrap() error { return e.Err }

// IOWriteError is returned when a report sink fails. The aggregated table is
// unaffected and can be written again.
type IOWriteError struct {
	Target string
	Err    error
}

func (e *IOWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Target, e.Err)
}

func (e *IOWriteError) Unwrap() error { return e.Err }

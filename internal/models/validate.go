package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidRecord marks a record rejected before it reaches the pipeline.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrBatchTooLarge marks a batch above the configured row limit.
	ErrBatchTooLarge = errors.New("batch too large")
)

// RecordError locates a rejected record.
type RecordError struct {
	Row int
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%v: row %d: %v", ErrInvalidRecord, e.Row, e.Err)
}

func (e *RecordError) Unwrap() []error { return []error{ErrInvalidRecord, e.Err} }

// ValidateRecords checks the batch size and the struct tags of every record.
// maxRows <= 0 disables the size check.
func ValidateRecords(v *validator.Validate, records []Record, maxRows int) error {
	if maxRows > 0 && len(records) > maxRows {
		return fmt.Errorf("%w: %d rows exceeds limit of %d", ErrBatchTooLarge, len(records), maxRows)
	}
	if v == nil {
		v = validator.New()
	}
	for i := range records {
		if err := v.Struct(&records[i]); err != nil {
			return &RecordError{Row: i, Err: err}
		}
	}
	return nil
}

// Package frame provides the column-oriented table the feature pipeline
// operates on. Stages never mutate a Frame; every operation returns a new
// Frame that shares the columns it did not touch.
package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn is returned when a named column is absent.
	ErrMissingColumn = errors.New("missing column")
	// ErrColumnType is returned when a column holds a different element type.
	ErrColumnType = errors.New("column type mismatch")
	// ErrLength is returned when a column's row count differs from the frame.
	ErrLength = errors.New("column length mismatch")
)

// Frame is an ordered set of equally long named columns.
type Frame struct {
	rows  int
	order []string
	cols  map[string]Column
}

// New returns an empty frame that will accept columns of the given length.
func New(rows int) *Frame {
	return &Frame{rows: rows, cols: make(map[string]Column)}
}

// FromColumns builds a frame from columns in the given order.
func FromColumns(cols ...Column) (*Frame, error) {
	rows := 0
	if len(cols) > 0 {
		rows = cols[0].Len()
	}
	return New(rows).With(cols...)
}

// Len returns the row count.
func (f *Frame) Len() int { return f.rows }

// Width returns the column count.
func (f *Frame) Width() int { return len(f.order) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	return append([]string(nil), f.order...)
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (Column, error) {
	col, ok := f.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return col, nil
}

// Value returns the value at row for the named column, nil when missing.
func (f *Frame) Value(row int, name string) any {
	col, ok := f.cols[name]
	if !ok {
		return nil
	}
	return col.Interface(row)
}

// Clone returns a frame with the same columns. Column data is shared.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		rows:  f.rows,
		order: append([]string(nil), f.order...),
		cols:  make(map[string]Column, len(f.cols)),
	}
	for name, col := range f.cols {
		out.cols[name] = col
	}
	return out
}

// With returns a copy of f where each column replaces the one of the same
// name in place or is appended at the end.
func (f *Frame) With(cols ...Column) (*Frame, error) {
	out := f.Clone()
	for _, col := range cols {
		if col.Len() != out.rows {
			return nil, fmt.Errorf("%w: %s has %d rows, frame has %d", ErrLength, col.Name(), col.Len(), out.rows)
		}
		if _, exists := out.cols[col.Name()]; !exists {
			out.order = append(out.order, col.Name())
		}
		out.cols[col.Name()] = col
	}
	return out, nil
}

// Drop returns a copy of f without the named columns.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		if !f.Has(name) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		drop[name] = struct{}{}
	}
	out := New(f.rows)
	for _, name := range f.order {
		if _, skip := drop[name]; skip {
			continue
		}
		out.order = append(out.order, name)
		out.cols[name] = f.cols[name]
	}
	return out, nil
}

// Select returns a frame holding exactly the named columns in that order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := New(f.rows)
	for _, name := range names {
		col, ok := f.cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		if _, dup := out.cols[name]; dup {
			continue
		}
		out.order = append(out.order, name)
		out.cols[name] = col
	}
	return out, nil
}

// Rename returns a copy of f with columns renamed according to old->new.
// Column positions are preserved.
func (f *Frame) Rename(mapping map[string]string) (*Frame, error) {
	for old, name := range mapping {
		if !f.Has(old) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, old)
		}
		if _, target := mapping[name]; f.Has(name) && name != old && !target {
			return nil, fmt.Errorf("rename %s: column %s already exists", old, name)
		}
	}
	out := New(f.rows)
	for _, name := range f.order {
		col := f.cols[name]
		if renamed, ok := mapping[name]; ok {
			col = col.renamed(renamed)
			name = renamed
		}
		out.order = append(out.order, name)
		out.cols[name] = col
	}
	return out, nil
}

// Get returns the named column as a Series of T.
func Get[T Element](f *Frame, name string) (*Series[T], error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	s, ok := col.(*Series[T])
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrColumnType, name, col.Kind(), kindOf[T]())
	}
	return s, nil
}

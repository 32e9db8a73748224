package frame

import (
	"fmt"
	"time"
)

// Kind identifies the element type stored in a column.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindString
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Element lists the value types a Series may hold.
type Element interface {
	int64 | float64 | string | bool | time.Time
}

// Column is the type-erased view of a Series used by Frame.
type Column interface {
	Name() string
	Len() int
	Kind() Kind
	IsNull(i int) bool
	// Interface returns the value at row i, or nil when the value is missing.
	Interface(i int) any
	renamed(name string) Column
}

// Series is a named, typed column with an optional null mask.
type Series[T Element] struct {
	name   string
	values []T
	nulls  []bool
}

// NewSeries wraps values as a column. nulls must be nil or have the same
// length as values; a mask without any missing entry is discarded.
func NewSeries[T Element](name string, values []T, nulls []bool) *Series[T] {
	if nulls != nil && len(nulls) != len(values) {
		panic(fmt.Sprintf("frame: series %q has %d values but %d null flags", name, len(values), len(nulls)))
	}
	s := &Series[T]{name: name, values: values}
	for _, null := range nulls {
		if null {
			s.nulls = nulls
			break
		}
	}
	return s
}

// Name returns the column name.
func (s *Series[T]) Name() string { return s.name }

// Len returns the number of rows.
func (s *Series[T]) Len() int { return len(s.values) }

// Kind reports the element type.
func (s *Series[T]) Kind() Kind { return kindOf[T]() }

// At returns the raw value at row i. Missing rows hold the zero value.
func (s *Series[T]) At(i int) T { return s.values[i] }

// IsNull reports whether row i is missing.
func (s *Series[T]) IsNull(i int) bool {
	return s.nulls != nil && s.nulls[i]
}

// NullCount returns the number of missing rows.
func (s *Series[T]) NullCount() int {
	n := 0
	for _, null := range s.nulls {
		if null {
			n++
		}
	}
	return n
}

// Values exposes the backing slice. Callers must not modify it.
func (s *Series[T]) Values() []T { return s.values }

// Interface implements Column.
func (s *Series[T]) Interface(i int) any {
	if s.IsNull(i) {
		return nil
	}
	return s.values[i]
}

func (s *Series[T]) renamed(name string) Column {
	return &Series[T]{name: name, values: s.values, nulls: s.nulls}
}

// Map applies fn to every present value; missing rows stay missing.
func Map[T, U Element](s *Series[T], name string, fn func(T) U) *Series[U] {
	out := make([]U, len(s.values))
	for i, v := range s.values {
		if s.IsNull(i) {
			continue
		}
		out[i] = fn(v)
	}
	var nulls []bool
	if s.nulls != nil {
		nulls = append([]bool(nil), s.nulls...)
	}
	return NewSeries(name, out, nulls)
}

func kindOf[T Element]() Kind {
	var zero T
	switch any(zero).(type) {
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case string:
		return KindString
	case bool:
		return KindBool
	case time.Time:
		return KindTime
	}
	return 0
}

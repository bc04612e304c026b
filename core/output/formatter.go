// Package output provides output formatting interfaces.
// This package produces human and machine-readable outputs.
package output

import (
	"io"
	"sort"
	"strings"
	"sync"

	"tax-uncertainty/core/engine"
	"tax-uncertainty/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatTable is a human-readable terminal table
	FormatTable Format = "table"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"

	// FormatCSV is one CSV block per record table, ready for plotting
	FormatCSV Format = "csv"
)

// DefaultPrecision is the number of decimals rendered when none is set
const DefaultPrecision = 6

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Render produces output for the given report
	Render(w io.Writer, report *engine.Report) error
}

// Registry manages formatter registration
type Registry struct {
	mu         sync.RWMutex
	formatters map[Format]Formatter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{formatters: make(map[Format]Formatter)}
}

// DefaultRegistry returns a registry holding the table, json and csv
// formatters at the given precision.
func DefaultRegistry(precision int) *Registry {
	r := NewRegistry()
	_ = r.Register(&TableFormatter{Precision: precision})
	_ = r.Register(&JSONFormatter{Precision: precision, Indent: true})
	_ = r.Register(&CSVFormatter{Precision: precision})
	return r
}

// Register adds a formatter to the registry
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Format()]; exists {
		return errors.Newf(errors.TypeInput, "formatter %q already registered", f.Format())
	}
	r.formatters[f.Format()] = f
	return nil
}

// GetFormatter returns a formatter for a format type
func (r *Registry) GetFormatter(format Format) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formatters[format]
	return f, ok
}

// GetAll returns all registered formatters ordered by format name
func (r *Registry) GetAll() []Formatter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Formatter, 0, len(r.formatters))
	for _, f := range r.formatters {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Format() < all[j].Format() })
	return all
}

// Get returns the default formatter for a format name
func Get(format string, precision int) (Formatter, error) {
	f, ok := DefaultRegistry(precision).GetFormatter(Format(strings.ToLower(format)))
	if !ok {
		return nil, errors.NotSupported("output format " + format)
	}
	return f, nil
}

func places(precision int) int32 {
	if precision <= 0 {
		return DefaultPrecision
	}
	return int32(precision)
}

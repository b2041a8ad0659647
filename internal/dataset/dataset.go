package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datawatch/datawatch/pkg/errors"
)

// DType identifies the logical type of a column.
type DType string

const (
	DTypeNumeric  DType = "numeric"
	DTypeText     DType = "text"
	DTypeBoolean  DType = "boolean"
	DTypeDatetime DType = "datetime"
)

// Column is a named, typed column. Values holds one entry per row; a nil
// entry is a null cell. Non-nil entries are float64, string, bool or
// time.Time according to Type.
type Column struct {
	Name   string
	Type   DType
	Values []interface{}
}

// IsNull reports whether the cell at row is null.
func (c *Column) IsNull(row int) bool {
	return c.Values[row] == nil
}

// NullCount returns the number of null cells in the column.
func (c *Column) NullCount() int {
	count := 0
	for _, v := range c.Values {
		if v == nil {
			count++
		}
	}
	return count
}

// NonNullCount returns the number of populated cells in the column.
func (c *Column) NonNullCount() int {
	return len(c.Values) - c.NullCount()
}

// Dataset is an in-memory tabular dataset: an ordered collection of named
// columns sharing a fixed row count. Analyzers treat it as read-only unless
// an operation is explicitly documented as mutating.
type Dataset struct {
	columns []Column
	byName  map[string]int
	rows    int
}

// New creates a dataset from the given columns. All columns must have the
// same length and unique names.
func New(columns []Column) (*Dataset, error) {
	ds := &Dataset{
		columns: columns,
		byName:  make(map[string]int, len(columns)),
	}

	for i, col := range columns {
		if _, exists := ds.byName[col.Name]; exists {
			return nil, errors.NewValidationError(errors.CodeInvalidInput,
				fmt.Sprintf("duplicate column name %q", col.Name))
		}
		ds.byName[col.Name] = i

		if i == 0 {
			ds.rows = len(col.Values)
		} else if len(col.Values) != ds.rows {
			return nil, errors.NewValidationError(errors.CodeInvalidInput,
				fmt.Sprintf("column %q has %d rows, expected %d", col.Name, len(col.Values), ds.rows))
		}
	}

	return ds, nil
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int {
	return d.rows
}

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int {
	return len(d.columns)
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, col := range d.columns {
		names[i] = col.Name
	}
	return names
}

// Columns returns the columns in order.
func (d *Dataset) Columns() []Column {
	return d.columns
}

// Column returns the column with the given name.
func (d *Dataset) Column(name string) (*Column, bool) {
	idx, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return &d.columns[idx], true
}

// HasColumn reports whether a column with the given name exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// DTypes returns a column name to dtype mapping.
func (d *Dataset) DTypes() map[string]string {
	dtypes := make(map[string]string, len(d.columns))
	for _, col := range d.columns {
		dtypes[col.Name] = string(col.Type)
	}
	return dtypes
}

// NumericColumns returns the names of all numeric columns in order.
func (d *Dataset) NumericColumns() []string {
	var names []string
	for _, col := range d.columns {
		if col.Type == DTypeNumeric {
			names = append(names, col.Name)
		}
	}
	return names
}

// NumericValues returns the non-null values of a numeric column.
func (d *Dataset) NumericValues(name string) ([]float64, error) {
	col, ok := d.Column(name)
	if !ok {
		return nil, errors.NewValidationError(errors.CodeColumnNotFound,
			fmt.Sprintf("column %q not found", name))
	}
	if col.Type != DTypeNumeric {
		return nil, errors.NewValidationError(errors.CodeColumnNotNumeric,
			fmt.Sprintf("column %q is %s, not numeric", name, col.Type))
	}

	values := make([]float64, 0, len(col.Values))
	for _, v := range col.Values {
		if v != nil {
			values = append(values, v.(float64))
		}
	}
	return values, nil
}

// Row materializes row i as a column name to value mapping.
func (d *Dataset) Row(i int) map[string]interface{} {
	row := make(map[string]interface{}, len(d.columns))
	for _, col := range d.columns {
		row[col.Name] = col.Values[i]
	}
	return row
}

// RowKey builds a deterministic string key for row i over the given columns,
// used to group identical rows. Column order matters; null cells are encoded
// distinctly from any real value.
func (d *Dataset) RowKey(i int, columns []string) string {
	var sb strings.Builder
	for _, name := range columns {
		col := &d.columns[d.byName[name]]
		sb.WriteString(FormatValue(col.Values[i]))
		sb.WriteByte('\x1f')
	}
	return sb.String()
}

// MissingInRow counts null cells in row i.
func (d *Dataset) MissingInRow(i int) int {
	count := 0
	for _, col := range d.columns {
		if col.Values[i] == nil {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	columns := make([]Column, len(d.columns))
	for i, col := range d.columns {
		values := make([]interface{}, len(col.Values))
		copy(values, col.Values)
		columns[i] = Column{Name: col.Name, Type: col.Type, Values: values}
	}

	clone, _ := New(columns)
	return clone
}

// RemoveRows deletes the given row indices in place. Indices out of range
// are ignored.
func (d *Dataset) RemoveRows(indices []int) {
	if len(indices) == 0 {
		return
	}

	drop := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < d.rows {
			drop[idx] = true
		}
	}
	if len(drop) == 0 {
		return
	}

	for i := range d.columns {
		kept := d.columns[i].Values[:0]
		for row, v := range d.columns[i].Values {
			if !drop[row] {
				kept = append(kept, v)
			}
		}
		d.columns[i].Values = kept
	}
	d.rows -= len(drop)
}

// SetValue overwrites the cell at (column, row). Used by clip operations.
func (d *Dataset) SetValue(name string, row int, value interface{}) error {
	idx, ok := d.byName[name]
	if !ok {
		return errors.NewValidationError(errors.CodeColumnNotFound,
			fmt.Sprintf("column %q not found", name))
	}
	d.columns[idx].Values[row] = value
	return nil
}

// FormatValue renders a cell value as a stable string. Null cells render as
// a sentinel that cannot collide with real data.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "\x00null"
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// SortedColumnNames returns the column names sorted lexically. Handy for
// deterministic iteration over dtype maps.
func SortedColumnNames(dtypes map[string]string) []string {
	names := make([]string, 0, len(dtypes))
	for name := range dtypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

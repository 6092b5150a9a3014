package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrEmptyTable indicates a table with no rows where data was required.
	ErrEmptyTable = errors.New("dataset: empty table")
	// ErrMissingColumn indicates a referenced column is not in the table schema.
	ErrMissingColumn = errors.New("dataset: missing column")
)

// Row is one historical (driver, event) observation. Values are aligned
// with the owning Table's column order.
type Row struct {
	Driver    string
	Team      string
	Season    int
	Round     int
	EventName string
	Values    []float64
}

// EventKey returns the canonical event identifier, e.g. "2024_R05".
func (r Row) EventKey() string {
	return fmt.Sprintf("%d_R%02d", r.Season, r.Round)
}

// Table is a flat row-oriented feature table with a fixed column schema.
// Rows are immutable once appended; consumers that need modified values
// work on a Clone.
type Table struct {
	Columns []string
	Rows    []Row

	index map[string]int
}

// NewTable creates an empty table with the given column schema.
func NewTable(columns []string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.index[c] = i
	}
}

// ColumnIndex returns the position of a column in the schema.
func (t *Table) ColumnIndex(name string) (int, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[name]
	return i, ok
}

// HasColumn reports whether the schema contains the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// Append adds a row, enforcing schema width.
func (t *Table) Append(row Row) error {
	if len(row.Values) != len(t.Columns) {
		return fmt.Errorf("dataset: row has %d values, schema has %d columns", len(row.Values), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Value returns the cell at (row, column).
func (t *Table) Value(row int, column string) (float64, error) {
	i, ok := t.ColumnIndex(column)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingColumn, column)
	}
	return t.Rows[row].Values[i], nil
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]float64, error) {
	i, ok := t.ColumnIndex(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	out := make([]float64, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row.Values[i]
	}
	return out, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := NewTable(t.Columns)
	out.Rows = make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		copied := row
		copied.Values = append([]float64(nil), row.Values...)
		out.Rows[i] = copied
	}
	return out
}

// Select returns a new table holding only the requested columns, in the
// requested order. Row metadata is preserved.
func (t *Table) Select(columns []string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, ok := t.ColumnIndex(c)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
		idx[i] = j
	}
	out := NewTable(columns)
	out.Rows = make([]Row, len(t.Rows))
	for r, row := range t.Rows {
		values := make([]float64, len(idx))
		for i, j := range idx {
			values[i] = row.Values[j]
		}
		copied := row
		copied.Values = values
		out.Rows[r] = copied
	}
	return out, nil
}

// EventGroup is one event's slice of the table.
type EventGroup struct {
	Key   string
	Name  string
	Table *Table
}

// GroupByEvent splits the table into per-event groups ordered by
// (season, round). Row order within a group follows table order.
func (t *Table) GroupByEvent() []EventGroup {
	type eventID struct {
		season int
		round  int
	}
	byEvent := make(map[eventID]*EventGroup)
	var order []eventID
	for _, row := range t.Rows {
		id := eventID{row.Season, row.Round}
		group, ok := byEvent[id]
		if !ok {
			group = &EventGroup{Key: row.EventKey(), Name: row.EventName, Table: NewTable(t.Columns)}
			byEvent[id] = group
			order = append(order, id)
		}
		if group.Name == "" {
			group.Name = row.EventName
		}
		copied := row
		copied.Values = append([]float64(nil), row.Values...)
		group.Table.Rows = append(group.Table.Rows, copied)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].season != order[j].season {
			return order[i].season < order[j].season
		}
		return order[i].round < order[j].round
	})
	groups := make([]EventGroup, len(order))
	for i, id := range order {
		groups[i] = *byEvent[id]
	}
	return groups
}

// Drivers returns the driver identifiers in row order.
func (t *Table) Drivers() []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Driver
	}
	return out
}

// Validate checks the table against the invariants required before any
// model fitting or simulation: non-empty, a finite target for every row,
// and at least two entities per event.
func (t *Table) Validate(target string) error {
	if t.NumRows() == 0 {
		return ErrEmptyTable
	}
	ti, ok := t.ColumnIndex(target)
	if !ok {
		return fmt.Errorf("%w: target %q", ErrMissingColumn, target)
	}
	for i, row := range t.Rows {
		if math.IsNaN(row.Values[ti]) {
			return fmt.Errorf("dataset: row %d (%s, %s) has NaN target %q", i, row.Driver, row.EventKey(), target)
		}
	}
	for _, group := range t.GroupByEvent() {
		if group.Table.NumRows() < 2 {
			return fmt.Errorf("dataset: event %s has %d entities, need at least 2", group.Key, group.Table.NumRows())
		}
	}
	return nil
}

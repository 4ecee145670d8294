// Package calendar places the days of a month onto a week-by-weekday grid.
//
// Days are filled row-major starting at the first-weekday offset column of
// row 0. The standard grid is five rows by seven columns; a 31-day month
// starting late in the week does not fit, and the OverflowPolicy decides
// whether the trailing days are dropped or a sixth row is added.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// Weekdays is the number of grid columns
	Weekdays = 7
	// StandardRows is the number of rows of the default grid
	StandardRows = 5
	// ExpandedRows is enough rows for any month at any offset
	ExpandedRows = 6
	// MaxDays is the largest day number placed on a grid
	MaxDays = 31
)

// WeekdayHeaders are the column labels, always Sunday-first
var WeekdayHeaders = [Weekdays]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var (
	ErrInvalidOffset   = errors.New("first weekday offset must be between 0 and 6")
	ErrInvalidPolicy   = errors.New("overflow policy must be drop or expand")
	ErrInvalidDayCount = errors.New("day count must be between 1 and 31")
)

// Offset is the column holding day 1: 0 is Sunday, 6 is Saturday
type Offset int

// Validate reports whether the offset names a weekday column
func (o Offset) Validate() error {
	if o < 0 || o >= Weekdays {
		return fmt.Errorf("%w: got %d", ErrInvalidOffset, int(o))
	}
	return nil
}

// Weekday returns the weekday of the offset column
func (o Offset) Weekday() time.Weekday {
	return time.Weekday(o)
}

// OffsetForMonth returns the real column of the 1st of the given month
func OffsetForMonth(year int, month time.Month) Offset {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Offset(first.Weekday())
}

// DaysIn returns the number of days of the given month
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseMonth parses a "YYYY-MM" month reference
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, expected YYYY-MM: %w", s, err)
	}
	return t.Year(), t.Month(), nil
}

// OverflowPolicy decides what happens to days that fall past the last row
type OverflowPolicy string

const (
	OverflowDrop   OverflowPolicy = "drop"
	OverflowExpand OverflowPolicy = "expand"
)

// ParseOverflowPolicy parses a policy name; empty means drop
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverflowDrop:
		return OverflowDrop, nil
	case OverflowExpand:
		return OverflowExpand, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidPolicy, s)
	}
}

// Cell is one grid position. Day is zero for an empty cell.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
	Day int `json:"day,omitempty"`
}

// Empty reports whether no day is assigned to the cell
func (c Cell) Empty() bool {
	return c.Day == 0
}

// Position returns the row and column of day for the offset, without
// bounds checking against any grid height.
func Position(day int, offset Offset) (row, col int) {
	index := int(offset) + day - 1
	return index / Weekdays, index % Weekdays
}

// Grid is a laid-out month
type Grid struct {
	Rows   int      `json:"rows"`
	Cols   int      `json:"cols"`
	Offset Offset   `json:"offset"`
	Cells  [][]Cell `json:"cells"`
	// Dropped lists the days that did not fit under OverflowDrop
	Dropped []int `json:"dropped,omitempty"`
}

// Layout places days 1..days onto a grid starting at offset
func Layout(days int, offset Offset, policy OverflowPolicy) (*Grid, error) {
	if err := offset.Validate(); err != nil {
		return nil, err
	}
	if days < 1 || days > MaxDays {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDayCount, days)
	}

	rows := StandardRows
	switch policy {
	case OverflowDrop, "":
	case OverflowExpand:
		if needed := (int(offset) + days + Weekdays - 1) / Weekdays; needed > rows {
			rows = needed
		}
	default:
		return nil, fmt.Errorf("%w: got %q", ErrInvalidPolicy, string(policy))
	}

	g := &Grid{
		Rows:   rows,
		Cols:   Weekdays,
		Offset: offset,
		Cells:  make([][]Cell, rows),
	}
	for r := range g.Cells {
		g.Cells[r] = make([]Cell, Weekdays)
		for c := range g.Cells[r] {
			g.Cells[r][c] = Cell{Row: r, Col: c}
		}
	}

	for day := 1; day <= days; day++ {
		row, col := Position(day, offset)
		if row >= rows {
			g.Dropped = append(g.Dropped, day)
			continue
		}
		g.Cells[row][col].Day = day
	}

	return g, nil
}

// CellFor returns the cell holding day, if it was placed
func (g *Grid) CellFor(day int) (Cell, bool) {
	if day < 1 {
		return Cell{}, false
	}
	row, col := Position(day, g.Offset)
	if row >= g.Rows {
		return Cell{}, false
	}
	cell := g.Cells[row][col]
	return cell, cell.Day == day
}

// Assigned returns the non-empty cells in row-major order
func (g *Grid) Assigned() []Cell {
	cells := make([]Cell, 0, MaxDays)
	for _, row := range g.Cells {
		for _, cell := range row {
			if !cell.Empty() {
				cells = append(cells, cell)
			}
		}
	}
	return cells
}

// Overflowed reports whether any day was dropped
func (g *Grid) Overflowed() bool {
	return len(g.Dropped) > 0
}

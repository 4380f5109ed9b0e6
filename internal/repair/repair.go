package repair

import (
	"math"

	"thetaflow/models"
)

// PriceColumns is the canonical declaration order of the columns subject to
// zero repair. Intra-row fills search values in this order.
var PriceColumns = []string{"open", "high", "low", "close", "underlying_price"}

// Table is a column-major numeric table whose rows are assumed to be time
// ordered. NaN marks a missing value.
type Table struct {
	Columns []string
	Data    [][]float64 // Data[i] holds the values of Columns[i]
}

// Rows returns the number of rows in the table.
func (t Table) Rows() int {
	if len(t.Data) == 0 {
		return 0
	}
	return len(t.Data[0])
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := Table{Columns: append([]string(nil), t.Columns...), Data: make([][]float64, len(t.Data))}
	for i, col := range t.Data {
		out.Data[i] = append([]float64(nil), col...)
	}
	return out
}

func (t Table) index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Fix repairs zero artifacts and gaps in the designated price columns of a
// time-ordered table. It never mutates its input and is idempotent.
//
// Three passes, in order:
//  1. exact zeros in designated columns become missing (NaN);
//  2. rows where some but not all designated columns are missing are filled
//     from the row's close value when valid, otherwise from the first valid
//     designated column in declaration order;
//  3. remaining gaps are filled per column, nearest later value carried
//     backward first, then nearest earlier value carried forward.
//
// A column that is zero or missing across every row stays missing: there is
// nothing to synthesize from.
func Fix(t Table, priceCols []string) Table {
	out := t.Clone()
	if out.Rows() == 0 {
		return out
	}

	// Designated columns actually present, in declaration order.
	var cols []int
	for _, name := range priceCols {
		if i := out.index(name); i >= 0 {
			cols = append(cols, i)
		}
	}
	if len(cols) == 0 {
		return out
	}

	// Pass 1: zero is never a valid price, treat it as missing.
	for _, c := range cols {
		for r, v := range out.Data[c] {
			if v == 0 {
				out.Data[c][r] = math.NaN()
			}
		}
	}

	// Pass 2: partial rows are filled from their own values.
	closeIdx := out.index("close")
	for r := 0; r < out.Rows(); r++ {
		missing := 0
		for _, c := range cols {
			if math.IsNaN(out.Data[c][r]) {
				missing++
			}
		}
		if missing == 0 || missing == len(cols) {
			continue
		}

		fill := math.NaN()
		if closeIdx >= 0 && !math.IsNaN(out.Data[closeIdx][r]) {
			fill = out.Data[closeIdx][r]
		} else {
			for _, c := range cols {
				if !math.IsNaN(out.Data[c][r]) {
					fill = out.Data[c][r]
					break
				}
			}
		}
		for _, c := range cols {
			if math.IsNaN(out.Data[c][r]) {
				out.Data[c][r] = fill
			}
		}
	}

	// Pass 3: fully missing rows inherit neighbours, later values first.
	for _, c := range cols {
		backwardFill(out.Data[c])
		forwardFill(out.Data[c])
	}

	return out
}

// backwardFill carries the nearest later valid value into earlier NaNs.
func backwardFill(col []float64) {
	next := math.NaN()
	for r := len(col) - 1; r >= 0; r-- {
		if math.IsNaN(col[r]) {
			col[r] = next
		} else {
			next = col[r]
		}
	}
}

// forwardFill carries the nearest earlier valid value into later NaNs.
func forwardFill(col []float64) {
	prev := math.NaN()
	for r := range col {
		if math.IsNaN(col[r]) {
			col[r] = prev
		} else {
			prev = col[r]
		}
	}
}

// Equal reports whether two tables hold the same shape and values, treating
// NaN cells as equal.
func Equal(a, b Table) bool {
	if len(a.Columns) != len(b.Columns) || a.Rows() != b.Rows() {
		return false
	}
	for i, name := range a.Columns {
		if b.Columns[i] != name {
			return false
		}
	}
	for c := range a.Data {
		for r := range a.Data[c] {
			av, bv := a.Data[c][r], b.Data[c][r]
			if math.IsNaN(av) && math.IsNaN(bv) {
				continue
			}
			if av != bv {
				return false
			}
		}
	}
	return true
}

// FixCandles repairs the OHLC columns of a candle slice and returns a new
// slice. Volume is left untouched: a zero volume is legitimate.
func FixCandles(candles []models.Candle) []models.Candle {
	if len(candles) == 0 {
		return candles
	}
	t := Table{
		Columns: []string{"open", "high", "low", "close"},
		Data:    make([][]float64, 4),
	}
	for i := range t.Data {
		t.Data[i] = make([]float64, len(candles))
	}
	for r, c := range candles {
		t.Data[0][r] = c.Open
		t.Data[1][r] = c.High
		t.Data[2][r] = c.Low
		t.Data[3][r] = c.Close
	}
	fixed := Fix(t, PriceColumns)
	out := append([]models.Candle(nil), candles...)
	for r := range out {
		out[r].Open = fixed.Data[0][r]
		out[r].High = fixed.Data[1][r]
		out[r].Low = fixed.Data[2][r]
		out[r].Close = fixed.Data[3][r]
	}
	return out
}

// FixOHLCRows repairs the OHLC columns of a bulk option row slice. Rows are
// expected in the order they will be persisted.
func FixOHLCRows(rows []models.OptionOHLCRow) []models.OptionOHLCRow {
	if len(rows) == 0 {
		return rows
	}
	t := Table{
		Columns: []string{"open", "high", "low", "close"},
		Data:    make([][]float64, 4),
	}
	for i := range t.Data {
		t.Data[i] = make([]float64, len(rows))
	}
	for r, row := range rows {
		t.Data[0][r] = row.Open
		t.Data[1][r] = row.High
		t.Data[2][r] = row.Low
		t.Data[3][r] = row.Close
	}
	fixed := Fix(t, PriceColumns)
	out := append([]models.OptionOHLCRow(nil), rows...)
	for r := range out {
		out[r].Open = fixed.Data[0][r]
		out[r].High = fixed.Data[1][r]
		out[r].Low = fixed.Data[2][r]
		out[r].Close = fixed.Data[3][r]
	}
	return out
}

// FixGreeksRows repairs the underlying price column of a greeks row slice.
func FixGreeksRows(rows []models.GreeksRow) []models.GreeksRow {
	if len(rows) == 0 {
		return rows
	}
	t := Table{
		Columns: []string{"underlying_price"},
		Data:    [][]float64{make([]float64, len(rows))},
	}
	for r, row := range rows {
		t.Data[0][r] = row.UnderlyingPrice
	}
	fixed := Fix(t, PriceColumns)
	out := append([]models.GreeksRow(nil), rows...)
	for r := range out {
		out[r].UnderlyingPrice = fixed.Data[0][r]
	}
	return out
}

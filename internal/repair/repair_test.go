package repair

import (
	"math"
	"testing"

	"thetaflow/models"
)

func table(cols []string, rows [][]float64) Table {
	t := Table{Columns: cols, Data: make([][]float64, len(cols))}
	for c := range cols {
		t.Data[c] = make([]float64, len(rows))
		for r := range rows {
			t.Data[c][r] = rows[r][c]
		}
	}
	return t
}

func TestFixCleanTableUnchanged(t *testing.T) {
	in := table([]string{"open", "high", "low", "close"}, [][]float64{
		{1, 2, 0.5, 1.5},
		{1.5, 3, 1, 2.5},
	})
	out := Fix(in, PriceColumns)
	if !Equal(in, out) {
		t.Fatalf("clean table modified: %+v", out)
	}
}

func TestFixPartialRowFilledFromClose(t *testing.T) {
	in := table([]string{"open", "close"}, [][]float64{
		{5, 0},
		{10, 10},
	})
	out := Fix(in, PriceColumns)
	// close is zero in row 0, so the fill value comes from open.
	if out.Data[1][0] != 5 {
		t.Fatalf("expected close filled from open, got %v", out.Data[1][0])
	}
	if out.Data[0][1] != 10 || out.Data[1][1] != 10 {
		t.Fatalf("valid row modified: %+v", out)
	}
}

func TestFixPrefersCloseForPartialRows(t *testing.T) {
	in := table([]string{"open", "high", "close"}, [][]float64{
		{0, 7, 3},
	})
	out := Fix(in, PriceColumns)
	if out.Data[0][0] != 3 {
		t.Fatalf("expected open filled from close=3, got %v", out.Data[0][0])
	}
}

func TestFixGapBackwardFillDominates(t *testing.T) {
	in := table([]string{"close"}, [][]float64{
		{4}, {0}, {0}, {0}, {9},
	})
	out := Fix(in, PriceColumns)
	// Later valid value is carried backward first.
	for r := 1; r <= 3; r++ {
		if out.Data[0][r] != 9 {
			t.Fatalf("row %d: expected backward fill 9, got %v", r, out.Data[0][r])
		}
	}
}

func TestFixTrailingGapForwardFilled(t *testing.T) {
	in := table([]string{"close"}, [][]float64{
		{4}, {0}, {0},
	})
	out := Fix(in, PriceColumns)
	if out.Data[0][1] != 4 || out.Data[0][2] != 4 {
		t.Fatalf("expected forward fill 4, got %v", out.Data[0])
	}
}

func TestFixIdempotent(t *testing.T) {
	in := table([]string{"open", "high", "low", "close"}, [][]float64{
		{0, 0, 0, 0},
		{2, 4, 1, 3},
		{0, 5, 0, 0},
		{0, 0, 0, 0},
	})
	once := Fix(in, PriceColumns)
	twice := Fix(once, PriceColumns)
	if !Equal(once, twice) {
		t.Fatalf("not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestFixNeverLeavesZeros(t *testing.T) {
	in := table([]string{"open", "close"}, [][]float64{
		{0, 0},
		{3, 0},
		{0, 0},
	})
	out := Fix(in, PriceColumns)
	for c := range out.Data {
		for r, v := range out.Data[c] {
			if v == 0 {
				t.Fatalf("zero left at col %d row %d", c, r)
			}
		}
	}
}

func TestFixAllMissingColumnStaysMissing(t *testing.T) {
	in := table([]string{"close"}, [][]float64{{0}, {0}})
	out := Fix(in, PriceColumns)
	for r, v := range out.Data[0] {
		if !math.IsNaN(v) {
			t.Fatalf("row %d: cannot synthesize data, got %v", r, v)
		}
	}
}

func TestFixIgnoresUndesignatedColumns(t *testing.T) {
	in := table([]string{"volume", "close"}, [][]float64{
		{0, 5},
		{3, 6},
	})
	out := Fix(in, PriceColumns)
	if out.Data[0][0] != 0 {
		t.Fatalf("volume column touched: %v", out.Data[0][0])
	}
}

func TestFixEmptyTable(t *testing.T) {
	out := Fix(Table{Columns: []string{"close"}, Data: [][]float64{{}}}, PriceColumns)
	if out.Rows() != 0 {
		t.Fatalf("expected empty output, got %d rows", out.Rows())
	}
}

func TestFixCandles(t *testing.T) {
	in := []models.Candle{
		{Open: 5, High: 5, Low: 5, Close: 0, Volume: 10},
		{Open: 10, High: 10, Low: 10, Close: 10, Volume: 0},
	}
	out := FixCandles(in)
	if out[0].Close != 5 {
		t.Fatalf("expected close filled from open, got %v", out[0].Close)
	}
	if out[1] != in[1] {
		t.Fatalf("valid candle modified: %+v", out[1])
	}
	if in[0].Close != 0 {
		t.Fatalf("input mutated: %+v", in[0])
	}
	if out[1].Volume != 0 {
		t.Fatalf("volume must not be repaired: %+v", out[1])
	}
}

func TestFixGreeksRows(t *testing.T) {
	in := []models.GreeksRow{
		{Timestamp: 1, UnderlyingPrice: 0},
		{Timestamp: 2, UnderlyingPrice: 5000.25},
	}
	out := FixGreeksRows(in)
	if out[0].UnderlyingPrice != 5000.25 {
		t.Fatalf("expected backward fill, got %v", out[0].UnderlyingPrice)
	}
}

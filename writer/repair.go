package writer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	parquetreader "github.com/xitongsys/parquet-go/reader"

	"thetaflow/internal/repair"
	"thetaflow/logger"
)

// RepairTree walks every parquet file under root, re-runs the price repair
// passes over it, and rewrites only the files whose content changed. It
// returns the number of files rewritten.
//
// The schema of each file is recognized from its partition layout: bulk
// option files live under an ohlc/ or greeks/ segment, everything else is
// treated as an underlying candle series.
func (w *Writer) RepairTree(root string) (int, error) {
	log := w.log.WithComponent("writer").WithFields(logger.Fields{"root": root})
	log.Info("repairing parquet tree")

	repaired := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".parquet") {
			return nil
		}

		changed, ferr := w.repairFile(path)
		if ferr != nil {
			log.WithError(ferr).WithFields(logger.Fields{"path": path}).Error("failed to repair file")
			return nil
		}
		if changed {
			repaired++
		}
		return nil
	})
	if err != nil {
		return repaired, fmt.Errorf("walk %s: %w", root, err)
	}

	log.WithFields(logger.Fields{"repaired": repaired}).Info("parquet tree repair complete")
	return repaired, nil
}

func (w *Writer) repairFile(path string) (bool, error) {
	slashed := filepath.ToSlash(path)
	switch {
	case strings.Contains(slashed, "/greeks/"):
		return w.repairGreeksFile(path)
	case strings.Contains(slashed, "/ohlc/"):
		return w.repairOHLCFile(path)
	default:
		return w.repairUnderlyingFile(path)
	}
}

func (w *Writer) repairGreeksFile(path string) (bool, error) {
	var records []OptionGreeksRecord
	if err := readParquet(path, new(OptionGreeksRecord), &records); err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}

	table := repair.Table{
		Columns: []string{"underlying_price"},
		Data:    [][]float64{make([]float64, len(records))},
	}
	for i, r := range records {
		table.Data[0][i] = r.UnderlyingPrice
	}

	fixed := repair.Fix(table, repair.PriceColumns)
	if repair.Equal(table, fixed) {
		return false, nil
	}

	out := make([]interface{}, 0, len(records))
	for i, r := range records {
		r.UnderlyingPrice = fixed.Data[0][i]
		out = append(out, r)
	}
	return true, w.writeFile(path, new(OptionGreeksRecord), out)
}

func (w *Writer) repairOHLCFile(path string) (bool, error) {
	var records []OptionOHLCRecord
	if err := readParquet(path, new(OptionOHLCRecord), &records); err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}

	table := newOHLCTable(len(records))
	for i, r := range records {
		table.Data[0][i] = r.Open
		table.Data[1][i] = r.High
		table.Data[2][i] = r.Low
		table.Data[3][i] = r.Close
	}

	fixed := repair.Fix(table, repair.PriceColumns)
	if repair.Equal(table, fixed) {
		return false, nil
	}

	out := make([]interface{}, 0, len(records))
	for i, r := range records {
		r.Open = fixed.Data[0][i]
		r.High = fixed.Data[1][i]
		r.Low = fixed.Data[2][i]
		r.Close = fixed.Data[3][i]
		out = append(out, r)
	}
	return true, w.writeFile(path, new(OptionOHLCRecord), out)
}

func (w *Writer) repairUnderlyingFile(path string) (bool, error) {
	var records []UnderlyingRecord
	if err := readParquet(path, new(UnderlyingRecord), &records); err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}

	table := newOHLCTable(len(records))
	for i, r := range records {
		table.Data[0][i] = r.Open
		table.Data[1][i] = r.High
		table.Data[2][i] = r.Low
		table.Data[3][i] = r.Close
	}

	fixed := repair.Fix(table, repair.PriceColumns)
	if repair.Equal(table, fixed) {
		return false, nil
	}

	out := make([]interface{}, 0, len(records))
	for i, r := range records {
		r.Open = fixed.Data[0][i]
		r.High = fixed.Data[1][i]
		r.Low = fixed.Data[2][i]
		r.Close = fixed.Data[3][i]
		out = append(out, r)
	}
	return true, w.writeFile(path, new(UnderlyingRecord), out)
}

func newOHLCTable(n int) repair.Table {
	return repair.Table{
		Columns: []string{"open", "high", "low", "close"},
		Data: [][]float64{
			make([]float64, n),
			make([]float64, n),
			make([]float64, n),
			make([]float64, n),
		},
	}
}

// readParquet loads a whole parquet file into dst, a pointer to a slice of
// the schema type. The slice is resized to the file's row count before
// reading, as the parquet reader fills exactly len(dst) rows.
func readParquet(path string, schema interface{}, dst interface{}) error {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := parquetreader.NewParquetReader(fr, schema, 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	if num == 0 {
		return nil
	}

	slice := reflect.ValueOf(dst).Elem()
	slice.Set(reflect.MakeSlice(slice.Type(), num, num))
	if err := pr.Read(dst); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

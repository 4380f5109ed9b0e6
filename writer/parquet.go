// Package writer persists repaired market data as compressed parquet files
// partitioned by symbol and date, optionally mirroring every file to S3.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	parquetwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "thetaflow/config"
	"thetaflow/logger"
	"thetaflow/models"
)

// Writer owns the output roots and the optional S3 mirror.
type Writer struct {
	config *appconfig.Config
	mirror *s3Mirror
	log    *logger.Log
}

// New builds a Writer. The S3 mirror is only connected when enabled in
// configuration.
func New(cfg *appconfig.Config) (*Writer, error) {
	log := logger.GetLogger()

	w := &Writer{config: cfg, log: log}
	if cfg.Storage.S3.Enabled {
		mirror, err := newS3Mirror(cfg)
		if err != nil {
			return nil, err
		}
		w.mirror = mirror
	}

	log.WithComponent("writer").WithFields(logger.Fields{
		"option_root":     cfg.Writer.OptionRoot,
		"underlying_root": cfg.Writer.UnderlyingRoot,
		"compression":     cfg.Writer.Compression,
		"s3_mirror":       cfg.Storage.S3.Enabled,
	}).Info("writer initialized")

	return w, nil
}

// OptionPath is the partitioned location of one bulk option file:
// <root>/<symbol>/<dataType>/<year>/<month>/<symbol>_<expiration>_<date>_<dataType>.parquet
func (w *Writer) OptionPath(symbol, dataType string, expiration, day time.Time) string {
	return filepath.Join(
		w.config.Writer.OptionRoot,
		symbol,
		dataType,
		fmt.Sprintf("%04d", day.Year()),
		fmt.Sprintf("%02d", day.Month()),
		fmt.Sprintf("%s_%s_%s_%s.parquet", symbol, expiration.Format("20060102"), day.Format("20060102"), dataType),
	)
}

// UnderlyingPath is the partitioned location of one underlying file:
// <root>/<symbol>/<year>/<month>/<symbol>_<date>.parquet
func (w *Writer) UnderlyingPath(symbol string, day time.Time) string {
	return filepath.Join(
		w.config.Writer.UnderlyingRoot,
		symbol,
		fmt.Sprintf("%04d", day.Year()),
		fmt.Sprintf("%02d", day.Month()),
		fmt.Sprintf("%s_%s.parquet", symbol, day.Format("20060102")),
	)
}

// SessionPath is the location of one realtime session snapshot:
// <root>/<yyyymmdd>/<key>.parquet
func (w *Writer) SessionPath(key string, day time.Time) string {
	return filepath.Join(
		w.config.Writer.RealtimeRoot,
		day.Format("20060102"),
		fmt.Sprintf("%s.parquet", key),
	)
}

// WriteOptionOHLC persists a bulk option OHLC batch.
func (w *Writer) WriteOptionOHLC(symbol string, expiration, day time.Time, rows []models.OptionOHLCRow) error {
	return w.writeFile(w.OptionPath(symbol, "ohlc", expiration, day), new(OptionOHLCRecord), optionOHLCRecords(rows))
}

// WriteOptionGreeks persists a bulk greeks batch.
func (w *Writer) WriteOptionGreeks(symbol string, expiration, day time.Time, rows []models.GreeksRow) error {
	return w.writeFile(w.OptionPath(symbol, "greeks", expiration, day), new(OptionGreeksRecord), optionGreeksRecords(rows))
}

// WriteUnderlying persists a derived underlying series.
func (w *Writer) WriteUnderlying(data *models.UnderlyingData) error {
	day, err := time.Parse("2006-01-02", data.Date)
	if err != nil {
		return fmt.Errorf("parse underlying date: %w", err)
	}
	return w.writeFile(w.UnderlyingPath(data.Symbol, day), new(UnderlyingRecord), underlyingRecords(data.Candles))
}

// WriteSession persists a realtime session snapshot.
func (w *Writer) WriteSession(symbol, key string, day time.Time, candles []models.Candle) error {
	return w.writeFile(w.SessionPath(key, day), new(SessionRecord), sessionRecords(symbol, candles))
}

// writeFile assembles a parquet file in memory, lands it atomically, and
// mirrors it when configured. Empty batches are skipped.
func (w *Writer) writeFile(path string, schema interface{}, records []interface{}) error {
	log := w.log.WithComponent("writer").WithFields(logger.Fields{
		"path":         path,
		"record_count": len(records),
	})

	if len(records) == 0 {
		log.Debug("batch has no records, skipping")
		return nil
	}

	data, err := w.createParquet(schema, records)
	if err != nil {
		return fmt.Errorf("create parquet for %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// Land via temp file + rename so readers never observe partial output.
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.New().String()[:8])
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize parquet file: %w", err)
	}

	logger.IncrementParquetWrite(int64(len(data)))
	log.WithFields(logger.Fields{"file_size": len(data)}).Info("parquet file written")

	if w.mirror != nil {
		if err := w.mirror.upload(path, data); err != nil {
			log.WithError(err).Warn("failed to mirror file to S3")
		}
	}

	return nil
}

func (w *Writer) createParquet(schema interface{}, records []interface{}) ([]byte, error) {
	fw := newMemoryFile()

	pw, err := parquetwriter.NewParquetWriter(fw, schema, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch w.config.Writer.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	case "lzo":
		pw.CompressionType = parquet.CompressionCodec_LZO
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, record := range records {
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return fw.Bytes(), nil
}

package logger

import (
	"sync/atomic"
	"testing"
)

func TestRecordErrorMatchesComponents(t *testing.T) {
	beforeBulk := atomic.LoadInt64(&errorsBulk)
	beforeRealtime := atomic.LoadInt64(&errorsRealtime)

	recordError("bulk")
	recordError("realtime")
	recordError("writer") // neither bucket

	if got := atomic.LoadInt64(&errorsBulk) - beforeBulk; got != 1 {
		t.Errorf("bulk errors delta = %d, want 1", got)
	}
	if got := atomic.LoadInt64(&errorsRealtime) - beforeRealtime; got != 1 {
		t.Errorf("realtime errors delta = %d, want 1", got)
	}
}

func TestEntryWarnRecordsComponent(t *testing.T) {
	before := atomic.LoadInt64(&warnsBulk)

	log := Logger()
	log.WithComponent("bulk").Warn("something odd")

	if got := atomic.LoadInt64(&warnsBulk) - before; got != 1 {
		t.Errorf("bulk warns delta = %d, want 1", got)
	}
}

func TestIncrementRequestTracksSink(t *testing.T) {
	beforeReads := atomic.LoadInt64(&requestReads)

	IncrementRequest(128)
	IncrementRequest(72)

	if got := atomic.LoadInt64(&requestReads) - beforeReads; got != 2 {
		t.Errorf("request reads delta = %d, want 2", got)
	}

	v, ok := sinks.Load("terminal_rest")
	if !ok {
		t.Fatal("terminal_rest sink not registered")
	}
	cs := v.(*sinkStat)
	if atomic.LoadInt64(&cs.bytes) < 200 {
		t.Errorf("sink bytes = %d, want at least 200", atomic.LoadInt64(&cs.bytes))
	}
}

func TestIncrementParquetWriteTracksSink(t *testing.T) {
	before := atomic.LoadInt64(&parquetWrites)

	IncrementParquetWrite(1024)

	if got := atomic.LoadInt64(&parquetWrites) - before; got != 1 {
		t.Errorf("parquet writes delta = %d, want 1", got)
	}
	if _, ok := sinks.Load("parquet_write"); !ok {
		t.Error("parquet_write sink not registered")
	}
}

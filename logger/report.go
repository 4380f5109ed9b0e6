package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net" //cloudwatch

	"github.com/aws/aws-sdk-go-v2/aws"                              //cloudwatch
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types" //cloudwatch
)

type sinkStat struct {
	messages int64
	bytes    int64
}

var (
	errorsBulk     int64
	errorsRealtime int64
	warnsBulk      int64
	warnsRealtime  int64
	requestReads   int64
	retryCount     int64
	parquetWrites  int64
	s3Mirrors      int64
	sinks          sync.Map // map[string]*sinkStat
)

func recordWarn(component string) {
	if strings.Contains(component, "bulk") {
		atomic.AddInt64(&warnsBulk, 1)
	} else if strings.Contains(component, "realtime") {
		atomic.AddInt64(&warnsRealtime, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "bulk") {
		atomic.AddInt64(&errorsBulk, 1)
	} else if strings.Contains(component, "realtime") {
		atomic.AddInt64(&errorsRealtime, 1)
	}
}

// IncrementRequest records a completed terminal request and its payload size.
func IncrementRequest(size int) {
	atomic.AddInt64(&requestReads, 1)
	recordSink("terminal_rest", size)
}

// IncrementRetry records a retried terminal request.
func IncrementRetry() {
	atomic.AddInt64(&retryCount, 1)
}

// IncrementParquetWrite records a parquet file written locally.
func IncrementParquetWrite(size int64) {
	atomic.AddInt64(&parquetWrites, 1)
	recordSink("parquet_write", int(size))
}

// IncrementS3Mirror records a parquet file mirrored to S3.
func IncrementS3Mirror(size int64) {
	atomic.AddInt64(&s3Mirrors, 1)
	recordSink("s3_mirror", int(size))
}

// RecordSinkMessage tracks arbitrary named sink traffic.
func RecordSinkMessage(name string, size int) {
	recordSink(name, size)
}

func recordSink(name string, size int) {
	v, _ := sinks.LoadOrStore(name, &sinkStat{})
	cs := v.(*sinkStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and sink statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	sinkData := map[string]map[string]int64{}
	sinks.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*sinkStat)
		sinkData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_bulk":     atomic.LoadInt64(&errorsBulk),
		"errors_realtime": atomic.LoadInt64(&errorsRealtime),
		"warns_bulk":      atomic.LoadInt64(&warnsBulk),
		"warns_realtime":  atomic.LoadInt64(&warnsRealtime),
		"request_reads":   atomic.LoadInt64(&requestReads),
		"retries":         atomic.LoadInt64(&retryCount),
		"parquet_writes":  atomic.LoadInt64(&parquetWrites),
		"s3_mirrors":      atomic.LoadInt64(&s3Mirrors),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       int64(memStats.Used) / 1024 / 1024,
		"disk_mb":         int64(diskStats.Used) / 1024 / 1024,
		"sinks":           sinkData,
		"net_bytes_sent":  int64(bytesSent),
		"net_bytes_recv":  int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsBulk"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_bulk"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsRealtime"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_realtime"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsBulk"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_bulk"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsRealtime"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_realtime"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("RequestReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["request_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Retries"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["retries"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ParquetWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["parquet_writes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("S3Mirrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["s3_mirrors"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range sinkData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("SinkMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Sink"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("SinkBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Sink"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}

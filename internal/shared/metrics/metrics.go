package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	batchesSubmittedTotal atomic.Uint64
	batchesRejectedTotal  atomic.Uint64
	recordsSucceededTotal atomic.Uint64
	recordsFailedTotal    atomic.Uint64
	deliveriesSentTotal   atomic.Uint64
	deliveriesFailedTotal atomic.Uint64

	recordDuration = newHistogram([]float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncBatchSubmitted counts an accepted batch upload.
func IncBatchSubmitted() {
	batchesSubmittedTotal.Add(1)
}

// IncBatchRejected counts a batch refused before any record was processed.
func IncBatchRejected() {
	batchesRejectedTotal.Add(1)
}

// IncRecordSucceeded counts a record whose outputs were generated.
func IncRecordSucceeded() {
	recordsSucceededTotal.Add(1)
}

// IncRecordFailed counts a record with an error outcome.
func IncRecordFailed() {
	recordsFailedTotal.Add(1)
}

// IncDeliverySent counts a delivered email.
func IncDeliverySent() {
	deliveriesSentTotal.Add(1)
}

// IncDeliveryFailed counts a failed email delivery.
func IncDeliveryFailed() {
	deliveriesFailedTotal.Add(1)
}

// ObserveRecordDurationMs records the time spent on one record in milliseconds.
func ObserveRecordDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	recordDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "mailmerge_batches_submitted_total", "Total batches accepted", batchesSubmittedTotal.Load())
	writeCounter(&buf, "mailmerge_batches_rejected_total", "Total batches rejected on input errors", batchesRejectedTotal.Load())
	writeCounter(&buf, "mailmerge_records_succeeded_total", "Total records rendered successfully", recordsSucceededTotal.Load())
	writeCounter(&buf, "mailmerge_records_failed_total", "Total records with an error outcome", recordsFailedTotal.Load())
	writeCounter(&buf, "mailmerge_deliveries_sent_total", "Total emails delivered", deliveriesSentTotal.Load())
	writeCounter(&buf, "mailmerge_deliveries_failed_total", "Total email deliveries that failed", deliveriesFailedTotal.Load())
	writeHistogram(&buf, "mailmerge_record_duration_ms", "Per-record processing duration in milliseconds", recordDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe adds value to the first bucket that holds it; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// Package influx forwards processed beacon positions to the time-series
// store and answers the windowed range queries the background jobs run.
package influx

import (
	"sync"
	"sync/atomic"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/ibisek/ogn-logbook/internal/ogn"
	"github.com/ibisek/ogn-logbook/internal/queue"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// Measurement is the series all positions are written into.
const Measurement = "pos"

// Writer is the asynchronous, batched position sink. All detector workers
// feed one Writer; a single goroutine drains the queue and flushes batches.
// Delivery is at-most-once: a failed flush is logged, the client reconnects
// and the batch is dropped.
type Writer struct {
	url       string
	database  string
	batchSize int

	pending *queue.Queue[*ogn.Beacon]
	running atomic.Bool
	done    chan struct{}
	once    sync.Once
	logger  *logger.Logger
}

// NewWriter creates a position writer for the given InfluxDB endpoint.
func NewWriter(url, database string, batchSize int, log *logger.Logger) *Writer {
	return &Writer{
		url:       url,
		database:  database,
		batchSize: batchSize,
		pending:   queue.New[*ogn.Beacon](),
		done:      make(chan struct{}),
		logger:    log.Named("influx-writer"),
	}
}

// Store enqueues a beacon for insertion. Never blocks.
func (w *Writer) Store(b *ogn.Beacon) {
	w.pending.Push(b)
}

// QueueLen returns the number of positions waiting to be written.
func (w *Writer) QueueLen() int {
	return w.pending.Len()
}

// Start launches the writer goroutine.
func (w *Writer) Start() {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Warn("Refused to start influx writer: already running")
		return
	}
	go w.run()
}

// Stop flushes the remaining batch and joins the writer goroutine.
func (w *Writer) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	w.once.Do(func() { <-w.done })
}

func (w *Writer) run() {
	defer close(w.done)

	conn := w.connect()
	batch := w.newBatch()
	count := 0

	for {
		b, ok := w.pending.Pop()
		if !ok {
			if !w.running.Load() {
				break
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		batch.AddPoint(beaconToPoint(b))
		count++

		if count >= w.batchSize || (!w.running.Load() && w.pending.Len() == 0) {
			conn = w.flush(conn, batch)
			batch = w.newBatch()
			count = 0
		}
	}

	if count > 0 {
		w.flush(conn, batch)
	}
	if conn != nil {
		conn.Close()
	}
}

func (w *Writer) connect() client.Client {
	conn, err := client.NewHTTPClient(client.HTTPConfig{Addr: w.url})
	if err != nil {
		w.logger.Error("Failed to create influx client", logger.Error(err))
		return nil
	}
	return conn
}

// flush writes the batch; on failure the batch is dropped and the client
// reconnected.
func (w *Writer) flush(conn client.Client, batch client.BatchPoints) client.Client {
	if conn == nil {
		conn = w.connect()
		if conn == nil {
			return nil
		}
	}
	if err := conn.Write(batch); err != nil {
		w.logger.Error("Failed to write batch, reconnecting",
			logger.Int("points", len(batch.Points())),
			logger.Error(err))
		conn.Close()
		return w.connect()
	}
	return conn
}

func (w *Writer) newBatch() client.BatchPoints {
	batch, _ := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  w.database,
		Precision: "ns",
	})
	return batch
}

func beaconToPoint(b *ogn.Beacon) *client.Point {
	agl := 0
	if b.HasAGL() {
		agl = b.AGL
	}
	fields := map[string]interface{}{
		"agl": agl,
		"alt": b.Altitude,
		"gs":  int(b.Speed),
		"lat": b.Lat,
		"lon": b.Lon,
		"tr":  b.TurnRate,
		"vs":  b.ClimbRate,
	}
	tags := map[string]string{
		"addr": b.AddrType.LongString() + b.Addr,
	}
	pt, _ := client.NewPoint(Measurement, tags, fields, b.Time())
	return pt
}

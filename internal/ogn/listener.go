package ogn

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ibisek/ogn-logbook/internal/queue"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// Processor consumes one beacon at a time. Implemented by the flight-state
// detector.
type Processor interface {
	Process(ctx context.Context, b *Beacon)
}

// RatePublisher pushes ingest-rate figures to an external broker. Optional.
type RatePublisher interface {
	Publish(topic, payload string)
}

// queueAlertLen is the backlog size above which a queue is called out in
// the rate report.
const queueAlertLen = 1000

// Listener fans incoming beacons out into one queue per address type, each
// drained by a dedicated worker owning its own Processor. Ordering is
// preserved per aircraft because an aircraft never changes address type.
type Listener struct {
	queues     map[AddressType]*queue.Queue[*Beacon]
	processors map[AddressType]Processor
	counters   map[AddressType]*atomic.Int64
	publisher  RatePublisher

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *logger.Logger
}

// NewListener creates a listener with one processor per address type.
func NewListener(processors map[AddressType]Processor, publisher RatePublisher, log *logger.Logger) *Listener {
	l := &Listener{
		queues:     make(map[AddressType]*queue.Queue[*Beacon]),
		processors: processors,
		counters:   make(map[AddressType]*atomic.Int64),
		publisher:  publisher,
		logger:     log.Named("listener"),
	}
	for _, t := range AddressTypes {
		l.queues[t] = queue.New[*Beacon]()
		l.counters[t] = &atomic.Int64{}
	}
	return l
}

// OnBeacon enqueues a beacon for its category worker. Non-blocking; called
// from the transport's read loop.
func (l *Listener) OnBeacon(b *Beacon) {
	q, ok := l.queues[b.AddrType]
	if !ok {
		return
	}
	q.Push(b)
	l.counters[b.AddrType].Add(1)
}

// QueueLen returns the backlog for one address type.
func (l *Listener) QueueLen(t AddressType) int {
	if q, ok := l.queues[t]; ok {
		return q.Len()
	}
	return 0
}

// Start launches the category workers and the rate reporter.
func (l *Listener) Start(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		l.logger.Warn("Refused to start listener: already running")
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)

	for _, t := range AddressTypes {
		if _, ok := l.processors[t]; !ok {
			continue
		}
		l.wg.Add(1)
		go l.work(ctx, t)
	}

	l.wg.Add(1)
	go l.reportRates(ctx)
}

// Stop terminates the workers and waits for them to finish their current
// beacon.
func (l *Listener) Stop() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}
	l.cancel()
	l.wg.Wait()
}

func (l *Listener) work(ctx context.Context, t AddressType) {
	defer l.wg.Done()

	q := l.queues[t]
	proc := l.processors[t]
	for {
		if ctx.Err() != nil {
			return
		}
		b, ok := q.Pop()
		if !ok {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		proc.Process(ctx, b)
	}
}

// reportRates logs per-category ingest rates once a minute and forwards
// them to the broker when one is configured.
func (l *Listener) reportRates(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		total := int64(0)
		queued := 0
		perType := make(map[AddressType]int64, len(AddressTypes))
		for _, t := range AddressTypes {
			n := l.counters[t].Swap(0)
			perType[t] = n
			total += n
			queued += l.queues[t].Len()
		}

		l.logger.Info("Ingest rate",
			logger.Int64("per_min", total),
			logger.Int("queued", queued),
			logger.Int64("ogn", perType[AddressTypeOgn]),
			logger.Int64("icao", perType[AddressTypeIcao]),
			logger.Int64("flarm", perType[AddressTypeFlarm]),
			logger.Int64("sky", perType[AddressTypeSafeSky]))

		if queued > queueAlertLen {
			l.logger.Warn("Beacon backlog building up", logger.Int("queued", queued))
		}

		if l.publisher != nil {
			l.publisher.Publish("ognLogbook/rate", fmt.Sprintf("%d", total))
			l.publisher.Publish("ognLogbook/queued", fmt.Sprintf("%d", queued))
			l.publisher.Publish("ognLogbook/ogn", fmt.Sprintf("%d", perType[AddressTypeOgn]))
			l.publisher.Publish("ognLogbook/icao", fmt.Sprintf("%d", perType[AddressTypeIcao]))
			l.publisher.Publish("ognLogbook/flarm", fmt.Sprintf("%d", perType[AddressTypeFlarm]))
			l.publisher.Publish("ognLogbook/sky", fmt.Sprintf("%d", perType[AddressTypeSafeSky]))
		}
	}
}

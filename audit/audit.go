// Package audit exports policy-rule-tag rejections to an external sink
// without ever blocking the channel lock that produced them. Grounded on
// invoices.InvoiceRegistry's subscription fan-out
// (invoices/invoiceregistry.go), which buffers notifications through a
// queue.ConcurrentQueue so a slow subscriber never stalls invoice
// settlement; here the producer is a validator rejection instead of an
// invoice event, and the consumer is whatever records or alerts on it.
package audit

import (
	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/remotesigner/policy"
)

// Record is one rejected signing request, as it crosses from the channel
// lock into the audit sink.
type Record struct {
	ChannelID string
	Op        string
	Tag       string
	Message   string
}

// RecordFromError builds a Record from a policy error returned by a
// validator, or the zero Record if err is not a *policy.Error carrying a
// rule tag (e.g. a KindInternal error, which belongs in the logs, not the
// audit trail).
func RecordFromError(channelID string, err error) (Record, bool) {
	perr, ok := err.(*policy.Error)
	if !ok || perr.Tag == "" {
		return Record{}, false
	}
	return Record{
		ChannelID: channelID,
		Op:        perr.Op,
		Tag:       perr.Tag,
		Message:   perr.Msg,
	}, true
}

// Sink consumes exported Records, e.g. to append them to a log file or ship
// them to a metrics collector.
type Sink interface {
	Export(Record)
}

// Exporter decouples a Sink from its producers via a queue.ConcurrentQueue:
// Push never waits on the sink, so a channel validation rejection is never
// slowed down by whatever Export does with it.
type Exporter struct {
	sink  Sink
	queue *queue.ConcurrentQueue
	quit  chan struct{}
}

// NewExporter starts an Exporter backed by sink. Stop must be called to
// release its goroutine.
func NewExporter(sink Sink) *Exporter {
	e := &Exporter{
		sink:  sink,
		queue: queue.NewConcurrentQueue(queueBufferSize),
		quit:  make(chan struct{}),
	}
	e.queue.Start()
	go e.run()
	return e
}

// queueBufferSize is the buffer size passed to queue.NewConcurrentQueue.
const queueBufferSize = 64

// Push enqueues rec for export. It does not block on the sink.
func (e *Exporter) Push(rec Record) {
	select {
	case e.queue.ChanIn() <- rec:
	case <-e.quit:
	}
}

func (e *Exporter) run() {
	for {
		select {
		case item := <-e.queue.ChanOut():
			rec := item.(Record)
			log.Debugf("exporting rejection record for channel %s: %s", rec.ChannelID, rec.Tag)
			e.sink.Export(rec)
		case <-e.quit:
			return
		}
	}
}

// Stop drains no further records and releases the background goroutine.
func (e *Exporter) Stop() {
	close(e.quit)
	e.queue.Stop()
}

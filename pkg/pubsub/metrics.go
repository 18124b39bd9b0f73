package pubsub

// MetricsCollector receives multiplexer events. Implementations must be safe
// for concurrent use and must not block.
type MetricsCollector interface {
	// RecordDelivery is called once per routed message with the number of
	// subscriber queues it reached. Zero means the message was dropped.
	RecordDelivery(pattern bool, deliveries int)
	// RecordReaderError is called for every failed NextMessage.
	RecordReaderError(fatal bool)
	// RecordPhysicalCall is called for every subscribe-family call issued on
	// the physical connection. op is subscribe, psubscribe, unsubscribe or punsubscribe.
	RecordPhysicalCall(op string, names int, err error)
	// SetActiveKeys reports the current number of subscribed channels and patterns.
	SetActiveKeys(channels, patterns int)
	// SetSubscribers reports the number of open subscriber handles.
	SetSubscribers(n int)
	// RecordLeak is called when a subscriber is collected without Close.
	RecordLeak()
}

// NopMetrics discards everything. Embed it to implement only part of MetricsCollector.
type NopMetrics struct{}

var _ MetricsCollector = NopMetrics{}

func (NopMetrics) RecordDelivery(bool, int)             {}
func (NopMetrics) RecordReaderError(bool)               {}
func (NopMetrics) RecordPhysicalCall(string, int, error) {}
func (NopMetrics) SetActiveKeys(int, int)               {}
func (NopMetrics) SetSubscribers(int)                   {}
func (NopMetrics) RecordLeak()                          {}

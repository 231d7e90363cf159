package domain

import "fmt"

// FilterType distinguishes the two broker-side filter expression dialects.
type FilterType int32

const (
	FilterTypeTag FilterType = iota
	FilterTypeSQL92
)

// FilterExpression is an immutable broker-side message filter.
type FilterExpression struct {
	Expression string
	Type       FilterType
}

// MessageModel selects clustering (server-managed offsets, shared across the
// group) or broadcasting (every consumer sees every message, offsets are
// tracked locally) consumption semantics.
type MessageModel int32

const (
	MessageModelClustering MessageModel = iota
	MessageModelBroadcasting
)

// ListenerType selects unordered batch delivery or strict per-partition FIFO
// delivery.
type ListenerType int32

const (
	ListenerConcurrent ListenerType = iota
	ListenerOrderly
)

// ConsumeFromWhere controls where a fresh assignment starts consuming from.
type ConsumeFromWhere int32

const (
	ConsumeFromBeginning ConsumeFromWhere = iota
	ConsumeFromEnd
	ConsumeFromTimestamp
)

// MessageQueue identifies one partition: a topic/brokerName/queueId triple
// plus the broker endpoints resolved for it. Immutable for the lifetime of
// the owning ProcessQueue.
type MessageQueue struct {
	Topic      string
	BrokerName string
	QueueID    int32
	Endpoints  []string
}

// String renders the partition identity for logging.
func (q MessageQueue) String() string {
	return fmt.Sprintf("%s/%s/%d", q.Topic, q.BrokerName, q.QueueID)
}

// ConsumeStatus is the outcome of the user consume function for one message
// or batch.
type ConsumeStatus int32

const (
	ConsumeStatusOK ConsumeStatus = iota
	ConsumeStatusError
)

// Package wire defines the RocketMQ-v1-style gRPC message shapes the engine
// exchanges with a broker, and the status code vocabulary responses carry.
// The transport itself (channel management, request signing, deadlines) is
// an out-of-scope collaborator reached through ports.RpcClient; this
// package only fixes the shapes on the wire.
package wire

import (
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/durationpb"
)

// StatusCode reuses the standard gRPC status vocabulary: the spec's
// OK/RESOURCE_EXHAUSTED/DEADLINE_EXCEEDED/NOT_FOUND/DATA_CORRUPTED/INTERNAL
// table maps directly onto codes.Code values.
type StatusCode = codes.Code

// Status is the common.status.code envelope every response carries.
type Status struct {
	Code    StatusCode
	Message string
}

// OK reports whether the response succeeded.
func (s Status) OK() bool { return s.Code == codes.OK }

// ResourceTriple names a group or topic resource, stamped with the ambient
// resource namespace the broker expects on every request.
type ResourceTriple struct {
	ARN  string
	Name string
}

// RequestMeta carries the fields every request stamps: client identity,
// signed (bearer-style) metadata produced by an external signer, and the
// group/topic resources involved.
type RequestMeta struct {
	ClientID       string
	SignedMetadata map[string]string
	Group          ResourceTriple
	Topic          ResourceTriple
}

// ConsumePolicy selects where a receive/pull cycle should start reading
// from, derived from domain.ConsumeFromWhere per spec §4.3.
type ConsumePolicy int32

const (
	ConsumePolicyResume ConsumePolicy = iota
	ConsumePolicyPlayback
	ConsumePolicyDiscard
	ConsumePolicyTargetTimestamp
)

// ReceiveMessageRequest is a long-poll receive against a partition.
type ReceiveMessageRequest struct {
	Meta              RequestMeta
	Queue             string // brokerName/queueId, resolved by the caller
	BatchSize         int32
	AwaitTime         *durationpb.Duration
	InvisibleDuration *durationpb.Duration
	Policy            ConsumePolicy
	ConsumeTimestamp  time.Time
	Filter            *FilterExpr
	FifoFlag          bool
}

// FilterExpr is the wire shape of domain.FilterExpression.
type FilterExpr struct {
	Expression string
	SQL92      bool
}

// ReceivedMessage is one message as returned over the wire.
type ReceivedMessage struct {
	MessageID       string
	Body            []byte
	QueueOffset     int64
	ReceiptHandle   string
	AckEndpoints    []string
	DeliveryAttempt int32
}

// ReceiveMessageResponse is the result of a ReceiveMessageRequest.
type ReceiveMessageResponse struct {
	Status   Status
	Messages []ReceivedMessage
}

// PullMessageRequest advances a locally tracked offset.
type PullMessageRequest struct {
	Meta      RequestMeta
	Queue     string
	Offset    int64
	BatchSize int32
	AwaitTime *durationpb.Duration
	Filter    *FilterExpr
}

// PullMessageResponse is the result of a PullMessageRequest.
type PullMessageResponse struct {
	Status          Status
	Messages        []ReceivedMessage
	NextBeginOffset int64
}

// AckMessageRequest acknowledges successful consumption of one message.
type AckMessageRequest struct {
	Meta          RequestMeta
	MessageID     string
	ReceiptHandle string
}

// AckMessageResponse is the result of an AckMessageRequest.
type AckMessageResponse struct {
	Status Status
}

// NackMessageRequest negatively acknowledges one message, making it eligible
// for redelivery by the broker.
type NackMessageRequest struct {
	Meta            RequestMeta
	MessageID       string
	ReceiptHandle   string
	DeliveryAttempt int32
}

// NackMessageResponse is the result of a NackMessageRequest.
type NackMessageResponse struct {
	Status Status
}

// ForwardMessageToDeadLetterQueueRequest terminally forwards a message that
// exhausted redelivery.
type ForwardMessageToDeadLetterQueueRequest struct {
	Meta            RequestMeta
	MessageID       string
	ReceiptHandle   string
	DeliveryAttempt int32
	MaxAttempts     int32
}

// ForwardMessageToDeadLetterQueueResponse is the result of a forward-to-DLQ call.
type ForwardMessageToDeadLetterQueueResponse struct {
	Status Status
}

// QueryOffsetPolicy selects the broker-side offset query semantics for
// pull-mode initialization.
type QueryOffsetPolicy int32

const (
	QueryOffsetBeginning QueryOffsetPolicy = iota
	QueryOffsetEnd
	QueryOffsetTimestamp
)

// QueryOffsetRequest asks the broker for an initial pull offset.
type QueryOffsetRequest struct {
	Meta             RequestMeta
	Queue            string
	Policy           QueryOffsetPolicy
	ConsumeTimestamp time.Time
}

// QueryOffsetResponse is the result of a QueryOffsetRequest.
type QueryOffsetResponse struct {
	Status Status
	Offset int64
}

// Millis builds a protobuf Duration from a millisecond count, mirroring the
// base's timeutil.FromMillis to avoid duration-by-duration multiplication.
func Millis(ms int64) *durationpb.Duration {
	return durationpb.New(time.Duration(ms * int64(time.Millisecond)))
}

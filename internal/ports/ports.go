// Package ports declares the external collaborators this engine depends on
// but does not implement: the broker RPC transport, rate limiting, custom
// offset persistence, and logging. Callers inject concrete implementations;
// the core only ever sees these interfaces.
package ports

import (
	"context"

	"github.com/rocketmq-go/consumer-engine/internal/domain"
	"github.com/rocketmq-go/consumer-engine/internal/wire"
)

// Field is one key/value pair attached to a structured log line.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the narrow structured-logging surface every component takes by
// constructor injection.
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// RpcClient is the broker RPC transport: request signing, channel
// management, and per-call deadlines all live on the other side of this
// interface (spec §1, out of scope). Every method blocks for the duration
// of one RPC; FetchDriver (receive/pull) and RpcOps (ack/nack/forward) layer
// rescheduling and retry on top.
type RpcClient interface {
	ReceiveMessage(ctx context.Context, req *wire.ReceiveMessageRequest) (*wire.ReceiveMessageResponse, error)
	PullMessage(ctx context.Context, req *wire.PullMessageRequest) (*wire.PullMessageResponse, error)
	AckMessage(ctx context.Context, req *wire.AckMessageRequest) (*wire.AckMessageResponse, error)
	NackMessage(ctx context.Context, req *wire.NackMessageRequest) (*wire.NackMessageResponse, error)
	ForwardMessageToDeadLetterQueue(ctx context.Context, req *wire.ForwardMessageToDeadLetterQueueRequest) (*wire.ForwardMessageToDeadLetterQueueResponse, error)
	QueryOffset(ctx context.Context, req *wire.QueryOffsetRequest) (*wire.QueryOffsetResponse, error)
}

// RateLimiter is the optional, externally owned token bucket spec §6/§9
// allow a ProcessQueue to share across queues. TryAcquire must not block.
type RateLimiter interface {
	TryAcquire() bool
}

// OffsetStore is the custom offset persistence collaborator for pull-mode
// consumption with a user-supplied store (spec §1, out of scope: the engine
// only reads/writes through this interface, never decides where offsets
// live).
type OffsetStore interface {
	ReadOffset(ctx context.Context, queue domain.MessageQueue) (int64, bool, error)
	WriteOffset(ctx context.Context, queue domain.MessageQueue, offset int64) error
}

// ConsumeNotifier tells the external ConsumeService scheduler (spec §1, out
// of scope) that a queue now has cached messages worth scheduling a
// consumption callback for. The engine only ever signals; it never decides
// how or when the callback runs.
type ConsumeNotifier interface {
	NotifyReady(queue domain.MessageQueue)
}

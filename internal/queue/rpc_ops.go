package queue

import (
	"context"
	"time"

	"github.com/rocketmq-go/consumer-engine/internal/domain"
	"github.com/rocketmq-go/consumer-engine/internal/executor"
	"github.com/rocketmq-go/consumer-engine/internal/identity"
	"github.com/rocketmq-go/consumer-engine/internal/ports"
	"github.com/rocketmq-go/consumer-engine/internal/wire"
	"github.com/rocketmq-go/consumer-engine/pkg/circuitbreaker"
)

// RpcOps issues the ack, nack and forward-to-DLQ calls a ProcessQueue makes
// against the broker (spec §4.6); pull and receive are issued by FetchDriver
// directly and do not pass through RpcOps or its circuit breaker. Ack,
// nack and forward in clustering/batch mode are one-shot — a failure is
// logged and the message's fate is left to broker-side redelivery. The FIFO
// variants (AckFifo, ForwardFifoToDLQ) retry on a fixed delay until the
// owning partition is dropped, since a FIFO slot cannot advance until its
// single in-flight message is terminally resolved.
type RpcOps struct {
	client    ports.RpcClient
	breaker   *circuitbreaker.CircuitBreaker
	scheduler *executor.Scheduler
	ioTimeout time.Duration
	logger    ports.Logger
	metrics   *domain.Metrics
	meta      wire.RequestMeta
}

// NewRpcOps builds an RpcOps bound to one partition's request metadata.
func NewRpcOps(
	client ports.RpcClient,
	breaker *circuitbreaker.CircuitBreaker,
	scheduler *executor.Scheduler,
	ioTimeout time.Duration,
	logger ports.Logger,
	metrics *domain.Metrics,
	meta wire.RequestMeta,
) *RpcOps {
	if meta.ClientID == "" {
		meta.ClientID = identity.NewClientID()
	}
	return &RpcOps{
		client:    client,
		breaker:   breaker,
		scheduler: scheduler,
		ioTimeout: ioTimeout,
		logger:    logger,
		metrics:   metrics,
		meta:      meta,
	}
}

func (r *RpcOps) callWithTimeout(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.ioTimeout)
	defer cancel()
	return r.breaker.Execute(func() error { return fn(ctx) })
}

// Ack sends a one-shot AckMessage for msg. Failures are logged, never
// retried: the message remains with the broker to redeliver.
func (r *RpcOps) Ack(msg *domain.Message) {
	err := r.callWithTimeout(func(ctx context.Context) error {
		resp, err := r.client.AckMessage(ctx, &wire.AckMessageRequest{
			Meta:          r.meta,
			MessageID:     msg.MessageID,
			ReceiptHandle: msg.ReceiptHandle,
		})
		if err != nil {
			return err
		}
		if !resp.Status.OK() {
			return statusError(resp.Status)
		}
		return nil
	})
	if err != nil {
		r.metrics.RpcErrors.Add(1)
		r.logger.Warn("ack failed", ports.Field{Key: "messageId", Value: msg.MessageID}, ports.Field{Key: "error", Value: err.Error()})
		return
	}
	r.metrics.MessagesAcked.Add(1)
}

// Nack sends a one-shot NackMessage for msg.
func (r *RpcOps) Nack(msg *domain.Message) {
	err := r.callWithTimeout(func(ctx context.Context) error {
		resp, err := r.client.NackMessage(ctx, &wire.NackMessageRequest{
			Meta:            r.meta,
			MessageID:       msg.MessageID,
			ReceiptHandle:   msg.ReceiptHandle,
			DeliveryAttempt: msg.System.DeliveryAttempt(),
		})
		if err != nil {
			return err
		}
		if !resp.Status.OK() {
			return statusError(resp.Status)
		}
		return nil
	})
	if err != nil {
		r.metrics.RpcErrors.Add(1)
		r.logger.Warn("nack failed", ports.Field{Key: "messageId", Value: msg.MessageID}, ports.Field{Key: "error", Value: err.Error()})
		return
	}
	r.metrics.MessagesNacked.Add(1)
}

// Forward sends a one-shot ForwardMessageToDeadLetterQueue for msg.
func (r *RpcOps) Forward(msg *domain.Message, maxAttempts int32) {
	err := r.callWithTimeout(func(ctx context.Context) error {
		resp, err := r.client.ForwardMessageToDeadLetterQueue(ctx, &wire.ForwardMessageToDeadLetterQueueRequest{
			Meta:            r.meta,
			MessageID:       msg.MessageID,
			ReceiptHandle:   msg.ReceiptHandle,
			DeliveryAttempt: msg.System.DeliveryAttempt(),
			MaxAttempts:     maxAttempts,
		})
		if err != nil {
			return err
		}
		if !resp.Status.OK() {
			return statusError(resp.Status)
		}
		return nil
	})
	if err != nil {
		r.metrics.RpcErrors.Add(1)
		r.logger.Warn("forward to DLQ failed", ports.Field{Key: "messageId", Value: msg.MessageID}, ports.Field{Key: "error", Value: err.Error()})
		return
	}
	r.metrics.MessagesForwarded.Add(1)
}

// AckFifo acks msg, retrying on a fixed delay until it succeeds or
// isDropped reports true (spec §4.6's FIFO slot state machine: a FIFO
// partition must resolve every in-flight message before advancing, so ack
// failures cannot be abandoned the way batch ack failures can). onDone is
// called exactly once, by the attempt that succeeds; if the loop stops
// because isDropped reported true, onDone is never called.
func (r *RpcOps) AckFifo(msg *domain.Message, delay time.Duration, isDropped func() bool, onDone func()) {
	var attempt func()
	attempt = func() {
		if isDropped() {
			return
		}
		err := r.callWithTimeout(func(ctx context.Context) error {
			resp, err := r.client.AckMessage(ctx, &wire.AckMessageRequest{
				Meta:          r.meta,
				MessageID:     msg.MessageID,
				ReceiptHandle: msg.ReceiptHandle,
			})
			if err != nil {
				return err
			}
			if !resp.Status.OK() {
				return statusError(resp.Status)
			}
			return nil
		})
		if err != nil {
			r.metrics.RpcErrors.Add(1)
			r.logger.Debug("fifo ack retry scheduled", ports.Field{Key: "messageId", Value: msg.MessageID}, ports.Field{Key: "error", Value: err.Error()})
			r.scheduler.AfterFunc(delay, attempt)
			return
		}
		r.metrics.MessagesAcked.Add(1)
		onDone()
	}
	attempt()
}

// ForwardFifoToDLQ forwards msg to the dead letter queue, retrying on a
// fixed delay until it succeeds or isDropped reports true.
func (r *RpcOps) ForwardFifoToDLQ(msg *domain.Message, maxAttempts int32, delay time.Duration, isDropped func() bool, onDone func()) {
	var attempt func()
	attempt = func() {
		if isDropped() {
			return
		}
		err := r.callWithTimeout(func(ctx context.Context) error {
			resp, err := r.client.ForwardMessageToDeadLetterQueue(ctx, &wire.ForwardMessageToDeadLetterQueueRequest{
				Meta:            r.meta,
				MessageID:       msg.MessageID,
				ReceiptHandle:   msg.ReceiptHandle,
				DeliveryAttempt: msg.System.DeliveryAttempt(),
				MaxAttempts:     maxAttempts,
			})
			if err != nil {
				return err
			}
			if !resp.Status.OK() {
				return statusError(resp.Status)
			}
			return nil
		})
		if err != nil {
			r.metrics.RpcErrors.Add(1)
			r.logger.Debug("fifo forward-to-DLQ retry scheduled", ports.Field{Key: "messageId", Value: msg.MessageID}, ports.Field{Key: "error", Value: err.Error()})
			r.scheduler.AfterFunc(delay, attempt)
			return
		}
		r.metrics.MessagesForwarded.Add(1)
		onDone()
	}
	attempt()
}

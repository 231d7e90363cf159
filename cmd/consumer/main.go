// Command consumer wires the per-queue consumption engine together for one
// partition assignment. Broker route discovery, partition assignment, and
// the RPC transport itself (request signing, channel management, per-call
// deadlines) are external collaborators this command does not implement —
// see ports.RpcClient. Wire in a real implementation before running this
// against a broker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketmq-go/consumer-engine/internal/config"
	"github.com/rocketmq-go/consumer-engine/internal/domain"
	"github.com/rocketmq-go/consumer-engine/internal/executor"
	"github.com/rocketmq-go/consumer-engine/internal/logger"
	"github.com/rocketmq-go/consumer-engine/internal/ports"
	"github.com/rocketmq-go/consumer-engine/internal/queue"
	"github.com/rocketmq-go/consumer-engine/internal/wire"
)

// newRpcClient is the integration seam a real deployment fills in: broker
// route discovery and the gRPC transport live outside this module (spec
// §1). Swap this out for a concrete ports.RpcClient before running against
// a live broker.
func newRpcClient(log ports.Logger) ports.RpcClient {
	log.Warn("no RpcClient wired: supply a ports.RpcClient implementation before consuming")
	return nil
}

func main() {
	log := logger.New("info", "text")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", ports.Field{Key: "error", Value: err.Error()})
	}

	pool := executor.NewWorkerPool(4, 32)
	pool.Start()
	sched := executor.NewScheduler()

	client := newRpcClient(log)
	if client == nil {
		log.Fatal("no broker RPC client configured, exiting")
		return
	}

	deps := queue.Deps{
		Client:    client,
		Scheduler: sched,
		Pool:      pool,
		Logger:    log,
	}

	mq := domain.MessageQueue{
		Topic:      os.Getenv("CONSUMER_TOPIC"),
		BrokerName: os.Getenv("CONSUMER_BROKER_NAME"),
		QueueID:    0,
	}

	pq := queue.New(mq, cfg, wire.RequestMeta{}, nil, deps)
	pq.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down", ports.Field{Key: "queue", Value: mq.String()})
	pq.Drop()

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pq.Drain(drainCtx); err != nil {
		log.Warn("drain did not complete cleanly", ports.Field{Key: "error", Value: err.Error()})
	}

	sched.Stop()
	pool.Stop()
}

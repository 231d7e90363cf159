package queue

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/rocketmq-go/consumer-engine/internal/ports"
	"github.com/rocketmq-go/consumer-engine/internal/wire"
)

// noopLogger discards everything; used by tests that don't assert on logs.
type noopLogger struct{}

func (noopLogger) Trace(string, ...ports.Field)        {}
func (noopLogger) Debug(string, ...ports.Field)        {}
func (noopLogger) Info(string, ...ports.Field)         {}
func (noopLogger) Warn(string, ...ports.Field)         {}
func (noopLogger) Error(string, ...ports.Field)        {}
func (noopLogger) Fatal(string, ...ports.Field)        {}
func (l noopLogger) WithFields(...ports.Field) ports.Logger { return l }

// fakeRpcClient is a hand-written ports.RpcClient fake, in the style of the
// base's fakeRedis: each method records its calls and returns a
// pre-programmed or default response.
type fakeRpcClient struct {
	mu sync.Mutex

	ackCalls     []wire.AckMessageRequest
	ackStatus    wire.Status
	ackFailUntil int // the first ackFailUntil calls return a non-OK INTERNAL status

	nackCalls []wire.NackMessageRequest

	forwardCalls  []wire.ForwardMessageToDeadLetterQueueRequest
	forwardStatus wire.Status

	receiveResponses []*wire.ReceiveMessageResponse
	receiveCalls     int

	pullResponses []*wire.PullMessageResponse
	pullCalls     int
}

func newFakeRpcClient() *fakeRpcClient {
	return &fakeRpcClient{
		ackStatus:     wire.Status{Code: codes.OK},
		forwardStatus: wire.Status{Code: codes.OK},
	}
}

func (f *fakeRpcClient) ReceiveMessage(_ context.Context, _ *wire.ReceiveMessageRequest) (*wire.ReceiveMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiveCalls < len(f.receiveResponses) {
		resp := f.receiveResponses[f.receiveCalls]
		f.receiveCalls++
		return resp, nil
	}
	f.receiveCalls++
	return &wire.ReceiveMessageResponse{Status: wire.Status{Code: codes.DeadlineExceeded}}, nil
}

func (f *fakeRpcClient) PullMessage(_ context.Context, req *wire.PullMessageRequest) (*wire.PullMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullCalls < len(f.pullResponses) {
		resp := f.pullResponses[f.pullCalls]
		f.pullCalls++
		return resp, nil
	}
	f.pullCalls++
	return &wire.PullMessageResponse{Status: wire.Status{Code: codes.DeadlineExceeded}, NextBeginOffset: req.Offset}, nil
}

func (f *fakeRpcClient) AckMessage(_ context.Context, req *wire.AckMessageRequest) (*wire.AckMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ackCalls = append(f.ackCalls, *req)
	if len(f.ackCalls) <= f.ackFailUntil {
		return &wire.AckMessageResponse{Status: wire.Status{Code: codes.Internal, Message: "injected failure"}}, nil
	}
	return &wire.AckMessageResponse{Status: f.ackStatus}, nil
}

func (f *fakeRpcClient) NackMessage(_ context.Context, req *wire.NackMessageRequest) (*wire.NackMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nackCalls = append(f.nackCalls, *req)
	return &wire.NackMessageResponse{Status: wire.Status{Code: codes.OK}}, nil
}

func (f *fakeRpcClient) ForwardMessageToDeadLetterQueue(_ context.Context, req *wire.ForwardMessageToDeadLetterQueueRequest) (*wire.ForwardMessageToDeadLetterQueueResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwardCalls = append(f.forwardCalls, *req)
	return &wire.ForwardMessageToDeadLetterQueueResponse{Status: f.forwardStatus}, nil
}

func (f *fakeRpcClient) QueryOffset(_ context.Context, _ *wire.QueryOffsetRequest) (*wire.QueryOffsetResponse, error) {
	return &wire.QueryOffsetResponse{Status: wire.Status{Code: codes.OK}, Offset: 0}, nil
}

func (f *fakeRpcClient) ackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ackCalls)
}

func (f *fakeRpcClient) nackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nackCalls)
}

func (f *fakeRpcClient) forwardCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forwardCalls)
}

// eventually polls fn until it returns true or timeout elapses, mirroring
// the base's test helper of the same name.
func eventually(tb interface{ Fatalf(string, ...interface{}) }, timeout time.Duration, fn func() bool, msg string) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	tb.Fatalf("eventually: timed out waiting for condition: %s", msg)
}
